package wire

import (
	meru "github.com/HumbleRetreat/meru"
	"github.com/HumbleRetreat/meru/errs"
)

// Builtins returns the Registration entries for the five record types
// the core itself ships: RequireState, StateUpdate, Ping, Pong, and
// SnapshotError. Every broker and worker registers these before any user
// type, since the snapshot and liveness protocols depend on them being
// resolvable.
func Builtins() []Registration {
	return []Registration{
		{Tag: "RequireState", New: func() any { return &meru.RequireState{} }},
		{Tag: "StateUpdate", New: func() any { return &meru.StateUpdate{} }},
		{Tag: "Ping", New: func() any { return &meru.Ping{} }},
		{Tag: "Pong", New: func() any { return &meru.Pong{} }},
		{Tag: "SnapshotError", New: func() any { return &errs.SnapshotError{} }},
	}
}
