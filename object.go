// Package meru is an in-house messaging substrate: a central broker
// multicasts typed Actions between cooperating processes, each of which
// keeps a local replica of one or more shared StateNodes that evolve as a
// deterministic function of the action stream.
package meru

// MeruObject is the marker every wire-travelling record satisfies. It
// carries no methods of its own; concrete Action and StateNode types pick
// it up by embedding Base (action.go) or StateBase (state.go), whose
// meruObject method is promoted onto them. The wire codec uses this to
// decide which nested struct fields need an "object_type" tag and which
// don't (plain non-MeruObject structs travel untagged).
type MeruObject interface {
	meruObject()
}
