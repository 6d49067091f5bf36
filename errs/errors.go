// Package errs defines the typed error kinds used across the messaging
// fabric. Each kind is a distinct Go type so callers can discriminate with
// errors.As instead of matching on message strings.
package errs

import (
	"fmt"

	meru "github.com/HumbleRetreat/meru"
)

// ConfigError signals an invalid environment or startup parameter. Fatal
// before the event loop starts.
type ConfigError struct {
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Message)
}

// RegistryError signals a duplicate or unknown type tag during
// registration or decode.
type RegistryError struct {
	Tag     string
	Message string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("registry: %s: %s", e.Tag, e.Message)
}

// DecodeError signals a malformed payload or an unresolvable type tag.
// The frame carrying it is logged and dropped by the caller; the channel
// continues.
type DecodeError struct {
	Tag     string
	Message string
}

func (e *DecodeError) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("decode: %s", e.Message)
	}
	return fmt.Sprintf("decode: %s: %s", e.Tag, e.Message)
}

// HandlerError signals an invalid handler signature. Raised at
// registration time; fatal.
type HandlerError struct {
	Message string
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler: %s", e.Message)
}

// ReducerError wraps a panic or error raised from inside a reducer method.
// Logged and isolated per reducer; does not stop dispatch to later
// reducers.
type ReducerError struct {
	StateType  string
	ActionType string
	Err        error
}

func (e *ReducerError) Error() string {
	return fmt.Sprintf("reducer: %s handling %s: %v", e.StateType, e.ActionType, e.Err)
}

func (e *ReducerError) Unwrap() error { return e.Err }

// SnapshotError signals an unknown state-node name in a RequireState
// request. Surfaced in the reply and logged on the broker: it embeds
// meru.StateBase purely to pick up the meruObject marker, so the wire
// codec tags it with object_type and a worker can decode it back to this
// same type instead of a plain mapping.
type SnapshotError struct {
	meru.StateBase
	Code    int
	Name    string
	Message string
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("snapshot: %s: %s", e.Name, e.Message)
}

// PingTimeout signals that a snapshot-channel receive exceeded its
// timeout. Propagated to the caller, which decides retry/abort policy.
type PingTimeout struct {
	Timeout string
}

func (e *PingTimeout) Error() string {
	return fmt.Sprintf("ping timeout after %s", e.Timeout)
}
