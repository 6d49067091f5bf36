// Package wire implements the self-describing wire codec and the type
// registry that backs it: encode/decode of MeruObject records keyed by a
// type-tag string, with two interchangeable backends (JSON, MessagePack).
package wire

import (
	"fmt"
	"sync"

	"github.com/HumbleRetreat/meru/errs"
)

// Constructor returns a fresh pointer to the zero value of a registered
// MeruObject type, e.g. func() any { return &FooState{} }.
type Constructor func() any

// Registration pairs a type tag with its constructor. Go cannot
// enumerate types in a package at runtime the way a dynamic language can
// scan live module objects for subclasses, so Registration is the
// explicit stand-in a caller builds once at startup.
type Registration struct {
	Tag string
	New Constructor
}

// Registry is a process-wide mapping from type tag (a record's simple
// type name) to its constructor. Two types sharing a tag is a collision,
// rejected at registration time.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register adds a single tag/constructor pair. A second registration of
// the same tag is a *errs.RegistryError (duplicate tag); it never
// overwrites the first.
func (r *Registry) Register(tag string, ctor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ctors[tag]; exists {
		return &errs.RegistryError{Tag: tag, Message: "duplicate tag"}
	}
	r.ctors[tag] = ctor
	return nil
}

// Discover registers every entry in regs, the Go-native stand-in for
// scanning a set of module paths for Action/StateNode subclasses. It
// stops at the first collision.
func (r *Registry) Discover(regs ...Registration) error {
	for _, reg := range regs {
		if err := r.Register(reg.Tag, reg.New); err != nil {
			return err
		}
	}
	return nil
}

// New constructs a fresh instance for tag. Unknown tag is a
// *errs.RegistryError.
func (r *Registry) New(tag string) (any, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, &errs.RegistryError{Tag: tag, Message: "unknown tag"}
	}
	return ctor(), nil
}

// Has reports whether tag is registered.
func (r *Registry) Has(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ctors[tag]
	return ok
}

// Tags returns every registered tag, for diagnostics.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ctors))
	for tag := range r.ctors {
		out = append(out, tag)
	}
	return out
}

func (r *Registry) String() string {
	return fmt.Sprintf("wire.Registry{%d tags}", len(r.Tags()))
}
