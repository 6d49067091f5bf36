// Package statereg holds the live, per-process singleton instances of
// every registered state-node type and dispatches incoming actions to
// their reducers.
//
// Reducers are bound with RegisterReducer, an explicit call naming the
// state-node type and the action type it reacts to, rather than
// discovered by scanning a state node's methods by signature: a tagged
// union of several action types sharing one reducer is simply one
// RegisterReducer call per member type, each naming the same function.
package statereg

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/rs/zerolog"

	meru "github.com/HumbleRetreat/meru"
	"github.com/HumbleRetreat/meru/errs"
)

// Registry owns one instance per registered state-node type and applies
// the action stream to all of them in registration order.
type Registry struct {
	mu       sync.Mutex
	order    []reflect.Type
	states   map[reflect.Type]meru.StateNode
	reducers map[reflect.Type][]reducerEntry
	log      zerolog.Logger
}

// reducerEntry binds one action type to a reducer function for whichever
// state-node type it's filed under in Registry.reducers.
type reducerEntry struct {
	actionType reflect.Type
	fn         func(node meru.StateNode, action meru.Action) error
}

// NewRegistry returns an empty registry that logs through log.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		states:   make(map[reflect.Type]meru.StateNode),
		reducers: make(map[reflect.Type][]reducerEntry),
		log:      log,
	}
}

// RegisterReducer binds fn to run on the singleton instance of state-node
// type S whenever an action of type A is dispatched, in addition to
// (not replacing) any reducer already bound to the same (S, A) pair. fn
// takes the dispatched action as a plain meru.Action rather than the
// concrete A, so the same fn value can be registered against several
// action types to implement a tagged-union reducer:
//
//	onEdit := func(s *FooState, a meru.Action) { ... }
//	statereg.RegisterReducer[*FooState, *SetField](r, onEdit)
//	statereg.RegisterReducer[*FooState, *ClearField](r, onEdit)
//
// S need not already be registered with Register; the binding is looked
// up by type at Dispatch time.
func RegisterReducer[S meru.StateNode, A meru.Action](r *Registry, fn func(state S, action meru.Action)) {
	var s S
	var a A
	stateType := reflect.TypeOf(s)
	actionType := reflect.TypeOf(a)

	wrapped := func(node meru.StateNode, action meru.Action) (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		fn(node.(S), action)
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.reducers[stateType] = append(r.reducers[stateType], reducerEntry{actionType: actionType, fn: wrapped})
}

// Register adds node as the singleton for its concrete type, unless one
// is already registered: the first registration wins, and every
// subsequent one is a logged warning rather than an error, since a
// process may register the same state node from several handler
// signatures. Returns the instance now live in the registry, which is
// node itself on first registration.
func (r *Registry) Register(node meru.StateNode) meru.StateNode {
	t := reflect.TypeOf(node)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.states[t]; ok {
		r.log.Warn().Str("state_type", t.String()).Msg("state node already registered, keeping first instance")
		return existing
	}
	r.states[t] = node
	r.order = append(r.order, t)
	return node
}

// Get returns the live instance for t, if registered.
func (r *Registry) Get(t reflect.Type) (meru.StateNode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.states[t]
	return n, ok
}

// ByName resolves a state node by its registry tag (simple type name),
// used to answer RequireState requests whose node names arrive as plain
// strings.
func (r *Registry) ByName(name string) (meru.StateNode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for t, n := range r.states {
		if t.Elem().Name() == name {
			return n, true
		}
	}
	return nil, false
}

// All returns every registered instance, in registration order.
func (r *Registry) All() []meru.StateNode {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]meru.StateNode, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.states[t])
	}
	return out
}

// Replace swaps the live instance for node's concrete type, used when a
// RequireState reply arrives with a fresher snapshot than the process's
// zero-value bootstrap instance.
func (r *Registry) Replace(node meru.StateNode) {
	t := reflect.TypeOf(node)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.states[t]; !ok {
		r.order = append(r.order, t)
	}
	r.states[t] = node
}

// Dispatch invokes every reducer bound (via RegisterReducer) to a
// registered state node's type and matching action's concrete type, in
// registration order. A reducer that panics is isolated: the panic is
// wrapped as *errs.ReducerError, logged, and dispatch continues with the
// remaining reducers.
func (r *Registry) Dispatch(action meru.Action) {
	r.mu.Lock()
	order := make([]reflect.Type, len(r.order))
	copy(order, r.order)
	r.mu.Unlock()

	actionType := reflect.TypeOf(action)

	for _, t := range order {
		r.mu.Lock()
		node := r.states[t]
		entries := append([]reducerEntry(nil), r.reducers[t]...)
		r.mu.Unlock()
		if node == nil {
			continue
		}
		for _, re := range entries {
			if re.actionType != actionType {
				continue
			}
			if err := re.fn(node, action); err != nil {
				wrapped := &errs.ReducerError{StateType: t.String(), ActionType: actionType.String(), Err: err}
				r.log.Error().Err(wrapped).Str("state_type", t.String()).Msg("reducer failed")
			}
		}
	}
}
