// Package handlerreg binds action types to user-supplied handler
// callbacks and introspects each handler's parameter list to discover
// which state nodes it needs injected.
package handlerreg

import (
	"fmt"
	"iter"
	"reflect"
	"sync"

	meru "github.com/HumbleRetreat/meru"
	"github.com/HumbleRetreat/meru/errs"
	"github.com/HumbleRetreat/meru/internal/statereg"
)

var (
	actionType    = reflect.TypeOf((*meru.Action)(nil)).Elem()
	stateNodeType = reflect.TypeOf((*meru.StateNode)(nil)).Elem()
)

// entry is what a handler registration resolves to: the callback plus
// the ordered list of state-node types its signature names.
type entry struct {
	fn         reflect.Value
	stateTypes []reflect.Type
}

// Registry maps an action's concrete type to at most one handler. Handler
// registration is done through Register, which also registers every
// state-node type named in the handler's signature with states.
type Registry struct {
	mu       sync.RWMutex
	handlers map[reflect.Type]entry
	states   *statereg.Registry
}

// NewRegistry returns an empty registry backed by states for the
// state-node instances handlers declare.
func NewRegistry(states *statereg.Registry) *Registry {
	return &Registry{
		handlers: make(map[reflect.Type]entry),
		states:   states,
	}
}

// Register inspects fn's parameter list and binds it to the single
// Action-implementing parameter type it names. fn must have exactly one
// parameter whose type implements meru.Action, and zero or more further
// parameters each a distinct type implementing meru.StateNode; any other
// shape is a *errs.HandlerError. Every state-node type found is also
// registered with the state registry (via a fresh zero-value instance),
// unless one already exists there.
//
// A second registration for the same action type is itself a
// *errs.HandlerError (duplicate) unless allowOverwrite is true.
func (r *Registry) Register(fn any, allowOverwrite bool) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return &errs.HandlerError{Message: fmt.Sprintf("%T is not a function", fn)}
	}
	t := v.Type()

	var action reflect.Type
	var states []reflect.Type
	seen := make(map[reflect.Type]bool)

	for i := 0; i < t.NumIn(); i++ {
		in := t.In(i)
		switch {
		case in.Implements(actionType):
			if action != nil {
				return &errs.HandlerError{Message: fmt.Sprintf("handler %s needs exactly one action parameter, found more than one", t)}
			}
			action = in
		case in.Implements(stateNodeType):
			canonical := canonicalStateType(in)
			if seen[canonical] {
				return &errs.HandlerError{Message: fmt.Sprintf("handler %s needs one action parameter: duplicate state-node parameter %s", t, in)}
			}
			seen[canonical] = true
			states = append(states, in)
		default:
			return &errs.HandlerError{Message: fmt.Sprintf("handler %s needs one action parameter: parameter %d (%s) is neither an Action nor a StateNode", t, i, in)}
		}
	}
	if action == nil {
		return &errs.HandlerError{Message: fmt.Sprintf("handler %s needs one action parameter, found none", t)}
	}

	for _, st := range states {
		r.ensureState(st)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[action]; exists && !allowOverwrite {
		return &errs.HandlerError{Message: fmt.Sprintf("duplicate handler for action type %s", action)}
	}
	r.handlers[action] = entry{fn: v, stateTypes: states}
	return nil
}

func (r *Registry) ensureState(t reflect.Type) {
	ptrType := canonicalStateType(t)
	if _, ok := r.states.Get(ptrType); ok {
		return
	}
	node, ok := reflect.New(ptrType.Elem()).Interface().(meru.StateNode)
	if !ok {
		return
	}
	r.states.Register(node)
}

// canonicalStateType maps a handler's declared state-node parameter type
// to the pointer type statereg.Registry actually keys its singletons by.
// A handler may declare a state-node parameter by value to get a
// read-only view instead of a pointer; the registry still stores and
// registers every state node as a pointer, so value-typed parameters
// resolve through their pointer type here rather than being handed to
// reflect.Type.Elem directly.
func canonicalStateType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Ptr {
		return t
	}
	return reflect.PointerTo(t)
}

// Dispatch invokes the handler bound to action's concrete type, if any,
// passing it action followed by the current instance of each state node
// its signature named, in declared order. A handler may return:
//
//   - nothing (dispatch produces no reply),
//   - a single meru.Action (or nil),
//   - an iter.Seq[meru.Action] (a finite lazy sequence, iterated to
//     exhaustion),
//   - any of the above paired with a trailing error.
//
// Dispatch returns the actions to push back to the broker, via yield, in
// yield order. If no handler is registered for action's type, yield is
// never called and dispatch returns nil without error.
func (r *Registry) Dispatch(action meru.Action, yield func(meru.Action)) error {
	actionVal := reflect.ValueOf(action)

	r.mu.RLock()
	e, ok := r.handlers[actionVal.Type()]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	args := make([]reflect.Value, 0, len(e.stateTypes)+1)
	args = append(args, actionVal)
	for _, st := range e.stateTypes {
		node, _ := r.states.Get(canonicalStateType(st))
		nodeVal := reflect.ValueOf(node)
		if st.Kind() != reflect.Ptr {
			nodeVal = nodeVal.Elem()
		}
		args = append(args, nodeVal)
	}

	out := e.fn.Call(args)
	return deliver(out, yield)
}

func deliver(out []reflect.Value, yield func(meru.Action)) error {
	var trailingErr error
	results := out
	if n := len(out); n > 0 {
		if last := out[n-1]; last.Type().Implements(reflect.TypeOf((*error)(nil)).Elem()) {
			if e, ok := last.Interface().(error); ok && e != nil {
				trailingErr = e
			}
			results = out[:n-1]
		}
	}

	for _, rv := range results {
		if !rv.IsValid() {
			continue
		}
		iface := rv.Interface()
		if iface == nil {
			continue
		}
		switch val := iface.(type) {
		case meru.Action:
			yield(val)
		case iter.Seq[meru.Action]:
			for a := range val {
				yield(a)
			}
		}
	}
	return trailingErr
}
