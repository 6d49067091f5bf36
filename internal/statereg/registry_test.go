package statereg

import (
	"testing"

	"github.com/rs/zerolog"

	meru "github.com/HumbleRetreat/meru"
)

type setField struct {
	meru.Base
	Value string
}

func newSetField(value string) *setField {
	return meru.New("t", nil, &setField{Value: value})
}

type clearField struct {
	meru.Base
}

func newClearField() *clearField {
	return meru.New("t", nil, &clearField{})
}

type fooState struct {
	meru.StateBase
	Field string
}

type explodingState struct {
	meru.StateBase
}

func silentLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

// TestDispatchRunsMatchingReducer checks the basic reducer path:
// dispatching SetField("v") must leave FooState.Field == "v".
func TestDispatchRunsMatchingReducer(t *testing.T) {
	r := NewRegistry(silentLogger())
	state := r.Register(&fooState{}).(*fooState)
	RegisterReducer[*fooState, *setField](r, func(s *fooState, a meru.Action) {
		s.Field = a.(*setField).Value
	})

	r.Dispatch(newSetField("v"))

	if state.Field != "v" {
		t.Errorf("Field = %q, want %q", state.Field, "v")
	}
}

// TestRegisterReducerBindsTaggedUnion covers the tagged-union case: the
// same reducer function is bound to two distinct action types, each via
// its own RegisterReducer call, and must fire for either one.
func TestRegisterReducerBindsTaggedUnion(t *testing.T) {
	r := NewRegistry(silentLogger())
	state := r.Register(&fooState{Field: "start"}).(*fooState)

	onEdit := func(s *fooState, a meru.Action) {
		switch action := a.(type) {
		case *setField:
			s.Field = action.Value
		case *clearField:
			s.Field = ""
		}
	}
	RegisterReducer[*fooState, *setField](r, onEdit)
	RegisterReducer[*fooState, *clearField](r, onEdit)

	r.Dispatch(newSetField("v"))
	if state.Field != "v" {
		t.Fatalf("after SetField, Field = %q, want %q", state.Field, "v")
	}

	r.Dispatch(newClearField())
	if state.Field != "" {
		t.Errorf("after ClearField, Field = %q, want empty", state.Field)
	}
}

// TestRegisterIsSingletonPerType checks property 3: a second Register
// call for an already-registered type returns the first instance rather
// than replacing it.
func TestRegisterIsSingletonPerType(t *testing.T) {
	r := NewRegistry(silentLogger())
	first := r.Register(&fooState{Field: "first"})
	second := r.Register(&fooState{Field: "second"})

	if first != second {
		t.Fatalf("second Register returned a different instance")
	}
	if second.(*fooState).Field != "first" {
		t.Errorf("Field = %q, want %q (first registration wins)", second.(*fooState).Field, "first")
	}
}

// TestDispatchIsolatesReducerPanics checks that a panicking reducer on
// one state node does not prevent dispatch from reaching the others.
func TestDispatchIsolatesReducerPanics(t *testing.T) {
	r := NewRegistry(silentLogger())
	r.Register(&explodingState{})
	RegisterReducer[*explodingState, *setField](r, func(s *explodingState, a meru.Action) {
		panic("boom")
	})
	healthy := r.Register(&fooState{}).(*fooState)
	RegisterReducer[*fooState, *setField](r, func(s *fooState, a meru.Action) {
		s.Field = a.(*setField).Value
	})

	r.Dispatch(newSetField("v"))

	if healthy.Field != "v" {
		t.Errorf("healthy state node did not observe the action after a sibling reducer panicked")
	}
}

// TestByNameResolvesSimpleTypeName checks the lookup RequireState relies
// on: the simple type name matches the registered type.
func TestByNameResolvesSimpleTypeName(t *testing.T) {
	r := NewRegistry(silentLogger())
	r.Register(&fooState{})

	node, ok := r.ByName("fooState")
	if !ok {
		t.Fatal("ByName(fooState) found nothing")
	}
	if _, ok := node.(*fooState); !ok {
		t.Fatalf("ByName(fooState) returned %T", node)
	}
}

type stateA struct {
	meru.StateBase
}

type stateB struct {
	meru.StateBase
}

type stateC struct {
	meru.StateBase
}

// TestAllPreservesRegistrationOrder checks that distinct state-node
// types accumulate in the registry in the order they were registered.
func TestAllPreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry(silentLogger())
	r.Register(&stateA{})
	r.Register(&stateB{})
	r.Register(&stateC{})

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("All() returned %d nodes, want 3", len(all))
	}
	if _, ok := all[0].(*stateA); !ok {
		t.Errorf("All()[0] = %T, want *stateA", all[0])
	}
	if _, ok := all[2].(*stateC); !ok {
		t.Errorf("All()[2] = %T, want *stateC", all[2])
	}
}
