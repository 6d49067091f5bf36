package meru

// StateNode is the abstract supertype of every mutable record holding a
// slice of globally shared state. Reducers that mutate a state node in
// response to one or more action types are bound to it explicitly via
// internal/statereg.RegisterReducer, not discovered from its methods;
// handlers never mutate state nodes directly.
//
// Each concrete StateNode type is instantiated at most once per process
// (singleton per process, enforced by internal/statereg.Registry).
type StateNode interface {
	MeruObject
}

// StateBase is embedded (anonymously, by value) in every concrete
// StateNode type. It carries no fields of its own today — state nodes are
// plain records — but gives every state node the meruObject marker method
// without per-type boilerplate, exactly like Base does for Action.
type StateBase struct{}

func (StateBase) meruObject() {}
