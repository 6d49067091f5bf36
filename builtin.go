package meru

// TopicState is the reserved topic carried by RequireState requests.
var TopicState = []byte("state")

// TopicStateUpdate is the reserved topic carried by StateUpdate replies.
var TopicStateUpdate = []byte("StateUpdate")

// RequireState is sent by a worker over the snapshot channel to ask the
// broker for the current instances of the named state-node types. Names
// are fully-qualified (package + type), resolved against the requester's
// own type registry once the reply arrives.
type RequireState struct {
	Base
	Nodes []string `json:"nodes"`
}

// NewRequireState builds a RequireState action addressed with the
// reserved "state" topic.
func NewRequireState(origin string, nodes []string) *RequireState {
	return New(origin, TopicState, &RequireState{Nodes: nodes})
}

// StateUpdate is the broker's reply to RequireState: the live state-node
// instances it currently holds for the requested names. Nodes travel as
// the StateNode interface so the wire codec can resolve each one's own
// "object_type" tag independently (they are not required to share a
// type).
type StateUpdate struct {
	Base
	Nodes []StateNode `json:"nodes"`
}

// NewStateUpdate builds a StateUpdate action addressed with the reserved
// "StateUpdate" topic.
func NewStateUpdate(origin string, nodes []StateNode) *StateUpdate {
	return New(origin, TopicStateUpdate, &StateUpdate{Nodes: nodes})
}

// Ping is an empty liveness probe sent by a worker on the snapshot
// channel; the broker replies with Pong addressed to the sender's
// identity.
type Ping struct {
	Base
}

// NewPing builds a Ping action.
func NewPing(origin string) *Ping {
	return New(origin, nil, &Ping{})
}

// Pong is the broker's reply to Ping.
type Pong struct {
	Base
}

// NewPong builds a Pong action.
func NewPong(origin string) *Pong {
	return New(origin, nil, &Pong{})
}
