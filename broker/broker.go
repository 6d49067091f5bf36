// Package broker runs the three concurrent tasks that make up the
// messaging fabric's central process: relay (fan-in to fan-out), the
// snapshot-reply service, and liveness.
package broker

import (
	"fmt"

	"github.com/rs/zerolog"

	meru "github.com/HumbleRetreat/meru"
	"github.com/HumbleRetreat/meru/errs"
	"github.com/HumbleRetreat/meru/internal/statereg"
	"github.com/HumbleRetreat/meru/internal/transport"
	"github.com/HumbleRetreat/meru/internal/wire"
)

// Broker owns the collector, publisher, and snapshot server, plus its
// own state replica so it can answer snapshot requests.
type Broker struct {
	collector *transport.Collector
	publisher *transport.Publisher
	snapshot  *transport.SnapshotServer

	codec  *wire.Codec
	states *statereg.Registry
	log    zerolog.Logger

	done chan struct{}
}

// New binds the collector, publisher, and snapshot ports. states should
// already have every expected state-node type registered with its
// default instance, from Discover-time registration.
func New(bindAddress string, ports Ports, codec *wire.Codec, states *statereg.Registry, log zerolog.Logger) (*Broker, error) {
	b := &Broker{codec: codec, states: states, log: log, done: make(chan struct{})}

	collector, err := transport.NewCollector(fmt.Sprintf("%s:%d", bindAddress, ports.Collector), log)
	if err != nil {
		return nil, err
	}
	b.collector = collector

	publisher, err := transport.NewPublisher(fmt.Sprintf("%s:%d", bindAddress, ports.Publisher), log)
	if err != nil {
		collector.Close()
		return nil, err
	}
	b.publisher = publisher

	snapshot, err := transport.NewSnapshotServer(fmt.Sprintf("%s:%d", bindAddress, ports.Snapshot), b.handleSnapshotRequest, log)
	if err != nil {
		collector.Close()
		publisher.Close()
		return nil, err
	}
	b.snapshot = snapshot

	return b, nil
}

// Ports bundles the three fixed TCP ports the broker binds. A port of 0
// binds an ephemeral port, useful for tests; read the actual addresses
// back with Addrs.
type Ports struct {
	Collector int
	Publisher int
	Snapshot  int
}

// Addrs returns the addresses actually bound for the collector,
// publisher, and snapshot sockets.
func (b *Broker) Addrs() (collector, publisher, snapshot string) {
	return b.collector.Addr(), b.publisher.Addr(), b.snapshot.Addr()
}

// Run starts all three tasks and blocks until Shutdown is called.
func (b *Broker) Run() {
	go b.collector.Serve()
	go b.publisher.Serve()
	go b.snapshot.Serve()
	go b.relay()
	<-b.done
}

// Shutdown unblocks Run and closes the three listening sockets and every
// subscriber connection on the publisher. Connections already accepted
// by the collector and the snapshot server stay open, and the relay
// goroutine keeps waiting on the collector's Frames channel; Shutdown
// does not stop them.
func (b *Broker) Shutdown() {
	close(b.done)
	b.collector.Close()
	b.publisher.Close()
	b.snapshot.Close()
}

// relay is the canonical ordering point: every action accepted by the
// collector is applied to the broker's own state replica and then
// re-published, in acceptance order, with the same topic. No
// deduplication, no reordering.
func (b *Broker) relay() {
	for frame := range b.collector.Frames {
		obj, err := b.codec.Decode(frame.Payload)
		if err != nil {
			b.log.Warn().Err(err).Msg("relay: dropping frame with undecodable payload")
			continue
		}
		action, ok := obj.(meru.Action)
		if !ok {
			b.log.Warn().Msg("relay: dropping decoded payload that is not an Action")
			continue
		}

		b.states.Dispatch(action)

		b.publisher.Publish(frame.Topic, frame.Payload)
	}
}

// handleSnapshotRequest answers a RequireState or Ping request arriving
// on the snapshot server, synchronously on the connection's own
// goroutine. Snapshots are non-transactional: each node is read
// independently, and the relay may advance state between reads.
func (b *Broker) handleSnapshotRequest(request []byte) []byte {
	obj, err := b.codec.Decode(request)
	if err != nil {
		return b.encodeOrEmpty(&errs.SnapshotError{Message: err.Error()})
	}

	switch req := obj.(type) {
	case *meru.Ping:
		return b.encodeOrEmpty(meru.NewPong(req.GetOrigin()))
	case *meru.RequireState:
		nodes := make([]meru.StateNode, 0, len(req.Nodes))
		for _, name := range req.Nodes {
			node, ok := b.states.ByName(simpleName(name))
			if !ok {
				b.log.Warn().Str("name", name).Msg("snapshot: unknown state-node name requested")
				return b.encodeOrEmpty(&errs.SnapshotError{Name: name, Message: "unknown state-node name"})
			}
			nodes = append(nodes, node)
		}
		return b.encodeOrEmpty(meru.NewStateUpdate("broker", nodes))
	default:
		return b.encodeOrEmpty(&errs.SnapshotError{Message: "request is neither RequireState nor Ping"})
	}
}

func (b *Broker) encodeOrEmpty(obj any) []byte {
	buf, err := b.codec.Encode(obj)
	if err != nil {
		b.log.Error().Err(err).Msg("snapshot: failed to encode reply")
		return []byte{}
	}
	return buf
}

// simpleName strips a fully-qualified state-node name down to its
// simple type, the registry's lookup key (RequireState carries
// fully-qualified names per spec; the registry resolves by simple name
// tag, same as wire encoding).
func simpleName(fullyQualified string) string {
	name := fullyQualified
	for len(name) > 0 && name[0] == '*' {
		name = name[1:]
	}
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return name
}
