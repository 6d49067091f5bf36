// Package worker implements the per-process client: it registers
// states and handlers, consumes the broker's action stream, derives
// state changes, and requests a snapshot on startup so its view
// converges with every other worker's before it joins the live stream.
package worker

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	meru "github.com/HumbleRetreat/meru"
	"github.com/HumbleRetreat/meru/errs"
	"github.com/HumbleRetreat/meru/internal/handlerreg"
	"github.com/HumbleRetreat/meru/internal/statereg"
	"github.com/HumbleRetreat/meru/internal/transport"
	"github.com/HumbleRetreat/meru/internal/wire"
)

// Addrs bundles the three broker addresses ("host:port") a worker
// connects to.
type Addrs struct {
	Collector string
	Publisher string
	Snapshot  string
}

// Worker embeds the type, handler, and state registries and owns the
// three socket connections to the broker.
type Worker struct {
	origin   string
	codec    *wire.Codec
	states   *statereg.Registry
	handlers *handlerreg.Registry

	dial  transport.Dialer
	addrs Addrs

	snapshotTimeout time.Duration
	pingInterval    time.Duration

	pusher     *transport.Pusher
	subscriber *transport.Subscriber
	snapClient *transport.SnapshotClient

	log zerolog.Logger

	stop chan struct{}
}

// Config bundles the values New needs beyond the registries, so worker
// construction doesn't depend on internal/config directly.
type Config struct {
	Origin          string
	Addrs           Addrs
	Dial            transport.Dialer
	SnapshotTimeout time.Duration
	PingInterval    time.Duration
}

// New builds a worker bound to cfg, backed by codec, states, and
// handlers. It does not open any sockets yet; call Start for that.
func New(cfg Config, codec *wire.Codec, states *statereg.Registry, handlers *handlerreg.Registry, log zerolog.Logger) *Worker {
	dial := cfg.Dial
	if dial == nil {
		dial = transport.DirectDialer()
	}
	pingInterval := cfg.PingInterval
	if pingInterval == 0 {
		pingInterval = 10 * time.Second
	}
	return &Worker{
		origin:          cfg.Origin,
		codec:           codec,
		states:          states,
		handlers:        handlers,
		dial:            dial,
		addrs:           cfg.Addrs,
		snapshotTimeout: cfg.SnapshotTimeout,
		pingInterval:    pingInterval,
		log:             log,
		stop:            make(chan struct{}),
	}
}

// Start opens the pusher, subscriber, and snapshot client, requests a
// snapshot of every currently-registered state-node type, and replaces
// each local instance with what the broker returns. A snapshot timeout
// is returned as *errs.PingTimeout.
func (w *Worker) Start(topicFilters [][]byte) error {
	pusher, err := transport.DialPusher(w.dial, w.addrs.Collector)
	if err != nil {
		return err
	}
	w.pusher = pusher

	subscriber, err := transport.DialSubscriber(w.dial, w.addrs.Publisher, topicFilters)
	if err != nil {
		pusher.Close()
		return err
	}
	w.subscriber = subscriber

	snapTimeout := w.snapshotTimeout
	if snapTimeout == 0 {
		snapTimeout = 4 * time.Second
	}
	snapClient, err := transport.DialSnapshotClient(w.dial, w.addrs.Snapshot, snapTimeout, w.log)
	if err != nil {
		pusher.Close()
		subscriber.Close()
		return err
	}
	w.snapClient = snapClient

	return w.bootstrapState()
}

// bootstrapState sends RequireState for every locally registered
// state-node type and applies the reply, replacing each local instance
// wholesale.
func (w *Worker) bootstrapState() error {
	nodes := w.states.All()
	if len(nodes) == 0 {
		return nil
	}

	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, fmt.Sprintf("%T", n))
	}

	reqBuf, err := w.codec.Encode(meru.NewRequireState(w.origin, names))
	if err != nil {
		return err
	}
	replyBuf, err := w.snapClient.Request(reqBuf)
	if err != nil {
		return err
	}
	obj, err := w.codec.Decode(replyBuf)
	if err != nil {
		return err
	}
	if snapErr, ok := obj.(*errs.SnapshotError); ok {
		return snapErr
	}
	update, ok := obj.(*meru.StateUpdate)
	if !ok {
		return &errs.DecodeError{Message: "snapshot reply was not a StateUpdate"}
	}
	for _, node := range update.Nodes {
		w.states.Replace(node)
	}
	return nil
}

// Run enters the cooperative loop: dispatching subscriber frames
// through reducers and handlers, pushing handler output back through
// the pusher, and sending a liveness Ping every pingInterval. It blocks
// until Stop is called, the subscriber connection ends, or a Ping fails
// (its error is returned).
func (w *Worker) Run() error {
	ticker := time.NewTicker(w.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return nil
		case frame, ok := <-w.subscriber.Frames:
			if !ok {
				return w.subscriber.Err()
			}
			w.dispatch(frame)
		case <-ticker.C:
			if err := w.ping(); err != nil {
				return err
			}
		}
	}
}

// Stop ends the run loop and closes every socket with zero linger.
func (w *Worker) Stop() {
	close(w.stop)
	if w.pusher != nil {
		w.pusher.Close()
	}
	if w.subscriber != nil {
		w.subscriber.Close()
	}
	if w.snapClient != nil {
		w.snapClient.Close()
	}
}

// Emit pushes action to the broker directly, outside the handler-reply
// path. This is how the first action in a chain reaches the system (a
// CLI command, an HTTP handler, a timer — anything outside the core);
// the worker never dispatches an emitted action to its own handlers,
// only actions the broker relays back.
func (w *Worker) Emit(action meru.Action) error {
	buf, err := w.codec.Encode(action)
	if err != nil {
		return err
	}
	return w.pusher.Push(action.GetTopic(), buf)
}

func (w *Worker) dispatch(frame transport.Frame) {
	obj, err := w.codec.Decode(frame.Payload)
	if err != nil {
		w.log.Warn().Err(err).Msg("worker: dropping frame with undecodable payload")
		return
	}
	action, ok := obj.(meru.Action)
	if !ok {
		w.log.Warn().Msg("worker: dropping decoded payload that is not an Action")
		return
	}

	w.states.Dispatch(action)

	err = w.handlers.Dispatch(action, func(reply meru.Action) {
		w.push(reply)
	})
	if err != nil {
		w.log.Error().Err(err).Msg("worker: handler returned an error")
	}
}

func (w *Worker) push(action meru.Action) {
	buf, err := w.codec.Encode(action)
	if err != nil {
		w.log.Error().Err(err).Msg("worker: failed to encode handler output")
		return
	}
	if err := w.pusher.Push(action.GetTopic(), buf); err != nil {
		w.log.Error().Err(err).Msg("worker: failed to push handler output")
	}
}

func (w *Worker) ping() error {
	buf, err := w.codec.Encode(meru.NewPing(w.origin))
	if err != nil {
		return err
	}
	replyBuf, err := w.snapClient.Request(buf)
	if err != nil {
		return err
	}
	obj, err := w.codec.Decode(replyBuf)
	if err != nil {
		return err
	}
	if _, ok := obj.(*meru.Pong); !ok {
		return &errs.PingTimeout{Timeout: "unexpected reply to Ping"}
	}
	return nil
}
