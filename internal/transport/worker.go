package transport

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/HumbleRetreat/meru/errs"
)

// Pusher is the worker's fan-in endpoint: a persistent connection to the
// broker's collector port. Push is safe to call from one goroutine at a
// time (per the shared-resource model, each socket is owned by one
// task).
type Pusher struct {
	conn net.Conn
	mu   sync.Mutex
}

// DialPusher connects to the broker's ingress port via dial.
func DialPusher(dial Dialer, addr string) (*Pusher, error) {
	conn, err := dial(addr)
	if err != nil {
		return nil, err
	}
	setNoLinger(conn)
	return &Pusher{conn: conn}, nil
}

// Push sends one [topic, payload] frame.
func (p *Pusher) Push(topic, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return WriteFrame(p.conn, topic, payload)
}

// Close drops the connection.
func (p *Pusher) Close() error { return p.conn.Close() }

// Subscriber is the worker's fan-out endpoint: a persistent connection
// to the broker's publisher port, filtered by topic prefix at connect
// time. Frames arrives in collector-accepted order.
type Subscriber struct {
	conn   net.Conn
	reader *bufio.Reader
	Frames chan Frame
	errs   chan error
}

// DialSubscriber connects to the broker's egress port and sends the
// filter handshake; an empty filters list subscribes to every topic.
func DialSubscriber(dial Dialer, addr string, filters [][]byte) (*Subscriber, error) {
	conn, err := dial(addr)
	if err != nil {
		return nil, err
	}
	setNoLinger(conn)
	if err := WriteFrame(conn, filters...); err != nil {
		conn.Close()
		return nil, err
	}
	s := &Subscriber{
		conn:   conn,
		reader: bufio.NewReader(conn),
		Frames: make(chan Frame, 256),
		errs:   make(chan error, 1),
	}
	go s.drain()
	return s, nil
}

func (s *Subscriber) drain() {
	defer close(s.Frames)
	for {
		parts, err := ReadFrame(s.reader)
		if err != nil {
			s.errs <- err
			return
		}
		if len(parts) != 2 {
			continue
		}
		s.Frames <- Frame{Topic: parts[0], Payload: parts[1]}
	}
}

// Err returns the error that ended the drain loop, if any; it is safe
// to call once Frames is closed.
func (s *Subscriber) Err() error {
	select {
	case err := <-s.errs:
		return err
	default:
		return nil
	}
}

// Close drops the connection.
func (s *Subscriber) Close() error { return s.conn.Close() }

// SnapshotClient is the worker's request/reply endpoint: a persistent
// connection to the broker's snapshot port, with a bounded receive
// timeout per request.
type SnapshotClient struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
	log     zerolog.Logger
	mu      sync.Mutex
}

// DialSnapshotClient connects to the broker's snapshot port; every
// Request call after this waits at most timeout for a reply.
func DialSnapshotClient(dial Dialer, addr string, timeout time.Duration, log zerolog.Logger) (*SnapshotClient, error) {
	conn, err := dial(addr)
	if err != nil {
		return nil, err
	}
	setNoLinger(conn)
	return &SnapshotClient{conn: conn, reader: bufio.NewReader(conn), timeout: timeout, log: log}, nil
}

// Request sends payload and waits for the single-part reply. A read
// that exceeds the configured timeout returns *errs.PingTimeout. Each
// call is tagged with a request ID, logged at debug level alongside the
// reply, purely for correlating the two in logs — the synchronous,
// one-request-in-flight-per-connection protocol itself needs no
// correlation on the wire.
func (c *SnapshotClient) Request(payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	requestID := uuid.New().String()
	c.log.Debug().Str("request_id", requestID).Msg("snapshot request sent")

	if err := WriteFrame(c.conn, payload); err != nil {
		return nil, err
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}
	defer c.conn.SetReadDeadline(time.Time{})

	parts, err := ReadFrame(c.reader)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, &errs.PingTimeout{Timeout: c.timeout.String()}
		}
		return nil, err
	}
	if len(parts) != 1 {
		return nil, &errs.PingTimeout{Timeout: c.timeout.String()}
	}
	c.log.Debug().Str("request_id", requestID).Msg("snapshot reply received")
	return parts[0], nil
}

// Close drops the connection.
func (c *SnapshotClient) Close() error { return c.conn.Close() }
