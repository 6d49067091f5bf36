package transport

import (
	"bufio"
	"net"
	"sync"

	"github.com/rs/zerolog"
)

// Frame is one ingested or published action in its still-encoded form:
// the topic it carries and its wire payload.
type Frame struct {
	Topic   []byte
	Payload []byte
}

// Collector is the broker's fan-in endpoint: it binds the ingress port
// and accepts pusher connections, decoding nothing itself — each
// accepted frame is handed to the relay loop over Frames.
type Collector struct {
	listener net.Listener
	Frames   chan Frame
	log      zerolog.Logger
}

// NewCollector binds addr and returns a Collector whose Frames channel
// starts filling as soon as Serve runs.
func NewCollector(addr string, log zerolog.Logger) (*Collector, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Collector{listener: ln, Frames: make(chan Frame, 256), log: log}, nil
}

// Serve accepts connections until the listener is closed.
func (c *Collector) Serve() {
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			return
		}
		setNoLinger(conn)
		go c.drain(conn)
	}
}

func (c *Collector) drain(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		parts, err := ReadFrame(r)
		if err != nil {
			return
		}
		if len(parts) != 2 {
			c.log.Warn().Int("parts", len(parts)).Msg("collector: dropping malformed frame")
			continue
		}
		c.Frames <- Frame{Topic: parts[0], Payload: parts[1]}
	}
}

// Close stops accepting new connections.
func (c *Collector) Close() error { return c.listener.Close() }

// Addr returns the address the collector is listening on.
func (c *Collector) Addr() string { return c.listener.Addr().String() }

// Publisher is the broker's fan-out endpoint: it binds the egress port,
// accepts subscriber connections, and broadcasts Publish calls to every
// connection whose declared topic-prefix filters accept the frame's
// topic (an empty filter list accepts every topic).
type Publisher struct {
	listener net.Listener
	log      zerolog.Logger

	mu    sync.Mutex
	conns map[net.Conn][][]byte
}

// NewPublisher binds addr and starts accepting subscriber connections.
func NewPublisher(addr string, log zerolog.Logger) (*Publisher, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Publisher{listener: ln, log: log, conns: make(map[net.Conn][][]byte)}, nil
}

// Serve accepts connections until the listener is closed. Each new
// connection's first frame is its filter handshake: zero or more topic
// prefixes (zero means "subscribe to everything").
func (p *Publisher) Serve() {
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			return
		}
		setNoLinger(conn)
		go p.handshake(conn)
	}
}

func (p *Publisher) handshake(conn net.Conn) {
	filters, err := ReadFrame(bufio.NewReader(conn))
	if err != nil {
		conn.Close()
		return
	}
	p.mu.Lock()
	p.conns[conn] = filters
	p.mu.Unlock()

	// Subscribers never send again; block on a read so we notice
	// disconnects and stop broadcasting to a dead socket.
	buf := make([]byte, 1)
	_, _ = conn.Read(buf)

	p.mu.Lock()
	delete(p.conns, conn)
	p.mu.Unlock()
	conn.Close()
}

// Publish broadcasts frame to every connection whose filters accept
// topic. Send errors are logged and the offending connection is dropped.
// Writes go to one connection after another on the calling goroutine
// with no write deadline, so a subscriber that stops reading holds up
// delivery to the connections after it until its write fails.
func (p *Publisher) Publish(topic, payload []byte) {
	p.mu.Lock()
	targets := make(map[net.Conn][][]byte, len(p.conns))
	for conn, filters := range p.conns {
		targets[conn] = filters
	}
	p.mu.Unlock()

	for conn, filters := range targets {
		if !accepts(filters, topic) {
			continue
		}
		if err := WriteFrame(conn, topic, payload); err != nil {
			p.log.Warn().Err(err).Msg("publisher: dropping subscriber after write error")
			p.mu.Lock()
			delete(p.conns, conn)
			p.mu.Unlock()
			conn.Close()
		}
	}
}

func accepts(filters [][]byte, topic []byte) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if len(topic) >= len(f) && string(topic[:len(f)]) == string(f) {
			return true
		}
	}
	return false
}

// Addr returns the address the publisher is listening on.
func (p *Publisher) Addr() string { return p.listener.Addr().String() }

// Close stops accepting new connections and drops every subscriber.
func (p *Publisher) Close() error {
	p.mu.Lock()
	for conn := range p.conns {
		conn.Close()
	}
	p.mu.Unlock()
	return p.listener.Close()
}

// SnapshotHandler answers one request payload with a reply payload.
type SnapshotHandler func(request []byte) []byte

// SnapshotServer is the broker's 1:1 request/reply endpoint: it binds
// the snapshot port and answers each request on the same connection it
// arrived on, synchronously, in arrival order per connection (identity
// is implicit in which TCP connection sent the request, replacing the
// router-socket model's explicit identity frame).
type SnapshotServer struct {
	listener net.Listener
	handler  SnapshotHandler
	log      zerolog.Logger
}

// NewSnapshotServer binds addr, dispatching every request to handler.
func NewSnapshotServer(addr string, handler SnapshotHandler, log zerolog.Logger) (*SnapshotServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &SnapshotServer{listener: ln, handler: handler, log: log}, nil
}

// Serve accepts connections until the listener is closed.
func (s *SnapshotServer) Serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		setNoLinger(conn)
		go s.loop(conn)
	}
}

func (s *SnapshotServer) loop(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		parts, err := ReadFrame(r)
		if err != nil {
			return
		}
		if len(parts) != 1 {
			s.log.Warn().Int("parts", len(parts)).Msg("snapshot server: dropping malformed request")
			continue
		}
		reply := s.handler(parts[0])
		if err := WriteFrame(conn, reply); err != nil {
			return
		}
	}
}

// Close stops accepting new connections.
func (s *SnapshotServer) Close() error { return s.listener.Close() }

// Addr returns the address the snapshot server is listening on.
func (s *SnapshotServer) Addr() string { return s.listener.Addr().String() }
