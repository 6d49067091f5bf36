// Package transport implements the six socket roles of the messaging
// fabric (collector, publisher, snapshot server on the broker side;
// pusher, subscriber, snapshot client on the worker side) over plain
// TCP. Every connection carries a sequence of length-prefixed,
// multipart frames — the same shape a pub/sub or push/pull socket from
// a message-queue library would hand the application, hand-rolled here
// since no such client is wired into this module.
package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

const maxFrameParts = 8
const maxPartSize = 64 << 20 // 64MiB guard against a corrupt length prefix

// WriteFrame writes parts as one frame: a one-byte part count, then the
// length of every part as a uint32 big-endian, then the bytes of every
// part in order.
func WriteFrame(w io.Writer, parts ...[]byte) error {
	if len(parts) > maxFrameParts {
		return fmt.Errorf("transport: invalid frame part count %d", len(parts))
	}
	header := make([]byte, 1+4*len(parts))
	header[0] = byte(len(parts))
	for i, p := range parts {
		binary.BigEndian.PutUint32(header[1+4*i:], uint32(len(p)))
	}
	if _, err := w.Write(header); err != nil {
		return err
	}
	for _, p := range parts {
		if len(p) == 0 {
			continue
		}
		if _, err := w.Write(p); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrame reads one frame written by WriteFrame.
func ReadFrame(r io.Reader) ([][]byte, error) {
	var countBuf [1]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, err
	}
	count := int(countBuf[0])
	if count > maxFrameParts {
		return nil, fmt.Errorf("transport: invalid frame part count %d", count)
	}
	if count == 0 {
		return [][]byte{}, nil
	}

	lens := make([]uint32, count)
	lenBuf := make([]byte, 4*count)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, err
	}
	for i := range lens {
		lens[i] = binary.BigEndian.Uint32(lenBuf[4*i:])
		if lens[i] > maxPartSize {
			return nil, fmt.Errorf("transport: frame part %d too large (%d bytes)", i, lens[i])
		}
	}

	parts := make([][]byte, count)
	for i, l := range lens {
		if l == 0 {
			parts[i] = []byte{}
			continue
		}
		buf := make([]byte, l)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		parts[i] = buf
	}
	return parts, nil
}

// setNoLinger configures conn to drop rather than flush-and-block on
// Close, so an abrupt shutdown never hangs waiting on a slow peer.
func setNoLinger(conn net.Conn) {
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetLinger(0)
	}
}
