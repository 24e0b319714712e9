package wire

import (
	"bufio"
	"net"
	"sync"
	"time"
)

// Conn wraps a TCP connection with frame-level reads and writes. Reads are
// single-owner (the session loop); writes are serialized by a mutex because
// broadcasts from the lobby interleave with direct replies.
type Conn struct {
	raw    net.Conn
	reader *bufio.Reader
	mu     sync.Mutex

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewConn wraps a raw TCP connection for frame I/O.
//
// Precondition: raw must be a valid, open network connection.
func NewConn(raw net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{
		raw:          raw,
		reader:       bufio.NewReaderSize(raw, 4096),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// ReadFrame reads the next inbound frame. A zero read timeout disables the
// deadline.
func (c *Conn) ReadFrame() (Kind, []byte, error) {
	if c.readTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	return ReadFrame(c.reader)
}

// WriteFrame sends one outbound frame under the write lock.
func (c *Conn) WriteFrame(kind Kind, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return WriteFrame(c.raw, kind, payload)
}

// Close closes the underlying TCP connection.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// RemoteAddr returns the remote network address of the client.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}
