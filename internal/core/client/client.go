// Package client wraps one accepted quiz connection: its socket, its opaque
// identity, and its outbound frame queue.
package client

import (
	"errors"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/triviad/triviad/internal/protocol"
)

var (
	// ErrClientClosed is returned by Send once the connection has been closed.
	ErrClientClosed = errors.New("client connection is closed")
	// ErrQueueFull is returned by Send when the client's outbound queue is
	// full, which the server treats as a stalled or dead client.
	ErrQueueFull = errors.New("client outbound queue is full")
)

// Client represents a user connected to the quiz service.
type Client struct {
	connection net.Conn
	ipAddr     string
	port       string

	// ID is the opaque identity assigned to the connection at accept time.
	// Sessions are keyed by it rather than by the remote address tuple,
	// which is not stable across reconnects or NAT port reuse.
	ID uuid.UUID

	queue chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient wraps an accepted connection. queueDepth bounds the number of
// encoded frames that may wait for the write loop before Send starts
// failing with ErrQueueFull.
func NewClient(connection net.Conn, queueDepth int) *Client {
	c := &Client{
		connection: connection,
		ID:         uuid.New(),
		queue:      make(chan []byte, queueDepth),
		closed:     make(chan struct{}),
	}

	host, port, err := net.SplitHostPort(connection.RemoteAddr().String())
	if err != nil {
		// Non-TCP conns (net.Pipe in tests) have opaque addresses.
		c.ipAddr = connection.RemoteAddr().String()
	} else {
		c.ipAddr = host
		c.port = port
	}
	return c
}

func (c *Client) IPAddr() string { return c.ipAddr }
func (c *Client) Port() string   { return c.port }

// Read consumes the available bytes directly from the client's connection.
func (c *Client) Read(b []byte) (int, error) {
	return c.connection.Read(b)
}

// Write sends data directly over the client's connection. Most callers
// should use Send; Write exists for the frontend's write loop.
func (c *Client) Write(b []byte) (int, error) {
	return c.connection.Write(b)
}

// Send encodes a frame and places it on the client's outbound queue, to be
// flushed in order by the frontend's write loop.
func (c *Client) Send(cmd protocol.Command, data string) error {
	raw, err := protocol.Encode(cmd, data)
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return ErrClientClosed
	case c.queue <- raw:
		return nil
	default:
		return ErrQueueFull
	}
}

// Queue returns the outbound frame queue drained by the frontend.
func (c *Client) Queue() <-chan []byte {
	return c.queue
}

// Closed is closed when the connection has been shut down.
func (c *Client) Closed() <-chan struct{} {
	return c.closed
}

// Close shuts the connection down. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.connection.Close()
	})
	return err
}
