package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/triviad/triviad/internal/core"
	"github.com/triviad/triviad/internal/core/client"
	tdebug "github.com/triviad/triviad/internal/core/debug"
)

// readBufferSize is the most bytes a client may send in one frame. The
// protocol's length field tops out at 9999 data bytes but clients are
// expected to stay well under the buffer; anything split across reads is
// treated as a malformed frame.
const readBufferSize = 1024

// frontend implements the concurrent client connection logic.
//
// Data is read from any connected clients and passed to a backend instance, abstracting
// the lower level connection details away from the Backends.
type frontend struct {
	Address string
	Backend Backend
	Config  *core.Config
	Logger  *logrus.Logger

	mu               sync.Mutex
	connectedClients map[uuid.UUID]*client.Client

	listener *net.TCPListener
}

// Start initializes the server backend and opens a TCP socket for the specified server.
// A blocking loop for accepting client connections is spun off in its own goroutine and
// added to the WaitGroup. Context cancellations will stop the server.
func (f *frontend) Start(ctx context.Context, wg *sync.WaitGroup) error {
	if err := f.Backend.Init(ctx); err != nil {
		return fmt.Errorf("error initializing %s server: %v", f.Backend.Identifier(), err)
	}

	if err := f.createSocket(); err != nil {
		return fmt.Errorf("error creating socket on %s: %v", f.Address, err)
	}

	f.connectedClients = make(map[uuid.UUID]*client.Client)

	wg.Add(1)
	go f.startBlockingLoop(ctx, wg)

	return nil
}

// createSocket opens a TCP socket to listen for client connections on the Address
// provided to the frontend.
func (f *frontend) createSocket() error {
	hostAddr, err := net.ResolveTCPAddr("tcp", f.Address)
	if err != nil {
		return fmt.Errorf("error resolving address %s", err.Error())
	}

	socket, err := net.ListenTCP("tcp", hostAddr)
	if err != nil {
		return fmt.Errorf("error listening on socket: %s", err.Error())
	}

	f.listener = socket
	return nil
}

// ListenAddr returns the address the frontend is actually listening on,
// which differs from Address when port 0 was requested.
func (f *frontend) ListenAddr() net.Addr {
	return f.listener.Addr()
}

// startBlockingLoop implements a connection handling loop that's purely responsible for
// accepting new connections and spinning off goroutines for the Backend to handle them.
func (f *frontend) startBlockingLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	f.Logger.Printf("[%s] waiting for connections on %v", f.Backend.Identifier(), f.ListenAddr())

	connections := make(chan *net.TCPConn)
	go func() {
		for {
			// Poll until we can accept more clients.
			for f.clientCount() >= f.Config.MaxConnections {
				time.Sleep(10 * time.Second)
			}

			connection, err := f.listener.AcceptTCP()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					close(connections)
					return
				}
				f.Logger.Warnf("failed to accept connection: %s", err.Error())
				continue
			}

			connections <- connection
		}
	}()

	clientWg := &sync.WaitGroup{}
handleLoop:
	for {
		select {
		case <-ctx.Done():
			_ = f.listener.Close()
			break handleLoop
		case connection, ok := <-connections:
			if !ok {
				break handleLoop
			}
			clientWg.Add(1)
			// Note: If there is eventually a need to implement worker pooling rather than spawning
			// new goroutines for each client, this is where it should be implemented.
			go f.acceptClient(ctx, connection, clientWg)
		}
	}

	f.Logger.Infof("[%v] shutting down (waiting for connections to close)", f.Backend.Identifier())
	clientWg.Wait()
	f.Logger.Infof("[%v] exited", f.Backend.Identifier())
}

// acceptClient takes a connection and initiates a session by setting up the
// Client and its write loop. The goroutine then moves into the frame
// processing loop until the connection closes.
func (f *frontend) acceptClient(ctx context.Context, connection *net.TCPConn, wg *sync.WaitGroup) {
	defer wg.Done()

	c := client.NewClient(connection, f.Config.GameServer.OutboundQueueDepth)

	f.mu.Lock()
	f.connectedClients[c.ID] = c
	f.mu.Unlock()

	f.Backend.StartSession(c)
	f.Logger.Infof("[%s] accepted connection %s from %s", f.Backend.Identifier(), c.ID, c.IPAddr())

	go f.writeLoop(c)
	f.processFrames(ctx, c)
}

// processFrames starts a blocking loop dedicated to reading data sent from
// a quiz client and only returns once the connection has closed.
func (f *frontend) processFrames(ctx context.Context, c *client.Client) {
	defer f.closeConnectionAndRecover(f.Backend.Identifier(), c)

	buffer := make([]byte, readBufferSize)

	for {
		select {
		case <-ctx.Done():
			// For now just allow the deferred function to close the connection.
			return
		default:
		}

		bytesRead, err := c.Read(buffer)
		if err == io.EOF || bytesRead == 0 {
			break
		} else if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				f.Logger.Warn("socket error (" + c.IPAddr() + ") " + err.Error())
			}
			break
		}

		frame := buffer[:bytesRead]

		if f.Config.Debugging.PacketLoggingEnabled {
			tdebug.PrintFrame(tdebug.PrintFrameParams{
				Writer:      os.Stdout,
				ClientFrame: true,
				Data:        frame,
			})
		}

		if err = f.Backend.Handle(ctx, c, frame); err != nil {
			f.Logger.Warn("error in client communication: " + err.Error())
			return
		}
	}
}

// writeLoop drains the client's outbound queue onto the socket, preserving
// the order responses were produced in. It exits once the client closes.
func (f *frontend) writeLoop(c *client.Client) {
	for {
		select {
		case <-c.Closed():
			return
		case raw := <-c.Queue():
			if f.Config.Debugging.PacketLoggingEnabled {
				tdebug.PrintFrame(tdebug.PrintFrameParams{
					Writer:      os.Stdout,
					ClientFrame: false,
					Data:        raw,
				})
			}

			for sent := 0; sent < len(raw); {
				n, err := c.Write(raw[sent:])
				if err != nil {
					if !errors.Is(err, net.ErrClosed) {
						f.Logger.Warnf("failed to write to client %s: %s", c.IPAddr(), err)
					}
					_ = c.Close()
					return
				}
				sent += n
			}
		}
	}
}

// closeConnectionAndRecover is the failsafe that catches any panics, disconnects the
// client, and removes them from the list regardless of the state of the connection.
func (f *frontend) closeConnectionAndRecover(serverName string, c *client.Client) {
	if err := recover(); err != nil {
		f.Logger.Errorf("error in client communication with %s: error=%s, trace: %s",
			c.IPAddr(), err, debug.Stack())
	}

	if err := c.Close(); err != nil {
		f.Logger.Warnf("failed to close client connection: %s", err)
	}

	f.mu.Lock()
	delete(f.connectedClients, c.ID)
	f.mu.Unlock()

	f.Backend.EndSession(c)

	f.Logger.Infof("[%s] disconnected client %s", serverName, c.IPAddr())
}

func (f *frontend) clientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.connectedClients)
}
