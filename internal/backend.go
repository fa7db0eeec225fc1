package internal

import (
	"context"

	"github.com/triviad/triviad/internal/core/client"
)

// Backend is an interface for a sub-server that handles a specific set of client
// interactions as part of the quiz flow.
type Backend interface {
	// Identifier returns a uniquely identifying string.
	Identifier() string

	// Init is called before a Backend is started as a hook for the Backend to
	// perform any necessary initialization before it can accept clients.
	Init(ctx context.Context) error

	// StartSession performs any per-connection initialization needed before
	// the first frame arrives. Clients connect anonymously, so no welcome
	// frame is sent.
	StartSession(c *client.Client)

	// Handle is the main entry point for processing client frames. It's responsible
	// for generally handling all frames from a client as well as sending any responses.
	// A returned error drops the connection.
	Handle(ctx context.Context, c *client.Client, data []byte) error

	// EndSession releases any per-connection state once the client has
	// disconnected, however that happened.
	EndSession(c *client.Client)
}
