// Package debug provides the optional introspection utilities: a pprof
// server and decoded-frame logging.
package debug

import (
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"github.com/triviad/triviad/internal/protocol"
)

// StartUtilities spins off the services associated with debug mode.
func StartUtilities(logger *logrus.Logger, pprofPort int) {
	go func() {
		addr := fmt.Sprintf("localhost:%d", pprofPort)
		logger.Infof("starting pprof server on %s", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Warnf("error starting pprof server: %v", err)
		}
	}()
}

// PrintFrameParams describes one frame to dump for debugging.
type PrintFrameParams struct {
	Writer io.Writer
	// ClientFrame is true for client -> server frames.
	ClientFrame bool
	Data        []byte
}

// PrintFrame writes a decoded view of a protocol frame. Frames that do not
// decode are printed raw; the caller is about to drop the connection anyway
// and the bytes are the interesting part.
func PrintFrame(params PrintFrameParams) {
	direction := "server->client"
	if params.ClientFrame {
		direction = "client->server"
	}

	frame, err := protocol.Decode(params.Data)
	if err != nil {
		fmt.Fprintf(params.Writer, "[%s] undecodable frame (%v): %q\n", direction, err, params.Data)
		return
	}
	fmt.Fprintf(params.Writer, "[%s] %s", direction, spew.Sdump(frame))
}
