// The server command is the main entrypoint for running triviad. It takes
// care of initializing everything and running the quiz server until it is
// signaled to stop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/triviad/triviad/internal"
	"github.com/triviad/triviad/internal/core"
)

func ServerCommand(cmd *cobra.Command, args []string) {
	// Change to the same directory as the config file so that any relative
	// paths in the config file will resolve.
	if ConfigFlag != "" {
		if err := os.Chdir(ConfigFlag); err != nil {
			fmt.Println("error changing to config directory:", err)
			os.Exit(1)
		}
	}

	config := core.LoadConfig(ConfigFlag)

	// Bind the Controller to one top-level server context so that we can shut down cleanly.
	ctx, cancel := context.WithCancel(context.Background())

	// Register a SIGTERM handler so that Ctrl-C will shut the server down gracefully.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go exitHandler(cancel, c)

	// Start up the controller to handle all of the resources and server init.
	controller := &internal.Controller{Config: config}
	controller.Start(ctx)
}

func exitHandler(cancel context.CancelFunc, c chan os.Signal) {
	<-c
	fmt.Println("shutting down")
	cancel()
}
