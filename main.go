package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Wieedze/Sofia-Attestor-Template/cmd"
	"github.com/Wieedze/Sofia-Attestor-Template/internal/observability"
)

func main() {
	// Cancel the root context on SIGINT/SIGTERM so a hung confirmation wait
	// can be abandoned cleanly from the terminal.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()
	if err != nil {
		os.Exit(1)
	}
}
