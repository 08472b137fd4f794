package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/albumvault/albumsheets/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := NewRunner(RunnerOpts{Logger: logger})
	app := runner.app()

	if err := app.Run(ctx, os.Args); err != nil {
		stop()
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}
