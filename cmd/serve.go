package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/albumvault/albumsheets/internal/server"
)

const shutdownTimeout = 5 * time.Second

// Serve exposes run history and the latest run's metrics over HTTP until ctx is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Metrics.ListenAddr
	}
	if addr == "" {
		return fmt.Errorf("listen address required: set metrics.listen_addr or pass --addr")
	}

	runs, closeRuns, err := r.openRuns()
	if err != nil {
		return err
	}
	defer closeRuns()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return r.serve(ctx, ln, server.NewStatusRouter(runs, r.logger))
}

// serve runs handler on ln and shuts down gracefully once ctx is done.
func (r *Runner) serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	r.logger.Info("status server listening", "addr", ln.Addr().String())
	r.writePlain("Serving run history on http://%s (Ctrl+C to stop)\n", ln.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down status server: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
