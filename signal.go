package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// shutdownContext returns a context that is canceled on the first SIGINT or
// SIGTERM, aborting in-flight requests while deferred cleanup still runs.
// A second signal exits immediately.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("interrupted, canceling", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("second signal, exiting", slog.String("signal", sig.String()))
			os.Exit(1)
		case <-parent.Done():
		}
	}()

	return ctx
}
