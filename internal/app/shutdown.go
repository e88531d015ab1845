package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// GracefulShutdown cancels the returned context on SIGINT/SIGTERM so the
// run stops at the next safe point and keeps what it already extracted.
func GracefulShutdown(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	return ctx, cancel
}
