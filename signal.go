package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// shutdownContext cancels the returned context on the first SIGINT or
// SIGTERM and force-exits on the second. Staged mirror files stay where
// they are on cancel: the vendor agent reconciles them and a retry picks
// them up.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-ctx.Done()

		if parent.Err() != nil {
			stop()
			return
		}

		logger.Info("interrupted, aborting current invocation")

		// Re-arm before releasing the context's handler so a rapid
		// second signal is not lost in between.
		force := make(chan os.Signal, 1)
		signal.Notify(force, syscall.SIGINT, syscall.SIGTERM)
		stop()

		sig := <-force
		logger.Warn("second signal, exiting immediately", slog.String("signal", sig.String()))
		os.Exit(1)
	}()

	return ctx
}
