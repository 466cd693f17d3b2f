package main

// Server binary for the FreshFold ordering platform: wires the app,
// runs the HTTP server and drains it cleanly on SIGINT or SIGTERM.

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freshfoldapp/freshfold/app"
	"github.com/freshfoldapp/freshfold/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	fallbackLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	application, err := app.New()
	if err != nil {
		fallbackLogger.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}
	srv, err := server.New(application.Config, application.Logger, application.Handlers)
	if err != nil {
		fallbackLogger.Error("failed to initialize server", "error", err)
		application.Close()
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			application.Logger.Error("server failed", "error", err)
			application.Close()
			os.Exit(1)
		}
		application.Close()
		return
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)

	if err := srv.Close(ctx); err != nil {
		cancel()
		application.Logger.Error("server forced to shutdown", "error", err)
		application.Close()
		os.Exit(1)
	}
	cancel()

	application.Close()
}
