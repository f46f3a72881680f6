package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freekieb7/go-drawer/internal/config"
	"github.com/freekieb7/go-drawer/internal/container"
	"github.com/freekieb7/go-drawer/internal/session"
)

func main() {
	ctx := context.Background()

	if err := Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func Run(ctx context.Context) error {
	// Add graceful shutdown support by listening for interruptions
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	container, err := container.New(ctx, cfg)
	if err != nil {
		return errors.Join(errors.New("startup failed"), err)
	}
	defer container.Close()

	logger := container.Logger

	if container.Purger != nil {
		go session.RunPurger(ctx, container.Purger, cfg.Session.CleanupInterval, logger)
	}

	server := container.HttpServer

	// Serve app
	srvErr := make(chan error, 1)
	go func() {
		logger.Info("Listening and serving",
			"addr", server.Addr,
			"environment", cfg.Server.Environment,
			"session_backend", cfg.Session.Backend)
		srvErr <- server.ListenAndServe()
	}()

	// Wait for interruption.
	select {
	case err := <-srvErr:
		// Error when starting HTTP server.
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("Shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return err
		}

		logger.Info("Shutdown completed")
	}

	return nil
}
