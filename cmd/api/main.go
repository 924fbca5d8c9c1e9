package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wolfman30/careconnect-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/careconnect-platform/internal/config"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting careconnect API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"timezone", cfg.Location().String(),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer app.Close()
	app.Start(ctx)

	srv := newServer(cfg.Port, app.Handler)

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := app.Drain(shutdownCtx); err != nil {
		logger.Warn("notification emails still pending at shutdown", "error", err)
	}

	logger.Info("server stopped")
}

// newServer leaves WriteTimeout at zero so notification sockets are not cut
// off.
func newServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
