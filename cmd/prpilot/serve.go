package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/prpilot/internal/adapter/driving/http"
	"github.com/ericfisherdev/prpilot/internal/config"
	"github.com/ericfisherdev/prpilot/internal/logging"
)

func newServeCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logCloser, err := env.bootstrap()
			if err != nil {
				return err
			}
			defer closeLogged("log sinks", logCloser)
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	logging.ConfigLog(slog.Default(), cfg.Values())

	// Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLogged("application", a)

	if cfg.WebhookSecret == "" {
		slog.Warn("WEBHOOK_SECRET is not set, evaluate and command requests will be refused")
	}

	handler := httphandler.NewHandler(a.engine, a.commands, a.results, logging.Named("http"))
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(handler, logging.Named(logging.HTTPAccess), []byte(cfg.WebhookSecret)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Rebases clone and push whole repositories inside the request.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	slog.Info("prpilot started", "listen_addr", cfg.ListenAddr, "github_app", cfg.GitHubApp)

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
