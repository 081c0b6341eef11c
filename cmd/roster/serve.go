package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/brattlof/roster/internal/app/config"
	"github.com/brattlof/roster/internal/app/server"
	"github.com/brattlof/roster/internal/live"
	"github.com/brattlof/roster/internal/middleware"
	"github.com/brattlof/roster/internal/tracing"
	"github.com/brattlof/roster/internal/usersapi"
	"github.com/brattlof/roster/internal/userview"
	"github.com/brattlof/roster/internal/web"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the users UI",
	Long: `Serve the server-rendered users UI against a users REST API.

The list, create form and edit modal live in per-browser sessions. With
view.live enabled, open pages reload when another session changes the list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.App.Port, _ = cmd.Flags().GetInt("port")
		}

		var level slog.LevelVar
		logger := setupLogger(cfg, &level, os.Stdout)
		slog.SetDefault(logger)

		return serve(cmd.Context(), cfg, &level, logger)
	},
}

// loadConfig reads --config and applies --api.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if f := cmd.Flags().Lookup("api"); f != nil && f.Value.String() != "" {
		cfg.API.BaseURL = f.Value.String()
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config, level *slog.LevelVar, logger *slog.Logger) error {
	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("Trace flush failed", "error", err)
		}
	}()

	client, err := usersapi.New(cfg.API.BaseURL,
		usersapi.WithTimeout(cfg.APITimeout()),
		usersapi.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("users api client: %w", err)
	}

	var mode atomic.Int32
	mode.Store(int32(userview.ParseRefreshMode(cfg.View.RefreshMode)))

	sessions := userview.NewSessions(func() *userview.View {
		return userview.New(client,
			userview.WithRefreshMode(userview.RefreshMode(mode.Load())),
			userview.WithLogger(logger),
		)
	}, cfg.SessionTTL(), logger)
	if err := sessions.StartSweeper(cfg.Session.SweepSchedule); err != nil {
		return err
	}
	defer sessions.Close()

	opts := []web.Option{
		web.WithCookieName(cfg.Session.CookieName),
		web.WithLogger(logger),
	}
	var hub *live.Hub
	if cfg.View.Live {
		hub = live.NewHub(logger)
		defer hub.Close()
		opts = append(opts, web.WithHub(hub))
	}
	handlers := web.New(sessions, opts...)

	routes, err := handlers.Routes()
	if err != nil {
		return fmt.Errorf("build routes: %w", err)
	}

	registry, err := middleware.FromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("build middleware: %w", err)
	}
	defer registry.CloseAll()

	srv := server.New(routes,
		server.WithLogger(logger),
		server.WithNotFound(handlers.NotFound),
	)
	srv.SetupMiddlewares(registry)
	srv.SetupRoutes()

	if len(cfg.Files()) > 0 {
		watcher, err := config.NewWatcher(cfg, func(next *config.Config) {
			level.Set(next.LogLevel())
			mode.Store(int32(userview.ParseRefreshMode(next.View.RefreshMode)))
			logger.Info("Runtime settings updated",
				"level", next.LogLevel().String(),
				"refreshMode", next.View.RefreshMode,
			)
		})
		if err != nil {
			logger.Warn("Config watcher unavailable", "error", err)
		} else {
			if err := watcher.Start(ctx); err != nil {
				logger.Warn("Config watcher failed to start", "error", err)
			}
			defer watcher.Close()
		}
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.APITimeout() + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("Starting roster",
		"addr", cfg.Addr(),
		"version", version,
		"api", client.BaseURL(),
		"refreshMode", userview.RefreshMode(mode.Load()).String(),
		"live", cfg.View.Live,
		"middleware", registry.Names(),
		"tracing", cfg.Tracing.Enabled && cfg.Tracing.Endpoint != "",
	)
	return runServer(ctx, httpSrv, logger)
}

// runServer serves until ctx is cancelled, then shuts down gracefully.
func runServer(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server exited")
	return nil
}
