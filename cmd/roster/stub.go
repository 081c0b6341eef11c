package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/brattlof/roster/internal/stubapi"
	"github.com/brattlof/roster/internal/stubapi/sqlite"
)

var stubCmd = &cobra.Command{
	Use:   "stub",
	Short: "Run a development users API backed by SQLite",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Stub.Port, _ = cmd.Flags().GetInt("port")
		}
		if db, _ := cmd.Flags().GetString("db"); db != "" {
			cfg.Stub.DBPath = db
		}

		var level slog.LevelVar
		logger := setupLogger(cfg, &level, os.Stdout)
		slog.SetDefault(logger)

		store, err := sqlite.Open(cmd.Context(), cfg.Stub.DBPath)
		if err != nil {
			return fmt.Errorf("open stub store: %w", err)
		}
		defer store.Close()

		srv := &http.Server{
			Addr:              cfg.StubAddr(),
			Handler:           stubapi.New(store, logger).Router(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		logger.Info("Starting stub users API", "addr", cfg.StubAddr(), "db", cfg.Stub.DBPath)
		return runServer(cmd.Context(), srv, logger)
	},
}
