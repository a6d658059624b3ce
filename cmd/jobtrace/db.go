package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bdougie/jobtrace/internal/config"
	"github.com/bdougie/jobtrace/internal/storage"
)

func newInitDBCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the action tables for the configured database sinks",
		Long: `Create the job_actions schema in PostgreSQL (with the pgvector extension
and index) and/or SQLite, whichever are configured. Safe to run repeatedly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := rootOpts.load()
			if err != nil {
				return err
			}
			if cfg.Sinks.PostgresURL == "" && cfg.Sinks.SQLitePath == "" {
				return fmt.Errorf("%w: neither sinks.postgres_url nor sinks.sqlite_path is set", config.ErrInvalid)
			}

			if cfg.Sinks.PostgresURL != "" {
				if err := storage.InitPostgresSchema(cmd.Context(), cfg.Sinks.PostgresURL, cfg.Embeddings.Dimensions); err != nil {
					return err
				}
				logger.Info("postgres schema ready", "dimensions", cfg.Embeddings.Dimensions)
			}
			if cfg.Sinks.SQLitePath != "" {
				s, err := storage.OpenSQLiteSink(cfg.Sinks.SQLitePath, logger)
				if err != nil {
					return err
				}
				if err := s.Close(); err != nil {
					return err
				}
				logger.Info("sqlite schema ready", "path", cfg.Sinks.SQLitePath)
			}
			return nil
		},
	}
}
