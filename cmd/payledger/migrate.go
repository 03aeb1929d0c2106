package main

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"payledger/internal/gateway/postgres"
)

func migrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if cfg.DatabaseURL == "" {
				return errors.New("PAYLEDGER_DATABASE_URL is required")
			}

			ctx := cmd.Context()
			pool, err := postgres.Connect(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns), cfg.DBMaxConnIdle, cfg.DBMaxConnLife)
			if err != nil {
				return err
			}
			defer pool.Close()

			db := postgres.OpenDB(pool)
			defer db.Close()
			if err := postgres.Apply(ctx, db); err != nil {
				return err
			}

			names, err := postgres.Migrations()
			if err != nil {
				return err
			}
			log.Info("migrations applied", zap.Strings("files", names))
			return nil
		},
	}
}
