package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imrich/internal/platform/config"
	"imrich/internal/storage"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema to the configured SQL backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := commonRun()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			switch cfg.StoreBackend {
			case config.BackendPostgres:
				db, err := storage.OpenPostgres(ctx, cfg.Postgres)
				if err != nil {
					return err
				}
				defer db.Close()
				return migrate(ctx, db, storage.DialectPostgres, log)
			case config.BackendSQLite:
				db, err := storage.OpenSQLite(ctx, cfg.SQLite.Path)
				if err != nil {
					return err
				}
				defer db.Close()
				return migrate(ctx, db, storage.DialectSQLite, log)
			default:
				return fmt.Errorf("STORE_BACKEND=%s has no schema to migrate", cfg.StoreBackend)
			}
		},
	}
}
