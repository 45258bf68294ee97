package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fodmapworks/fodmap-flow/internal/config"
	"github.com/fodmapworks/fodmap-flow/internal/storage"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("Database at %s is at schema version %d\n",
				cfg.DatabasePath, storage.ExpectedSchemaVersion)
			return nil
		},
	}
}
