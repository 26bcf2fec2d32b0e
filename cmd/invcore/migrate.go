package main

import (
	"github.com/spf13/cobra"

	"github.com/ral-facilities/inventory-management-system-api/internal/config"
	"github.com/ral-facilities/inventory-management-system-api/internal/logging"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Initialize(configFile)
		if err != nil {
			return err
		}
		log := logging.New(logging.Options{})

		store, err := sqlite.Open(cmd.Context(), storage.Config{Path: cfg.Database.URI})
		if err != nil {
			return err
		}
		defer store.Close()

		log.Info("schema applied", "database", cfg.Database.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
