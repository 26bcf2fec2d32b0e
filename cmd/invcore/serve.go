package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ral-facilities/inventory-management-system-api/internal/catalogue"
	"github.com/ral-facilities/inventory-management-system-api/internal/config"
	"github.com/ral-facilities/inventory-management-system-api/internal/items"
	"github.com/ral-facilities/inventory-management-system-api/internal/logging"
	"github.com/ral-facilities/inventory-management-system-api/internal/lookups"
	"github.com/ral-facilities/inventory-management-system-api/internal/objectstorage"
	"github.com/ral-facilities/inventory-management-system-api/internal/properties"
	"github.com/ral-facilities/inventory-management-system-api/internal/spares"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage/sqlite"
	"github.com/ral-facilities/inventory-management-system-api/internal/systems"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Construct the core services and block until signalled to stop",
	Long: `serve wires storage, the rule/spares engine and every domain
service, then idles until SIGINT/SIGTERM. It does not itself expose a
REST API: that transport layer mounts against the services built here.`,
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

		var objectStore *objectstorage.Client
		if cfg.ObjectStorage.Enabled {
			objectStore = objectstorage.NewClient(cfg.ObjectStorage.URL)
			log.Info("object storage collaborator enabled", "url", cfg.ObjectStorage.URL)
		}

		categories := sqlite.NewCategoryRepository()
		catalogueItems := sqlite.NewCatalogueItemRepository()
		itemRepo := sqlite.NewItemRepository()
		systemRepo := sqlite.NewSystemRepository()
		systemTypes := sqlite.NewSystemTypeRepository()
		usageStatuses := sqlite.NewUsageStatusRepository()
		rules := sqlite.NewRuleRepository()
		units := sqlite.NewUnitRepository()
		manufacturers := sqlite.NewManufacturerRepository()
		settings := sqlite.NewSettingsRepository()

		propEngine := properties.NewEngine(categories, catalogueItems, itemRepo, units)
		recomputer := spares.NewRecomputer(settings, itemRepo, catalogueItems)

		_ = catalogue.NewService(store, categories, units, propEngine)
		_ = lookups.NewService(store, systemTypes, usageStatuses, rules, settings, units, manufacturers)
		_ = systems.NewService(store, systemRepo, systemTypes, itemRepo, settings, recomputer, objectStore, cfg.Spares.Recompute.Enabled)
		_ = items.NewService(store, itemRepo, catalogueItems, categories, systemRepo, rules, units, recomputer, cfg.Spares.Recompute.Enabled)

		log.Info("invcore ready", "database", cfg.Database.Name, "breadcrumbs_max_trail_length", cfg.Breadcrumbs.MaxTrailLength)

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		log.Info("invcore shutting down")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
