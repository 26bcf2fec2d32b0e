// Package spares implements the derived-state recomputation of
// spec.md §4.E / I10: catalogue_item.number_of_spares, recomputed under a
// write-lock whenever an item is created, deleted, moved between systems
// of different types, or has its usage status changed.
package spares

import (
	"context"
	"time"

	"github.com/ral-facilities/inventory-management-system-api/internal/ids"
	"github.com/ral-facilities/inventory-management-system-api/internal/metrics"
	"github.com/ral-facilities/inventory-management-system-api/internal/model"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage/sqlite"
)

// CatalogueItemsTable is the aggregate-root table the write-lock is taken
// against during recompute.
const CatalogueItemsTable = "catalogue_items"

// Recomputer recomputes number_of_spares for individual catalogue items.
type Recomputer struct {
	Settings       *sqlite.SettingsRepository
	Items          *sqlite.ItemRepository
	CatalogueItems *sqlite.CatalogueItemRepository
}

func NewRecomputer(settings *sqlite.SettingsRepository, items *sqlite.ItemRepository, catalogueItems *sqlite.CatalogueItemRepository) *Recomputer {
	return &Recomputer{Settings: settings, Items: items, CatalogueItems: catalogueItems}
}

// Recompute writes the new number_of_spares for catalogueItemID. It must
// run inside tx, and the caller must have already acquired the write lock
// (via Lock) before reading any of the dependent item data the count
// relies on — the lock has to precede the read it protects, not just the
// write, or a concurrent transaction could recompute from a stale read
// between the two.
func (r *Recomputer) Recompute(ctx context.Context, tx storage.Transaction, catalogueItemID ids.ID) error {
	start := time.Now()
	defer func() { metrics.SparesRecomputeDuration.Observe(time.Since(start).Seconds()) }()

	def, err := r.Settings.GetSparesDefinition(ctx, tx)
	if err != nil {
		return err
	}
	if def == nil || len(def.UsageStatuses) == 0 {
		return r.CatalogueItems.UpdateNumberOfSpares(ctx, tx, catalogueItemID, 0)
	}

	var count int
	if len(def.SystemTypeScope) > 0 {
		count, err = r.Items.CountByCatalogueItemUsageStatusesAndSystemTypes(ctx, tx, catalogueItemID, def.UsageStatuses, def.SystemTypeScope)
	} else {
		count, err = r.Items.CountByCatalogueItemAndUsageStatuses(ctx, tx, catalogueItemID, def.UsageStatuses)
	}
	if err != nil {
		return err
	}

	return r.CatalogueItems.UpdateNumberOfSpares(ctx, tx, catalogueItemID, count)
}

// Lock acquires the document-level write lock on a catalogue item ahead
// of a recompute, per §5: "write_lock... must be issued before reading
// the dependent data the recompute relies on."
func (r *Recomputer) Lock(ctx context.Context, tx storage.Transaction, catalogueItemID ids.ID) error {
	return sqlite.WriteLockRow(ctx, tx, CatalogueItemsTable, catalogueItemID)
}

// Enabled reports whether the caller's configuration permits recompute at
// all (spec.md §6 spares.recompute.enabled) and a spares definition is
// stored. systems.Service.Update consults it when deciding whether to take
// the write lock; items.Service checks only its own configuration flag
// before calling Lock/Recompute.
func Enabled(configEnabled bool, def *model.SparesDefinition) bool {
	return configEnabled && def != nil
}
