package sqlite

import (
	"context"
	"fmt"

	"github.com/ral-facilities/inventory-management-system-api/internal/ids"
	"github.com/ral-facilities/inventory-management-system-api/internal/kinderr"
)

// WriteLockRow performs a no-op self-update on table's row for id to
// acquire a document-level write lock, the same primitive TreeStore.WriteLock
// exposes for tree nodes, generalised to non-tree aggregate roots such as
// catalogue_items (spec.md §4.E spares recompute). Must be called with a
// Transaction, before reading the data the recompute depends on.
func WriteLockRow(ctx context.Context, q querier, table string, id ids.ID) error {
	query := fmt.Sprintf("UPDATE %s SET id = id WHERE id = ?", table)
	res, err := q.ExecContext(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("write lock %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write lock rows affected: %w", err)
	}
	if n == 0 {
		return kinderr.New(kinderr.KindMissingRecord, "record not found")
	}
	return nil
}
