package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ral-facilities/inventory-management-system-api/internal/ids"
	"github.com/ral-facilities/inventory-management-system-api/internal/kinderr"
	"github.com/ral-facilities/inventory-management-system-api/internal/model"
)

// ItemRepository persists physical instances of catalogue items.
type ItemRepository struct{}

func NewItemRepository() *ItemRepository { return &ItemRepository{} }

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func (r *ItemRepository) Create(ctx context.Context, q querier, it *model.Item) error {
	propsJSON, err := json.Marshal(it.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO items (id, catalogue_item_id, system_id, usage_status_id, is_defective, serial_number, warranty_end_date, properties)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, it.ID.String(), it.CatalogueItemID.String(), it.SystemID.String(), it.UsageStatusID.String(),
		it.IsDefective, nullableString(it.SerialNumber), nullableTime(it.WarrantyEndDate), string(propsJSON))
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (r *ItemRepository) Get(ctx context.Context, q querier, id ids.ID) (*model.Item, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, catalogue_item_id, system_id, usage_status_id, is_defective, serial_number, warranty_end_date, properties
		FROM items WHERE id = ?
	`, id.String())
	return scanItem(row)
}

func scanItem(row *sql.Row) (*model.Item, error) {
	var idStr, catalogueItemIDStr, systemIDStr, usageStatusIDStr, propsJSON string
	var serialNumber, warrantyEnd sql.NullString
	var isDefective bool

	if err := row.Scan(&idStr, &catalogueItemIDStr, &systemIDStr, &usageStatusIDStr, &isDefective, &serialNumber, &warrantyEnd, &propsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan item: %w", err)
	}
	return buildItem(idStr, catalogueItemIDStr, systemIDStr, usageStatusIDStr, isDefective, serialNumber, warrantyEnd, propsJSON)
}

func buildItem(idStr, catalogueItemIDStr, systemIDStr, usageStatusIDStr string, isDefective bool, serialNumber, warrantyEnd sql.NullString, propsJSON string) (*model.Item, error) {
	id, err := ids.Parse(idStr)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored id", err)
	}
	catalogueItemID, err := ids.Parse(catalogueItemIDStr)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored catalogue item id", err)
	}
	systemID, err := ids.Parse(systemIDStr)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored system id", err)
	}
	usageStatusID, err := ids.Parse(usageStatusIDStr)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored usage status id", err)
	}

	it := &model.Item{ID: id, CatalogueItemID: catalogueItemID, SystemID: systemID, UsageStatusID: usageStatusID, IsDefective: isDefective}
	if serialNumber.Valid {
		v := serialNumber.String
		it.SerialNumber = &v
	}
	if warrantyEnd.Valid {
		t, err := time.Parse(time.RFC3339, warrantyEnd.String)
		if err != nil {
			return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored warranty date", err)
		}
		it.WarrantyEndDate = &t
	}
	if err := json.Unmarshal([]byte(propsJSON), &it.Properties); err != nil {
		return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored properties", err)
	}
	return it, nil
}

// ListByCatalogueItem returns every physical instance of catalogueItemID.
// The propagation engine uses the bulk form ListByCatalogueItems instead,
// and the spares recompute counts rows with the Count* queries below.
func (r *ItemRepository) ListByCatalogueItem(ctx context.Context, q querier, catalogueItemID ids.ID) ([]*model.Item, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, catalogue_item_id, system_id, usage_status_id, is_defective, serial_number, warranty_end_date, properties
		FROM items WHERE catalogue_item_id = ?
	`, catalogueItemID.String())
	if err != nil {
		return nil, fmt.Errorf("list items by catalogue item: %w", err)
	}
	defer rows.Close()
	return scanItemRows(rows)
}

// ListByCatalogueItems returns every physical instance for the given bulk
// set of catalogue item ids, the form the propagation engine's step (c)
// uses (spec.md §4.D.1.c: "queried by bulk id list").
func (r *ItemRepository) ListByCatalogueItems(ctx context.Context, q querier, catalogueItemIDs []ids.ID) ([]*model.Item, error) {
	if len(catalogueItemIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(catalogueItemIDs))
	args := make([]any, len(catalogueItemIDs))
	for i, id := range catalogueItemIDs {
		placeholders[i] = "?"
		args[i] = id.String()
	}
	query := fmt.Sprintf(`
		SELECT id, catalogue_item_id, system_id, usage_status_id, is_defective, serial_number, warranty_end_date, properties
		FROM items WHERE catalogue_item_id IN (%s)
	`, joinPlaceholders(placeholders))
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items by catalogue items: %w", err)
	}
	defer rows.Close()
	return scanItemRows(rows)
}

func joinPlaceholders(ps []string) string {
	out := ps[0]
	for _, p := range ps[1:] {
		out += "," + p
	}
	return out
}

func scanItemRows(rows *sql.Rows) ([]*model.Item, error) {
	var out []*model.Item
	for rows.Next() {
		var idStr, catalogueItemIDStr, systemIDStr, usageStatusIDStr, propsJSON string
		var serialNumber, warrantyEnd sql.NullString
		var isDefective bool
		if err := rows.Scan(&idStr, &catalogueItemIDStr, &systemIDStr, &usageStatusIDStr, &isDefective, &serialNumber, &warrantyEnd, &propsJSON); err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		it, err := buildItem(idStr, catalogueItemIDStr, systemIDStr, usageStatusIDStr, isDefective, serialNumber, warrantyEnd, propsJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// CountByCatalogueItemAndUsageStatuses implements the spares-count
// aggregation: items whose catalogue_item_id matches and usage_status_id
// is one of statusIDs.
func (r *ItemRepository) CountByCatalogueItemAndUsageStatuses(ctx context.Context, q querier, catalogueItemID ids.ID, statusIDs []ids.ID) (int, error) {
	if len(statusIDs) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(statusIDs))
	args := make([]any, 0, len(statusIDs)+1)
	args = append(args, catalogueItemID.String())
	for i, id := range statusIDs {
		placeholders[i] = "?"
		args = append(args, id.String())
	}
	query := fmt.Sprintf(`
		SELECT COUNT(1) FROM items
		WHERE catalogue_item_id = ? AND usage_status_id IN (%s)
	`, joinPlaceholders(placeholders))
	var count int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count spares: %w", err)
	}
	return count, nil
}

// CountByCatalogueItemUsageStatusesAndSystemTypes scopes the spares count
// further by the type of the system each item currently sits in, the
// "spares scope by system type" variant of I10.
func (r *ItemRepository) CountByCatalogueItemUsageStatusesAndSystemTypes(ctx context.Context, q querier, catalogueItemID ids.ID, statusIDs, systemTypeIDs []ids.ID) (int, error) {
	if len(statusIDs) == 0 || len(systemTypeIDs) == 0 {
		return 0, nil
	}
	statusPlaceholders := make([]string, len(statusIDs))
	typePlaceholders := make([]string, len(systemTypeIDs))
	args := make([]any, 0, len(statusIDs)+len(systemTypeIDs)+1)
	args = append(args, catalogueItemID.String())
	for i, id := range statusIDs {
		statusPlaceholders[i] = "?"
		args = append(args, id.String())
	}
	for i, id := range systemTypeIDs {
		typePlaceholders[i] = "?"
	}
	for _, id := range systemTypeIDs {
		args = append(args, id.String())
	}
	query := fmt.Sprintf(`
		SELECT COUNT(1) FROM items i
		JOIN systems s ON s.id = i.system_id
		WHERE i.catalogue_item_id = ? AND i.usage_status_id IN (%s) AND s.type_id IN (%s)
	`, joinPlaceholders(statusPlaceholders), joinPlaceholders(typePlaceholders))
	var count int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count spares scoped by system type: %w", err)
	}
	return count, nil
}

func (r *ItemRepository) UpdateProperties(ctx context.Context, q querier, id ids.ID, props []model.StoredProperty) error {
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}
	if _, err := q.ExecContext(ctx, `UPDATE items SET properties = ? WHERE id = ?`, string(propsJSON), id.String()); err != nil {
		return fmt.Errorf("update item properties: %w", err)
	}
	return nil
}

func (r *ItemRepository) Update(ctx context.Context, q querier, it *model.Item) error {
	propsJSON, err := json.Marshal(it.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}
	res, err := q.ExecContext(ctx, `
		UPDATE items
		SET system_id = ?, usage_status_id = ?, is_defective = ?, serial_number = ?, warranty_end_date = ?, properties = ?
		WHERE id = ?
	`, it.SystemID.String(), it.UsageStatusID.String(), it.IsDefective, nullableString(it.SerialNumber),
		nullableTime(it.WarrantyEndDate), string(propsJSON), it.ID.String())
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return kinderr.New(kinderr.KindMissingRecord, "item not found")
	}
	return nil
}

func (r *ItemRepository) Delete(ctx context.Context, q querier, id ids.ID) error {
	res, err := q.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return kinderr.New(kinderr.KindMissingRecord, "item not found")
	}
	return nil
}
