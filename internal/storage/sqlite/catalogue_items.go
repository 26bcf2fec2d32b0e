package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ral-facilities/inventory-management-system-api/internal/ids"
	"github.com/ral-facilities/inventory-management-system-api/internal/kinderr"
	"github.com/ral-facilities/inventory-management-system-api/internal/model"
)

// CatalogueItemRepository persists abstract item models living under leaf
// catalogue categories.
type CatalogueItemRepository struct{}

func NewCatalogueItemRepository() *CatalogueItemRepository { return &CatalogueItemRepository{} }

func (r *CatalogueItemRepository) Create(ctx context.Context, q querier, c *model.CatalogueItem) error {
	propsJSON, err := json.Marshal(c.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO catalogue_items (
			id, catalogue_category_id, manufacturer_id, name, description, cost_gbp,
			days_to_replace, obsolete, obsolete_replacement_catalogue_item_id, properties, number_of_spares
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID.String(), c.CatalogueCategoryID.String(), c.ManufacturerID.String(), c.Name,
		nullableString(c.Description), c.CostGBP, c.DaysToReplace, c.Obsolete,
		nullableID(c.ObsoleteReplacementCatalogueItemID), string(propsJSON), c.NumberOfSpares)
	if err != nil {
		return fmt.Errorf("insert catalogue item: %w", err)
	}
	return nil
}

func (r *CatalogueItemRepository) Get(ctx context.Context, q querier, id ids.ID) (*model.CatalogueItem, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, catalogue_category_id, manufacturer_id, name, description, cost_gbp,
			days_to_replace, obsolete, obsolete_replacement_catalogue_item_id, properties, number_of_spares
		FROM catalogue_items WHERE id = ?
	`, id.String())
	return scanCatalogueItem(row)
}

func scanCatalogueItem(row *sql.Row) (*model.CatalogueItem, error) {
	var idStr, categoryIDStr, manufacturerIDStr, name, propsJSON string
	var description, replacementID sql.NullString
	var costGBP float64
	var daysToReplace, numberOfSpares int
	var obsolete bool

	if err := row.Scan(&idStr, &categoryIDStr, &manufacturerIDStr, &name, &description, &costGBP,
		&daysToReplace, &obsolete, &replacementID, &propsJSON, &numberOfSpares); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan catalogue item: %w", err)
	}

	id, err := ids.Parse(idStr)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored id", err)
	}
	categoryID, err := ids.Parse(categoryIDStr)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored category id", err)
	}
	manufacturerID, err := ids.Parse(manufacturerIDStr)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored manufacturer id", err)
	}

	c := &model.CatalogueItem{
		ID: id, CatalogueCategoryID: categoryID, ManufacturerID: manufacturerID,
		Name: name, CostGBP: costGBP, DaysToReplace: daysToReplace, Obsolete: obsolete,
		NumberOfSpares: numberOfSpares,
	}
	if description.Valid {
		v := description.String
		c.Description = &v
	}
	if replacementID.Valid {
		rid, err := ids.Parse(replacementID.String)
		if err != nil {
			return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored replacement id", err)
		}
		c.ObsoleteReplacementCatalogueItemID = &rid
	}
	if err := json.Unmarshal([]byte(propsJSON), &c.Properties); err != nil {
		return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored properties", err)
	}
	return c, nil
}

// ListByCategory returns every catalogue item under categoryID, used by
// the property propagation engine to cascade schema changes.
func (r *CatalogueItemRepository) ListByCategory(ctx context.Context, q querier, categoryID ids.ID) ([]*model.CatalogueItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, catalogue_category_id, manufacturer_id, name, description, cost_gbp,
			days_to_replace, obsolete, obsolete_replacement_catalogue_item_id, properties, number_of_spares
		FROM catalogue_items WHERE catalogue_category_id = ?
	`, categoryID.String())
	if err != nil {
		return nil, fmt.Errorf("list catalogue items: %w", err)
	}
	defer rows.Close()
	return scanCatalogueItemRows(rows)
}

func scanCatalogueItemRows(rows *sql.Rows) ([]*model.CatalogueItem, error) {
	var out []*model.CatalogueItem
	for rows.Next() {
		var idStr, categoryIDStr, manufacturerIDStr, name, propsJSON string
		var description, replacementID sql.NullString
		var costGBP float64
		var daysToReplace, numberOfSpares int
		var obsolete bool
		if err := rows.Scan(&idStr, &categoryIDStr, &manufacturerIDStr, &name, &description, &costGBP,
			&daysToReplace, &obsolete, &replacementID, &propsJSON, &numberOfSpares); err != nil {
			return nil, fmt.Errorf("scan catalogue item row: %w", err)
		}
		id, err := ids.Parse(idStr)
		if err != nil {
			return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored id", err)
		}
		categoryID, err := ids.Parse(categoryIDStr)
		if err != nil {
			return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored category id", err)
		}
		manufacturerID, err := ids.Parse(manufacturerIDStr)
		if err != nil {
			return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored manufacturer id", err)
		}
		c := &model.CatalogueItem{
			ID: id, CatalogueCategoryID: categoryID, ManufacturerID: manufacturerID,
			Name: name, CostGBP: costGBP, DaysToReplace: daysToReplace, Obsolete: obsolete,
			NumberOfSpares: numberOfSpares,
		}
		if description.Valid {
			v := description.String
			c.Description = &v
		}
		if replacementID.Valid {
			rid, err := ids.Parse(replacementID.String)
			if err != nil {
				return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored replacement id", err)
			}
			c.ObsoleteReplacementCatalogueItemID = &rid
		}
		if err := json.Unmarshal([]byte(propsJSON), &c.Properties); err != nil {
			return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored properties", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateProperties overwrites just the denormalised properties column, the
// narrow write the propagation engine issues during cascades.
func (r *CatalogueItemRepository) UpdateProperties(ctx context.Context, q querier, id ids.ID, props []model.StoredProperty) error {
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}
	if _, err := q.ExecContext(ctx, `UPDATE catalogue_items SET properties = ? WHERE id = ?`, string(propsJSON), id.String()); err != nil {
		return fmt.Errorf("update catalogue item properties: %w", err)
	}
	return nil
}

// UpdateNumberOfSpares overwrites the derived spares count for a single
// catalogue item, called from inside the spares-recompute write-lock
// section.
func (r *CatalogueItemRepository) UpdateNumberOfSpares(ctx context.Context, q querier, id ids.ID, count int) error {
	if _, err := q.ExecContext(ctx, `UPDATE catalogue_items SET number_of_spares = ? WHERE id = ?`, count, id.String()); err != nil {
		return fmt.Errorf("update number_of_spares: %w", err)
	}
	return nil
}

func (r *CatalogueItemRepository) Update(ctx context.Context, q querier, c *model.CatalogueItem) error {
	propsJSON, err := json.Marshal(c.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}
	res, err := q.ExecContext(ctx, `
		UPDATE catalogue_items
		SET manufacturer_id = ?, name = ?, description = ?, cost_gbp = ?, days_to_replace = ?,
			obsolete = ?, obsolete_replacement_catalogue_item_id = ?, properties = ?
		WHERE id = ?
	`, c.ManufacturerID.String(), c.Name, nullableString(c.Description), c.CostGBP, c.DaysToReplace,
		c.Obsolete, nullableID(c.ObsoleteReplacementCatalogueItemID), string(propsJSON), c.ID.String())
	if err != nil {
		return fmt.Errorf("update catalogue item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return kinderr.New(kinderr.KindMissingRecord, "catalogue item not found")
	}
	return nil
}

func (r *CatalogueItemRepository) Delete(ctx context.Context, q querier, id ids.ID) error {
	var count int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(1) FROM items WHERE catalogue_item_id = ?`, id.String()).Scan(&count); err != nil {
		return fmt.Errorf("count items: %w", err)
	}
	if count > 0 {
		return kinderr.New(kinderr.KindChildElementsExist, "catalogue item has items")
	}
	res, err := q.ExecContext(ctx, `DELETE FROM catalogue_items WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete catalogue item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return kinderr.New(kinderr.KindMissingRecord, "catalogue item not found")
	}
	return nil
}
