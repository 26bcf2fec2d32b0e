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

// CategoryRepository persists the catalogue-category tree.
type CategoryRepository struct {
	Tree TreeStore
}

// NewCategoryRepository builds a CategoryRepository wired with the
// cross-collection child references catalogue categories must refuse to
// delete or leaf-convert through.
func NewCategoryRepository() *CategoryRepository {
	return &CategoryRepository{Tree: TreeStore{
		Table: "catalogue_categories",
		ExternalRefs: []ExternalRef{
			{Table: "catalogue_items", Column: "catalogue_category_id"},
		},
	}}
}

func (r *CategoryRepository) Create(ctx context.Context, q querier, c *model.CatalogueCategory) error {
	propsJSON, err := json.Marshal(c.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}

	var parentStr any
	if c.ParentID != nil {
		parentStr = c.ParentID.String()
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO catalogue_categories (id, name, code, parent_id, is_leaf, properties)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID.String(), c.Name, c.Code, parentStr, c.IsLeaf, string(propsJSON))
	if err != nil {
		if IsUniqueConstraintErr(err) {
			return kinderr.Wrap(kinderr.KindDuplicateRecord, "a sibling category with this code already exists", err)
		}
		return fmt.Errorf("insert catalogue category: %w", err)
	}
	return nil
}

func (r *CategoryRepository) Get(ctx context.Context, q querier, id ids.ID) (*model.CatalogueCategory, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, code, parent_id, is_leaf, properties
		FROM catalogue_categories WHERE id = ?
	`, id.String())
	return scanCategory(row)
}

func scanCategory(row *sql.Row) (*model.CatalogueCategory, error) {
	var idStr, name, code, propsJSON string
	var parentID sql.NullString
	var isLeaf bool

	if err := row.Scan(&idStr, &name, &code, &parentID, &isLeaf, &propsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan catalogue category: %w", err)
	}

	c := &model.CatalogueCategory{Name: name, Code: code, IsLeaf: isLeaf}
	parsed, err := ids.Parse(idStr)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored id", err)
	}
	c.ID = parsed
	if parentID.Valid {
		p, err := ids.Parse(parentID.String)
		if err != nil {
			return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored parent id", err)
		}
		c.ParentID = &p
	}
	if err := json.Unmarshal([]byte(propsJSON), &c.Properties); err != nil {
		return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored properties", err)
	}
	return c, nil
}

// List returns categories under parentID. A nil parentID selects roots.
func (r *CategoryRepository) List(ctx context.Context, q querier, parentID *ids.ID) ([]*model.CatalogueCategory, error) {
	var rows *sql.Rows
	var err error
	if parentID == nil {
		rows, err = q.QueryContext(ctx, `
			SELECT id, name, code, parent_id, is_leaf, properties
			FROM catalogue_categories WHERE parent_id IS NULL
		`)
	} else {
		rows, err = q.QueryContext(ctx, `
			SELECT id, name, code, parent_id, is_leaf, properties
			FROM catalogue_categories WHERE parent_id = ?
		`, parentID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("list catalogue categories: %w", err)
	}
	defer rows.Close()

	var out []*model.CatalogueCategory
	for rows.Next() {
		var idStr, name, code, propsJSON string
		var parentStr sql.NullString
		var isLeaf bool
		if err := rows.Scan(&idStr, &name, &code, &parentStr, &isLeaf, &propsJSON); err != nil {
			return nil, fmt.Errorf("scan catalogue category row: %w", err)
		}
		parsed, err := ids.Parse(idStr)
		if err != nil {
			return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored id", err)
		}
		c := &model.CatalogueCategory{ID: parsed, Name: name, Code: code, IsLeaf: isLeaf}
		if parentStr.Valid {
			p, err := ids.Parse(parentStr.String)
			if err != nil {
				return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored parent id", err)
			}
			c.ParentID = &p
		}
		if err := json.Unmarshal([]byte(propsJSON), &c.Properties); err != nil {
			return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored properties", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update persists name/code/parent_id/is_leaf/properties changes. Callers
// are responsible for invariant checks (leaf-parent, cycle, child-elements)
// before calling Update; Update only performs the write and translates a
// duplicate-code violation.
func (r *CategoryRepository) Update(ctx context.Context, q querier, c *model.CatalogueCategory) error {
	propsJSON, err := json.Marshal(c.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}
	var parentStr any
	if c.ParentID != nil {
		parentStr = c.ParentID.String()
	}

	res, err := q.ExecContext(ctx, `
		UPDATE catalogue_categories
		SET name = ?, code = ?, parent_id = ?, is_leaf = ?, properties = ?
		WHERE id = ?
	`, c.Name, c.Code, parentStr, c.IsLeaf, string(propsJSON), c.ID.String())
	if err != nil {
		if IsUniqueConstraintErr(err) {
			return kinderr.Wrap(kinderr.KindDuplicateRecord, "a sibling category with this code already exists", err)
		}
		return fmt.Errorf("update catalogue category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return kinderr.New(kinderr.KindMissingRecord, "category not found")
	}
	return nil
}

func (r *CategoryRepository) Delete(ctx context.Context, q querier, id ids.ID) error {
	hasChildren, err := r.Tree.HasChildElements(ctx, q, id)
	if err != nil {
		return err
	}
	if hasChildren {
		return kinderr.New(kinderr.KindChildElementsExist, "category has child categories or catalogue items")
	}
	res, err := q.ExecContext(ctx, `DELETE FROM catalogue_categories WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete catalogue category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return kinderr.New(kinderr.KindMissingRecord, "category not found")
	}
	return nil
}
