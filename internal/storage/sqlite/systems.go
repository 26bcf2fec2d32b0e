package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ral-facilities/inventory-management-system-api/internal/ids"
	"github.com/ral-facilities/inventory-management-system-api/internal/kinderr"
	"github.com/ral-facilities/inventory-management-system-api/internal/model"
)

// SystemRepository persists the system tree.
type SystemRepository struct {
	Tree TreeStore
}

func NewSystemRepository() *SystemRepository {
	return &SystemRepository{Tree: TreeStore{
		Table: "systems",
		ExternalRefs: []ExternalRef{
			{Table: "items", Column: "system_id"},
		},
	}}
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableID(id *ids.ID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func (r *SystemRepository) Create(ctx context.Context, q querier, s *model.System) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO systems (id, name, code, parent_id, type_id, description, location, owner, importance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID.String(), s.Name, s.Code, nullableID(s.ParentID), s.TypeID.String(),
		nullableString(s.Description), nullableString(s.Location), nullableString(s.Owner), string(s.Importance))
	if err != nil {
		if IsUniqueConstraintErr(err) {
			return kinderr.Wrap(kinderr.KindDuplicateRecord, "a sibling system with this code already exists", err)
		}
		return fmt.Errorf("insert system: %w", err)
	}
	return nil
}

func (r *SystemRepository) Get(ctx context.Context, q querier, id ids.ID) (*model.System, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, code, parent_id, type_id, description, location, owner, importance
		FROM systems WHERE id = ?
	`, id.String())
	return scanSystem(row)
}

func scanSystem(row *sql.Row) (*model.System, error) {
	var idStr, name, code, typeIDStr, importance string
	var parentID, description, location, owner sql.NullString

	if err := row.Scan(&idStr, &name, &code, &parentID, &typeIDStr, &description, &location, &owner, &importance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan system: %w", err)
	}

	id, err := ids.Parse(idStr)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored id", err)
	}
	typeID, err := ids.Parse(typeIDStr)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored type id", err)
	}
	s := &model.System{ID: id, Name: name, Code: code, TypeID: typeID, Importance: model.Importance(importance)}
	if parentID.Valid {
		p, err := ids.Parse(parentID.String)
		if err != nil {
			return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored parent id", err)
		}
		s.ParentID = &p
	}
	if description.Valid {
		v := description.String
		s.Description = &v
	}
	if location.Valid {
		v := location.String
		s.Location = &v
	}
	if owner.Valid {
		v := owner.String
		s.Owner = &v
	}
	return s, nil
}

func (r *SystemRepository) List(ctx context.Context, q querier, parentID *ids.ID) ([]*model.System, error) {
	var rows *sql.Rows
	var err error
	const cols = `id, name, code, parent_id, type_id, description, location, owner, importance`
	if parentID == nil {
		rows, err = q.QueryContext(ctx, `SELECT `+cols+` FROM systems WHERE parent_id IS NULL`)
	} else {
		rows, err = q.QueryContext(ctx, `SELECT `+cols+` FROM systems WHERE parent_id = ?`, parentID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("list systems: %w", err)
	}
	defer rows.Close()

	var out []*model.System
	for rows.Next() {
		var idStr, name, code, typeIDStr, importance string
		var parentStr, description, location, owner sql.NullString
		if err := rows.Scan(&idStr, &name, &code, &parentStr, &typeIDStr, &description, &location, &owner, &importance); err != nil {
			return nil, fmt.Errorf("scan system row: %w", err)
		}
		id, err := ids.Parse(idStr)
		if err != nil {
			return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored id", err)
		}
		typeID, err := ids.Parse(typeIDStr)
		if err != nil {
			return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored type id", err)
		}
		s := &model.System{ID: id, Name: name, Code: code, TypeID: typeID, Importance: model.Importance(importance)}
		if parentStr.Valid {
			p, err := ids.Parse(parentStr.String)
			if err != nil {
				return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored parent id", err)
			}
			s.ParentID = &p
		}
		if description.Valid {
			v := description.String
			s.Description = &v
		}
		if location.Valid {
			v := location.String
			s.Location = &v
		}
		if owner.Valid {
			v := owner.String
			s.Owner = &v
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SystemRepository) Update(ctx context.Context, q querier, s *model.System) error {
	res, err := q.ExecContext(ctx, `
		UPDATE systems
		SET name = ?, code = ?, parent_id = ?, type_id = ?, description = ?, location = ?, owner = ?, importance = ?
		WHERE id = ?
	`, s.Name, s.Code, nullableID(s.ParentID), s.TypeID.String(),
		nullableString(s.Description), nullableString(s.Location), nullableString(s.Owner), string(s.Importance), s.ID.String())
	if err != nil {
		if IsUniqueConstraintErr(err) {
			return kinderr.Wrap(kinderr.KindDuplicateRecord, "a sibling system with this code already exists", err)
		}
		return fmt.Errorf("update system: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return kinderr.New(kinderr.KindMissingRecord, "system not found")
	}
	return nil
}

func (r *SystemRepository) Delete(ctx context.Context, q querier, id ids.ID) error {
	hasChildren, err := r.Tree.HasChildElements(ctx, q, id)
	if err != nil {
		return err
	}
	if hasChildren {
		return kinderr.New(kinderr.KindChildElementsExist, "system has child systems or items")
	}
	res, err := q.ExecContext(ctx, `DELETE FROM systems WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete system: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return kinderr.New(kinderr.KindMissingRecord, "system not found")
	}
	return nil
}
