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

// UnitRepository is a minimal read-only lookup: units are out of scope as
// a managed entity (spec.md §1), the core only ever resolves a unit_id
// supplied by a property descriptor.
type UnitRepository struct{}

func NewUnitRepository() *UnitRepository { return &UnitRepository{} }

func (r *UnitRepository) Exists(ctx context.Context, q querier, id ids.ID) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM units WHERE id = ?`, id.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check unit exists: %w", err)
	}
	return true, nil
}

func (r *UnitRepository) Get(ctx context.Context, q querier, id ids.ID) (*model.Unit, error) {
	var idStr, value, code string
	err := q.QueryRowContext(ctx, `SELECT id, value, code FROM units WHERE id = ?`, id.String()).Scan(&idStr, &value, &code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get unit: %w", err)
	}
	parsed, err := ids.Parse(idStr)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored id", err)
	}
	return &model.Unit{ID: parsed, Value: value, Code: code}, nil
}

// ManufacturerRepository is a minimal read-only lookup for the same
// reason as UnitRepository: full CRUD is an external collaborator's
// responsibility (spec.md §1), the core only resolves manufacturer_id.
type ManufacturerRepository struct{}

func NewManufacturerRepository() *ManufacturerRepository { return &ManufacturerRepository{} }

func (r *ManufacturerRepository) Exists(ctx context.Context, q querier, id ids.ID) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM manufacturers WHERE id = ?`, id.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check manufacturer exists: %w", err)
	}
	return true, nil
}

// SystemTypeRepository owns full CRUD for the closed system-type
// enumeration, guarded against deletion while referenced by a system or a
// rule.
type SystemTypeRepository struct{}

func NewSystemTypeRepository() *SystemTypeRepository { return &SystemTypeRepository{} }

func (r *SystemTypeRepository) Create(ctx context.Context, q querier, st *model.SystemType) error {
	_, err := q.ExecContext(ctx, `INSERT INTO system_types (id, value) VALUES (?, ?)`, st.ID.String(), st.Value)
	if err != nil {
		if IsUniqueConstraintErr(err) {
			return kinderr.Wrap(kinderr.KindDuplicateRecord, "a system type with this value already exists", err)
		}
		return fmt.Errorf("insert system type: %w", err)
	}
	return nil
}

func (r *SystemTypeRepository) Get(ctx context.Context, q querier, id ids.ID) (*model.SystemType, error) {
	var idStr, value string
	err := q.QueryRowContext(ctx, `SELECT id, value FROM system_types WHERE id = ?`, id.String()).Scan(&idStr, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get system type: %w", err)
	}
	parsed, err := ids.Parse(idStr)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored id", err)
	}
	return &model.SystemType{ID: parsed, Value: value}, nil
}

func (r *SystemTypeRepository) List(ctx context.Context, q querier) ([]*model.SystemType, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, value FROM system_types`)
	if err != nil {
		return nil, fmt.Errorf("list system types: %w", err)
	}
	defer rows.Close()
	var out []*model.SystemType
	for rows.Next() {
		var idStr, value string
		if err := rows.Scan(&idStr, &value); err != nil {
			return nil, fmt.Errorf("scan system type: %w", err)
		}
		parsed, err := ids.Parse(idStr)
		if err != nil {
			return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored id", err)
		}
		out = append(out, &model.SystemType{ID: parsed, Value: value})
	}
	return out, rows.Err()
}

func (r *SystemTypeRepository) Delete(ctx context.Context, q querier, id ids.ID) error {
	var count int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(1) FROM systems WHERE type_id = ?`, id.String()).Scan(&count); err != nil {
		return fmt.Errorf("count systems referencing type: %w", err)
	}
	if count > 0 {
		return kinderr.New(kinderr.KindChildElementsExist, "system type is referenced by one or more systems")
	}
	if err := q.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM rules WHERE src_system_type_id = ? OR dst_system_type_id = ?
	`, id.String(), id.String()).Scan(&count); err != nil {
		return fmt.Errorf("count rules referencing type: %w", err)
	}
	if count > 0 {
		return kinderr.New(kinderr.KindChildElementsExist, "system type is referenced by one or more rules")
	}
	res, err := q.ExecContext(ctx, `DELETE FROM system_types WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete system type: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return kinderr.New(kinderr.KindMissingRecord, "system type not found")
	}
	return nil
}

// UsageStatusRepository owns full CRUD for the closed usage-status
// vocabulary, guarded against deletion while referenced by an item or a
// rule. A usage status named only by the spares definition setting is not
// guarded; the original this was ported from leaves that case unguarded too.
type UsageStatusRepository struct{}

func NewUsageStatusRepository() *UsageStatusRepository { return &UsageStatusRepository{} }

func (r *UsageStatusRepository) Create(ctx context.Context, q querier, us *model.UsageStatus) error {
	_, err := q.ExecContext(ctx, `INSERT INTO usage_statuses (id, value, code) VALUES (?, ?, ?)`, us.ID.String(), us.Value, us.Code)
	if err != nil {
		if IsUniqueConstraintErr(err) {
			return kinderr.Wrap(kinderr.KindDuplicateRecord, "a usage status with this code already exists", err)
		}
		return fmt.Errorf("insert usage status: %w", err)
	}
	return nil
}

func (r *UsageStatusRepository) Get(ctx context.Context, q querier, id ids.ID) (*model.UsageStatus, error) {
	var idStr, value, code string
	err := q.QueryRowContext(ctx, `SELECT id, value, code FROM usage_statuses WHERE id = ?`, id.String()).Scan(&idStr, &value, &code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get usage status: %w", err)
	}
	parsed, err := ids.Parse(idStr)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored id", err)
	}
	return &model.UsageStatus{ID: parsed, Value: value, Code: code}, nil
}

func (r *UsageStatusRepository) List(ctx context.Context, q querier) ([]*model.UsageStatus, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, value, code FROM usage_statuses`)
	if err != nil {
		return nil, fmt.Errorf("list usage statuses: %w", err)
	}
	defer rows.Close()
	var out []*model.UsageStatus
	for rows.Next() {
		var idStr, value, code string
		if err := rows.Scan(&idStr, &value, &code); err != nil {
			return nil, fmt.Errorf("scan usage status: %w", err)
		}
		parsed, err := ids.Parse(idStr)
		if err != nil {
			return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored id", err)
		}
		out = append(out, &model.UsageStatus{ID: parsed, Value: value, Code: code})
	}
	return out, rows.Err()
}

func (r *UsageStatusRepository) Delete(ctx context.Context, q querier, id ids.ID) error {
	var count int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(1) FROM items WHERE usage_status_id = ?`, id.String()).Scan(&count); err != nil {
		return fmt.Errorf("count items referencing usage status: %w", err)
	}
	if count > 0 {
		return kinderr.New(kinderr.KindChildElementsExist, "usage status is referenced by one or more items")
	}
	if err := q.QueryRowContext(ctx, `SELECT COUNT(1) FROM rules WHERE dst_usage_status_id = ?`, id.String()).Scan(&count); err != nil {
		return fmt.Errorf("count rules referencing usage status: %w", err)
	}
	if count > 0 {
		return kinderr.New(kinderr.KindChildElementsExist, "usage status is referenced by one or more rules")
	}
	res, err := q.ExecContext(ctx, `DELETE FROM usage_statuses WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete usage status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return kinderr.New(kinderr.KindMissingRecord, "usage status not found")
	}
	return nil
}
