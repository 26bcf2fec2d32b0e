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

// RuleRepository persists the permitted-transition triples consumed by the
// system/rule engine (§4.E).
type RuleRepository struct{}

func NewRuleRepository() *RuleRepository { return &RuleRepository{} }

func (r *RuleRepository) Create(ctx context.Context, q querier, rule *model.Rule) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO rules (id, src_system_type_id, dst_system_type_id, dst_usage_status_id)
		VALUES (?, ?, ?, ?)
	`, rule.ID.String(), nullableID(rule.SrcSystemTypeID), nullableID(rule.DstSystemTypeID), nullableID(rule.DstUsageStatusID))
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

func (r *RuleRepository) Get(ctx context.Context, q querier, id ids.ID) (*model.Rule, error) {
	row := q.QueryRowContext(ctx, `SELECT id, src_system_type_id, dst_system_type_id, dst_usage_status_id FROM rules WHERE id = ?`, id.String())
	return scanRule(row)
}

func scanRule(row *sql.Row) (*model.Rule, error) {
	var idStr string
	var src, dst, dstUsage sql.NullString
	if err := row.Scan(&idStr, &src, &dst, &dstUsage); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan rule: %w", err)
	}
	return buildRule(idStr, src, dst, dstUsage)
}

func buildRule(idStr string, src, dst, dstUsage sql.NullString) (*model.Rule, error) {
	id, err := ids.Parse(idStr)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored id", err)
	}
	rule := &model.Rule{ID: id}
	if src.Valid {
		v, err := ids.Parse(src.String)
		if err != nil {
			return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored src type id", err)
		}
		rule.SrcSystemTypeID = &v
	}
	if dst.Valid {
		v, err := ids.Parse(dst.String)
		if err != nil {
			return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored dst type id", err)
		}
		rule.DstSystemTypeID = &v
	}
	if dstUsage.Valid {
		v, err := ids.Parse(dstUsage.String)
		if err != nil {
			return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored dst usage status id", err)
		}
		rule.DstUsageStatusID = &v
	}
	return rule, nil
}

func (r *RuleRepository) List(ctx context.Context, q querier) ([]*model.Rule, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, src_system_type_id, dst_system_type_id, dst_usage_status_id FROM rules`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()
	var out []*model.Rule
	for rows.Next() {
		var idStr string
		var src, dst, dstUsage sql.NullString
		if err := rows.Scan(&idStr, &src, &dst, &dstUsage); err != nil {
			return nil, fmt.Errorf("scan rule row: %w", err)
		}
		rule, err := buildRule(idStr, src, dst, dstUsage)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// Exists reports whether a rule matches the given (src, dst, dstUsage)
// triple exactly, including nil-vs-nil equality.
func (r *RuleRepository) Exists(ctx context.Context, q querier, src, dst, dstUsage *ids.ID) (bool, error) {
	query := `SELECT 1 FROM rules WHERE `
	args := []any{}
	query += matchNullableClause("src_system_type_id", src, &args)
	query += " AND " + matchNullableClause("dst_system_type_id", dst, &args)
	query += " AND " + matchNullableClause("dst_usage_status_id", dstUsage, &args)

	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check rule exists: %w", err)
	}
	return true, nil
}

func matchNullableClause(column string, v *ids.ID, args *[]any) string {
	if v == nil {
		return column + " IS NULL"
	}
	*args = append(*args, v.String())
	return column + " = ?"
}

func (r *RuleRepository) Delete(ctx context.Context, q querier, id ids.ID) error {
	res, err := q.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return kinderr.New(kinderr.KindMissingRecord, "rule not found")
	}
	return nil
}
