package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ral-facilities/inventory-management-system-api/internal/kinderr"
	"github.com/ral-facilities/inventory-management-system-api/internal/model"
)

// SparesDefinitionSettingID is the fixed document id the spares
// definition is keyed under in the settings collection.
const SparesDefinitionSettingID = "spares_definition"

// SettingsRepository persists singleton configuration documents, keyed by
// a fixed string id per setting.
type SettingsRepository struct{}

func NewSettingsRepository() *SettingsRepository { return &SettingsRepository{} }

// GetSparesDefinition returns nil, nil if no spares definition is
// configured yet (spares.recompute.enabled may still be true with no
// definition set, in which case the recompute is a no-op).
func (r *SettingsRepository) GetSparesDefinition(ctx context.Context, q querier) (*model.SparesDefinition, error) {
	var valueJSON string
	err := q.QueryRowContext(ctx, `SELECT value FROM settings WHERE id = ?`, SparesDefinitionSettingID).Scan(&valueJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get spares definition: %w", err)
	}
	var def model.SparesDefinition
	if err := json.Unmarshal([]byte(valueJSON), &def); err != nil {
		return nil, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored spares definition", err)
	}
	return &def, nil
}

func (r *SettingsRepository) PutSparesDefinition(ctx context.Context, q querier, def *model.SparesDefinition) error {
	valueJSON, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal spares definition: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO settings (id, value) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET value = excluded.value
	`, SparesDefinitionSettingID, string(valueJSON))
	if err != nil {
		return fmt.Errorf("put spares definition: %w", err)
	}
	return nil
}
