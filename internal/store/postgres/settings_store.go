package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// SettingsStore implements domain.SettingsStore as a single JSONB row.
type SettingsStore struct {
	db querier
}

// NewSettingsStore creates a SettingsStore backed by the given client.
func NewSettingsStore(c *Client) *SettingsStore {
	return &SettingsStore{db: c.pool}
}

// LoadSettings returns the saved settings or domain.ErrNotFound.
func (s *SettingsStore) LoadSettings(ctx context.Context) (domain.Settings, error) {
	const query = `SELECT settings_json, updated_at FROM scanner_settings WHERE id = 1`

	var raw []byte
	var out domain.Settings
	err := s.db.QueryRow(ctx, query).Scan(&raw, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Settings{}, domain.ErrNotFound
		}
		return domain.Settings{}, fmt.Errorf("postgres: load settings: %w", err)
	}

	updated := out.UpdatedAt
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.Settings{}, fmt.Errorf("postgres: unmarshal settings: %w", err)
	}
	out.UpdatedAt = updated
	return out, nil
}

// SaveSettings upserts the settings row.
func (s *SettingsStore) SaveSettings(ctx context.Context, settings domain.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("postgres: marshal settings: %w", err)
	}

	const query = `
		INSERT INTO scanner_settings (id, settings_json, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			settings_json = EXCLUDED.settings_json,
			updated_at    = EXCLUDED.updated_at`

	if _, err := s.db.Exec(ctx, query, raw, settings.UpdatedAt); err != nil {
		return fmt.Errorf("postgres: save settings: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SettingsStore = (*SettingsStore)(nil)
