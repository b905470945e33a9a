package domain

import (
	"context"
	"time"
)

// SettingsStore persists operator edits to the runtime settings so they
// survive a restart. LoadSettings returns ErrNotFound when nothing has been
// saved yet.
type SettingsStore interface {
	LoadSettings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) error
}

// AuditEntry is one recorded operator action.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore records operator actions against the runtime settings. Recent
// returns the newest entries first.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	Recent(ctx context.Context, limit int) ([]AuditEntry, error)
}
