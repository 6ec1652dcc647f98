package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stdin/venezuelawatch/internal/config"
)

// SettingsStore implements config.SettingsStore as a plain key/value
// table, using Postgres's ON CONFLICT upsert in place of SQLite's
// INSERT OR REPLACE.
type SettingsStore struct {
	db *sqlx.DB
}

// NewSettingsStore builds a SettingsStore over an already-migrated db.
func NewSettingsStore(db *sqlx.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

var _ config.SettingsStore = (*SettingsStore)(nil)

// Get retrieves a setting value by key. The bool return is false, not an
// error, when the key is unset -- matching UpdateFromSettings' "absent
// or empty leaves the environment value in place" contract.
func (s *SettingsStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.Get(&value, `SELECT value FROM settings WHERE key = $1`, key)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage: get setting %q: %w", key, err)
	}
	return value, true, nil
}

// Set upserts a setting value, for the admin-facing settings endpoint to
// write credential rotations through.
func (s *SettingsStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now())
	if err != nil {
		return fmt.Errorf("storage: set setting %q: %w", key, err)
	}
	return nil
}
