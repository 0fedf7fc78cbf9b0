package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettingRepository is a typed view over the settings table: one JSON document
// per key. The sync cursor, label mapping and sender-policy config all live
// here.
type SettingRepository struct {
	db *pgxpool.Pool
}

func NewSettingRepository(db *pgxpool.Pool) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get unmarshals the document stored under key into dest. Returns false when
// the key has never been written; that is not an error.
func (r *SettingRepository) Get(ctx context.Context, key string, dest any) (bool, error) {
	query := `
        SELECT value
        FROM settings
        WHERE key = $1
    `
	var raw []byte
	err := r.db.QueryRow(ctx, query, normalizeKey(key)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("setting %s: %w", key, err)
	}
	return true, nil
}

// Set replaces the document stored under key. Full replace, never merge:
// omission means "unset".
func (r *SettingRepository) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}

	query := `
        INSERT INTO settings (key, value, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (key) DO UPDATE SET
            value = EXCLUDED.value,
            updated_at = EXCLUDED.updated_at
    `
	_, err = r.db.Exec(ctx, query, normalizeKey(key), raw)
	return err
}

func normalizeKey(key string) string {
	return strings.ToLower(key)
}
