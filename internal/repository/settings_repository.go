package repository

//go:generate mockgen -source=settings_repository.go -destination=mock/settings_repository_mock.go -package=mock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/HugPhiluu/PhilCard/internal/model"
)

// SettingsRepository is the key/value store behind the site config and
// admin credentials.
type SettingsRepository interface {
	// Get returns nil, nil when the key is absent.
	Get(ctx context.Context, key string) (*model.Setting, error)
	Set(ctx context.Context, key, value string) error
	// SetMany upserts all pairs in one transaction.
	SetMany(ctx context.Context, values map[string]string) error
	GetByPrefix(ctx context.Context, prefix string) ([]model.Setting, error)
	Delete(ctx context.Context, key string) error
}

const upsertSetting = `
	INSERT INTO settings (key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`

type settingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context, key string) (*model.Setting, error) {
	row := r.db.QueryRowContext(ctx, `SELECT key, value, updated_at FROM settings WHERE key = ?`, key)

	s, err := scanSetting(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get setting %s: %w", key, err)
	}
	return &s, nil
}

func (r *settingsRepository) Set(ctx context.Context, key, value string) error {
	if _, err := r.db.ExecContext(ctx, upsertSetting, key, value, formatTime(time.Now())); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func (r *settingsRepository) SetMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return upsertSettings(ctx, tx, values)
	})
}

func upsertSettings(ctx context.Context, db dbtx, values map[string]string) error {
	now := formatTime(time.Now())
	for key, value := range values {
		if _, err := db.ExecContext(ctx, upsertSetting, key, value, now); err != nil {
			return fmt.Errorf("set setting %s: %w", key, err)
		}
	}
	return nil
}

// GetByPrefix matches keys literally; LIKE wildcards in prefix are escaped.
func (r *settingsRepository) GetByPrefix(ctx context.Context, prefix string) ([]model.Setting, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key, value, updated_at FROM settings WHERE key LIKE ? ESCAPE '\' ORDER BY key`,
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var settings []model.Setting
	for rows.Next() {
		s, err := scanSetting(rows)
		if err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

func (r *settingsRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

func scanSetting(s scanner) (model.Setting, error) {
	var setting model.Setting
	var updatedAt string
	if err := s.Scan(&setting.Key, &setting.Value, &updatedAt); err != nil {
		return model.Setting{}, err
	}
	setting.UpdatedAt, _ = parseTime(updatedAt)
	return setting, nil
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
