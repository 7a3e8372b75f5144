package repository

//go:generate mockgen -source=link_repository.go -destination=mock/link_repository_mock.go -package=mock

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/HugPhiluu/PhilCard/internal/model"
	"github.com/HugPhiluu/PhilCard/internal/snowflake"
)

type LinkRepository interface {
	Create(ctx context.Context, link model.Link) (model.Link, error)
	GetByID(ctx context.Context, id int64) (model.Link, error)
	List(ctx context.Context) ([]model.Link, error)
	ListByIconType(ctx context.Context, iconType string) ([]model.Link, error)
	Update(ctx context.Context, link model.Link) (model.Link, error)
	UpdateIcon(ctx context.Context, id int64, iconName string, fetchedAt time.Time) error
	Delete(ctx context.Context, id int64) error
	// Reorder assigns position i to ids[i] in one transaction.
	Reorder(ctx context.Context, ids []int64) error
	NextPosition(ctx context.Context) (int, error)
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
	// ReplaceAll swaps the whole link set and upserts settings in one
	// transaction.
	ReplaceAll(ctx context.Context, links []model.Link, settings map[string]string) error
}

const linkColumns = `id, title, url, subtitle, icon_name, icon_type, position, icon_updated_at, created_at, updated_at`

type linkRepository struct {
	db *sql.DB
}

func NewLinkRepository(db *sql.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link model.Link) (model.Link, error) {
	return insertLink(ctx, r.db, link)
}

// insertLink keeps a caller-provided id and timestamps so imports round-trip.
func insertLink(ctx context.Context, db dbtx, link model.Link) (model.Link, error) {
	if link.ID == 0 {
		link.ID = snowflake.NextID()
	}
	now := time.Now().UTC()
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	if link.UpdatedAt.IsZero() {
		link.UpdatedAt = link.CreatedAt
	}
	if link.IconType == "" {
		link.IconType = model.IconTypeNone
	}
	_, err := db.ExecContext(
		ctx,
		`INSERT INTO links (`+linkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		link.ID,
		link.Title,
		link.URL,
		nullableString(link.Subtitle),
		nullableString(link.IconName),
		link.IconType,
		link.Position,
		nullableTime(link.IconUpdatedAt),
		formatTime(link.CreatedAt),
		formatTime(link.UpdatedAt),
	)
	if err != nil {
		return model.Link{}, fmt.Errorf("create link: %w", err)
	}
	return link, nil
}

func (r *linkRepository) GetByID(ctx context.Context, id int64) (model.Link, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM links WHERE id = ?`, id)
	return scanLink(row)
}

func (r *linkRepository) List(ctx context.Context) ([]model.Link, error) {
	return r.query(ctx, `SELECT `+linkColumns+` FROM links ORDER BY position, created_at, id`)
}

func (r *linkRepository) ListByIconType(ctx context.Context, iconType string) ([]model.Link, error) {
	return r.query(ctx, `SELECT `+linkColumns+` FROM links WHERE icon_type = ? ORDER BY position, created_at, id`, iconType)
}

func (r *linkRepository) query(ctx context.Context, query string, args ...any) ([]model.Link, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	links := make([]model.Link, 0)
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}
	return links, nil
}

func (r *linkRepository) Update(ctx context.Context, link model.Link) (model.Link, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(
		ctx,
		`UPDATE links SET title = ?, url = ?, subtitle = ?, icon_name = ?, icon_type = ?, position = ?, updated_at = ? WHERE id = ?`,
		link.Title,
		link.URL,
		nullableString(link.Subtitle),
		nullableString(link.IconName),
		link.IconType,
		link.Position,
		formatTime(now),
		link.ID,
	)
	if err != nil {
		return model.Link{}, fmt.Errorf("update link: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return model.Link{}, err
	}
	link.UpdatedAt = now
	return link, nil
}

func (r *linkRepository) UpdateIcon(ctx context.Context, id int64, iconName string, fetchedAt time.Time) error {
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE links SET icon_name = ?, icon_updated_at = ? WHERE id = ?`,
		nullableString(iconName),
		nullableTime(&fetchedAt),
		id,
	)
	if err != nil {
		return fmt.Errorf("update link icon: %w", err)
	}
	return nil
}

func (r *linkRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM links WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	return requireAffected(res)
}

func (r *linkRepository) Reorder(ctx context.Context, ids []int64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE links SET position = ? WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("prepare reorder: %w", err)
		}
		defer stmt.Close()

		for i, id := range ids {
			res, err := stmt.ExecContext(ctx, i, id)
			if err != nil {
				return fmt.Errorf("reorder link %d: %w", id, err)
			}
			if err := requireAffected(res); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *linkRepository) NextPosition(ctx context.Context) (int, error) {
	var next int
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM links`).Scan(&next); err != nil {
		return 0, fmt.Errorf("next link position: %w", err)
	}
	return next, nil
}

func (r *linkRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM links`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count links: %w", err)
	}
	return count, nil
}

func (r *linkRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM links`); err != nil {
		return fmt.Errorf("delete links: %w", err)
	}
	return nil
}

func (r *linkRepository) ReplaceAll(ctx context.Context, links []model.Link, settings map[string]string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM links`); err != nil {
			return fmt.Errorf("clear links: %w", err)
		}
		for _, link := range links {
			if _, err := insertLink(ctx, tx, link); err != nil {
				return err
			}
		}
		return upsertSettings(ctx, tx, settings)
	})
}

// requireAffected maps a zero-row write to sql.ErrNoRows.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanLink(s scanner) (model.Link, error) {
	var link model.Link
	var subtitle sql.NullString
	var iconName sql.NullString
	var iconUpdatedAt sql.NullString
	var createdAt string
	var updatedAt string
	if err := s.Scan(
		&link.ID,
		&link.Title,
		&link.URL,
		&subtitle,
		&iconName,
		&link.IconType,
		&link.Position,
		&iconUpdatedAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return model.Link{}, err
	}
	link.Subtitle = subtitle.String
	link.IconName = iconName.String
	if iconUpdatedAt.Valid {
		if t, err := parseTime(iconUpdatedAt.String); err == nil {
			link.IconUpdatedAt = &t
		}
	}
	var err error
	link.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return model.Link{}, fmt.Errorf("parse link created_at: %w", err)
	}
	link.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return model.Link{}, fmt.Errorf("parse link updated_at: %w", err)
	}
	return link, nil
}
