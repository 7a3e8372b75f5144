// Package testutil opens throwaway databases for repository and service tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HugPhiluu/PhilCard/internal/db"
	"github.com/HugPhiluu/PhilCard/internal/model"
	"github.com/HugPhiluu/PhilCard/internal/repository"
)

// NewTestDB opens a migrated SQLite file in a temp dir, closed on cleanup.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

// SeedLink inserts link at the next position and returns the stored row.
func SeedLink(t *testing.T, database *sql.DB, link model.Link) model.Link {
	t.Helper()
	repo := repository.NewLinkRepository(database)
	ctx := context.Background()
	if link.Position == 0 {
		pos, err := repo.NextPosition(ctx)
		require.NoError(t, err)
		link.Position = pos
	}
	created, err := repo.Create(ctx, link)
	require.NoError(t, err)
	return created
}
