package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/HugPhiluu/PhilCard/internal/model"
	"github.com/HugPhiluu/PhilCard/internal/repository"
	"github.com/HugPhiluu/PhilCard/internal/repository/testutil"

	"github.com/stretchr/testify/require"
)

func TestLinkRepository_CreateAndGet(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewLinkRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, model.Link{
		Title:    "GitHub",
		URL:      "https://github.com/example",
		Subtitle: "code",
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.Equal(t, model.IconTypeNone, created.IconType)

	fetched, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "GitHub", fetched.Title)
	require.Equal(t, "code", fetched.Subtitle)
	require.Empty(t, fetched.IconName)
	require.Nil(t, fetched.IconUpdatedAt)
	require.WithinDuration(t, created.CreatedAt, fetched.CreatedAt, time.Millisecond)
}

func TestLinkRepository_GetByID_NotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewLinkRepository(db)

	_, err := repo.GetByID(context.Background(), 999)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestLinkRepository_Create_KeepsProvidedID(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewLinkRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, model.Link{ID: 7, Title: "Legacy", URL: "https://example.com"})
	require.NoError(t, err)
	require.Equal(t, int64(7), created.ID)
}

func TestLinkRepository_ListOrderedByPosition(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewLinkRepository(db)
	ctx := context.Background()

	a := testutil.SeedLink(t, db, model.Link{Title: "A", URL: "https://a.example"})
	c := testutil.SeedLink(t, db, model.Link{Title: "C", URL: "https://c.example", Position: 2})
	b := testutil.SeedLink(t, db, model.Link{Title: "B", URL: "https://b.example", Position: 1})

	links, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, links, 3)
	require.Equal(t, []string{"A", "B", "C"}, titles(links))
	require.Equal(t, a.ID, links[0].ID)
	require.Equal(t, b.ID, links[1].ID)
	require.Equal(t, c.ID, links[2].ID)
}

func TestLinkRepository_List_EmptyIsNotNil(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewLinkRepository(db)

	links, err := repo.List(context.Background())
	require.NoError(t, err)
	require.NotNil(t, links)
	require.Empty(t, links)
}

func TestLinkRepository_UpdateAndDelete(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewLinkRepository(db)
	ctx := context.Background()

	link := testutil.SeedLink(t, db, model.Link{Title: "Old", URL: "https://old.example"})
	link.Title = "New"
	link.IconType = model.IconTypeEmoji
	link.IconName = "🚀"
	_, err := repo.Update(ctx, link)
	require.NoError(t, err)

	fetched, err := repo.GetByID(ctx, link.ID)
	require.NoError(t, err)
	require.Equal(t, "New", fetched.Title)
	require.Equal(t, "🚀", fetched.IconName)

	require.NoError(t, repo.Delete(ctx, link.ID))
	require.ErrorIs(t, repo.Delete(ctx, link.ID), sql.ErrNoRows)

	_, err = repo.Update(ctx, link)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestLinkRepository_Reorder(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewLinkRepository(db)
	ctx := context.Background()

	a := testutil.SeedLink(t, db, model.Link{Title: "A", URL: "https://a.example"})
	b := testutil.SeedLink(t, db, model.Link{Title: "B", URL: "https://b.example"})
	c := testutil.SeedLink(t, db, model.Link{Title: "C", URL: "https://c.example"})

	require.NoError(t, repo.Reorder(ctx, []int64{c.ID, a.ID, b.ID}))

	links, err := repo.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"C", "A", "B"}, titles(links))
	require.Equal(t, 0, links[0].Position)
	require.Equal(t, 2, links[2].Position)
}

func TestLinkRepository_Reorder_UnknownIDRollsBack(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewLinkRepository(db)
	ctx := context.Background()

	a := testutil.SeedLink(t, db, model.Link{Title: "A", URL: "https://a.example"})
	b := testutil.SeedLink(t, db, model.Link{Title: "B", URL: "https://b.example"})

	err := repo.Reorder(ctx, []int64{b.ID, 12345})
	require.ErrorIs(t, err, sql.ErrNoRows)

	links, err := repo.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{a.ID, b.ID}, []int64{links[0].ID, links[1].ID})
}

func TestLinkRepository_NextPositionAndCount(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewLinkRepository(db)
	ctx := context.Background()

	next, err := repo.NextPosition(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, next)

	testutil.SeedLink(t, db, model.Link{Title: "A", URL: "https://a.example"})
	testutil.SeedLink(t, db, model.Link{Title: "B", URL: "https://b.example"})

	next, err = repo.NextPosition(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, next)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.NoError(t, repo.DeleteAll(ctx))
	count, err = repo.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestLinkRepository_IconUpdates(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewLinkRepository(db)
	ctx := context.Background()

	fav := testutil.SeedLink(t, db, model.Link{Title: "Fav", URL: "https://fav.example", IconType: model.IconTypeFavicon})
	testutil.SeedLink(t, db, model.Link{Title: "Plain", URL: "https://plain.example"})

	links, err := repo.ListByIconType(ctx, model.IconTypeFavicon)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, fav.ID, links[0].ID)

	fetchedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, repo.UpdateIcon(ctx, fav.ID, "fav.example.png", fetchedAt))

	got, err := repo.GetByID(ctx, fav.ID)
	require.NoError(t, err)
	require.Equal(t, "fav.example.png", got.IconName)
	require.NotNil(t, got.IconUpdatedAt)
	require.True(t, fetchedAt.Equal(*got.IconUpdatedAt))
}

func TestLinkRepository_ReplaceAll(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewLinkRepository(db)
	settings := repository.NewSettingsRepository(db)
	ctx := context.Background()

	testutil.SeedLink(t, db, model.Link{Title: "Gone", URL: "https://gone.example"})

	err := repo.ReplaceAll(ctx, []model.Link{
		{ID: 1, Title: "One", URL: "https://one.example", Position: 0},
		{Title: "Two", URL: "https://two.example", Position: 1},
	}, map[string]string{"profile.name": "Phil"})
	require.NoError(t, err)

	links, err := repo.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"One", "Two"}, titles(links))
	require.Equal(t, int64(1), links[0].ID)

	name, err := settings.Get(ctx, "profile.name")
	require.NoError(t, err)
	require.Equal(t, "Phil", name.Value)

	// duplicate ids abort the whole replacement, settings included
	err = repo.ReplaceAll(ctx, []model.Link{
		{ID: 5, Title: "X", URL: "https://x.example"},
		{ID: 5, Title: "Y", URL: "https://y.example"},
	}, map[string]string{"profile.name": "Changed"})
	require.Error(t, err)

	links, err = repo.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"One", "Two"}, titles(links))

	name, err = settings.Get(ctx, "profile.name")
	require.NoError(t, err)
	require.Equal(t, "Phil", name.Value)
}

func TestLinkRepository_ReplaceAll_NilSettings(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewLinkRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceAll(ctx, []model.Link{{Title: "Only", URL: "https://only.example"}}, nil))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func titles(links []model.Link) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.Title
	}
	return out
}
