package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/HugPhiluu/PhilCard/internal/backup"
	"github.com/HugPhiluu/PhilCard/internal/model"
	"github.com/HugPhiluu/PhilCard/internal/repository"
	"github.com/HugPhiluu/PhilCard/internal/repository/testutil"
	"github.com/HugPhiluu/PhilCard/internal/service"
)

type backupFixture struct {
	svc     service.BackupService
	links   repository.LinkRepository
	configs service.ConfigService
	auth    service.AuthService
	uploads *service.FileStore
}

func newBackupFixture(t *testing.T) backupFixture {
	t.Helper()
	database := testutil.NewTestDB(t)
	settings := repository.NewSettingsRepository(database)
	links := repository.NewLinkRepository(database)
	uploads := service.NewFileStore(t.TempDir())
	configs := service.NewConfigService(settings, uploads)
	auth := service.NewAuthService(settings, time.Hour)
	return backupFixture{
		svc:     service.NewBackupService(links, configs, auth, uploads),
		links:   links,
		configs: configs,
		auth:    auth,
		uploads: uploads,
	}
}

func TestBackupService_ExportImportRoundTrip(t *testing.T) {
	src := newBackupFixture(t)
	ctx := context.Background()

	first, err := src.links.Create(ctx, model.Link{Title: "Blog", URL: "https://blog.example.com", IconType: model.IconTypeEmoji, IconName: "📝"})
	require.NoError(t, err)
	second, err := src.links.Create(ctx, model.Link{Title: "Mail", URL: "mailto:me@example.com", Subtitle: "say hi", Position: 1})
	require.NoError(t, err)
	_, err = src.configs.UpdateProfile(ctx, service.ProfileInput{Name: "Phil", Description: "Links"})
	require.NoError(t, err)
	_, err = src.configs.UpdateSettings(ctx, model.PageSettings{Theme: "dark", AccentColor: "#123456", ShowFooter: false})
	require.NoError(t, err)

	exportedAt := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	service.SetBackupClockForTest(src.svc, func() time.Time { return exportedAt })
	data, err := src.svc.Export(ctx)
	require.NoError(t, err)

	doc, err := backup.Parse(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, backup.CurrentVersion, doc.Version)
	require.True(t, doc.ExportedAt.Equal(exportedAt))
	require.Len(t, doc.Links, 2)
	require.Empty(t, doc.Config.AdminPasswordHash)

	dst := newBackupFixture(t)
	_, err = dst.links.Create(ctx, model.Link{Title: "Old", URL: "https://old.example.com"})
	require.NoError(t, err)

	result, err := dst.svc.Import(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, service.ImportResult{Links: 2, ConfigImported: true}, result)

	links, err := dst.links.List(ctx)
	require.NoError(t, err)
	require.Len(t, links, 2)
	require.Equal(t, first.ID, links[0].ID)
	require.Equal(t, "📝", links[0].IconName)
	require.Equal(t, second.ID, links[1].ID)
	require.Equal(t, "say hi", links[1].Subtitle)

	cfg, err := dst.configs.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "Phil", cfg.Profile.Name)
	require.Equal(t, model.ThemeDark, cfg.Settings.Theme)
	require.False(t, cfg.Settings.ShowFooter)
}

func TestBackupService_ImportRejectsBadDocuments(t *testing.T) {
	f := newBackupFixture(t)
	ctx := context.Background()

	existing, err := f.links.Create(ctx, model.Link{Title: "Keep", URL: "https://keep.example.com"})
	require.NoError(t, err)

	_, err = f.svc.Import(ctx, strings.NewReader("{not json"))
	require.ErrorIs(t, err, service.ErrInvalid)

	_, err = f.svc.Import(ctx, strings.NewReader(`{"version":99,"links":[]}`))
	require.ErrorIs(t, err, service.ErrInvalid)

	_, err = f.svc.Import(ctx, strings.NewReader(`{"version":1,"links":[{"title":"ok","url":"https://ok.example.com"},{"title":"bad","url":"javascript:alert(1)"}]}`))
	require.ErrorIs(t, err, service.ErrInvalid)
	require.Contains(t, err.Error(), "links[1].url")

	// nothing was replaced
	links, err := f.links.List(ctx)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, existing.ID, links[0].ID)
}

func TestBackupService_ImportInvalidConfigChangesNothing(t *testing.T) {
	f := newBackupFixture(t)
	ctx := context.Background()

	existing, err := f.links.Create(ctx, model.Link{Title: "Keep", URL: "https://keep.example.com"})
	require.NoError(t, err)
	_, err = f.configs.UpdateProfile(ctx, service.ProfileInput{Name: "Phil"})
	require.NoError(t, err)

	for _, cfg := range []string{
		`{"settings":{"theme":"neon"}}`,
		`{"settings":{"accentColor":"blue"}}`,
		`{"profile":{"name":"X","avatarUrl":"javascript:alert(1)"}}`,
	} {
		doc := `{"version":1,"links":[{"title":"New","url":"https://new.example.com"}],"config":` + cfg + `}`
		_, err := f.svc.Import(ctx, strings.NewReader(doc))
		require.ErrorIs(t, err, service.ErrInvalid, cfg)
	}

	links, err := f.links.List(ctx)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, existing.ID, links[0].ID)

	current, err := f.configs.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "Phil", current.Profile.Name)
	require.Equal(t, model.ThemeAuto, current.Settings.Theme)
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestBackupService_ImportKeepsReadErrorCause(t *testing.T) {
	f := newBackupFixture(t)

	_, err := f.svc.Import(context.Background(), failingReader{err: &http.MaxBytesError{Limit: 10}})
	require.ErrorIs(t, err, service.ErrInvalid)

	var maxErr *http.MaxBytesError
	require.ErrorAs(t, err, &maxErr)
	require.Equal(t, int64(10), maxErr.Limit)
}

func TestBackupService_ImportOrdersByPosition(t *testing.T) {
	f := newBackupFixture(t)
	ctx := context.Background()

	doc := `{"version":1,"links":[
		{"id":"5","title":"Third","url":"https://c.example.com","position":7},
		{"id":5,"title":"First","url":"https://a.example.com","position":0},
		{"id":"abc","title":"Last","url":"https://d.example.com"},
		{"title":"Second","url":"https://b.example.com","position":3}
	]}`
	result, err := f.svc.Import(ctx, strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, 4, result.Links)

	links, err := f.links.List(ctx)
	require.NoError(t, err)
	titles := make([]string, len(links))
	for i, link := range links {
		titles[i] = link.Title
		require.Equal(t, i, link.Position)
	}
	require.Equal(t, []string{"First", "Second", "Third", "Last"}, titles)

	// the duplicated id 5 is kept once
	require.Equal(t, int64(5), links[0].ID)
	require.NotEqual(t, int64(5), links[2].ID)
}

func TestBackupService_ImportLegacy(t *testing.T) {
	f := newBackupFixture(t)
	ctx := context.Background()
	dir := t.TempDir()

	hash, err := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	linksJSON := `[
		{"id": 1700000000001, "title": "Site", "url": "https://site.example.com", "iconType": "favicon", "position": 1},
		{"id": "1700000000000", "title": "Twitter", "url": "https://x.com/me", "iconType": "builtin", "iconName": "twitter", "position": 0}
	]`
	configJSON, err := json.Marshal(map[string]any{
		"profile":           map[string]any{"name": "Legacy Phil", "description": "old page"},
		"settings":          map[string]any{"theme": "light"},
		"adminPasswordHash": string(hash),
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "links.json"), []byte(linksJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), configJSON, 0o644))

	result, err := f.svc.ImportLegacy(ctx, "")
	require.NoError(t, err)
	require.Nil(t, result)

	result, err = f.svc.ImportLegacy(ctx, dir)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, service.ImportResult{Links: 2, ConfigImported: true, CredentialsImported: true}, *result)

	links, err := f.links.List(ctx)
	require.NoError(t, err)
	require.Len(t, links, 2)
	require.Equal(t, "Twitter", links[0].Title)
	require.Equal(t, int64(1700000000000), links[0].ID)
	require.Equal(t, "Site", links[1].Title)

	cfg, err := f.configs.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "Legacy Phil", cfg.Profile.Name)
	require.Equal(t, model.ThemeLight, cfg.Settings.Theme)
	require.True(t, cfg.Settings.ShowFooter)

	_, err = f.auth.Login(ctx, "legacy-pass")
	require.NoError(t, err)

	// links exist now, so a second run is a no-op
	result, err = f.svc.ImportLegacy(ctx, dir)
	require.NoError(t, err)
	require.Nil(t, result)
}

func TestBackupService_ImportLegacy_InvalidConfigWritesNothing(t *testing.T) {
	f := newBackupFixture(t)
	ctx := context.Background()
	dir := t.TempDir()

	linksJSON := `[{"title": "Site", "url": "https://site.example.com"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "links.json"), []byte(linksJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"profile":{"name":"Legacy"},"settings":{"theme":"neon"}}`), 0o644))

	_, err := f.svc.ImportLegacy(ctx, dir)
	require.ErrorIs(t, err, service.ErrInvalid)

	count, err := f.links.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	// once the config is fixed the next start imports everything
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"profile":{"name":"Legacy"},"settings":{"theme":"dark"}}`), 0o644))
	result, err := f.svc.ImportLegacy(ctx, dir)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, 1, result.Links)

	cfg, err := f.configs.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "Legacy", cfg.Profile.Name)
	require.Equal(t, model.ThemeDark, cfg.Settings.Theme)
}

func TestBackupService_ImportLegacy_CopiesRelativeImages(t *testing.T) {
	f := newBackupFixture(t)
	ctx := context.Background()
	dir := t.TempDir()

	avatar := pngBytes(t, 4, 4)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "uploads"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uploads", "avatar.png"), avatar, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an image"), 0o644))
	configJSON := `{
		"profile": {"name": "Legacy", "avatarUrl": "uploads/avatar.png"},
		"settings": {"backgroundImageUrl": "/missing/bg.jpg"}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(configJSON), 0o644))

	result, err := f.svc.ImportLegacy(ctx, dir)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.True(t, result.ConfigImported)

	cfg, err := f.configs.Get(ctx)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(cfg.Profile.Avatar, "avatar-"), cfg.Profile.Avatar)
	require.True(t, strings.HasSuffix(cfg.Profile.Avatar, ".png"), cfg.Profile.Avatar)
	require.Equal(t, "/uploads/"+cfg.Profile.Avatar, cfg.Profile.AvatarURL)
	require.Empty(t, cfg.Settings.BackgroundImageURL)

	fullPath, err := f.uploads.Path(cfg.Profile.Avatar)
	require.NoError(t, err)
	copied, err := os.ReadFile(fullPath)
	require.NoError(t, err)
	require.Equal(t, avatar, copied)
}

func TestBackupService_ImportLegacy_DropsNonImageReferences(t *testing.T) {
	f := newBackupFixture(t)
	ctx := context.Background()
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an image"), 0o644))
	configJSON := `{
		"profile": {"name": "Legacy", "avatarUrl": "../notes.txt"},
		"settings": {"backgroundImageUrl": "https://cdn.example.com/bg.jpg"}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(configJSON), 0o644))

	_, err := f.svc.ImportLegacy(ctx, dir)
	require.NoError(t, err)

	cfg, err := f.configs.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "Legacy", cfg.Profile.Name)
	require.Empty(t, cfg.Profile.AvatarURL)
	require.Equal(t, "https://cdn.example.com/bg.jpg", cfg.Settings.BackgroundImageURL)

	files, err := f.uploads.List()
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestBackupService_ImportLegacy_MissingFiles(t *testing.T) {
	f := newBackupFixture(t)

	result, err := f.svc.ImportLegacy(context.Background(), t.TempDir())
	require.NoError(t, err)
	require.Nil(t, result)
}
