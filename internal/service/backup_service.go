package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HugPhiluu/PhilCard/internal/backup"
	"github.com/HugPhiluu/PhilCard/internal/logger"
	"github.com/HugPhiluu/PhilCard/internal/model"
	"github.com/HugPhiluu/PhilCard/internal/repository"
	"github.com/HugPhiluu/PhilCard/internal/snowflake"
)

const (
	legacyLinksFile  = "links.json"
	legacyConfigFile = "config.json"
	maxLegacyFile    = 10 << 20
)

// ImportResult reports what an import changed.
type ImportResult struct {
	Links               int  `json:"links"`
	ConfigImported      bool `json:"configImported"`
	CredentialsImported bool `json:"credentialsImported"`
}

type BackupService interface {
	Export(ctx context.Context) ([]byte, error)
	// Import replaces all links and the site config. Credentials are kept.
	Import(ctx context.Context, r io.Reader) (ImportResult, error)
	// ImportLegacy loads links.json / config.json from dir once, while the
	// database still has no links. A nil result means nothing was imported.
	ImportLegacy(ctx context.Context, dir string) (*ImportResult, error)
}

type backupService struct {
	links   repository.LinkRepository
	configs ConfigService
	auth    AuthService
	uploads *FileStore
	now     func() time.Time
}

// NewBackupService builds the backup service. uploads receives images copied
// out of a legacy data directory.
func NewBackupService(links repository.LinkRepository, configs ConfigService, auth AuthService, uploads *FileStore) BackupService {
	return &backupService{links: links, configs: configs, auth: auth, uploads: uploads, now: time.Now}
}

func (s *backupService) Export(ctx context.Context) ([]byte, error) {
	links, err := s.links.List(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := s.configs.Get(ctx)
	if err != nil {
		return nil, err
	}

	doc := &backup.Document{
		Version:    backup.CurrentVersion,
		ExportedAt: s.now().UTC().Truncate(time.Second),
		Links:      make([]backup.Link, 0, len(links)),
		Config:     toBackupConfig(cfg),
	}
	for _, link := range links {
		pos := link.Position
		doc.Links = append(doc.Links, backup.Link{
			ID:        backup.FlexID(snowflake.FormatID(link.ID)),
			Title:     link.Title,
			URL:       link.URL,
			Subtitle:  link.Subtitle,
			IconName:  link.IconName,
			IconType:  link.IconType,
			Position:  &pos,
			CreatedAt: link.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt: link.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	logger.Info("backup exported", "module", "service", "action", "export", "resource", "backup", "result", "ok", "count", len(links))
	return backup.Encode(doc)
}

func (s *backupService) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	doc, err := backup.Parse(r)
	if err != nil {
		return ImportResult{}, invalidErr("file", err)
	}
	links, err := buildImportLinks(doc.Links)
	if err != nil {
		return ImportResult{}, err
	}
	values, err := s.configs.Values(fromBackupConfig(doc.Config))
	if err != nil {
		return ImportResult{}, err
	}

	if err := s.links.ReplaceAll(ctx, links, values); err != nil {
		return ImportResult{}, fmt.Errorf("import backup: %w", err)
	}
	logger.Info("backup imported", "module", "service", "action", "import", "resource", "backup", "result", "ok", "count", len(links))
	return ImportResult{Links: len(links), ConfigImported: true}, nil
}

func (s *backupService) ImportLegacy(ctx context.Context, dir string) (*ImportResult, error) {
	if dir == "" {
		return nil, nil
	}
	count, err := s.links.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		logger.Debug("legacy import skipped", "module", "service", "action", "import", "resource", "backup", "result", "skipped", "reason", "links exist")
		return nil, nil
	}

	linksData, err := readOptionalFile(filepath.Join(dir, legacyLinksFile))
	if err != nil {
		return nil, err
	}
	configData, err := readOptionalFile(filepath.Join(dir, legacyConfigFile))
	if err != nil {
		return nil, err
	}
	if linksData == nil && configData == nil {
		return nil, nil
	}

	// both files are validated before anything is written
	var links []model.Link
	if linksData != nil {
		raw, err := backup.ParseLegacyLinks(linksData)
		if err != nil {
			return nil, invalid(legacyLinksFile, "%v", err)
		}
		if links, err = buildImportLinks(raw); err != nil {
			return nil, err
		}
	}
	var legacy *backup.Config
	var values map[string]string
	if configData != nil {
		if legacy, err = backup.ParseLegacyConfig(configData); err != nil {
			return nil, invalid(legacyConfigFile, "%v", err)
		}
		s.adoptLegacyImages(dir, legacy)
		if values, err = s.configs.Values(fromBackupConfig(*legacy)); err != nil {
			return nil, err
		}
	}

	if err := s.links.ReplaceAll(ctx, links, values); err != nil {
		return nil, fmt.Errorf("import legacy data: %w", err)
	}
	result := &ImportResult{Links: len(links), ConfigImported: legacy != nil}
	if legacy != nil && legacy.AdminPasswordHash != "" {
		imported, err := s.auth.ImportHash(ctx, legacy.AdminPasswordHash)
		if err != nil {
			return nil, err
		}
		if !imported {
			logger.Warn("legacy password hash ignored", "module", "service", "action", "import", "resource", "auth", "result", "skipped")
		}
		result.CredentialsImported = imported
	}

	logger.Info("legacy data imported", "module", "service", "action", "import", "resource", "backup", "result", "ok",
		"links", result.Links, "config", result.ConfigImported, "credentials", result.CredentialsImported)
	return result, nil
}

// adoptLegacyImages copies images that the legacy config references by a
// relative path into the upload store. References that cannot be resolved to
// an image are dropped.
func (s *backupService) adoptLegacyImages(dir string, cfg *backup.Config) {
	avatar := cfg.Profile.AvatarURL
	if name := strings.TrimSpace(cfg.Profile.Avatar); name != "" {
		avatar = UploadURLPrefix + name
	}
	cfg.Profile.Avatar = ""
	cfg.Profile.AvatarURL = s.adoptLegacyImage(dir, avatar, UploadAvatar)
	cfg.Settings.BackgroundImageURL = s.adoptLegacyImage(dir, cfg.Settings.BackgroundImageURL, UploadBackground)
}

func (s *backupService) adoptLegacyImage(dir, ref, kind string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || isImageURL(ref) {
		return ref
	}
	if name := uploadName(ref); name != "" {
		if _, err := s.uploads.Stat(name); err == nil {
			return ref
		}
	}
	if u, err := url.Parse(ref); err != nil || u.Scheme != "" || u.Host != "" {
		logger.Warn("legacy image dropped", "module", "service", "action", "import", "resource", "upload", "result", "skipped", "kind", kind, "reason", "unsupported url")
		return ""
	}

	rel := path.Clean("/" + strings.TrimPrefix(ref, "./"))
	data, err := readOptionalFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil || data == nil {
		logger.Warn("legacy image dropped", "module", "service", "action", "import", "resource", "upload", "result", "skipped", "kind", kind, "path", rel)
		return ""
	}
	format, err := detectImageFormat(data)
	if err != nil {
		logger.Warn("legacy image dropped", "module", "service", "action", "import", "resource", "upload", "result", "skipped", "kind", kind, "path", rel, "reason", "not an image")
		return ""
	}
	name := fmt.Sprintf("%s-%s.%s", kind, uuid.NewString(), format.ext)
	if err := s.uploads.Write(name, data); err != nil {
		logger.Warn("legacy image dropped", "module", "service", "action", "import", "resource", "upload", "result", "failed", "kind", kind, "error", err)
		return ""
	}
	logger.Info("legacy image copied", "module", "service", "action", "import", "resource", "upload", "result", "ok", "kind", kind, "file", name)
	return UploadURLPrefix + name
}

// buildImportLinks validates raw links and orders them by their stored
// position, falling back to file order. Integer ids are kept unless they
// repeat; everything else gets a fresh id.
func buildImportLinks(raw []backup.Link) ([]model.Link, error) {
	type indexed struct {
		link  backup.Link
		index int
	}
	items := make([]indexed, len(raw))
	for i, l := range raw {
		items[i] = indexed{link: l, index: i}
	}
	sort.SliceStable(items, func(a, b int) bool {
		pa, pb := items[a].link.Position, items[b].link.Position
		if pa == nil || pb == nil {
			return pa != nil && pb == nil
		}
		return *pa < *pb
	})

	seen := make(map[int64]bool, len(items))
	links := make([]model.Link, 0, len(items))
	for pos, item := range items {
		link, err := normalizeLink(LinkInput{
			Title:    item.link.Title,
			URL:      item.link.URL,
			Subtitle: item.link.Subtitle,
			IconName: item.link.IconName,
			IconType: item.link.IconType,
		})
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				return nil, invalid(fmt.Sprintf("links[%d].%s", item.index, verr.Field), "%s", verr.Message)
			}
			return nil, err
		}
		if id, ok := item.link.ID.Int64(); ok && !seen[id] {
			link.ID = id
			seen[id] = true
		}
		link.Position = pos
		link.CreatedAt = parseImportTime(item.link.CreatedAt)
		link.UpdatedAt = parseImportTime(item.link.UpdatedAt)
		links = append(links, link)
	}
	return links, nil
}

func parseImportTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func toBackupConfig(cfg model.SiteConfig) backup.Config {
	showFooter := cfg.Settings.ShowFooter
	return backup.Config{
		Profile: backup.Profile{
			Name:        cfg.Profile.Name,
			Description: cfg.Profile.Description,
			Avatar:      cfg.Profile.Avatar,
			AvatarURL:   cfg.Profile.AvatarURL,
		},
		Settings: backup.Settings{
			BackgroundImageURL: cfg.Settings.BackgroundImageURL,
			PageTitle:          cfg.Settings.PageTitle,
			Theme:              cfg.Settings.Theme,
			AccentColor:        cfg.Settings.AccentColor,
			ButtonStyle:        cfg.Settings.ButtonStyle,
			ShowFooter:         &showFooter,
		},
	}
}

func fromBackupConfig(cfg backup.Config) model.SiteConfig {
	showFooter := true
	if cfg.Settings.ShowFooter != nil {
		showFooter = *cfg.Settings.ShowFooter
	}
	return model.SiteConfig{
		Profile: model.Profile{
			Name:        cfg.Profile.Name,
			Description: cfg.Profile.Description,
			Avatar:      cfg.Profile.Avatar,
			AvatarURL:   cfg.Profile.AvatarURL,
		},
		Settings: model.PageSettings{
			BackgroundImageURL: cfg.Settings.BackgroundImageURL,
			PageTitle:          cfg.Settings.PageTitle,
			Theme:              cfg.Settings.Theme,
			AccentColor:        cfg.Settings.AccentColor,
			ButtonStyle:        cfg.Settings.ButtonStyle,
			ShowFooter:         showFooter,
		},
	}
}

// readOptionalFile returns nil, nil when path does not exist.
func readOptionalFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxLegacyFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return data, nil
}
