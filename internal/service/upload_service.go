package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/HugPhiluu/PhilCard/internal/logger"
	"github.com/HugPhiluu/PhilCard/internal/model"
	"github.com/HugPhiluu/PhilCard/internal/repository"
)

// Upload kinds
const (
	UploadAvatar     = "avatar"
	UploadBackground = "background"
	UploadIcon       = "icon"
)

// UploadResult describes a stored upload.
type UploadResult struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type UploadService interface {
	// Upload stores an image. Avatar and background uploads also become the
	// current avatar / background, replacing the previous file.
	Upload(ctx context.Context, kind string, squareCrop bool, r io.Reader) (*UploadResult, error)
	Delete(ctx context.Context, filename string) error
	// Path returns the on-disk path of an upload, or ErrNotFound.
	Path(filename string) (string, error)
	// PruneUnreferenced removes uploads nothing points at that are older
	// than minAge.
	PruneUnreferenced(ctx context.Context, minAge time.Duration) (int, error)
}

type uploadService struct {
	store   *FileStore
	configs ConfigService
	links   repository.LinkRepository
	maxSize int64
	now     func() time.Time
}

func NewUploadService(store *FileStore, configs ConfigService, links repository.LinkRepository, maxSize int64) UploadService {
	if maxSize <= 0 {
		maxSize = 5 << 20
	}
	return &uploadService{
		store:   store,
		configs: configs,
		links:   links,
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (s *uploadService) Upload(ctx context.Context, kind string, squareCrop bool, r io.Reader) (*UploadResult, error) {
	switch kind {
	case UploadAvatar, UploadBackground, UploadIcon:
	default:
		return nil, invalid("kind", "must be avatar, background or icon")
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, ErrTooLarge
	}
	if len(data) == 0 {
		return nil, invalid("file", "is empty")
	}
	format, err := detectImageFormat(data)
	if err != nil {
		return nil, err
	}
	if squareCrop && kind == UploadAvatar {
		if data, err = cropSquare(data, format); err != nil {
			return nil, err
		}
	}

	name := fmt.Sprintf("%s-%s.%s", kind, uuid.NewString(), format.ext)
	if err := s.store.Write(name, data); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	switch kind {
	case UploadAvatar:
		_, err = s.configs.SetAvatar(ctx, name)
	case UploadBackground:
		_, err = s.configs.SetBackground(ctx, name)
	}
	if err != nil {
		_ = s.store.Remove(name)
		return nil, err
	}

	logger.Info("upload stored", "module", "service", "action", "create", "resource", "upload", "result", "ok", "kind", kind, "file", name, "size", len(data))
	return &UploadResult{
		Filename:    name,
		URL:         UploadURLPrefix + name,
		ContentType: format.contentType,
		Size:        int64(len(data)),
	}, nil
}

func (s *uploadService) Delete(ctx context.Context, filename string) error {
	if err := s.store.Remove(filename); err != nil {
		return err
	}

	cfg, err := s.configs.Get(ctx)
	if err != nil {
		return err
	}
	if cfg.Profile.Avatar == filename {
		if _, err := s.configs.ClearAvatar(ctx); err != nil {
			return fmt.Errorf("clear avatar: %w", err)
		}
	}
	if uploadName(cfg.Settings.BackgroundImageURL) == filename {
		settings := cfg.Settings
		settings.BackgroundImageURL = ""
		if _, err := s.configs.UpdateSettings(ctx, settings); err != nil {
			return fmt.Errorf("clear background: %w", err)
		}
	}
	logger.Info("upload deleted", "module", "service", "action", "delete", "resource", "upload", "result", "ok", "file", filename)
	return nil
}

func (s *uploadService) Path(filename string) (string, error) {
	if _, err := s.store.Stat(filename); err != nil {
		if errors.Is(err, ErrInvalid) {
			return "", ErrNotFound
		}
		return "", err
	}
	return s.store.Path(filename)
}

func (s *uploadService) PruneUnreferenced(ctx context.Context, minAge time.Duration) (int, error) {
	referenced, err := s.referenced(ctx)
	if err != nil {
		return 0, err
	}
	files, err := s.store.List()
	if err != nil {
		return 0, err
	}

	now := s.now()
	removed := 0
	for _, f := range files {
		if referenced[f.Name] || now.Sub(f.ModTime) < minAge {
			continue
		}
		if err := s.store.Remove(f.Name); err != nil {
			logger.Warn("prune upload failed", "module", "service", "action", "delete", "resource", "upload", "result", "failed", "file", f.Name, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

func (s *uploadService) referenced(ctx context.Context) (map[string]bool, error) {
	cfg, err := s.configs.Get(ctx)
	if err != nil {
		return nil, err
	}
	refs := map[string]bool{}
	if cfg.Profile.Avatar != "" {
		refs[cfg.Profile.Avatar] = true
	}
	if name := uploadName(cfg.Profile.AvatarURL); name != "" {
		refs[name] = true
	}
	if name := uploadName(cfg.Settings.BackgroundImageURL); name != "" {
		refs[name] = true
	}

	links, err := s.links.ListByIconType(ctx, model.IconTypeCustom)
	if err != nil {
		return nil, fmt.Errorf("list custom icon links: %w", err)
	}
	for _, link := range links {
		if name := uploadName(link.IconName); name != "" {
			refs[name] = true
		}
	}
	return refs, nil
}
