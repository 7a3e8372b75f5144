package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/HugPhiluu/PhilCard/internal/logger"
	"github.com/HugPhiluu/PhilCard/internal/model"
	"github.com/HugPhiluu/PhilCard/internal/repository"
)

const (
	maxTitleLength    = 200
	maxSubtitleLength = 300
	maxIconNameLength = 512
)

var allowedLinkSchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"mailto": true,
	"tel":    true,
}

// LinkInput holds the client-editable fields of a link.
type LinkInput struct {
	Title    string
	URL      string
	Subtitle string
	IconName string
	IconType string
}

type LinkService interface {
	List(ctx context.Context) ([]model.Link, error)
	Get(ctx context.Context, id int64) (model.Link, error)
	Create(ctx context.Context, in LinkInput) (model.Link, error)
	Update(ctx context.Context, id int64, in LinkInput) (model.Link, error)
	Delete(ctx context.Context, id int64) error
	// Reorder requires ids to be a permutation of all existing link ids.
	Reorder(ctx context.Context, ids []int64) ([]model.Link, error)
}

// faviconFetcher resolves the cached favicon file for a link.
type faviconFetcher interface {
	FetchLinkIcon(ctx context.Context, link model.Link) (string, error)
}

type linkService struct {
	links repository.LinkRepository
	icons faviconFetcher
}

// NewLinkService wires the link store with an optional favicon fetcher.
func NewLinkService(links repository.LinkRepository, icons faviconFetcher) LinkService {
	return &linkService{links: links, icons: icons}
}

func (s *linkService) List(ctx context.Context) ([]model.Link, error) {
	return s.links.List(ctx)
}

func (s *linkService) Get(ctx context.Context, id int64) (model.Link, error) {
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Link{}, ErrNotFound
		}
		return model.Link{}, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}

func (s *linkService) Create(ctx context.Context, in LinkInput) (model.Link, error) {
	link, err := normalizeLink(in)
	if err != nil {
		return model.Link{}, err
	}
	pos, err := s.links.NextPosition(ctx)
	if err != nil {
		return model.Link{}, err
	}
	link.Position = pos

	created, err := s.links.Create(ctx, link)
	if err != nil {
		return model.Link{}, err
	}
	logger.Info("link created", "module", "service", "action", "create", "resource", "link", "result", "ok", "link_id", created.ID)
	return s.attachFavicon(ctx, created), nil
}

func (s *linkService) Update(ctx context.Context, id int64, in LinkInput) (model.Link, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return model.Link{}, err
	}
	link, err := normalizeLink(in)
	if err != nil {
		return model.Link{}, err
	}
	link.ID = existing.ID
	link.Position = existing.Position
	link.CreatedAt = existing.CreatedAt
	if link.IconType == model.IconTypeFavicon && existing.IconType == model.IconTypeFavicon {
		link.IconName = existing.IconName
	}

	updated, err := s.links.Update(ctx, link)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Link{}, ErrNotFound
		}
		return model.Link{}, err
	}
	logger.Info("link updated", "module", "service", "action", "update", "resource", "link", "result", "ok", "link_id", id)
	return s.attachFavicon(ctx, updated), nil
}

func (s *linkService) Delete(ctx context.Context, id int64) error {
	if err := s.links.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("delete link: %w", err)
	}
	logger.Info("link deleted", "module", "service", "action", "delete", "resource", "link", "result", "ok", "link_id", id)
	return nil
}

func (s *linkService) Reorder(ctx context.Context, ids []int64) ([]model.Link, error) {
	current, err := s.links.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) != len(current) {
		return nil, invalid("ids", "expected %d ids, got %d", len(current), len(ids))
	}
	known := make(map[int64]bool, len(current))
	for _, link := range current {
		known[link.ID] = true
	}
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !known[id] {
			return nil, invalid("ids", "unknown link id %d", id)
		}
		if seen[id] {
			return nil, invalid("ids", "duplicate link id %d", id)
		}
		seen[id] = true
	}

	if err := s.links.Reorder(ctx, ids); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// a link vanished between the check and the write
			return nil, ErrConflict
		}
		return nil, err
	}
	logger.Info("links reordered", "module", "service", "action", "update", "resource", "link", "result", "ok", "count", len(ids))
	return s.links.List(ctx)
}

// attachFavicon fetches the favicon for favicon links. Failures are logged
// and leave the link without an icon.
func (s *linkService) attachFavicon(ctx context.Context, link model.Link) model.Link {
	if s.icons == nil || link.IconType != model.IconTypeFavicon || !isWebURL(link.URL) {
		return link
	}
	name, err := s.icons.FetchLinkIcon(ctx, link)
	if err != nil || name == "" {
		logger.Warn("favicon fetch failed", "module", "service", "action", "fetch", "resource", "icon", "result", "failed", "link_id", link.ID, "error", err)
		return link
	}
	now := time.Now().UTC()
	if err := s.links.UpdateIcon(ctx, link.ID, name, now); err != nil {
		logger.Warn("favicon save failed", "module", "service", "action", "update", "resource", "icon", "result", "failed", "link_id", link.ID, "error", err)
		return link
	}
	link.IconName = name
	link.IconUpdatedAt = &now
	return link
}

func normalizeLink(in LinkInput) (model.Link, error) {
	link := model.Link{
		Title:    strings.TrimSpace(in.Title),
		URL:      strings.TrimSpace(in.URL),
		Subtitle: strings.TrimSpace(in.Subtitle),
		IconName: strings.TrimSpace(in.IconName),
		IconType: strings.ToLower(strings.TrimSpace(in.IconType)),
	}
	if link.Title == "" {
		return model.Link{}, invalid("title", "is required")
	}
	if len([]rune(link.Title)) > maxTitleLength {
		return model.Link{}, invalid("title", "must be at most %d characters", maxTitleLength)
	}
	if len([]rune(link.Subtitle)) > maxSubtitleLength {
		return model.Link{}, invalid("subtitle", "must be at most %d characters", maxSubtitleLength)
	}
	if link.URL == "" {
		return model.Link{}, invalid("url", "is required")
	}
	if err := validateLinkURL(link.URL); err != nil {
		return model.Link{}, err
	}

	if link.IconType == "" {
		link.IconType = model.IconTypeNone
	}
	if !model.ValidIconType(link.IconType) {
		return model.Link{}, invalid("iconType", "unknown icon type %q", in.IconType)
	}
	if len(link.IconName) > maxIconNameLength {
		return model.Link{}, invalid("iconName", "is too long")
	}
	switch link.IconType {
	case model.IconTypeNone, model.IconTypeFavicon:
		// favicon names are server-managed
		link.IconName = ""
	case model.IconTypeEmoji, model.IconTypeBuiltin:
		if link.IconName == "" {
			return model.Link{}, invalid("iconName", "is required for %s icons", link.IconType)
		}
	case model.IconTypeCustom:
		if uploadName(link.IconName) == "" && !isImageURL(link.IconName) {
			return model.Link{}, invalid("iconName", "must be an upload or http(s) URL")
		}
	}
	return link, nil
}

func validateLinkURL(raw string) error {
	if len(raw) > maxURLLength {
		return invalid("url", "is too long")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return invalid("url", "is not a valid URL")
	}
	scheme := strings.ToLower(u.Scheme)
	if !allowedLinkSchemes[scheme] {
		return invalid("url", "scheme must be http, https, mailto or tel")
	}
	switch scheme {
	case "http", "https":
		if u.Host == "" {
			return invalid("url", "is missing a host")
		}
	default:
		if u.Opaque == "" && u.Path == "" {
			return invalid("url", "is missing an address")
		}
	}
	return nil
}

func isWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}
