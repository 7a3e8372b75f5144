package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/HugPhiluu/PhilCard/internal/config"
	"github.com/HugPhiluu/PhilCard/internal/logger"
	"github.com/HugPhiluu/PhilCard/internal/model"
	"github.com/HugPhiluu/PhilCard/internal/network"
	"github.com/HugPhiluu/PhilCard/internal/repository"
)

const (
	iconTimeout        = 30 * time.Second
	iconMaxAge         = 30 * 24 * time.Hour
	maxConcurrentIcons = 4
	maxIconSize        = 1 << 20
	minIconSize        = 64

	defaultFaviconEndpoint = "https://www.google.com/s2/favicons"
)

// IconRefreshResult summarizes a bulk favicon fetch.
type IconRefreshResult struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

type IconService interface {
	// FetchLinkIcon returns the cached favicon file for the link's host,
	// downloading it when missing or stale.
	FetchLinkIcon(ctx context.Context, link model.Link) (string, error)
	// RefreshAll re-downloads the favicon of every favicon link.
	RefreshAll(ctx context.Context) (IconRefreshResult, error)
	// Backfill fetches favicons that are missing or older than 30 days.
	Backfill(ctx context.Context) (IconRefreshResult, error)
	// PruneUnused deletes icon files no favicon link points at.
	PruneUnused(ctx context.Context) (int, error)
	// IconPath returns the on-disk path of an icon, or ErrNotFound.
	IconPath(filename string) (string, error)
}

type iconService struct {
	store           *FileStore
	links           repository.LinkRepository
	clientFactory   *network.ClientFactory
	faviconEndpoint string
	now             func() time.Time
}

func NewIconService(store *FileStore, links repository.LinkRepository, clientFactory *network.ClientFactory) IconService {
	return &iconService{
		store:           store,
		links:           links,
		clientFactory:   clientFactory,
		faviconEndpoint: defaultFaviconEndpoint,
		now:             time.Now,
	}
}

func (s *iconService) FetchLinkIcon(ctx context.Context, link model.Link) (string, error) {
	return s.fetchAndSave(ctx, link.URL, false)
}

func (s *iconService) RefreshAll(ctx context.Context) (IconRefreshResult, error) {
	links, err := s.links.ListByIconType(ctx, model.IconTypeFavicon)
	if err != nil {
		return IconRefreshResult{}, fmt.Errorf("list favicon links: %w", err)
	}
	return s.fetchForLinks(ctx, links), nil
}

func (s *iconService) Backfill(ctx context.Context) (IconRefreshResult, error) {
	links, err := s.links.ListByIconType(ctx, model.IconTypeFavicon)
	if err != nil {
		return IconRefreshResult{}, fmt.Errorf("list favicon links: %w", err)
	}

	now := s.now()
	var pending []model.Link
	for _, link := range links {
		if link.IconName == "" {
			pending = append(pending, link)
			continue
		}
		info, err := s.store.Stat(link.IconName)
		if err != nil || now.Sub(info.ModTime) > iconMaxAge {
			pending = append(pending, link)
		}
	}
	if len(pending) > 0 {
		logger.Info("backfilling favicons", "module", "service", "action", "fetch", "resource", "icon", "result", "ok", "count", len(pending))
	}
	return s.fetchForLinks(ctx, pending), nil
}

func (s *iconService) PruneUnused(ctx context.Context) (int, error) {
	links, err := s.links.ListByIconType(ctx, model.IconTypeFavicon)
	if err != nil {
		return 0, fmt.Errorf("list favicon links: %w", err)
	}
	inUse := make(map[string]bool, len(links))
	for _, link := range links {
		if name := iconFilename(link.URL); name != "" {
			inUse[name] = true
		}
		if link.IconName != "" {
			inUse[link.IconName] = true
		}
	}

	files, err := s.store.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range files {
		if inUse[f.Name] {
			continue
		}
		if err := s.store.Remove(f.Name); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (s *iconService) IconPath(filename string) (string, error) {
	if _, err := s.store.Stat(filename); err != nil {
		return "", err
	}
	return s.store.Path(filename)
}

// fetchForLinks downloads favicons concurrently, bounded by maxConcurrentIcons.
func (s *iconService) fetchForLinks(ctx context.Context, links []model.Link) IconRefreshResult {
	var updated, failed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentIcons)
	for _, link := range links {
		g.Go(func() error {
			name, err := s.fetchAndSave(ctx, link.URL, true)
			if err != nil || name == "" {
				failed.Add(1)
				return nil
			}
			if err := s.links.UpdateIcon(ctx, link.ID, name, s.now().UTC()); err != nil {
				failed.Add(1)
				return nil
			}
			updated.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return IconRefreshResult{
		Total:   len(links),
		Updated: int(updated.Load()),
		Failed:  int(failed.Load()),
	}
}

// fetchAndSave stores the favicon of siteURL's host as <host>.png. A fresh
// cached copy is reused unless force is set.
func (s *iconService) fetchAndSave(ctx context.Context, siteURL string, force bool) (string, error) {
	name := iconFilename(siteURL)
	if name == "" {
		return "", invalid("url", "no host to fetch a favicon for")
	}
	if !force {
		if info, err := s.store.Stat(name); err == nil && s.now().Sub(info.ModTime) <= iconMaxAge {
			return name, nil
		}
	}

	var lastErr error
	for _, candidate := range s.candidateURLs(siteURL) {
		data, err := s.download(ctx, candidate)
		if err != nil {
			logger.Debug("favicon candidate failed", "module", "service", "action", "fetch", "resource", "icon", "result", "failed", "url", candidate, "error", err)
			lastErr = err
			continue
		}
		if err := s.store.Write(name, data); err != nil {
			return "", fmt.Errorf("write icon file: %w", err)
		}
		logger.Info("icon saved", "module", "service", "action", "fetch", "resource", "icon", "result", "ok", "file", name)
		return name, nil
	}
	return "", fmt.Errorf("%w: %v", ErrFetch, lastErr)
}

// candidateURLs lists the favicon API first, then the site's own /favicon.ico.
func (s *iconService) candidateURLs(siteURL string) []string {
	parsed, err := url.Parse(siteURL)
	if err != nil || parsed.Hostname() == "" {
		return nil
	}
	var out []string
	if s.faviconEndpoint != "" {
		out = append(out, fmt.Sprintf("%s?domain=%s&sz=128", s.faviconEndpoint, url.QueryEscape(parsed.Hostname())))
	}
	out = append(out, (&url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/favicon.ico"}).String())
	return out
}

func (s *iconService) download(ctx context.Context, iconURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, iconURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", config.UserAgent)

	resp, err := s.clientFactory.NewHTTPClient(ctx, iconTimeout).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxIconSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxIconSize {
		return nil, fmt.Errorf("icon too large")
	}
	if len(data) < minIconSize {
		return nil, fmt.Errorf("icon too small")
	}
	if !isIcon(data) {
		return nil, fmt.Errorf("response is not an image")
	}
	return data, nil
}

// iconFilename names an icon after the lowercased host of siteURL.
func iconFilename(siteURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(siteURL))
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" || !isSafeFilename(host) {
		return ""
	}
	return host + ".png"
}
