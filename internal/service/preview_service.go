package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/Noooste/azuretls-client"
	"github.com/microcosm-cc/bluemonday"

	"github.com/HugPhiluu/PhilCard/internal/config"
	"github.com/HugPhiluu/PhilCard/internal/logger"
	"github.com/HugPhiluu/PhilCard/internal/network"
)

const (
	previewTimeout     = 20 * time.Second
	maxPreviewBodySize = 4 << 20
	maxExcerptLength   = 300
)

// LinkPreview is what a page suggests for a new link.
type LinkPreview struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	SiteName    string `json:"siteName"`
	ImageURL    string `json:"imageUrl"`
}

type PreviewService interface {
	Preview(ctx context.Context, rawURL string) (*LinkPreview, error)
}

// pageFetcher returns the body of an http(s) page.
type pageFetcher func(ctx context.Context, pageURL string) ([]byte, error)

type previewService struct {
	fetch     pageFetcher
	sanitizer *bluemonday.Policy
	text      *bluemonday.Policy
}

func NewPreviewService(clientFactory *network.ClientFactory) PreviewService {
	return newPreviewService(firstOf(azureFetcher(clientFactory), httpFetcher(clientFactory)))
}

func newPreviewService(fetch pageFetcher) *previewService {
	// keep the document structure and head metadata readability reads from
	p := bluemonday.UGCPolicy()
	p.AllowElements("html", "head", "title", "meta", "body", "article", "section", "header", "footer", "nav", "aside", "main", "figure", "figcaption")
	p.AllowAttrs("name", "property", "content", "itemprop").OnElements("meta")
	p.AllowAttrs("id", "class", "lang", "dir").Globally()

	return &previewService{
		fetch:     fetch,
		sanitizer: p,
		text:      bluemonday.StrictPolicy(),
	}
}

func (s *previewService) Preview(ctx context.Context, rawURL string) (*LinkPreview, error) {
	pageURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || pageURL.Host == "" || (pageURL.Scheme != "http" && pageURL.Scheme != "https") {
		return nil, invalid("url", "must be an http(s) URL")
	}

	body, err := s.fetch(ctx, pageURL.String())
	if err != nil {
		logger.Warn("preview fetch failed", "module", "service", "action", "fetch", "resource", "preview", "result", "failed", "host", pageURL.Host, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	sanitized := s.sanitizer.Sanitize(string(body))
	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(sanitized), pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse page: %v", ErrFetch, err)
	}

	preview := &LinkPreview{
		URL:         pageURL.String(),
		Title:       s.clean(article.Title()),
		Description: truncateRunes(s.clean(article.Excerpt()), maxExcerptLength),
		SiteName:    s.clean(article.SiteName()),
		ImageURL:    absoluteURL(pageURL, article.ImageURL()),
	}
	if preview.Title == "" {
		preview.Title = pageURL.Hostname()
	}
	return preview, nil
}

func (s *previewService) clean(v string) string {
	return strings.Join(strings.Fields(s.text.Sanitize(v)), " ")
}

// azureFetcher fetches pages with a Chrome TLS fingerprint so sites that
// block plain Go clients still answer.
func azureFetcher(clientFactory *network.ClientFactory) pageFetcher {
	return func(ctx context.Context, pageURL string) ([]byte, error) {
		session := clientFactory.NewAzureSession(ctx, previewTimeout)
		defer session.Close()

		resp, err := session.Do(&azuretls.Request{
			Method: http.MethodGet,
			Url:    pageURL,
			OrderedHeaders: azuretls.OrderedHeaders{
				{"accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
				{"accept-language", "en-US,en;q=0.9"},
				{"sec-ch-ua", config.ChromeSecChUa},
				{"sec-ch-ua-mobile", "?0"},
				{"sec-ch-ua-platform", `"Windows"`},
				{"sec-fetch-dest", "document"},
				{"sec-fetch-mode", "navigate"},
				{"sec-fetch-site", "none"},
				{"upgrade-insecure-requests", "1"},
				{"user-agent", config.ChromeUserAgent},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		if len(resp.Body) > maxPreviewBodySize {
			return resp.Body[:maxPreviewBodySize], nil
		}
		return resp.Body, nil
	}
}

// httpFetcher is the plain net/http variant. It backs up the azuretls session,
// which cannot dial through every proxy type.
func httpFetcher(clientFactory *network.ClientFactory) pageFetcher {
	return func(ctx context.Context, pageURL string) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", config.ChromeUserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml")

		resp, err := clientFactory.NewHTTPClient(ctx, previewTimeout).Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return readLimited(resp.Body, maxPreviewBodySize)
	}
}

// firstOf tries each fetcher in order and returns the first success.
func firstOf(fetchers ...pageFetcher) pageFetcher {
	return func(ctx context.Context, pageURL string) ([]byte, error) {
		var lastErr error
		for _, fetch := range fetchers {
			body, err := fetch(ctx, pageURL)
			if err == nil {
				return body, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
		}
		return nil, lastErr
	}
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

func absoluteURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := base.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return u.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}
