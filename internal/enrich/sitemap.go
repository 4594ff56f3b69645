package enrich

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	sitemap "github.com/oxffaa/gopher-parse-sitemap"
)

// maxIndexDepth bounds how far nested sitemap indexes are followed.
const maxIndexDepth = 2

// contactPathHints mark pages likely to carry contact details or company
// facts. Chinese sites often use pinyin paths.
var contactPathHints = []string{"contact", "lianxi", "about", "guanyu", "jianjie", "intro", "company"}

// Sitemap finds a supplier's contact and about pages from its sitemap.
type Sitemap struct {
	fetcher *Fetcher
	logger  *slog.Logger
}

func NewSitemap(fetcher *Fetcher, logger *slog.Logger) *Sitemap {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sitemap{fetcher: fetcher, logger: logger}
}

// URLs fetches a sitemap or sitemap index and returns every page location,
// following nested indexes.
func (s *Sitemap) URLs(ctx context.Context, sitemapURL string) ([]string, error) {
	return s.urls(ctx, sitemapURL, 0)
}

func (s *Sitemap) urls(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	s.logger.Debug("fetching sitemap", "url", sitemapURL)

	page := s.fetcher.Fetch(ctx, sitemapURL)
	if page.Error != "" {
		return nil, fmt.Errorf("enrich: fetch sitemap: %s", page.Error)
	}
	if page.StatusCode >= 400 {
		return nil, fmt.Errorf("enrich: sitemap status %d", page.StatusCode)
	}

	var urls []string
	err := sitemap.Parse(bytes.NewReader(page.Body), func(e sitemap.Entry) error {
		urls = append(urls, strings.TrimSpace(e.GetLocation()))
		return nil
	})
	if err == nil && len(urls) > 0 {
		return urls, nil
	}

	var nested []string
	indexErr := sitemap.ParseIndex(bytes.NewReader(page.Body), func(e sitemap.IndexEntry) error {
		nested = append(nested, strings.TrimSpace(e.GetLocation()))
		return nil
	})
	if indexErr != nil || len(nested) == 0 {
		if err == nil {
			err = indexErr
		}
		return nil, fmt.Errorf("enrich: not a sitemap or sitemap index: %v", err)
	}
	if depth >= maxIndexDepth {
		return nil, fmt.Errorf("enrich: sitemap index nested deeper than %d", maxIndexDepth)
	}

	for _, n := range nested {
		more, err := s.urls(ctx, n, depth+1)
		if err != nil {
			s.logger.Warn("failed to fetch nested sitemap", "url", n, "err", err)
			continue
		}
		urls = append(urls, more...)
	}
	return urls, nil
}

// ContactPages returns up to limit pages on pageURL's host whose path hints
// at contact or company information, in sitemap order. pageURL itself is
// never returned. A missing or broken sitemap yields nil.
func (s *Sitemap) ContactPages(ctx context.Context, pageURL string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		return nil
	}

	urls, err := s.URLs(ctx, base.Scheme+"://"+base.Host+"/sitemap.xml")
	if err != nil {
		s.logger.Debug("no usable sitemap", "host", base.Host, "err", err)
		return nil
	}

	var out []string
	seen := map[string]bool{pageURL: true}
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || u.Host != base.Host || seen[raw] {
			continue
		}
		if !hasContactHint(u.Path) {
			continue
		}
		seen[raw] = true
		out = append(out, raw)
		if len(out) == limit {
			break
		}
	}
	return out
}

func hasContactHint(path string) bool {
	path = strings.ToLower(path)
	for _, h := range contactPathHints {
		if strings.Contains(path, h) {
			return true
		}
	}
	return false
}
