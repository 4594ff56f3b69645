package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsAuditor fetches and caches robots.txt per host. Hosts whose
// robots.txt cannot be fetched or parsed are treated as allowing everything.
type RobotsAuditor struct {
	fetcher *Fetcher
	logger  *slog.Logger
	mu      sync.Mutex
	cache   map[string]*robotstxt.RobotsData
}

func NewRobotsAuditor(fetcher *Fetcher, logger *slog.Logger) *RobotsAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsAuditor{
		fetcher: fetcher,
		logger:  logger,
		cache:   make(map[string]*robotstxt.RobotsData),
	}
}

// IsAllowed reports whether userAgent may fetch targetURL.
func (r *RobotsAuditor) IsAllowed(ctx context.Context, targetURL, userAgent string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("enrich: invalid url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return false, fmt.Errorf("enrich: url %q is not absolute", targetURL)
	}

	data := r.robots(ctx, u.Scheme+"://"+u.Host)
	if data == nil {
		return true, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return data.FindGroup(userAgent).Test(path), nil
}

// robots holds the lock across the fetch so concurrent lookups for one host
// trigger a single request.
func (r *RobotsAuditor) robots(ctx context.Context, host string) *robotstxt.RobotsData {
	r.mu.Lock()
	defer r.mu.Unlock()

	if data, ok := r.cache[host]; ok {
		return data
	}

	page := r.fetcher.Fetch(ctx, host+"/robots.txt")

	var data *robotstxt.RobotsData
	switch {
	case page.Error != "":
		r.logger.Debug("robots.txt fetch failed, defaulting to allow", "host", host, "err", page.Error)
	case page.StatusCode >= 400:
		// No robots.txt.
	default:
		parsed, err := robotstxt.FromBytes(page.Body)
		if err != nil {
			r.logger.Debug("robots.txt parse failed, defaulting to allow", "host", host, "err", err)
		} else {
			data = parsed
		}
	}

	r.cache[host] = data
	return data
}
