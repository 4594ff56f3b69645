// Package enrich visits supplier websites found by search and pulls out
// contact details and the facts a comparison table needs.
package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/FranksOps/sourcer/internal/fingerprint"
	"github.com/FranksOps/sourcer/pkg/httpclient"
	"github.com/FranksOps/sourcer/pkg/ratelimit"
)

const maxPageBytes = 4 << 20

// userAgents are rotated across requests. Supplier sites are mostly built for
// domestic desktop browsers.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
}

// FetchConfig configures page fetching.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	Fingerprint  fingerprint.Profile
	// SkipVerify disables certificate checks; many small company sites
	// serve expired or self-signed certificates.
	SkipVerify bool
	Limiter    *ratelimit.Limiter
}

// Page is the raw outcome of one GET.
type Page struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Error      string // non-empty if the fetch failed before a full response
}

// Fetcher performs single page GETs over a fingerprinted transport.
type Fetcher struct {
	config  FetchConfig
	client  *httpclient.Client
	counter atomic.Uint64
}

// NewFetcher builds a Fetcher. The transport is created once so connections
// are pooled across requests.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = 5
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, cfg.SkipVerify)
	if err != nil {
		return nil, fmt.Errorf("enrich: failed to setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		Transport:    transport,
		Headers: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.6",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("enrich: failed to create client: %w", err)
	}

	return &Fetcher{config: cfg, client: client}, nil
}

func (f *Fetcher) userAgent() string {
	idx := f.counter.Add(1) - 1
	return userAgents[idx%uint64(len(userAgents))]
}

// Fetch GETs targetURL. Failures are reported in Page.Error rather than as an
// error so callers always have something to record.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) *Page {
	page := &Page{URL: targetURL}

	if err := f.config.Limiter.Wait(ctx); err != nil {
		page.Error = fmt.Sprintf("rate limiter failed: %v", err)
		return page
	}

	start := time.Now()
	defer func() { page.Duration = time.Since(start) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		page.Error = fmt.Sprintf("failed to create request: %v", err)
		return page
	}
	req.Header.Set("User-Agent", f.userAgent())

	resp, err := f.client.Do(ctx, req)
	if err != nil {
		page.Error = fmt.Sprintf("request failed: %v", err)
		return page
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		page.Error = fmt.Sprintf("failed to read body: %v", err)
	}

	page.StatusCode = resp.StatusCode
	page.Headers = resp.Header
	page.Body = body
	return page
}
