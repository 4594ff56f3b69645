package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/sourcer/internal/metrics"
	"github.com/FranksOps/sourcer/internal/supplier"
)

// DefaultConcurrency bounds parallel page visits in EnrichAll.
const DefaultConcurrency = 4

// Outcomes recorded in Profile and in metrics.
const (
	OutcomeOK         = "ok"
	OutcomeNoURL      = "no_url"
	OutcomeDisallowed = "disallowed"
	OutcomeBlocked    = "blocked"
	OutcomeHTTPError  = "http_error"
	OutcomeFailed     = "failed"
)

// Profile is what a supplier's own page says about it.
type Profile struct {
	CompanyName string             `json:"company_name"`
	URL         string             `json:"url"`
	Outcome     string             `json:"outcome"`
	StatusCode  int                `json:"status_code,omitempty"`
	Title       string             `json:"title,omitempty"`
	Description string             `json:"description,omitempty"`
	Contacts    Contacts           `json:"contacts"`
	Highlights  map[Topic][]string `json:"highlights"`
	ExtraPages  []string           `json:"extra_pages,omitempty"`
	BlockedBy   string             `json:"blocked_by,omitempty"`
	Error       string             `json:"error,omitempty"`
	Duration    time.Duration      `json:"duration_ns"`
}

// OK reports whether the page was fetched and parsed.
func (p Profile) OK() bool { return p.Outcome == OutcomeOK }

// Options configures an Enricher.
type Options struct {
	// Robots, when set, is consulted before every page fetch.
	Robots *RobotsAuditor
	// Sitemap, when set, is used to find up to ExtraPages contact and
	// about pages on the supplier's site.
	Sitemap     *Sitemap
	ExtraPages  int
	Detectors   []Detector
	Concurrency int
	Logger      *slog.Logger
}

// Enricher visits candidate pages.
type Enricher struct {
	fetcher     *Fetcher
	robots      *RobotsAuditor
	sitemap     *Sitemap
	extraPages  int
	detectors   []Detector
	concurrency int
	logger      *slog.Logger
}

func New(fetcher *Fetcher, opts Options) *Enricher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Detectors == nil {
		opts.Detectors = DefaultDetectors()
	}
	return &Enricher{
		fetcher:     fetcher,
		robots:      opts.Robots,
		sitemap:     opts.Sitemap,
		extraPages:  opts.ExtraPages,
		detectors:   opts.Detectors,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
	}
}

// Enrich fetches the candidate's source page. It never fails; problems are
// reported through Outcome and Error.
func (e *Enricher) Enrich(ctx context.Context, c supplier.Candidate) Profile {
	p := Profile{
		CompanyName: c.CompanyName,
		URL:         c.SourceURL,
		Contacts:    Contacts{Emails: []string{}, Phones: []string{}},
		Highlights:  map[Topic][]string{},
	}
	defer func() {
		metrics.EnrichmentsTotal.WithLabelValues(p.Outcome).Inc()
		e.logger.Debug("enrichment finished", "company", p.CompanyName, "url", p.URL, "outcome", p.Outcome, "duration", p.Duration)
	}()

	if c.SourceURL == "" {
		p.Outcome = OutcomeNoURL
		p.Error = "candidate has no source url"
		return p
	}

	allowed, err := e.allowed(ctx, c.SourceURL)
	if err != nil {
		p.Outcome = OutcomeFailed
		p.Error = err.Error()
		return p
	}
	if !allowed {
		p.Outcome = OutcomeDisallowed
		p.Error = "disallowed by robots.txt"
		return p
	}

	page := e.fetcher.Fetch(ctx, c.SourceURL)
	p.Duration = page.Duration
	p.StatusCode = page.StatusCode
	if page.Error != "" {
		p.Outcome = OutcomeFailed
		p.Error = page.Error
		return p
	}

	if blocked, source := Blocked(page, e.detectors); blocked {
		p.Outcome = OutcomeBlocked
		p.BlockedBy = source
		p.Error = fmt.Sprintf("blocked by %s", source)
		return p
	}
	if page.StatusCode >= 400 {
		p.Outcome = OutcomeHTTPError
		p.Error = fmt.Sprintf("unexpected status %d", page.StatusCode)
		return p
	}

	doc, err := Parse(page.Body)
	if err != nil {
		p.Outcome = OutcomeFailed
		p.Error = fmt.Sprintf("failed to parse page: %v", err)
		return p
	}

	p.Outcome = OutcomeOK
	p.Title = doc.Title
	p.Description = doc.Description

	emails, phones := newOrderedSet(), newOrderedSet()
	texts := []string{doc.Text}
	merge := func(d *Document) {
		for _, v := range d.Contacts.Emails {
			emails.add(v)
		}
		for _, v := range d.Contacts.Phones {
			phones.add(v)
		}
	}
	merge(doc)

	for _, extra := range e.contactPages(ctx, c.SourceURL) {
		d := e.visit(ctx, extra)
		if d == nil {
			continue
		}
		p.ExtraPages = append(p.ExtraPages, extra)
		merge(d)
		texts = append(texts, d.Text)
	}

	p.Contacts = Contacts{Emails: emails.items, Phones: phones.items}
	p.Highlights = Highlights(strings.Join(texts, "\n"))
	return p
}

func (e *Enricher) allowed(ctx context.Context, target string) (bool, error) {
	if e.robots == nil {
		return true, nil
	}
	return e.robots.IsAllowed(ctx, target, "*")
}

func (e *Enricher) contactPages(ctx context.Context, source string) []string {
	if e.sitemap == nil || e.extraPages <= 0 {
		return nil
	}
	return e.sitemap.ContactPages(ctx, source, e.extraPages)
}

// visit fetches and parses a secondary page, returning nil when it is
// disallowed, blocked or unusable.
func (e *Enricher) visit(ctx context.Context, target string) *Document {
	if ok, err := e.allowed(ctx, target); err != nil || !ok {
		return nil
	}
	page := e.fetcher.Fetch(ctx, target)
	if page.Error != "" || page.StatusCode >= 400 {
		e.logger.Debug("skipping extra page", "url", target, "status", page.StatusCode, "err", page.Error)
		return nil
	}
	if blocked, _ := Blocked(page, e.detectors); blocked {
		return nil
	}
	doc, err := Parse(page.Body)
	if err != nil {
		return nil
	}
	return doc
}

// EnrichAll enriches candidates concurrently. The result is in input order.
func (e *Enricher) EnrichAll(ctx context.Context, candidates []supplier.Candidate) []Profile {
	out := make([]Profile, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			out[i] = e.Enrich(gctx, c)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
