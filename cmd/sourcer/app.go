package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FranksOps/sourcer/internal/config"
	"github.com/FranksOps/sourcer/internal/enrich"
	"github.com/FranksOps/sourcer/internal/fingerprint"
	"github.com/FranksOps/sourcer/internal/pipeline"
	"github.com/FranksOps/sourcer/internal/registry"
	"github.com/FranksOps/sourcer/internal/search"
	"github.com/FranksOps/sourcer/internal/storage"
	"github.com/FranksOps/sourcer/internal/storage/csvbackend"
	"github.com/FranksOps/sourcer/internal/storage/jsonbackend"
	"github.com/FranksOps/sourcer/internal/storage/postgres"
	"github.com/FranksOps/sourcer/internal/storage/sqlite"
	"github.com/FranksOps/sourcer/internal/tools"
	"github.com/FranksOps/sourcer/internal/validate"
	"github.com/FranksOps/sourcer/pkg/ratelimit"
)

// app holds the components built from config for one command invocation.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *registry.Store
	provider  registry.Provider
	validator *validate.Validator
	caps      *tools.Capabilities
	backend   storage.Backend
	closers   []func() error
}

// searcherFactory is swapped in tests.
var searcherFactory = func(cfg config.SearchConfig, limiter *ratelimit.Limiter, logger *slog.Logger) (search.Searcher, error) {
	profile, err := fingerprint.ParseProfile(cfg.Fingerprint)
	if err != nil {
		return nil, err
	}
	transport, err := fingerprint.Transport(profile, false)
	if err != nil {
		return nil, err
	}
	return search.NewClient(search.Config{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout,
		Transport: transport,
		Limiter:   limiter,
		Logger:    logger,
	})
}

// missingKeySearcher reports the missing API key per call so that commands
// not needing search still start.
type missingKeySearcher struct{}

func (missingKeySearcher) Search(context.Context, search.Request) (*search.Response, error) {
	return nil, search.ErrMissingAPIKey
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, withBackend bool) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if err := a.buildProvider(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.validator = validate.New(a.provider, cfg.Validation.Concurrency, logger)

	freshness, err := search.ParseFreshness(cfg.Search.Freshness)
	if err != nil {
		a.Close()
		return nil, err
	}
	searchLimiter := ratelimit.NewLimiter(cfg.Search.RPS, 0.2)
	a.closers = append(a.closers, func() error { searchLimiter.Stop(); return nil })

	searcher, err := searcherFactory(cfg.Search, searchLimiter, logger)
	if errors.Is(err, search.ErrMissingAPIKey) {
		logger.Warn("search api key not configured; supplier search will fail")
		searcher, err = missingKeySearcher{}, nil
	}
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("search client: %w", err)
	}
	a.caps = tools.NewCapabilities(searcher, a.validator, tools.Options{Freshness: freshness, Logger: logger})

	if withBackend {
		backend, err := openBackend(ctx, cfg.Storage)
		if err != nil {
			a.Close()
			return nil, err
		}
		if backend != nil {
			a.backend = backend
			a.closers = append(a.closers, backend.Close)
		}
	}
	return a, nil
}

func (a *app) buildProvider(ctx context.Context) error {
	cfg := a.cfg.Registry
	var namespace string
	if cfg.UseMock {
		seed := cfg.Seed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		namespace = registry.MockNamespace(seed)
		a.store = registry.NewSeededStore(seed, time.Now())
		mock := registry.NewMockProvider(a.store, a.logger)
		mock.Latency = cfg.MockLatency
		a.provider = mock
	} else {
		limiter := ratelimit.NewLimiter(cfg.RPS, 0.2)
		a.closers = append(a.closers, func() error { limiter.Stop(); return nil })
		remote, err := registry.NewRemoteProvider(registry.RemoteConfig{
			Token:   cfg.Token,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
			Limiter: limiter,
			Logger:  a.logger,
		})
		if err != nil {
			return fmt.Errorf("registry client: %w", err)
		}
		if cfg.Token == "" {
			a.logger.Warn("registry token not configured; validations will report errors")
		}
		a.provider = remote
		namespace = registry.RemoteNamespace(cfg.BaseURL)
	}

	var cache registry.Cache
	switch cfg.CacheURL {
	case "":
		return nil
	case "memory":
		cache = registry.NewMemoryCache(cfg.CacheSize, cfg.CacheTTL)
	default:
		if cfg.UseMock && cfg.Seed == 0 {
			return errors.New("registry cache: a shared cache needs registry.seed with the mock registry")
		}
		rc, err := registry.NewRedisCache(ctx, cfg.CacheURL, cfg.CachePrefix)
		if err != nil {
			return fmt.Errorf("registry cache: %w", err)
		}
		a.closers = append(a.closers, rc.Close)
		cache = rc
	}

	cached, err := registry.NewCachedProvider(a.provider, cache, namespace, cfg.CacheTTL, a.logger)
	if err != nil {
		return fmt.Errorf("registry cache: %w", err)
	}
	a.provider = cached
	return nil
}

func (a *app) enricher() (*enrich.Enricher, error) {
	cfg := a.cfg.Enrich
	profile, err := fingerprint.ParseProfile(cfg.Fingerprint)
	if err != nil {
		return nil, err
	}
	limiter := ratelimit.NewLimiter(cfg.RPS, 0.3)
	a.closers = append(a.closers, func() error { limiter.Stop(); return nil })

	fetcher, err := enrich.NewFetcher(enrich.FetchConfig{
		Timeout:     cfg.Timeout,
		Fingerprint: profile,
		SkipVerify:  cfg.SkipVerify,
		Limiter:     limiter,
	})
	if err != nil {
		return nil, err
	}
	opts := enrich.Options{Concurrency: cfg.Concurrency, Logger: a.logger}
	if cfg.RespectRobots {
		opts.Robots = enrich.NewRobotsAuditor(fetcher, a.logger)
	}
	if cfg.SitemapPages > 0 {
		opts.Sitemap = enrich.NewSitemap(fetcher, a.logger)
		opts.ExtraPages = cfg.SitemapPages
	}
	return enrich.New(fetcher, opts), nil
}

func (a *app) pipeline(withEnrichment bool) (*pipeline.Pipeline, error) {
	deps := pipeline.Deps{
		Planner:      pipeline.KeywordPlanner{MaxQueries: a.cfg.Pipeline.MaxQueries},
		Capabilities: a.caps,
		Validator:    a.validator,
		Backend:      a.backend,
		Logger:       a.logger,
	}
	if withEnrichment {
		e, err := a.enricher()
		if err != nil {
			return nil, fmt.Errorf("enricher: %w", err)
		}
		deps.Enricher = e
	}
	return pipeline.New(deps, pipeline.Config{
		ResultsPerQuery: a.cfg.Pipeline.ResultsPerQuery,
		MaxSuppliers:    a.cfg.Pipeline.MaxSuppliers,
		Concurrency:     a.cfg.Pipeline.Concurrency,
	})
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "err", err)
		}
	}
	a.closers = nil
}

// openBackend returns nil when no backend is configured.
func openBackend(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	var (
		b   storage.Backend
		err error
	)
	switch cfg.Backend {
	case config.BackendNone, "":
		return nil, nil
	case config.BackendSQLite:
		b, err = sqlite.New(cfg.DSN)
	case config.BackendPostgres:
		b, err = postgres.New(ctx, cfg.DSN)
	case config.BackendJSON:
		b, err = jsonbackend.New(cfg.DSN)
	case config.BackendCSV:
		b, err = csvbackend.New(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Backend, err)
	}
	return b, nil
}
