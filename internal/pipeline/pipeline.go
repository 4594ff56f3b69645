// Package pipeline runs a full sourcing job: plan search queries from a
// requirement, search and merge suppliers, optionally visit their pages,
// validate them against the registry and build the comparison table.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/sourcer/internal/enrich"
	"github.com/FranksOps/sourcer/internal/metrics"
	"github.com/FranksOps/sourcer/internal/report"
	"github.com/FranksOps/sourcer/internal/storage"
	"github.com/FranksOps/sourcer/internal/supplier"
	"github.com/FranksOps/sourcer/internal/tools"
	"github.com/FranksOps/sourcer/internal/validate"
)

const (
	DefaultResultsPerQuery = 15
	DefaultMaxSuppliers    = 10
	DefaultConcurrency     = 3
)

// Config tunes a run.
type Config struct {
	ResultsPerQuery int
	MaxSuppliers    int
	// Concurrency bounds parallel searches.
	Concurrency int
}

// Deps are the components a Pipeline drives. Enricher and Backend are
// optional.
type Deps struct {
	Planner      Planner
	Capabilities *tools.Capabilities
	Validator    *validate.Validator
	Enricher     *enrich.Enricher
	Backend      storage.Backend
	Logger       *slog.Logger
	Now          func() time.Time
}

// QueryOutcome is what one search query produced.
type QueryOutcome struct {
	Query         string        `json:"query"`
	Status        string        `json:"status"`
	SupplierCount int           `json:"supplier_count"`
	Duration      time.Duration `json:"duration_ns"`
	Error         string        `json:"error,omitempty"`
}

// Result is the outcome of a run.
type Result struct {
	RunID       string               `json:"run_id"`
	Requirement string               `json:"requirement"`
	Queries     []string             `json:"queries"`
	Searches    []QueryOutcome       `json:"searches"`
	Candidates  []supplier.Candidate `json:"candidates"`
	Enrichments []enrich.Profile     `json:"enrichments,omitempty"`
	Profiles    []validate.Profile   `json:"profiles"`
	Table       report.Table         `json:"table"`
	StartedAt   time.Time            `json:"started_at"`
	FinishedAt  time.Time            `json:"finished_at"`
}

// Pipeline orchestrates the stages of a sourcing run.
type Pipeline struct {
	deps   Deps
	config Config
}

// New validates deps and fills config defaults.
func New(deps Deps, cfg Config) (*Pipeline, error) {
	if deps.Capabilities == nil || deps.Validator == nil {
		return nil, fmt.Errorf("%w: capabilities and validator are required", ErrMissingComponent)
	}
	if deps.Planner == nil {
		deps.Planner = KeywordPlanner{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.ResultsPerQuery <= 0 {
		cfg.ResultsPerQuery = DefaultResultsPerQuery
	}
	if cfg.MaxSuppliers <= 0 {
		cfg.MaxSuppliers = DefaultMaxSuppliers
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Pipeline{deps: deps, config: cfg}, nil
}

// Run executes a sourcing job. Only an empty requirement or a planner
// failure is returned as an error; search, registry and page failures are
// carried in the Result.
func (p *Pipeline) Run(ctx context.Context, requirement string) (*Result, error) {
	start := time.Now()
	res := &Result{
		RunID:       uuid.NewString(),
		Requirement: requirement,
		StartedAt:   p.deps.Now(),
	}
	log := p.deps.Logger.With("run_id", res.RunID)

	queries, err := p.deps.Planner.Plan(ctx, requirement)
	if err == nil && len(queries) == 0 {
		err = ErrNoQueries
	}
	if err != nil {
		metrics.RecordRun("error", time.Since(start))
		return nil, fmt.Errorf("pipeline: plan: %w", err)
	}
	res.Queries = queries
	log.Info("run started", "queries", len(queries))

	results := p.search(ctx, queries)
	res.Searches = make([]QueryOutcome, len(results))
	var merged []supplier.Candidate
	for i, r := range results {
		res.Searches[i] = r.outcome
		merged = append(merged, r.result.Suppliers...)
		p.save(ctx, log, res.RunID, storage.KindSearch, r.outcome.Query, r.outcome.Status, r.outcome.Duration, r.result, r.outcome.Error)
	}

	res.Candidates = supplier.Dedupe(merged)
	if len(res.Candidates) > p.config.MaxSuppliers {
		res.Candidates = res.Candidates[:p.config.MaxSuppliers]
	}
	log.Info("suppliers found", "merged", len(merged), "kept", len(res.Candidates))

	if p.deps.Enricher != nil && len(res.Candidates) > 0 {
		res.Enrichments = p.deps.Enricher.EnrichAll(ctx, res.Candidates)
		for _, e := range res.Enrichments {
			p.save(ctx, log, res.RunID, storage.KindEnrich, e.CompanyName, e.Outcome, e.Duration, e, e.Error)
		}
	}

	validateStart := time.Now()
	res.Profiles = p.deps.Validator.ValidateAll(ctx, supplier.Names(res.Candidates))
	perProfile := time.Duration(0)
	if n := len(res.Profiles); n > 0 {
		perProfile = time.Since(validateStart) / time.Duration(n)
	}
	for _, prof := range res.Profiles {
		p.save(ctx, log, res.RunID, storage.KindValidate, prof.CompanyName, string(prof.ValidationStatus), perProfile, prof, prof.Error)
	}

	res.FinishedAt = p.deps.Now()
	res.Table = report.Build(requirement, res.Candidates, res.Profiles, res.Enrichments, res.FinishedAt)

	metrics.RecordRun("ok", time.Since(start))
	log.Info("run finished", "suppliers", len(res.Candidates), "duration", time.Since(start))
	return res, nil
}

type searchResult struct {
	outcome QueryOutcome
	result  tools.SearchResult
}

// search runs every query concurrently. Each goroutine owns one slot and
// never returns an error, so a failing query cannot cancel the others.
func (p *Pipeline) search(ctx context.Context, queries []string) []searchResult {
	out := make([]searchResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)
	for i, q := range queries {
		g.Go(func() error {
			start := time.Now()
			r := p.deps.Capabilities.SearchSuppliers(gctx, q, p.config.ResultsPerQuery)
			out[i] = searchResult{
				outcome: QueryOutcome{
					Query:         q,
					Status:        r.Status,
					SupplierCount: r.SupplierCount,
					Duration:      time.Since(start),
					Error:         r.Error,
				},
				result: r,
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (p *Pipeline) save(ctx context.Context, log *slog.Logger, runID string, kind storage.Kind, subject, status string, d time.Duration, payload any, errText string) {
	if p.deps.Backend == nil {
		return
	}
	rec := storage.NewRecord(runID, kind, subject)
	rec.Status = status
	rec.Duration = d
	rec.Error = errText
	if b, err := json.Marshal(payload); err == nil {
		rec.Payload = b
	} else {
		log.Warn("failed to encode record payload", "kind", kind, "subject", subject, "err", err)
	}
	if err := p.deps.Backend.Save(ctx, rec); err != nil {
		log.Warn("failed to save record", "kind", kind, "subject", subject, "err", err)
	}
}
