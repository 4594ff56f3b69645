// Package validate assembles registry lookups into a company profile.
package validate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/sourcer/internal/metrics"
	"github.com/FranksOps/sourcer/internal/registry"
)

// Status summarizes a validation.
type Status string

const (
	// StatusCompleted means the basic registration record was found.
	StatusCompleted Status = "completed"
	// StatusFailed means the registry has no such company.
	StatusFailed Status = "failed"
	// StatusError means the basic lookup failed or a lookup raised.
	StatusError Status = "error"
)

// DefaultConcurrency bounds ValidateAll when no limit is given.
const DefaultConcurrency = 4

// Profile is the merged registry view of one company.
type Profile struct {
	CompanyName          string          `json:"company_name"`
	BasicInfo            registry.Record `json:"basic_info"`
	RiskInfo             registry.Record `json:"risk_info"`
	IntellectualProperty registry.Record `json:"intellectual_property"`
	FinancialData        registry.Record `json:"financial_data"`
	ValidationStatus     Status          `json:"validation_status"`
	Error                string          `json:"error,omitempty"`
}

// Validator runs the four registry lookups for a company.
type Validator struct {
	provider    registry.Provider
	concurrency int
	logger      *slog.Logger
}

// New creates a Validator. A concurrency below one uses DefaultConcurrency.
func New(provider registry.Provider, concurrency int, logger *slog.Logger) *Validator {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{provider: provider, concurrency: concurrency, logger: logger}
}

// Validate looks up basic info, risks, IP and financials in that order and
// merges them. It never fails: a lookup that raises produces a profile with
// status error, the error text and empty basic and risk records.
func (v *Validator) Validate(ctx context.Context, name string) Profile {
	name = strings.TrimSpace(name)
	start := time.Now()

	p := Profile{CompanyName: name}
	slots := []*registry.Record{&p.BasicInfo, &p.RiskInfo, &p.IntellectualProperty, &p.FinancialData}

	for i, op := range registry.Operations {
		rec, err := registry.Lookup(ctx, v.provider, op, name)
		if err != nil {
			p = Profile{CompanyName: name, ValidationStatus: StatusError, Error: err.Error()}
			v.finish(p, start, "operation", op, "err", err)
			return p
		}
		*slots[i] = rec
	}

	p.ValidationStatus = statusOf(p.BasicInfo)
	v.finish(p, start)
	return p
}

func statusOf(basic registry.Record) Status {
	switch basic.Status {
	case registry.StatusOK:
		return StatusCompleted
	case registry.StatusNotFound:
		return StatusFailed
	default:
		return StatusError
	}
}

func (v *Validator) finish(p Profile, start time.Time, extra ...any) {
	metrics.ValidationsTotal.WithLabelValues(string(p.ValidationStatus)).Inc()
	attrs := append([]any{"company", p.CompanyName, "status", p.ValidationStatus, "duration", time.Since(start)}, extra...)
	if p.ValidationStatus == StatusError {
		v.logger.Warn("company validation failed", attrs...)
		return
	}
	v.logger.Info("company validated", attrs...)
}

// ValidateAll validates names concurrently and returns profiles in input
// order. A failure for one company never affects the others.
func (v *Validator) ValidateAll(ctx context.Context, names []string) []Profile {
	out := make([]Profile, len(names))

	var g errgroup.Group
	g.SetLimit(v.concurrency)
	for i, name := range names {
		g.Go(func() error {
			out[i] = v.Validate(ctx, name)
			return nil
		})
	}
	_ = g.Wait()

	return out
}
