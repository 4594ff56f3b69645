package registry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/FranksOps/sourcer/internal/metrics"
)

// MockProvider answers lookups from a synthetic Store.
type MockProvider struct {
	store *Store
	// Latency, when non-zero, is slept before each lookup to mimic the
	// remote API. The wait is cut short by context cancellation.
	Latency time.Duration
	logger  *slog.Logger
}

var _ Provider = (*MockProvider)(nil)

// NewMockProvider serves lookups from store.
func NewMockProvider(store *Store, logger *slog.Logger) *MockProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockProvider{store: store, logger: logger}
}

func (m *MockProvider) BasicInfo(ctx context.Context, name string) (Record, error) {
	return m.lookup(ctx, OpBasicInfo, name, func(e *entry) any { return e.company })
}

func (m *MockProvider) RiskInfo(ctx context.Context, name string) (Record, error) {
	return m.lookup(ctx, OpRiskInfo, name, func(e *entry) any {
		return RiskList{Total: len(e.risks), RiskList: e.risks}
	})
}

func (m *MockProvider) IntellectualProperty(ctx context.Context, name string) (Record, error) {
	return m.lookup(ctx, OpIntellectualProperty, name, func(e *entry) any { return e.ip })
}

func (m *MockProvider) FinancialData(ctx context.Context, name string) (Record, error) {
	return m.lookup(ctx, OpFinancialData, name, func(e *entry) any { return e.financials })
}

func (m *MockProvider) lookup(ctx context.Context, op Operation, name string, payload func(*entry) any) (Record, error) {
	if err := m.wait(ctx); err != nil {
		return Record{}, err
	}

	var rec Record
	e, err := m.store.find(name)
	switch {
	case err == nil:
		rec = okRecord(payload(e))
	case errors.Is(err, ErrCompanyNotFound):
		rec = notFoundRecord(reasonNoResult)
	default:
		rec = errorRecord(err.Error())
	}

	metrics.RecordLookup(string(op), string(rec.Status))
	m.logger.Debug("mock registry lookup", "operation", op, "name", name, "status", rec.Status)
	return rec, nil
}

func (m *MockProvider) wait(ctx context.Context) error {
	if m.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(m.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
