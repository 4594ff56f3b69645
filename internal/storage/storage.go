package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an audit record by pipeline stage.
type Kind string

const (
	KindSearch   Kind = "search"
	KindValidate Kind = "validate"
	KindEnrich   Kind = "enrich"
)

// Record is one audited pipeline step: a search call, a company validation
// or a page enrichment.
type Record struct {
	ID        string
	RunID     string
	Kind      Kind
	Subject   string // query, company name or URL
	Status    string // e.g. "success", "completed", "failed", "error"
	Duration  time.Duration
	Payload   []byte // JSON document of the step's result
	CreatedAt time.Time
	Error     string
}

// NewRecord returns a record with a fresh ID and the current UTC time.
func NewRecord(runID string, kind Kind, subject string) *Record {
	return &Record{
		ID:        uuid.NewString(),
		RunID:     runID,
		Kind:      kind,
		Subject:   subject,
		CreatedAt: time.Now().UTC(),
	}
}

// Filter allows querying for specific Records.
type Filter struct {
	RunID   string
	Kind    Kind
	Subject string
	Since   *time.Time
	Limit   int
	Offset  int
}

// Matches reports whether r satisfies the field filters of f. Paging is not
// considered.
func (f Filter) Matches(r *Record) bool {
	if f.RunID != "" && r.RunID != f.RunID {
		return false
	}
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.Subject != "" && r.Subject != f.Subject {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Page reverses records stored oldest first into newest-first order and
// applies the filter's offset and limit.
func (f Filter) Page(records []*Record) []*Record {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	if f.Offset > 0 {
		if f.Offset >= len(records) {
			return []*Record{}
		}
		records = records[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(records) {
		records = records[:f.Limit]
	}
	return records
}

// Backend defines the interface for storing and querying audit records.
type Backend interface {
	Save(ctx context.Context, record *Record) error
	Query(ctx context.Context, filter Filter) ([]*Record, error)
	Close() error
}
