package jsonbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/FranksOps/sourcer/internal/storage"
)

// ensure jsonBackend implements storage.Backend
var _ storage.Backend = (*jsonBackend)(nil)

const maxLineBytes = 32 << 20

type jsonBackend struct {
	mu   sync.Mutex
	file *os.File
}

// line is the on-disk shape of a record. The payload is embedded as JSON
// rather than base64 so the file stays greppable.
type line struct {
	ID         string          `json:"id"`
	RunID      string          `json:"run_id"`
	Kind       storage.Kind    `json:"kind"`
	Subject    string          `json:"subject"`
	Status     string          `json:"status"`
	DurationMs int64           `json:"duration_ms"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	Error      string          `json:"error,omitempty"`
}

// New creates a new NDJSON-backed storage.Backend.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("jsonbackend: open %s: %w", filePath, err)
	}

	return &jsonBackend{file: f}, nil
}

func (b *jsonBackend) Save(ctx context.Context, r *storage.Record) error {
	l := line{
		ID:         r.ID,
		RunID:      r.RunID,
		Kind:       r.Kind,
		Subject:    r.Subject,
		Status:     r.Status,
		DurationMs: r.Duration.Milliseconds(),
		CreatedAt:  r.CreatedAt,
		Error:      r.Error,
	}
	if len(r.Payload) > 0 {
		if !json.Valid(r.Payload) {
			return fmt.Errorf("jsonbackend: record %s has a non-JSON payload", r.ID)
		}
		l.Payload = r.Payload
	}

	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("jsonbackend: encode record %s: %w", r.ID, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("jsonbackend: write record %s: %w", r.ID, err)
	}

	return nil
}

func (b *jsonBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("jsonbackend: seek: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	scanner := bufio.NewScanner(b.file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	// NDJSON has no engine: read everything, filter in memory, then page.
	var matched []*storage.Record

	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var l line
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("jsonbackend: decode line: %w", err)
		}

		r := &storage.Record{
			ID:        l.ID,
			RunID:     l.RunID,
			Kind:      l.Kind,
			Subject:   l.Subject,
			Status:    l.Status,
			Duration:  time.Duration(l.DurationMs) * time.Millisecond,
			CreatedAt: l.CreatedAt,
			Error:     l.Error,
		}
		if len(l.Payload) > 0 {
			r.Payload = []byte(l.Payload)
		}

		if filter.Matches(r) {
			matched = append(matched, r)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("jsonbackend: scan: %w", err)
	}

	return filter.Page(matched), nil
}

func (b *jsonBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
