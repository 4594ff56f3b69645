// Package report renders supplier comparison tables and summarizes stored
// run records.
package report

import (
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/sourcer/internal/storage"
)

// Summary contains aggregated figures about stored run records.
type Summary struct {
	TotalRecords  int                  `json:"total_records"`
	TotalErrors   int                  `json:"total_errors"`
	Runs          int                  `json:"runs"`
	ByKind        map[storage.Kind]int `json:"by_kind"`
	ByStatus      map[string]int       `json:"by_status"`
	TotalDuration time.Duration        `json:"total_duration_ns"`
	StartTime     time.Time            `json:"start_time"`
	EndTime       time.Time            `json:"end_time"`
	Duration      time.Duration        `json:"duration_ns"`
}

// GenerateSummary aggregates records. A record counts as an error when its
// Error field is set.
func GenerateSummary(records []*storage.Record) Summary {
	s := Summary{
		ByKind:   make(map[storage.Kind]int),
		ByStatus: make(map[string]int),
	}

	if len(records) == 0 {
		return s
	}

	s.StartTime = records[0].CreatedAt
	s.EndTime = records[0].CreatedAt
	runs := make(map[string]struct{})

	for _, r := range records {
		s.TotalRecords++
		if r.Error != "" {
			s.TotalErrors++
		}
		s.ByKind[r.Kind]++
		if r.Status != "" {
			s.ByStatus[r.Status]++
		}
		if r.RunID != "" {
			runs[r.RunID] = struct{}{}
		}
		s.TotalDuration += r.Duration

		if r.CreatedAt.Before(s.StartTime) {
			s.StartTime = r.CreatedAt
		}
		if r.CreatedAt.After(s.EndTime) {
			s.EndTime = r.CreatedAt
		}
	}

	s.Runs = len(runs)
	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

const summaryText = `Sourcer Run Summary
-------------------
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Runs:          {{.Runs}}
Records:       {{.TotalRecords}}
Errors:        {{.TotalErrors}}
Time Spent:    {{.TotalDuration}}

By Kind:
{{- range $kind, $count := .ByKind}}
  {{$kind}}: {{$count}}
{{- else}}
  None
{{- end}}

By Status:
{{- range $status, $count := .ByStatus}}
  {{$status}}: {{$count}}
{{- else}}
  None
{{- end}}
`

var summaryTmpl = template.Must(template.New("summary").Parse(summaryText))

// WriteSummaryText writes a human-readable summary.
func WriteSummaryText(w io.Writer, summary Summary) error {
	if err := summaryTmpl.Execute(w, summary); err != nil {
		return fmt.Errorf("report: write summary: %w", err)
	}
	return nil
}
