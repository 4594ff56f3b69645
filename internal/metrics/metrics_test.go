package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestMetricsServer(t *testing.T) {
	srv := Start(18988, nil)
	// Give it a tiny bit of time to start up
	time.Sleep(100 * time.Millisecond)

	defer srv.Stop(context.Background())

	RecordSearch("ok", 1500*time.Millisecond)
	RecordLookup("basic_info", "not_found")
	ValidationsTotal.WithLabelValues("completed").Inc()

	resp, err := http.Get("http://localhost:18988/metrics")
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	output := string(body)

	if !strings.Contains(output, `sourcer_search_requests_total{outcome="ok"}`) {
		t.Errorf("expected sourcer_search_requests_total metric")
	}

	if !strings.Contains(output, "sourcer_search_duration_seconds_bucket") {
		t.Errorf("expected sourcer_search_duration_seconds metric")
	}

	if !strings.Contains(output, `sourcer_registry_lookups_total{operation="basic_info",status="not_found"}`) {
		t.Errorf("expected sourcer_registry_lookups_total metric for basic_info")
	}

	if !strings.Contains(output, `sourcer_validations_total{status="completed"}`) {
		t.Errorf("expected sourcer_validations_total metric")
	}
}

func TestStopNilServer(t *testing.T) {
	var s *Server
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
