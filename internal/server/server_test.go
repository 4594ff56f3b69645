package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/sourcer/internal/pipeline"
	"github.com/FranksOps/sourcer/internal/registry"
	"github.com/FranksOps/sourcer/internal/search"
	"github.com/FranksOps/sourcer/internal/tools"
	"github.com/FranksOps/sourcer/internal/validate"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type emptySearcher struct{}

func (emptySearcher) Search(context.Context, search.Request) (*search.Response, error) {
	return &search.Response{}, nil
}

type fakeRunner struct{ got string }

func (f *fakeRunner) Run(_ context.Context, requirement string) (*pipeline.Result, error) {
	f.got = requirement
	if requirement == "" {
		return nil, pipeline.ErrEmptyRequirement
	}
	return &pipeline.Result{RunID: "run-1", Requirement: requirement}, nil
}

func newTestServer(t *testing.T, runner Runner) (*httptest.Server, *registry.Store) {
	t.Helper()
	store := registry.NewSeededStore(3, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	v := validate.New(registry.NewMockProvider(store, quietLogger()), 2, quietLogger())
	caps := tools.NewCapabilities(emptySearcher{}, v, tools.Options{Logger: quietLogger()})

	h, err := New(Config{Tools: tools.NewRegistry(caps), Runner: runner, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts, store
}

func post(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func TestNew_RequiresTools(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error without tool registry")
	}
}

func TestHealthAndTools(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/v1/tools")
	if err != nil {
		t.Fatalf("list tools failed: %v", err)
	}
	defer resp.Body.Close()
	var list []tools.Tool
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 || list[0].Name != tools.NameSearchSuppliers || list[1].Name != tools.NameValidateCompany {
		t.Errorf("unexpected tools %+v", list)
	}
}

func TestExecuteTool(t *testing.T) {
	ts, store := newTestServer(t, nil)
	name := store.Companies()[0].Name

	resp, body := post(t, ts.URL+"/v1/tools/validate_company", `{"company_name":"`+name+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var profile validate.Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if profile.ValidationStatus != validate.StatusCompleted || profile.CompanyName != name {
		t.Errorf("unexpected profile %+v", profile)
	}

	resp, body = post(t, ts.URL+"/v1/tools/search_suppliers", `{"query":"云仓"}`)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"status":"success"`) {
		t.Errorf("unexpected search response %d: %s", resp.StatusCode, body)
	}
}

func TestExecuteTool_Errors(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	if resp, _ := post(t, ts.URL+"/v1/tools/delete_everything", `{}`); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown tool, got %d", resp.StatusCode)
	}
	if resp, _ := post(t, ts.URL+"/v1/tools/validate_company", `{"company_name":`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad args, got %d", resp.StatusCode)
	}
	if resp, _ := post(t, ts.URL+"/v1/runs", `{"requirement":"x"}`); resp.StatusCode != http.StatusNotFound && resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected runs route to be absent, got %d", resp.StatusCode)
	}
}

func TestRun(t *testing.T) {
	runner := &fakeRunner{}
	ts, _ := newTestServer(t, runner)

	resp, body := post(t, ts.URL+"/v1/runs", `{"requirement":"寻找武汉云仓"}`)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"run_id":"run-1"`) {
		t.Errorf("unexpected run response %d: %s", resp.StatusCode, body)
	}
	if runner.got != "寻找武汉云仓" {
		t.Errorf("runner got %q", runner.got)
	}

	if resp, _ := post(t, ts.URL+"/v1/runs", `{"requirement":""}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for empty requirement, got %d", resp.StatusCode)
	}
	if resp, _ := post(t, ts.URL+"/v1/runs", `not json`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad body, got %d", resp.StatusCode)
	}
}

func TestMetricsRoute(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "go_goroutines") {
		t.Errorf("expected go runtime metrics")
	}
}
