package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/FranksOps/sourcer/internal/registry"
	"github.com/FranksOps/sourcer/internal/search"
	"github.com/FranksOps/sourcer/internal/tools"
	"github.com/FranksOps/sourcer/internal/validate"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSearcher struct {
	last search.Request
	resp *search.Response
	err  error
}

func (f *fakeSearcher) Search(_ context.Context, req search.Request) (*search.Response, error) {
	f.last = req
	return f.resp, f.err
}

func webpages(t *testing.T, names ...string) *search.Response {
	t.Helper()
	type item struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	var items []item
	for _, n := range names {
		items = append(items, item{Name: n, URL: "https://example.com/" + n})
	}
	b, err := json.Marshal(map[string]any{"value": items})
	if err != nil {
		t.Fatal(err)
	}
	return &search.Response{Messages: []search.Message{{Type: "source", ContentType: "webpage", Content: string(b)}}}
}

func newCaps(t *testing.T, s search.Searcher) (*tools.Capabilities, *registry.Store) {
	t.Helper()
	store := registry.NewSeededStore(5, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	v := validate.New(registry.NewMockProvider(store, quietLogger()), 2, quietLogger())
	return tools.NewCapabilities(s, v, tools.Options{Logger: quietLogger()}), store
}

func TestSearchSuppliers_Success(t *testing.T) {
	fs := &fakeSearcher{resp: webpages(t, "【广告】深圳云仓科技有限公司", "物流资讯", "深圳云仓科技有限公司")}
	caps, _ := newCaps(t, fs)

	res := caps.SearchSuppliers(context.Background(), "深圳 云仓", 0)
	if res.Status != "success" || res.SupplierCount != 1 || len(res.Suppliers) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if fs.last.Count != tools.DefaultSearchCount {
		t.Errorf("expected default count %d, got %d", tools.DefaultSearchCount, fs.last.Count)
	}
	if fs.last.Freshness != search.FreshnessMonth {
		t.Errorf("expected month freshness, got %q", fs.last.Freshness)
	}

	caps.SearchSuppliers(context.Background(), "q", 500)
	if fs.last.Count != search.MaxCount {
		t.Errorf("expected count capped at %d, got %d", search.MaxCount, fs.last.Count)
	}
}

func TestSearchSuppliers_ErrorEnvelope(t *testing.T) {
	caps, _ := newCaps(t, &fakeSearcher{err: search.ErrTimeout})

	res := caps.SearchSuppliers(context.Background(), "q", 5)
	if res.Status != "error" || res.Error == "" || res.Suppliers == nil || len(res.Suppliers) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	b, _ := json.Marshal(res)
	var wire map[string]any
	_ = json.Unmarshal(b, &wire)
	if _, ok := wire["supplier_count"]; !ok {
		t.Errorf("expected supplier_count in %s", b)
	}
}

func TestRegistry_List(t *testing.T) {
	caps, _ := newCaps(t, &fakeSearcher{})
	list := tools.NewRegistry(caps).List()
	if len(list) != 2 || list[0].Name != tools.NameSearchSuppliers || list[1].Name != tools.NameValidateCompany {
		t.Errorf("unexpected tool list %+v", list)
	}
}

func TestRegistry_Execute(t *testing.T) {
	caps, store := newCaps(t, &fakeSearcher{resp: webpages(t, "上海现代物流集团有限公司")})
	reg := tools.NewRegistry(caps)
	ctx := context.Background()

	out, err := reg.Execute(ctx, tools.NameSearchSuppliers, json.RawMessage(`{"query":"物流","count":3}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res, ok := out.(tools.SearchResult); !ok || res.SupplierCount != 1 {
		t.Errorf("unexpected search output %#v", out)
	}

	args, _ := json.Marshal(map[string]string{"company_name": store.Companies()[0].Name})
	out, err = reg.Execute(ctx, tools.NameValidateCompany, args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p, ok := out.(validate.Profile); !ok || p.ValidationStatus != validate.StatusCompleted {
		t.Errorf("unexpected validate output %#v", out)
	}
}

func TestRegistry_ExecuteErrors(t *testing.T) {
	caps, _ := newCaps(t, &fakeSearcher{})
	reg := tools.NewRegistry(caps)

	if _, err := reg.Execute(context.Background(), "missing", nil); !errors.Is(err, tools.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := reg.Execute(context.Background(), tools.NameValidateCompany, json.RawMessage(`[1,2]`)); !errors.Is(err, tools.ErrInvalidArgs) {
		t.Errorf("expected ErrInvalidArgs, got %v", err)
	}
}
