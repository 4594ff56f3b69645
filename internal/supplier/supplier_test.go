package supplier

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/FranksOps/sourcer/internal/search"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func webpageMessage(t *testing.T, items ...webpageItem) search.Message {
	t.Helper()
	b, err := json.Marshal(map[string]any{"value": items})
	if err != nil {
		t.Fatalf("failed to marshal content: %v", err)
	}
	return search.Message{Role: "assistant", Type: "source", ContentType: "webpage", Content: string(b)}
}

func TestExtract_StripsAdvertisingLabel(t *testing.T) {
	resp := &search.Response{Messages: []search.Message{
		webpageMessage(t, webpageItem{Name: "【广告】深圳云仓科技有限公司", URL: "https://a.example", Snippet: "云仓服务"}),
	}}

	got := Extract(resp, quietLogger())
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	c := got[0]
	if c.CompanyName != "深圳云仓科技有限公司" {
		t.Errorf("unexpected name %q", c.CompanyName)
	}
	if c.Confidence != DefaultConfidence || c.Source != SourceWebSearch {
		t.Errorf("unexpected confidence/source: %+v", c)
	}
	if c.SourceURL != "https://a.example" || c.Description != "云仓服务" {
		t.Errorf("unexpected url/description: %+v", c)
	}
}

func TestExtract_DedupesAcrossMessagesKeepingFirst(t *testing.T) {
	resp := &search.Response{Messages: []search.Message{
		webpageMessage(t,
			webpageItem{Name: "武汉速达云仓有限公司", URL: "https://first.example", Snippet: "first"},
			webpageItem{Name: "云仓行业资讯", URL: "https://news.example"},
		),
		{Type: "answer", ContentType: "text", Content: "not a source"},
		webpageMessage(t,
			webpageItem{Name: "【推广】武汉速达云仓有限公司", URL: "https://second.example", Snippet: "second"},
			webpageItem{Name: "上海现代物流集团", URL: "https://c.example"},
		),
	}}

	got := Extract(resp, quietLogger())
	names := Names(got)
	want := []string{"武汉速达云仓有限公司", "上海现代物流集团"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], names[i])
		}
	}
	if got[0].Description != "first" || got[0].SourceURL != "https://first.example" {
		t.Errorf("expected first occurrence kept, got %+v", got[0])
	}
}

func TestExtract_NoMessages(t *testing.T) {
	if got := Extract(&search.Response{}, quietLogger()); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
	if got := Extract(nil, quietLogger()); len(got) != 0 {
		t.Errorf("expected empty result for nil response, got %v", got)
	}
}

func TestExtract_SkipsBadContent(t *testing.T) {
	resp := &search.Response{Messages: []search.Message{
		{Type: "source", ContentType: "webpage", Content: "{not json"},
		webpageMessage(t, webpageItem{Name: "杭州安捷云仓有限责任公司"}),
	}}

	got := Extract(resp, quietLogger())
	if len(got) != 1 || got[0].CompanyName != "杭州安捷云仓有限责任公司" {
		t.Errorf("expected bad message skipped, got %+v", got)
	}
}

func TestExtract_SkipsMalformedItem(t *testing.T) {
	content := `{"value":["stray text",{"name":"武汉速达云仓有限公司","url":"http://a"},{"name":42},{"name":"成都安捷物流集团","snippet":"仓配"}]}`
	resp := &search.Response{Messages: []search.Message{
		{Type: "source", ContentType: "webpage", Content: content},
	}}

	got := Extract(resp, quietLogger())
	if len(got) != 2 || got[0].CompanyName != "武汉速达云仓有限公司" || got[1].CompanyName != "成都安捷物流集团" {
		t.Errorf("expected malformed items skipped and siblings kept, got %+v", got)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"深圳云仓科技有限公司", "深圳云仓科技有限公司"},
		{"【广告】深圳云仓科技有限公司", "深圳云仓科技有限公司"},
		{"【推广】 - 武汉速达云仓有限公司", "武汉速达云仓有限公司"},
		{"【成都智慧物流园管理有限公司】官网", "成都智慧物流园管理有限公司"},
		{"仓储服务】", "仓储服务"},
		{"【广告】", "广告"},
		{"【】", ""},
	}
	for _, tc := range cases {
		got := NormalizeName(tc.in)
		if got != tc.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
		if again := NormalizeName(got); again != got {
			t.Errorf("NormalizeName not idempotent for %q: %q then %q", tc.in, got, again)
		}
	}
}

func TestDedupe_Idempotent(t *testing.T) {
	in := []Candidate{
		{CompanyName: "【广告】南京中部云仓有限公司", Description: "a"},
		{CompanyName: "南京中部云仓有限公司", Description: "b"},
		{CompanyName: "【】"},
		{CompanyName: "西安现代物流集团有限公司"},
	}

	once := Dedupe(in)
	twice := Dedupe(once)
	if len(once) != 2 {
		t.Fatalf("expected 2 candidates, got %+v", once)
	}
	if len(twice) != len(once) {
		t.Fatalf("dedupe not idempotent: %+v vs %+v", once, twice)
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("position %d changed: %+v vs %+v", i, once[i], twice[i])
		}
	}
	if once[0].Description != "a" {
		t.Errorf("expected first description kept, got %q", once[0].Description)
	}
}
