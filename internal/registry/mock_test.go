package registry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMock(t *testing.T) (*MockProvider, *Store) {
	t.Helper()
	s := NewSeededStore(99, fixedNow)
	return NewMockProvider(s, quietLogger()), s
}

func TestMockProvider_Found(t *testing.T) {
	m, s := newMock(t)
	name := s.Companies()[0].Name
	ctx := context.Background()

	rec, err := m.BasicInfo(ctx, name)
	if err != nil || !rec.OK() {
		t.Fatalf("expected ok record, got %+v %v", rec, err)
	}
	var c Company
	if err := rec.Decode(&c); err != nil || c.Name != name {
		t.Fatalf("decode failed: %+v %v", c, err)
	}

	rec, _ = m.RiskInfo(ctx, name)
	var risks RiskList
	if err := rec.Decode(&risks); err != nil || risks.Total != len(risks.RiskList) {
		t.Errorf("unexpected risk payload: %+v %v", risks, err)
	}

	rec, _ = m.FinancialData(ctx, name)
	var fin Financials
	if err := rec.Decode(&fin); err != nil || len(fin.YearReports) != 3 {
		t.Errorf("unexpected financial payload: %+v %v", fin, err)
	}

	rec, _ = m.IntellectualProperty(ctx, name)
	if !strings.Contains(string(rec.Payload), `"softwareCopyright":[`) {
		t.Errorf("expected softwareCopyright list in payload: %s", rec.Payload)
	}
}

func TestMockProvider_NotFound(t *testing.T) {
	m, _ := newMock(t)

	for _, name := range []string{"", "不存在的公司"} {
		rec, err := m.BasicInfo(context.Background(), name)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Status != StatusNotFound || rec.ErrorReason != "查无结果" || rec.Payload != nil {
			t.Errorf("unexpected record for %q: %+v", name, rec)
		}
	}

	for _, name := range []string{"", "不存在的公司", "深圳不存在云仓有限公司"} {
		for _, op := range Operations {
			rec, err := Lookup(context.Background(), m, op, name)
			if err != nil {
				t.Fatalf("%s %q: unexpected error: %v", op, name, err)
			}
			if rec.Status != StatusNotFound || rec.Payload != nil || rec.ErrorReason != "查无结果" {
				t.Errorf("%s %q: unexpected record %+v", op, name, rec)
			}
		}
	}

	rec, _ := m.RiskInfo(context.Background(), "不存在的公司")
	b, _ := json.Marshal(rec)
	if string(b) != `{"status":"not_found","payload":null,"error_reason":"查无结果"}` {
		t.Errorf("unexpected wire form %s", b)
	}
}

func TestMockProvider_Ambiguous(t *testing.T) {
	m, _ := newMock(t)
	rec, err := m.BasicInfo(context.Background(), "有限公司")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != StatusError || !strings.Contains(rec.ErrorReason, "more than one") {
		t.Errorf("expected ambiguity error record, got %+v", rec)
	}
}

func TestMockProvider_LatencyHonorsContext(t *testing.T) {
	m, s := newMock(t)
	m.Latency = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.BasicInfo(ctx, s.Companies()[0].Name)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRecord_JSON(t *testing.T) {
	b, _ := json.Marshal(Record{})
	if string(b) != "{}" {
		t.Errorf("expected zero record as {}, got %s", b)
	}

	in := Record{Status: StatusOK, Payload: json.RawMessage(`{"a":1}`)}
	b, _ = json.Marshal(in)
	if string(b) != `{"status":"ok","payload":{"a":1},"error_reason":null}` {
		t.Errorf("unexpected wire form %s", b)
	}

	var out Record
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out.Status != StatusOK || string(out.Payload) != `{"a":1}` || out.ErrorReason != "" {
		t.Errorf("unexpected decoded record %+v", out)
	}

	if err := (Record{Status: StatusNotFound}).Decode(&struct{}{}); err == nil {
		t.Error("expected decode error for record without payload")
	}
}

func TestLookup_UnknownOperation(t *testing.T) {
	m, _ := newMock(t)
	if _, err := Lookup(context.Background(), m, Operation("bogus"), "x"); !errors.Is(err, ErrUnknownOperation) {
		t.Errorf("expected ErrUnknownOperation, got %v", err)
	}
}
