package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newRemote(t *testing.T, url, token string) *RemoteProvider {
	t.Helper()
	p, err := NewRemoteProvider(RemoteConfig{Token: token, BaseURL: url, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	return p
}

func TestRemoteProvider_MissingToken(t *testing.T) {
	p := newRemote(t, "http://127.0.0.1:1", " ")
	for _, op := range Operations {
		if _, err := Lookup(context.Background(), p, op, "x"); !errors.Is(err, ErrMissingToken) {
			t.Errorf("%s: expected ErrMissingToken, got %v", op, err)
		}
	}
}

func TestNewRemoteProvider_DefaultBaseURL(t *testing.T) {
	p := newRemote(t, "", "tok")
	if p.baseURL != "https://open.tianyancha.com/services/open" {
		t.Errorf("unexpected default base url %q", p.baseURL)
	}
}

func TestRemoteProvider_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/services/open/ic/baseinfo/normal" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "tok" {
			t.Errorf("unexpected authorization %q", r.Header.Get("Authorization"))
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["keyword"] != "武汉速达云仓有限公司" {
			t.Errorf("unexpected keyword %q", body["keyword"])
		}
		_, _ = w.Write([]byte(`{"error_code":0,"reason":"ok","result":{"name":"武汉速达云仓有限公司"}}`))
	}))
	defer ts.Close()

	p := newRemote(t, ts.URL+"/services/open/", "tok")
	rec, err := p.BasicInfo(context.Background(), "武汉速达云仓有限公司")
	if err != nil || !rec.OK() {
		t.Fatalf("expected ok record, got %+v %v", rec, err)
	}
	var c Company
	if err := rec.Decode(&c); err != nil || c.Name != "武汉速达云仓有限公司" {
		t.Errorf("unexpected payload %s", rec.Payload)
	}
}

func TestRemoteProvider_EnvelopeCodes(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		wantStatus Status
		wantReason string
	}{
		{"no data", `{"error_code":300000,"reason":"无数据"}`, StatusNotFound, "无数据"},
		{"no result", `{"error_code":300204,"reason":"查无结果"}`, StatusNotFound, "查无结果"},
		{"null result", `{"error_code":0,"reason":"ok","result":null}`, StatusNotFound, "查无结果"},
		{"other code", `{"error_code":300003,"reason":"余额不足"}`, StatusError, "余额不足"},
		{"malformed", `<html>`, StatusError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer ts.Close()

			rec, err := newRemote(t, ts.URL, "tok").RiskInfo(context.Background(), "x")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Status != tc.wantStatus {
				t.Errorf("expected status %s, got %+v", tc.wantStatus, rec)
			}
			if tc.wantReason != "" && rec.ErrorReason != tc.wantReason {
				t.Errorf("expected reason %q, got %q", tc.wantReason, rec.ErrorReason)
			}
			if rec.Payload != nil {
				t.Errorf("expected no payload, got %s", rec.Payload)
			}
		})
	}
}

func TestRemoteProvider_HTTPFailures(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	rec, err := newRemote(t, ts.URL, "tok").IntellectualProperty(context.Background(), "x")
	if err != nil || rec.Status != StatusError {
		t.Errorf("expected error record for 500, got %+v %v", rec, err)
	}

	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := closed.URL
	closed.Close()

	rec, err = newRemote(t, url, "tok").BasicInfo(context.Background(), "x")
	if err != nil || rec.Status != StatusError || rec.ErrorReason == "" {
		t.Errorf("expected error record for transport failure, got %+v %v", rec, err)
	}
}

func TestRemoteProvider_FinancialDataNoNetwork(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer ts.Close()

	rec, err := newRemote(t, ts.URL, "tok").FinancialData(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != StatusError || rec.ErrorReason != "财务数据需要高级API权限" {
		t.Errorf("unexpected record %+v", rec)
	}
	if hits.Load() != 0 {
		t.Errorf("expected no network call, got %d", hits.Load())
	}
}
