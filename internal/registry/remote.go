package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/FranksOps/sourcer/internal/metrics"
	"github.com/FranksOps/sourcer/pkg/httpclient"
	"github.com/FranksOps/sourcer/pkg/ratelimit"
)

// DefaultBaseURL is the Tianyancha open platform endpoint.
const DefaultBaseURL = "https://open.tianyancha.com/services/open"

const (
	defaultRemoteTimeout = 30 * time.Second
	maxEnvelopeBytes     = 8 << 20

	reasonFinancialRestricted = "财务数据需要高级API权限"
)

var remotePaths = map[Operation]string{
	OpBasicInfo:            "/ic/baseinfo/normal",
	OpRiskInfo:             "/ic/risklist",
	OpIntellectualProperty: "/ic/ipr",
}

// RemoteConfig configures a RemoteProvider.
type RemoteConfig struct {
	Token     string
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
	Limiter   *ratelimit.Limiter
	Logger    *slog.Logger
}

// RemoteProvider queries the Tianyancha open API. A missing token is a
// configuration fault and is reported as ErrMissingToken on every call.
type RemoteProvider struct {
	token   string
	baseURL string
	http    *httpclient.Client
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

var _ Provider = (*RemoteProvider)(nil)

type envelope struct {
	ErrorCode int             `json:"error_code"`
	Reason    string          `json:"reason"`
	Result    json.RawMessage `json:"result"`
}

// NewRemoteProvider builds a remote provider. It does not fail on a missing
// token so that the fault surfaces per lookup.
func NewRemoteProvider(cfg RemoteConfig) (*RemoteProvider, error) {
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultRemoteTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	headers := map[string]string{"Accept": "application/json"}
	if cfg.Token != "" {
		headers["Authorization"] = cfg.Token
	}

	hc, err := httpclient.New(httpclient.Config{
		Timeout:   cfg.Timeout,
		Transport: cfg.Transport,
		Headers:   headers,
	})
	if err != nil {
		return nil, fmt.Errorf("registry: failed to create http client: %w", err)
	}

	return &RemoteProvider{
		token:   cfg.Token,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		limiter: cfg.Limiter,
		logger:  cfg.Logger,
	}, nil
}

func (p *RemoteProvider) BasicInfo(ctx context.Context, name string) (Record, error) {
	return p.call(ctx, OpBasicInfo, name)
}

func (p *RemoteProvider) RiskInfo(ctx context.Context, name string) (Record, error) {
	return p.call(ctx, OpRiskInfo, name)
}

func (p *RemoteProvider) IntellectualProperty(ctx context.Context, name string) (Record, error) {
	return p.call(ctx, OpIntellectualProperty, name)
}

// FinancialData is not available at the standard API tier and always yields
// an error record without a network call.
func (p *RemoteProvider) FinancialData(_ context.Context, _ string) (Record, error) {
	if p.token == "" {
		return Record{}, ErrMissingToken
	}
	metrics.RecordLookup(string(OpFinancialData), string(StatusError))
	return errorRecord(reasonFinancialRestricted), nil
}

func (p *RemoteProvider) call(ctx context.Context, op Operation, name string) (Record, error) {
	if p.token == "" {
		return Record{}, ErrMissingToken
	}

	start := time.Now()
	rec := p.fetch(ctx, op, name)
	metrics.RecordLookup(string(op), string(rec.Status))

	attrs := []any{"operation", op, "name", name, "status", rec.Status, "duration", time.Since(start)}
	if rec.Status == StatusError {
		p.logger.Warn("registry lookup failed", append(attrs, "reason", rec.ErrorReason)...)
	} else {
		p.logger.Info("registry lookup", attrs...)
	}
	return rec, nil
}

func (p *RemoteProvider) fetch(ctx context.Context, op Operation, name string) Record {
	if err := p.limiter.Wait(ctx); err != nil {
		return errorRecord(fmt.Sprintf("rate limiter: %v", err))
	}

	resp, err := p.http.PostJSON(ctx, p.baseURL+remotePaths[op], map[string]string{"keyword": name})
	if err != nil {
		return errorRecord(fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeBytes))
	if err != nil {
		return errorRecord(fmt.Sprintf("read response: %v", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorRecord(fmt.Sprintf("api call failed: %d", resp.StatusCode))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return errorRecord(fmt.Sprintf("malformed response: %v", err))
	}

	switch env.ErrorCode {
	case 0:
		result := bytes.TrimSpace(env.Result)
		if len(result) == 0 || bytes.Equal(result, []byte("null")) {
			return notFoundRecord(reasonNoResult)
		}
		return Record{Status: StatusOK, Payload: append(json.RawMessage(nil), result...)}
	case CodeNoData, CodeNoResult:
		return notFoundRecord(env.Reason)
	default:
		reason := env.Reason
		if reason == "" {
			reason = fmt.Sprintf("error code %d", env.ErrorCode)
		}
		return errorRecord(reason)
	}
}
