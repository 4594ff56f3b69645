package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/FranksOps/sourcer/internal/metrics"
	"github.com/FranksOps/sourcer/pkg/httpclient"
	"github.com/FranksOps/sourcer/pkg/ratelimit"
)

// DefaultBaseURL is the public Bocha AI open platform endpoint.
const DefaultBaseURL = "https://api.bochaai.com/v1"

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 16 << 20
	maxDetailRunes = 200
)

// Config configures the search Client.
type Config struct {
	APIKey  string
	BaseURL string
	// Timeout bounds each call; defaults to 30s.
	Timeout time.Duration
	// Transport is optional, e.g. a fingerprinted transport.
	Transport http.RoundTripper
	// Limiter paces calls; nil means unlimited.
	Limiter *ratelimit.Limiter
	Logger  *slog.Logger
}

// Client calls the Bocha AI search API. It makes exactly one attempt per
// call; retries are left to callers.
type Client struct {
	endpoint string
	timeout  time.Duration
	http     *httpclient.Client
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

var _ Searcher = (*Client)(nil)

// NewClient builds a search client. An API key is mandatory.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	hc, err := httpclient.New(httpclient.Config{
		Timeout:   cfg.Timeout,
		Transport: cfg.Transport,
		Headers: map[string]string{
			"Authorization": "Bearer " + cfg.APIKey,
			"Accept":        "application/json",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("search: failed to create http client: %w", err)
	}

	cfg.Logger.Info("search client ready", "base_url", cfg.BaseURL)

	return &Client{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/ai-search",
		timeout:  cfg.Timeout,
		http:     hc,
		limiter:  cfg.Limiter,
		logger:   cfg.Logger,
	}, nil
}

// Search runs one AI search. The count is clamped to [1, MaxCount] and an
// empty freshness means no time limit.
func (c *Client) Search(ctx context.Context, req Request) (*Response, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		metrics.RecordSearch(outcomeOf(ErrEmptyQuery), 0)
		c.logger.Warn("search rejected", "outcome", outcomeOf(ErrEmptyQuery), "err", ErrEmptyQuery)
		return nil, ErrEmptyQuery
	}
	req.Count = ClampCount(req.Count)
	if req.Freshness == "" {
		req.Freshness = FreshnessNoLimit
	}

	start := time.Now()
	resp, err := c.do(ctx, req)
	elapsed := time.Since(start)

	outcome := outcomeOf(err)
	metrics.RecordSearch(outcome, elapsed)

	attrs := []any{
		"query", req.Query,
		"count", req.Count,
		"freshness", string(req.Freshness),
		"outcome", outcome,
		"duration", elapsed,
	}
	if err != nil {
		c.logger.Error("search failed", append(attrs, "err", err)...)
		return nil, err
	}
	c.logger.Info("search completed", append(attrs, "messages", len(resp.Messages))...)
	return resp, nil
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &RequestError{Err: err}
	}

	httpResp, err := c.http.PostJSON(ctx, c.endpoint, req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return nil, &RequestError{Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return nil, &RequestError{Err: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &APIError{StatusCode: httpResp.StatusCode, Message: errorDetail(body)}
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &out, nil
}

// errorDetail prefers the JSON "error" field and otherwise falls back to
// the leading characters of the raw body.
func errorDetail(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		if v, ok := payload["error"]; ok && v != nil {
			if s, ok := v.(string); ok {
				return s
			}
			b, _ := json.Marshal(v)
			return string(b)
		}
	}
	r := []rune(string(body))
	if len(r) > maxDetailRunes {
		r = r[:maxDetailRunes]
	}
	return string(r)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func outcomeOf(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyQuery):
		return "invalid"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.As(err, &apiErr):
		return "api_error"
	default:
		return "request_error"
	}
}
