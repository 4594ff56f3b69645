package search

import (
	"context"
	"fmt"
	"strings"
)

// MaxCount is the largest result count the search API accepts per call.
const MaxCount = 50

// Freshness restricts search results to a publication window.
type Freshness string

const (
	FreshnessNoLimit Freshness = "noLimit"
	FreshnessDay     Freshness = "day"
	FreshnessWeek    Freshness = "week"
	FreshnessMonth   Freshness = "month"
	FreshnessYear    Freshness = "year"
)

// ParseFreshness accepts the wire values as well as the snake_case
// spelling used in config files.
func ParseFreshness(s string) (Freshness, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nolimit", "no_limit":
		return FreshnessNoLimit, nil
	case "day":
		return FreshnessDay, nil
	case "week":
		return FreshnessWeek, nil
	case "month":
		return FreshnessMonth, nil
	case "year":
		return FreshnessYear, nil
	default:
		return "", fmt.Errorf("search: unknown freshness %q", s)
	}
}

// Request is the body sent to the AI search endpoint.
type Request struct {
	Query     string    `json:"query"`
	Freshness Freshness `json:"freshness"`
	Count     int       `json:"count"`
	Answer    bool      `json:"answer"`
	Stream    bool      `json:"stream"`
}

// Message is one entry of the AI search message list. Webpage sources carry
// their result list as a JSON document encoded in Content.
type Message struct {
	Role        string `json:"role"`
	Type        string `json:"type"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

// Response is the decoded body of a successful AI search call.
type Response struct {
	Code           int       `json:"code"`
	LogID          string    `json:"log_id"`
	ConversationID string    `json:"conversation_id"`
	Messages       []Message `json:"messages"`
}

// Searcher abstracts the web search backend so the capability layer can be
// exercised against fakes.
type Searcher interface {
	Search(ctx context.Context, req Request) (*Response, error)
}

// ClampCount bounds a requested result count to [1, MaxCount].
func ClampCount(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxCount {
		return MaxCount
	}
	return n
}
