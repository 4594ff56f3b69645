// Package tools exposes the sourcing capabilities as a closed set of named
// tools that accept JSON arguments, for agents and the HTTP surface.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/FranksOps/sourcer/internal/search"
	"github.com/FranksOps/sourcer/internal/supplier"
	"github.com/FranksOps/sourcer/internal/validate"
)

// Tool names.
const (
	NameSearchSuppliers = "search_suppliers"
	NameValidateCompany = "validate_company"
)

const (
	// DefaultSearchCount is used when a caller asks for zero or fewer results.
	DefaultSearchCount = 10
	// DefaultFreshness limits supplier searches to recent pages.
	DefaultFreshness = search.FreshnessMonth
)

// Tool describes a capability with a JSON schema for its arguments.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Handler runs a tool against decoded-on-demand JSON arguments.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// SearchResult is the envelope returned by search_suppliers.
type SearchResult struct {
	Status        string               `json:"status"`
	SupplierCount int                  `json:"supplier_count"`
	Suppliers     []supplier.Candidate `json:"suppliers"`
	Error         string               `json:"error,omitempty"`
}

// Capabilities implements the two sourcing tools. Neither ever fails; every
// outcome is folded into its result value.
type Capabilities struct {
	searcher  search.Searcher
	validator *validate.Validator
	freshness search.Freshness
	logger    *slog.Logger
}

// Options tunes Capabilities.
type Options struct {
	// Freshness for supplier searches; empty means DefaultFreshness.
	Freshness search.Freshness
	Logger    *slog.Logger
}

func NewCapabilities(s search.Searcher, v *validate.Validator, opts Options) *Capabilities {
	if opts.Freshness == "" {
		opts.Freshness = DefaultFreshness
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Capabilities{searcher: s, validator: v, freshness: opts.Freshness, logger: opts.Logger}
}

// SearchSuppliers searches the web for query and extracts supplier
// candidates. A count of zero or less means DefaultSearchCount; larger
// counts are capped at search.MaxCount.
func (c *Capabilities) SearchSuppliers(ctx context.Context, query string, count int) SearchResult {
	if count <= 0 {
		count = DefaultSearchCount
	}
	count = search.ClampCount(count)

	resp, err := c.searcher.Search(ctx, search.Request{
		Query:     query,
		Freshness: c.freshness,
		Count:     count,
	})
	if err != nil {
		return SearchResult{Status: "error", Suppliers: []supplier.Candidate{}, Error: err.Error()}
	}

	found := supplier.Extract(resp, c.logger)
	return SearchResult{Status: "success", SupplierCount: len(found), Suppliers: found}
}

// ValidateCompany returns the registry profile for name.
func (c *Capabilities) ValidateCompany(ctx context.Context, name string) validate.Profile {
	return c.validator.Validate(ctx, name)
}

type entry struct {
	tool    Tool
	handler Handler
}

// Registry dispatches tool calls by name.
type Registry struct {
	entries map[string]entry
}

// NewRegistry registers the sourcing tools backed by caps.
func NewRegistry(caps *Capabilities) *Registry {
	r := &Registry{entries: make(map[string]entry)}

	r.entries[NameSearchSuppliers] = entry{
		tool: Tool{
			Name:        NameSearchSuppliers,
			Description: "Search the web for supplier companies matching a query",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "description": "search keywords"},
					"count": map[string]any{"type": "integer", "description": "number of results, default 10, max 50"},
				},
				"required": []string{"query"},
			},
		},
		handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Query string `json:"query"`
				Count int    `json:"count"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			return caps.SearchSuppliers(ctx, in.Query, in.Count), nil
		},
	}

	r.entries[NameValidateCompany] = entry{
		tool: Tool{
			Name:        NameValidateCompany,
			Description: "Validate a company against the business registry",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"company_name": map[string]any{"type": "string", "description": "registered company name"},
				},
				"required": []string{"company_name"},
			},
		},
		handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				CompanyName string `json:"company_name"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			return caps.ValidateCompany(ctx, in.CompanyName), nil
		},
	}

	return r
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return nil
}

// List returns the tool definitions sorted by name.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute dispatches a tool call by name. Unknown names return ErrNotFound
// and undecodable arguments ErrInvalidArgs.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (any, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	result, err := e.handler(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	return result, nil
}
