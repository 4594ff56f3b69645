package pipeline

import (
	"context"
	"strings"
	"unicode"
)

// DefaultMaxQueries bounds the queries a KeywordPlanner emits.
const DefaultMaxQueries = 5

// Planner turns a procurement requirement into web search queries.
type Planner interface {
	Plan(ctx context.Context, requirement string) ([]string, error)
}

// requestVerbs are stripped from the front of each clause; they carry no
// search value.
var requestVerbs = []string{"请帮我", "帮我", "我们", "我想", "想要", "希望", "寻找", "查找", "搜索", "需要", "要求", "找"}

// KeywordPlanner splits the requirement into clauses. The first clause is
// the base query (region and business); each further clause is appended to
// the base as a refinement.
type KeywordPlanner struct {
	MaxQueries int
}

func isClauseBreak(r rune) bool {
	switch r {
	case '，', ',', '。', '；', ';', '！', '!', '？', '?', '\n', '\r':
		return true
	}
	return false
}

// Plan never fails for a non-empty requirement.
func (p KeywordPlanner) Plan(_ context.Context, requirement string) ([]string, error) {
	requirement = strings.TrimSpace(requirement)
	if requirement == "" {
		return nil, ErrEmptyRequirement
	}
	limit := p.MaxQueries
	if limit <= 0 {
		limit = DefaultMaxQueries
	}

	var clauses []string
	for _, c := range strings.FieldsFunc(requirement, isClauseBreak) {
		if c = stripVerbs(c); c != "" {
			clauses = append(clauses, c)
		}
	}
	if len(clauses) == 0 {
		return []string{requirement}, nil
	}

	base := clauses[0]
	queries := []string{base}
	seen := map[string]bool{base: true}
	for _, c := range clauses[1:] {
		if len(queries) == limit {
			break
		}
		q := base + " " + c
		if seen[q] {
			continue
		}
		seen[q] = true
		queries = append(queries, q)
	}
	return queries, nil
}

func stripVerbs(clause string) string {
	clause = strings.TrimFunc(clause, unicode.IsSpace)
	for changed := true; changed; {
		changed = false
		for _, v := range requestVerbs {
			if rest, ok := strings.CutPrefix(clause, v); ok {
				clause = strings.TrimFunc(rest, unicode.IsSpace)
				changed = true
			}
		}
	}
	return clause
}
