// Package supplier turns raw web search payloads into deduplicated
// supplier candidates.
package supplier

import (
	"strings"
	"unicode"
)

// Source identifies where a candidate was discovered.
type Source string

// SourceWebSearch marks candidates extracted from web search results.
const SourceWebSearch Source = "web_search"

// DefaultConfidence is assigned to every extracted candidate; the extractor
// does not grade match strength.
const DefaultConfidence = 0.8

// Candidate is one discovered company mention.
type Candidate struct {
	CompanyName string  `json:"company_name"`
	SourceURL   string  `json:"source_url"`
	Description string  `json:"description"`
	Source      Source  `json:"source"`
	Confidence  float64 `json:"confidence"`
}

// LegalEntitySuffixes are the substrings that mark a search result title as
// naming a registered company.
var LegalEntitySuffixes = []string{"有限公司", "股份有限公司", "有限责任公司", "集团"}

// IsCompanyName reports whether name contains a legal-entity suffix. The
// test is a case-sensitive substring match.
func IsCompanyName(name string) bool {
	for _, suffix := range LegalEntitySuffixes {
		if strings.Contains(name, suffix) {
			return true
		}
	}
	return false
}

// NormalizeName strips 【…】 marketing labels from a result title so that
// "【推广】武汉速达云仓有限公司" and "武汉速达云仓有限公司" compare equal.
// Names without a closing 】 are returned unchanged. Otherwise the text
// outside the labels wins if it names a company, then the first label that
// does, then whatever text remains outside. The result never contains a
// bracket, so NormalizeName is idempotent.
func NormalizeName(name string) string {
	if !strings.Contains(name, "】") {
		return name
	}

	var outside, label strings.Builder
	var labels []string
	inLabel := false

	for _, r := range name {
		switch r {
		case '【':
			if inLabel {
				outside.WriteString(label.String())
			}
			label.Reset()
			inLabel = true
		case '】':
			if inLabel {
				labels = append(labels, label.String())
				inLabel = false
			}
		default:
			if inLabel {
				label.WriteRune(r)
			} else {
				outside.WriteRune(r)
			}
		}
	}
	if inLabel {
		outside.WriteString(label.String())
	}

	rest := trimSeparators(outside.String())
	if IsCompanyName(rest) {
		return rest
	}
	for _, l := range labels {
		if l = trimSeparators(l); IsCompanyName(l) {
			return l
		}
	}
	if rest != "" {
		return rest
	}
	for _, l := range labels {
		if l = trimSeparators(l); l != "" {
			return l
		}
	}
	return ""
}

func trimSeparators(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune("-_|·—–:：,，", r)
	})
}

// Dedupe keeps the first candidate per normalized name, rewrites its name to
// the normalized form and preserves first-seen order. Candidates whose name
// normalizes to the empty string are dropped.
func Dedupe(candidates []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]Candidate, 0, len(candidates))

	for _, c := range candidates {
		name := NormalizeName(c.CompanyName)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		c.CompanyName = name
		out = append(out, c)
	}
	return out
}

// Names returns the company names of candidates in order.
func Names(candidates []Candidate) []string {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.CompanyName
	}
	return names
}
