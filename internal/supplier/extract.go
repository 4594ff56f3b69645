package supplier

import (
	"encoding/json"
	"log/slog"

	"github.com/FranksOps/sourcer/internal/metrics"
	"github.com/FranksOps/sourcer/internal/search"
)

const (
	messageTypeSource  = "source"
	contentTypeWebpage = "webpage"
)

// webpageContent items are decoded one at a time so that a malformed item
// does not discard its siblings.
type webpageContent struct {
	Value []json.RawMessage `json:"value"`
}

type webpageItem struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Extract scans the webpage source messages of a search response and returns
// deduplicated supplier candidates in first-seen order. A response without
// messages yields an empty slice; a message whose content is not valid JSON
// is skipped, as is any single item that is not a result object.
func Extract(resp *search.Response, logger *slog.Logger) []Candidate {
	if logger == nil {
		logger = slog.Default()
	}
	if resp == nil || len(resp.Messages) == 0 {
		logger.Warn("search response has no messages")
		return []Candidate{}
	}

	var found []Candidate
	for i, msg := range resp.Messages {
		if msg.Type != messageTypeSource || msg.ContentType != contentTypeWebpage {
			continue
		}

		var content webpageContent
		if err := json.Unmarshal([]byte(msg.Content), &content); err != nil {
			logger.Warn("skipping unparsable webpage message", "index", i, "err", err)
			continue
		}

		for j, raw := range content.Value {
			var item webpageItem
			if err := json.Unmarshal(raw, &item); err != nil {
				logger.Warn("skipping unparsable webpage item", "index", i, "item", j, "err", err)
				continue
			}
			if !IsCompanyName(item.Name) {
				continue
			}
			found = append(found, Candidate{
				CompanyName: item.Name,
				SourceURL:   item.URL,
				Description: item.Snippet,
				Source:      SourceWebSearch,
				Confidence:  DefaultConfidence,
			})
		}
	}

	out := Dedupe(found)
	metrics.CandidatesExtractedTotal.Add(float64(len(out)))
	logger.Info("extracted supplier candidates", "raw", len(found), "unique", len(out))
	return out
}
