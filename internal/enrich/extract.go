package enrich

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// Topic is a comparison-table subject looked for in page text.
type Topic string

const (
	TopicFireSafety    Topic = "fire_safety"
	TopicWarehouseArea Topic = "warehouse_area"
	TopicAutomation    Topic = "automation"
	TopicEcommerce     Topic = "ecommerce"
	TopicBusinessModel Topic = "business_model"
	TopicStaff         Topic = "staff"
	TopicReputation    Topic = "reputation"
)

// topicTerms maps each topic to the keywords whose sentences are kept.
var topicTerms = map[Topic][]string{
	TopicFireSafety:    {"消防", "丙二类", "丙类仓", "防火"},
	TopicWarehouseArea: {"平方米", "平米", "㎡", "万方", "仓储面积", "占地"},
	TopicAutomation:    {"自动化", "AGV", "机器人", "WMS", "智能分拣", "立体库", "输送线"},
	TopicEcommerce:     {"电商", "天猫", "淘宝", "京东", "拼多多", "抖音", "品牌客户", "合作客户"},
	TopicBusinessModel: {"一件代发", "仓配一体", "代发货", "云仓", "供应链", "B2B", "B2C", "O2O"},
	TopicStaff:         {"员工", "团队", "作业人员", "操作人员"},
	TopicReputation:    {"荣誉", "奖", "好评", "认证", "示范"},
}

// Topics lists every topic in a stable order.
var Topics = []Topic{
	TopicFireSafety, TopicWarehouseArea, TopicAutomation, TopicEcommerce,
	TopicBusinessModel, TopicStaff, TopicReputation,
}

const maxHighlights = 3

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	// Mainland mobile numbers, landlines with area code and 400/800 hotlines.
	phonePattern = regexp.MustCompile(`(?:1[3-9]\d{9}|0\d{2,3}-\d{7,8}|[48]00-?\d{3}-?\d{4})`)
)

// Contacts are the ways to reach a supplier found on its page.
type Contacts struct {
	Emails []string `json:"emails"`
	Phones []string `json:"phones"`
}

// Document is the parsed content of a supplier page.
type Document struct {
	Title       string
	Description string
	Text        string
	Contacts    Contacts
}

// Parse extracts the title, meta description, visible text and contact
// details from an HTML page.
func Parse(body []byte) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	out := &Document{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		out.Description = strings.TrimSpace(desc)
	}

	emails := newOrderedSet()
	phones := newOrderedSet()

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		switch {
		case strings.HasPrefix(href, "mailto:"):
			addr, _, _ := strings.Cut(strings.TrimPrefix(href, "mailto:"), "?")
			emails.add(strings.ToLower(strings.TrimSpace(addr)))
		case strings.HasPrefix(href, "tel:"):
			phones.add(strings.TrimSpace(strings.TrimPrefix(href, "tel:")))
		}
	})

	doc.Find("script, style, noscript").Remove()
	out.Text = collapseSpace(doc.Find("body").Text())
	if out.Text == "" {
		out.Text = collapseSpace(doc.Text())
	}

	for _, m := range emailPattern.FindAllString(out.Text, -1) {
		emails.add(strings.ToLower(m))
	}
	for _, m := range phonePattern.FindAllString(out.Text, -1) {
		phones.add(m)
	}

	out.Contacts = Contacts{Emails: emails.items, Phones: phones.items}
	return out, nil
}

// Highlights returns, per topic, up to three sentences of text mentioning
// one of the topic's keywords. Topics without a match are omitted.
func Highlights(text string) map[Topic][]string {
	out := make(map[Topic][]string)
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return out
	}

	lower := make([]string, len(sentences))
	for i, s := range sentences {
		lower[i] = strings.ToLower(s)
	}

	for _, topic := range Topics {
		var matched []string
		for i, ls := range lower {
			if len(matched) == maxHighlights {
				break
			}
			for _, term := range topicTerms[topic] {
				if strings.Contains(ls, strings.ToLower(term)) {
					matched = append(matched, sentences[i])
					break
				}
			}
		}
		if len(matched) > 0 {
			out[topic] = matched
		}
	}
	return out
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '。', '！', '？', '；', '!', '?', ';', '\n':
		return true
	}
	return false
}

// splitSentences splits on Chinese and ASCII sentence punctuation, keeping
// the delimiter. ASCII periods are not delimiters since they appear in
// figures and domains.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i, r := range text {
		if !isSentenceEnd(r) {
			continue
		}
		end := i + len(string(r))
		if s := strings.TrimSpace(text[start:end]); s != "" {
			sentences = append(sentences, s)
		}
		start = end
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func collapseSpace(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{}), items: []string{}}
}

func (s *orderedSet) add(v string) {
	if v == "" {
		return
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}
