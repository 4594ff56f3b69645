package report

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/FranksOps/sourcer/internal/enrich"
	"github.com/FranksOps/sourcer/internal/registry"
	"github.com/FranksOps/sourcer/internal/supplier"
	"github.com/FranksOps/sourcer/internal/validate"
)

// Unknown marks a cell no source could fill.
const Unknown = "未知"

// Row indicators of the comparison table, in display order.
const (
	RowRegCapital    = "注册资本"
	RowAge           = "成立年限"
	RowScale         = "公司规模"
	RowContact       = "销售联系人&联系方式"
	RowPrice         = "价格水平"
	RowFinancialRisk = "财务风险"
	RowLitigation    = "诉讼风险"
	RowRevenue       = "年销售额"
	RowFireSafety    = "消防资质"
	RowStaff         = "自有运营人数"
	RowArea          = "自营云仓总面积"
	RowEcommerce     = "电商客户合作数量"
	RowAutomation    = "仓内自动化程度"
	RowReputation    = "企业口碑"
	RowBusinessModel = "商业模式"
)

// Indicators lists the table rows in order.
var Indicators = []string{
	RowRegCapital, RowAge, RowScale, RowContact, RowPrice,
	RowFinancialRisk, RowLitigation, RowRevenue, RowFireSafety, RowStaff,
	RowArea, RowEcommerce, RowAutomation, RowReputation, RowBusinessModel,
}

const indicatorHeader = "指标"

// Risk grades.
const (
	GradeLow    = "低"
	GradeMedium = "中"
	GradeHigh   = "高"
)

// Risk types are split into the financial and litigation rows. Types not
// listed in either are ignored.
var (
	financialRiskTypes = map[string]bool{
		"经营异常": true, "股权出质": true, "动产抵押": true, "欠税公告": true,
	}
	litigationRiskTypes = map[string]bool{
		"行政处罚": true, "司法拍卖": true, "失信信息": true, "限制高消费": true, "终本案件": true, "被执行人": true,
	}
)

const maxCellRunes = 60

// Table is a supplier comparison: one column per supplier, one row per
// indicator.
type Table struct {
	Title       string     `json:"title"`
	Headers     []string   `json:"headers"`
	Rows        [][]string `json:"rows"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// Suppliers returns the supplier column names.
func (t Table) Suppliers() []string {
	if len(t.Headers) == 0 {
		return nil
	}
	return t.Headers[1:]
}

// Cell returns the value for indicator and supplier, or "" if either is
// not in the table.
func (t Table) Cell(indicator, supplierName string) string {
	col := -1
	for i, h := range t.Headers {
		if i > 0 && h == supplierName {
			col = i
			break
		}
	}
	if col < 0 {
		return ""
	}
	for _, row := range t.Rows {
		if len(row) > col && row[0] == indicator {
			return row[col]
		}
	}
	return ""
}

type column struct {
	name      string
	profile   *validate.Profile
	enriched  *enrich.Profile
	company   *registry.Company
	risks     *registry.RiskList
	financial *registry.Financials
}

// Build assembles the comparison table for a run. Suppliers appear in
// candidate order; profiles and enrichments are matched by company name.
// Anything that cannot be derived is Unknown.
func Build(requirement string, candidates []supplier.Candidate, profiles []validate.Profile, enrichments []enrich.Profile, now time.Time) Table {
	byName := make(map[string]*validate.Profile, len(profiles))
	for i := range profiles {
		byName[profiles[i].CompanyName] = &profiles[i]
	}
	enrichedByName := make(map[string]*enrich.Profile, len(enrichments))
	for i := range enrichments {
		enrichedByName[enrichments[i].CompanyName] = &enrichments[i]
	}

	names := supplier.Names(candidates)
	if len(names) == 0 {
		for _, p := range profiles {
			names = append(names, p.CompanyName)
		}
	}

	cols := make([]column, len(names))
	for i, name := range names {
		cols[i] = newColumn(name, byName[name], enrichedByName[name])
	}

	t := Table{
		Title:       title(requirement),
		Headers:     append([]string{indicatorHeader}, names...),
		Rows:        make([][]string, 0, len(Indicators)),
		GeneratedAt: now,
	}
	for _, indicator := range Indicators {
		row := make([]string, 0, len(cols)+1)
		row = append(row, indicator)
		for i := range cols {
			row = append(row, cols[i].cell(indicator, now))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func title(requirement string) string {
	requirement = strings.TrimSpace(requirement)
	if requirement == "" {
		return "供应商对比表"
	}
	return truncate(requirement, 30) + " 供应商对比表"
}

func newColumn(name string, p *validate.Profile, e *enrich.Profile) column {
	c := column{name: name, profile: p, enriched: e}
	if p == nil {
		return c
	}
	var company registry.Company
	if p.BasicInfo.OK() && p.BasicInfo.Decode(&company) == nil {
		c.company = &company
	}
	var risks registry.RiskList
	if p.RiskInfo.OK() && p.RiskInfo.Decode(&risks) == nil {
		c.risks = &risks
	}
	var fin registry.Financials
	if p.FinancialData.OK() && p.FinancialData.Decode(&fin) == nil {
		c.financial = &fin
	}
	return c
}

func (c *column) cell(indicator string, now time.Time) string {
	var v string
	switch indicator {
	case RowRegCapital:
		if c.company != nil {
			v = c.company.RegCapital
		}
	case RowAge:
		if c.company != nil {
			v = companyAge(c.company.EstablishTime, now)
		}
	case RowScale:
		if c.company != nil {
			v = c.company.StaffNumRange
		}
	case RowContact:
		v = c.contacts()
	case RowPrice:
		// Pricing always needs a separate quote.
	case RowFinancialRisk:
		v = c.riskGrade(financialRiskTypes)
	case RowLitigation:
		v = c.riskGrade(litigationRiskTypes)
	case RowRevenue:
		v = c.revenue()
	case RowFireSafety:
		v = c.highlight(enrich.TopicFireSafety)
	case RowStaff:
		v = c.highlight(enrich.TopicStaff)
	case RowArea:
		v = c.highlight(enrich.TopicWarehouseArea)
	case RowEcommerce:
		v = c.highlight(enrich.TopicEcommerce)
	case RowAutomation:
		v = c.highlight(enrich.TopicAutomation)
	case RowReputation:
		v = c.highlight(enrich.TopicReputation)
	case RowBusinessModel:
		v = c.highlight(enrich.TopicBusinessModel)
	}
	if strings.TrimSpace(v) == "" {
		return Unknown
	}
	return v
}

// companyAge renders whole years since establishment.
func companyAge(established string, now time.Time) string {
	t, err := time.Parse("2006-01-02", established)
	if err != nil || t.After(now) {
		return ""
	}
	years := now.Year() - t.Year()
	if now.Before(t.AddDate(years, 0, 0)) {
		years--
	}
	if years < 1 {
		return "不足1年"
	}
	return fmt.Sprintf("%d年", years)
}

func (c *column) contacts() string {
	if c.enriched == nil {
		return ""
	}
	var parts []string
	parts = append(parts, firstN(c.enriched.Contacts.Phones, 2)...)
	parts = append(parts, firstN(c.enriched.Contacts.Emails, 2)...)
	return strings.Join(parts, " / ")
}

// riskGrade is the highest level among the company's risks of the given
// types, or low when there are none. Levels outside 低/中/高 count as medium.
func (c *column) riskGrade(types map[string]bool) string {
	if c.risks == nil {
		return ""
	}
	rank := 0
	for _, r := range c.risks.RiskList {
		if !types[r.RiskType] {
			continue
		}
		switch r.RiskLevel {
		case GradeHigh:
			rank = max(rank, 2)
		case GradeLow:
		default:
			rank = max(rank, 1)
		}
	}
	return []string{GradeLow, GradeMedium, GradeHigh}[rank]
}

// revenue is the total revenue of the latest year report.
func (c *column) revenue() string {
	if c.financial == nil || len(c.financial.YearReports) == 0 {
		return ""
	}
	latest := c.financial.YearReports[0]
	for _, r := range c.financial.YearReports[1:] {
		if r.ReportYear > latest.ReportYear {
			latest = r
		}
	}
	if latest.TotalRevenue == "" {
		return ""
	}
	return fmt.Sprintf("%s（%s年）", latest.TotalRevenue, latest.ReportYear)
}

func (c *column) highlight(topic enrich.Topic) string {
	if c.enriched == nil {
		return ""
	}
	sentences := c.enriched.Highlights[topic]
	if len(sentences) == 0 {
		return ""
	}
	return truncate(sentences[0], maxCellRunes)
}

func firstN(xs []string, n int) []string {
	if len(xs) > n {
		return xs[:n]
	}
	return xs
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
