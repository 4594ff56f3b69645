package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/sourcer/internal/enrich"
	"github.com/FranksOps/sourcer/internal/registry"
	"github.com/FranksOps/sourcer/internal/storage"
	"github.com/FranksOps/sourcer/internal/supplier"
	"github.com/FranksOps/sourcer/internal/validate"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func okRecord(t *testing.T, v any) registry.Record {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return registry.Record{Status: registry.StatusOK, Payload: b}
}

func fixture(t *testing.T) ([]supplier.Candidate, []validate.Profile, []enrich.Profile) {
	t.Helper()
	cands := []supplier.Candidate{
		{CompanyName: "武汉中部云仓物流有限公司", SourceURL: "https://a.example"},
		{CompanyName: "武汉某某仓储有限公司", SourceURL: "https://b.example"},
	}
	profiles := []validate.Profile{
		{
			CompanyName: "武汉中部云仓物流有限公司",
			BasicInfo: okRecord(t, registry.Company{
				Name:          "武汉中部云仓物流有限公司",
				RegCapital:    "1000万人民币",
				EstablishTime: "2018-06-16",
				StaffNumRange: "100-499人",
			}),
			RiskInfo: okRecord(t, registry.RiskList{Total: 3, RiskList: []registry.Risk{
				{RiskType: "欠税公告", RiskLevel: "中"},
				{RiskType: "被执行人", RiskLevel: "高"},
				{RiskType: "经营异常", RiskLevel: "低"},
			}}),
			FinancialData: okRecord(t, registry.Financials{YearReports: []registry.YearReport{
				{ReportYear: "2022", TotalRevenue: "3000万元"},
				{ReportYear: "2023", TotalRevenue: "4200万元"},
			}}),
			ValidationStatus: validate.StatusCompleted,
		},
		{
			CompanyName:      "武汉某某仓储有限公司",
			BasicInfo:        registry.Record{Status: registry.StatusNotFound, ErrorReason: "查无结果"},
			RiskInfo:         registry.Record{Status: registry.StatusNotFound, ErrorReason: "查无结果"},
			ValidationStatus: validate.StatusFailed,
		},
	}
	enrichments := []enrich.Profile{
		{
			CompanyName: "武汉中部云仓物流有限公司",
			Outcome:     enrich.OutcomeOK,
			Contacts:    enrich.Contacts{Phones: []string{"027-88886666", "13812345678", "400-800-1234"}, Emails: []string{"bd@zbyc.com"}},
			Highlights: map[enrich.Topic][]string{
				enrich.TopicFireSafety: {"通过丙二类消防验收。"},
			},
		},
	}
	return cands, profiles, enrichments
}

func TestBuild(t *testing.T) {
	cands, profiles, enrichments := fixture(t)
	table := Build("寻找武汉地区的云仓储物流服务商", cands, profiles, enrichments, now)

	if len(table.Rows) != len(Indicators) {
		t.Fatalf("expected %d rows, got %d", len(Indicators), len(table.Rows))
	}
	if table.Headers[0] != "指标" || len(table.Suppliers()) != 2 || table.Suppliers()[0] != cands[0].CompanyName {
		t.Errorf("unexpected headers %v", table.Headers)
	}
	if !strings.Contains(table.Title, "供应商对比表") {
		t.Errorf("unexpected title %q", table.Title)
	}

	a := cands[0].CompanyName
	cases := map[string]string{
		RowRegCapital:    "1000万人民币",
		RowAge:           "6年",
		RowScale:         "100-499人",
		RowContact:       "027-88886666 / 13812345678 / bd@zbyc.com",
		RowPrice:         Unknown,
		RowFinancialRisk: GradeMedium,
		RowLitigation:    GradeHigh,
		RowRevenue:       "4200万元（2023年）",
		RowFireSafety:    "通过丙二类消防验收。",
		RowArea:          Unknown,
	}
	for indicator, want := range cases {
		if got := table.Cell(indicator, a); got != want {
			t.Errorf("%s = %q, want %q", indicator, got, want)
		}
	}

	b := cands[1].CompanyName
	for _, indicator := range Indicators {
		if got := table.Cell(indicator, b); got != Unknown {
			t.Errorf("%s for unvalidated supplier = %q, want %q", indicator, got, Unknown)
		}
	}
}

func TestBuild_RiskGradeLowWhenNoMatchingRisks(t *testing.T) {
	profiles := []validate.Profile{{
		CompanyName: "甲有限公司",
		RiskInfo:    okRecord(t, registry.RiskList{Total: 0, RiskList: []registry.Risk{}}),
	}}
	table := Build("", nil, profiles, nil, now)
	if got := table.Cell(RowFinancialRisk, "甲有限公司"); got != GradeLow {
		t.Errorf("financial risk = %q, want %q", got, GradeLow)
	}
	if got := table.Cell(RowLitigation, "甲有限公司"); got != GradeLow {
		t.Errorf("litigation risk = %q, want %q", got, GradeLow)
	}
	if table.Title != "供应商对比表" {
		t.Errorf("unexpected title %q", table.Title)
	}
}

func TestCompanyAge(t *testing.T) {
	cases := map[string]string{
		"2018-06-15": "7年",
		"2018-06-16": "6年",
		"2025-01-01": "不足1年",
		"2030-01-01": "",
		"bad":        "",
	}
	for in, want := range cases {
		if got := companyAge(in, now); got != want {
			t.Errorf("companyAge(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWriters(t *testing.T) {
	cands, profiles, enrichments := fixture(t)
	table := Build("武汉云仓", cands, profiles, enrichments, now)

	var md bytes.Buffer
	if err := WriteMarkdown(&md, table); err != nil {
		t.Fatalf("markdown: %v", err)
	}
	if !strings.HasPrefix(md.String(), "## 武汉云仓 供应商对比表") || !strings.Contains(md.String(), "| 注册资本 |") {
		t.Errorf("unexpected markdown:\n%s", md.String())
	}

	var text bytes.Buffer
	if err := WriteText(&text, table); err != nil {
		t.Fatalf("text: %v", err)
	}
	if !strings.Contains(text.String(), "1000万人民币") {
		t.Errorf("text table missing cell:\n%s", text.String())
	}

	var html bytes.Buffer
	if err := Write(&html, table, FormatHTML); err != nil {
		t.Fatalf("html: %v", err)
	}
	if !strings.Contains(html.String(), "<title>武汉云仓 供应商对比表</title>") || !strings.Contains(html.String(), `class="unknown"`) {
		t.Errorf("unexpected html:\n%s", html.String())
	}

	var js bytes.Buffer
	if err := Write(&js, table, FormatJSON); err != nil {
		t.Fatalf("json: %v", err)
	}
	var decoded Table
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Cell(RowRegCapital, cands[0].CompanyName) != "1000万人民币" {
		t.Errorf("json table lost cells")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatMarkdown {
		t.Errorf("empty format = %q, %v", f, err)
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Errorf("expected error for unknown format")
	}
}

func TestGenerateSummary(t *testing.T) {
	records := []*storage.Record{
		{RunID: "r1", Kind: storage.KindSearch, Status: "success", Duration: time.Second, CreatedAt: now},
		{RunID: "r1", Kind: storage.KindValidate, Status: "completed", Duration: 2 * time.Second, CreatedAt: now.Add(time.Second)},
		{RunID: "r2", Kind: storage.KindValidate, Status: "error", CreatedAt: now.Add(2 * time.Second), Error: "registry: api token is required"},
	}

	summary := GenerateSummary(records)

	if summary.TotalRecords != 3 || summary.TotalErrors != 1 || summary.Runs != 2 {
		t.Errorf("unexpected totals %+v", summary)
	}
	if summary.ByKind[storage.KindValidate] != 2 || summary.ByStatus["completed"] != 1 {
		t.Errorf("unexpected breakdown %+v", summary)
	}
	if summary.TotalDuration != 3*time.Second || summary.Duration != 2*time.Second {
		t.Errorf("unexpected durations %v %v", summary.TotalDuration, summary.Duration)
	}

	empty := GenerateSummary(nil)
	if empty.TotalRecords != 0 || empty.ByKind == nil {
		t.Errorf("unexpected empty summary %+v", empty)
	}
}

func TestWriteSummaryText(t *testing.T) {
	summary := Summary{
		TotalRecords: 5,
		TotalErrors:  1,
		ByStatus:     map[string]int{"completed": 4, "error": 1},
	}
	var buf bytes.Buffer
	if err := WriteSummaryText(&buf, summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Records:       5") {
		t.Errorf("expected text to contain record count:\n%s", out)
	}
	if !strings.Contains(out, "completed: 4") {
		t.Errorf("expected text to contain completed: 4")
	}
}
