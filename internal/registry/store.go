package registry

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Company is the basic registration record of a company.
type Company struct {
	Name            string `json:"name"`
	Type            string `json:"type"`
	RegStatus       string `json:"regStatus"`
	EstablishTime   string `json:"establishTime"`
	RegCapital      string `json:"regCapital"`
	ActualCapital   string `json:"actualCapital"`
	LegalPersonName string `json:"legalPersonName"`
	RegNumber       string `json:"regNumber"`
	CreditCode      string `json:"creditCode"`
	OrgNumber       string `json:"orgNumber"`
	TaxNumber       string `json:"taxNumber"`
	BusinessScope   string `json:"businessScope"`
	RegLocation     string `json:"regLocation"`
	Industry        string `json:"industry"`
	ApprovedTime    string `json:"approvedTime"`
	FromTime        string `json:"fromTime"`
	ToTime          string `json:"toTime"`
	StaffNumRange   string `json:"staffNumRange"`
	CompanyID       string `json:"companyId"`
}

// Risk is one published risk event.
type Risk struct {
	RiskType    string  `json:"riskType"`
	RiskLevel   string  `json:"riskLevel"`
	RiskContent string  `json:"riskContent"`
	PublishTime string  `json:"publishTime"`
	RiskAmount  *string `json:"riskAmount"`
}

// RiskList is the payload of a risk lookup.
type RiskList struct {
	Total    int    `json:"total"`
	RiskList []Risk `json:"riskList"`
}

// YearReport holds one year of financial figures, formatted as the registry
// renders them (万元 amounts, percentage ratios).
type YearReport struct {
	ReportYear       string `json:"reportYear"`
	TotalRevenue     string `json:"totalRevenue"`
	NetProfit        string `json:"netProfit"`
	TotalAssets      string `json:"totalAssets"`
	TotalLiabilities string `json:"totalLiabilities"`
	OwnerEquity      string `json:"ownerEquity"`
	CashFlow         string `json:"cashFlow"`
	GrowthRate       string `json:"growthRate"`
	DebtRatio        string `json:"debtRatio"`
	ROE              string `json:"roe"`
}

// Financials is the payload of a financial lookup.
type Financials struct {
	YearReports []YearReport `json:"yearReports"`
}

type Trademark struct {
	TrademarkName   string `json:"trademarkName"`
	TrademarkNumber string `json:"trademarkNumber"`
	ClassNumber     string `json:"classNumber"`
	Status          string `json:"status"`
	ApplyDate       string `json:"applyDate"`
	ValidDate       string `json:"validDate"`
}

type Patent struct {
	PatentName    string  `json:"patentName"`
	PatentNumber  string  `json:"patentNumber"`
	PatentType    string  `json:"patentType"`
	Status        string  `json:"status"`
	ApplyDate     string  `json:"applyDate"`
	AuthorizeDate *string `json:"authorizeDate"`
}

type SoftwareCopyright struct {
	SoftwareName          string `json:"softwareName"`
	RegistrationNumber    string `json:"registrationNumber"`
	DevelopCompletionDate string `json:"developCompletionDate"`
	RegistrationDate      string `json:"registrationDate"`
}

type Copyright struct {
	WorkName           string `json:"workName"`
	RegistrationNumber string `json:"registrationNumber"`
}

type Website struct {
	Domain       string `json:"domain"`
	RecordNumber string `json:"recordNumber"`
}

// IntellectualProperty is the payload of an IP lookup.
type IntellectualProperty struct {
	Trademark         []Trademark         `json:"trademark"`
	Patent            []Patent            `json:"patent"`
	Copyright         []Copyright         `json:"copyright"`
	SoftwareCopyright []SoftwareCopyright `json:"softwareCopyright"`
	Website           []Website           `json:"website"`
}

type template struct {
	name     string
	scope    string
	industry string
	// fill returns the name arguments for a drawn city and province.
	fill func(g *generator, city, province string) []any
}

const industryLogistics = "交通运输、仓储和邮政业"

var templates = []template{
	{"%s%s物流有限公司", "仓储服务（不含危险化学品）;货物配送;供应链管理服务;物流信息咨询服务", industryLogistics,
		func(g *generator, city, _ string) []any { return []any{city, g.pick(warehouses)} }},
	{"%s%s仓储服务有限公司", "仓储服务;货物运输;快递服务;供应链管理;冷链物流服务", industryLogistics,
		func(g *generator, _, province string) []any { return []any{province, g.pick(brands)} }},
	{"%s智慧物流园管理有限公司", "物流园区管理;仓储服务;货物配送;物流信息平台运营;智能仓储系统开发", industryLogistics,
		func(_ *generator, city, _ string) []any { return []any{city} }},
	{"%s现代物流集团有限公司", "现代物流服务;仓储管理;运输代理;供应链金融服务;物流装备租赁", industryLogistics,
		func(_ *generator, _, province string) []any { return []any{province} }},
	{"%s云仓科技有限公司", "云仓储服务;智能物流技术开发;仓储管理软件开发;电商仓储服务;代发货服务", "软件和信息技术服务业",
		func(_ *generator, city, _ string) []any { return []any{city} }},
}

var (
	cities       = []string{"深圳", "上海", "北京", "广州", "杭州", "成都", "重庆", "西安", "南京", "武汉"}
	provinces    = []string{"广东省", "浙江省", "江苏省", "山东省", "河南省", "湖北省", "四川省", "福建省"}
	warehouses   = []string{"中部云仓", "速达云仓", "智通云仓", "安捷云仓", "现代云仓"}
	brands       = []string{"顺丰", "中通", "申通", "圆通", "韵达", "德邦", "京东", "菜鸟"}
	legalPersons = []string{"张建华", "李明强", "王海涛", "陈国强", "刘晓敏", "赵志强", "孙美丽", "周天宇"}
	capitals     = []int{100, 200, 500, 800, 1000, 2000, 5000}
	staffRanges  = []string{"1-9人", "10-49人", "50-99人", "100-499人", "500-999人", "1000-4999人"}
	districts    = []string{"高新区", "经开区", "新区"}

	riskTypes      = []string{"经营异常", "行政处罚", "股权出质", "动产抵押", "欠税公告", "司法拍卖", "失信信息", "限制高消费", "终本案件", "被执行人"}
	riskLevels     = []string{"低", "中", "高"}
	riskContents   = []string{"合同纠纷", "欠款纠纷", "劳动争议", "行政违规"}
	reportYears    = []string{"2023", "2022", "2021"}
	tmClasses      = []string{"35类-广告销售", "39类-运输贮藏", "42类-科技服务"}
	tmStatuses     = []string{"已注册", "申请中", "已驳回"}
	patentTypes    = []string{"发明专利", "实用新型专利", "外观设计专利"}
	patentStatuses = []string{"已授权", "实审中", "已公开"}
	patentAdjs     = []string{"智能", "自动化", "高效"}
	logisticsNouns = []string{"仓储", "物流", "配送"}
)

const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

type entry struct {
	company    Company
	risks      []Risk
	financials Financials
	ip         IntellectualProperty
}

// Store is an immutable snapshot of synthetic registry data. It is safe for
// concurrent use.
type Store struct {
	entries []entry
}

// NewStore generates one company per template together with its risks,
// financial reports and IP records. Dates are relative to now. The same
// source and clock always produce the same store.
func NewStore(rng *rand.Rand, now time.Time) *Store {
	g := &generator{rng: rng, now: now}
	s := &Store{entries: make([]entry, 0, len(templates))}
	for i, t := range templates {
		s.entries = append(s.entries, entry{
			company:    g.company(i+1, t),
			risks:      g.risks(),
			financials: g.financials(),
			ip:         g.intellectualProperty(),
		})
	}
	return s
}

// NewSeededStore builds a reproducible store from seed.
func NewSeededStore(seed uint64, now time.Time) *Store {
	return NewStore(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), now)
}

// Companies returns the stored basic records in company ID order.
func (s *Store) Companies() []Company {
	out := make([]Company, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.company
	}
	return out
}

// Find resolves name to a stored entry. An exact match wins; otherwise name
// must be a substring of exactly one stored company name.
func (s *Store) Find(name string) (Company, error) {
	e, err := s.find(name)
	if err != nil {
		return Company{}, err
	}
	return e.company, nil
}

func (s *Store) find(name string) (*entry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrCompanyNotFound
	}
	for i := range s.entries {
		if s.entries[i].company.Name == name {
			return &s.entries[i], nil
		}
	}

	var matches []int
	for i := range s.entries {
		if strings.Contains(s.entries[i].company.Name, name) {
			matches = append(matches, i)
		}
	}
	switch len(matches) {
	case 0:
		return nil, ErrCompanyNotFound
	case 1:
		return &s.entries[matches[0]], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = s.entries[m].company.Name
		}
		return nil, fmt.Errorf("%w: %q matches %s", ErrAmbiguousName, name, strings.Join(names, ", "))
	}
}

type generator struct {
	rng *rand.Rand
	now time.Time
}

func (g *generator) pick(xs []string) string { return xs[g.rng.IntN(len(xs))] }

// between returns an int in [lo, hi].
func (g *generator) between(lo, hi int) int { return lo + g.rng.IntN(hi-lo+1) }

func (g *generator) uniform(lo, hi float64) float64 { return lo + g.rng.Float64()*(hi-lo) }

func (g *generator) coin() bool { return g.rng.IntN(2) == 0 }

func (g *generator) letters(n int) string {
	var b strings.Builder
	for range n {
		b.WriteByte(letters[g.rng.IntN(len(letters))])
	}
	return b.String()
}

func (g *generator) daysAgo(lo, hi int) string {
	return g.now.AddDate(0, 0, -g.between(lo, hi)).Format(dateLayout)
}

func (g *generator) daysAhead(lo, hi int) string {
	return g.now.AddDate(0, 0, g.between(lo, hi)).Format(dateLayout)
}

func (g *generator) company(i int, t template) Company {
	city := g.pick(cities)
	province := g.pick(provinces)

	name := fmt.Sprintf(t.name, t.fill(g, city, province)...)

	reg := capitals[g.rng.IntN(len(capitals))]
	actual := int(float64(reg) * g.uniform(0.8, 1.0))

	established := time.Date(g.between(2012, 2024), time.Month(g.between(1, 12)), g.between(1, 28), 0, 0, 0, 0, time.UTC)
	est := established.Format(dateLayout)
	marker := string(rune('A' + i))

	return Company{
		Name:            name,
		Type:            "有限责任公司",
		RegStatus:       "存续",
		EstablishTime:   est,
		RegCapital:      fmt.Sprintf("%d万人民币", reg),
		ActualCapital:   fmt.Sprintf("%d万人民币", actual),
		LegalPersonName: g.pick(legalPersons),
		RegNumber:       fmt.Sprintf("420%d%d", g.between(100, 999), g.between(100000, 999999)),
		CreditCode:      fmt.Sprintf("914201%dMA4%s%s%d", g.between(10, 99), marker, g.letters(3), g.between(10, 99)),
		OrgNumber:       fmt.Sprintf("MA4%s%s-%d", marker, g.letters(3), i),
		TaxNumber:       fmt.Sprintf("914201%dMA4%s%s%d", g.between(10, 99), marker, g.letters(3), g.between(10, 99)),
		BusinessScope:   t.scope,
		RegLocation:     fmt.Sprintf("%s市%s", city, g.pick(districts)),
		Industry:        t.industry,
		ApprovedTime:    est,
		FromTime:        est,
		ToTime:          established.AddDate(30, 0, -1).Format(dateLayout),
		StaffNumRange:   g.pick(staffRanges),
		CompanyID:       fmt.Sprintf("company_%03d", i),
	}
}

func (g *generator) risks() []Risk {
	n := g.between(0, 3)
	out := make([]Risk, 0, n)
	for range n {
		r := Risk{
			RiskType:    g.pick(riskTypes),
			RiskLevel:   g.pick(riskLevels),
			RiskContent: "模拟风险内容 - " + g.pick(riskContents),
			PublishTime: g.daysAgo(1, 365),
		}
		if g.coin() {
			amount := fmt.Sprintf("%d万元", g.between(1, 100))
			r.RiskAmount = &amount
		}
		out = append(out, r)
	}
	return out
}

func (g *generator) financials() Financials {
	reports := make([]YearReport, 0, len(reportYears))
	for _, year := range reportYears {
		base := g.between(1000, 10000)
		growth := g.uniform(-0.2, 0.3)
		scaled := func(lo, hi float64) string {
			return fmt.Sprintf("%d万元", int(float64(base)*g.uniform(lo, hi)))
		}
		reports = append(reports, YearReport{
			ReportYear:       year,
			TotalRevenue:     fmt.Sprintf("%d万元", base),
			NetProfit:        scaled(0.05, 0.2),
			TotalAssets:      scaled(1.5, 3.0),
			TotalLiabilities: scaled(0.8, 1.8),
			OwnerEquity:      scaled(0.7, 1.2),
			CashFlow:         scaled(0.1, 0.4),
			GrowthRate:       fmt.Sprintf("%.1f%%", growth*100),
			DebtRatio:        fmt.Sprintf("%.1f%%", g.uniform(0.3, 0.7)*100),
			ROE:              fmt.Sprintf("%.1f%%", g.uniform(0.05, 0.25)*100),
		})
	}
	return Financials{YearReports: reports}
}

func (g *generator) intellectualProperty() IntellectualProperty {
	ip := IntellectualProperty{
		Trademark:         []Trademark{},
		Patent:            []Patent{},
		Copyright:         []Copyright{},
		SoftwareCopyright: []SoftwareCopyright{},
		Website:           []Website{},
	}

	for j := range g.between(0, 5) {
		ip.Trademark = append(ip.Trademark, Trademark{
			TrademarkName:   fmt.Sprintf("商标%d", j+1),
			TrademarkNumber: fmt.Sprintf("TM%d", g.between(10000000, 99999999)),
			ClassNumber:     g.pick(tmClasses),
			Status:          g.pick(tmStatuses),
			ApplyDate:       g.daysAgo(365, 1095),
			ValidDate:       g.daysAhead(365, 3650),
		})
	}

	for range g.between(0, 8) {
		p := Patent{
			PatentName:   fmt.Sprintf("一种%s%s方法", g.pick(patentAdjs), g.pick(logisticsNouns)),
			PatentNumber: fmt.Sprintf("CN%d", g.between(100000000, 999999999)),
			PatentType:   g.pick(patentTypes),
			Status:       g.pick(patentStatuses),
			ApplyDate:    g.daysAgo(365, 1460),
		}
		if g.coin() {
			d := g.daysAgo(1, 365)
			p.AuthorizeDate = &d
		}
		ip.Patent = append(ip.Patent, p)
	}

	for j := range g.between(0, 3) {
		ip.SoftwareCopyright = append(ip.SoftwareCopyright, SoftwareCopyright{
			SoftwareName:          fmt.Sprintf("%s管理系统V%d.0", g.pick(logisticsNouns), j+1),
			RegistrationNumber:    fmt.Sprintf("2023SR%d", g.between(100000, 999999)),
			DevelopCompletionDate: g.daysAgo(90, 730),
			RegistrationDate:      g.daysAgo(1, 365),
		})
	}
	return ip
}
