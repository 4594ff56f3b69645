// Package config loads sourcer settings from defaults, an optional config
// file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/FranksOps/sourcer/internal/fingerprint"
	"github.com/FranksOps/sourcer/internal/registry"
	"github.com/FranksOps/sourcer/internal/report"
	"github.com/FranksOps/sourcer/internal/search"
)

// EnvPrefix prefixes every environment key: search.api_key is read from
// SOURCER_SEARCH_API_KEY.
const EnvPrefix = "SOURCER"

// Storage backends.
const (
	BackendNone     = "none"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendJSON     = "json"
	BackendCSV      = "csv"
)

type Config struct {
	Log        LogConfig      `mapstructure:"log"`
	Search     SearchConfig   `mapstructure:"search"`
	Registry   RegistryConfig `mapstructure:"registry"`
	Validation ValidateConfig `mapstructure:"validate"`
	Pipeline   PipelineConfig `mapstructure:"pipeline"`
	Enrich     EnrichConfig   `mapstructure:"enrich"`
	Storage    StorageConfig  `mapstructure:"storage"`
	Server     ServerConfig   `mapstructure:"server"`
	Metrics    MetricsConfig  `mapstructure:"metrics"`
	Report     ReportConfig   `mapstructure:"report"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SearchConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Freshness string        `mapstructure:"freshness"`
	// RPS paces search calls; zero is unlimited.
	RPS         float64 `mapstructure:"rps"`
	Fingerprint string  `mapstructure:"fingerprint"`
}

type RegistryConfig struct {
	UseMock bool          `mapstructure:"use_mock"`
	Token   string        `mapstructure:"token"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	RPS     float64       `mapstructure:"rps"`
	// Seed fixes the synthetic registry data. Zero derives one from the clock.
	Seed        uint64        `mapstructure:"seed"`
	MockLatency time.Duration `mapstructure:"mock_latency"`
	// CacheURL is a redis:// URL, "memory" for an in-process cache, or
	// empty to disable caching.
	CacheURL    string        `mapstructure:"cache_url"`
	CachePrefix string        `mapstructure:"cache_prefix"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	// CacheSize bounds the in-process cache.
	CacheSize int `mapstructure:"cache_size"`
}

type ValidateConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type PipelineConfig struct {
	MaxQueries      int  `mapstructure:"max_queries"`
	ResultsPerQuery int  `mapstructure:"results_per_query"`
	MaxSuppliers    int  `mapstructure:"max_suppliers"`
	Concurrency     int  `mapstructure:"concurrency"`
	Enrich          bool `mapstructure:"enrich"`
	// PlannerModel names the model an LLM planner would use. The keyword
	// planner ignores it.
	PlannerModel string `mapstructure:"planner_model"`
}

type EnrichConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	Concurrency   int           `mapstructure:"concurrency"`
	Fingerprint   string        `mapstructure:"fingerprint"`
	RespectRobots bool          `mapstructure:"respect_robots"`
	SkipVerify    bool          `mapstructure:"skip_verify"`
	RPS           float64       `mapstructure:"rps"`
	// SitemapPages caps the contact and about pages taken from a
	// supplier's sitemap; zero disables sitemap lookups.
	SitemapPages int `mapstructure:"sitemap_pages"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	// DSN is a file path for sqlite, json and csv, a connection string for
	// postgres.
	DSN string `mapstructure:"dsn"`
}

type ServerConfig struct {
	Addr       string        `mapstructure:"addr"`
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

type MetricsConfig struct {
	// Port for a standalone metrics listener; zero disables it.
	Port int `mapstructure:"port"`
}

type ReportConfig struct {
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"log.level":  "info",
	"log.format": "text",

	"search.api_key":     "",
	"search.base_url":    search.DefaultBaseURL,
	"search.timeout":     30 * time.Second,
	"search.freshness":   string(search.FreshnessMonth),
	"search.rps":         0.0,
	"search.fingerprint": string(fingerprint.ProfileGo),

	"registry.use_mock":     true,
	"registry.token":        "",
	"registry.base_url":     registry.DefaultBaseURL,
	"registry.timeout":      30 * time.Second,
	"registry.rps":          0.0,
	"registry.seed":         uint64(0),
	"registry.mock_latency": time.Duration(0),
	"registry.cache_url":    "",
	"registry.cache_prefix": "sourcer:registry:",
	"registry.cache_ttl":    registry.DefaultCacheTTL,
	"registry.cache_size":   registry.DefaultMemoryCacheSize,

	"validate.concurrency": 4,

	"pipeline.max_queries":       5,
	"pipeline.results_per_query": 15,
	"pipeline.max_suppliers":     10,
	"pipeline.concurrency":       3,
	"pipeline.enrich":            false,
	"pipeline.planner_model":     "",

	"enrich.timeout":        15 * time.Second,
	"enrich.concurrency":    4,
	"enrich.fingerprint":    string(fingerprint.ProfileChrome),
	"enrich.respect_robots": true,
	"enrich.skip_verify":    false,
	"enrich.rps":            2.0,
	"enrich.sitemap_pages":  2,

	"storage.backend": BackendNone,
	"storage.dsn":     "",

	"server.addr":        ":8080",
	"server.run_timeout": 5 * time.Minute,

	"metrics.port": 0,

	"report.format": string(report.FormatMarkdown),
}

// legacyEnv binds the variable names used by earlier deployments.
var legacyEnv = map[string]string{
	"search.api_key":         "BOCHA_API_KEY",
	"search.base_url":        "BOCHA_BASE_URL",
	"registry.use_mock":      "TIANYANCHA_USE_MOCK",
	"registry.token":         "TIANYANCHA_API_TOKEN",
	"pipeline.planner_model": "BEDROCK_MODEL_ID",
}

// New returns a viper instance with defaults and environment bindings
// installed. Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, legacy)
	}
	return v
}

// LoadDotEnv loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// Load reads the optional config file into v and decodes the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enum values and ranges.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if _, err := search.ParseFreshness(c.Search.Freshness); err != nil {
		errs = append(errs, err)
	}
	if _, err := fingerprint.ParseProfile(c.Search.Fingerprint); err != nil {
		errs = append(errs, fmt.Errorf("search.fingerprint: %w", err))
	}
	if _, err := fingerprint.ParseProfile(c.Enrich.Fingerprint); err != nil {
		errs = append(errs, fmt.Errorf("enrich.fingerprint: %w", err))
	}
	if _, err := report.ParseFormat(c.Report.Format); err != nil {
		errs = append(errs, err)
	}

	positive := map[string]int{
		"validate.concurrency":       c.Validation.Concurrency,
		"pipeline.max_queries":       c.Pipeline.MaxQueries,
		"pipeline.results_per_query": c.Pipeline.ResultsPerQuery,
		"pipeline.max_suppliers":     c.Pipeline.MaxSuppliers,
		"pipeline.concurrency":       c.Pipeline.Concurrency,
		"enrich.concurrency":         c.Enrich.Concurrency,
	}
	for _, key := range slices.Sorted(maps.Keys(positive)) {
		if positive[key] < 1 {
			errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", key, positive[key]))
		}
	}
	if c.Pipeline.ResultsPerQuery > search.MaxCount {
		errs = append(errs, fmt.Errorf("pipeline.results_per_query must be at most %d, got %d", search.MaxCount, c.Pipeline.ResultsPerQuery))
	}
	if c.Search.RPS < 0 || c.Registry.RPS < 0 || c.Enrich.RPS < 0 {
		errs = append(errs, errors.New("rps values must not be negative"))
	}
	if c.Registry.CacheSize < 1 {
		errs = append(errs, fmt.Errorf("registry.cache_size must be at least 1, got %d", c.Registry.CacheSize))
	}
	// Unseeded synthetic data changes every start and must not outlive the
	// process in a shared cache.
	if c.Registry.UseMock && c.Registry.Seed == 0 && c.Registry.CacheURL != "" && c.Registry.CacheURL != "memory" {
		errs = append(errs, errors.New("registry.cache_url: a shared cache needs registry.seed when use_mock is on"))
	}
	if c.Enrich.SitemapPages < 0 {
		errs = append(errs, fmt.Errorf("enrich.sitemap_pages must not be negative, got %d", c.Enrich.SitemapPages))
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		errs = append(errs, fmt.Errorf("metrics.port out of range: %d", c.Metrics.Port))
	}

	switch c.Storage.Backend {
	case BackendNone, "":
	case BackendSQLite, BackendPostgres, BackendJSON, BackendCSV:
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for the %s backend", c.Storage.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// SlogLevel maps the configured level name onto slog.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log.level %q", l.Level)
	}
}

// Logger builds a text or JSON slog logger writing to w.
func (l LogConfig) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := l.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

