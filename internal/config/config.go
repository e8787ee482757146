// Package config loads listingctl settings from YAML.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"token-listing-lab/internal/allocation"
	"token-listing-lab/internal/analysis"
	"token-listing-lab/internal/convergence"
	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/logger"
	"token-listing-lab/internal/pricing"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the root configuration.
type Config struct {
	Logging     logger.Config     `yaml:"logging"`
	Pricing     PricingConfig     `yaml:"pricing"`
	Convergence ConvergenceConfig `yaml:"convergence"`
	Conflicts   ConflictsConfig   `yaml:"conflicts"`
	Allocation  AllocationConfig  `yaml:"allocation"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Storage     StorageConfig     `yaml:"storage"`
	Solana      SolanaConfig      `yaml:"solana"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// PricingConfig holds reference price selection settings.
type PricingConfig struct {
	Method                string         `yaml:"method"`
	MinVolumeQuote        float64        `yaml:"min_volume_quote"`
	MaxDeviationPct       float64        `yaml:"max_deviation_pct"`
	CandidateWindow       time.Duration  `yaml:"candidate_window"`
	PreferStablecoinQuote bool           `yaml:"prefer_stablecoin_quote"`
	Reliability           map[string]int `yaml:"reliability"` // merged over the built-in table
	DefaultReliability    int            `yaml:"default_reliability"`
}

// ConvergenceConfig holds DEX convergence settings.
type ConvergenceConfig struct {
	MaxHours         int     `yaml:"max_hours"`
	MaxSpreadPct     float64 `yaml:"max_spread_pct"`
	MinVenueCount    int     `yaml:"min_venue_count"`
	MinSwapsPerVenue int     `yaml:"min_swaps_per_venue"`
}

// ConflictsConfig holds cross-source conflict settings.
type ConflictsConfig struct {
	ThresholdPct     float64  `yaml:"threshold_pct"`
	TotalMinPct      float64  `yaml:"total_min_pct"`
	TotalMaxPct      float64  `yaml:"total_max_pct"`
	PreferredSources []string `yaml:"preferred_sources"`
}

// AllocationConfig holds label mapping settings.
type AllocationConfig struct {
	RulesPath                      string `yaml:"rules_path"` // empty uses the built-in table
	EstimateCirculatingFromVesting bool   `yaml:"estimate_circulating_from_vesting"`
}

// ProvidersConfig holds data source settings.
type ProvidersConfig struct {
	BundlePath    string        `yaml:"bundle_path"`
	RatePerSecond float64       `yaml:"rate_per_second"` // 0 disables limiting
	Burst         int           `yaml:"burst"`
	CacheTTL      time.Duration `yaml:"cache_ttl"` // 0 disables caching
}

// AnalysisConfig holds run settings.
type AnalysisConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// Storage backends.
const (
	BackendNone       = "none"
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickHouse = "clickhouse"
)

// StorageConfig selects where results are persisted.
type StorageConfig struct {
	Backend       string `yaml:"backend"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
}

// SolanaConfig holds the on-chain supply source settings.
type SolanaConfig struct {
	RPCEndpoint string        `yaml:"rpc_endpoint"` // empty disables the source
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	sel := pricing.DefaultSelectorConfig()
	conv := convergence.DefaultConfig()
	conf := allocation.DefaultConflictConfig()

	preferred := make([]string, len(conf.PreferredSources))
	for i, s := range conf.PreferredSources {
		preferred[i] = string(s)
	}

	return &Config{
		Logging: logger.DefaultConfig(),
		Pricing: PricingConfig{
			Method:                string(domain.MethodEarliestOpen),
			MinVolumeQuote:        sel.MinVolumeQuote,
			MaxDeviationPct:       sel.MaxDeviationPct,
			CandidateWindow:       sel.CandidateWindow,
			PreferStablecoinQuote: sel.PreferStablecoinQuote,
			Reliability:           sel.Reliability,
			DefaultReliability:    sel.DefaultReliability,
		},
		Convergence: ConvergenceConfig{
			MaxHours:         conv.MaxHours,
			MaxSpreadPct:     conv.MaxSpreadPct,
			MinVenueCount:    conv.MinVenueCount,
			MinSwapsPerVenue: conv.MinSwapsPerVenue,
		},
		Conflicts: ConflictsConfig{
			ThresholdPct:     conf.ThresholdPct,
			TotalMinPct:      conf.TotalMinPct,
			TotalMaxPct:      conf.TotalMaxPct,
			PreferredSources: preferred,
		},
		Providers: ProvidersConfig{RatePerSecond: 5, Burst: 5, CacheTTL: 10 * time.Minute},
		Analysis:  AnalysisConfig{Concurrency: analysis.DefaultConfig().Concurrency},
		Storage:   StorageConfig{Backend: BackendMemory},
		Solana:    SolanaConfig{Timeout: 30 * time.Second, MaxRetries: 3},
		Metrics:   MetricsConfig{Addr: ":9090", Path: "/metrics"},
	}
}

// Validate checks value ranges and cross-field constraints.
func (c *Config) Validate() error {
	var problems []string
	bad := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		bad("logging.format %q must be text or json", c.Logging.Format)
	}

	if !domain.PriceSelectionMethod(c.Pricing.Method).IsValid() {
		bad("pricing.method %q is not a known method", c.Pricing.Method)
	}
	if c.Pricing.MinVolumeQuote < 0 {
		bad("pricing.min_volume_quote must not be negative")
	}
	if c.Pricing.MaxDeviationPct <= 0 {
		bad("pricing.max_deviation_pct must be positive")
	}
	for venue, score := range c.Pricing.Reliability {
		if score < 0 || score > 100 {
			bad("pricing.reliability.%s = %d must be within 0..100", venue, score)
		}
	}

	if c.Convergence.MaxHours <= 0 {
		bad("convergence.max_hours must be positive")
	}
	if c.Convergence.MaxSpreadPct <= 0 {
		bad("convergence.max_spread_pct must be positive")
	}
	if c.Convergence.MinVenueCount < 2 {
		bad("convergence.min_venue_count must be at least 2")
	}
	if c.Convergence.MinSwapsPerVenue < 0 {
		bad("convergence.min_swaps_per_venue must not be negative")
	}

	if c.Conflicts.ThresholdPct < 0 {
		bad("conflicts.threshold_pct must not be negative")
	}
	if c.Conflicts.TotalMinPct >= c.Conflicts.TotalMaxPct {
		bad("conflicts.total_min_pct must be below total_max_pct")
	}
	for _, s := range c.Conflicts.PreferredSources {
		if !domain.DataSource(s).IsValid() {
			bad("conflicts.preferred_sources: unknown source %q", s)
		}
	}

	if c.Providers.RatePerSecond < 0 {
		bad("providers.rate_per_second must not be negative")
	}
	if c.Providers.CacheTTL < 0 {
		bad("providers.cache_ttl must not be negative")
	}
	if c.Analysis.Concurrency < 1 {
		bad("analysis.concurrency must be at least 1")
	}

	switch c.Storage.Backend {
	case BackendNone, BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			bad("storage.postgres_dsn is required for the postgres backend")
		}
	case BackendClickHouse:
		if c.Storage.ClickHouseDSN == "" {
			bad("storage.clickhouse_dsn is required for the clickhouse backend")
		}
	default:
		bad("storage.backend %q must be none, memory, postgres or clickhouse", c.Storage.Backend)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// SelectorConfig converts the pricing section.
func (c *Config) SelectorConfig() pricing.SelectorConfig {
	return pricing.SelectorConfig{
		MinVolumeQuote:        c.Pricing.MinVolumeQuote,
		MaxDeviationPct:       c.Pricing.MaxDeviationPct,
		CandidateWindow:       c.Pricing.CandidateWindow,
		PreferStablecoinQuote: c.Pricing.PreferStablecoinQuote,
		Reliability:           lowerKeys(c.Pricing.Reliability),
		DefaultReliability:    c.Pricing.DefaultReliability,
	}
}

// ConvergenceConfig converts the convergence section.
func (c *Config) ConvergenceConfig() convergence.Config {
	return convergence.Config{
		MaxHours:         c.Convergence.MaxHours,
		MaxSpreadPct:     c.Convergence.MaxSpreadPct,
		MinVenueCount:    c.Convergence.MinVenueCount,
		MinSwapsPerVenue: c.Convergence.MinSwapsPerVenue,
	}
}

// ConflictConfig converts the conflicts section.
func (c *Config) ConflictConfig() allocation.ConflictConfig {
	preferred := make([]domain.DataSource, len(c.Conflicts.PreferredSources))
	for i, s := range c.Conflicts.PreferredSources {
		preferred[i] = domain.DataSource(s)
	}
	return allocation.ConflictConfig{
		ThresholdPct:     c.Conflicts.ThresholdPct,
		TotalMinPct:      c.Conflicts.TotalMinPct,
		TotalMaxPct:      c.Conflicts.TotalMaxPct,
		PreferredSources: preferred,
	}
}

// AnalysisConfig converts the analysis-related settings.
func (c *Config) AnalysisConfig() analysis.Config {
	return analysis.Config{
		Method:                         domain.PriceSelectionMethod(c.Pricing.Method),
		EstimateCirculatingFromVesting: c.Allocation.EstimateCirculatingFromVesting,
		Concurrency:                    c.Analysis.Concurrency,
	}
}

func lowerKeys(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}
