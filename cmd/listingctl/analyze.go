package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"token-listing-lab/internal/allocation"
	"token-listing-lab/internal/analysis"
	"token-listing-lab/internal/config"
	"token-listing-lab/internal/convergence"
	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/pricing"
	"token-listing-lab/internal/provider"
	"token-listing-lab/internal/reporting"
	"token-listing-lab/internal/solana"
	"token-listing-lab/internal/storage"
	"token-listing-lab/internal/valuation"
)

// Output formats.
const (
	formatMarkdown = "md"
	formatJSON     = "json"
	formatCSV      = "csv"
	formatAudit    = "audit"
)

// Allocation sources replayed from storage with --from-store.
var replaySources = []domain.DataSource{
	domain.SourceCryptoRank,
	domain.SourceDropstab,
	domain.SourceMessari,
	domain.SourceCoinGecko,
	domain.SourceManual,
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "analyze one or more tokens",
		ArgsUsage: "<token id|symbol|mint>...",
		Flags: []cli.Flag{
			configFlag(),
			outputFlag(),
			&cli.BoolFlag{Name: "fixtures", Usage: "use the built-in demo bundle"},
			&cli.StringFlag{Name: "bundle", Usage: "YAML or JSON bundle file (overrides providers.bundle_path)"},
			&cli.BoolFlag{Name: "all", Usage: "analyze every token in the bundle"},
			&cli.StringFlag{Name: "method", Usage: "price selection method (earliest_open, earliest_close, first_hour_vwap, first_day_vwap)"},
			&cli.FloatFlag{Name: "manual-price", Usage: "analyst-provided listing price in USD"},
			&cli.FloatFlag{Name: "circulating", Usage: "analyst-provided circulating supply at listing"},
			&cli.FloatFlag{Name: "total-supply", Usage: "analyst-provided total supply"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: formatMarkdown, Usage: "md, json, csv or audit"},
			&cli.BoolFlag{Name: "store", Usage: "persist results to the configured storage backend"},
			&cli.BoolFlag{Name: "from-store", Usage: "read hourly prices and allocations from storage"},
			&cli.BoolFlag{Name: "migrate", Usage: "run schema migrations before using storage"},
		},
		Action: runAnalyze,
	}
}

func runAnalyze(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	switch format {
	case formatMarkdown, formatJSON, formatCSV, formatAudit:
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	if m := cmd.String("method"); m != "" {
		if !domain.PriceSelectionMethod(m).IsValid() {
			return fmt.Errorf("%w: %s", analysis.ErrInvalidMethod, m)
		}
		cfg.Pricing.Method = m
	}
	if p := cmd.String("bundle"); p != "" {
		cfg.Providers.BundlePath = p
	}

	var b *backend
	if cmd.Bool("store") || cmd.Bool("from-store") {
		b, err = openStores(ctx, cfg.Storage, cmd.Bool("migrate"), log)
		if err != nil {
			return err
		}
		defer b.Close()
		if !b.Enabled() {
			return errors.New("--store and --from-store need a storage backend")
		}
	}

	bundle, err := loadBundle(cmd, cfg)
	if err != nil {
		return err
	}

	ids := cmd.Args().Slice()
	if cmd.Bool("all") {
		if bundle == nil {
			return errors.New("--all needs --fixtures or a bundle")
		}
		for _, t := range bundle.Tokens() {
			ids = append(ids, t.ID)
		}
	}
	if len(ids) == 0 {
		return errors.New("analyze: at least one token is required (or --all)")
	}

	overrides, err := overridesFrom(cmd, len(ids))
	if err != nil {
		return err
	}

	set, resolver := buildSources(cfg, bundle, b, cmd.Bool("from-store"), log)
	if set.Listings == nil && set.Supply == nil && set.Hourly == nil && len(set.Allocations) == 0 {
		return errors.New("no data sources: use --fixtures, --bundle, --from-store or solana.rpc_endpoint")
	}

	analyzer, err := newAnalyzer(cfg, log)
	if err != nil {
		return err
	}
	gatherer := analysis.NewGatherer(set, resolver, analysis.WithLogger(log))

	results, err := analyzer.GatherAndAnalyze(ctx, gatherer, ids, overrides)
	if err != nil {
		return err
	}

	if cmd.Bool("store") {
		for _, r := range results {
			if r.Err != nil || r.Result == nil {
				continue
			}
			run := storage.Run{Result: r.Result}
			if r.Inputs != nil {
				run.Allocations = r.Inputs.Allocations
				run.HourlyPrices = r.Inputs.HourlyPrices
			}
			if err := b.Save(ctx, run); err != nil {
				return fmt.Errorf("store %s: %w", r.Token, err)
			}
			log.WithFields(logrus.Fields{"token": r.Token, "analysis_id": r.Result.AnalysisID}).Info("analysis stored")
		}
	}

	out, err := render(format, results)
	if err != nil {
		return err
	}
	if err := emit(cmd, out); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			log.WithError(r.Err).WithField("token", r.Token).Error("analysis failed")
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d analyses failed", failed, len(results))
	}
	return nil
}

func loadBundle(cmd *cli.Command, cfg *config.Config) (*provider.Bundle, error) {
	switch {
	case cmd.Bool("fixtures"):
		return provider.DemoBundle(), nil
	case cfg.Providers.BundlePath != "":
		return provider.LoadBundle(cfg.Providers.BundlePath)
	}
	return nil, nil
}

// buildSources assembles the provider set: the bundle first, on-chain
// supply ahead of bundle supply when an RPC endpoint is configured, and
// stored rows when replaying. Every source is rate limited and cached.
func buildSources(cfg *config.Config, bundle *provider.Bundle, b *backend, fromStore bool, log logrus.FieldLogger) (provider.Set, provider.TokenResolver) {
	var set provider.Set
	var bundleResolver provider.TokenResolver
	var bundleSupply provider.SupplySource
	if bundle != nil {
		set = provider.Set{
			Listings:    bundle,
			Fallback:    bundle,
			Hourly:      bundle,
			Fundraising: bundle,
			Allocations: []provider.AllocationSource{bundle},
		}
		bundleResolver = bundle
		bundleSupply = bundle
	}

	var chainResolver provider.TokenResolver
	var chainSupply provider.SupplySource
	if cfg.Solana.RPCEndpoint != "" {
		rpc := solana.NewHTTPClient(cfg.Solana.RPCEndpoint,
			solana.WithTimeout(cfg.Solana.Timeout),
			solana.WithMaxRetries(cfg.Solana.MaxRetries),
			solana.WithLogger(log),
		)
		chain := solana.NewChainSource(rpc, log)
		chainResolver = chain
		chainSupply = chain
	}
	set.Supply = provider.FirstSupply(chainSupply, bundleSupply)

	if fromStore && b != nil {
		if b.HourlyPrices != nil {
			set.Hourly = storage.NewHourlyPriceSource(b.HourlyPrices, domain.SourceFlipside)
		}
		if b.Allocations != nil {
			set.Allocations = nil
			for _, src := range replaySources {
				set.Allocations = append(set.Allocations, storage.NewAllocationSource(b.Allocations, src))
			}
		}
	}

	limiter := provider.NewLimiter(cfg.Providers.RatePerSecond, cfg.Providers.Burst)
	set = provider.Limited(set, limiter)
	if cfg.Providers.CacheTTL > 0 {
		set = provider.Cached(set, cfg.Providers.CacheTTL, nil)
	}

	return set, provider.FirstResolver(bundleResolver, chainResolver)
}

func newAnalyzer(cfg *config.Config, log logrus.FieldLogger) (*analysis.Analyzer, error) {
	var rules *allocation.RuleSet
	if path := cfg.Allocation.RulesPath; path != "" {
		rs, err := allocation.LoadRuleSet(path, log)
		if err != nil {
			return nil, fmt.Errorf("load allocation rules: %w", err)
		}
		rules = rs
	}

	return analysis.NewAnalyzer(cfg.AnalysisConfig(), analysis.Components{
		Selector:   pricing.NewSelector(cfg.SelectorConfig(), pricing.WithLogger(log)),
		Detector:   convergence.NewDetector(cfg.ConvergenceConfig(), log),
		Mapper:     allocation.NewMapper(rules, allocation.WithLogger(log)),
		Conflicts:  allocation.NewConflictDetector(cfg.ConflictConfig(), log),
		Calculator: valuation.NewCalculator(log),
	}, analysis.WithLogger(log)), nil
}

// overridesFrom returns the analyst overrides. They describe one token, so
// they are rejected for batches.
func overridesFrom(cmd *cli.Command, tokens int) (func(*analysis.Inputs), error) {
	var price, circ, total *float64
	if cmd.IsSet("manual-price") {
		v := cmd.Float("manual-price")
		price = &v
	}
	if cmd.IsSet("circulating") {
		v := cmd.Float("circulating")
		circ = &v
	}
	if cmd.IsSet("total-supply") {
		v := cmd.Float("total-supply")
		total = &v
	}
	if price == nil && circ == nil && total == nil {
		return nil, nil
	}
	if tokens > 1 {
		return nil, errors.New("--manual-price, --circulating and --total-supply apply to a single token")
	}
	return func(in *analysis.Inputs) {
		in.ManualPrice = price
		in.Override = valuation.Override{CirculatingAtListing: circ, TotalSupply: total}
	}, nil
}

type batchEntry struct {
	Token  string                `json:"token"`
	Result *domain.ListingResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

func render(format string, results []analysis.BatchResult) (string, error) {
	gen := reporting.NewGenerator(nil)

	switch format {
	case formatJSON:
		var v any
		if len(results) == 1 && results[0].Err == nil {
			v = results[0].Result
		} else {
			entries := make([]batchEntry, len(results))
			for i, r := range results {
				entries[i] = batchEntry{Token: r.Token, Result: r.Result}
				if r.Err != nil {
					entries[i].Error = r.Err.Error()
				}
			}
			v = entries
		}
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode json: %w", err)
		}
		return string(data) + "\n", nil

	case formatCSV:
		if len(results) == 1 && results[0].Err == nil {
			return reporting.RenderCSV(gen.Generate(results[0].Result))
		}
		return reporting.RenderComparisonCSV(compare(gen, results))

	case formatAudit:
		var parts []string
		for _, r := range results {
			if r.Result != nil {
				parts = append(parts, reporting.RenderAuditTrail(r.Result))
			}
		}
		return strings.Join(parts, "\n"), nil
	}

	var parts []string
	for _, r := range results {
		if r.Result != nil {
			parts = append(parts, reporting.RenderMarkdown(gen.Generate(r.Result)))
		}
	}
	if len(results) > 1 {
		parts = append(parts, reporting.RenderComparisonMarkdown(compare(gen, results)))
	}
	return strings.Join(parts, "---\n\n"), nil
}

func compare(gen *reporting.Generator, results []analysis.BatchResult) []reporting.ComparisonRow {
	tokens := make([]string, len(results))
	res := make([]*domain.ListingResult, len(results))
	errs := make([]error, len(results))
	for i, r := range results {
		tokens[i] = r.Token
		res[i] = r.Result
		errs[i] = r.Err
	}
	return gen.Compare(tokens, res, errs)
}
