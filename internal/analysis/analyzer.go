// Package analysis runs the reconciliation engine end to end for one token:
// price selection, DEX convergence, allocation mapping with conflict
// detection, and valuation, with quality flags for every gap.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"token-listing-lab/internal/allocation"
	"token-listing-lab/internal/convergence"
	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/idhash"
	"token-listing-lab/internal/logger"
	"token-listing-lab/internal/observability"
	"token-listing-lab/internal/pricing"
	"token-listing-lab/internal/valuation"
)

// ErrInvalidMethod is returned for an unknown price selection method.
var ErrInvalidMethod = errors.New("invalid price selection method")

// crossCheckDeviationPct is the CEX/DEX price gap above which a flag is raised.
const crossCheckDeviationPct = 10.0

// Inputs is everything one analysis consumes. All data is already fetched.
type Inputs struct {
	Token        domain.TokenInfo          `json:"token"`
	Listings     []domain.Listing          `json:"listings,omitempty"`
	Fallback     *domain.Listing           `json:"fallback,omitempty"`
	HourlyPrices []domain.VenueHourlyPrice `json:"hourly_prices,omitempty"`
	Supply       *domain.SupplyData        `json:"supply,omitempty"`
	Fundraising  *domain.FundraisingData   `json:"fundraising,omitempty"`
	Allocations  []domain.RawAllocation    `json:"allocations,omitempty"`

	// Analyst overrides.
	Method      domain.PriceSelectionMethod `json:"method,omitempty"`
	ManualPrice *float64                    `json:"manual_price,omitempty"`
	Override    valuation.Override          `json:"override"`

	// Audit carries collaborator calls made while gathering; it is copied
	// into the result and excluded from the analysis ID.
	Audit []domain.AuditEntry `json:"-"`
}

// Config controls an Analyzer.
type Config struct {
	Method                         domain.PriceSelectionMethod
	EstimateCirculatingFromVesting bool
	Concurrency                    int // AnalyzeBatch parallelism
}

// DefaultConfig returns the standard analysis settings.
func DefaultConfig() Config {
	return Config{Method: domain.MethodEarliestOpen, Concurrency: 4}
}

// Components are the engine parts an Analyzer drives. Nil members use defaults.
type Components struct {
	Selector   *pricing.Selector
	Detector   *convergence.Detector
	Mapper     *allocation.Mapper
	Conflicts  *allocation.ConflictDetector
	Calculator *valuation.Calculator
}

type settings struct {
	log     logrus.FieldLogger
	metrics *observability.Metrics
	now     func() time.Time
}

// Option configures an Analyzer or Gatherer.
type Option func(*settings)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *settings) { s.log = log }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

func newSettings(component string, opts []Option) settings {
	s := settings{metrics: observability.DefaultMetrics, now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	s.log = logger.Component(s.log, component)
	return s
}

// Analyzer runs complete analyses. It is safe for concurrent use.
type Analyzer struct {
	cfg       Config
	selector  *pricing.Selector
	detector  *convergence.Detector
	mapper    *allocation.Mapper
	conflicts *allocation.ConflictDetector
	calc      *valuation.Calculator
	settings
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(cfg Config, c Components, opts ...Option) *Analyzer {
	s := newSettings("analysis", opts)
	if cfg.Method == "" {
		cfg.Method = domain.MethodEarliestOpen
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	a := &Analyzer{cfg: cfg, settings: s}

	a.selector = c.Selector
	if a.selector == nil {
		a.selector = pricing.NewSelector(pricing.DefaultSelectorConfig(), pricing.WithLogger(s.log), pricing.WithClock(s.now))
	}
	a.detector = c.Detector
	if a.detector == nil {
		a.detector = convergence.NewDetector(convergence.DefaultConfig(), s.log)
	}
	a.mapper = c.Mapper
	if a.mapper == nil {
		a.mapper = allocation.NewMapper(nil, allocation.WithLogger(s.log))
	}
	a.conflicts = c.Conflicts
	if a.conflicts == nil {
		a.conflicts = allocation.NewConflictDetector(allocation.DefaultConflictConfig(), s.log)
	}
	a.calc = c.Calculator
	if a.calc == nil {
		a.calc = valuation.NewCalculator(s.log)
	}
	return a
}

type flagSet []domain.DataQualityFlag

func (f *flagSet) add(field, issue string, sev domain.Severity, suggestion string) {
	*f = append(*f, domain.DataQualityFlag{Field: field, Issue: issue, Severity: sev, Suggestion: suggestion})
}

// Analyze reduces in to a ListingResult. Missing data produces quality flags
// and nil fields; only malformed inputs (an invalid method, a non-positive
// manual price, an out-of-range allocation) return an error.
func (a *Analyzer) Analyze(ctx context.Context, in Inputs) (*domain.ListingResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := a.now()

	res, err := a.analyze(in)
	status := observability.StatusOK
	if err != nil {
		status = observability.StatusFailed
	}
	end := a.now()
	a.metrics.RecordAnalysis(status, end.Sub(start).Seconds(), end.Unix())
	if err != nil {
		a.log.WithError(err).WithField("token", tokenLabel(in.Token)).Error("analysis failed")
		return nil, err
	}
	res.AnalyzedAt = end.UTC()
	return res, nil
}

func (a *Analyzer) analyze(in Inputs) (*domain.ListingResult, error) {
	method := in.Method
	if method == "" {
		method = a.cfg.Method
	}
	if !method.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}

	log := a.log.WithField("token", tokenLabel(in.Token))
	var flags flagSet

	in, dropped := dropNonFinite(in)
	if len(dropped) > 0 {
		flags.add("input_values", "Non-finite values ignored: "+strings.Join(dropped, ", "),
			domain.SeverityWarning, "Check the source data for NaN or infinite figures")
	}

	// Reference price.
	var ref *domain.ReferencePrice
	if in.ManualPrice != nil {
		var ts time.Time
		if in.Token.ListingDate != nil {
			ts = *in.Token.ListingDate
		}
		p, err := a.selector.ManualPrice(*in.ManualPrice, ts, "")
		if err != nil {
			return nil, fmt.Errorf("manual price: %w", err)
		}
		ref = p
	} else {
		p, err := a.selector.SelectWithFallback(in.Listings, in.Fallback, method)
		switch {
		case err == nil:
			ref = p
		case !errors.Is(err, pricing.ErrUndetermined):
			return nil, fmt.Errorf("select price: %w", err)
		}
	}

	// DEX convergence.
	var stab *domain.StabilizationResult
	if len(in.HourlyPrices) > 0 {
		s, ok := a.detector.FindStabilizationHour(in.HourlyPrices)
		a.metrics.RecordStabilization(ok)
		if ok {
			stab = s
		} else {
			flags.add("dex_stabilization", "DEX prices did not converge within the detection window", domain.SeverityInfo, "")
		}
	}
	switch {
	case ref == nil && stab != nil:
		ref = convergence.ReferencePrice(stab)
		flags.add("reference_price", "No exchange price available; using DEX convergence price", domain.SeverityInfo, "")
	case ref != nil && stab != nil && ref.Method != domain.MethodManual:
		if dev := math.Abs(ref.Price-stab.ReferencePrice) / stab.ReferencePrice * 100; dev > crossCheckDeviationPct {
			flags.add("reference_price",
				fmt.Sprintf("Exchange price deviates %.1f%% from DEX convergence price", dev),
				domain.SeverityWarning, "Review the first exchange candles for test trades or extreme wicks")
		}
	}
	if ref == nil {
		flags.add("reference_price", "Could not determine initial listing price from any source", domain.SeverityError,
			"Provide a manual initial price")
		a.metrics.RecordPriceUndetermined()
	} else {
		a.metrics.RecordPriceSelection(string(ref.Method), string(ref.Confidence))
	}

	// Allocations.
	var alloc *domain.AllocationData
	if len(in.Allocations) > 0 {
		data, err := a.mapper.MapAllocations(in.Allocations)
		if err != nil {
			return nil, fmt.Errorf("map allocations: %w", err)
		}
		conflicts := a.conflicts.DetectConflicts(data, a.mapper.Bucket)
		for i, c := range conflicts {
			conflicts[i] = a.conflicts.SuggestResolution(c, nil)
			flags.add("allocation:"+string(c.Bucket),
				fmt.Sprintf("Conflict between sources: %.1f%% discrepancy", c.DiscrepancyPct),
				domain.SeverityWarning, conflicts[i].Resolution)
			a.metrics.RecordConflict(string(c.Bucket))
		}
		data.Conflicts = conflicts
		for _, issue := range a.conflicts.DetectTotalIssues(data) {
			flags.add("allocation_total", issue, domain.SeverityWarning, "")
		}
		for _, m := range data.Mapped {
			if m.Bucket == domain.BucketUnknownOther {
				for range m.OriginalLabels {
					a.metrics.RecordUnmappedLabel()
				}
				flags.add("allocation_mapping",
					fmt.Sprintf("Labels matched no rule: %s", strings.Join(m.OriginalLabels, ", ")),
					domain.SeverityInfo, "Add a source override or pattern to the mapping rules")
			}
		}
		alloc = data
	} else {
		flags.add("allocations", "No allocation data available from any source", domain.SeverityInfo, "")
	}

	// Supply.
	supply := valuation.ApplyOverride(in.Supply, in.Override)
	if supply.CirculatingAtListing == nil && a.cfg.EstimateCirculatingFromVesting && alloc != nil {
		if fds := supply.FullyDilutedSupply(); fds != nil {
			if est, method := valuation.EstimateCirculatingAtListing(*fds, alloc.Mapped); est != nil {
				supply.CirculatingAtListing = est
				supply.CirculatingIsEstimate = true
				supply.EstimationMethod = method
				supply.CirculatingSource = domain.SourceEstimated
			}
		}
	}
	switch {
	case supply.CirculatingAtListing == nil:
		flags.add("circulating_supply",
			"Circulating supply at listing is unknown. Initial Market Cap cannot be calculated accurately.",
			domain.SeverityWarning, "Provide manual_circulating_supply")
	case supply.CirculatingIsEstimate:
		flags.add("circulating_supply",
			"Circulating supply at listing is estimated: "+supply.EstimationMethod,
			domain.SeverityWarning, "Confirm against the token's TGE unlock schedule")
	}

	// Fundraising.
	if in.Fundraising == nil || in.Fundraising.TotalRaised == nil || *in.Fundraising.TotalRaised <= 0 {
		flags.add("fundraising", "No fundraising data available. FDV/Raised ratio cannot be calculated.",
			domain.SeverityInfo, "")
	}

	// Valuation.
	var val *domain.ValuationMetrics
	if ref != nil {
		val = a.calc.Calculate(ref, supply, in.Fundraising)
	}

	for _, f := range flags {
		a.metrics.RecordQualityFlag(string(f.Severity))
	}

	id, err := analysisID(in, method)
	if err != nil {
		return nil, err
	}

	res := &domain.ListingResult{
		AnalysisID:     id,
		Token:          in.Token,
		Listings:       in.Listings,
		ReferencePrice: ref,
		Stabilization:  stab,
		Supply:         supply,
		Fundraising:    in.Fundraising,
		Valuation:      val,
		Allocations:    alloc,
		QualityFlags:   flags,
		AuditTrail:     append([]domain.AuditEntry(nil), in.Audit...),
	}

	entry := log.WithFields(logrus.Fields{"analysis_id": id, "flags": len(flags)})
	if ref != nil {
		entry = entry.WithFields(logrus.Fields{"price": ref.Price, "confidence": ref.Confidence})
	}
	entry.Info("analysis complete")
	return res, nil
}

// analysisID derives a stable ID from the token, method and inputs.
func analysisID(in Inputs, method domain.PriceSelectionMethod) (string, error) {
	canon, err := canonicalInputs(in)
	if err != nil {
		return "", fmt.Errorf("encode inputs: %w", err)
	}
	data, err := json.Marshal(canon)
	if err != nil {
		return "", fmt.Errorf("encode inputs: %w", err)
	}
	return idhash.ComputeAnalysisID(tokenLabel(in.Token), string(method), idhash.ComputeInputDigest(data)).String(), nil
}

func tokenLabel(t domain.TokenInfo) string {
	switch {
	case t.ID != "":
		return t.ID
	case t.Symbol != "":
		return t.Symbol
	}
	return t.Mint
}
