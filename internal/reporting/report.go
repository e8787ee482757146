package reporting

import (
	"time"

	"token-listing-lab/internal/domain"
)

// Report is the presentation model of one listing analysis.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	AnalysisID  string
	AnalyzedAt  time.Time
	Token       domain.TokenInfo

	// Price
	Price         *domain.ReferencePrice
	Stabilization *domain.StabilizationResult
	Listings      []ListingRow // sorted by candle timestamp, then venue

	// Figures
	Valuation []MetricRow
	Supply    []MetricRow

	// Allocation
	Allocations        []AllocationRow // bucket display order
	AllocationTotal    *float64
	AllocationComplete bool
	Conflicts          []ConflictRow // sorted by bucket order

	// Quality
	QualityFlags []domain.DataQualityFlag
	Sources      []SourceSummaryRow // sorted by source
}

// ListingRow is one venue's first candle.
type ListingRow struct {
	Venue     string
	Pair      string
	Timestamp *time.Time
	Open      *float64
	Close     *float64
	Volume    *float64
	Error     string
}

// MetricRow is a labelled figure. Value is nil when unknown.
type MetricRow struct {
	Name       string
	Value      *float64
	Unit       string // "usd", "tokens" or "ratio"
	Confidence domain.Confidence
	Source     string
}

// AllocationRow is one mapped bucket.
type AllocationRow struct {
	Bucket         domain.CanonicalBucket
	DisplayName    string
	Percentage     *float64
	OriginalLabels []string
	Sources        []domain.DataSource
	Vesting        string
	Confidence     domain.Confidence
}

// ConflictRow is one cross-source disagreement.
type ConflictRow struct {
	Bucket         domain.CanonicalBucket
	DiscrepancyPct float64
	Values         []SourceValue // sorted by source
	Resolution     string
}

// SourceValue is a percentage reported by one source.
type SourceValue struct {
	Source domain.DataSource
	Value  float64
}

// SourceSummaryRow counts the calls made to one source.
type SourceSummaryRow struct {
	Source    domain.DataSource
	Calls     int
	Succeeded int
	Endpoints []string // first-seen order
}

// OK reports whether at least one call to the source succeeded.
func (s SourceSummaryRow) OK() bool {
	return s.Succeeded > 0
}

// ComparisonRow summarizes one analysis in a batch or history table.
type ComparisonRow struct {
	Token       string
	AnalysisID  string
	AnalyzedAt  time.Time
	Price       *float64
	Venue       string
	Method      domain.PriceSelectionMethod
	Confidence  domain.Confidence
	FDV         *float64
	MarketCap   *float64
	TotalRaised *float64
	FDVToRaised *float64
	AllocTotal  *float64
	Conflicts   int
	Warnings    int
	Errors      int
	Failure     string // set when the analysis itself failed
}
