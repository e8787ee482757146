package reporting

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/storage"
	"token-listing-lab/internal/vesting"
)

// Generator builds reports from analysis results, either passed in directly
// or loaded from an AnalysisStore.
type Generator struct {
	store storage.AnalysisStore
	now   func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. store may be nil when only
// Generate and Compare are used.
func NewGenerator(store storage.AnalysisStore) *Generator {
	return &Generator{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report for one result.
func (g *Generator) Generate(r *domain.ListingResult) *Report {
	rep := &Report{
		GeneratedAt:   g.now(),
		AnalysisID:    r.AnalysisID,
		AnalyzedAt:    r.AnalyzedAt,
		Token:         r.Token,
		Price:         r.ReferencePrice,
		Stabilization: r.Stabilization,
		Listings:      listingRows(r.Listings),
		Valuation:     valuationRows(r.Valuation),
		Supply:        supplyRows(r.Supply),
		QualityFlags:  r.QualityFlags,
		Sources:       summarizeSources(r.AuditTrail),
	}

	if a := r.Allocations; a != nil {
		rep.Allocations = allocationRows(a.Mapped)
		rep.AllocationTotal = a.TotalPercentage
		rep.AllocationComplete = a.IsComplete
		rep.Conflicts = conflictRows(a.Conflicts)
	}

	return rep
}

// GenerateByID loads a stored result and builds its report.
func (g *Generator) GenerateByID(ctx context.Context, analysisID string) (*Report, error) {
	if g.store == nil {
		return nil, fmt.Errorf("generate report %s: no analysis store", analysisID)
	}
	r, err := g.store.GetByID(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("load analysis %s: %w", analysisID, err)
	}
	return g.Generate(r), nil
}

// History returns comparison rows for every stored analysis of a token,
// newest first.
func (g *Generator) History(ctx context.Context, tokenKey string) ([]ComparisonRow, error) {
	if g.store == nil {
		return nil, fmt.Errorf("load history for %s: no analysis store", tokenKey)
	}
	results, err := g.store.GetByToken(ctx, tokenKey)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", tokenKey, err)
	}
	rows := make([]ComparisonRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, comparisonRow(tokenName(r.Token), r))
	}
	return rows, nil
}

// Compare builds one comparison row per batch entry, in input order.
// A nil result yields a row carrying only the token and failure.
func (g *Generator) Compare(tokens []string, results []*domain.ListingResult, errs []error) []ComparisonRow {
	rows := make([]ComparisonRow, len(tokens))
	for i, tok := range tokens {
		var r *domain.ListingResult
		if i < len(results) {
			r = results[i]
		}
		if r == nil {
			rows[i] = ComparisonRow{Token: tok, Failure: "no result"}
			if i < len(errs) && errs[i] != nil {
				rows[i].Failure = errs[i].Error()
			}
			continue
		}
		rows[i] = comparisonRow(tok, r)
	}
	return rows
}

func comparisonRow(token string, r *domain.ListingResult) ComparisonRow {
	row := ComparisonRow{
		Token:      token,
		AnalysisID: r.AnalysisID,
		AnalyzedAt: r.AnalyzedAt,
		Confidence: domain.ConfidenceUnknown,
	}
	if p := r.ReferencePrice; p != nil {
		price := p.Price
		row.Price = &price
		row.Venue = p.Venue
		row.Method = p.Method
		row.Confidence = p.Confidence
	}
	if v := r.Valuation; v != nil {
		row.FDV = v.InitialFDV
		row.MarketCap = v.InitialMarketCap
		row.TotalRaised = v.TotalRaised
		row.FDVToRaised = v.FDVToRaised
	}
	if a := r.Allocations; a != nil {
		row.AllocTotal = a.TotalPercentage
		row.Conflicts = len(a.Conflicts)
	}
	for _, f := range r.QualityFlags {
		switch f.Severity {
		case domain.SeverityWarning:
			row.Warnings++
		case domain.SeverityError:
			row.Errors++
		}
	}
	return row
}

func listingRows(listings []domain.Listing) []ListingRow {
	rows := make([]ListingRow, 0, len(listings))
	for _, l := range listings {
		row := ListingRow{Venue: l.Venue, Pair: l.Pair, Error: l.Error}
		if l.Candle != nil {
			ts := l.Candle.Timestamp
			open, cl, vol := l.Candle.Open, l.Candle.Close, l.Candle.Volume
			row.Timestamp = &ts
			row.Open = &open
			row.Close = &cl
			row.Volume = &vol
		}
		rows = append(rows, row)
	}

	// Rows without a candle go last.
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Timestamp, rows[j].Timestamp
		switch {
		case a == nil && b == nil:
			return rows[i].Venue < rows[j].Venue
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		}
		return rows[i].Venue < rows[j].Venue
	})
	return rows
}

func valuationRows(v *domain.ValuationMetrics) []MetricRow {
	if v == nil {
		return nil
	}
	return []MetricRow{
		{Name: "Initial FDV", Value: v.InitialFDV, Unit: "usd", Confidence: v.FDVConfidence, Source: "calculated"},
		{Name: "Initial Market Cap", Value: v.InitialMarketCap, Unit: "usd", Confidence: v.MarketCapConfidence, Source: "calculated"},
		{Name: "Total Raised", Value: v.TotalRaised, Unit: "usd", Source: "fundraising"},
		{Name: "FDV/Raised", Value: v.FDVToRaised, Unit: "ratio", Source: "calculated"},
	}
}

func supplyRows(s *domain.SupplyData) []MetricRow {
	if s == nil {
		return nil
	}
	src := string(s.Source)
	circSrc := string(s.CirculatingSource)
	if s.CirculatingIsEstimate {
		circSrc = string(domain.SourceEstimated)
	}
	return []MetricRow{
		{Name: "Total Supply", Value: s.TotalSupply, Unit: "tokens", Source: src},
		{Name: "Max Supply", Value: s.MaxSupply, Unit: "tokens", Source: src},
		{Name: "Circulating (Current)", Value: s.CirculatingCurrent, Unit: "tokens", Source: src},
		{Name: "Circulating (At Listing)", Value: s.CirculatingAtListing, Unit: "tokens", Source: circSrc},
	}
}

func allocationRows(mapped []domain.MappedAllocation) []AllocationRow {
	rows := make([]AllocationRow, 0, len(mapped))
	for _, m := range mapped {
		rows = append(rows, AllocationRow{
			Bucket:         m.Bucket,
			DisplayName:    m.DisplayName,
			Percentage:     m.Percentage,
			OriginalLabels: m.OriginalLabels,
			Sources:        m.Sources,
			Vesting:        vesting.FormatSummary(m.Vesting),
			Confidence:     m.Confidence,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Bucket.Order() < rows[j].Bucket.Order()
	})
	return rows
}

func conflictRows(conflicts []domain.Conflict) []ConflictRow {
	rows := make([]ConflictRow, 0, len(conflicts))
	for _, c := range conflicts {
		values := make([]SourceValue, 0, len(c.Values))
		for src, v := range c.Values {
			values = append(values, SourceValue{Source: src, Value: v})
		}
		sort.Slice(values, func(i, j int) bool { return values[i].Source < values[j].Source })

		rows = append(rows, ConflictRow{
			Bucket:         c.Bucket,
			DiscrepancyPct: c.DiscrepancyPct,
			Values:         values,
			Resolution:     c.Resolution,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Bucket.Order() < rows[j].Bucket.Order()
	})
	return rows
}

func summarizeSources(trail []domain.AuditEntry) []SourceSummaryRow {
	idx := make(map[domain.DataSource]int)
	var rows []SourceSummaryRow
	for _, e := range trail {
		i, ok := idx[e.Source]
		if !ok {
			i = len(rows)
			idx[e.Source] = i
			rows = append(rows, SourceSummaryRow{Source: e.Source})
		}
		row := &rows[i]
		row.Calls++
		if e.Success {
			row.Succeeded++
		}
		if e.Endpoint != "" && !slices.Contains(row.Endpoints, e.Endpoint) {
			row.Endpoints = append(row.Endpoints, e.Endpoint)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Source < rows[j].Source })
	return rows
}

func tokenName(t domain.TokenInfo) string {
	switch {
	case t.Symbol != "":
		return t.Symbol
	case t.ID != "":
		return t.ID
	}
	return t.Mint
}
