package valuation

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"token-listing-lab/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestFormulas(t *testing.T) {
	if got := CalcFDV(10_000_000_000, 1.25); got != 12_500_000_000 {
		t.Errorf("CalcFDV = %v", got)
	}
	if got := CalcMarketCap(1_275_000_000, 1.25); got != 1_593_750_000 {
		t.Errorf("CalcMarketCap = %v", got)
	}
	got, err := CalcFDVToRaised(10_000_000_000, 100_000_000)
	if err != nil || got != 100 {
		t.Errorf("CalcFDVToRaised = %v, %v", got, err)
	}
	for _, raised := range []float64{0, -1} {
		if _, err := CalcFDVToRaised(1, raised); !errors.Is(err, ErrNonPositiveRaised) {
			t.Errorf("raised=%v: err = %v, want ErrNonPositiveRaised", raised, err)
		}
	}
	if got := CalcUnlockedTokens(1_000_000_000, 10, 25); got != 25_000_000 {
		t.Errorf("CalcUnlockedTokens = %v", got)
	}
	if got := CalcCirculatingFromAllocation(1_000_000_000, 10, 25); got != 25_000_000 {
		t.Errorf("CalcCirculatingFromAllocation = %v", got)
	}
	if got := CalcFDV(math.Inf(1), 2); !math.IsInf(got, 1) {
		t.Errorf("CalcFDV(+Inf) = %v", got)
	}
	if got := CalcUnlockedTokens(1000, math.NaN(), 10); !math.IsNaN(got) {
		t.Errorf("CalcUnlockedTokens(NaN) = %v", got)
	}
}

func refPrice(p float64) *domain.ReferencePrice {
	return &domain.ReferencePrice{
		Price:      p,
		Timestamp:  time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Method:     domain.MethodEarliestOpen,
		Venue:      "binance",
		Pair:       "TKN/USDT",
		Confidence: domain.ConfidenceHigh,
	}
}

func hasNote(notes []string, substr string) bool {
	for _, n := range notes {
		if strings.Contains(n, substr) {
			return true
		}
	}
	return false
}

func TestCalculate_Full(t *testing.T) {
	c := NewCalculator(nil)
	supply := &domain.SupplyData{
		TotalSupply:          ptr(10_000_000_000.0),
		CirculatingAtListing: ptr(1_275_000_000.0),
	}
	m := c.Calculate(refPrice(1.25), supply, &domain.FundraisingData{TotalRaised: ptr(125_000_000.0)})

	if m.InitialFDV == nil || *m.InitialFDV != 12_500_000_000 || m.FDVConfidence != domain.ConfidenceHigh {
		t.Errorf("fdv = %v (%s)", m.InitialFDV, m.FDVConfidence)
	}
	if m.InitialMarketCap == nil || *m.InitialMarketCap != 1_593_750_000 || m.MarketCapConfidence != domain.ConfidenceHigh {
		t.Errorf("market cap = %v (%s)", m.InitialMarketCap, m.MarketCapConfidence)
	}
	if m.FDVToRaised == nil || *m.FDVToRaised != 100 {
		t.Errorf("fdv/raised = %v", m.FDVToRaised)
	}
	if !hasNote(m.Notes, "FDV = 10,000,000,000 tokens × $1.250000 = $12,500,000,000") {
		t.Errorf("missing FDV derivation in %q", m.Notes)
	}
	if !hasNote(m.Notes, "Using total supply") {
		t.Errorf("missing supply basis note in %q", m.Notes)
	}
	if !hasNote(m.Notes, "= 100.0x") {
		t.Errorf("missing ratio note in %q", m.Notes)
	}
}

func TestCalculate_PrefersMaxSupply(t *testing.T) {
	supply := &domain.SupplyData{TotalSupply: ptr(900.0), MaxSupply: ptr(1000.0)}
	m := NewCalculator(nil).Calculate(refPrice(2), supply, nil)
	if *m.InitialFDV != 2000 {
		t.Errorf("fdv = %v, want 2000 from max supply", *m.InitialFDV)
	}
	if !hasNote(m.Notes, "Using max supply") {
		t.Errorf("notes %q", m.Notes)
	}
	if !hasNote(m.Notes, "no fundraising data") || m.FDVToRaised != nil {
		t.Errorf("ratio should be absent with a note: %v %q", m.FDVToRaised, m.Notes)
	}
}

func TestCalculate_MissingInputs(t *testing.T) {
	m := NewCalculator(nil).Calculate(refPrice(1.25), &domain.SupplyData{
		TotalSupply:        ptr(1000.0),
		CirculatingCurrent: ptr(500.0),
	}, nil)
	if m.InitialMarketCap != nil || m.MarketCapConfidence != domain.ConfidenceUnknown {
		t.Errorf("market cap must not fall back to current circulating supply: %v", m.InitialMarketCap)
	}
	if !hasNote(m.Notes, "circulating supply at listing is unknown") {
		t.Errorf("notes %q", m.Notes)
	}

	m = NewCalculator(nil).Calculate(nil, nil, nil)
	if m.InitialFDV != nil || m.FDVConfidence != domain.ConfidenceUnknown {
		t.Errorf("fdv = %v", m.InitialFDV)
	}
	if !hasNote(m.Notes, "FDV could not be calculated") {
		t.Errorf("notes %q", m.Notes)
	}
	if !hasNote(m.Notes, "FDV/Raised ratio not available: FDV could not be calculated") {
		t.Errorf("notes %q", m.Notes)
	}
}

func TestCalculate_NonFiniteInputs(t *testing.T) {
	tests := []struct {
		name   string
		price  float64
		supply domain.SupplyData
		raised *float64
	}{
		{"infinite total supply", 1, domain.SupplyData{TotalSupply: ptr(math.Inf(1))}, nil},
		{"nan max supply", 1, domain.SupplyData{MaxSupply: ptr(math.NaN())}, nil},
		{"infinite circulating", 1, domain.SupplyData{CirculatingAtListing: ptr(math.Inf(1))}, nil},
		{"infinite price", math.Inf(1), domain.SupplyData{TotalSupply: ptr(1000.0)}, nil},
		{"nan raised", 1, domain.SupplyData{TotalSupply: ptr(1000.0)}, ptr(math.NaN())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewCalculator(nil).Calculate(refPrice(tt.price), &tt.supply, &domain.FundraisingData{TotalRaised: tt.raised})
			if m.InitialMarketCap != nil || m.FDVToRaised != nil || m.TotalRaised != nil {
				t.Errorf("unexpected figures: mc=%v ratio=%v raised=%v", m.InitialMarketCap, m.FDVToRaised, m.TotalRaised)
			}
			if len(m.Notes) == 0 {
				t.Error("expected notes")
			}
		})
	}

	m := NewCalculator(nil).Calculate(refPrice(1), &domain.SupplyData{TotalSupply: ptr(math.Inf(1))}, nil)
	if m.InitialFDV != nil || !hasNote(m.Notes, "FDV could not be calculated") {
		t.Errorf("fdv = %v, notes %q", m.InitialFDV, m.Notes)
	}

	if v, _ := EstimateCirculatingAtListing(math.Inf(1), nil); v != nil {
		t.Errorf("estimate from infinite total = %v", *v)
	}
}

func TestCalculate_EstimatedCirculating(t *testing.T) {
	supply := &domain.SupplyData{
		TotalSupply:           ptr(1000.0),
		CirculatingAtListing:  ptr(100.0),
		CirculatingIsEstimate: true,
		EstimationMethod:      "TGE unlock sum",
	}
	m := NewCalculator(nil).Calculate(refPrice(1), supply, &domain.FundraisingData{TotalRaised: ptr(0.0)})
	if m.MarketCapConfidence != domain.ConfidenceLow {
		t.Errorf("confidence = %s, want LOW", m.MarketCapConfidence)
	}
	if !hasNote(m.Notes, "ESTIMATED. Method: TGE unlock sum") {
		t.Errorf("notes %q", m.Notes)
	}
	if m.FDVToRaised != nil {
		t.Errorf("zero raise must not produce a ratio")
	}
	if !hasNote(m.Notes, "total raised is $0") || hasNote(m.Notes, "no fundraising data") {
		t.Errorf("notes %q", m.Notes)
	}
}

func TestCalculateWithOverride(t *testing.T) {
	supply := &domain.SupplyData{
		TotalSupply:           ptr(1000.0),
		CirculatingAtListing:  ptr(100.0),
		CirculatingIsEstimate: true,
		EstimationMethod:      "guess",
	}
	m := NewCalculator(nil).CalculateWithOverride(refPrice(2), supply, nil, Override{
		CirculatingAtListing: ptr(250.0),
		TotalSupply:          ptr(2000.0),
	})
	if *m.InitialMarketCap != 500 || m.MarketCapConfidence != domain.ConfidenceHigh {
		t.Errorf("market cap = %v (%s)", *m.InitialMarketCap, m.MarketCapConfidence)
	}
	if *m.InitialFDV != 4000 {
		t.Errorf("fdv = %v", *m.InitialFDV)
	}
	if *supply.CirculatingAtListing != 100 || !supply.CirculatingIsEstimate {
		t.Error("override mutated the input supply")
	}

	got := ApplyOverride(supply, Override{TotalSupply: ptr(5.0)})
	if !got.CirculatingIsEstimate || got.EstimationMethod != "guess" {
		t.Errorf("total-only override must keep the estimate flag: %+v", got)
	}
	got = ApplyOverride(supply, Override{CirculatingAtListing: ptr(5.0)})
	if got.CirculatingIsEstimate || got.EstimationMethod != ManualOverrideMethod {
		t.Errorf("circulating override must clear the estimate flag: %+v", got)
	}
}

func TestEstimateCirculatingAtListing(t *testing.T) {
	allocs := []domain.MappedAllocation{
		{Bucket: domain.BucketAirdrop, Percentage: ptr(10.0), Vesting: &domain.VestingTerms{TGEUnlockPct: ptr(100.0)}},
		{Bucket: domain.BucketInvestors, Percentage: ptr(20.0), Vesting: &domain.VestingTerms{TGEUnlockPct: ptr(0.0)}},
		{Bucket: domain.BucketTeamFounder, Percentage: ptr(30.0)},
	}
	got, method := EstimateCirculatingAtListing(1_000_000, allocs)
	if got == nil || *got != 100_000 {
		t.Fatalf("estimate = %v", got)
	}
	if !strings.Contains(method, "2 of 3") {
		t.Errorf("method = %q", method)
	}

	if got, _ := EstimateCirculatingAtListing(1_000_000, allocs[2:]); got != nil {
		t.Errorf("no bucket with a TGE unlock should give nil, got %v", *got)
	}
	if got, _ := EstimateCirculatingAtListing(0, allocs); got != nil {
		t.Error("zero supply should give nil")
	}
}
