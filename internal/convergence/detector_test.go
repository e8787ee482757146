package convergence

import (
	"math"
	"strings"
	"testing"
	"time"

	"token-listing-lab/internal/domain"
)

var h0 = time.Date(2023, 12, 7, 16, 0, 0, 0, time.UTC)

func vhp(hour time.Time, venue string, price float64, swaps int) domain.VenueHourlyPrice {
	p := domain.VenueHourlyPrice{Hour: hour, Venue: venue, SwapCount: swaps}
	if price > 0 {
		p.AvgPrice = &price
	}
	return p
}

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestFindStabilizationHour_ThreeVenuesMedium(t *testing.T) {
	h := h0.Add(2 * time.Hour)
	prices := []domain.VenueHourlyPrice{
		vhp(h0, "orca_whirlpool", 0, 27791),
		vhp(h0, "raydium_clmm", 0, 12467),
		vhp(h, "orca", 2.0356, 100),
		vhp(h, "phoenix", 2.0357, 20),
		vhp(h, "raydium", 2.0337, 30),
	}

	res, ok := NewDetector(DefaultConfig(), nil).FindStabilizationHour(prices)
	if !ok {
		t.Fatal("expected stabilization")
	}
	if !res.Hour.Equal(h) {
		t.Errorf("hour = %v, want %v", res.Hour, h)
	}
	if !approx(res.SpreadPct, 0.0983, 0.0001) {
		t.Errorf("spread = %v, want ~0.098", res.SpreadPct)
	}
	if res.Confidence != domain.ConfidenceMedium {
		t.Errorf("confidence = %s, want MEDIUM with 3 venues", res.Confidence)
	}
	wantRef := (2.0356*100 + 2.0357*20 + 2.0337*30) / 150
	if !approx(res.ReferencePrice, wantRef, 1e-12) {
		t.Errorf("reference = %v, want swap-weighted %v", res.ReferencePrice, wantRef)
	}
	if res.TotalSwaps != 150 || len(res.VenuePrices) != 3 {
		t.Errorf("total swaps %d, venues %d", res.TotalSwaps, len(res.VenuePrices))
	}
}

func TestFindStabilizationHour_FourVenuesHigh(t *testing.T) {
	prices := []domain.VenueHourlyPrice{
		vhp(h0, "orca", 2.0356, 100),
		vhp(h0, "phoenix", 2.0357, 20),
		vhp(h0, "raydium", 2.0337, 30),
		vhp(h0, "meteora", 2.0350, 15),
	}
	res, ok := NewDetector(DefaultConfig(), nil).FindStabilizationHour(prices)
	if !ok || res.Confidence != domain.ConfidenceHigh {
		t.Fatalf("expected HIGH stabilization, got %+v %v", res, ok)
	}
}

func TestFindStabilizationHour_LowConfidenceWithFewVenues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinVenueCount = 2
	prices := []domain.VenueHourlyPrice{
		vhp(h0, "orca", 2.00, 100),
		vhp(h0, "phoenix", 2.01, 100),
	}
	res, ok := NewDetector(cfg, nil).FindStabilizationHour(prices)
	if !ok || res.Confidence != domain.ConfidenceLow {
		t.Fatalf("expected LOW stabilization, got %+v %v", res, ok)
	}
}

func TestFindStabilizationHour_SkipsWideSpreadAndThinVenues(t *testing.T) {
	h1 := h0.Add(time.Hour)
	h2 := h0.Add(2 * time.Hour)
	prices := []domain.VenueHourlyPrice{
		// hour 0: spread too wide
		vhp(h0, "orca", 2.0, 100),
		vhp(h0, "phoenix", 2.1, 100),
		vhp(h0, "raydium", 2.05, 100),
		// hour 1: third venue too thin
		vhp(h1, "orca", 2.0, 100),
		vhp(h1, "phoenix", 2.0, 100),
		vhp(h1, "raydium", 2.0, 9),
		// hour 2: converged
		vhp(h2, "orca", 2.0, 100),
		vhp(h2, "phoenix", 2.01, 100),
		vhp(h2, "raydium", 2.005, 10),
	}
	res, ok := NewDetector(DefaultConfig(), nil).FindStabilizationHour(prices)
	if !ok || !res.Hour.Equal(h2) {
		t.Fatalf("expected stabilization at %v, got %+v %v", h2, res, ok)
	}
}

func TestFindStabilizationHour_NoneWithinWindow(t *testing.T) {
	late := h0.Add(5 * time.Hour)
	prices := []domain.VenueHourlyPrice{
		vhp(h0, "orca", 2.0, 5),
		vhp(late, "orca", 2.0, 100),
		vhp(late, "phoenix", 2.0, 100),
		vhp(late, "raydium", 2.0, 100),
	}

	cfg := DefaultConfig()
	cfg.MaxHours = 5
	if res, ok := NewDetector(cfg, nil).FindStabilizationHour(prices); ok {
		t.Errorf("hour 5 is outside a 5-hour window, got %+v", res)
	}

	cfg.MaxHours = 6
	if _, ok := NewDetector(cfg, nil).FindStabilizationHour(prices); !ok {
		t.Error("hour 5 is inside a 6-hour window")
	}

	if _, ok := NewDetector(DefaultConfig(), nil).FindStabilizationHour(nil); ok {
		t.Error("empty input cannot stabilize")
	}
}

func TestFindStabilizationHour_OrderIndependentAndMergesDuplicates(t *testing.T) {
	a := []domain.VenueHourlyPrice{
		vhp(h0.Add(10*time.Minute), "orca", 2.00, 50),
		vhp(h0.Add(40*time.Minute), "orca", 2.02, 50),
		vhp(h0, "phoenix", 2.01, 20),
		vhp(h0, "raydium", 2.01, 20),
	}
	b := []domain.VenueHourlyPrice{a[3], a[1], a[2], a[0]}

	d := NewDetector(DefaultConfig(), nil)
	ra, okA := d.FindStabilizationHour(a)
	rb, okB := d.FindStabilizationHour(b)
	if !okA || !okB {
		t.Fatal("expected stabilization")
	}
	if ra.ReferencePrice != rb.ReferencePrice || ra.SpreadPct != rb.SpreadPct || ra.TotalSwaps != rb.TotalSwaps {
		t.Errorf("results depend on input order: %+v vs %+v", ra, rb)
	}
	if !approx(ra.VenuePrices["orca"], 2.01, 1e-12) || ra.TotalSwaps != 140 {
		t.Errorf("duplicate rows not merged: %+v", ra)
	}
}

func TestReferencePrice(t *testing.T) {
	if ReferencePrice(nil) != nil {
		t.Error("nil result should give nil price")
	}
	res := &domain.StabilizationResult{
		Hour:           h0,
		ReferencePrice: 2.035,
		SpreadPct:      0.098,
		Confidence:     domain.ConfidenceMedium,
		VenuePrices:    map[string]float64{"phoenix": 2.0357, "orca": 2.0356},
		TotalSwaps:     120,
	}
	ref := ReferencePrice(res)
	if ref.Price != 2.035 || ref.Venue != "dex" || ref.Confidence != domain.ConfidenceMedium || ref.Method != domain.MethodFirstHourVWAP {
		t.Errorf("unexpected reference %+v", ref)
	}
	if !strings.Contains(ref.Notes, "2 venues (orca, phoenix)") {
		t.Errorf("notes %q", ref.Notes)
	}
}
