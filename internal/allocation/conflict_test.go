package allocation

import (
	"reflect"
	"strings"
	"testing"

	"token-listing-lab/internal/domain"
)

func mapped(t *testing.T, raw ...domain.RawAllocation) *domain.AllocationData {
	t.Helper()
	data, err := NewMapper(nil).MapAllocations(raw)
	if err != nil {
		t.Fatalf("MapAllocations: %v", err)
	}
	return data
}

func TestDetectConflicts_AboveThreshold(t *testing.T) {
	data := mapped(t,
		mustRaw(t, domain.SourceCryptoRank, "Investors", 15),
		mustRaw(t, domain.SourceCoinGecko, "Investors", 22),
	)

	conflicts := NewConflictDetector(DefaultConflictConfig(), nil).DetectConflicts(data, nil)
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(conflicts))
	}
	c := conflicts[0]
	if c.Bucket != domain.BucketInvestors {
		t.Errorf("bucket = %s", c.Bucket)
	}
	if c.DiscrepancyPct != 7.0 {
		t.Errorf("discrepancy = %v, want 7.0", c.DiscrepancyPct)
	}
	if !reflect.DeepEqual(c.Sources, []domain.DataSource{domain.SourceCoinGecko, domain.SourceCryptoRank}) {
		t.Errorf("sources = %v", c.Sources)
	}
	if c.Values[domain.SourceCryptoRank] != 15 || c.Values[domain.SourceCoinGecko] != 22 {
		t.Errorf("values = %v", c.Values)
	}
}

func TestDetectConflicts_WithinThreshold(t *testing.T) {
	d := NewConflictDetector(DefaultConflictConfig(), nil)

	data := mapped(t,
		mustRaw(t, domain.SourceCryptoRank, "Investors", 15),
		mustRaw(t, domain.SourceCoinGecko, "Investors", 18),
	)
	if conflicts := d.DetectConflicts(data, nil); len(conflicts) != 0 {
		t.Errorf("expected no conflict, got %+v", conflicts)
	}

	// Exactly at the threshold is not a conflict.
	data = mapped(t,
		mustRaw(t, domain.SourceCryptoRank, "Team", 15),
		mustRaw(t, domain.SourceCoinGecko, "Team", 20),
	)
	if conflicts := d.DetectConflicts(data, nil); len(conflicts) != 0 {
		t.Errorf("expected no conflict at threshold, got %+v", conflicts)
	}
}

func TestDetectConflicts_SumsPerSourceAndSingleSourceIgnored(t *testing.T) {
	data := mapped(t,
		mustRaw(t, domain.SourceCryptoRank, "Seed", 10),
		mustRaw(t, domain.SourceCryptoRank, "Private Sale", 8),
		mustRaw(t, domain.SourceManual, "Investors", 17),
		mustRaw(t, domain.SourceManual, "Team", 10),
		mustRaw(t, domain.SourceManual, "Core Team", 12),
	)
	if conflicts := NewConflictDetector(ConflictConfig{}, nil).DetectConflicts(data, nil); len(conflicts) != 0 {
		t.Errorf("expected no conflicts, got %+v", conflicts)
	}
}

func TestDetectConflicts_BucketMap(t *testing.T) {
	data := mapped(t,
		mustRaw(t, domain.SourceCryptoRank, "Foundation", 10),
		mustRaw(t, domain.SourceCoinGecko, "Reserve", 30),
	)
	bucketMap := map[string]domain.CanonicalBucket{
		"Foundation": domain.BucketTreasuryReserve,
		"Reserve":    domain.BucketTreasuryReserve,
	}

	d := NewConflictDetector(DefaultConflictConfig(), nil)
	if conflicts := d.DetectConflicts(data, nil); len(conflicts) != 0 {
		t.Errorf("labels resolve to different buckets without a map, got %+v", conflicts)
	}
	conflicts := d.DetectConflicts(data, BucketMap(bucketMap))
	if len(conflicts) != 1 || conflicts[0].Bucket != domain.BucketTreasuryReserve || conflicts[0].DiscrepancyPct != 20 {
		t.Errorf("unexpected conflicts %+v", conflicts)
	}
}

func TestDetectConflicts_SourceOverride(t *testing.T) {
	rules := DefaultRuleSet()
	if err := rules.AddOverride(domain.SourceCryptoRank, "Foundation", domain.BucketTreasuryReserve); err != nil {
		t.Fatalf("AddOverride: %v", err)
	}
	m := NewMapper(rules)
	data, err := m.MapAllocations([]domain.RawAllocation{
		mustRaw(t, domain.SourceCryptoRank, "Foundation", 20),
		mustRaw(t, domain.SourceCoinGecko, "Foundation", 10),
		mustRaw(t, domain.SourceCoinGecko, "Treasury", 10),
	})
	if err != nil {
		t.Fatalf("MapAllocations: %v", err)
	}

	conflicts := NewConflictDetector(DefaultConflictConfig(), nil).DetectConflicts(data, m.Bucket)
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %+v", conflicts)
	}
	c := conflicts[0]
	if c.Bucket != domain.BucketTreasuryReserve {
		t.Errorf("bucket = %s, want treasury_reserve", c.Bucket)
	}
	if c.Values[domain.SourceCryptoRank] != 20 || c.Values[domain.SourceCoinGecko] != 10 {
		t.Errorf("values = %v", c.Values)
	}
	if c.DiscrepancyPct != 10 {
		t.Errorf("discrepancy = %v, want 10", c.DiscrepancyPct)
	}
}

func TestDetectConflicts_OrderedByBucket(t *testing.T) {
	data := mapped(t,
		mustRaw(t, domain.SourceCryptoRank, "Treasury", 10),
		mustRaw(t, domain.SourceCoinGecko, "Treasury", 30),
		mustRaw(t, domain.SourceCryptoRank, "Team", 10),
		mustRaw(t, domain.SourceCoinGecko, "Team", 25),
	)
	conflicts := NewConflictDetector(DefaultConflictConfig(), nil).DetectConflicts(data, nil)
	if len(conflicts) != 2 {
		t.Fatalf("expected 2 conflicts, got %d", len(conflicts))
	}
	if conflicts[0].Bucket != domain.BucketTeamFounder || conflicts[1].Bucket != domain.BucketTreasuryReserve {
		t.Errorf("unexpected order %s, %s", conflicts[0].Bucket, conflicts[1].Bucket)
	}
}

func TestDetectTotalIssues(t *testing.T) {
	data := mapped(t,
		mustRaw(t, domain.SourceCryptoRank, "Team", 50),
		mustRaw(t, domain.SourceCryptoRank, "Investors", 30),
		mustRaw(t, domain.SourceManual, "Team", 60),
		mustRaw(t, domain.SourceManual, "Investors", 50),
		mustRaw(t, domain.SourceCoinGecko, "Team", 40),
		mustRaw(t, domain.SourceCoinGecko, "Investors", 60),
	)

	issues := NewConflictDetector(DefaultConflictConfig(), nil).DetectTotalIssues(data)
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %v", issues)
	}
	if !strings.HasPrefix(issues[0], "[cryptorank] Total allocation (80.0%) is below expected minimum (95%)") {
		t.Errorf("issue[0] = %q", issues[0])
	}
	if !strings.HasPrefix(issues[1], "[manual] Total allocation (110.0%) exceeds expected maximum (105%)") {
		t.Errorf("issue[1] = %q", issues[1])
	}
}

func TestSuggestResolution(t *testing.T) {
	d := NewConflictDetector(DefaultConflictConfig(), nil)
	c := domain.Conflict{
		Bucket:         domain.BucketInvestors,
		Sources:        []domain.DataSource{domain.SourceCoinGecko, domain.SourceCryptoRank},
		Values:         map[domain.DataSource]float64{domain.SourceCoinGecko: 15, domain.SourceCryptoRank: 22},
		DiscrepancyPct: 7,
	}

	got := d.SuggestResolution(c, nil)
	if got.PreferredSource != domain.SourceCryptoRank {
		t.Errorf("preferred = %s, want cryptorank", got.PreferredSource)
	}
	if got.Resolution != "Suggested: use cryptorank value (22.0%)" {
		t.Errorf("resolution = %q", got.Resolution)
	}
	if c.Resolution != "" || c.PreferredSource != "" {
		t.Error("input conflict was mutated")
	}

	got = d.SuggestResolution(c, []domain.DataSource{domain.SourceCoinGecko})
	if got.PreferredSource != domain.SourceCoinGecko {
		t.Errorf("explicit preference ignored: %s", got.PreferredSource)
	}
}

func TestSuggestResolution_ClosestToMean(t *testing.T) {
	d := NewConflictDetector(DefaultConflictConfig(), nil)
	c := domain.Conflict{
		Bucket:  domain.BucketTeamFounder,
		Sources: []domain.DataSource{domain.SourceDropstab, domain.SourceFlipside, domain.SourceMessari},
		Values: map[domain.DataSource]float64{
			domain.SourceDropstab: 10,
			domain.SourceFlipside: 19,
			domain.SourceMessari:  20,
		},
	}

	got := d.SuggestResolution(c, nil)
	if got.PreferredSource != domain.SourceFlipside {
		t.Errorf("preferred = %s, want flipside (closest to mean 16.3)", got.PreferredSource)
	}
}
