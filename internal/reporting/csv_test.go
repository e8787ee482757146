package reporting

import (
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"token-listing-lab/internal/domain"
)

func TestRenderCSV_Sections(t *testing.T) {
	out, err := RenderCSV(fixedGenerator(nil).Generate(sampleResult()))
	if err != nil {
		t.Fatalf("RenderCSV failed: %v", err)
	}

	for _, section := range []string{
		"# Token Information",
		"# Initial Listing",
		"# Metrics",
		"# Token Allocation",
		"# Allocation Conflicts",
		"# Data Quality Flags",
	} {
		if !strings.Contains(out, section) {
			t.Errorf("CSV missing section: %s", section)
		}
	}

	if !strings.Contains(out, "2,2023-12-07T16:00:00Z,binance,JTO/USDT,earliest_open,HIGH") {
		t.Errorf("CSV missing price row:\n%s", out)
	}
	if !strings.Contains(out, "team_founder,Team/Founder,24.5,Core Contributors,cryptorank,No vesting info,HIGH") {
		t.Errorf("CSV missing allocation row:\n%s", out)
	}
	if !strings.Contains(out, "TOTAL,,40.7,complete=false") {
		t.Errorf("CSV missing total row:\n%s", out)
	}
}

func TestRenderCSV_Parseable(t *testing.T) {
	res := sampleResult()
	res.Allocations.Mapped[0].OriginalLabels = []string{`Seed, "Strategic"`}

	out, err := RenderCSV(fixedGenerator(nil).Generate(res))
	if err != nil {
		t.Fatalf("RenderCSV failed: %v", err)
	}

	r := csv.NewReader(strings.NewReader(out))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("CSV output not parseable: %v", err)
	}

	found := false
	for _, rec := range records {
		if len(rec) == 7 && rec[0] == string(domain.BucketInvestors) {
			found = true
			if rec[3] != `Seed, "Strategic"` {
				t.Errorf("Label not round-tripped: %q", rec[3])
			}
		}
	}
	if !found {
		t.Error("Investors row not found")
	}
}

func TestRenderComparisonCSV(t *testing.T) {
	rows := fixedGenerator(nil).Compare(
		[]string{"JTO", "BAD"},
		[]*domain.ListingResult{sampleResult(), nil},
		[]error{nil, errors.New("boom")},
	)
	out, err := RenderComparisonCSV(rows)
	if err != nil {
		t.Fatalf("RenderComparisonCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "token,analysis_id,analyzed_at,price_usd") {
		t.Errorf("Unexpected header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "JTO,6f1c1f0e-4f5a-5b7e-9d3c-2a1b0c9d8e7f,2023-12-07T16:05:00Z,2,binance,earliest_open,HIGH,2000000000,") {
		t.Errorf("Unexpected JTO row: %s", lines[1])
	}
	if !strings.HasSuffix(lines[2], ",0,0,0,boom") {
		t.Errorf("Unexpected failure row: %s", lines[2])
	}
}
