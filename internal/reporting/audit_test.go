package reporting

import (
	"strings"
	"testing"

	"token-listing-lab/internal/domain"
)

func TestRenderAuditTrail_Sections(t *testing.T) {
	out := RenderAuditTrail(sampleResult())

	requiredSections := []string{
		"AUDIT TRAIL SUMMARY",
		"DATA SOURCES CONSULTED",
		"INITIAL PRICE SOURCE",
		"SUPPLY DATA",
		"ALLOCATION MAPPING",
		"DATA QUALITY FLAGS",
		"DETAILED API CALLS",
		"ESTIMATION METHODS USED",
		"END OF AUDIT TRAIL",
	}
	last := -1
	for _, section := range requiredSections {
		idx := strings.Index(out, section)
		if idx < 0 {
			t.Errorf("Audit trail missing section: %s", section)
			continue
		}
		if idx < last {
			t.Errorf("Section %s out of order", section)
		}
		last = idx
	}
}

func TestRenderAuditTrail_Content(t *testing.T) {
	out := RenderAuditTrail(sampleResult())

	for _, want := range []string{
		"Token: JTO (jito-governance-token)",
		"  ccxt: OK\n    - Calls: 2 (1 successful)\n    - Endpoint: binance\n    - Endpoint: okx",
		"  flipside: FAILED",
		"  Exchange: binance",
		"  Selection Method: earliest_open",
		"  ESTIMATE METHOD: TGE unlock sum across buckets",
		"  Total percentage: 40.7%",
		"  Complete (95-105%): false",
		"    - investors: 6.2% discrepancy\n      cryptorank: 16.2%\n      dropstab: 10.0%",
		"  [WARNING] allocation_total",
		"    Suggestion: Verify against the whitepaper",
		"    Status: FAILED, Duration: 80ms\n    Error: rate limited",
		"    Status: FAILED, Duration: N/A\n    Error: timeout",
		"    Value: 115,000,000 tokens",
		"  Initial market cap confidence: LOW",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Audit trail missing %q", want)
		}
	}
}

func TestRenderAuditTrail_Missing(t *testing.T) {
	out := RenderAuditTrail(&domain.ListingResult{
		AnalysisID: "empty",
		Token:      domain.TokenInfo{ID: "x", Symbol: "X"},
	})

	for _, want := range []string{
		"  NOT AVAILABLE - no valid price data found",
		"  None. All values are from primary sources.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Audit trail missing %q", want)
		}
	}
}
