package reporting

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/observability"
)

const (
	auditRule    = 70
	sectionRule  = 40
	maxEndpoints = 3
)

// RenderAuditTrail renders the plain-text audit of one analysis: sources
// consulted, how the price and supply were obtained, allocation mapping,
// quality flags, every recorded call and the estimates used.
func RenderAuditTrail(r *domain.ListingResult) string {
	var sb strings.Builder
	line := func(format string, args ...any) {
		sb.WriteString(fmt.Sprintf(format, args...))
		sb.WriteString("\n")
	}
	section := func(title string) {
		line("%s", title)
		line("%s", strings.Repeat("-", sectionRule))
	}

	line("%s", strings.Repeat("=", auditRule))
	line("AUDIT TRAIL SUMMARY")
	line("%s", strings.Repeat("=", auditRule))
	line("")
	line("Analysis ID: %s", r.AnalysisID)
	line("Analysis Timestamp: %s", r.AnalyzedAt.UTC().Format(time.RFC3339))
	line("Token: %s (%s)", r.Token.Symbol, r.Token.ID)
	line("")

	section("DATA SOURCES CONSULTED")
	for _, s := range summarizeSources(r.AuditTrail) {
		line("  %s: %s", s.Source, sourceStatus(s))
		line("    - Calls: %d (%d successful)", s.Calls, s.Succeeded)
		for i, ep := range s.Endpoints {
			if i == maxEndpoints {
				break
			}
			line("    - Endpoint: %s", ep)
		}
	}
	line("")

	section("INITIAL PRICE SOURCE")
	if rp := r.ReferencePrice; rp != nil {
		line("  Exchange: %s", rp.Venue)
		line("  Pair: %s", orNA(rp.Pair))
		line("  Selection Method: %s", rp.Method)
		line("  Confidence: %s", rp.Confidence)
		if rp.Notes != "" {
			line("  Notes: %s", rp.Notes)
		}
	} else {
		line("  NOT AVAILABLE - no valid price data found")
	}
	line("")

	section("SUPPLY DATA")
	if s := r.Supply; s != nil {
		src := s.Source
		if src == "" {
			src = domain.SourceUnknown
		}
		line("  Total Supply Source: %s", src)
		circ := s.CirculatingSource
		if circ == "" {
			circ = domain.SourceUnknown
		}
		line("  Circulating at Listing: %s", circ)
		if s.CirculatingIsEstimate {
			line("  ESTIMATE METHOD: %s", s.EstimationMethod)
		} else if s.CirculatingAtListing != nil {
			line("  Circulating supply is VERIFIED (not estimated)")
		} else {
			line("  Circulating supply at listing is UNKNOWN")
		}
	} else {
		line("  NOT AVAILABLE")
	}
	line("")

	section("ALLOCATION MAPPING")
	if a := r.Allocations; a != nil {
		line("  Sources: %s", joinSources(a.SourcesUsed, ", "))
		line("  Raw allocations: %d", len(a.Raw))
		line("  Mapped buckets: %d", len(a.Mapped))
		line("  Conflicts detected: %d", len(a.Conflicts))
		if a.TotalPercentage != nil {
			line("  Total percentage: %.1f%%", *a.TotalPercentage)
		}
		line("  Complete (95-105%%): %t", a.IsComplete)

		if len(a.Conflicts) > 0 {
			line("")
			line("  CONFLICTS:")
			for _, c := range conflictRows(a.Conflicts) {
				line("    - %s: %.1f%% discrepancy", c.Bucket, c.DiscrepancyPct)
				for _, v := range c.Values {
					line("      %s: %.1f%%", v.Source, v.Value)
				}
				if c.Resolution != "" {
					line("      Resolution: %s", c.Resolution)
				}
			}
		}
	} else {
		line("  NOT AVAILABLE")
	}
	line("")

	if len(r.QualityFlags) > 0 {
		section("DATA QUALITY FLAGS")
		for _, f := range r.QualityFlags {
			line("  [%s] %s", strings.ToUpper(string(f.Severity)), f.Field)
			line("    Issue: %s", f.Issue)
			if f.Suggestion != "" {
				line("    Suggestion: %s", f.Suggestion)
			}
		}
		line("")
	}

	section("DETAILED API CALLS")
	for _, e := range r.AuditTrail {
		status := "OK"
		if !e.Success {
			status = "FAILED"
		}
		duration := notAvailable
		if e.DurationMs > 0 {
			duration = fmt.Sprintf("%dms", e.DurationMs)
		}
		line("  [%s] %s %s", e.Timestamp.UTC().Format("15:04:05"), e.Source, e.Action)
		line("    Endpoint: %s", orNA(e.Endpoint))
		line("    Status: %s, Duration: %s", status, duration)
		if e.ErrorMessage != "" {
			line("    Error: %s", e.ErrorMessage)
		}
		if e.Notes != "" {
			line("    Notes: %s", e.Notes)
		}
	}
	line("")

	writeEstimates(&sb, r)
	line("")

	line("%s", strings.Repeat("=", auditRule))
	line("END OF AUDIT TRAIL")
	line("%s", strings.Repeat("=", auditRule))

	observability.RecordReport(FormatAudit)
	return sb.String()
}

// writeEstimates lists every value that was estimated rather than sourced.
func writeEstimates(sb *strings.Builder, r *domain.ListingResult) {
	p := message.NewPrinter(language.English)
	sb.WriteString("ESTIMATION METHODS USED\n")
	sb.WriteString(strings.Repeat("-", sectionRule) + "\n")

	found := false
	if s := r.Supply; s != nil && s.CirculatingIsEstimate {
		found = true
		sb.WriteString("  Circulating supply at listing: ESTIMATED\n")
		sb.WriteString(fmt.Sprintf("    Method: %s\n", s.EstimationMethod))
		if s.CirculatingAtListing != nil {
			sb.WriteString(p.Sprintf("    Value: %.0f tokens\n", *s.CirculatingAtListing))
		}
		sb.WriteString("    Impact: initial market cap uses this estimate; provide a manual circulating supply for an exact figure.\n")
	}
	if v := r.Valuation; v != nil && (v.MarketCapConfidence == domain.ConfidenceLow || v.MarketCapConfidence == domain.ConfidenceUnknown) {
		found = true
		sb.WriteString(fmt.Sprintf("  Initial market cap confidence: %s\n", v.MarketCapConfidence))
		sb.WriteString("    Reason: circulating supply at listing is estimated or unknown\n")
	}
	if rp := r.ReferencePrice; rp != nil && rp.Notes != "" {
		found = true
		sb.WriteString(fmt.Sprintf("  Price selection: %s\n", rp.Notes))
	}
	if !found {
		sb.WriteString("  None. All values are from primary sources.\n")
	}
}
