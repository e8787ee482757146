package reporting

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"token-listing-lab/internal/observability"
)

// RenderCSV renders report as a sectioned CSV string. Each section starts
// with a "# <title>" row and is separated from the next by an empty row.
func RenderCSV(r *Report) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	// Token
	rows := [][]string{
		{"# Token Information"},
		{"field", "value"},
		{"analysis_id", r.AnalysisID},
		{"analyzed_at", r.AnalyzedAt.UTC().Format(time.RFC3339)},
		{"token_id", r.Token.ID},
		{"symbol", r.Token.Symbol},
		{"name", r.Token.Name},
		{"mint", r.Token.Mint},
		{"categories", strings.Join(r.Token.Categories, "; ")},
		{},
	}

	// Reference price
	rows = append(rows, []string{"# Initial Listing"})
	rows = append(rows, []string{"price_usd", "timestamp", "venue", "pair", "method", "confidence"})
	if rp := r.Price; rp != nil {
		rows = append(rows, []string{
			strconv.FormatFloat(rp.Price, 'f', -1, 64),
			rp.Timestamp.UTC().Format(time.RFC3339),
			rp.Venue,
			rp.Pair,
			string(rp.Method),
			string(rp.Confidence),
		})
	}
	rows = append(rows, []string{})

	// Valuation and supply
	rows = append(rows, []string{"# Metrics"})
	rows = append(rows, []string{"metric", "value", "unit", "confidence", "source"})
	for _, m := range append(append([]MetricRow{}, r.Valuation...), r.Supply...) {
		rows = append(rows, []string{m.Name, floatCell(m.Value), m.Unit, string(m.Confidence), m.Source})
	}
	rows = append(rows, []string{})

	// Allocation
	rows = append(rows, []string{"# Token Allocation"})
	rows = append(rows, []string{"bucket", "display_name", "percentage", "original_labels", "sources", "vesting", "confidence"})
	for _, a := range r.Allocations {
		rows = append(rows, []string{
			string(a.Bucket),
			a.DisplayName,
			floatCell(a.Percentage),
			strings.Join(a.OriginalLabels, "; "),
			joinSources(a.Sources, "; "),
			a.Vesting,
			string(a.Confidence),
		})
	}
	rows = append(rows, []string{"TOTAL", "", floatCell(r.AllocationTotal), "complete=" + strconv.FormatBool(r.AllocationComplete)})

	// Conflicts
	if len(r.Conflicts) > 0 {
		rows = append(rows, []string{}, []string{"# Allocation Conflicts"})
		rows = append(rows, []string{"bucket", "discrepancy_pct", "values", "resolution"})
		for _, c := range r.Conflicts {
			rows = append(rows, []string{
				string(c.Bucket),
				strconv.FormatFloat(c.DiscrepancyPct, 'f', 2, 64),
				formatValues(c.Values),
				c.Resolution,
			})
		}
	}

	// Quality flags
	if len(r.QualityFlags) > 0 {
		rows = append(rows, []string{}, []string{"# Data Quality Flags"})
		rows = append(rows, []string{"field", "issue", "severity", "suggestion"})
		for _, f := range r.QualityFlags {
			rows = append(rows, []string{f.Field, f.Issue, string(f.Severity), f.Suggestion})
		}
	}

	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}

	observability.RecordReport(FormatCSV)
	return sb.String(), nil
}

// RenderComparisonCSV renders comparison rows as CSV, one row per analysis.
func RenderComparisonCSV(rows []ComparisonRow) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	records := [][]string{{
		"token", "analysis_id", "analyzed_at", "price_usd", "venue", "method", "confidence",
		"fdv", "market_cap", "total_raised", "fdv_to_raised", "allocation_total",
		"conflicts", "warnings", "errors", "failure",
	}}
	for _, r := range rows {
		analyzed := ""
		if !r.AnalyzedAt.IsZero() {
			analyzed = r.AnalyzedAt.UTC().Format(time.RFC3339)
		}
		records = append(records, []string{
			r.Token,
			r.AnalysisID,
			analyzed,
			floatCell(r.Price),
			r.Venue,
			string(r.Method),
			string(r.Confidence),
			floatCell(r.FDV),
			floatCell(r.MarketCap),
			floatCell(r.TotalRaised),
			floatCell(r.FDVToRaised),
			floatCell(r.AllocTotal),
			strconv.Itoa(r.Conflicts),
			strconv.Itoa(r.Warnings),
			strconv.Itoa(r.Errors),
			r.Failure,
		})
	}

	if err := w.WriteAll(records); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}

	observability.RecordReport(FormatComparison)
	return sb.String(), nil
}

// floatCell formats an optional number; unknown is an empty cell.
func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
