package reporting

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/observability"
)

// Report format labels used for metrics.
const (
	FormatMarkdown   = "markdown"
	FormatCSV        = "csv"
	FormatAudit      = "audit"
	FormatComparison = "comparison"
)

const notAvailable = "N/A"

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	p := message.NewPrinter(language.English)
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Listing Analysis: %s\n\n", cell(tokenName(r.Token))))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Analysis ID: `%s` | Analyzed: %s\n\n", r.AnalysisID, r.AnalyzedAt.Format(time.RFC3339)))

	// Token
	sb.WriteString("## Token\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| ID | %s |\n", cell(r.Token.ID)))
	sb.WriteString(fmt.Sprintf("| Symbol | %s |\n", cell(r.Token.Symbol)))
	sb.WriteString(fmt.Sprintf("| Name | %s |\n", cell(r.Token.Name)))
	if r.Token.Chain != "" {
		sb.WriteString(fmt.Sprintf("| Chain | %s |\n", cell(r.Token.Chain)))
	}
	if r.Token.Mint != "" {
		sb.WriteString(fmt.Sprintf("| Mint | `%s` |\n", r.Token.Mint))
	}
	if len(r.Token.Categories) > 0 {
		sb.WriteString(fmt.Sprintf("| Categories | %s |\n", cell(strings.Join(r.Token.Categories, ", "))))
	}
	sb.WriteString("\n")

	// Reference price
	sb.WriteString("## Initial Listing Price\n\n")
	if rp := r.Price; rp != nil {
		sb.WriteString("| Field | Value |\n")
		sb.WriteString("|-------|-------|\n")
		sb.WriteString(p.Sprintf("| Price | $%.6f |\n", rp.Price))
		sb.WriteString(fmt.Sprintf("| Timestamp | %s |\n", rp.Timestamp.UTC().Format("2006-01-02 15:04 UTC")))
		sb.WriteString(fmt.Sprintf("| Venue | %s |\n", cell(rp.Venue)))
		sb.WriteString(fmt.Sprintf("| Pair | %s |\n", cell(orNA(rp.Pair))))
		sb.WriteString(fmt.Sprintf("| Method | %s |\n", rp.Method))
		sb.WriteString(fmt.Sprintf("| Confidence | %s |\n", rp.Confidence))
		if rp.Notes != "" {
			sb.WriteString(fmt.Sprintf("| Notes | %s |\n", cell(rp.Notes)))
		}
	} else {
		sb.WriteString("Not determined. Provide a manual price override.\n")
	}
	sb.WriteString("\n")

	// Listings
	if len(r.Listings) > 0 {
		sb.WriteString("### Exchange Listings\n\n")
		sb.WriteString("| Venue | Pair | First Candle | Open | Close | Volume | Status |\n")
		sb.WriteString("|-------|------|--------------|------|-------|--------|--------|\n")
		for _, l := range r.Listings {
			ts := notAvailable
			if l.Timestamp != nil {
				ts = l.Timestamp.UTC().Format("2006-01-02 15:04")
			}
			status := "OK"
			if l.Error != "" {
				status = "ERROR: " + l.Error
			} else if l.Timestamp == nil {
				status = "NO DATA"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s |\n",
				cell(l.Venue), cell(l.Pair), ts,
				formatPrice(p, l.Open), formatPrice(p, l.Close), formatAmount(p, l.Volume), cell(status)))
		}
		sb.WriteString("\n")
	}

	// DEX stabilization
	sb.WriteString("## DEX Stabilization\n\n")
	if s := r.Stabilization; s != nil {
		sb.WriteString(p.Sprintf("Converged at %s: $%.6f across %d venues, spread %.3f%%, %d swaps (%s).\n\n",
			s.Hour.UTC().Format("2006-01-02 15:04 UTC"), s.ReferencePrice, len(s.VenuePrices), s.SpreadPct, s.TotalSwaps, s.Confidence))
		sb.WriteString("| Venue | Price |\n")
		sb.WriteString("|-------|-------|\n")
		for _, v := range slices.Sorted(maps.Keys(s.VenuePrices)) {
			sb.WriteString(p.Sprintf("| %s | $%.6f |\n", cell(v), s.VenuePrices[v]))
		}
	} else {
		sb.WriteString("No converged hour found.\n")
	}
	sb.WriteString("\n")

	// Valuation
	sb.WriteString("## Valuation Metrics\n\n")
	writeMetricTable(&sb, p, r.Valuation, "No valuation available.")

	// Supply
	sb.WriteString("## Supply\n\n")
	writeMetricTable(&sb, p, r.Supply, "No supply data available.")

	// Allocation
	sb.WriteString("## Token Allocation\n\n")
	if len(r.Allocations) > 0 {
		sb.WriteString("| Bucket | % | Vesting | Sources | Original Labels |\n")
		sb.WriteString("|--------|---|---------|---------|-----------------|\n")
		for _, a := range r.Allocations {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				cell(a.DisplayName), formatPct(a.Percentage), cell(a.Vesting),
				joinSources(a.Sources, ", "), cell(strings.Join(a.OriginalLabels, "; "))))
		}
		complete := "Incomplete"
		if r.AllocationComplete {
			complete = "Complete"
		}
		sb.WriteString(fmt.Sprintf("| **TOTAL** | **%s** | %s | | |\n", formatPct(r.AllocationTotal), complete))
	} else {
		sb.WriteString("No allocation data available.\n")
	}
	sb.WriteString("\n")

	// Conflicts
	if len(r.Conflicts) > 0 {
		sb.WriteString("### Allocation Conflicts\n\n")
		sb.WriteString("| Bucket | Discrepancy | Values | Resolution |\n")
		sb.WriteString("|--------|-------------|--------|------------|\n")
		for _, c := range r.Conflicts {
			sb.WriteString(fmt.Sprintf("| %s | %.1f%% | %s | %s |\n",
				c.Bucket.DisplayName(), c.DiscrepancyPct, formatValues(c.Values), cell(c.Resolution)))
		}
		sb.WriteString("\n")
	}

	// Quality flags
	sb.WriteString("## Data Quality Flags\n\n")
	if len(r.QualityFlags) > 0 {
		sb.WriteString("| Severity | Field | Issue | Suggestion |\n")
		sb.WriteString("|----------|-------|-------|------------|\n")
		for _, f := range r.QualityFlags {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				strings.ToUpper(string(f.Severity)), cell(f.Field), cell(f.Issue), cell(f.Suggestion)))
		}
	} else {
		sb.WriteString("No data quality issues.\n")
	}
	sb.WriteString("\n")

	// Sources
	sb.WriteString("## Data Sources\n\n")
	if len(r.Sources) > 0 {
		sb.WriteString("| Source | Status | Calls | Succeeded |\n")
		sb.WriteString("|--------|--------|-------|-----------|\n")
		for _, s := range r.Sources {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d |\n", s.Source, sourceStatus(s), s.Calls, s.Succeeded))
		}
	} else {
		sb.WriteString("No source calls recorded.\n")
	}
	sb.WriteString("\n")

	observability.RecordReport(FormatMarkdown)
	return sb.String()
}

// RenderComparisonMarkdown renders a batch or history table.
func RenderComparisonMarkdown(rows []ComparisonRow) string {
	p := message.NewPrinter(language.English)
	var sb strings.Builder

	sb.WriteString("# Listing Comparison\n\n")
	if len(rows) == 0 {
		sb.WriteString("No analyses.\n")
		observability.RecordReport(FormatComparison)
		return sb.String()
	}

	sb.WriteString("| Token | Price | Venue | Confidence | FDV | Market Cap | Raised | FDV/Raised | Alloc % | Conflicts | Warnings | Errors |\n")
	sb.WriteString("|-------|-------|-------|------------|-----|------------|--------|------------|---------|-----------|----------|--------|\n")
	for _, r := range rows {
		if r.Failure != "" {
			sb.WriteString(fmt.Sprintf("| %s | FAILED: %s | | | | | | | | | | |\n", cell(r.Token), cell(r.Failure)))
			continue
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s | %s | %s | %d | %d | %d |\n",
			cell(r.Token), formatPrice(p, r.Price), cell(orNA(r.Venue)), r.Confidence,
			formatUSD(p, r.FDV), formatUSD(p, r.MarketCap), formatUSD(p, r.TotalRaised),
			formatRatio(r.FDVToRaised), formatPct(r.AllocTotal), r.Conflicts, r.Warnings, r.Errors))
	}
	sb.WriteString("\n")

	observability.RecordReport(FormatComparison)
	return sb.String()
}

func writeMetricTable(sb *strings.Builder, p *message.Printer, rows []MetricRow, empty string) {
	if len(rows) == 0 {
		sb.WriteString(empty + "\n\n")
		return
	}
	sb.WriteString("| Metric | Value | Confidence | Source |\n")
	sb.WriteString("|--------|-------|------------|--------|\n")
	for _, m := range rows {
		conf := string(m.Confidence)
		if conf == "" {
			conf = "-"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", m.Name, formatMetric(p, m), conf, cell(orNA(m.Source))))
	}
	sb.WriteString("\n")
}

func formatMetric(p *message.Printer, m MetricRow) string {
	switch m.Unit {
	case "usd":
		return formatUSD(p, m.Value)
	case "ratio":
		return formatRatio(m.Value)
	}
	return formatAmount(p, m.Value)
}

func formatUSD(p *message.Printer, v *float64) string {
	if v == nil {
		return notAvailable
	}
	return p.Sprintf("$%.0f", *v)
}

func formatPrice(p *message.Printer, v *float64) string {
	if v == nil {
		return notAvailable
	}
	return p.Sprintf("$%.6f", *v)
}

func formatAmount(p *message.Printer, v *float64) string {
	if v == nil {
		return notAvailable
	}
	return p.Sprintf("%.0f", *v)
}

func formatRatio(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return fmt.Sprintf("%.1fx", *v)
}

func formatPct(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return fmt.Sprintf("%.2f%%", *v)
}

func formatValues(values []SourceValue) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprintf("%s=%.1f%%", v.Source, v.Value))
	}
	return strings.Join(parts, "; ")
}

func joinSources(sources []domain.DataSource, sep string) string {
	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, sep)
}

func sourceStatus(s SourceSummaryRow) string {
	if s.OK() {
		return "OK"
	}
	return "FAILED"
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

// cell escapes text for a Markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
