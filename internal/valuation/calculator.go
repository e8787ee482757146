package valuation

import (
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/logger"
)

// ManualOverrideMethod is recorded when an analyst supplies the circulating figure.
const ManualOverrideMethod = "Manual override provided"

// Override carries analyst-provided supply figures.
type Override struct {
	CirculatingAtListing *float64
	TotalSupply          *float64
}

// Calculator computes valuation metrics. It holds no per-run state.
type Calculator struct {
	log     logrus.FieldLogger
	printer *message.Printer
}

// NewCalculator creates a calculator.
func NewCalculator(log logrus.FieldLogger) *Calculator {
	return &Calculator{
		log:     logger.Component(log, "valuation"),
		printer: message.NewPrinter(language.English),
	}
}

// Calculate derives FDV, market cap and FDV/raised. Missing operands leave
// the corresponding field nil and add a note saying why.
func (c *Calculator) Calculate(price *domain.ReferencePrice, supply *domain.SupplyData, fundraising *domain.FundraisingData) *domain.ValuationMetrics {
	m := &domain.ValuationMetrics{
		MarketCapConfidence: domain.ConfidenceUnknown,
		FDVConfidence:       domain.ConfidenceUnknown,
	}

	var p float64
	if price != nil && positive(&price.Price) {
		p = price.Price
	}
	m.InitialPrice = p

	var s domain.SupplyData
	if supply != nil {
		s = *supply
	}

	fds := s.FullyDilutedSupply()
	if positive(fds) && p > 0 {
		fdv := CalcFDV(*fds, p)
		m.InitialFDV = &fdv
		m.FDVConfidence = domain.ConfidenceHigh
		m.Notes = append(m.Notes, c.printer.Sprintf("FDV = %.0f tokens × $%.6f = $%.0f", *fds, p, fdv))
		if s.MaxSupply != nil && *s.MaxSupply == *fds {
			m.Notes = append(m.Notes, "Using max supply for FDV calculation")
		} else {
			m.Notes = append(m.Notes, "Using total supply for FDV calculation")
		}
	} else {
		m.Notes = append(m.Notes, "FDV could not be calculated: missing supply or price data")
	}

	circ := s.CirculatingAtListing
	if positive(circ) && p > 0 {
		mc := CalcMarketCap(*circ, p)
		m.InitialMarketCap = &mc
		m.Notes = append(m.Notes, c.printer.Sprintf("Market Cap = %.0f tokens × $%.6f = $%.0f", *circ, p, mc))
		if s.CirculatingIsEstimate {
			m.MarketCapConfidence = domain.ConfidenceLow
			method := s.EstimationMethod
			if method == "" {
				method = "unknown"
			}
			m.Notes = append(m.Notes, "WARNING: Circulating supply at listing is ESTIMATED. Method: "+method)
		} else {
			m.MarketCapConfidence = domain.ConfidenceHigh
		}
	} else {
		m.Notes = append(m.Notes, "Market Cap could not be calculated: circulating supply at listing is unknown. "+
			"Provide manual_circulating_supply for accurate calculation.")
	}

	if fundraising != nil && finite(fundraising.TotalRaised) {
		raised := *fundraising.TotalRaised
		m.TotalRaised = &raised
	}

	switch {
	case m.InitialFDV == nil:
		m.Notes = append(m.Notes, "FDV/Raised ratio not available: FDV could not be calculated")
	case m.TotalRaised == nil:
		m.Notes = append(m.Notes, "FDV/Raised ratio not available: no fundraising data")
	case *m.TotalRaised <= 0:
		m.Notes = append(m.Notes, c.printer.Sprintf("FDV/Raised ratio not available: total raised is $%.0f", *m.TotalRaised))
	default:
		ratio, err := CalcFDVToRaised(*m.InitialFDV, *m.TotalRaised)
		if err == nil {
			m.FDVToRaised = &ratio
			m.Notes = append(m.Notes, c.printer.Sprintf("FDV/Raised = $%.0f / $%.0f = %.1fx", *m.InitialFDV, *m.TotalRaised, ratio))
		}
	}

	c.log.WithFields(logrus.Fields{
		"price":      p,
		"fdv":        fmtOpt(m.InitialFDV),
		"market_cap": fmtOpt(m.InitialMarketCap),
	}).Debug("valuation computed")
	return m
}

// CalculateWithOverride substitutes analyst-provided supply figures before
// running Calculate. An overridden circulating figure is never an estimate.
func (c *Calculator) CalculateWithOverride(price *domain.ReferencePrice, supply *domain.SupplyData, fundraising *domain.FundraisingData, o Override) *domain.ValuationMetrics {
	return c.Calculate(price, ApplyOverride(supply, o), fundraising)
}

// ApplyOverride returns a copy of supply with the override applied.
func ApplyOverride(supply *domain.SupplyData, o Override) *domain.SupplyData {
	var s domain.SupplyData
	if supply != nil {
		s = *supply
	}
	if o.TotalSupply != nil {
		v := *o.TotalSupply
		s.TotalSupply = &v
	}
	if o.CirculatingAtListing != nil {
		v := *o.CirculatingAtListing
		s.CirculatingAtListing = &v
		s.CirculatingIsEstimate = false
		s.EstimationMethod = ManualOverrideMethod
		s.CirculatingSource = domain.SourceManual
	}
	return &s
}

// EstimateCirculatingAtListing sums the TGE unlocks of every mapped bucket
// that carries both a percentage and a TGE unlock. It returns nil when no
// bucket contributes.
func EstimateCirculatingAtListing(total float64, allocs []domain.MappedAllocation) (*float64, string) {
	if !positive(&total) {
		return nil, ""
	}
	var sum float64
	var used []string
	for _, a := range allocs {
		if !finite(a.Percentage) || a.Vesting == nil || !finite(a.Vesting.TGEUnlockPct) {
			continue
		}
		sum += CalcUnlockedTokens(total, *a.Percentage, *a.Vesting.TGEUnlockPct)
		used = append(used, string(a.Bucket))
	}
	if len(used) == 0 {
		return nil, ""
	}
	method := fmt.Sprintf("Sum of TGE unlocks across %d of %d allocation buckets (%s)",
		len(used), len(allocs), strings.Join(used, ", "))
	return &sum, method
}

// finite reports whether v is set and neither NaN nor infinite. Decimal
// arithmetic panics on either.
func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

func positive(v *float64) bool {
	return finite(v) && *v > 0
}

func fmtOpt(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
