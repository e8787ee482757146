package domain

import "time"

// SupplyData holds token supply figures. Any field may be unknown.
type SupplyData struct {
	TotalSupply           *float64   `json:"total_supply,omitempty"`
	MaxSupply             *float64   `json:"max_supply,omitempty"`
	CirculatingCurrent    *float64   `json:"circulating_current,omitempty"`
	CirculatingAtListing  *float64   `json:"circulating_at_listing,omitempty"`
	CirculatingSource     DataSource `json:"circulating_source,omitempty"`
	CirculatingIsEstimate bool       `json:"circulating_is_estimate"`
	EstimationMethod      string     `json:"estimation_method,omitempty"`
	Source                DataSource `json:"source,omitempty"`
}

// FullyDilutedSupply returns max supply when positive, else total supply.
func (s SupplyData) FullyDilutedSupply() *float64 {
	if s.MaxSupply != nil && *s.MaxSupply > 0 {
		return s.MaxSupply
	}
	return s.TotalSupply
}

// FundraisingRound is a single priced or unpriced raise.
type FundraisingRound struct {
	Name      string     `json:"name"`
	Date      *time.Time `json:"date,omitempty"`
	RaisedUSD *float64   `json:"raised_usd,omitempty"`
	Price     *float64   `json:"price,omitempty"`
	Investors []string   `json:"investors,omitempty"`
}

// FundraisingData aggregates fundraising rounds.
type FundraisingData struct {
	TotalRaised *float64           `json:"total_raised,omitempty"`
	Rounds      []FundraisingRound `json:"rounds,omitempty"`
	Source      DataSource         `json:"source,omitempty"`
}

// ValuationMetrics are the figures derived from price, supply and fundraising.
type ValuationMetrics struct {
	InitialPrice        float64    `json:"initial_price"`
	InitialMarketCap    *float64   `json:"initial_market_cap,omitempty"`
	InitialFDV          *float64   `json:"initial_fdv,omitempty"`
	TotalRaised         *float64   `json:"total_raised,omitempty"`
	FDVToRaised         *float64   `json:"fdv_to_raised,omitempty"`
	MarketCapConfidence Confidence `json:"market_cap_confidence"`
	FDVConfidence       Confidence `json:"fdv_confidence"`
	Notes               []string   `json:"notes"`
}
