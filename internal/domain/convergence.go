package domain

import "time"

// VenueHourlyPrice is an hourly on-chain swap aggregate for one venue.
type VenueHourlyPrice struct {
	Hour      time.Time `json:"hour"` // truncated to the hour
	Venue     string    `json:"venue"`
	AvgPrice  *float64  `json:"avg_price,omitempty"`
	SwapCount int       `json:"swap_count"`
	Volume    *float64  `json:"volume,omitempty"`
}

// StabilizationResult describes the first hour in which venues converged.
type StabilizationResult struct {
	Hour           time.Time          `json:"hour"`
	ReferencePrice float64            `json:"reference_price"` // swap-weighted
	SpreadPct      float64            `json:"spread_pct"`
	Confidence     Confidence         `json:"confidence"`
	VenuePrices    map[string]float64 `json:"venue_prices"`
	TotalSwaps     int                `json:"total_swaps"`
}
