package domain

import "time"

// Candle is a single OHLCV observation.
type Candle struct {
	Timestamp   time.Time `json:"timestamp"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
	VolumeQuote *float64  `json:"volume_quote,omitempty"` // volume in quote currency (nullable)
}

// IsValid reports whether all OHLC values are positive and high >= low.
func (c Candle) IsValid() bool {
	return c.Open > 0 && c.High > 0 && c.Low > 0 && c.Close > 0 && c.High >= c.Low
}

// Listing is a venue's first-trade observation for a token.
type Listing struct {
	Venue     string  `json:"venue"`
	Pair      string  `json:"pair"`
	Base      string  `json:"base"`
	Quote     string  `json:"quote"`
	Timeframe string  `json:"timeframe,omitempty"`
	Candle    *Candle `json:"candle,omitempty"`
	Error     string  `json:"error,omitempty"` // empty when the fetch succeeded
}

// HasData reports whether a candle is present and the fetch succeeded.
func (l Listing) HasData() bool {
	return l.Candle != nil && l.Error == ""
}

// ReferencePrice is the selected initial listing price.
type ReferencePrice struct {
	Price      float64              `json:"price"`
	Timestamp  time.Time            `json:"timestamp"`
	Method     PriceSelectionMethod `json:"method"`
	Venue      string               `json:"venue"`
	Pair       string               `json:"pair"`
	Confidence Confidence           `json:"confidence"`
	Notes      string               `json:"notes,omitempty"`
}
