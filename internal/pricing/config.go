// Package pricing selects a single reference listing price from candidate
// exchange listings.
package pricing

import (
	"strings"
	"time"
)

// DefaultReliability scores venues by data quality. Unknown venues score
// DefaultUnknownReliability.
var DefaultReliability = map[string]int{
	"binance":   100,
	"coinbase":  95,
	"okx":       90,
	"kraken":    90,
	"bybit":     85,
	"kucoin":    80,
	"gateio":    75,
	"htx":       70,
	"coingecko": 50,
}

const (
	DefaultUnknownReliability = 50
	DefaultMinVolumeQuote     = 1000.0
	DefaultMaxDeviationPct    = 50.0
	DefaultCandidateWindow    = time.Hour

	// HighConfidenceReliability is the venue score that alone earns HIGH confidence.
	HighConfidenceReliability = 90

	// consensusDeviationPct bounds the distance from the consensus mean for HIGH confidence.
	consensusDeviationPct = 5.0
	consensusMinListings  = 3
	consensusSampleSize   = 5
	outlierMinListings    = 3
)

var stablecoinQuotes = map[string]struct{}{
	"USDT": {}, "USDC": {}, "USD": {}, "BUSD": {}, "DAI": {}, "TUSD": {},
}

// SelectorConfig tunes filtering and ranking.
type SelectorConfig struct {
	MinVolumeQuote        float64        // listings with known quote volume below this are dropped
	MaxDeviationPct       float64        // outlier cut-off from the median open
	CandidateWindow       time.Duration  // listings within this of the earliest compete
	PreferStablecoinQuote bool           // rank stablecoin-quoted pairs first on equal timestamps
	Reliability           map[string]int // venue -> score
	DefaultReliability    int            // score for venues missing from Reliability
}

// DefaultSelectorConfig returns the standard configuration.
func DefaultSelectorConfig() SelectorConfig {
	rel := make(map[string]int, len(DefaultReliability))
	for k, v := range DefaultReliability {
		rel[k] = v
	}
	return SelectorConfig{
		MinVolumeQuote:        DefaultMinVolumeQuote,
		MaxDeviationPct:       DefaultMaxDeviationPct,
		CandidateWindow:       DefaultCandidateWindow,
		PreferStablecoinQuote: true,
		Reliability:           rel,
		DefaultReliability:    DefaultUnknownReliability,
	}
}

func (c SelectorConfig) withDefaults() SelectorConfig {
	def := DefaultSelectorConfig()
	if c.MinVolumeQuote < 0 {
		c.MinVolumeQuote = def.MinVolumeQuote
	}
	if c.MaxDeviationPct <= 0 {
		c.MaxDeviationPct = def.MaxDeviationPct
	}
	if c.CandidateWindow <= 0 {
		c.CandidateWindow = def.CandidateWindow
	}
	if c.Reliability == nil {
		c.Reliability = def.Reliability
	}
	if c.DefaultReliability <= 0 {
		c.DefaultReliability = def.DefaultReliability
	}
	return c
}

func (c SelectorConfig) reliability(venue string) int {
	if score, ok := c.Reliability[strings.ToLower(venue)]; ok {
		return score
	}
	return c.DefaultReliability
}

// IsStablecoinQuote reports whether the quote currency is a USD stablecoin.
// The quote is taken from quote, or from the part of pair after "/".
func IsStablecoinQuote(pair, quote string) bool {
	q := quote
	if q == "" {
		if i := strings.Index(pair, "/"); i >= 0 {
			q = pair[i+1:]
		}
	}
	if i := strings.Index(q, ":"); i >= 0 {
		q = q[:i]
	}
	_, ok := stablecoinQuotes[strings.ToUpper(strings.TrimSpace(q))]
	return ok
}
