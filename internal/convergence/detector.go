// Package convergence finds the hour at which independent DEX venues agree
// on a token's price.
package convergence

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/logger"
)

// Confidence thresholds. The HIGH bound is strict, the MEDIUM bound inclusive.
const (
	highSpreadPct    = 0.5
	highMinVenues    = 4
	mediumSpreadPct  = 1.0
	mediumMinVenues  = 3
	dexReferenceName = "dex"
)

// Config controls convergence detection.
type Config struct {
	MaxHours         int     // hours examined from the earliest hour in the input
	MaxSpreadPct     float64 // (max-min)/min*100 must not exceed this
	MinVenueCount    int     // qualifying venues required in the hour
	MinSwapsPerVenue int     // swaps a venue needs in the hour to qualify
}

// DefaultConfig returns the standard detection parameters.
func DefaultConfig() Config {
	return Config{
		MaxHours:         24,
		MaxSpreadPct:     1.0,
		MinVenueCount:    3,
		MinSwapsPerVenue: 10,
	}
}

// Detector finds the first converged hour. It is stateless.
type Detector struct {
	cfg Config
	log logrus.FieldLogger
}

// NewDetector creates a detector. Non-positive fields take defaults.
func NewDetector(cfg Config, log logrus.FieldLogger) *Detector {
	def := DefaultConfig()
	if cfg.MaxHours <= 0 {
		cfg.MaxHours = def.MaxHours
	}
	if cfg.MaxSpreadPct <= 0 {
		cfg.MaxSpreadPct = def.MaxSpreadPct
	}
	if cfg.MinVenueCount <= 0 {
		cfg.MinVenueCount = def.MinVenueCount
	}
	if cfg.MinSwapsPerVenue < 0 {
		cfg.MinSwapsPerVenue = def.MinSwapsPerVenue
	}
	return &Detector{cfg: cfg, log: logger.Component(log, "convergence")}
}

type venueHour struct {
	swaps      int
	weighted   float64 // sum of price*swaps over priced rows
	weight     int     // swaps on priced rows
	priceSum   float64
	priceCount int
}

func (v *venueHour) price() (float64, bool) {
	switch {
	case v.weight > 0:
		return v.weighted / float64(v.weight), true
	case v.priceCount > 0:
		return v.priceSum / float64(v.priceCount), true
	}
	return 0, false
}

// FindStabilizationHour returns the first hour, within MaxHours of the
// earliest hour present, where enough venues trade within the spread
// tolerance. The second return is false when no hour qualifies.
func (d *Detector) FindStabilizationHour(prices []domain.VenueHourlyPrice) (*domain.StabilizationResult, bool) {
	if len(prices) == 0 {
		return nil, false
	}

	byHour := make(map[time.Time]map[string]*venueHour)
	for _, p := range prices {
		hour := p.Hour.UTC().Truncate(time.Hour)
		venues, ok := byHour[hour]
		if !ok {
			venues = make(map[string]*venueHour)
			byHour[hour] = venues
		}
		v, ok := venues[p.Venue]
		if !ok {
			v = &venueHour{}
			venues[p.Venue] = v
		}
		v.swaps += p.SwapCount
		if p.AvgPrice != nil && *p.AvgPrice > 0 {
			v.weighted += *p.AvgPrice * float64(p.SwapCount)
			v.weight += p.SwapCount
			v.priceSum += *p.AvgPrice
			v.priceCount++
		}
	}

	hours := make([]time.Time, 0, len(byHour))
	for h := range byHour {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })
	end := hours[0].Add(time.Duration(d.cfg.MaxHours) * time.Hour)

	for _, hour := range hours {
		if !hour.Before(end) {
			break
		}

		venues := byHour[hour]
		names := make([]string, 0, len(venues))
		for name := range venues {
			names = append(names, name)
		}
		sort.Strings(names)

		qualified := make(map[string]float64)
		swaps := make(map[string]int)
		for _, name := range names {
			v := venues[name]
			if v.swaps < d.cfg.MinSwapsPerVenue {
				continue
			}
			if p, ok := v.price(); ok {
				qualified[name] = p
				swaps[name] = v.swaps
			}
		}
		if len(qualified) < d.cfg.MinVenueCount {
			continue
		}

		lo, hi := 0.0, 0.0
		first := true
		for _, name := range names {
			p, ok := qualified[name]
			if !ok {
				continue
			}
			if first || p < lo {
				lo = p
			}
			if first || p > hi {
				hi = p
			}
			first = false
		}
		spread := (hi - lo) / lo * 100
		if spread > d.cfg.MaxSpreadPct {
			d.log.WithFields(logrus.Fields{"hour": hour, "spread_pct": spread}).Debug("venues not converged")
			continue
		}

		var weighted float64
		var total int
		for _, name := range names {
			if p, ok := qualified[name]; ok {
				weighted += p * float64(swaps[name])
				total += swaps[name]
			}
		}
		ref := (lo + hi) / 2
		if total > 0 {
			ref = weighted / float64(total)
		}

		res := &domain.StabilizationResult{
			Hour:           hour,
			ReferencePrice: ref,
			SpreadPct:      spread,
			Confidence:     confidenceFor(spread, len(qualified)),
			VenuePrices:    qualified,
			TotalSwaps:     total,
		}
		d.log.WithFields(logrus.Fields{
			"hour":       hour,
			"venues":     len(qualified),
			"spread_pct": spread,
			"price":      ref,
		}).Info("dex prices converged")
		return res, true
	}

	return nil, false
}

func confidenceFor(spread float64, venues int) domain.Confidence {
	switch {
	case spread < highSpreadPct && venues >= highMinVenues:
		return domain.ConfidenceHigh
	case spread <= mediumSpreadPct && venues >= mediumMinVenues:
		return domain.ConfidenceMedium
	}
	return domain.ConfidenceLow
}

// ReferencePrice expresses a stabilization result as a reference price.
func ReferencePrice(res *domain.StabilizationResult) *domain.ReferencePrice {
	if res == nil {
		return nil
	}
	venues := make([]string, 0, len(res.VenuePrices))
	for v := range res.VenuePrices {
		venues = append(venues, v)
	}
	sort.Strings(venues)

	return &domain.ReferencePrice{
		Price:      res.ReferencePrice,
		Timestamp:  res.Hour,
		Method:     domain.MethodFirstHourVWAP,
		Venue:      dexReferenceName,
		Confidence: res.Confidence,
		Notes: fmt.Sprintf("DEX consensus at %s across %d venues (%s); spread %.3f%%; %d swaps",
			res.Hour.Format("2006-01-02 15:04 UTC"), len(venues), strings.Join(venues, ", "), res.SpreadPct, res.TotalSwaps),
	}
}
