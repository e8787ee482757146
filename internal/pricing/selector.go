package pricing

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/logger"
)

var (
	// ErrUndetermined means no usable price could be derived from the inputs.
	// It is an expected outcome, not a failure.
	ErrUndetermined = errors.New("reference price undetermined")

	// ErrInvalidPrice is returned for a non-positive manual price.
	ErrInvalidPrice = errors.New("price must be positive")
)

const (
	fallbackVenue = "coingecko"
	fallbackNote  = "Fallback to daily aggregator data; exchange data unavailable"
	manualVenue   = "manual"
	manualPair    = "MANUAL/USD"
	manualNote    = "Manually specified by analyst"
)

// Selector picks one reference price from competing listings.
// It holds no mutable state and is safe for concurrent use.
type Selector struct {
	cfg SelectorConfig
	log logrus.FieldLogger
	now func() time.Time
}

// Option configures a Selector.
type Option func(*Selector)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Selector) {
		s.log = logger.Component(log, "pricing")
	}
}

// WithClock sets the time source used for manual prices without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) {
		s.now = now
	}
}

// NewSelector creates a selector.
func NewSelector(cfg SelectorConfig, opts ...Option) *Selector {
	s := &Selector{
		cfg: cfg.withDefaults(),
		log: logger.Component(nil, "pricing"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select chooses the reference price. It returns ErrUndetermined when no
// listing survives validation.
func (s *Selector) Select(listings []domain.Listing, method domain.PriceSelectionMethod) (*domain.ReferencePrice, error) {
	valid := s.filterValid(listings)
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: no valid exchange listings among %d", ErrUndetermined, len(listings))
	}

	kept := s.rejectOutliers(valid)
	sortByTime(kept)

	cutoff := kept[0].Candle.Timestamp.Add(s.cfg.CandidateWindow)
	var candidates []domain.Listing
	for _, l := range kept {
		if !l.Candle.Timestamp.After(cutoff) {
			candidates = append(candidates, l)
		}
	}

	s.rank(candidates)
	selected := candidates[0]
	price := priceFor(*selected.Candle, method)

	notes := []string{
		fmt.Sprintf("Selected from %d valid listings", len(valid)),
		fmt.Sprintf("Earliest listing: %s", selected.Venue),
	}
	if len(candidates) > 1 {
		notes = append(notes, fmt.Sprintf("Tied with %d other venue(s) within %s", len(candidates)-1, formatWindow(s.cfg.CandidateWindow)))
	}

	ref := &domain.ReferencePrice{
		Price:      price,
		Timestamp:  selected.Candle.Timestamp,
		Method:     method,
		Venue:      selected.Venue,
		Pair:       selected.Pair,
		Confidence: s.confidence(price, selected.Venue, valid),
		Notes:      strings.Join(notes, "; "),
	}

	s.log.WithFields(logrus.Fields{
		"venue":      ref.Venue,
		"pair":       ref.Pair,
		"price":      ref.Price,
		"confidence": ref.Confidence,
	}).Info("selected reference price")

	return ref, nil
}

// SelectWithFallback runs Select and, when it is undetermined, uses fallback
// (typically a daily aggregator candle) with LOW confidence.
func (s *Selector) SelectWithFallback(listings []domain.Listing, fallback *domain.Listing, method domain.PriceSelectionMethod) (*domain.ReferencePrice, error) {
	ref, err := s.Select(listings, method)
	if err == nil || !errors.Is(err, ErrUndetermined) {
		return ref, err
	}

	if fallback == nil || !fallback.HasData() || !fallback.Candle.IsValid() {
		s.log.Warn("no exchange or fallback price data available")
		return nil, fmt.Errorf("%w: no exchange listings and no fallback data", ErrUndetermined)
	}

	venue := fallback.Venue
	if venue == "" {
		venue = fallbackVenue
	}
	s.log.WithField("venue", venue).Warn("using fallback price data")

	return &domain.ReferencePrice{
		Price:      priceFor(*fallback.Candle, method),
		Timestamp:  fallback.Candle.Timestamp,
		Method:     method,
		Venue:      venue,
		Pair:       fallback.Pair,
		Confidence: domain.ConfidenceLow,
		Notes:      fallbackNote,
	}, nil
}

// ManualPrice wraps an analyst-provided price. A zero ts uses the clock.
func (s *Selector) ManualPrice(price float64, ts time.Time, notes string) (*domain.ReferencePrice, error) {
	if !(price > 0) || math.IsInf(price, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}
	if ts.IsZero() {
		ts = s.now().UTC()
	}
	if notes == "" {
		notes = manualNote
	}
	return &domain.ReferencePrice{
		Price:      price,
		Timestamp:  ts,
		Method:     domain.MethodManual,
		Venue:      manualVenue,
		Pair:       manualPair,
		Confidence: domain.ConfidenceHigh,
		Notes:      notes,
	}, nil
}

func (s *Selector) filterValid(listings []domain.Listing) []domain.Listing {
	out := make([]domain.Listing, 0, len(listings))
	for _, l := range listings {
		if !l.HasData() {
			s.log.WithFields(logrus.Fields{"venue": l.Venue, "error": l.Error}).Debug("skipping listing without data")
			continue
		}
		if !l.Candle.IsValid() {
			s.log.WithField("venue", l.Venue).Debug("skipping listing with invalid candle")
			continue
		}
		// Zero quote volume is treated as unreported.
		if vq := l.Candle.VolumeQuote; vq != nil && *vq > 0 && *vq < s.cfg.MinVolumeQuote {
			s.log.WithFields(logrus.Fields{"venue": l.Venue, "volume_quote": *vq}).Debug("skipping low-volume listing")
			continue
		}
		out = append(out, l)
	}
	return out
}

// rejectOutliers drops listings whose open deviates from the median by more
// than MaxDeviationPct. It never empties the set.
func (s *Selector) rejectOutliers(valid []domain.Listing) []domain.Listing {
	if len(valid) < outlierMinListings {
		return append([]domain.Listing(nil), valid...)
	}

	opens := make([]float64, len(valid))
	for i, l := range valid {
		opens[i] = l.Candle.Open
	}
	med := median(opens)

	var kept []domain.Listing
	for _, l := range valid {
		dev := math.Abs(l.Candle.Open-med) / med * 100
		if dev <= s.cfg.MaxDeviationPct {
			kept = append(kept, l)
			continue
		}
		s.log.WithFields(logrus.Fields{
			"venue":         l.Venue,
			"open":          l.Candle.Open,
			"median":        med,
			"deviation_pct": dev,
		}).Warn("excluding outlier listing")
	}
	if len(kept) == 0 {
		return append([]domain.Listing(nil), valid...)
	}
	return kept
}

// rank orders candidates by timestamp, stablecoin quote, venue reliability,
// then venue and pair names.
func (s *Selector) rank(candidates []domain.Listing) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.Candle.Timestamp.Equal(b.Candle.Timestamp) {
			return a.Candle.Timestamp.Before(b.Candle.Timestamp)
		}
		if s.cfg.PreferStablecoinQuote {
			as, bs := IsStablecoinQuote(a.Pair, a.Quote), IsStablecoinQuote(b.Pair, b.Quote)
			if as != bs {
				return as
			}
		}
		if ra, rb := s.cfg.reliability(a.Venue), s.cfg.reliability(b.Venue); ra != rb {
			return ra > rb
		}
		if a.Venue != b.Venue {
			return a.Venue < b.Venue
		}
		return a.Pair < b.Pair
	})
}

// confidence is HIGH when at least three listings agree with the selected
// price within 5% of their mean open, or when the venue is highly reliable.
func (s *Selector) confidence(price float64, venue string, valid []domain.Listing) domain.Confidence {
	if len(valid) >= consensusMinListings {
		sample := append([]domain.Listing(nil), valid...)
		sortByTime(sample)
		if len(sample) > consensusSampleSize {
			sample = sample[:consensusSampleSize]
		}
		var sum float64
		for _, l := range sample {
			sum += l.Candle.Open
		}
		mean := sum / float64(len(sample))
		if math.Abs(price-mean)/mean*100 < consensusDeviationPct {
			return domain.ConfidenceHigh
		}
	}
	if s.cfg.reliability(venue) >= HighConfidenceReliability {
		return domain.ConfidenceHigh
	}
	return domain.ConfidenceMedium
}

func priceFor(c domain.Candle, method domain.PriceSelectionMethod) float64 {
	switch method {
	case domain.MethodEarliestClose:
		return c.Close
	case domain.MethodFirstHourVWAP, domain.MethodFirstDayVWAP:
		// Single-candle approximation of VWAP.
		return (c.Open + c.High + c.Low + c.Close) / 4
	default:
		return c.Open
	}
}

func sortByTime(ls []domain.Listing) {
	sort.SliceStable(ls, func(i, j int) bool {
		a, b := ls[i], ls[j]
		if !a.Candle.Timestamp.Equal(b.Candle.Timestamp) {
			return a.Candle.Timestamp.Before(b.Candle.Timestamp)
		}
		if a.Venue != b.Venue {
			return a.Venue < b.Venue
		}
		return a.Pair < b.Pair
	})
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func formatWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return d.String()
}
