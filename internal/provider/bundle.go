package provider

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"token-listing-lab/internal/convergence"
	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/vesting"
)

// bundleFile is the on-disk layout. JSON files parse through the same
// decoder since JSON is valid YAML.
type bundleFile struct {
	Tokens []tokenDTO `yaml:"tokens"`
}

type tokenDTO struct {
	ID           string          `yaml:"id"`
	Symbol       string          `yaml:"symbol"`
	Name         string          `yaml:"name"`
	Chain        string          `yaml:"chain"`
	Mint         string          `yaml:"mint"`
	Categories   []string        `yaml:"categories"`
	ListingDate  string          `yaml:"listing_date"`
	Listings     []listingDTO    `yaml:"listings"`
	Fallback     *listingDTO     `yaml:"fallback"`
	HourlyPrices []hourlyDTO     `yaml:"hourly_prices"`
	Swaps        []swapDTO       `yaml:"swaps"` // raw DEX trades, aggregated hourly
	Supply       *supplyDTO      `yaml:"supply"`
	Fundraising  *fundraisingDTO `yaml:"fundraising"`
	Allocations  []allocationDTO `yaml:"allocations"`
}

type listingDTO struct {
	Venue     string     `yaml:"venue"`
	Pair      string     `yaml:"pair"`
	Base      string     `yaml:"base"`
	Quote     string     `yaml:"quote"`
	Timeframe string     `yaml:"timeframe"`
	Candle    *candleDTO `yaml:"candle"`
	Error     string     `yaml:"error"`
}

type candleDTO struct {
	Timestamp   string   `yaml:"timestamp"`
	Open        float64  `yaml:"open"`
	High        float64  `yaml:"high"`
	Low         float64  `yaml:"low"`
	Close       float64  `yaml:"close"`
	Volume      float64  `yaml:"volume"`
	VolumeQuote *float64 `yaml:"volume_quote"`
}

type hourlyDTO struct {
	Hour      string   `yaml:"hour"`
	Venue     string   `yaml:"venue"`
	AvgPrice  *float64 `yaml:"avg_price"`
	SwapCount int      `yaml:"swap_count"`
	Volume    *float64 `yaml:"volume"`
}

type swapDTO struct {
	Timestamp string  `yaml:"timestamp"`
	Venue     string  `yaml:"venue"`
	ProgramID string  `yaml:"program_id"`
	Price     float64 `yaml:"price"`
	Volume    float64 `yaml:"volume"`
}

type supplyDTO struct {
	TotalSupply           *float64 `yaml:"total_supply"`
	MaxSupply             *float64 `yaml:"max_supply"`
	CirculatingCurrent    *float64 `yaml:"circulating_current"`
	CirculatingAtListing  *float64 `yaml:"circulating_at_listing"`
	CirculatingSource     string   `yaml:"circulating_source"`
	CirculatingIsEstimate bool     `yaml:"circulating_is_estimate"`
	EstimationMethod      string   `yaml:"estimation_method"`
	Source                string   `yaml:"source"`
}

type fundraisingDTO struct {
	TotalRaised *float64   `yaml:"total_raised"`
	Source      string     `yaml:"source"`
	Rounds      []roundDTO `yaml:"rounds"`
}

type roundDTO struct {
	Name      string   `yaml:"name"`
	Date      string   `yaml:"date"`
	RaisedUSD *float64 `yaml:"raised_usd"`
	Price     *float64 `yaml:"price"`
	Investors []string `yaml:"investors"`
}

type allocationDTO struct {
	Source     string   `yaml:"source"`
	Label      string   `yaml:"label"`
	Percentage *float64 `yaml:"percentage"`
	Amount     *float64 `yaml:"amount"`
	// Vesting is either a free-text description or a loosely-typed mapping.
	Vesting    any      `yaml:"vesting"`
}

// TokenData is everything a bundle holds for one token.
type TokenData struct {
	Info         domain.TokenInfo
	Listings     []domain.Listing
	Fallback     *domain.Listing
	HourlyPrices []domain.VenueHourlyPrice
	Supply       *domain.SupplyData
	Fundraising  *domain.FundraisingData
	Allocations  []domain.RawAllocation
}

// Bundle serves analysis inputs from an analyst-curated file. It is
// read-only after construction.
type Bundle struct {
	name   string
	tokens []*TokenData
	index  map[string]*TokenData
}

var (
	_ TokenResolver     = (*Bundle)(nil)
	_ ListingSource     = (*Bundle)(nil)
	_ FallbackSource    = (*Bundle)(nil)
	_ HourlyPriceSource = (*Bundle)(nil)
	_ SupplySource      = (*Bundle)(nil)
	_ FundraisingSource = (*Bundle)(nil)
	_ AllocationSource  = (*Bundle)(nil)
)

// NewBundle builds a bundle from already-typed token data.
func NewBundle(name string, tokens ...*TokenData) *Bundle {
	b := &Bundle{name: name, index: make(map[string]*TokenData)}
	for _, t := range tokens {
		b.add(t)
	}
	return b
}

func (b *Bundle) add(t *TokenData) {
	b.tokens = append(b.tokens, t)
	for _, k := range []string{t.Info.ID, t.Info.Symbol, t.Info.Mint} {
		if k == "" {
			continue
		}
		if t.Info.Mint == k {
			b.index[k] = t
		} else {
			b.index[strings.ToLower(k)] = t
		}
	}
}

// LoadBundle reads a YAML or JSON bundle file.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	b, err := ParseBundle(data)
	if err != nil {
		return nil, fmt.Errorf("parse bundle %s: %w", path, err)
	}
	b.name = path
	return b, nil
}

// ParseBundle decodes bundle contents.
func ParseBundle(data []byte) (*Bundle, error) {
	var f bundleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	b := NewBundle("inline")
	for i, dto := range f.Tokens {
		t, err := dto.toDomain()
		if err != nil {
			return nil, fmt.Errorf("token %d (%s): %w", i, dto.ID, err)
		}
		b.add(t)
	}
	return b, nil
}

// Name identifies the bundle in audit entries.
func (b *Bundle) Name() string { return b.name }

// Tokens lists token info in file order.
func (b *Bundle) Tokens() []domain.TokenInfo {
	out := make([]domain.TokenInfo, len(b.tokens))
	for i, t := range b.tokens {
		out[i] = t.Info
	}
	return out
}

func (b *Bundle) lookup(id string) (*TokenData, error) {
	if t, ok := b.index[id]; ok {
		return t, nil
	}
	if t, ok := b.index[strings.ToLower(id)]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%s: %w", id, ErrTokenNotFound)
}

func (b *Bundle) lookupInfo(token domain.TokenInfo) (*TokenData, error) {
	for _, k := range []string{token.ID, token.Mint, token.Symbol} {
		if k == "" {
			continue
		}
		if t, err := b.lookup(k); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", TokenKey(token), ErrTokenNotFound)
}

// Source reports bundle data as manually curated.
func (b *Bundle) Source() domain.DataSource { return domain.SourceManual }

// Token implements TokenResolver.
func (b *Bundle) Token(_ context.Context, id string) (domain.TokenInfo, error) {
	t, err := b.lookup(id)
	if err != nil {
		return domain.TokenInfo{}, err
	}
	return t.Info, nil
}

// Listings implements ListingSource.
func (b *Bundle) Listings(_ context.Context, token domain.TokenInfo) ([]domain.Listing, error) {
	t, err := b.lookupInfo(token)
	if err != nil {
		return nil, err
	}
	return append([]domain.Listing(nil), t.Listings...), nil
}

// FallbackListing implements FallbackSource.
func (b *Bundle) FallbackListing(_ context.Context, token domain.TokenInfo) (*domain.Listing, error) {
	t, err := b.lookupInfo(token)
	if err != nil {
		return nil, err
	}
	if t.Fallback == nil {
		return nil, ErrNoData
	}
	l := *t.Fallback
	return &l, nil
}

// HourlyPrices implements HourlyPriceSource.
func (b *Bundle) HourlyPrices(_ context.Context, token domain.TokenInfo) ([]domain.VenueHourlyPrice, error) {
	t, err := b.lookupInfo(token)
	if err != nil {
		return nil, err
	}
	return append([]domain.VenueHourlyPrice(nil), t.HourlyPrices...), nil
}

// Supply implements SupplySource.
func (b *Bundle) Supply(_ context.Context, token domain.TokenInfo) (*domain.SupplyData, error) {
	t, err := b.lookupInfo(token)
	if err != nil {
		return nil, err
	}
	if t.Supply == nil {
		return nil, ErrNoData
	}
	s := *t.Supply
	return &s, nil
}

// Fundraising implements FundraisingSource.
func (b *Bundle) Fundraising(_ context.Context, token domain.TokenInfo) (*domain.FundraisingData, error) {
	t, err := b.lookupInfo(token)
	if err != nil {
		return nil, err
	}
	if t.Fundraising == nil {
		return nil, ErrNoData
	}
	f := *t.Fundraising
	f.Rounds = append([]domain.FundraisingRound(nil), t.Fundraising.Rounds...)
	return &f, nil
}

// Allocations implements AllocationSource.
func (b *Bundle) Allocations(_ context.Context, token domain.TokenInfo) ([]domain.RawAllocation, error) {
	t, err := b.lookupInfo(token)
	if err != nil {
		return nil, err
	}
	return append([]domain.RawAllocation(nil), t.Allocations...), nil
}

func (dto tokenDTO) toDomain() (*TokenData, error) {
	if dto.ID == "" && dto.Symbol == "" && dto.Mint == "" {
		return nil, fmt.Errorf("token needs an id, symbol or mint")
	}
	t := &TokenData{Info: domain.TokenInfo{
		ID:         dto.ID,
		Symbol:     dto.Symbol,
		Name:       dto.Name,
		Chain:      dto.Chain,
		Mint:       dto.Mint,
		Categories: dto.Categories,
	}}
	if dto.ListingDate != "" {
		ts, err := parseTime(dto.ListingDate)
		if err != nil {
			return nil, fmt.Errorf("listing_date: %w", err)
		}
		t.Info.ListingDate = &ts
	}

	for _, l := range dto.Listings {
		dl, err := l.toDomain()
		if err != nil {
			return nil, err
		}
		t.Listings = append(t.Listings, dl)
	}
	if dto.Fallback != nil {
		fl, err := dto.Fallback.toDomain()
		if err != nil {
			return nil, fmt.Errorf("fallback: %w", err)
		}
		t.Fallback = &fl
	}

	for _, h := range dto.HourlyPrices {
		ts, err := parseTime(h.Hour)
		if err != nil {
			return nil, fmt.Errorf("hourly price %s: %w", h.Venue, err)
		}
		t.HourlyPrices = append(t.HourlyPrices, domain.VenueHourlyPrice{
			Hour:      ts,
			Venue:     h.Venue,
			AvgPrice:  h.AvgPrice,
			SwapCount: h.SwapCount,
			Volume:    h.Volume,
		})
	}

	if len(dto.Swaps) > 0 {
		swaps := make([]convergence.Swap, 0, len(dto.Swaps))
		for _, sw := range dto.Swaps {
			ts, err := parseTime(sw.Timestamp)
			if err != nil {
				return nil, fmt.Errorf("swap: %w", err)
			}
			swaps = append(swaps, convergence.Swap{
				Venue:     sw.Venue,
				ProgramID: sw.ProgramID,
				Timestamp: ts,
				Price:     sw.Price,
				Volume:    sw.Volume,
			})
		}
		t.HourlyPrices = append(t.HourlyPrices, convergence.AggregateSwaps(swaps)...)
	}

	if s := dto.Supply; s != nil {
		t.Supply = &domain.SupplyData{
			TotalSupply:           s.TotalSupply,
			MaxSupply:             s.MaxSupply,
			CirculatingCurrent:    s.CirculatingCurrent,
			CirculatingAtListing:  s.CirculatingAtListing,
			CirculatingSource:     sourceOr(s.CirculatingSource, domain.SourceManual),
			CirculatingIsEstimate: s.CirculatingIsEstimate,
			EstimationMethod:      s.EstimationMethod,
			Source:                sourceOr(s.Source, domain.SourceManual),
		}
	}

	if f := dto.Fundraising; f != nil {
		fd := &domain.FundraisingData{TotalRaised: f.TotalRaised, Source: sourceOr(f.Source, domain.SourceManual)}
		for _, r := range f.Rounds {
			round := domain.FundraisingRound{Name: r.Name, RaisedUSD: r.RaisedUSD, Price: r.Price, Investors: r.Investors}
			if r.Date != "" {
				ts, err := parseTime(r.Date)
				if err != nil {
					return nil, fmt.Errorf("round %s: %w", r.Name, err)
				}
				round.Date = &ts
			}
			fd.Rounds = append(fd.Rounds, round)
		}
		t.Fundraising = fd
	}

	for _, a := range dto.Allocations {
		label := a.Label
		if strings.TrimSpace(label) == "" {
			label = "Unknown"
		}
		ra, err := domain.NewRawAllocation(sourceOr(a.Source, domain.SourceManual), label, a.Percentage, a.Amount, vestingFrom(a.Vesting))
		if err != nil {
			return nil, fmt.Errorf("allocation %q: %w", a.Label, err)
		}
		t.Allocations = append(t.Allocations, ra)
	}
	return t, nil
}

func (l listingDTO) toDomain() (domain.Listing, error) {
	out := domain.Listing{
		Venue:     l.Venue,
		Pair:      l.Pair,
		Base:      l.Base,
		Quote:     l.Quote,
		Timeframe: l.Timeframe,
		Error:     l.Error,
	}
	if out.Timeframe == "" {
		out.Timeframe = "1m"
	}
	if out.Base == "" || out.Quote == "" {
		if base, quote, ok := strings.Cut(l.Pair, "/"); ok {
			if out.Base == "" {
				out.Base = base
			}
			if out.Quote == "" {
				out.Quote = quote
			}
		}
	}
	if c := l.Candle; c != nil {
		ts, err := parseTime(c.Timestamp)
		if err != nil {
			return domain.Listing{}, fmt.Errorf("listing %s %s: %w", l.Venue, l.Pair, err)
		}
		out.Candle = &domain.Candle{
			Timestamp:   ts,
			Open:        c.Open,
			High:        c.High,
			Low:         c.Low,
			Close:       c.Close,
			Volume:      c.Volume,
			VolumeQuote: c.VolumeQuote,
		}
	}
	return out, nil
}

func vestingFrom(v any) *domain.VestingTerms {
	switch x := v.(type) {
	case string:
		return vesting.Parse(x)
	case map[string]any:
		return vesting.ParseDict(x)
	}
	return nil
}

func sourceOr(s string, def domain.DataSource) domain.DataSource {
	ds := domain.DataSource(strings.ToLower(strings.TrimSpace(s)))
	if ds.IsValid() {
		return ds
	}
	return def
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTime accepts RFC 3339 and the common space-separated forms, read as UTC.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
