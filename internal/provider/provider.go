// Package provider defines the data sources an analysis consumes and
// file-backed, rate-limited and cached implementations of them.
package provider

import (
	"context"
	"errors"
	"strings"

	"token-listing-lab/internal/domain"
)

var (
	// ErrTokenNotFound is returned when a source has no record of a token.
	ErrTokenNotFound = errors.New("token not found")
	// ErrNoData is returned when a source knows the token but holds no data
	// for the requested kind.
	ErrNoData = errors.New("no data")
)

// Named is implemented by every source.
type Named interface {
	Source() domain.DataSource
}

// ListingSource returns exchange listings with their first candles.
type ListingSource interface {
	Named
	Listings(ctx context.Context, token domain.TokenInfo) ([]domain.Listing, error)
}

// FallbackSource returns daily aggregator data used when no exchange
// listing yields a price.
type FallbackSource interface {
	Named
	FallbackListing(ctx context.Context, token domain.TokenInfo) (*domain.Listing, error)
}

// HourlyPriceSource returns per-venue hourly DEX prices.
type HourlyPriceSource interface {
	Named
	HourlyPrices(ctx context.Context, token domain.TokenInfo) ([]domain.VenueHourlyPrice, error)
}

// SupplySource returns token supply figures.
type SupplySource interface {
	Named
	Supply(ctx context.Context, token domain.TokenInfo) (*domain.SupplyData, error)
}

// FundraisingSource returns fundraising rounds and totals.
type FundraisingSource interface {
	Named
	Fundraising(ctx context.Context, token domain.TokenInfo) (*domain.FundraisingData, error)
}

// AllocationSource returns raw allocation labels.
type AllocationSource interface {
	Named
	Allocations(ctx context.Context, token domain.TokenInfo) ([]domain.RawAllocation, error)
}

// TokenResolver resolves an identifier (id, symbol or mint) to token info.
type TokenResolver interface {
	Token(ctx context.Context, id string) (domain.TokenInfo, error)
}

// Set groups the sources one analysis draws on. Nil members are skipped.
type Set struct {
	Listings    ListingSource
	Fallback    FallbackSource
	Hourly      HourlyPriceSource
	Supply      SupplySource
	Fundraising FundraisingSource
	Allocations []AllocationSource
}

// TokenKey is the cache, lookup and storage key for a token.
func TokenKey(t domain.TokenInfo) string {
	switch {
	case t.ID != "":
		return strings.ToLower(t.ID)
	case t.Mint != "":
		return t.Mint
	}
	return strings.ToLower(t.Symbol)
}
