package provider

import (
	"context"

	"golang.org/x/time/rate"

	"token-listing-lab/internal/domain"
)

// Limited wraps every source in the set so that calls share one limiter.
// Callers block until a token is available or ctx is done.
func Limited(set Set, limiter *rate.Limiter) Set {
	if limiter == nil {
		return set
	}
	out := Set{}
	if set.Listings != nil {
		out.Listings = &limitedListings{inner: set.Listings, lim: limiter}
	}
	if set.Fallback != nil {
		out.Fallback = &limitedFallback{inner: set.Fallback, lim: limiter}
	}
	if set.Hourly != nil {
		out.Hourly = &limitedHourly{inner: set.Hourly, lim: limiter}
	}
	if set.Supply != nil {
		out.Supply = &limitedSupply{inner: set.Supply, lim: limiter}
	}
	if set.Fundraising != nil {
		out.Fundraising = &limitedFundraising{inner: set.Fundraising, lim: limiter}
	}
	for _, a := range set.Allocations {
		out.Allocations = append(out.Allocations, &limitedAllocations{inner: a, lim: limiter})
	}
	return out
}

// NewLimiter builds a limiter from a per-second rate and burst. A
// non-positive rate means unlimited.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

type limitedListings struct {
	inner ListingSource
	lim   *rate.Limiter
}

func (l *limitedListings) Source() domain.DataSource { return l.inner.Source() }

func (l *limitedListings) Listings(ctx context.Context, token domain.TokenInfo) ([]domain.Listing, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return l.inner.Listings(ctx, token)
}

type limitedFallback struct {
	inner FallbackSource
	lim   *rate.Limiter
}

func (l *limitedFallback) Source() domain.DataSource { return l.inner.Source() }

func (l *limitedFallback) FallbackListing(ctx context.Context, token domain.TokenInfo) (*domain.Listing, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return l.inner.FallbackListing(ctx, token)
}

type limitedHourly struct {
	inner HourlyPriceSource
	lim   *rate.Limiter
}

func (l *limitedHourly) Source() domain.DataSource { return l.inner.Source() }

func (l *limitedHourly) HourlyPrices(ctx context.Context, token domain.TokenInfo) ([]domain.VenueHourlyPrice, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return l.inner.HourlyPrices(ctx, token)
}

type limitedSupply struct {
	inner SupplySource
	lim   *rate.Limiter
}

func (l *limitedSupply) Source() domain.DataSource { return l.inner.Source() }

func (l *limitedSupply) Supply(ctx context.Context, token domain.TokenInfo) (*domain.SupplyData, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return l.inner.Supply(ctx, token)
}

type limitedFundraising struct {
	inner FundraisingSource
	lim   *rate.Limiter
}

func (l *limitedFundraising) Source() domain.DataSource { return l.inner.Source() }

func (l *limitedFundraising) Fundraising(ctx context.Context, token domain.TokenInfo) (*domain.FundraisingData, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return l.inner.Fundraising(ctx, token)
}

type limitedAllocations struct {
	inner AllocationSource
	lim   *rate.Limiter
}

func (l *limitedAllocations) Source() domain.DataSource { return l.inner.Source() }

func (l *limitedAllocations) Allocations(ctx context.Context, token domain.TokenInfo) ([]domain.RawAllocation, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return l.inner.Allocations(ctx, token)
}
