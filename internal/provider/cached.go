package provider

import (
	"context"
	"time"

	"token-listing-lab/internal/cache"
	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/observability"
)

// Cached wraps every source in the set with a TTL cache keyed by token.
// Errors are not cached. Each wrapper owns its cache.
func Cached(set Set, ttl time.Duration, clock cache.Clock) Set {
	out := Set{}
	if set.Listings != nil {
		out.Listings = &cachedListings{inner: set.Listings, c: cache.NewTTL[string, []domain.Listing](ttl, clock)}
	}
	if set.Fallback != nil {
		out.Fallback = &cachedFallback{inner: set.Fallback, c: cache.NewTTL[string, *domain.Listing](ttl, clock)}
	}
	if set.Hourly != nil {
		out.Hourly = &cachedHourly{inner: set.Hourly, c: cache.NewTTL[string, []domain.VenueHourlyPrice](ttl, clock)}
	}
	if set.Supply != nil {
		out.Supply = &cachedSupply{inner: set.Supply, c: cache.NewTTL[string, *domain.SupplyData](ttl, clock)}
	}
	if set.Fundraising != nil {
		out.Fundraising = &cachedFundraising{inner: set.Fundraising, c: cache.NewTTL[string, *domain.FundraisingData](ttl, clock)}
	}
	for _, a := range set.Allocations {
		out.Allocations = append(out.Allocations, &cachedAllocations{inner: a, c: cache.NewTTL[string, []domain.RawAllocation](ttl, clock)})
	}
	return out
}

// cachedCall serves key from c or fills it from fetch. Filling also purges
// expired entries so long-lived caches do not grow without bound.
func cachedCall[V any](c *cache.TTL[string, V], src domain.DataSource, action, key string, fetch func() (V, error)) (V, error) {
	v, ok := c.Get(key)
	observability.RecordCacheLookup(string(src), action, ok)
	if ok {
		return v, nil
	}
	v, err := fetch()
	if err != nil {
		return v, err
	}
	observability.RecordCacheEvictions(string(src), action, c.Purge())
	c.Set(key, v)
	return v, nil
}

type cachedListings struct {
	inner ListingSource
	c     *cache.TTL[string, []domain.Listing]
}

func (s *cachedListings) Source() domain.DataSource { return s.inner.Source() }

func (s *cachedListings) Listings(ctx context.Context, token domain.TokenInfo) ([]domain.Listing, error) {
	v, err := cachedCall(s.c, s.inner.Source(), "fetch_listings", TokenKey(token), func() ([]domain.Listing, error) { return s.inner.Listings(ctx, token) })
	return append([]domain.Listing(nil), v...), err
}

type cachedFallback struct {
	inner FallbackSource
	c     *cache.TTL[string, *domain.Listing]
}

func (s *cachedFallback) Source() domain.DataSource { return s.inner.Source() }

func (s *cachedFallback) FallbackListing(ctx context.Context, token domain.TokenInfo) (*domain.Listing, error) {
	v, err := cachedCall(s.c, s.inner.Source(), "fetch_fallback", TokenKey(token), func() (*domain.Listing, error) { return s.inner.FallbackListing(ctx, token) })
	if err != nil || v == nil {
		return v, err
	}
	l := *v
	return &l, nil
}

type cachedHourly struct {
	inner HourlyPriceSource
	c     *cache.TTL[string, []domain.VenueHourlyPrice]
}

func (s *cachedHourly) Source() domain.DataSource { return s.inner.Source() }

func (s *cachedHourly) HourlyPrices(ctx context.Context, token domain.TokenInfo) ([]domain.VenueHourlyPrice, error) {
	v, err := cachedCall(s.c, s.inner.Source(), "fetch_hourly_prices", TokenKey(token), func() ([]domain.VenueHourlyPrice, error) { return s.inner.HourlyPrices(ctx, token) })
	return append([]domain.VenueHourlyPrice(nil), v...), err
}

type cachedSupply struct {
	inner SupplySource
	c     *cache.TTL[string, *domain.SupplyData]
}

func (s *cachedSupply) Source() domain.DataSource { return s.inner.Source() }

func (s *cachedSupply) Supply(ctx context.Context, token domain.TokenInfo) (*domain.SupplyData, error) {
	v, err := cachedCall(s.c, s.inner.Source(), "fetch_supply", TokenKey(token), func() (*domain.SupplyData, error) { return s.inner.Supply(ctx, token) })
	if err != nil || v == nil {
		return v, err
	}
	cp := *v
	return &cp, nil
}

type cachedFundraising struct {
	inner FundraisingSource
	c     *cache.TTL[string, *domain.FundraisingData]
}

func (s *cachedFundraising) Source() domain.DataSource { return s.inner.Source() }

func (s *cachedFundraising) Fundraising(ctx context.Context, token domain.TokenInfo) (*domain.FundraisingData, error) {
	v, err := cachedCall(s.c, s.inner.Source(), "fetch_fundraising", TokenKey(token), func() (*domain.FundraisingData, error) { return s.inner.Fundraising(ctx, token) })
	if err != nil || v == nil {
		return v, err
	}
	cp := *v
	cp.Rounds = append([]domain.FundraisingRound(nil), v.Rounds...)
	return &cp, nil
}

type cachedAllocations struct {
	inner AllocationSource
	c     *cache.TTL[string, []domain.RawAllocation]
}

func (s *cachedAllocations) Source() domain.DataSource { return s.inner.Source() }

func (s *cachedAllocations) Allocations(ctx context.Context, token domain.TokenInfo) ([]domain.RawAllocation, error) {
	v, err := cachedCall(s.c, s.inner.Source(), "fetch_allocations", TokenKey(token), func() ([]domain.RawAllocation, error) { return s.inner.Allocations(ctx, token) })
	return append([]domain.RawAllocation(nil), v...), err
}
