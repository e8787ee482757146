package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"token-listing-lab/internal/domain"
)

// dropNonFinite returns a copy of in with NaN and infinite supply,
// fundraising and override figures cleared, plus the cleared field names.
// Such values cannot be priced with decimals or encoded as JSON.
func dropNonFinite(in Inputs) (Inputs, []string) {
	var dropped []string
	drop := func(name string, v **float64) {
		if *v != nil && (math.IsNaN(**v) || math.IsInf(**v, 0)) {
			*v = nil
			dropped = append(dropped, name)
		}
	}

	if in.Supply != nil {
		s := *in.Supply
		drop("total_supply", &s.TotalSupply)
		drop("max_supply", &s.MaxSupply)
		drop("circulating_current", &s.CirculatingCurrent)
		drop("circulating_at_listing", &s.CirculatingAtListing)
		in.Supply = &s
	}
	if in.Fundraising != nil {
		f := *in.Fundraising
		drop("total_raised", &f.TotalRaised)
		f.Rounds = append([]domain.FundraisingRound(nil), f.Rounds...)
		for i := range f.Rounds {
			drop(fmt.Sprintf("rounds[%d].raised_usd", i), &f.Rounds[i].RaisedUSD)
			drop(fmt.Sprintf("rounds[%d].price", i), &f.Rounds[i].Price)
		}
		in.Fundraising = &f
	}
	drop("override.circulating_at_listing", &in.Override.CirculatingAtListing)
	drop("override.total_supply", &in.Override.TotalSupply)
	return in, dropped
}

// canonicalInputs orders the collections whose order cannot change the
// result, so the analysis ID does not depend on how sources returned them.
// Allocations carrying vesting terms keep their relative order after the
// others: the first vesting seen per bucket wins.
func canonicalInputs(in Inputs) (Inputs, error) {
	var err error
	if in.Listings, err = sortByEncoding(in.Listings); err != nil {
		return in, err
	}
	if in.HourlyPrices, err = sortByEncoding(in.HourlyPrices); err != nil {
		return in, err
	}

	var plain, vested []domain.RawAllocation
	for _, r := range in.Allocations {
		if r.Vesting != nil {
			vested = append(vested, r)
		} else {
			plain = append(plain, r)
		}
	}
	if plain, err = sortByEncoding(plain); err != nil {
		return in, err
	}
	if len(in.Allocations) > 0 {
		in.Allocations = append(plain, vested...)
	}

	if in.Fundraising != nil {
		f := *in.Fundraising
		if f.Rounds, err = sortByEncoding(f.Rounds); err != nil {
			return in, err
		}
		in.Fundraising = &f
	}
	return in, nil
}

// sortByEncoding returns a copy of items ordered by their JSON encoding.
func sortByEncoding[T any](items []T) ([]T, error) {
	if len(items) < 2 {
		return items, nil
	}
	type keyed struct {
		key  string
		item T
	}
	ks := make([]keyed, len(items))
	for i, it := range items {
		b, err := json.Marshal(it)
		if err != nil {
			return nil, err
		}
		ks[i] = keyed{string(b), it}
	}
	sort.SliceStable(ks, func(i, j int) bool { return ks[i].key < ks[j].key })

	out := make([]T, len(ks))
	for i, k := range ks {
		out[i] = k.item
	}
	return out, nil
}
