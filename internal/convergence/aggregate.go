package convergence

import (
	"sort"
	"time"

	"token-listing-lab/internal/domain"
)

// Known Solana DEX program IDs.
const (
	RaydiumAMMV4    = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	RaydiumCLMM     = "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK"
	OrcaWhirlpool   = "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc"
	Phoenix         = "PhoeNiXZ8ByJGLkxNfZRnkUfjvmuYqLR89jjFHGqdXY"
	MeteoraDLMM     = "LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo"
	MeteoraPools    = "Eo7WjKq67rjJQSZxS6z3YkapzY3eMj6Xy8X5EQVn5UaB"
	JupiterV6       = "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"
	PumpFun         = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	unknownVenueTag = "unknown"
)

var programVenues = map[string]string{
	RaydiumAMMV4:  "raydium_amm",
	RaydiumCLMM:   "raydium_clmm",
	OrcaWhirlpool: "orca_whirlpool",
	Phoenix:       "phoenix",
	MeteoraDLMM:   "meteora_dlmm",
	MeteoraPools:  "meteora_pools",
	JupiterV6:     "jupiter_v6",
	PumpFun:       "pumpfun",
}

// VenueForProgram maps a DEX program ID to a venue name.
func VenueForProgram(programID string) (string, bool) {
	v, ok := programVenues[programID]
	return v, ok
}

// Swap is a single on-chain trade observation.
type Swap struct {
	Venue     string    // venue name; resolved from ProgramID when empty
	ProgramID string    // DEX program that executed the swap
	Timestamp time.Time // block time
	Price     float64   // quote per token
	Volume    float64   // quote volume
}

type hourVenue struct {
	hour  time.Time
	venue string
}

// AggregateSwaps groups swaps into hourly per-venue aggregates:
//   - avg_price = AVG(price) over positively priced swaps
//   - swap_count = COUNT(*)
//   - volume = SUM(volume)
//
// Output is ordered by (hour, venue).
func AggregateSwaps(swaps []Swap) []domain.VenueHourlyPrice {
	if len(swaps) == 0 {
		return nil
	}

	type acc struct {
		count    int
		priced   int
		priceSum float64
		volume   float64
	}
	groups := make(map[hourVenue]*acc)

	for _, s := range swaps {
		venue := s.Venue
		if venue == "" {
			if v, ok := VenueForProgram(s.ProgramID); ok {
				venue = v
			} else {
				venue = unknownVenueTag
			}
		}
		key := hourVenue{hour: s.Timestamp.UTC().Truncate(time.Hour), venue: venue}
		a, ok := groups[key]
		if !ok {
			a = &acc{}
			groups[key] = a
		}
		a.count++
		a.volume += s.Volume
		if s.Price > 0 {
			a.priced++
			a.priceSum += s.Price
		}
	}

	keys := make([]hourVenue, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].hour.Equal(keys[j].hour) {
			return keys[i].hour.Before(keys[j].hour)
		}
		return keys[i].venue < keys[j].venue
	})

	out := make([]domain.VenueHourlyPrice, 0, len(keys))
	for _, k := range keys {
		a := groups[k]
		p := domain.VenueHourlyPrice{Hour: k.hour, Venue: k.venue, SwapCount: a.count}
		if a.priced > 0 {
			avg := a.priceSum / float64(a.priced)
			p.AvgPrice = &avg
		}
		vol := a.volume
		p.Volume = &vol
		out = append(out, p)
	}
	return out
}
