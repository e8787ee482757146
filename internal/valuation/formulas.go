// Package valuation derives FDV, market cap and FDV/raised figures from a
// reference price and supply data.
package valuation

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// ErrNonPositiveRaised is returned when a ratio is requested against a
// non-positive raise.
var ErrNonPositiveRaised = errors.New("total raised must be positive")

var hundred = decimal.NewFromInt(100)

// The helpers fall back to float arithmetic when an operand is NaN or
// infinite, since decimal.NewFromFloat panics on those.

func finiteAll(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func mul(a, b float64) float64 {
	if !finiteAll(a, b) {
		return a * b
	}
	f, _ := decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).Float64()
	return f
}

// CalcFDV returns supply × price.
func CalcFDV(supply, price float64) float64 {
	return mul(supply, price)
}

// CalcMarketCap returns circulating × price.
func CalcMarketCap(circulating, price float64) float64 {
	return mul(circulating, price)
}

// CalcFDVToRaised returns fdv / raised.
func CalcFDVToRaised(fdv, raised float64) (float64, error) {
	if raised <= 0 {
		return 0, ErrNonPositiveRaised
	}
	if !finiteAll(fdv, raised) {
		return fdv / raised, nil
	}
	f, _ := decimal.NewFromFloat(fdv).Div(decimal.NewFromFloat(raised)).Float64()
	return f, nil
}

// CalcUnlockedTokens returns total × (bucketPct/100) × (tgeUnlockPct/100).
func CalcUnlockedTokens(total, bucketPct, tgeUnlockPct float64) float64 {
	if !finiteAll(total, bucketPct, tgeUnlockPct) {
		return total * (bucketPct / 100) * (tgeUnlockPct / 100)
	}
	f, _ := decimal.NewFromFloat(total).
		Mul(decimal.NewFromFloat(bucketPct).Div(hundred)).
		Mul(decimal.NewFromFloat(tgeUnlockPct).Div(hundred)).
		Float64()
	return f
}

// CalcCirculatingFromAllocation is the single-bucket form of the TGE unlock
// estimate.
func CalcCirculatingFromAllocation(total, allocationPct, tgeUnlockPct float64) float64 {
	return CalcUnlockedTokens(total, allocationPct, tgeUnlockPct)
}
