// Package taxcalc computes income tax and zakat obligations from
// progressive slab tables. Amounts are integer cents.
package taxcalc

import (
	"errors"
	"math"
)

// Slab is one progressive tax bracket. A MaxIncomeCents of zero means
// the bracket has no upper bound. Tax inside the bracket is BaseCents
// plus RatePercent of the income above MinIncomeCents.
type Slab struct {
	MinIncomeCents int64   `json:"minIncomeCents"`
	MaxIncomeCents int64   `json:"maxIncomeCents"`
	BaseCents      int64   `json:"baseCents"`
	RatePercent    float64 `json:"ratePercent"`
}

// ZakatRatePercent is the flat zakat rate applied to eligible wealth.
const ZakatRatePercent = 2.5

// ErrInvalidSlabs is returned when a custom slab table is malformed.
var ErrInvalidSlabs = errors.New("taxcalc: invalid slab table")

// DefaultSlabs returns the built-in annual income tax brackets
// (FY 2023-24 salaried schedule, PKR, expressed in cents).
func DefaultSlabs() []Slab {
	return []Slab{
		{MinIncomeCents: 0, MaxIncomeCents: 60_000_000, BaseCents: 0, RatePercent: 0},
		{MinIncomeCents: 60_000_000, MaxIncomeCents: 120_000_000, BaseCents: 0, RatePercent: 5},
		{MinIncomeCents: 120_000_000, MaxIncomeCents: 240_000_000, BaseCents: 3_000_000, RatePercent: 10},
		{MinIncomeCents: 240_000_000, MaxIncomeCents: 360_000_000, BaseCents: 15_000_000, RatePercent: 15},
		{MinIncomeCents: 360_000_000, MaxIncomeCents: 600_000_000, BaseCents: 33_000_000, RatePercent: 20},
		{MinIncomeCents: 600_000_000, MaxIncomeCents: 1_200_000_000, BaseCents: 81_000_000, RatePercent: 25},
		{MinIncomeCents: 1_200_000_000, MaxIncomeCents: 0, BaseCents: 231_000_000, RatePercent: 30},
	}
}

// ValidateSlabs checks that a slab table is non-empty, starts at zero,
// is contiguous, and is open-ended on its last bracket.
func ValidateSlabs(slabs []Slab) error {
	if len(slabs) == 0 {
		return ErrInvalidSlabs
	}
	if slabs[0].MinIncomeCents != 0 {
		return ErrInvalidSlabs
	}
	for i, s := range slabs {
		if s.RatePercent < 0 || s.RatePercent > 100 || s.BaseCents < 0 {
			return ErrInvalidSlabs
		}
		last := i == len(slabs)-1
		if last {
			if s.MaxIncomeCents != 0 {
				return ErrInvalidSlabs
			}
			continue
		}
		if s.MaxIncomeCents <= s.MinIncomeCents {
			return ErrInvalidSlabs
		}
		if slabs[i+1].MinIncomeCents != s.MaxIncomeCents {
			return ErrInvalidSlabs
		}
	}
	return nil
}

// IncomeTax computes the tax due on incomeCents under the given slab
// table. A nil or empty table falls back to DefaultSlabs. Negative
// income owes nothing.
func IncomeTax(incomeCents int64, slabs []Slab) int64 {
	if incomeCents <= 0 {
		return 0
	}
	if len(slabs) == 0 {
		slabs = DefaultSlabs()
	}
	for _, s := range slabs {
		if s.MaxIncomeCents != 0 && incomeCents > s.MaxIncomeCents {
			continue
		}
		excess := incomeCents - s.MinIncomeCents
		if excess < 0 {
			excess = 0
		}
		return s.BaseCents + roundCents(float64(excess)*s.RatePercent/100)
	}
	return 0
}

// Zakat computes the flat zakat obligation on eligible wealth.
func Zakat(wealthCents int64) int64 {
	if wealthCents <= 0 {
		return 0
	}
	return roundCents(float64(wealthCents) * ZakatRatePercent / 100)
}

func roundCents(v float64) int64 {
	return int64(math.Round(v))
}
