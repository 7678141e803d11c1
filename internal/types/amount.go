package types

import (
	"math"
	"strconv"
)

// AmountScale is the number of minor units per whole coin (§9: fixed
// decimal-rounding rule at the application boundary, recommended 10⁻⁸).
const AmountScale = 1e8

// Amount is a balance or transfer value in minor units (int64), so
// internal arithmetic is exact integer math instead of float64. The
// external interface quantizes to/from float64 at this fixed scale.
type Amount int64

// FromFloat64 converts a decimal coin amount to minor units, rounding
// to the nearest minor unit.
func FromFloat64(f float64) Amount {
	return Amount(math.Round(f * AmountScale))
}

// Float64 converts minor units back to a decimal coin amount.
func (a Amount) Float64() float64 {
	return float64(a) / AmountScale
}

// String renders the amount as a decimal coin value for logging.
func (a Amount) String() string {
	return strconv.FormatFloat(a.Float64(), 'f', -1, 64)
}
