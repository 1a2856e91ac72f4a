package mathx

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Between reports lo <= v && v <= hi (order-insensitive).
func Between[T constraints.Ordered](v, lo, hi T) bool {
	if hi < lo {
		lo, hi = hi, lo
	}
	return v >= lo && v <= hi
}

// MaxDecimals bounds RoundTo; beyond this float64 stops being meaningful.
const MaxDecimals = 8

// RoundTo rounds v half away from zero to the given number of decimals.
// decimals is clamped to [0, MaxDecimals]. NaN and Inf pass through.
func RoundTo(v float64, decimals int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow10(Clamp(decimals, 0, MaxDecimals))
	return math.Round(v*p) / p
}
