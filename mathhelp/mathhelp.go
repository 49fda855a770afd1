package mathhelp

import (
	"math"

	"golang.org/x/exp/constraints"
)

// BetweenInc reports whether f lies in [p, q] (or [q, p]), inclusive on both ends.
func BetweenInc[T constraints.Ordered](f, p, q T) bool {
	if p <= q {
		return p <= f && f <= q
	}
	return q <= f && f <= p
}

func Pow2(n uint) uint {
	return 1 << n
}

func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	f := math.Pow10(places)
	return math.Round(v*f) / f
}
