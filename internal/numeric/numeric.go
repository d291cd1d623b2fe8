// Package numeric holds the value guards shared by both interpreters. Evolved
// programs routinely produce NaN and overflow; these helpers recover locally
// instead of surfacing errors.
package numeric

import (
	"math"

	"golang.org/x/exp/constraints"
)

const (
	// MaxConstant bounds every value an interpreter produces.
	MaxConstant = 1000000.0
	// DivideEpsilon is the smallest denominator magnitude division accepts.
	DivideEpsilon = 0.01
)

// Clamp limits value to [lo, hi].
func Clamp[T constraints.Integer | constraints.Float](value, lo, hi T) T {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// Guard maps NaN to 0 and clamps everything else to ±MaxConstant.
func Guard(value float64) float64 {
	if math.IsNaN(value) {
		return 0
	}
	return Clamp(value, -MaxConstant, MaxConstant)
}

// Saturate clamps value to the symmetric range [-spread, spread].
func Saturate(value, spread float64) float64 {
	if spread < 0 {
		spread = -spread
	}
	return Clamp(value, -spread, spread)
}

// Truncate guards value and drops its fractional part, the integer
// interpreter variant's view of every result.
func Truncate(value float64) float64 {
	return math.Trunc(Guard(value))
}

// Divide returns a/b, or a unchanged when |b| is within DivideEpsilon.
func Divide(a, b float64) float64 {
	if math.Abs(b) <= DivideEpsilon {
		return Guard(a)
	}
	return Guard(a / b)
}

// Modulus returns a mod b with the same small-denominator rule as Divide.
func Modulus(a, b float64) float64 {
	if math.Abs(b) <= DivideEpsilon {
		return Guard(a)
	}
	return Guard(math.Mod(a, b))
}

// Sigmoid is the logistic function with a guarded exponent.
func Sigmoid(value float64) float64 {
	return Guard(1.0 / (1.0 + math.Exp(-Clamp(value, -500, 500))))
}

// Index maps an arbitrary value onto [0, n) by absolute truncation.
func Index(value float64, n int) int {
	if n <= 0 {
		return 0
	}
	v := math.Abs(Guard(value))
	return int(uint64(v) % uint64(n))
}

// Bool converts a comparison outcome to the interpreters' TRUE/FALSE values.
func Bool(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
