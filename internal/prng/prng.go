// Package prng provides the deterministic Lehmer generator every operator
// draws from. State is a single 32-bit seed that callers thread explicitly, so
// identical seeds reproduce identical evolutionary runs.
package prng

import "time"

const (
	modulus    = 2147483647 // 2^31 - 1
	multiplier = 48271
)

// Next advances seed one step and returns the produced value together with
// the successor seed. The two are equal for a Lehmer generator but are kept
// separate in the signature so call sites read as value, state.
//
// A zero seed is a fixed point of the recurrence; it is replaced by a seed
// taken from the wall clock so the output is never zero.
func Next(seed uint32) (uint32, uint32) {
	s := uint64(seed) % modulus
	if s == 0 {
		s = uint64(clockSeed())
	}
	s = (s * multiplier) % modulus
	return uint32(s), uint32(s)
}

func clockSeed() uint32 {
	s := uint32(uint64(time.Now().UnixNano()) % modulus)
	if s == 0 {
		s = 1
	}
	return s
}

// Rand wraps a seed with convenience draws. The zero value reseeds from the
// clock on first use; copy a Rand by value to snapshot its sequence.
type Rand struct {
	seed uint32
}

func New(seed uint32) *Rand {
	return &Rand{seed: seed}
}

// Seed returns the current state.
func (r *Rand) Seed() uint32 {
	return r.seed
}

func (r *Rand) Uint32() uint32 {
	v, next := Next(r.seed)
	r.seed = next
	return v
}

// Intn returns a value in [0, n). It returns 0 when n <= 0.
func (r *Rand) Intn(n int) int {
	if n <= 1 {
		if n == 1 {
			r.Uint32()
		}
		return 0
	}
	return int(uint64(r.Uint32()-1) * uint64(n) / (modulus - 1))
}

// Float64 returns a value in [0, 1).
func (r *Rand) Float64() float64 {
	return float64(r.Uint32()-1) / float64(modulus-1)
}

// Range returns a value in [lo, hi).
func (r *Rand) Range(lo, hi float64) float64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + r.Float64()*(hi-lo)
}

// Chance reports true with probability p.
func (r *Rand) Chance(p float64) bool {
	if p <= 0 {
		r.Uint32()
		return false
	}
	return r.Float64() < p
}

// Split derives an independent generator whose seed is drawn from r. Used to
// hand each individual and each island its own private stream.
func (r *Rand) Split() *Rand {
	return New(r.Uint32())
}
