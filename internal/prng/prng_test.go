package prng

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextIsDeterministic(t *testing.T) {
	seed := uint32(12345)
	a, b := seed, seed
	for i := 0; i < 1000; i++ {
		var va, vb uint32
		va, a = Next(a)
		vb, b = Next(b)
		require.Equal(t, va, vb)
		require.NotZero(t, va)
		require.Less(t, va, uint32(modulus))
	}
}

func TestNextReseedsOnZero(t *testing.T) {
	v, next := Next(0)
	require.NotZero(t, v)
	require.Equal(t, v, next)

	v, _ = Next(modulus)
	require.NotZero(t, v)
}

func TestRandSnapshotReplaysSequence(t *testing.T) {
	r := New(42)
	r.Uint32()
	snapshot := *r

	want := make([]int, 50)
	for i := range want {
		want[i] = r.Intn(17)
	}
	for i := range want {
		require.Equal(t, want[i], snapshot.Intn(17), "draw %d", i)
	}
}

func TestRandRanges(t *testing.T) {
	r := New(7)
	for i := 0; i < 10000; i++ {
		n := r.Intn(10)
		require.GreaterOrEqual(t, n, 0)
		require.Less(t, n, 10)

		f := r.Float64()
		require.GreaterOrEqual(t, f, 0.0)
		require.Less(t, f, 1.0)

		x := r.Range(-2, 3)
		require.GreaterOrEqual(t, x, -2.0)
		require.Less(t, x, 3.0)
	}
	require.Equal(t, 0, r.Intn(0))
	require.Equal(t, 0, r.Intn(-4))
	require.False(t, r.Chance(0))
}

func TestRandIntnCoversRange(t *testing.T) {
	r := New(99)
	seen := make(map[int]bool)
	for i := 0; i < 2000; i++ {
		seen[r.Intn(6)] = true
	}
	require.Len(t, seen, 6)
}

func TestSplitIsDeterministic(t *testing.T) {
	a := New(5).Split()
	b := New(5).Split()
	for i := 0; i < 20; i++ {
		require.Equal(t, a.Uint32(), b.Uint32())
	}
}
