package evo

import (
	"testing"

	"gpr/internal/prng"
)

func TestEliteSelectorStaysWithinElites(t *testing.T) {
	fitness := []float64{9, 8, 7, 1, 0}
	rng := prng.New(42)
	seen := map[int]struct{}{}
	for i := 0; i < 64; i++ {
		idx, err := EliteSelector{}.Pick(rng, fitness, 3)
		if err != nil {
			t.Fatalf("pick: %v", err)
		}
		if idx < 0 || idx >= 3 {
			t.Fatalf("picked non-elite slot %d", idx)
		}
		seen[idx] = struct{}{}
	}
	if len(seen) != 3 {
		t.Fatalf("expected every elite to be picked, saw %d", len(seen))
	}
}

func TestSelectorsRejectBadInput(t *testing.T) {
	fitness := []float64{1, 0}
	for _, s := range []Selector{EliteSelector{}, TournamentSelector{}} {
		if _, err := s.Pick(nil, fitness, 1); err == nil {
			t.Fatalf("%s: expected missing rng error", s.Name())
		}
		if _, err := s.Pick(prng.New(1), fitness, 0); err == nil {
			t.Fatalf("%s: expected invalid elite count error", s.Name())
		}
		if _, err := s.Pick(prng.New(1), fitness, 3); err == nil {
			t.Fatalf("%s: expected elite count overflow error", s.Name())
		}
	}
}

func TestTournamentSelectorPrefersFitter(t *testing.T) {
	fitness := []float64{1, 5, 3, 2}
	rng := prng.New(7)
	counts := make([]int, len(fitness))
	for i := 0; i < 400; i++ {
		idx, err := TournamentSelector{TournamentSize: 3}.Pick(rng, fitness, 4)
		if err != nil {
			t.Fatalf("pick: %v", err)
		}
		counts[idx]++
	}
	if counts[1] <= counts[0] {
		t.Fatalf("expected fittest slot to win more often: %v", counts)
	}
}
