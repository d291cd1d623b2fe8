package evo

import (
	"fmt"

	"gpr/internal/prng"
)

// Selector chooses a parent slot from a population ranked by descending
// fitness. Only the first elites slots are eligible.
type Selector interface {
	Name() string
	Pick(rng *prng.Rand, fitness []float64, elites int) (int, error)
}

// EliteSelector picks uniformly from the elite slots.
type EliteSelector struct{}

func (EliteSelector) Name() string {
	return "elite"
}

func (EliteSelector) Pick(rng *prng.Rand, fitness []float64, elites int) (int, error) {
	if rng == nil {
		return 0, fmt.Errorf("random source is required")
	}
	if elites <= 0 || elites > len(fitness) {
		return 0, fmt.Errorf("invalid elite count: %d", elites)
	}
	return rng.Intn(elites), nil
}

// TournamentSelector samples slots from the elites and keeps the fittest.
type TournamentSelector struct {
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) Pick(rng *prng.Rand, fitness []float64, elites int) (int, error) {
	if rng == nil {
		return 0, fmt.Errorf("random source is required")
	}
	if elites <= 0 || elites > len(fitness) {
		return 0, fmt.Errorf("invalid elite count: %d", elites)
	}

	size := s.TournamentSize
	if size <= 0 {
		size = 3
	}
	if size > elites {
		size = elites
	}

	best := rng.Intn(elites)
	for i := 1; i < size; i++ {
		candidate := rng.Intn(elites)
		if fitness[candidate] > fitness[best] {
			best = candidate
		}
	}
	return best, nil
}
