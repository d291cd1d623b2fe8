package evo

import (
	"math"
)

const sizeProportionalEfficiency = 0.05

// FitnessPostprocessor adjusts a freshly evaluated fitness before ranking.
// Retained individuals are not adjusted again.
type FitnessPostprocessor interface {
	Name() string
	Adjust(fitness float64, size int) float64
}

type NoopFitnessPostprocessor struct{}

func (NoopFitnessPostprocessor) Name() string {
	return "none"
}

func (NoopFitnessPostprocessor) Adjust(fitness float64, _ int) float64 {
	return fitness
}

// SizeProportionalPostprocessor applies parsimony pressure: larger programs
// score slightly lower for the same raw fitness.
type SizeProportionalPostprocessor struct{}

func (SizeProportionalPostprocessor) Name() string {
	return "size_proportional"
}

func (SizeProportionalPostprocessor) Adjust(fitness float64, size int) float64 {
	complexity := float64(size)
	if complexity < 1 {
		complexity = 1
	}
	return fitness / math.Pow(complexity, sizeProportionalEfficiency)
}
