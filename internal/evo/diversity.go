package evo

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const diversityBins = 10

// Diversity measures how spread out a population's fitness values are, as
// the fraction of histogram bins between the lowest and highest fitness that
// hold at least one individual. A population with a single distinct fitness
// has diversity 0.
func Diversity(fitness []float64) float64 {
	if len(fitness) < 2 {
		return 0
	}
	lo, hi := floats.Min(fitness), floats.Max(fitness)
	if hi-lo <= 1e-12 || math.IsInf(hi-lo, 0) {
		return 0
	}
	bins := min(len(fitness), diversityBins)
	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	sorted := slices.Clone(fitness)
	slices.Sort(sorted)
	counts := stat.Histogram(nil, dividers, sorted, nil)

	occupied := 0
	for _, c := range counts {
		if c > 0 {
			occupied++
		}
	}
	return float64(occupied) / float64(bins)
}
