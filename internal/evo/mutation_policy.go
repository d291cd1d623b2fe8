package evo

import (
	"gpr/internal/numeric"
)

// MutationPolicy turns the configured mutation probability and the current
// fitness diversity (in [0,1]) into the probability used for the next fill.
type MutationPolicy interface {
	Name() string
	Rate(base, diversity float64) float64
}

// ConstMutation always mutates at the configured probability.
type ConstMutation struct{}

func (ConstMutation) Name() string {
	return "const"
}

func (ConstMutation) Rate(base, _ float64) float64 {
	return numeric.Clamp(base, 0, 1)
}

// DiversityAdaptiveMutation raises the rate linearly toward 1 as diversity
// falls: full diversity keeps the base rate, none mutates every gene.
type DiversityAdaptiveMutation struct{}

func (DiversityAdaptiveMutation) Name() string {
	return "diversity_adaptive"
}

func (DiversityAdaptiveMutation) Rate(base, diversity float64) float64 {
	base = numeric.Clamp(base, 0, 1)
	diversity = numeric.Clamp(diversity, 0, 1)
	return base + (1-base)*(1-diversity)
}
