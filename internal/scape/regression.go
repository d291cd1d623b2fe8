package scape

import (
	"context"
	"fmt"
	"math"
	"strings"
)

type regressionTarget struct {
	name string
	f    func(x float64) float64
}

var regressionTargets = []regressionTarget{
	{name: "regression-mimic", f: func(x float64) float64 { return x }},
	{name: "quadratic", f: func(x float64) float64 { return x*x + x + 1 }},
	{name: "cubic", f: func(x float64) float64 { return x*x*x - 2*x }},
	{name: "sine", f: math.Sin},
}

// RegressionScape fits a one-dimensional target. Fitness is 1/(1+mse) so it
// stays in (0, 1].
type RegressionScape struct {
	target regressionTarget
}

func (s RegressionScape) Name() string { return s.target.name }

func (RegressionScape) Inputs() int { return 1 }

func (s RegressionScape) Evaluate(ctx context.Context, agent Agent, mode string) (Fitness, Trace, error) {
	if s.target.f == nil {
		return 0, nil, fmt.Errorf("regression scape has no target")
	}
	xs, mode, err := regressionInputs(mode)
	if err != nil {
		return 0, nil, err
	}
	samples := make([]sample, len(xs))
	for i, x := range xs {
		samples[i] = sample{in: []float64{x}, want: s.target.f(x)}
	}
	return evaluateSamples(ctx, agent, mode, samples, func(_, mse float64) Fitness {
		return Fitness(1.0 / (1.0 + mse))
	})
}

// regressionInputs trains on a coarse grid and holds out the midpoints for
// validation and test.
func regressionInputs(mode string) ([]float64, string, error) {
	grid := func(from, step float64, n int) []float64 {
		xs := make([]float64, n)
		for i := range xs {
			xs[i] = from + step*float64(i)
		}
		return xs
	}
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "", ModeGT:
		return grid(-2, 0.5, 9), ModeGT, nil
	case ModeValidation:
		return grid(-1.75, 0.5, 8), ModeValidation, nil
	case ModeTest, ModeBenchmark:
		return grid(-2.5, 0.25, 21), strings.TrimSpace(strings.ToLower(mode)), nil
	default:
		return nil, "", fmt.Errorf("unsupported regression mode: %s", mode)
	}
}
