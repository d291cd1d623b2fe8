package scape

import (
	"context"
	"fmt"
	"strings"
)

type XORScape struct{}

func (XORScape) Name() string { return "xor" }

func (XORScape) Inputs() int { return 2 }

func (XORScape) Evaluate(ctx context.Context, agent Agent, mode string) (Fitness, Trace, error) {
	samples, mode, err := xorSamples(mode)
	if err != nil {
		return 0, nil, err
	}
	// Reciprocal SSE with a small epsilon, so a perfect solver scores 1e6.
	return evaluateSamples(ctx, agent, mode, samples, func(sse, _ float64) Fitness {
		return Fitness(1.0 / (sse + 0.000001))
	})
}

func xorSamples(mode string) ([]sample, string, error) {
	base := []sample{
		{in: []float64{0, 0}, want: 0},
		{in: []float64{0, 1}, want: 1},
		{in: []float64{1, 0}, want: 1},
		{in: []float64{1, 1}, want: 0},
	}

	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "", ModeGT:
		return base, ModeGT, nil
	case ModeValidation:
		return []sample{base[1], base[2], base[0], base[3], base[1], base[2]}, ModeValidation, nil
	case ModeTest:
		return []sample{base[3], base[2], base[1], base[0], base[3], base[0], base[2], base[1]}, ModeTest, nil
	case ModeBenchmark:
		return []sample{base[3], base[2], base[1], base[0], base[3], base[0], base[2], base[1]}, ModeBenchmark, nil
	default:
		return nil, "", fmt.Errorf("unsupported xor mode: %s", mode)
	}
}
