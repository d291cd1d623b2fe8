// Package scape holds the fitness environments programs are scored in.
package scape

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

type Fitness float64

type Trace map[string]any

// Agent maps one sample's inputs to a single output.
type Agent interface {
	RunStep(in []float64) float64
}

type Scape interface {
	Name() string
	// Inputs is the number of sensor values each sample provides.
	Inputs() int
	Evaluate(ctx context.Context, agent Agent, mode string) (Fitness, Trace, error)
}

// Evaluation modes, indexed by the evolution mode number.
const (
	ModeGT         = "gt"
	ModeValidation = "validation"
	ModeTest       = "test"
	ModeBenchmark  = "benchmark"
)

var modes = []string{ModeGT, ModeValidation, ModeTest, ModeBenchmark}

// ModeName maps an evolution mode number onto a scape mode; unknown numbers
// fall back to gt.
func ModeName(mode int) string {
	if mode < 0 || mode >= len(modes) {
		return ModeGT
	}
	return modes[mode]
}

var scapes = map[string]Scape{}

func register(s Scape) { scapes[s.Name()] = s }

func init() {
	register(XORScape{})
	for _, target := range regressionTargets {
		register(RegressionScape{target: target})
	}
}

// Lookup resolves a scape by name. Case, underscores and spaces are
// ignored, as are a "scape-" prefix and a "-sim" suffix.
func Lookup(name string) (Scape, error) {
	s, ok := scapes[NormalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("unknown scape %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return s, nil
}

func Names() []string {
	names := make([]string, 0, len(scapes))
	for name := range scapes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NormalizeName canonicalizes a scape name or alias.
func NormalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer("_", "-", " ", "-").Replace(n)
	n = strings.Trim(n, "-")
	if _, ok := scapes[n]; ok {
		return n
	}
	for _, candidate := range []string{
		strings.Trim(strings.TrimPrefix(n, "scape"), "-"),
		strings.TrimSuffix(strings.TrimSuffix(n, "1"), "-sim"),
	} {
		candidate = strings.TrimSuffix(strings.TrimSuffix(candidate, "1"), "-sim")
		if _, ok := scapes[candidate]; ok {
			return candidate
		}
	}
	return n
}

type sample struct {
	in   []float64
	want float64
}

// evaluateSamples scores predictions by squared error and reports both mse
// and sse in the trace.
func evaluateSamples(ctx context.Context, agent Agent, mode string, samples []sample, score func(sse, mse float64) Fitness) (Fitness, Trace, error) {
	var sse float64
	predictions := make([]float64, 0, len(samples))
	for _, s := range samples {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		predicted := agent.RunStep(s.in)
		predictions = append(predictions, predicted)
		delta := predicted - s.want
		sse += delta * delta
	}
	if len(samples) == 0 {
		return 0, Trace{"mse": 0.0, "sse": 0.0, "predictions": predictions, "mode": mode, "cases": 0}, nil
	}
	mse := sse / float64(len(samples))
	return score(sse, mse), Trace{
		"mse":         mse,
		"sse":         sse,
		"predictions": predictions,
		"mode":        mode,
		"cases":       len(samples),
	}, nil
}
