package evo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"gpr/internal/tree"
)

func TestNewPopulationRejectsTinySize(t *testing.T) {
	_, err := NewPopulation[*scalar](scalarRep{}, Params{Size: 1}, 1)
	require.True(t, errors.Is(err, ErrPopulationTooSmall))
}

func TestParamsNormalizeClampsElitism(t *testing.T) {
	for _, e := range []float64{0, 0.05, 0.95, -1} {
		require.Equal(t, DefaultElitism, Params{Elitism: e}.Normalize().Elitism)
	}
	p := Params{Elitism: 0.25, MutationProb: 3}.Normalize()
	require.Equal(t, 0.25, p.Elitism)
	require.Equal(t, 1.0, p.MutationProb)
	require.Positive(t, p.Workers)
	require.Equal(t, "elite", p.Selector.Name())
}

func TestConstantFitnessGenerations(t *testing.T) {
	rep := Tree{Config: tree.Config{Sensors: 1, Actuators: 1, MaxDepth: 3}}
	pop, err := NewPopulation[*tree.Program](rep, Params{Size: 8, Elitism: 0.25, MutationProb: 0.2, Workers: 3}, 42)
	require.NoError(t, err)
	require.Equal(t, 2, pop.Elites())

	for gen := 0; gen < 5; gen++ {
		d, err := pop.Step(context.Background(), constantFitness[*tree.Program])
		require.NoError(t, err)
		require.Equal(t, gen+1, d.Generation)
		require.Equal(t, 1.0, d.BestFitness)
		require.Len(t, pop.Members, 8)
		require.Len(t, pop.Fitness, 8)
		require.Len(t, pop.Ages, 8)
		for i := range pop.Members {
			require.LessOrEqual(t, pop.Ages[i], MaxAge)
			require.Contains(t, []float64{0, 1}, pop.Fitness[i])
			require.NoError(t, tree.Validate(pop.Members[i], rep.Config))
		}
		for i := 0; i < 2; i++ {
			require.Equal(t, 1.0, pop.Fitness[i])
		}
		for i := 2; i < 8; i++ {
			require.Zero(t, pop.Fitness[i])
			require.Zero(t, pop.Ages[i])
		}
	}
	require.Equal(t, 5, pop.History.Generations())
	// Constant fitness leaves no spread, so every gene mutates.
	require.Zero(t, pop.Diversity)
	require.InDelta(t, 1.0, pop.MutationProb, 1e-12)
}

func TestElitesNeverLoseFitness(t *testing.T) {
	pop, err := NewPopulation[*scalar](scalarRep{}, Params{Size: 12, Elitism: 0.25, MutationProb: 0.5, Workers: 4}, 9)
	require.NoError(t, err)
	before := 0.0
	for gen := 0; gen < 30; gen++ {
		_, err := pop.Step(context.Background(), scalarFitness)
		require.NoError(t, err)
		best := pop.Fitness[0]
		for i := 1; i < pop.Elites(); i++ {
			best = max(best, pop.Fitness[i])
		}
		require.GreaterOrEqual(t, best, before)
		before = best
	}
	// Ranking keeps members and fitness aligned.
	for i := 0; i < pop.Elites(); i++ {
		require.Equal(t, pop.Members[i].v, pop.Fitness[i])
	}
}

func TestAgedIndividualsAreReplaced(t *testing.T) {
	pop, err := NewPopulation[*scalar](scalarRep{}, Params{Size: 4, Elitism: 0.5}, 3)
	require.NoError(t, err)
	pop.Ages[0] = MaxAge
	pop.Fitness[0] = 100
	_, err = pop.Evaluate(context.Background(), scalarFitness)
	require.NoError(t, err)
	require.Zero(t, pop.Fitness[0])
	require.Equal(t, MaxAge+1, pop.Ages[0])
}

func TestEvaluateSkipsScoredMembers(t *testing.T) {
	pop, err := NewPopulation[*scalar](scalarRep{}, Params{Size: 4, Elitism: 0.5}, 3)
	require.NoError(t, err)
	pop.Fitness[1] = 7
	n, err := pop.Evaluate(context.Background(), scalarFitness)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, 7.0, pop.Fitness[1])

	pop.params.ForceEvaluate = true
	n, err = pop.Evaluate(context.Background(), scalarFitness)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, pop.Members[1].v, pop.Fitness[1])
}

func TestStepHonorsCancellation(t *testing.T) {
	pop, err := NewPopulation[*scalar](scalarRep{}, Params{Size: 4}, 3)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pop.Step(ctx, scalarFitness)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPopulationStepIsDeterministic(t *testing.T) {
	run := func() []string {
		pop, err := NewPopulation[*tree.Program](treeRep(), Params{Size: 10, Elitism: 0.3, MutationProb: 0.2, Workers: 4}, 77)
		require.NoError(t, err)
		for i := 0; i < 6; i++ {
			_, err := pop.Step(context.Background(), squareFitness)
			require.NoError(t, err)
		}
		out := make([]string, pop.Len())
		for i, m := range pop.Members {
			out[i] = m.String()
		}
		return out
	}
	require.Equal(t, run(), run())
}
