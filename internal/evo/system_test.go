package evo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"gpr/internal/graph"
	"gpr/internal/instr"
	"gpr/internal/prng"
)

func TestNewSystemValidation(t *testing.T) {
	_, err := NewSystem[*scalar](scalarRep{}, SystemConfig{Islands: 0, Population: Params{Size: 4}}, 1)
	require.Error(t, err)

	_, err = NewSystem[*scalar](scalarRep{}, SystemConfig{Islands: 2, Population: Params{Size: 1}}, 1)
	require.ErrorIs(t, err, ErrPopulationTooSmall)

	s, err := NewSystem[*scalar](scalarRep{}, SystemConfig{Islands: 2, Population: Params{Size: 4}}, 1)
	require.NoError(t, err)
	require.Equal(t, DefaultMigrationInterval, s.MigrationInterval)
}

func TestSystemMigratesOnCountdown(t *testing.T) {
	obs := &countingObserver{}
	s, err := NewSystem[*scalar](scalarRep{}, SystemConfig{
		Islands:           3,
		MigrationInterval: 3,
		Population:        Params{Size: 6, Elitism: 0.5, MutationProb: 0.1, Workers: 2},
		Observer:          obs,
	}, 5)
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		diags, err := s.Step(context.Background(), scalarFitness)
		require.NoError(t, err)
		require.Len(t, diags, 3)
	}
	require.Equal(t, 21, obs.generations)
	require.Len(t, obs.migrations, 2)
	for _, m := range obs.migrations {
		require.NotEqual(t, m[0], m[1])
	}
	for _, island := range s.Islands {
		require.Equal(t, 6, island.Len())
	}
	for i := 1; i < len(s.Islands); i++ {
		require.GreaterOrEqual(t, s.Islands[i-1].Mean(), s.Islands[i].Mean()-1e-9)
	}
}

func TestMigrationCopiesIntoLastSlot(t *testing.T) {
	s, err := NewSystem[*scalar](scalarRep{}, SystemConfig{Islands: 2, Population: Params{Size: 4}}, 11)
	require.NoError(t, err)
	for _, island := range s.Islands {
		for i := range island.Members {
			island.Fitness[i] = island.Members[i].v
		}
	}

	snapshot := s.rng
	a := snapshot.Intn(2)
	b := snapshot.Intn(1)
	if b >= a {
		b++
	}
	slot := snapshot.Intn(4)
	moved := *s.Islands[a].Members[slot]
	fitness := s.Islands[a].Fitness[slot]

	s.migrate()

	to := s.Islands[b]
	require.Equal(t, moved, *to.Members[3])
	require.Equal(t, fitness, to.Fitness[3])
	require.Zero(t, to.Ages[3])
	require.Zero(t, s.Islands[a].Fitness[slot])
	require.NotSame(t, to.Members[3], s.Islands[a].Members[slot])
}

func TestSystemIsDeterministic(t *testing.T) {
	run := func() (float64, string) {
		s, err := NewSystem[*scalar](scalarRep{}, SystemConfig{
			Islands:           4,
			MigrationInterval: 2,
			Population:        Params{Size: 8, Elitism: 0.25, MutationProb: 0.3, Workers: 3},
		}, 99)
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			_, err := s.Step(context.Background(), scalarFitness)
			require.NoError(t, err)
		}
		g, f, _ := s.Best()
		return f, Fingerprint[*scalar](scalarRep{}, g)
	}
	f1, g1 := run()
	f2, g2 := run()
	require.Equal(t, f1, f2)
	require.Equal(t, g1, g2)
}

func TestGraphRepresentationBreedsValidPrograms(t *testing.T) {
	compressions := 0
	rep := Graph{
		Config: graph.Config{
			Rows:               3,
			Columns:            6,
			Sensors:            2,
			Actuators:          1,
			ConnectionsPerGene: 3,
			ADFModules:         2,
			Chromosomes:        3,
			Set:                instr.Default(),
		},
		OnCompress: func(_ int, err error) {
			if err == nil {
				compressions++
			}
		},
	}
	eval := func(_ int, pop *Population[*graph.Program], i, _ int) float64 {
		p := pop.Members[i]
		errSum := 0.0
		for _, x := range []float64{-1, 0, 1, 2} {
			p.Clear()
			p.SetSensor(0, x)
			p.SetSensor(1, 1)
			p.Run(0, false, nil)
			d := p.Actuator(0) - (x + 1)
			errSum += d * d
		}
		return 1 / (1 + errSum)
	}
	pop, err := NewPopulation[*graph.Program](rep, Params{Size: 10, Elitism: 0.3, MutationProb: 0.2, Workers: 1}, 8)
	require.NoError(t, err)
	for gen := 0; gen < 8; gen++ {
		_, err := pop.Step(context.Background(), eval)
		require.NoError(t, err)
		for _, m := range pop.Members {
			require.NoError(t, graph.Validate(m, rep.Config))
		}
	}
	require.Positive(t, compressions)
}

func TestTreeRepresentationMatesWithinBounds(t *testing.T) {
	rep := treeRep()
	rng := prng.New(4)
	a, b := rep.Random(rng), rep.Random(rng)
	for i := 0; i < 50; i++ {
		child := rep.Mate(a, b, rng)
		rep.Mutate(child, 0.3, rng)
		require.LessOrEqual(t, child.Depth(), rep.Config.MaxDepth)
		a, b = b, child
	}
}
