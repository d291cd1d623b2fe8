package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"gpr/internal/evo"
	"gpr/internal/instr"
	"gpr/internal/tree"
)

func TestCollectorObservesGenerations(t *testing.T) {
	c, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	c.ObserveGeneration(evo.Diagnostics{Island: 0, BestFitness: 2, MeanFitness: 1, Evaluated: 8, Diversity: 0.5, MutationProb: 0.6})
	c.ObserveGeneration(evo.Diagnostics{Island: 1, BestFitness: 3, Evaluated: 6})
	c.ObserveGeneration(evo.Diagnostics{Island: 0, BestFitness: 4, Evaluated: 5})

	require.Equal(t, 3.0, testutil.ToFloat64(c.Generations))
	require.Equal(t, 19.0, testutil.ToFloat64(c.Evaluations))
	require.Equal(t, 4.0, testutil.ToFloat64(c.BestFitness.WithLabelValues("0")))
	require.Equal(t, 3.0, testutil.ToFloat64(c.BestFitness.WithLabelValues("1")))
	require.Equal(t, 2, testutil.CollectAndCount(c.BestFitness))
}

func TestCollectorObservesMigrationsAndCompressions(t *testing.T) {
	c, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	c.ObserveMigration(0, 2)
	c.ObserveMigration(1, 2)
	c.ObserveCompression(1, nil)
	c.ObserveCompression(-1, errors.New("no candidate"))
	c.ObserveCompression(-1, errors.New("no candidate"))

	require.Equal(t, 2.0, testutil.ToFloat64(c.Migrations.WithLabelValues("2")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.Compressions.WithLabelValues("ok")))
	require.Equal(t, 2.0, testutil.ToFloat64(c.Compressions.WithLabelValues("error")))
}

func TestNewRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	require.Error(t, err)
}

func TestCollectorDrivesSystem(t *testing.T) {
	c, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	rep := evo.Tree{Config: tree.Config{
		Sensors:   1,
		Actuators: 1,
		MaxDepth:  3,
		Set:       instr.MustSet(instr.Add, instr.Multiply, instr.Value),
	}}
	sys, err := evo.NewSystem[*tree.Program](rep, evo.SystemConfig{
		Islands:           2,
		MigrationInterval: 1,
		Population:        evo.Params{Size: 4, Elitism: 0.5, MutationProb: 0.5, Workers: 1},
		Observer:          c,
	}, 7)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := sys.Step(context.Background(), func(_ int, pop *evo.Population[*tree.Program], index, _ int) float64 {
			return float64(1 + pop.Members[index].Root.Count())
		})
		require.NoError(t, err)
	}
	require.Equal(t, 6.0, testutil.ToFloat64(c.Generations))
	require.Equal(t, 3, migrationTotal(t, c))
}

func migrationTotal(t *testing.T, c *Collector) int {
	t.Helper()
	total := 0.0
	for _, to := range []string{"0", "1"} {
		total += testutil.ToFloat64(c.Migrations.WithLabelValues(to))
	}
	return int(total)
}
