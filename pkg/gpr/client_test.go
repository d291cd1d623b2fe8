package gpr

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"gpr/internal/config"
	"gpr/internal/evo"
	"gpr/internal/model"
	"gpr/internal/scape"
	"gpr/internal/stats"
)

func newTestClient(t *testing.T) (*Client, string) {
	t.Helper()
	base := t.TempDir()
	client, err := New(Options{
		StoreKind:    "memory",
		ArtifactsDir: filepath.Join(base, "runs"),
		ExportsDir:   filepath.Join(base, "exports"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, base
}

func smallTreeConfig() config.Config {
	cfg := config.Default()
	cfg.Generations = 4
	cfg.Seed = 42
	cfg.Evolution.Islands = 2
	cfg.Evolution.PopulationSize = 8
	cfg.Evolution.MigrationInterval = 2
	cfg.Evolution.Workers = 2
	return cfg
}

func smallGraphConfig() config.Config {
	cfg := smallTreeConfig()
	cfg.Encoding = string(model.EncodingGraph)
	cfg.InstructionSet = "default"
	cfg.Graph = config.GraphConfig{Rows: 3, Columns: 4, ConnectionsPerGene: 2, ADFModules: 2, Chromosomes: 1}
	return cfg
}

func TestClientRunTreePersistsAndQueries(t *testing.T) {
	client, base := newTestClient(t)
	ctx := context.Background()

	progress := 0
	summary, err := client.Run(ctx, RunRequest{
		Config:           smallTreeConfig(),
		Scape:            "quadratic",
		ValidateChampion: true,
		Progress:         func(evo.Diagnostics) { progress++ },
	})
	require.NoError(t, err)
	require.NotEmpty(t, summary.RunID)
	require.Equal(t, model.EncodingTree, summary.Encoding)
	require.Len(t, summary.BestByGeneration, 4)
	require.Equal(t, 8, progress)
	require.Equal(t, 2, summary.Migrations)
	require.Positive(t, summary.Evaluations)
	require.NotNil(t, summary.ValidationFitness)
	require.NotEmpty(t, summary.BestText)

	require.Equal(t, 8.0, testutil.ToFloat64(client.Metrics().Generations))

	runs, err := client.Runs(ctx, RunsRequest{Limit: 5})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, summary.RunID, runs[0].RunID)
	require.Equal(t, "quadratic", runs[0].Scape)

	history, err := client.FitnessHistory(ctx, HistoryRequest{Latest: true})
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, h := range history {
		require.Len(t, h.Points, 4)
	}

	diags, err := client.Diagnostics(ctx, DiagnosticsRequest{RunID: summary.RunID, Islands: []int{1}})
	require.NoError(t, err)
	require.Len(t, diags, 4)

	champions := 0
	for island := 0; island < 2; island++ {
		view, err := client.Population(ctx, PopulationRequest{RunID: summary.RunID, Island: island})
		require.NoError(t, err)
		require.Len(t, view.Members, 8)
		require.Equal(t, 1, view.Members[0].Rank)
		require.GreaterOrEqual(t, view.Members[0].Fitness, view.Members[7].Fitness)
		for _, m := range view.Members {
			if m.Champion {
				champions++
			}
		}
	}
	require.Equal(t, 1, champions)

	ranked, err := client.Genomes(ctx, GenomesRequest{RunID: summary.RunID, Limit: 3})
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	require.Equal(t, summary.FinalBestFitness, ranked[0].Fitness)

	top, err := client.TopGenomes(ctx, TopGenomesRequest{RunID: summary.RunID})
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, 1, top[0].Rank)
	require.Equal(t, summary.BestGenomeID, top[0].Genome.ID)
	require.GreaterOrEqual(t, top[0].Fitness, top[1].Fitness)

	loaded, err := client.LoadGenome(ctx, GenomeRequest{ID: summary.BestGenomeID, Rescore: true})
	require.NoError(t, err)
	require.Equal(t, summary.RunID, loaded.RunID)
	require.Equal(t, summary.BestText, loaded.Text)
	require.Len(t, loaded.Scores, 3)

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, "exports", summary.RunID), exported.Directory)
	_, err = os.Stat(filepath.Join(exported.Directory, "fitness_history.csv"))
	require.NoError(t, err)
}

func TestClientRunGraphCompressesAndReloads(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	summary, err := client.Run(ctx, RunRequest{Config: smallGraphConfig(), Scape: "xor"})
	require.Error(t, err, "xor needs two sensors")

	cfg := smallGraphConfig()
	cfg.Sensors = 2
	summary, err = client.Run(ctx, RunRequest{Config: cfg, Scape: "xor"})
	require.NoError(t, err)
	require.Equal(t, model.EncodingGraph, summary.Encoding)
	require.Contains(t, summary.BestText, "main active=")

	compressions := testutil.ToFloat64(client.Metrics().Compressions.WithLabelValues("ok")) +
		testutil.ToFloat64(client.Metrics().Compressions.WithLabelValues("error"))
	require.Positive(t, compressions)

	loaded, err := client.LoadGenome(ctx, GenomeRequest{RunID: summary.RunID, Rank: 1})
	require.NoError(t, err)
	require.Equal(t, summary.BestGenomeID, loaded.Record.ID)
	require.Positive(t, loaded.Size)
}

func TestClientQueriesFallBackToArtifacts(t *testing.T) {
	client, base := newTestClient(t)
	ctx := context.Background()

	summary, err := client.Run(ctx, RunRequest{Config: smallTreeConfig()})
	require.NoError(t, err)

	// A fresh client has an empty memory store and must read the artifacts.
	other, err := New(Options{StoreKind: "memory", ArtifactsDir: filepath.Join(base, "runs")})
	require.NoError(t, err)

	history, err := other.FitnessHistory(ctx, HistoryRequest{RunID: summary.RunID})
	require.NoError(t, err)
	require.Len(t, history, 2)

	diags, err := other.Diagnostics(ctx, DiagnosticsRequest{Latest: true, Limit: 3})
	require.NoError(t, err)
	require.Len(t, diags, 3)

	loaded, err := other.LoadGenome(ctx, GenomeRequest{Latest: true})
	require.NoError(t, err)
	require.Equal(t, summary.BestGenomeID, loaded.Record.ID)
}

func TestClientRunsIncludesStoreOnlyRuns(t *testing.T) {
	client, base := newTestClient(t)
	ctx := context.Background()

	summary, err := client.Run(ctx, RunRequest{Config: smallTreeConfig()})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(base, "runs", "run_index.json")))

	runs, err := client.Runs(ctx, RunsRequest{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, summary.RunID, runs[0].RunID)
	require.Equal(t, "tree", runs[0].Encoding)
	require.Empty(t, runs[0].Scape)

	_, err = client.Population(ctx, PopulationRequest{RunID: summary.RunID, Island: 5})
	require.Error(t, err)
}

func TestClientRunDeterministicForSeed(t *testing.T) {
	ctx := context.Background()
	var results [][]float64
	for i := 0; i < 2; i++ {
		client, _ := newTestClient(t)
		cfg := smallTreeConfig()
		cfg.Evolution.Workers = 1
		summary, err := client.Run(ctx, RunRequest{Config: cfg})
		require.NoError(t, err)
		results = append(results, summary.BestByGeneration)
	}
	require.Equal(t, results[0], results[1])
}

func TestClientRunRejectsBadRequests(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	cfg := smallTreeConfig()
	cfg.Evolution.Selection = "roulette"
	_, err := client.Run(ctx, RunRequest{Config: cfg})
	require.ErrorIs(t, err, evo.ErrStrategyNotFound)

	_, err = client.Run(ctx, RunRequest{Config: smallTreeConfig(), Scape: "pole-balancing"})
	require.Error(t, err)

	cfg = smallTreeConfig()
	cfg.Encoding = "linear"
	_, err = client.Run(ctx, RunRequest{Config: cfg})
	require.ErrorIs(t, err, config.ErrUnknownEncoding)

	_, err = client.Export(ctx, ExportRequest{RunID: "x", Latest: true})
	require.Error(t, err)
	_, err = client.FitnessHistory(ctx, HistoryRequest{Latest: true})
	require.Error(t, err)
}

func TestConfigFromRunRoundTrip(t *testing.T) {
	cfg := smallGraphConfig().Normalize()
	r := &run{id: "r", cfg: cfg, scape: mustScape(t, "quadratic")}
	back := configFromRun(r.runConfig())
	require.Equal(t, cfg.GraphConfig().Rows, back.GraphConfig().Rows)
	require.Equal(t, cfg.Evolution, back.Evolution)
	require.Equal(t, cfg.InstructionSet, back.InstructionSet)

	var rc stats.RunConfig
	require.Equal(t, config.Default().Encoding, configFromRun(rc).Encoding)
}

func mustScape(t *testing.T, name string) scape.Scape {
	t.Helper()
	sc, err := scape.Lookup(name)
	require.NoError(t, err)
	return sc
}
