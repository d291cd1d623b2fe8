// Package storage persists runs, their genomes and the per-island snapshots
// and history a finished run leaves behind.
package storage

import (
	"context"
	"strconv"

	"gpr/internal/model"
)

// GenomeQuery selects genomes of one run. Islands restricts the result when
// non-empty and Limit caps it when positive.
type GenomeQuery struct {
	RunID   string
	Islands []int
	Limit   int
}

// Store defines transaction-like persistence operations for runs, genomes
// and their history.
type Store interface {
	Init(ctx context.Context) error
	SaveGenome(ctx context.Context, genome model.Genome) error
	GetGenome(ctx context.Context, id string) (model.Genome, bool, error)
	// ListGenomes returns the matching genomes in descending fitness order,
	// ties broken by id.
	ListGenomes(ctx context.Context, q GenomeQuery) ([]model.Genome, error)
	SavePopulation(ctx context.Context, population model.Population) error
	GetPopulation(ctx context.Context, id string) (model.Population, bool, error)
	SaveRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, bool, error)
	ListRuns(ctx context.Context) ([]model.Run, error)
	SaveFitnessHistory(ctx context.Context, runID string, history []model.FitnessHistory) error
	GetFitnessHistory(ctx context.Context, runID string) ([]model.FitnessHistory, bool, error)
	SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
}

// PopulationID is the snapshot id of one island of a run.
func PopulationID(runID string, island int) string {
	return runID + "/" + strconv.Itoa(island)
}
