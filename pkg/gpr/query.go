package gpr

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"gpr/internal/config"
	"gpr/internal/graph"
	"gpr/internal/model"
	"gpr/internal/scape"
	"gpr/internal/stats"
	"gpr/internal/storage"
	"gpr/internal/tree"
)

type HistoryRequest struct {
	RunID  string
	Latest bool
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	// Islands restricts the result to the listed islands when non-empty.
	Islands []int
	Limit   int
}

type TopGenomesRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

// GenomeRequest selects a stored genome either by id or by champion rank
// within a run (rank 1 is the overall best).
type GenomeRequest struct {
	RunID  string
	Latest bool
	ID     string
	Rank   int
	// Rescore replays the genome on the run's scape in every mode.
	Rescore bool
}

type PopulationRequest struct {
	RunID  string
	Latest bool
	Island int
	Limit  int
}

type PopulationMember struct {
	Rank     int     `json:"rank"`
	GenomeID string  `json:"genome_id"`
	Fitness  float64 `json:"fitness"`
	Age      int     `json:"age"`
	Champion bool    `json:"champion"`
}

// PopulationView is the final snapshot of one island.
type PopulationView struct {
	RunID        string             `json:"run_id"`
	Island       int                `json:"island"`
	Generation   int                `json:"generation"`
	MutationProb float64            `json:"mutation_prob"`
	Members      []PopulationMember `json:"members"`
}

type GenomesRequest struct {
	RunID   string
	Latest  bool
	Islands []int
	Limit   int
}

type LoadedGenome struct {
	RunID  string
	Record model.Genome
	Text   string
	Size   int
	// Scores maps scape mode to fitness when Rescore was requested.
	Scores map[string]float64
}

// FitnessHistory returns the compacted per-island history of a run, from
// the store when it still holds the run and from the artifacts otherwise.
func (c *Client) FitnessHistory(ctx context.Context, req HistoryRequest) ([]model.FitnessHistory, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		history, ok, err = stats.ReadHistoryCSV(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	return history, nil
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.GenerationDiagnostics, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		diagnostics, ok, err = stats.ReadGenerationDiagnostics(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}

	out := make([]model.GenerationDiagnostics, 0, len(diagnostics))
	for _, d := range diagnostics {
		if len(req.Islands) > 0 && !slices.Contains(req.Islands, d.Island) {
			continue
		}
		out = append(out, d)
		if req.Limit > 0 && len(out) == req.Limit {
			break
		}
	}
	return out, nil
}

func (c *Client) TopGenomes(_ context.Context, req TopGenomesRequest) ([]stats.TopGenome, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	top, ok, err := stats.ReadTopGenomes(c.artifactsDir, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("top genomes not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(top) > req.Limit {
		top = top[:req.Limit]
	}
	return top, nil
}

// Population reads an island snapshot from the store. Snapshots live only
// in the store, so with the memory backend they are visible to the client
// that ran the evolution and nowhere else.
func (c *Client) Population(ctx context.Context, req PopulationRequest) (PopulationView, error) {
	if req.Limit < 0 {
		return PopulationView{}, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return PopulationView{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return PopulationView{}, err
	}
	snapshot, ok, err := c.store.GetPopulation(ctx, storage.PopulationID(runID, req.Island))
	if err != nil {
		return PopulationView{}, err
	}
	if !ok {
		return PopulationView{}, fmt.Errorf("population snapshot not found for run %s island %d", runID, req.Island)
	}
	run, _, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return PopulationView{}, err
	}

	view := PopulationView{
		RunID:        runID,
		Island:       snapshot.Island,
		Generation:   snapshot.Generation,
		MutationProb: snapshot.MutationProb,
	}
	for i, id := range snapshot.GenomeIDs {
		view.Members = append(view.Members, PopulationMember{
			GenomeID: id,
			Fitness:  snapshot.Fitness[i],
			Age:      snapshot.Ages[i],
			Champion: id == run.BestGenomeID,
		})
	}
	// Migrants land after the last Step, so the snapshot may be out of order.
	sort.SliceStable(view.Members, func(i, j int) bool { return view.Members[i].Fitness > view.Members[j].Fitness })
	for i := range view.Members {
		view.Members[i].Rank = i + 1
	}
	if req.Limit > 0 && len(view.Members) > req.Limit {
		view.Members = view.Members[:req.Limit]
	}
	return view, nil
}

// Genomes ranks the stored genomes of a run by fitness.
func (c *Client) Genomes(ctx context.Context, req GenomesRequest) ([]model.Genome, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	return c.store.ListGenomes(ctx, storage.GenomeQuery{RunID: runID, Islands: req.Islands, Limit: req.Limit})
}

// LoadGenome decodes a stored genome under the configuration of the run
// that produced it. Decoding validates the program, so a returned error
// wrapping *tree.ValidationError or *graph.ValidationError means the stored
// payload is structurally broken.
func (c *Client) LoadGenome(ctx context.Context, req GenomeRequest) (LoadedGenome, error) {
	record, runID, err := c.findGenome(ctx, req)
	if err != nil {
		return LoadedGenome{}, err
	}
	rc, ok, err := stats.ReadRunConfig(c.artifactsDir, runID)
	if err != nil {
		return LoadedGenome{}, err
	}
	if !ok {
		return LoadedGenome{}, fmt.Errorf("run config not found for run id: %s", runID)
	}
	cfg := configFromRun(rc)

	var (
		agent func(mode int) scape.Agent
		out   = LoadedGenome{RunID: runID, Record: record}
	)
	switch record.Encoding {
	case model.EncodingTree:
		p, err := tree.Load(record.Payload, cfg.TreeConfig())
		if err != nil {
			return LoadedGenome{}, fmt.Errorf("genome %s: %w", record.ID, err)
		}
		out.Text, out.Size = p.String(), p.Root.Count()
		agent = func(int) scape.Agent { return scape.TreeAgent{Program: p} }
	case model.EncodingGraph:
		p, err := graph.Load(record.Payload, cfg.GraphConfig())
		if err != nil {
			return LoadedGenome{}, fmt.Errorf("genome %s: %w", record.ID, err)
		}
		out.Text = describeGraph(p)
		for _, m := range p.Modules {
			out.Size += m.Active()
		}
		agent = func(int) scape.Agent { return scape.GraphAgent{Program: p, Dynamic: cfg.Graph.Dynamic} }
	default:
		return LoadedGenome{}, fmt.Errorf("%w: %q", config.ErrUnknownEncoding, record.Encoding)
	}

	if req.Rescore {
		sc, err := scape.Lookup(rc.Scape)
		if err != nil {
			return LoadedGenome{}, err
		}
		out.Scores = make(map[string]float64)
		for _, mode := range []string{scape.ModeGT, scape.ModeValidation, scape.ModeTest} {
			fitness, _, err := sc.Evaluate(ctx, agent(0), mode)
			if err != nil {
				return LoadedGenome{}, fmt.Errorf("rescore %s: %w", mode, err)
			}
			out.Scores[mode] = float64(fitness)
		}
	}
	return out, nil
}

func (c *Client) findGenome(ctx context.Context, req GenomeRequest) (model.Genome, string, error) {
	if req.ID != "" {
		if err := c.ensureStore(ctx); err != nil {
			return model.Genome{}, "", err
		}
		record, ok, err := c.store.GetGenome(ctx, req.ID)
		if err != nil {
			return model.Genome{}, "", err
		}
		if ok {
			return record, record.RunID, nil
		}
		if req.RunID == "" && !req.Latest {
			return model.Genome{}, "", fmt.Errorf("genome not found: %s", req.ID)
		}
	}

	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return model.Genome{}, "", err
	}
	top, ok, err := stats.ReadTopGenomes(c.artifactsDir, runID)
	if err != nil {
		return model.Genome{}, "", err
	}
	if !ok {
		return model.Genome{}, "", fmt.Errorf("top genomes not found for run id: %s", runID)
	}
	for _, t := range top {
		if (req.ID != "" && t.Genome.ID == req.ID) || (req.ID == "" && t.Rank == max(req.Rank, 1)) {
			return t.Genome, runID, nil
		}
	}
	if req.ID != "" {
		return model.Genome{}, "", fmt.Errorf("genome %s not found in run %s", req.ID, runID)
	}
	return model.Genome{}, "", fmt.Errorf("rank %d not found in run %s", max(req.Rank, 1), runID)
}
