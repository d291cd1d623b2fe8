package gpr

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"gpr/internal/config"
	"gpr/internal/evo"
	"gpr/internal/graph"
	"gpr/internal/metrics"
	"gpr/internal/model"
	"gpr/internal/scape"
	"gpr/internal/stats"
	"gpr/internal/storage"
)

type run struct {
	client    *Client
	id        string
	cfg       config.Config
	req       RunRequest
	scape     scape.Scape
	startedAt time.Time
	logger    *slog.Logger
}

// runObserver fans system events out to the metrics collector and the
// caller's progress hook, and keeps the diagnostics for persistence.
type runObserver struct {
	collector   *metrics.Collector
	progress    func(evo.Diagnostics)
	diagnostics []model.GenerationDiagnostics
	evaluations int
	migrations  int
}

func (o *runObserver) ObserveGeneration(d evo.Diagnostics) {
	o.collector.ObserveGeneration(d)
	o.evaluations += d.Evaluated
	o.diagnostics = append(o.diagnostics, model.GenerationDiagnostics{
		Island:       d.Island,
		Generation:   d.Generation,
		BestFitness:  d.BestFitness,
		MeanFitness:  d.MeanFitness,
		MinFitness:   d.MinFitness,
		Diversity:    d.Diversity,
		MutationProb: d.MutationProb,
		Distinct:     d.Distinct,
		Evaluated:    d.Evaluated,
		Elites:       d.Elites,
	})
	if o.progress != nil {
		o.progress(d)
	}
}

func (o *runObserver) ObserveMigration(from, to int) {
	o.collector.ObserveMigration(from, to)
	o.migrations++
}

// evaluator scores a member on the run's scape, averaging over trials.
// Scape errors score 0, which leaves the member marked unevaluated.
func evaluator[G any](ctx context.Context, sc scape.Scape, agent func(G, int) scape.Agent) evo.Evaluator[G] {
	return func(trials int, pop *evo.Population[G], index, mode int) float64 {
		g := pop.Members[index]
		total := 0.0
		for t := 0; t < trials; t++ {
			fitness, _, err := sc.Evaluate(ctx, agent(g, mode), scape.ModeName(mode))
			if err != nil {
				return 0
			}
			total += float64(fitness)
		}
		return total / float64(trials)
	}
}

func evolve[G any](
	ctx context.Context,
	r *run,
	sysCfg evo.SystemConfig,
	rep evo.Representation[G],
	agent func(G, int) scape.Agent,
	render func(G) string,
) (RunSummary, error) {
	observer := &runObserver{collector: r.client.metrics, progress: r.req.Progress}
	sysCfg.Observer = observer
	sys, err := evo.NewSystem(rep, sysCfg, r.cfg.Seed)
	if err != nil {
		return RunSummary{}, err
	}

	r.logger.Info("run started",
		"encoding", r.cfg.Encoding,
		"scape", r.scape.Name(),
		"islands", len(sys.Islands),
		"population", sysCfg.Population.Size,
		"generations", r.cfg.Generations,
		"seed", r.cfg.Seed,
	)

	eval := evaluator(ctx, r.scape, agent)
	for gen := 0; gen < r.cfg.Generations; gen++ {
		if _, err := sys.Step(ctx, eval); err != nil {
			return RunSummary{}, fmt.Errorf("generation %d: %w", gen, err)
		}
	}

	summary, err := persist(ctx, r, sys, rep, render, observer)
	if err != nil {
		return RunSummary{}, err
	}

	if r.req.ValidateChampion {
		best, _, _ := sys.Best()
		fitness, _, err := r.scape.Evaluate(ctx, agent(best, 1), scape.ModeValidation)
		if err != nil {
			return RunSummary{}, fmt.Errorf("validate champion: %w", err)
		}
		v := float64(fitness)
		summary.ValidationFitness = &v
	}

	summary.Elapsed = time.Since(r.startedAt)
	r.logger.Info("run finished",
		"best_fitness", summary.FinalBestFitness,
		"best_island", summary.BestIsland,
		"evaluations", summary.Evaluations,
		"migrations", summary.Migrations,
		"elapsed", summary.Elapsed,
	)
	return summary, nil
}

// persist saves every final island member, a population snapshot per
// island, the fitness histories and diagnostics, then writes the run
// artifacts and index entry.
func persist[G any](
	ctx context.Context,
	r *run,
	sys *evo.System[G],
	rep evo.Representation[G],
	render func(G) string,
	observer *runObserver,
) (RunSummary, error) {
	store := r.client.store
	encoding := model.Encoding(r.cfg.Encoding)

	var (
		top         []stats.TopGenome
		history     []model.FitnessHistory
		bestGenome  model.Genome
		bestText    string
		bestFitness float64
		bestIsland  = -1
	)
	for _, island := range sys.Islands {
		ids := make([]string, island.Len())
		champion := 0
		var championGenome model.Genome
		for i, g := range island.Members {
			payload, err := rep.Encode(g)
			if err != nil {
				return RunSummary{}, fmt.Errorf("encode island %d member %d: %w", island.Island, i, err)
			}
			genome := model.Genome{
				VersionedRecord: storage.Versioned(),
				ID:              uuid.NewString(),
				RunID:           r.id,
				Encoding:        encoding,
				Island:          island.Island,
				Generation:      island.Generation,
				Fitness:         island.Fitness[i],
				Payload:         payload,
			}
			if err := store.SaveGenome(ctx, genome); err != nil {
				return RunSummary{}, err
			}
			ids[i] = genome.ID
			if i == 0 || island.Fitness[i] > island.Fitness[champion] {
				champion = i
				championGenome = genome
			}
		}

		if err := store.SavePopulation(ctx, model.Population{
			VersionedRecord: storage.Versioned(),
			ID:              storage.PopulationID(r.id, island.Island),
			RunID:           r.id,
			Island:          island.Island,
			Generation:      island.Generation,
			GenomeIDs:       ids,
			Fitness:         append([]float64(nil), island.Fitness...),
			Ages:            append([]int(nil), island.Ages...),
			MutationProb:    island.MutationProb,
		}); err != nil {
			return RunSummary{}, err
		}

		text := render(island.Members[champion])
		top = append(top, stats.TopGenome{
			Fitness: championGenome.Fitness,
			Text:    text,
			Genome:  championGenome,
		})
		if bestIsland < 0 || championGenome.Fitness > bestFitness {
			bestGenome, bestText, bestFitness, bestIsland = championGenome, text, championGenome.Fitness, island.Island
		}

		points := island.History.Points()
		h := model.FitnessHistory{Island: island.Island, Stride: island.History.Stride(), Points: make([]model.HistoryPoint, len(points))}
		for i, p := range points {
			h.Points[i] = model.HistoryPoint{Best: p.Best, Mean: p.Mean}
		}
		history = append(history, h)
	}

	sort.SliceStable(top, func(i, j int) bool { return top[i].Fitness > top[j].Fitness })
	for i := range top {
		top[i].Rank = i + 1
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Island < history[j].Island })

	if err := store.SaveFitnessHistory(ctx, r.id, history); err != nil {
		return RunSummary{}, err
	}
	if err := store.SaveGenerationDiagnostics(ctx, r.id, observer.diagnostics); err != nil {
		return RunSummary{}, err
	}
	finishedAt := time.Now().UTC()
	if err := store.SaveRun(ctx, model.Run{
		VersionedRecord: storage.Versioned(),
		ID:              r.id,
		Encoding:        encoding,
		Seed:            r.cfg.Seed,
		Islands:         len(sys.Islands),
		Generations:     sys.Generation,
		BestFitness:     bestFitness,
		BestGenomeID:    bestGenome.ID,
		StartedAt:       r.startedAt,
		FinishedAt:      finishedAt,
	}); err != nil {
		return RunSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(r.client.artifactsDir, stats.RunArtifacts{
		Config:                r.runConfig(),
		History:               history,
		GenerationDiagnostics: observer.diagnostics,
		FinalBestFitness:      bestFitness,
		TopGenomes:            top,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(r.client.artifactsDir, stats.RunIndexEntry{
		RunID:            r.id,
		Encoding:         r.cfg.Encoding,
		Scape:            r.scape.Name(),
		Islands:          len(sys.Islands),
		PopulationSize:   r.cfg.Evolution.PopulationSize,
		Generations:      sys.Generation,
		Seed:             r.cfg.Seed,
		FinalBestFitness: bestFitness,
		CreatedAtUTC:     r.startedAt.Format(time.RFC3339Nano),
	}); err != nil {
		return RunSummary{}, err
	}
	r.logger.Info("run persisted", "dir", runDir, "genomes", len(sys.Islands)*r.cfg.Evolution.PopulationSize)

	return RunSummary{
		RunID:            r.id,
		ArtifactsDir:     runDir,
		Encoding:         encoding,
		BestByGeneration: stats.BestByGeneration(observer.diagnostics),
		FinalBestFitness: bestFitness,
		BestGenomeID:     bestGenome.ID,
		BestIsland:       bestIsland,
		BestText:         bestText,
		Evaluations:      observer.evaluations,
		Migrations:       observer.migrations,
	}, nil
}

func (r *run) runConfig() stats.RunConfig {
	cfg := r.cfg
	e := cfg.Evolution
	rc := stats.RunConfig{
		RunID:              r.id,
		Encoding:           cfg.Encoding,
		Scape:              r.scape.Name(),
		InstructionSet:     cfg.InstructionSet,
		Seed:               cfg.Seed,
		Islands:            e.Islands,
		PopulationSize:     e.PopulationSize,
		Generations:        cfg.Generations,
		MigrationInterval:  e.MigrationInterval,
		Elitism:            e.Elitism,
		MutationProb:       e.MutationProb,
		Trials:             e.Trials,
		Workers:            e.Workers,
		Selection:          e.Selection,
		FitnessPostprocess: e.Postprocessor,
		MutationPolicy:     e.MutationPolicy,
		Sensors:            cfg.Sensors,
		Actuators:          cfg.Actuators,
		MinConstant:        cfg.MinConstant,
		MaxConstant:        cfg.MaxConstant,
		Integer:            cfg.Integer,
		ADFProb:            cfg.ADFProb,
	}
	switch model.Encoding(cfg.Encoding) {
	case model.EncodingTree:
		rc.MaxDepth = cfg.Tree.MaxDepth
		rc.Registers = cfg.Tree.Registers
		rc.ADFs = cfg.Tree.ADFs
	case model.EncodingGraph:
		rc.Rows = cfg.Graph.Rows
		rc.Columns = cfg.Graph.Columns
		rc.ConnectionsPerGene = cfg.Graph.ConnectionsPerGene
		rc.ADFModules = cfg.Graph.ADFModules
		rc.Chromosomes = cfg.Graph.Chromosomes
		rc.Dropout = cfg.Graph.Dropout
		rc.Dynamic = cfg.Graph.Dynamic
		rc.CompressDepth = cfg.Graph.CompressDepth
	}
	return rc
}

// configFromRun rebuilds the run configuration a genome was evolved under.
func configFromRun(rc stats.RunConfig) config.Config {
	cfg := config.Default()
	cfg.Encoding = rc.Encoding
	cfg.InstructionSet = rc.InstructionSet
	cfg.Seed = rc.Seed
	cfg.Generations = rc.Generations
	cfg.Sensors = rc.Sensors
	cfg.Actuators = rc.Actuators
	cfg.MinConstant = rc.MinConstant
	cfg.MaxConstant = rc.MaxConstant
	cfg.Integer = rc.Integer
	cfg.ADFProb = rc.ADFProb
	cfg.Tree = config.TreeConfig{MaxDepth: rc.MaxDepth, Registers: rc.Registers, ADFs: rc.ADFs}
	cfg.Graph = config.GraphConfig{
		Rows:               rc.Rows,
		Columns:            rc.Columns,
		ConnectionsPerGene: rc.ConnectionsPerGene,
		ADFModules:         rc.ADFModules,
		Chromosomes:        rc.Chromosomes,
		Dropout:            rc.Dropout,
		Dynamic:            rc.Dynamic,
		CompressDepth:      rc.CompressDepth,
	}
	cfg.Evolution.Islands = rc.Islands
	cfg.Evolution.PopulationSize = rc.PopulationSize
	cfg.Evolution.MigrationInterval = rc.MigrationInterval
	cfg.Evolution.Elitism = rc.Elitism
	cfg.Evolution.MutationProb = rc.MutationProb
	cfg.Evolution.Trials = rc.Trials
	cfg.Evolution.Workers = rc.Workers
	cfg.Evolution.Selection = rc.Selection
	cfg.Evolution.Postprocessor = rc.FitnessPostprocess
	cfg.Evolution.MutationPolicy = rc.MutationPolicy
	return cfg.Normalize()
}

// describeGraph summarizes a graph program for logs and listings.
func describeGraph(p *graph.Program) string {
	var b strings.Builder
	fmt.Fprintf(&b, "main active=%d", p.Main().Active())
	referenced := p.Referenced()
	for i := 1; i < len(p.Modules); i++ {
		m := p.Modules[i]
		state := "free"
		if i < len(referenced) && referenced[i] {
			state = "called"
		}
		fmt.Fprintf(&b, " adf%d[%s arity=%d active=%d]", i, state, m.Arity(), m.Active())
	}
	return b.String()
}
