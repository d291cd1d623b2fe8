package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"gpr/internal/config"
	"gpr/internal/evo"
	"gpr/pkg/gpr"
)

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config YAML path")
	encoding := fs.String("encoding", "", "program encoding: tree|graph")
	scapeName := fs.String("scape", "quadratic", "scape name (see gprctl scapes)")
	instructions := fs.String("instructions", "", "instruction preset or comma-separated tag list")
	equationOnly := fs.Bool("equation-only", false, "reject instruction sets with copy or hebbian functions")
	seed := fs.Uint("seed", 0, "rng seed")
	generations := fs.Int("gens", 0, "generation count")
	islands := fs.Int("islands", 0, "island count")
	population := fs.Int("pop", 0, "population size per island")
	migration := fs.Int("migration-interval", 0, "generations between migrations")
	workers := fs.Int("workers", 0, "evaluation worker count")
	selection := fs.String("selection", "", "parent selection strategy: elite|tournament")
	postprocessor := fs.String("fitness-postprocessor", "", "fitness postprocessor: none|size_proportional")
	mutationPolicy := fs.String("mutation-policy", "", "mutation probability policy: const|diversity_adaptive")
	validate := fs.Bool("validate", false, "re-score the champion in validation mode")
	jsonOut := fs.Bool("json", false, "emit the run summary as JSON")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	logJSON := fs.Bool("log-json", false, "emit logs as JSON")
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	// Flags override the file only when given on the command line.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "encoding":
			cfg.Encoding = *encoding
		case "instructions":
			cfg.InstructionSet = *instructions
		case "equation-only":
			cfg.EquationOnly = *equationOnly
		case "seed":
			cfg.Seed = uint32(*seed)
		case "gens":
			cfg.Generations = *generations
		case "islands":
			cfg.Evolution.Islands = *islands
		case "pop":
			cfg.Evolution.PopulationSize = *population
		case "migration-interval":
			cfg.Evolution.MigrationInterval = *migration
		case "workers":
			cfg.Evolution.Workers = *workers
		case "selection":
			cfg.Evolution.Selection = *selection
		case "fitness-postprocessor":
			cfg.Evolution.Postprocessor = *postprocessor
		case "mutation-policy":
			cfg.Evolution.MutationPolicy = *mutationPolicy
		case "store":
			cfg.Store.Backend = *store.kind
		case "db-path":
			cfg.Store.SQLitePath = *store.dbPath
		case "artifacts":
			cfg.Store.ArtifactsDir = *store.artifacts
		}
	})
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = *store.dbPath
	}
	if cfg.Store.ArtifactsDir == "" {
		cfg.Store.ArtifactsDir = *store.artifacts
	}

	logger, err := newLogger(os.Stderr, *logLevel, *logJSON)
	if err != nil {
		return err
	}
	client, err := gpr.New(gpr.Options{
		StoreKind:    cfg.Store.Backend,
		DBPath:       cfg.Store.SQLitePath,
		ArtifactsDir: cfg.Store.ArtifactsDir,
		ExportsDir:   exportsDir,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	req := gpr.RunRequest{
		Config:           cfg,
		Scape:            *scapeName,
		ValidateChampion: *validate,
	}
	if !*jsonOut && isatty.IsTerminal(os.Stderr.Fd()) {
		req.Progress = newProgressLine(os.Stderr, cfg.Normalize()).update
	}

	started := time.Now()
	summary, err := client.Run(ctx, req)
	if req.Progress != nil {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	printRunSummary(os.Stdout, summary, started)
	return nil
}

func printRunSummary(w io.Writer, s gpr.RunSummary, started time.Time) {
	fmt.Fprintf(w, "run_id=%s encoding=%s final_best_fitness=%.6f best_island=%d best_genome_id=%s\n",
		s.RunID, s.Encoding, s.FinalBestFitness, s.BestIsland, s.BestGenomeID)
	fmt.Fprintf(w, "evaluations=%s migrations=%d finished=%s\n",
		humanize.Comma(int64(s.Evaluations)), s.Migrations, humanize.RelTime(started, started.Add(s.Elapsed), "", ""))
	if s.ValidationFitness != nil {
		fmt.Fprintf(w, "validation_fitness=%.6f\n", *s.ValidationFitness)
	}
	fmt.Fprintf(w, "best=%s\n", s.BestText)
	fmt.Fprintf(w, "artifacts=%s\n", filepath.Clean(s.ArtifactsDir))
}

// progressLine redraws a single status line on a terminal after every
// completed generation of the last island.
type progressLine struct {
	w           io.Writer
	islands     int
	generations int
	evaluations int
	best        float64
}

func newProgressLine(w io.Writer, cfg config.Config) *progressLine {
	return &progressLine{w: w, islands: cfg.Evolution.Islands, generations: cfg.Generations}
}

func (p *progressLine) update(d evo.Diagnostics) {
	p.evaluations += d.Evaluated
	p.best = max(p.best, d.BestFitness)
	if d.Island != p.islands-1 {
		return
	}
	fmt.Fprintf(p.w, "\rgeneration %d/%d best=%.6f evaluations=%s   ",
		d.Generation, p.generations, p.best, humanize.Comma(int64(p.evaluations)))
}
