// Package gpr is the public entry point for running island-model genetic
// programming over tree or graph programs and inspecting finished runs.
package gpr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"gpr/internal/config"
	"gpr/internal/evo"
	"gpr/internal/graph"
	"gpr/internal/instr"
	"gpr/internal/metrics"
	"gpr/internal/model"
	"gpr/internal/scape"
	"gpr/internal/stats"
	"gpr/internal/storage"
	"gpr/internal/tree"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "gpr.db"
	defaultScape        = "quadratic"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
	// Registerer receives the run metrics. A private registry is used when
	// nil.
	Registerer prometheus.Registerer
}

type Client struct {
	store   storage.Store
	logger  *slog.Logger
	metrics *metrics.Collector

	initOnce sync.Once
	initErr  error

	artifactsDir string
	exportsDir   string
}

type RunRequest struct {
	Config config.Config
	// Scape names the fitness environment; see scape.Names.
	Scape string
	// ValidateChampion re-scores the overall champion in validation mode.
	ValidateChampion bool
	// Progress is called once per island per generation from the goroutine
	// driving the run.
	Progress func(evo.Diagnostics)
	Custom   instr.CustomFunc
}

type RunSummary struct {
	RunID             string
	ArtifactsDir      string
	Encoding          model.Encoding
	BestByGeneration  []float64
	FinalBestFitness  float64
	BestGenomeID      string
	BestIsland        int
	BestText          string
	ValidationFitness *float64
	Evaluations       int
	Migrations        int
	Elapsed           time.Duration
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Encoding         string
	Scape            string
	Seed             uint32
	Islands          int
	Population       int
	Generations      int
	FinalBestFitness float64
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}
	collector, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	return &Client{
		store:        store,
		logger:       logger.With("component", "gpr"),
		metrics:      collector,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Metrics exposes the collector the client's runs report to.
func (c *Client) Metrics() *metrics.Collector { return c.metrics }

func (c *Client) ensureStore(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.store.Init(ctx)
	})
	return c.initErr
}

// Run evolves a population system for Config.Generations generations,
// persists every final island and writes the run artifacts.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	cfg := req.Config.Normalize()
	if err := cfg.Validate(); err != nil {
		return RunSummary{}, err
	}
	if req.Scape == "" {
		req.Scape = defaultScape
	}
	sc, err := scape.Lookup(req.Scape)
	if err != nil {
		return RunSummary{}, err
	}
	if sc.Inputs() > cfg.Sensors {
		return RunSummary{}, fmt.Errorf("scape %s needs %d sensors, config has %d", sc.Name(), sc.Inputs(), cfg.Sensors)
	}
	sysCfg, err := cfg.SystemConfig()
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	startedAt := time.Now().UTC()
	runID := stats.NewRunID(startedAt, uuid.NewString()[:8])
	r := &run{
		client:    c,
		id:        runID,
		cfg:       cfg,
		req:       req,
		scape:     sc,
		startedAt: startedAt,
		logger:    c.logger.With("run_id", runID),
	}
	sysCfg.Logger = r.logger

	switch model.Encoding(cfg.Encoding) {
	case model.EncodingTree:
		rep := evo.Tree{Config: cfg.TreeConfig()}
		agent := func(p *tree.Program, _ int) scape.Agent {
			return scape.TreeAgent{Program: p, Custom: req.Custom}
		}
		render := func(p *tree.Program) string { return p.String() }
		return evolve[*tree.Program](ctx, r, sysCfg, rep, agent, render)
	case model.EncodingGraph:
		rep := evo.Graph{
			Config:     cfg.GraphConfig(),
			Compress:   cfg.CompressOptions(),
			OnCompress: c.metrics.ObserveCompression,
		}
		agent := func(p *graph.Program, mode int) scape.Agent {
			dropout := 0.0
			if scape.ModeName(mode) == scape.ModeGT {
				dropout = cfg.Graph.Dropout
			}
			return scape.GraphAgent{Program: p, Dropout: dropout, Dynamic: cfg.Graph.Dynamic, Custom: req.Custom}
		}
		return evolve[*graph.Program](ctx, r, sysCfg, rep, agent, describeGraph)
	default:
		return RunSummary{}, fmt.Errorf("%w: %q", config.ErrUnknownEncoding, cfg.Encoding)
	}
}

// Runs lists the run index newest first. Runs the store knows about but
// the index does not, such as runs recorded under another artifacts
// directory, follow the indexed ones.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	out := make([]RunItem, 0, len(entries))
	indexed := make(map[string]bool, len(entries))
	for _, e := range entries {
		indexed[e.RunID] = true
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			Encoding:         e.Encoding,
			Scape:            e.Scape,
			Seed:             e.Seed,
			Islands:          e.Islands,
			Population:       e.PopulationSize,
			Generations:      e.Generations,
			FinalBestFitness: e.FinalBestFitness,
		})
	}

	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	stored, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range stored {
		if indexed[r.ID] {
			continue
		}
		out = append(out, RunItem{
			RunID:            r.ID,
			CreatedAtUTC:     r.StartedAt.UTC().Format(time.RFC3339Nano),
			Encoding:         string(r.Encoding),
			Seed:             r.Seed,
			Islands:          r.Islands,
			Generations:      r.Generations,
			FinalBestFitness: r.BestFitness,
		})
	}

	if len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id or latest is required")
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}
