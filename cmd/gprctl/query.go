package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"gpr/pkg/gpr"
)

func openClient(store storeFlags) (*gpr.Client, error) {
	return gpr.New(gpr.Options{
		StoreKind:    *store.kind,
		DBPath:       *store.dbPath,
		ArtifactsDir: *store.artifacts,
		ExportsDir:   exportsDir,
	})
}

func encodeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := openClient(store)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, gpr.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		return encodeJSON(runs)
	}
	for _, r := range runs {
		fmt.Printf("run_id=%s created_at=%s encoding=%s scape=%s seed=%d islands=%d pop=%d gens=%d final_best_fitness=%.6f\n",
			r.RunID,
			r.CreatedAtUTC,
			r.Encoding,
			r.Scape,
			r.Seed,
			r.Islands,
			r.Population,
			r.Generations,
			r.FinalBestFitness,
		)
	}
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	sel := addRunSelector(fs, "fitness history")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := sel.check("history"); err != nil {
		return err
	}

	client, err := openClient(store)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, gpr.HistoryRequest{RunID: *sel.runID, Latest: *sel.latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		return encodeJSON(history)
	}
	for _, h := range history {
		for i, p := range h.Points {
			fmt.Printf("island=%d first_generation=%d stride=%d best=%.6f mean=%.6f\n",
				h.Island, i*h.Stride, h.Stride, p.Best, p.Mean)
		}
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	sel := addRunSelector(fs, "diagnostics")
	islands := fs.String("islands", "", "comma-separated island filter")
	limit := fs.Int("limit", 50, "max rows to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := sel.check("diagnostics"); err != nil {
		return err
	}
	filter, err := parseIslands(*islands)
	if err != nil {
		return err
	}

	client, err := openClient(store)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, gpr.DiagnosticsRequest{
		RunID:   *sel.runID,
		Latest:  *sel.latest,
		Islands: filter,
		Limit:   max(*limit, 0),
	})
	if err != nil {
		return err
	}
	if len(diagnostics) == 0 {
		fmt.Println("no diagnostics")
		return nil
	}
	if *jsonOut {
		return encodeJSON(diagnostics)
	}
	for _, d := range diagnostics {
		fmt.Printf("island=%d generation=%d best=%.6f mean=%.6f min=%.6f diversity=%.4f mutation_prob=%.4f distinct=%d evaluated=%d elites=%d\n",
			d.Island,
			d.Generation,
			d.BestFitness,
			d.MeanFitness,
			d.MinFitness,
			d.Diversity,
			d.MutationProb,
			d.Distinct,
			d.Evaluated,
			d.Elites,
		)
	}
	return nil
}

func parseIslands(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid island %q", part)
		}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

func runTop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	sel := addRunSelector(fs, "top genomes")
	limit := fs.Int("limit", 5, "max top genomes to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit top genomes as JSON")
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := sel.check("top"); err != nil {
		return err
	}

	client, err := openClient(store)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	top, err := client.TopGenomes(ctx, gpr.TopGenomesRequest{
		RunID:  *sel.runID,
		Latest: *sel.latest,
		Limit:  max(*limit, 0),
	})
	if err != nil {
		return err
	}
	if len(top) == 0 {
		fmt.Println("no top genomes")
		return nil
	}
	if *jsonOut {
		return encodeJSON(top)
	}
	for _, item := range top {
		fmt.Printf("rank=%d fitness=%.6f genome_id=%s island=%d size=%s program=%s\n",
			item.Rank,
			item.Fitness,
			item.Genome.ID,
			item.Genome.Island,
			humanize.Bytes(uint64(len(item.Genome.Payload))),
			item.Text,
		)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	sel := addRunSelector(fs, "a champion")
	id := fs.String("id", "", "genome id")
	rank := fs.Int("rank", 1, "champion rank within the run")
	rescore := fs.Bool("rescore", false, "replay the genome on its scape in every mode")
	jsonOut := fs.Bool("json", false, "emit the genome as JSON")
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		if err := sel.check("show"); err != nil {
			return err
		}
	}

	client, err := openClient(store)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	loaded, err := client.LoadGenome(ctx, gpr.GenomeRequest{
		RunID:   *sel.runID,
		Latest:  *sel.latest,
		ID:      *id,
		Rank:    *rank,
		Rescore: *rescore,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return encodeJSON(loaded)
	}
	fmt.Printf("run_id=%s genome_id=%s encoding=%s island=%d size=%d\n",
		loaded.RunID, loaded.Record.ID, loaded.Record.Encoding, loaded.Record.Island, loaded.Size)
	fmt.Println(loaded.Text)
	modes := make([]string, 0, len(loaded.Scores))
	for mode := range loaded.Scores {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	for _, mode := range modes {
		fmt.Printf("mode=%s fitness=%.6f\n", mode, loaded.Scores[mode])
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	sel := addRunSelector(fs, "an export")
	outDir := fs.String("out", exportsDir, "export output directory")
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := sel.check("export"); err != nil {
		return err
	}

	client, err := openClient(store)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, gpr.ExportRequest{RunID: *sel.runID, Latest: *sel.latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s to=%s\n", exported.RunID, filepath.Clean(exported.Directory))
	return nil
}

func runPopulation(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("population", flag.ContinueOnError)
	sel := addRunSelector(fs, "an island snapshot")
	island := fs.Int("island", 0, "island id")
	limit := fs.Int("limit", 0, "max members to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit the snapshot as JSON")
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := sel.check("population"); err != nil {
		return err
	}

	client, err := openClient(store)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	view, err := client.Population(ctx, gpr.PopulationRequest{
		RunID:  *sel.runID,
		Latest: *sel.latest,
		Island: *island,
		Limit:  max(*limit, 0),
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return encodeJSON(view)
	}
	fmt.Printf("run_id=%s island=%d generation=%d mutation_prob=%.4f members=%d\n",
		view.RunID, view.Island, view.Generation, view.MutationProb, len(view.Members))
	for _, m := range view.Members {
		marker := ""
		if m.Champion {
			marker = " champion"
		}
		fmt.Printf("rank=%d fitness=%.6f age=%d genome_id=%s%s\n", m.Rank, m.Fitness, m.Age, m.GenomeID, marker)
	}
	return nil
}

func runGenomes(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("genomes", flag.ContinueOnError)
	sel := addRunSelector(fs, "ranked genomes")
	islands := fs.String("islands", "", "comma-separated island filter")
	limit := fs.Int("limit", 10, "max genomes to print (<=0 for all)")
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := sel.check("genomes"); err != nil {
		return err
	}
	filter, err := parseIslands(*islands)
	if err != nil {
		return err
	}

	client, err := openClient(store)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	genomes, err := client.Genomes(ctx, gpr.GenomesRequest{
		RunID:   *sel.runID,
		Latest:  *sel.latest,
		Islands: filter,
		Limit:   max(*limit, 0),
	})
	if err != nil {
		return err
	}
	if len(genomes) == 0 {
		fmt.Println("no stored genomes (the memory store keeps them only for the running process; use --store sqlite)")
		return nil
	}
	for i, g := range genomes {
		fmt.Printf("rank=%d fitness=%.6f island=%d genome_id=%s payload=%s\n",
			i+1, g.Fitness, g.Island, g.ID, humanize.Bytes(uint64(len(g.Payload))))
	}
	return nil
}
