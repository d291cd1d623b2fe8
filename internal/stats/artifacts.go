package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"gpr/internal/model"
)

const (
	runIndexFile   = "run_index.json"
	runStampLayout = "%Y%m%d-%H%M%S"
)

type RunConfig struct {
	RunID              string  `json:"run_id"`
	Encoding           string  `json:"encoding"`
	Scape              string  `json:"scape"`
	InstructionSet     string  `json:"instruction_set"`
	Seed               uint32  `json:"seed"`
	Islands            int     `json:"islands"`
	PopulationSize     int     `json:"population_size"`
	Generations        int     `json:"generations"`
	MigrationInterval  int     `json:"migration_interval"`
	Elitism            float64 `json:"elitism"`
	MutationProb       float64 `json:"mutation_prob"`
	Trials             int     `json:"trials"`
	Workers            int     `json:"workers"`
	Selection          string  `json:"selection"`
	FitnessPostprocess string  `json:"fitness_postprocessor"`
	MutationPolicy     string  `json:"mutation_policy"`
	Sensors            int     `json:"sensors"`
	Actuators          int     `json:"actuators"`
	MinConstant        float64 `json:"min_constant"`
	MaxConstant        float64 `json:"max_constant"`
	Integer            bool    `json:"integer,omitempty"`
	ADFProb            float64 `json:"adf_prob"`
	Rows               int     `json:"rows,omitempty"`
	Columns            int     `json:"columns,omitempty"`
	ConnectionsPerGene int     `json:"connections_per_gene,omitempty"`
	ADFModules         int     `json:"adf_modules,omitempty"`
	Chromosomes        int     `json:"chromosomes,omitempty"`
	Dropout            float64 `json:"dropout,omitempty"`
	Dynamic            bool    `json:"dynamic,omitempty"`
	CompressDepth      int     `json:"compress_depth,omitempty"`
	MaxDepth           int     `json:"max_depth,omitempty"`
	Registers          int     `json:"registers,omitempty"`
	ADFs               int     `json:"adfs,omitempty"`
}

// TopGenome is an island champion as written to top_genomes.json. Text
// holds the readable rendering (tree S-expression or graph summary).
type TopGenome struct {
	Rank    int          `json:"rank"`
	Fitness float64      `json:"fitness"`
	Text    string       `json:"text,omitempty"`
	Genome  model.Genome `json:"genome"`
}

type RunArtifacts struct {
	Config                RunConfig                     `json:"config"`
	History               []model.FitnessHistory        `json:"history"`
	GenerationDiagnostics []model.GenerationDiagnostics `json:"generation_diagnostics,omitempty"`
	FinalBestFitness      float64                       `json:"final_best_fitness"`
	TopGenomes            []TopGenome                   `json:"top_genomes"`
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	Encoding         string  `json:"encoding"`
	Scape            string  `json:"scape"`
	Islands          int     `json:"islands"`
	PopulationSize   int     `json:"population_size"`
	Generations      int     `json:"generations"`
	Seed             uint32  `json:"seed"`
	FinalBestFitness float64 `json:"final_best_fitness"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

// NewRunID names a run by its UTC start time followed by suffix, so run
// directories sort chronologically.
func NewRunID(startedAt time.Time, suffix string) string {
	stamp := strftime.Format(runStampLayout, startedAt.UTC())
	suffix = strings.TrimSpace(suffix)
	if suffix == "" {
		return stamp
	}
	return stamp + "-" + suffix
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "fitness_history.json"), map[string]any{"islands": artifacts.History, "final_best_fitness": artifacts.FinalBestFitness}); err != nil {
		return "", err
	}
	if err := WriteHistoryCSV(runDir, artifacts.History); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "top_genomes.json"), artifacts.TopGenomes); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "generation_diagnostics.json"), artifacts.GenerationDiagnostics); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "summary.json"), Summarize(artifacts.GenerationDiagnostics)); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first; among equal timestamps
// the later appended entry wins.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := entries[order[i]], entries[order[j]]
		if a.CreatedAtUTC == b.CreatedAtUTC {
			return order[i] > order[j]
		}
		return a.CreatedAtUTC > b.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(entries))
	for _, idx := range order {
		sorted = append(sorted, entries[idx])
	}
	return sorted, nil
}

var exportedFiles = []string{
	"config.json",
	"fitness_history.json",
	"fitness_history.csv",
	"top_genomes.json",
	"generation_diagnostics.json",
	"summary.json",
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range exportedFiles {
		err := copyFile(filepath.Join(src, file), filepath.Join(dst, file))
		if err != nil && !os.IsNotExist(err) {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, "config.json"), &cfg)
	return cfg, ok, err
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = runID
	}
	if cfg.RunID != runID {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, runID)
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, "config.json"), cfg)
}

func ReadTopGenomes(baseDir, runID string) ([]TopGenome, bool, error) {
	var top []TopGenome
	ok, err := readJSON(filepath.Join(baseDir, runID, "top_genomes.json"), &top)
	return top, ok, err
}

func ReadGenerationDiagnostics(baseDir, runID string) ([]model.GenerationDiagnostics, bool, error) {
	var diagnostics []model.GenerationDiagnostics
	ok, err := readJSON(filepath.Join(baseDir, runID, "generation_diagnostics.json"), &diagnostics)
	return diagnostics, ok, err
}

func ReadSummary(baseDir, runID string) (Summary, bool, error) {
	var summary Summary
	ok, err := readJSON(filepath.Join(baseDir, runID, "summary.json"), &summary)
	return summary, ok, err
}

var historyHeader = []string{"island", "point", "first_generation", "stride", "best_fitness", "mean_fitness"}

// WriteHistoryCSV writes one row per compacted history point so the
// curves can be plotted by external tools.
func WriteHistoryCSV(runDir string, history []model.FitnessHistory) error {
	file, err := os.Create(filepath.Join(runDir, "fitness_history.csv"))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(historyHeader); err != nil {
		return err
	}
	for _, island := range history {
		for i, point := range island.Points {
			if err := writer.Write([]string{
				strconv.Itoa(island.Island),
				strconv.Itoa(i),
				strconv.Itoa(i * island.Stride),
				strconv.Itoa(island.Stride),
				strconv.FormatFloat(point.Best, 'f', -1, 64),
				strconv.FormatFloat(point.Mean, 'f', -1, 64),
			}); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadHistoryCSV(baseDir, runID string) ([]model.FitnessHistory, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, "fitness_history.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.FitnessHistory{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < len(historyHeader) {
		return nil, false, fmt.Errorf("fitness history header must have %d columns", len(historyHeader))
	}

	var history []model.FitnessHistory
	byIsland := make(map[int]int)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < len(historyHeader) {
			return nil, false, fmt.Errorf("fitness history row must have %d columns", len(historyHeader))
		}
		island, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, false, err
		}
		stride, err := strconv.Atoi(record[3])
		if err != nil {
			return nil, false, err
		}
		best, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			return nil, false, err
		}
		mean, err := strconv.ParseFloat(record[5], 64)
		if err != nil {
			return nil, false, err
		}

		idx, ok := byIsland[island]
		if !ok {
			idx = len(history)
			byIsland[island] = idx
			history = append(history, model.FitnessHistory{Island: island, Stride: stride})
		}
		history[idx].Points = append(history[idx].Points, model.HistoryPoint{Best: best, Mean: mean})
	}
	return history, true, nil
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
