package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"gpr/internal/model"
)

func TestDecodeGenomeFixture(t *testing.T) {
	data := readFixture(t, "tree_genome_v1.json")
	genome, err := DecodeGenome(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if genome.ID != "genome-tree-1" || genome.Encoding != model.EncodingTree {
		t.Fatalf("unexpected genome: %+v", genome)
	}
	if !strings.HasPrefix(string(genome.Payload), "N 0 top_level") || !strings.HasSuffix(string(genome.Payload), ".\n") {
		t.Fatalf("unexpected payload: %q", genome.Payload)
	}
}

func TestDecodePopulationFixture(t *testing.T) {
	population, err := DecodePopulation(readFixture(t, "population_v1.json"))
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if population.ID != "run-fixture/0" || population.Generation != 12 {
		t.Fatalf("unexpected population: %+v", population)
	}
	if len(population.GenomeIDs) != 2 || population.Ages[0] != 4 {
		t.Fatalf("unexpected population members: %+v", population)
	}
}

func TestDecodeRunFixture(t *testing.T) {
	run, err := DecodeRun(readFixture(t, "run_v1.json"))
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if run.Seed != 42 || run.BestGenomeID != "genome-tree-1" {
		t.Fatalf("unexpected run: %+v", run)
	}
	want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if !run.StartedAt.Equal(want) {
		t.Fatalf("unexpected start: %s", run.StartedAt)
	}
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	_, err := DecodeRun(readFixture(t, "run_v2.json"))
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
	_, err = DecodeGenome([]byte(`{"schema_version":1,"codec_version":9,"id":"g"}`))
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
	if _, err := DecodePopulation([]byte(`{`)); err == nil {
		t.Fatal("expected syntax error")
	}
}

func TestGenomeCodecRoundTrip(t *testing.T) {
	input := model.Genome{
		VersionedRecord: Versioned(),
		ID:              "g1",
		RunID:           "r1",
		Encoding:        model.EncodingGraph,
		Island:          2,
		Generation:      7,
		Fitness:         0.25,
		Payload:         []byte{'G', 'P', 'R', 'G', 1, 0, 0xff},
	}
	data, err := EncodeGenome(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	output, err := DecodeGenome(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(input, output) {
		t.Fatalf("round trip mismatch:\nwant=%+v\ngot=%+v", input, output)
	}
}

func TestHistoryAndDiagnosticsCodecRoundTrip(t *testing.T) {
	history := []model.FitnessHistory{{Island: 1, Stride: 2, Points: []model.HistoryPoint{{Best: 1, Mean: 0.5}}}}
	data, err := EncodeFitnessHistory(history)
	if err != nil {
		t.Fatalf("encode history: %v", err)
	}
	decoded, err := DecodeFitnessHistory(data)
	if err != nil || !reflect.DeepEqual(history, decoded) {
		t.Fatalf("history mismatch: %+v %v", decoded, err)
	}

	diagnostics := []model.GenerationDiagnostics{{Island: 1, Generation: 3, BestFitness: 0.9, Diversity: 0.4, Distinct: 6}}
	data, err = EncodeGenerationDiagnostics(diagnostics)
	if err != nil {
		t.Fatalf("encode diagnostics: %v", err)
	}
	decodedDiagnostics, err := DecodeGenerationDiagnostics(data)
	if err != nil || !reflect.DeepEqual(diagnostics, decodedDiagnostics) {
		t.Fatalf("diagnostics mismatch: %+v %v", decodedDiagnostics, err)
	}
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "fixtures", name))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}
