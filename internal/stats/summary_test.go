package stats

import (
	"math"
	"testing"

	"gpr/internal/model"
)

func TestBestByGenerationTakesMaxAcrossIslands(t *testing.T) {
	series := BestByGeneration([]model.GenerationDiagnostics{
		{Island: 1, Generation: 1, BestFitness: 3},
		{Island: 0, Generation: 0, BestFitness: 1},
		{Island: 1, Generation: 0, BestFitness: 2},
		{Island: 0, Generation: 1, BestFitness: 4},
	})
	if len(series) != 2 || series[0] != 2 || series[1] != 4 {
		t.Fatalf("unexpected series: %v", series)
	}
}

func TestSummarize(t *testing.T) {
	summary := Summarize([]model.GenerationDiagnostics{
		{Generation: 0, BestFitness: 1, Evaluated: 5},
		{Generation: 1, BestFitness: 3, Evaluated: 2},
	})
	if summary.Generations != 2 || summary.Evaluations != 7 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if summary.InitialBest != 1 || summary.FinalBest != 3 || summary.Improvement != 2 {
		t.Fatalf("unexpected endpoints: %+v", summary)
	}
	if summary.BestMean != 2 || summary.BestMax != 3 || summary.BestMin != 1 {
		t.Fatalf("unexpected aggregates: %+v", summary)
	}
	if math.Abs(summary.BestStd-math.Sqrt2) > 1e-12 {
		t.Fatalf("unexpected std: %f", summary.BestStd)
	}
}

func TestSummarizeSingleGeneration(t *testing.T) {
	summary := Summarize([]model.GenerationDiagnostics{{BestFitness: 5}})
	if summary.BestStd != 0 || summary.FinalBest != 5 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if empty := Summarize(nil); empty.Generations != 0 {
		t.Fatalf("unexpected empty summary: %+v", empty)
	}
}
