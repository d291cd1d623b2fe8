package stats

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"gpr/internal/model"
)

// Summary condenses a run's best-of-generation curve across all islands.
type Summary struct {
	Generations int     `json:"generations"`
	InitialBest float64 `json:"initial_best"`
	FinalBest   float64 `json:"final_best"`
	BestMean    float64 `json:"best_mean"`
	BestStd     float64 `json:"best_std"`
	BestMax     float64 `json:"best_max"`
	BestMin     float64 `json:"best_min"`
	Improvement float64 `json:"improvement"`
	Evaluations int     `json:"evaluations"`
}

// BestByGeneration folds per-island diagnostics into the system-wide best
// fitness for each generation, in generation order.
func BestByGeneration(diagnostics []model.GenerationDiagnostics) []float64 {
	best := make(map[int]float64)
	for _, d := range diagnostics {
		if cur, ok := best[d.Generation]; !ok || d.BestFitness > cur {
			best[d.Generation] = d.BestFitness
		}
	}
	generations := make([]int, 0, len(best))
	for g := range best {
		generations = append(generations, g)
	}
	sort.Ints(generations)

	series := make([]float64, len(generations))
	for i, g := range generations {
		series[i] = best[g]
	}
	return series
}

func Summarize(diagnostics []model.GenerationDiagnostics) Summary {
	series := BestByGeneration(diagnostics)
	summary := Summary{Generations: len(series)}
	for _, d := range diagnostics {
		summary.Evaluations += d.Evaluated
	}
	if len(series) == 0 {
		return summary
	}

	summary.InitialBest = series[0]
	summary.FinalBest = series[len(series)-1]
	summary.BestMean, summary.BestStd = stat.MeanStdDev(series, nil)
	if len(series) < 2 {
		summary.BestStd = 0
	}
	summary.BestMax = floats.Max(series)
	summary.BestMin = floats.Min(series)
	summary.Improvement = summary.FinalBest - summary.InitialBest
	return summary
}
