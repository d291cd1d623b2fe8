package evo

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// HistoryCapacity is the number of points a History keeps before compacting.
const HistoryCapacity = 256

// HistoryPoint summarizes Stride consecutive generations.
type HistoryPoint struct {
	Best float64 `json:"best"`
	Mean float64 `json:"mean"`
}

// History records per-generation fitness in bounded memory. When full, it
// merges adjacent points pairwise and doubles the number of generations each
// point covers, so the whole run stays visible at a coarser resolution.
type History struct {
	points []HistoryPoint
	stride int

	// partial point being accumulated
	best    float64
	meanSum float64
	n       int
	total   int
}

func NewHistory() *History {
	return &History{points: make([]HistoryPoint, 0, HistoryCapacity), stride: 1}
}

// Add records one generation.
func (h *History) Add(best, mean float64) {
	if h.n == 0 || best > h.best {
		h.best = best
	}
	h.meanSum += mean
	h.n++
	h.total++
	if h.n < h.stride {
		return
	}
	if len(h.points) == HistoryCapacity {
		h.compact()
	}
	h.points = append(h.points, HistoryPoint{Best: h.best, Mean: h.meanSum / float64(h.n)})
	h.best, h.meanSum, h.n = 0, 0, 0
}

func (h *History) compact() {
	half := len(h.points) / 2
	for i := 0; i < half; i++ {
		a, b := h.points[2*i], h.points[2*i+1]
		h.points[i] = HistoryPoint{Best: max(a.Best, b.Best), Mean: (a.Mean + b.Mean) / 2}
	}
	h.points = h.points[:half]
	h.stride *= 2
}

// Points returns a copy of the recorded points, oldest first.
func (h *History) Points() []HistoryPoint {
	return append([]HistoryPoint(nil), h.points...)
}

// Stride is the number of generations each point covers.
func (h *History) Stride() int { return h.stride }

// Generations is the number of generations recorded so far.
func (h *History) Generations() int { return h.total }

func (h *History) Len() int { return len(h.points) }

// Best is the highest fitness ever recorded.
func (h *History) Best() float64 {
	best := h.bests()
	if h.n > 0 {
		best = append(best, h.best)
	}
	if len(best) == 0 {
		return 0
	}
	return floats.Max(best)
}

// Spread is the standard deviation of the recorded best fitness values, a
// rough stagnation signal.
func (h *History) Spread() float64 {
	best := h.bests()
	if len(best) < 2 {
		return 0
	}
	return stat.StdDev(best, nil)
}

func (h *History) bests() []float64 {
	out := make([]float64, len(h.points))
	for i, p := range h.points {
		out[i] = p.Best
	}
	return out
}
