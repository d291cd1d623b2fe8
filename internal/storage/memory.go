package storage

import (
	"context"
	"slices"
	"sort"
	"sync"

	"gpr/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	genomes     map[string]model.Genome
	populations map[string]model.Population
	runs        map[string]model.Run
	history     map[string][]model.FitnessHistory
	diagnostics map[string][]model.GenerationDiagnostics
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.genomes = make(map[string]model.Genome)
	s.populations = make(map[string]model.Population)
	s.runs = make(map[string]model.Run)
	s.history = make(map[string][]model.FitnessHistory)
	s.diagnostics = make(map[string][]model.GenerationDiagnostics)
	return nil
}

func (s *MemoryStore) SaveGenome(_ context.Context, genome model.Genome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	genome.Payload = append([]byte(nil), genome.Payload...)
	s.genomes[genome.ID] = genome
	return nil
}

func (s *MemoryStore) GetGenome(_ context.Context, id string) (model.Genome, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	genome, ok := s.genomes[id]
	if ok {
		genome.Payload = append([]byte(nil), genome.Payload...)
	}
	return genome, ok, nil
}

func (s *MemoryStore) ListGenomes(_ context.Context, q GenomeQuery) ([]model.Genome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Genome
	for _, g := range s.genomes {
		if g.RunID != q.RunID || (len(q.Islands) > 0 && !slices.Contains(q.Islands, g.Island)) {
			continue
		}
		g.Payload = append([]byte(nil), g.Payload...)
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Fitness != out[j].Fitness {
			return out[i].Fitness > out[j].Fitness
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemoryStore) SavePopulation(_ context.Context, population model.Population) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.populations[population.ID] = clonePopulation(population)
	return nil
}

func (s *MemoryStore) GetPopulation(_ context.Context, id string) (model.Population, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	population, ok := s.populations[id]
	if !ok {
		return model.Population{}, false, nil
	}
	return clonePopulation(population), true, nil
}

func clonePopulation(p model.Population) model.Population {
	p.GenomeIDs = append([]string(nil), p.GenomeIDs...)
	p.Fitness = append([]float64(nil), p.Fitness...)
	p.Ages = append([]int(nil), p.Ages...)
	return p
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

// ListRuns returns every run, most recently started first.
func (s *MemoryStore) ListRuns(_ context.Context) ([]model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sortRuns(runs)
	return runs, nil
}

func sortRuns(runs []model.Run) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, runID string, history []model.FitnessHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[runID] = cloneHistory(history)
	return nil
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, runID string) ([]model.FitnessHistory, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return cloneHistory(history), true, nil
}

func cloneHistory(history []model.FitnessHistory) []model.FitnessHistory {
	copied := make([]model.FitnessHistory, len(history))
	for i, h := range history {
		h.Points = append([]model.HistoryPoint(nil), h.Points...)
		copied[i] = h
	}
	return copied
}

func (s *MemoryStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(copied, diagnostics)
	s.diagnostics[runID] = copied
	return nil
}

func (s *MemoryStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	diagnostics, ok := s.diagnostics[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(copied, diagnostics)
	return copied, true, nil
}
