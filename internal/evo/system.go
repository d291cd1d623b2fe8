package evo

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/sourcegraph/conc/pool"

	"gpr/internal/prng"
)

// DefaultMigrationInterval is used when the configured interval is not
// positive.
const DefaultMigrationInterval = 10

// Observer receives generation and migration events from the goroutine
// driving System.Step, after all islands have joined.
type Observer interface {
	ObserveGeneration(d Diagnostics)
	ObserveMigration(from, to int)
}

// SystemConfig configures an island system.
type SystemConfig struct {
	Islands           int
	MigrationInterval int
	Population        Params

	Logger   *slog.Logger
	Observer Observer
}

// System runs several populations side by side and moves individuals
// between them.
type System[G any] struct {
	Islands           []*Population[G]
	MigrationInterval int
	Generation        int

	rep       Representation[G]
	countdown int
	rng       prng.Rand
	logger    *slog.Logger
	observer  Observer
}

// NewSystem seeds every island from its own stream split off seed.
func NewSystem[G any](rep Representation[G], cfg SystemConfig, seed uint32) (*System[G], error) {
	if cfg.Islands <= 0 {
		return nil, fmt.Errorf("island count must be > 0")
	}
	if cfg.MigrationInterval <= 0 {
		cfg.MigrationInterval = DefaultMigrationInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &System[G]{
		MigrationInterval: cfg.MigrationInterval,
		rep:               rep,
		countdown:         cfg.MigrationInterval,
		rng:               *prng.New(seed),
		logger:            logger.With("component", "evo"),
		observer:          cfg.Observer,
	}
	for i := 0; i < cfg.Islands; i++ {
		island, err := NewPopulation(rep, cfg.Population, s.rng.Uint32())
		if err != nil {
			return nil, fmt.Errorf("island %d: %w", i, err)
		}
		island.Island = i
		s.Islands = append(s.Islands, island)
	}
	return s, nil
}

// Step advances every island one generation in parallel, then ranks the
// islands by mean fitness and, when the migration countdown expires, copies
// a random individual from one island over the last slot of another.
func (s *System[G]) Step(ctx context.Context, eval Evaluator[G]) ([]Diagnostics, error) {
	diags := make([]Diagnostics, len(s.Islands))
	p := pool.New().WithMaxGoroutines(len(s.Islands)).WithContext(ctx)
	for i, island := range s.Islands {
		i, island := i, island
		p.Go(func(ctx context.Context) error {
			d, err := island.Step(ctx, eval)
			if err != nil {
				return fmt.Errorf("island %d: %w", island.Island, err)
			}
			diags[i] = d
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	for _, d := range diags {
		s.logger.Debug("generation",
			"island", d.Island,
			"generation", d.Generation,
			"best", d.BestFitness,
			"mean", d.MeanFitness,
			"diversity", d.Diversity,
			"mutation_prob", d.MutationProb,
		)
		if s.observer != nil {
			s.observer.ObserveGeneration(d)
		}
	}

	sort.SliceStable(s.Islands, func(a, b int) bool {
		return s.Islands[a].Mean() > s.Islands[b].Mean()
	})

	s.countdown--
	if s.countdown <= 0 {
		s.countdown = s.MigrationInterval
		s.migrate()
	}
	s.Generation++
	return diags, nil
}

// migrate copies a random member of island a into island b's last slot and
// refills a's vacated slot with a fresh random individual.
func (s *System[G]) migrate() {
	n := len(s.Islands)
	if n < 2 {
		return
	}
	a := s.rng.Intn(n)
	b := s.rng.Intn(n - 1)
	if b >= a {
		b++
	}
	from, to := s.Islands[a], s.Islands[b]
	i := s.rng.Intn(from.Len())
	last := to.Len() - 1

	to.replace(last, s.rep.Clone(from.Members[i]), from.Fitness[i])
	from.replace(i, s.rep.Random(&s.rng), 0)

	s.logger.Debug("migration", "from", from.Island, "to", to.Island, "slot", i)
	if s.observer != nil {
		s.observer.ObserveMigration(from.Island, to.Island)
	}
}

// Best returns the fittest individual across islands and its island id.
func (s *System[G]) Best() (G, float64, int) {
	g, f := s.Islands[0].Best()
	island := s.Islands[0].Island
	for _, p := range s.Islands[1:] {
		if cg, cf := p.Best(); cf > f {
			g, f, island = cg, cf, p.Island
		}
	}
	return g, f, island
}
