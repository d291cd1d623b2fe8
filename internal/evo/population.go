package evo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"gpr/internal/numeric"
	"gpr/internal/prng"
)

const (
	// MaxAge is the number of generations an individual may survive before
	// its fitness is forced to 0 so the fill replaces it.
	MaxAge = 200

	DefaultElitism = 0.3
	MinElitism     = 0.1
	MaxElitism     = 0.9
)

var ErrPopulationTooSmall = errors.New("population needs at least two members")

// Evaluator scores member index of pop. It may run concurrently for
// different indices and must only touch that member. mode is passed
// through untouched (commonly 0 for training with dropout).
type Evaluator[G any] func(trials int, pop *Population[G], index, mode int) float64

// Params configures one population.
type Params struct {
	Size         int
	Elitism      float64
	MutationProb float64
	Trials       int
	Mode         int
	Workers      int
	// ForceEvaluate re-scores retained individuals every generation.
	ForceEvaluate bool

	Selector      Selector
	Postprocessor FitnessPostprocessor
	Policy        MutationPolicy
}

// Normalize applies the documented clamps: elitism outside
// [MinElitism, MaxElitism] becomes DefaultElitism and workers default to the
// CPU count.
func (p Params) Normalize() Params {
	if p.Elitism < MinElitism || p.Elitism > MaxElitism || math.IsNaN(p.Elitism) {
		p.Elitism = DefaultElitism
	}
	p.MutationProb = numeric.Clamp(p.MutationProb, 0, 1)
	if p.Workers <= 0 {
		p.Workers = runtime.NumCPU()
	}
	if p.Trials <= 0 {
		p.Trials = 1
	}
	if p.Selector == nil {
		p.Selector = EliteSelector{}
	}
	if p.Postprocessor == nil {
		p.Postprocessor = NoopFitnessPostprocessor{}
	}
	if p.Policy == nil {
		p.Policy = DiversityAdaptiveMutation{}
	}
	return p
}

// Diagnostics summarizes one generation, taken after ranking and before
// the fill.
type Diagnostics struct {
	Island       int     `json:"island"`
	Generation   int     `json:"generation"`
	BestFitness  float64 `json:"best_fitness"`
	MeanFitness  float64 `json:"mean_fitness"`
	MinFitness   float64 `json:"min_fitness"`
	Diversity    float64 `json:"diversity"`
	MutationProb float64 `json:"mutation_prob"`
	Distinct     int     `json:"distinct"`
	Evaluated    int     `json:"evaluated"`
	Elites       int     `json:"elites"`
}

// Population is one island. Members, Fitness and Ages are parallel slices
// kept in descending fitness order after each Step. A fitness of 0
// marks an individual that still needs evaluating.
type Population[G any] struct {
	Island  int
	Members []G
	Fitness []float64
	Ages    []int
	History *History

	Generation   int
	Diversity    float64
	MutationProb float64

	params Params
	rep    Representation[G]
	rng    prng.Rand
}

// NewPopulation fills a population with random individuals drawn from seed.
func NewPopulation[G any](rep Representation[G], params Params, seed uint32) (*Population[G], error) {
	if rep == nil {
		return nil, fmt.Errorf("representation is required")
	}
	if params.Size < 2 {
		return nil, fmt.Errorf("%w: size %d", ErrPopulationTooSmall, params.Size)
	}
	params = params.Normalize()
	p := &Population[G]{
		Members:      make([]G, params.Size),
		Fitness:      make([]float64, params.Size),
		Ages:         make([]int, params.Size),
		History:      NewHistory(),
		MutationProb: params.MutationProb,
		params:       params,
		rep:          rep,
		rng:          *prng.New(seed),
	}
	for i := range p.Members {
		p.Members[i] = rep.Random(&p.rng)
	}
	return p, nil
}

func (p *Population[G]) Params() Params { return p.params }

func (p *Population[G]) Len() int { return len(p.Members) }

// Elites is the number of top slots the fill never overwrites.
func (p *Population[G]) Elites() int {
	e := int(math.Round(p.params.Elitism * float64(len(p.Members))))
	return numeric.Clamp(e, 1, len(p.Members)-1)
}

// Best returns the fittest member and its fitness.
func (p *Population[G]) Best() (G, float64) {
	best := 0
	for i, f := range p.Fitness {
		if f > p.Fitness[best] {
			best = i
		}
	}
	return p.Members[best], p.Fitness[best]
}

// Mean is the average fitness.
func (p *Population[G]) Mean() float64 {
	if len(p.Fitness) == 0 {
		return 0
	}
	sum := 0.0
	for _, f := range p.Fitness {
		sum += f
	}
	return sum / float64(len(p.Fitness))
}

// Evaluate ages every member and scores those still unevaluated, spreading
// members across the configured workers. It returns how many were scored.
func (p *Population[G]) Evaluate(ctx context.Context, eval Evaluator[G]) (int, error) {
	jobs := make(chan int)
	var evaluated atomic.Int64

	workerCount := p.params.Workers
	if workerCount > len(p.Members) {
		workerCount = len(p.Members)
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				if p.evaluateOne(i, eval) {
					evaluated.Add(1)
				}
			}
		}()
	}

	for i := range p.Members {
		if ctx.Err() != nil {
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return int(evaluated.Load()), ctx.Err()
}

func (p *Population[G]) evaluateOne(i int, eval Evaluator[G]) bool {
	p.Ages[i]++
	scored := false
	if p.Fitness[i] == 0 || p.params.ForceEvaluate {
		p.rep.Reset(p.Members[i])
		raw := numeric.Guard(eval(p.params.Trials, p, i, p.params.Mode))
		p.Fitness[i] = p.params.Postprocessor.Adjust(raw, p.rep.Size(p.Members[i]))
		scored = true
	}
	if p.Ages[i] > MaxAge {
		p.Fitness[i] = 0
	}
	return scored
}

// rank sorts members by descending fitness. Ties keep their order so
// elites are not shuffled by equal scores.
func (p *Population[G]) rank() {
	order := make([]int, len(p.Members))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return p.Fitness[order[a]] > p.Fitness[order[b]]
	})

	members := make([]G, len(order))
	fitness := make([]float64, len(order))
	ages := make([]int, len(order))
	for to, from := range order {
		members[to] = p.Members[from]
		fitness[to] = p.Fitness[from]
		ages[to] = p.Ages[from]
	}
	p.Members, p.Fitness, p.Ages = members, fitness, ages
}

// Step advances the population by one generation: evaluate, rank, record
// history, measure diversity, adapt the mutation rate and refill every
// non-elite slot with a mutated child of two elites.
func (p *Population[G]) Step(ctx context.Context, eval Evaluator[G]) (Diagnostics, error) {
	if err := ctx.Err(); err != nil {
		return Diagnostics{}, err
	}
	evaluated, err := p.Evaluate(ctx, eval)
	if err != nil {
		return Diagnostics{}, err
	}
	p.rank()

	d := p.summarize()
	d.Evaluated = evaluated
	p.History.Add(d.BestFitness, d.MeanFitness)

	p.Diversity = Diversity(p.Fitness)
	p.MutationProb = p.params.Policy.Rate(p.params.MutationProb, p.Diversity)
	d.Diversity, d.MutationProb = p.Diversity, p.MutationProb

	if err := p.fill(); err != nil {
		return Diagnostics{}, err
	}
	p.Generation++
	return d, nil
}

func (p *Population[G]) summarize() Diagnostics {
	minFitness := p.Fitness[0]
	for _, f := range p.Fitness {
		minFitness = min(minFitness, f)
	}
	return Diagnostics{
		Island:      p.Island,
		Generation:  p.Generation + 1,
		BestFitness: p.Fitness[0],
		MeanFitness: p.Mean(),
		MinFitness:  minFitness,
		Distinct:    distinct(p.rep, p.Members),
		Elites:      p.Elites(),
	}
}

func (p *Population[G]) fill() error {
	elites := p.Elites()
	for i := elites; i < len(p.Members); i++ {
		a, err := p.params.Selector.Pick(&p.rng, p.Fitness, elites)
		if err != nil {
			return fmt.Errorf("pick parent: %w", err)
		}
		b, err := p.params.Selector.Pick(&p.rng, p.Fitness, elites)
		if err != nil {
			return fmt.Errorf("pick parent: %w", err)
		}
		child := p.rep.Mate(p.Members[a], p.Members[b], &p.rng)
		p.rep.Mutate(child, p.MutationProb, &p.rng)
		p.Members[i] = child
		p.Ages[i] = 0
		p.Fitness[i] = 0
	}
	return nil
}

// replace puts g into slot i with the given fitness and age 0.
func (p *Population[G]) replace(i int, g G, fitness float64) {
	p.Members[i] = g
	p.Fitness[i] = fitness
	p.Ages[i] = 0
}
