package evo

import (
	"gpr/internal/graph"
	"gpr/internal/prng"
	"gpr/internal/tree"
)

// Representation supplies the genome-specific operators a Population breeds
// with. Mate must return a fresh genome that aliases neither parent.
type Representation[G any] interface {
	Random(rng *prng.Rand) G
	Clone(g G) G
	Mate(a, b G, rng *prng.Rand) G
	Mutate(g G, prob float64, rng *prng.Rand)
	// Reset clears the genome's scratch state before a fitness trial.
	Reset(g G)
	// Size is the genome's active complexity, used for parsimony pressure.
	Size(g G) int
	// Encode is the genome's persisted form.
	Encode(g G) ([]byte, error)
}

// Tree breeds tree programs. When DEFUNs are configured, crossover works
// per DEFUN/MAIN slot.
type Tree struct {
	Config tree.Config
}

var _ Representation[*tree.Program] = Tree{}

func (t Tree) Random(rng *prng.Rand) *tree.Program { return tree.NewRandom(t.Config, rng) }

func (Tree) Clone(p *tree.Program) *tree.Program { return p.Clone() }

func (t Tree) Mate(a, b *tree.Program, rng *prng.Rand) *tree.Program {
	if t.Config.ADFs > 0 {
		return tree.CrossoverADF(a, b, t.Config, rng)
	}
	return tree.Crossover(a, b, t.Config, rng)
}

func (t Tree) Mutate(p *tree.Program, prob float64, rng *prng.Rand) {
	tree.Mutate(p, t.Config, prob, rng)
}

func (Tree) Reset(p *tree.Program) { p.State.Clear() }

func (Tree) Size(p *tree.Program) int { return p.Root.Count() }

func (Tree) Encode(p *tree.Program) ([]byte, error) { return p.MarshalText() }

// Graph breeds graph programs. Every child is offered to CompressToADF
// after crossover; OnCompress, when set, sees each attempt's outcome.
type Graph struct {
	Config     graph.Config
	Compress   graph.CompressOptions
	OnCompress func(module int, err error)
}

var _ Representation[*graph.Program] = Graph{}

func (g Graph) Random(rng *prng.Rand) *graph.Program { return graph.NewRandom(g.Config, rng) }

func (Graph) Clone(p *graph.Program) *graph.Program { return p.Clone() }

func (g Graph) Mate(a, b *graph.Program, rng *prng.Rand) *graph.Program {
	child := graph.Crossover(a, b, g.Config, rng)
	module, err := graph.CompressToADF(child, -1, g.Compress, rng)
	if g.OnCompress != nil {
		g.OnCompress(module, err)
	}
	return child
}

func (g Graph) Mutate(p *graph.Program, prob float64, rng *prng.Rand) {
	graph.Mutate(p, g.Config, prob, rng)
}

func (Graph) Reset(p *graph.Program) { p.Clear() }

func (Graph) Size(p *graph.Program) int {
	n := 0
	for _, m := range p.Modules {
		n += m.Active()
	}
	return n
}

func (Graph) Encode(p *graph.Program) ([]byte, error) { return p.MarshalBinary() }
