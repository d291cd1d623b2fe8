package tree

import "gpr/internal/prng"

// cut is a crossover site: a non-structural, non-terminal node inside the
// body of top-level slot.
type cut struct {
	site
	slot int
}

func cutPoints(p *Program) []cut {
	var out []cut
	if p == nil || p.Root == nil {
		return out
	}
	for i, slot := range p.Root.Children {
		if len(slot.Children) == 0 {
			continue
		}
		for _, s := range collect(slot.Children[0], 1, nonTerminal, nil) {
			out = append(out, cut{site: s, slot: i})
		}
	}
	return out
}

// Crossover returns a child built from a deep copy of a with a deep copy of
// a random subtree of b spliced over a random subtree of a. Cut points are
// drawn by flattened pre-order index over non-terminal nodes. When either
// parent has no non-terminal node, or the graft would exceed MaxDepth, the
// child is a clone of a.
func Crossover(a, b *Program, cfg Config, rng *prng.Rand) *Program {
	cfg = cfg.withDefaults()
	child := a.Clone()
	targets := cutPoints(child)
	donors := cutPoints(b)
	if len(targets) == 0 || len(donors) == 0 {
		return child
	}
	target := targets[rng.Intn(len(targets))]
	donor := donors[rng.Intn(len(donors))]
	if target.depth-1+donor.node.Depth() > cfg.MaxDepth {
		return child
	}
	target.node.replace(donor.node.Clone())
	Repair(child, cfg)
	return child
}

// CrossoverADF recombines module-wise: each DEFUN slot and the MAIN slot is
// independently kept from a, taken whole from b, or crossed with b's slot by
// a single subtree cut. Parents with a different number of top-level slots
// fall back to Crossover.
func CrossoverADF(a, b *Program, cfg Config, rng *prng.Rand) *Program {
	cfg = cfg.withDefaults()
	if a.Root == nil || b.Root == nil || len(a.Root.Children) != len(b.Root.Children) {
		return Crossover(a, b, cfg, rng)
	}
	child := a.Clone()
	for i, slot := range child.Root.Children {
		other := b.Root.Children[i]
		if slot.Function != other.Function || len(slot.Children) == 0 || len(other.Children) == 0 {
			continue
		}
		switch rng.Intn(3) {
		case 0:
		case 1:
			slot.Value = other.Value
			slot.Children[0] = other.Children[0].Clone()
		case 2:
			crossBody(slot.Children[0], other.Children[0], cfg.MaxDepth, rng)
		}
	}
	Repair(child, cfg)
	return child
}

func crossBody(into, from *Node, maxDepth int, rng *prng.Rand) {
	targets := collect(into, 1, nonTerminal, nil)
	donors := collect(from, 1, nonTerminal, nil)
	if len(targets) == 0 || len(donors) == 0 {
		return
	}
	target := targets[rng.Intn(len(targets))]
	donor := donors[rng.Intn(len(donors))]
	if target.depth-1+donor.node.Depth() > maxDepth {
		return
	}
	target.node.replace(donor.node.Clone())
}
