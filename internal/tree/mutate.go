package tree

import (
	"gpr/internal/instr"
	"gpr/internal/numeric"
	"gpr/internal/prng"
)

// Mutation kinds, drawn uniformly per selected node.
const (
	mutatePoint = iota
	mutateSubtree
	mutatePermute
	mutateDelete
	mutateRemoveArg
	mutateInsertArg
	mutationKinds
)

// jitter is the relative size of an incremental constant perturbation.
const jitter = 0.02

// Mutate walks every DEFUN and MAIN body post-order and, with probability
// prob per node, applies one of the six mutation kinds. The program is then
// repaired and pruned so every invariant holds again.
func Mutate(p *Program, cfg Config, prob float64, rng *prng.Rand) {
	if p == nil || p.Root == nil {
		return
	}
	cfg = cfg.withDefaults()
	g := generator{cfg: cfg, rng: rng}
	for i, slot := range p.Root.Children {
		if len(slot.Children) == 0 {
			continue
		}
		sc, err := p.scopeFor(i)
		if err != nil {
			continue
		}
		m := mutator{generator: g, prob: prob, sc: sc}
		m.walk(slot.Children[0], 1)
	}
	Repair(p, cfg)
}

type mutator struct {
	generator
	prob float64
	sc   scope
}

func (m mutator) walk(n *Node, depth int) {
	for _, c := range n.Children {
		m.walk(c, depth+1)
	}
	if !m.rng.Chance(m.prob) {
		return
	}
	switch m.rng.Intn(mutationKinds) {
	case mutatePoint:
		m.point(n, depth)
	case mutateSubtree:
		n.replace(m.subtree(depth, m.sc))
	case mutatePermute:
		if len(n.Children) >= 2 {
			i := m.rng.Intn(len(n.Children))
			j := m.rng.Intn(len(n.Children))
			n.Children[i], n.Children[j] = n.Children[j], n.Children[i]
		}
	case mutateDelete:
		n.replace(NewValue(m.constant()))
	case mutateRemoveArg:
		lo, _ := n.Function.Arity()
		if n.Function.Variadic() && n.Function != instr.ADF && len(n.Children) > 2 && len(n.Children) > lo {
			i := m.rng.Intn(len(n.Children))
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
		}
	case mutateInsertArg:
		_, hi := n.Function.Arity()
		if n.Function.Variadic() && n.Function != instr.ADF && len(n.Children) < hi {
			var extra *Node
			if m.rng.Intn(2) == 0 {
				extra = n.Children[m.rng.Intn(len(n.Children))].Clone()
			} else {
				extra = m.subtree(depth+1, m.sc)
			}
			i := m.rng.Intn(len(n.Children) + 1)
			n.Children = append(n.Children, nil)
			copy(n.Children[i+1:], n.Children[i:])
			n.Children[i] = extra
		}
	}
}

func (m mutator) point(n *Node, depth int) {
	if m.sc.allowADF() && depth < m.cfg.MaxDepth && m.rng.Chance(m.cfg.ADFProb) {
		idx := m.rng.Intn(len(m.sc.defunArgs))
		call := &Node{Function: instr.ADF, Value: float64(idx)}
		for i := 0; i < m.sc.defunArgs[idx]; i++ {
			if i < len(n.Children) {
				call.Children = append(call.Children, n.Children[i])
			} else {
				call.Children = append(call.Children, m.terminal(m.sc))
			}
		}
		n.replace(call)
		return
	}
	switch n.Function {
	case instr.Value:
		if m.rng.Intn(2) == 0 {
			n.Value = numeric.Guard(n.Value + n.Value*m.rng.Range(-jitter, jitter))
			if m.cfg.Integer {
				n.Value = float64(int64(n.Value))
			}
		} else {
			n.Value = m.constant()
		}
	case instr.Arg:
		if m.sc.args > 0 {
			n.Value = float64(m.rng.Intn(m.sc.args))
		}
	case instr.ADF:
		if len(m.sc.defunArgs) > 0 {
			n.Value = float64(m.rng.Intn(len(m.sc.defunArgs)))
		}
	default:
		count := len(n.Children)
		f := m.cfg.Set.RandomWhere(m.rng, func(f instr.Function) bool {
			lo, hi := f.Arity()
			return treeFunction(f) && !f.Terminal() && count >= lo && count <= hi
		})
		if !f.Terminal() {
			n.Function = f
		}
	}
}

// Prune forces every node at or below maxDepth (body root = depth) to a
// VALUE terminal that keeps the node's stored value.
func Prune(n *Node, depth, maxDepth int) {
	if n == nil {
		return
	}
	if depth >= maxDepth {
		if !n.Function.Terminal() {
			n.Function = instr.Value
			n.Children = nil
		}
		return
	}
	for _, c := range n.Children {
		Prune(c, depth+1, maxDepth)
	}
}

// Repair restores the structural invariants after a random edit: ADF calls
// only in MAIN with the callee's argument count and a valid index, ARG
// indices within the enclosing DEFUN, and the depth ceiling. Missing
// arguments are filled with zero constants.
func Repair(p *Program, cfg Config) {
	if p == nil || p.Root == nil {
		return
	}
	cfg = cfg.withDefaults()
	for i, slot := range p.Root.Children {
		if len(slot.Children) == 0 {
			slot.Children = []*Node{NewValue(0)}
		}
		sc, err := p.scopeFor(i)
		if err != nil {
			continue
		}
		repairNode(slot.Children[0], sc)
		Prune(slot.Children[0], 1, cfg.MaxDepth)
	}
}

func repairNode(n *Node, sc scope) {
	switch n.Function {
	case instr.Arg:
		if sc.args == 0 {
			n.Function = instr.Value
			n.Value = 0
		} else {
			n.Value = float64(numeric.Index(n.Value, sc.args))
		}
		return
	case instr.ADF:
		if !sc.allowADF() {
			if len(n.Children) > 0 {
				n.replace(n.Children[0])
			} else {
				n.replace(NewValue(0))
			}
			repairNode(n, sc)
			return
		}
		idx := numeric.Index(n.Value, len(sc.defunArgs))
		n.Value = float64(idx)
		want := sc.defunArgs[idx]
		if len(n.Children) > want {
			n.Children = n.Children[:want]
		}
		for len(n.Children) < want {
			n.Children = append(n.Children, NewValue(0))
		}
	default:
		if n.Function.Terminal() {
			n.Children = nil
			return
		}
		lo, hi := n.Function.Arity()
		if len(n.Children) > hi {
			n.Children = n.Children[:hi]
		}
		for len(n.Children) < lo {
			n.Children = append(n.Children, NewValue(0))
		}
	}
	for _, c := range n.Children {
		repairNode(c, sc)
	}
}
