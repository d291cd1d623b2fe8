package tree

import (
	"fmt"

	"gpr/internal/instr"
	"gpr/internal/prng"
)

// Config bounds random generation, mutation and validation of tree programs.
type Config struct {
	Sensors     int
	Actuators   int
	Registers   int
	MaxDepth    int
	ADFs        int
	Set         instr.Set
	MinConstant float64
	MaxConstant float64
	Integer     bool
	// ADFProb is the chance that a point mutation or generated node becomes
	// an ADF call when at least one DEFUN exists.
	ADFProb float64
}

const DefaultADFProb = 0.1

func (c Config) withDefaults() Config {
	if c.MaxDepth <= 0 {
		c.MaxDepth = 4
	}
	if c.ADFs < 0 {
		c.ADFs = 0
	}
	if c.ADFs > instr.MaxArguments-1 {
		c.ADFs = instr.MaxArguments - 1
	}
	if c.Set.Len() == 0 {
		c.Set = instr.Default()
	}
	if c.MinConstant == 0 && c.MaxConstant == 0 {
		c.MinConstant, c.MaxConstant = -10, 10
	}
	if c.ADFProb == 0 {
		c.ADFProb = DefaultADFProb
	}
	return c
}

// Program is a tree individual: a TOP_LEVEL root whose children are zero or
// more DEFUN bodies followed by exactly one MAIN, plus its scratch state.
type Program struct {
	Root  *Node
	State *State
}

// NewProgram wraps root with fresh scratch sized by cfg.
func NewProgram(root *Node, cfg Config) *Program {
	return &Program{
		Root:  root,
		State: NewState(cfg.Registers, cfg.Sensors, cfg.Actuators),
	}
}

// NewRandom generates a well formed program.
func NewRandom(cfg Config, rng *prng.Rand) *Program {
	cfg = cfg.withDefaults()
	g := generator{cfg: cfg, rng: rng}

	root := &Node{Function: instr.TopLevel}
	defunArgs := make([]int, cfg.ADFs)
	for i := 0; i < cfg.ADFs; i++ {
		argc := 1 + rng.Intn(instr.MaxArguments)
		defunArgs[i] = argc
		body := g.subtree(1, scope{args: argc})
		root.Children = append(root.Children, &Node{Function: instr.Defun, Value: float64(argc), Children: []*Node{body}})
	}
	mainBody := g.subtree(1, scope{defunArgs: defunArgs})
	root.Children = append(root.Children, &Node{Function: instr.Main, Children: []*Node{mainBody}})
	return NewProgram(root, cfg)
}

// Clone deep-copies the tree and gives the copy its own scratch state.
func (p *Program) Clone() *Program {
	return &Program{Root: p.Root.Clone(), State: p.State.Clone()}
}

// Run evaluates the program. With no DEFUNs the whole tree is evaluated,
// otherwise only the MAIN body.
func (p *Program) Run(custom instr.CustomFunc) float64 {
	p.State.bind(p.Root)
	if p.State.adfs == 0 {
		return Run(p.Root, p.State, custom)
	}
	main := p.Main()
	if main == nil {
		return 0
	}
	return Run(main, p.State, custom)
}

// Main returns the MAIN node, the last top-level child.
func (p *Program) Main() *Node {
	if p.Root == nil || len(p.Root.Children) == 0 {
		return nil
	}
	last := p.Root.Children[len(p.Root.Children)-1]
	if last.Function != instr.Main {
		return nil
	}
	return last
}

// Defuns returns the DEFUN nodes in order.
func (p *Program) Defuns() []*Node {
	if p.Root == nil {
		return nil
	}
	var out []*Node
	for _, c := range p.Root.Children {
		if c.Function == instr.Defun {
			out = append(out, c)
		}
	}
	return out
}

func (p *Program) defunArgs() []int {
	defuns := p.Defuns()
	out := make([]int, len(defuns))
	for i, d := range defuns {
		out[i] = int(d.Value)
	}
	return out
}

// Depth is the deepest DEFUN or MAIN body, excluding the structural
// TOP_LEVEL/DEFUN/MAIN wrapper levels.
func (p *Program) Depth() int {
	if p.Root == nil {
		return 0
	}
	best := 0
	for _, c := range p.Root.Children {
		if len(c.Children) == 0 {
			continue
		}
		if d := c.Children[0].Depth(); d > best {
			best = d
		}
	}
	return best
}

func (p *Program) String() string {
	if p.Root == nil {
		return "()"
	}
	return p.Root.String()
}

// scope describes what a body may reference: argument count inside a
// DEFUN, DEFUN arities inside MAIN.
type scope struct {
	args      int
	defunArgs []int
}

func (s scope) allowADF() bool {
	return s.args == 0 && len(s.defunArgs) > 0
}

type generator struct {
	cfg Config
	rng *prng.Rand
}

func (g generator) constant() float64 {
	v := g.rng.Range(g.cfg.MinConstant, g.cfg.MaxConstant)
	if g.cfg.Integer {
		v = float64(int64(v))
	}
	return v
}

func (g generator) terminal(sc scope) *Node {
	if sc.args > 0 && g.rng.Intn(2) == 0 {
		return NewArg(g.rng.Intn(sc.args))
	}
	return NewValue(g.constant())
}

// subtree grows a random body rooted at depth; nodes at MaxDepth are
// always terminals.
func (g generator) subtree(depth int, sc scope) *Node {
	if depth >= g.cfg.MaxDepth {
		return g.terminal(sc)
	}
	if sc.allowADF() && g.rng.Chance(g.cfg.ADFProb) {
		idx := g.rng.Intn(len(sc.defunArgs))
		n := &Node{Function: instr.ADF, Value: float64(idx)}
		for i := 0; i < sc.defunArgs[idx]; i++ {
			n.Children = append(n.Children, g.subtree(depth+1, sc))
		}
		return n
	}
	f := g.cfg.Set.RandomWhere(g.rng, treeFunction)
	if f.Terminal() {
		return g.terminal(sc)
	}
	lo, hi := f.Arity()
	arity := lo
	if hi > lo {
		arity = lo + g.rng.Intn(hi-lo+1)
	}
	n := &Node{Function: f}
	if f == instr.Weight {
		n.Value = g.constant()
	}
	for i := 0; i < arity; i++ {
		n.Children = append(n.Children, g.subtree(depth+1, sc))
	}
	return n
}

// treeFunction excludes tags only the graph interpreter gives meaning to.
func treeFunction(f instr.Function) bool {
	return !f.SelfModifying()
}

// scopeFor returns the reference scope of top-level slot i.
func (p *Program) scopeFor(i int) (scope, error) {
	if p.Root == nil || i < 0 || i >= len(p.Root.Children) {
		return scope{}, fmt.Errorf("top-level slot %d out of range", i)
	}
	slot := p.Root.Children[i]
	if slot.Function == instr.Defun {
		return scope{args: int(slot.Value)}, nil
	}
	return scope{defunArgs: p.defunArgs()}, nil
}
