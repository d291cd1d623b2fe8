package graph

import (
	"errors"

	"gpr/internal/instr"
	"gpr/internal/prng"
)

const (
	MinADFGenes = 2
	MaxADFGenes = 24
	// DefaultCompressDepth bounds the subgraph walk below the start gene.
	DefaultCompressDepth = 3
	// reuseProb is the chance of retagging the start gene as a call into a
	// module main already uses instead of extracting a new one.
	reuseProb = 0.5
)

var (
	ErrNoADFModules     = errors.New("no adf modules configured")
	ErrNoCandidate      = errors.New("no candidate gene")
	ErrNoFreeModule     = errors.New("no unused adf module")
	ErrSubgraphTooSmall = errors.New("subgraph too small")
	ErrSubgraphTooLarge = errors.New("subgraph too large")
	ErrTooManyInputs    = errors.New("subgraph has too many inputs")
	ErrNoInputs         = errors.New("subgraph has no inputs")
)

// CompressOptions bounds subgraph extraction. Zero values take defaults.
type CompressOptions struct {
	MaxDepth int
	MinGenes int
	MaxGenes int
}

func (o CompressOptions) normalize() CompressOptions {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultCompressDepth
	}
	if o.MinGenes <= 0 {
		o.MinGenes = MinADFGenes
	}
	if o.MaxGenes <= 0 {
		o.MaxGenes = MaxADFGenes
	}
	return o
}

// CompressToADF moves the subgraph rooted at main gene start (a random used
// gene when start < 0) into an unused ADF module and turns start into a
// call to it. Sources below the sensor boundary, ADF genes and sources at
// the depth ceiling become module inputs, numbered in order of first use.
// Extracted genes keep their grid positions. It returns the module index.
//
// When main already calls a module whose arity fits, start is sometimes
// retagged as a call into that module instead.
func CompressToADF(p *Program, start int, opts CompressOptions, rng *prng.Rand) (int, error) {
	if p.ADFModules() == 0 {
		return 0, ErrNoADFModules
	}
	opts = opts.normalize()
	main := p.Main()
	main.ComputeUsed()
	if start < 0 {
		start = randomCandidate(main, rng)
	}
	if start < 0 || start >= len(main.Genes) || !candidate(main, start) {
		return 0, ErrNoCandidate
	}
	maxArgs := min(MaxADFModuleSensors, main.ConnectionsPerGene)
	refs := p.Referenced()

	if rng.Chance(reuseProb) {
		var reuse []int
		for i := 1; i < len(p.Modules); i++ {
			if a := p.Modules[i].Arity(); refs[i] && a >= 1 && a <= maxArgs {
				reuse = append(reuse, i)
			}
		}
		if len(reuse) > 0 {
			target := reuse[rng.Intn(len(reuse))]
			gene := &main.Genes[start]
			gene.Function = instr.ADF
			gene.Constant = float64(target - 1)
			gene.Args = p.Modules[target].Arity()
			main.ComputeUsed()
			return target, nil
		}
	}

	free := -1
	for i := 1; i < len(p.Modules); i++ {
		if !refs[i] {
			free = i
			break
		}
	}
	if free < 0 {
		return 0, ErrNoFreeModule
	}
	target := p.Modules[free]
	if target.Rows != main.Rows || target.Columns != main.Columns ||
		target.ConnectionsPerGene != main.ConnectionsPerGene || target.Actuators < 1 {
		return 0, ErrNoFreeModule
	}

	x := extraction{
		from:   main,
		to:     target,
		opts:   opts,
		copies: map[int]Gene{},
		inputs: map[CellIndex]int{},
	}
	x.visit(start, 0)
	switch n := len(x.order); {
	case n < opts.MinGenes:
		return 0, ErrSubgraphTooSmall
	case n >= opts.MaxGenes:
		return 0, ErrSubgraphTooLarge
	}
	switch n := len(x.sources); {
	case n >= MaxADFModuleSensors || n > maxArgs:
		return 0, ErrTooManyInputs
	case n == 0:
		return 0, ErrNoInputs
	}

	for g := range target.Genes {
		gene := &target.Genes[g]
		gene.Function, gene.Constant, gene.Args = instr.Value, 0, 0
		clear(gene.Connections)
		clear(gene.Weights)
	}
	for _, g := range x.order {
		target.Genes[g] = x.copies[g]
	}
	for i := range target.Outputs {
		target.Outputs[i] = x.remap(CellIndex(main.Sensors + start))
	}
	target.Clear()
	target.ComputeUsed()

	call := &main.Genes[start]
	call.Function = instr.ADF
	call.Constant = float64(free - 1)
	call.Args = len(x.sources)
	copy(call.Connections, x.sources)
	main.ComputeUsed()

	repairCalls(p, maxArgs, instr.Set{}, rng)
	main.ComputeUsed()
	return free, nil
}

// candidate reports whether main gene g can root an extraction.
func candidate(m *Module, g int) bool {
	gene := &m.Genes[g]
	return m.Used[m.Sensors+g] && gene.Function != instr.ADF &&
		!gene.Function.Terminal() && gene.inputs() > 0
}

func randomCandidate(m *Module, rng *prng.Rand) int {
	var out []int
	for g := range m.Genes {
		if candidate(m, g) {
			out = append(out, g)
		}
	}
	if len(out) == 0 {
		return -1
	}
	return out[rng.Intn(len(out))]
}

type extraction struct {
	from, to *Module
	opts     CompressOptions
	order    []int
	copies   map[int]Gene
	sources  []CellIndex
	inputs   map[CellIndex]int
}

// remap translates a main address of an extracted gene to the module.
func (x *extraction) remap(a CellIndex) CellIndex {
	return a - CellIndex(x.from.Sensors) + CellIndex(x.to.Sensors)
}

func (x *extraction) input(src CellIndex) CellIndex {
	if i, ok := x.inputs[src]; ok {
		return CellIndex(i)
	}
	i := len(x.sources)
	x.inputs[src] = i
	x.sources = append(x.sources, src)
	return CellIndex(i)
}

func (x *extraction) visit(g, depth int) {
	if _, seen := x.copies[g]; seen {
		return
	}
	gene := x.from.Genes[g]
	out := gene.clone()
	clear(out.Connections)
	x.copies[g] = out
	x.order = append(x.order, g)
	for slot, src := range gene.Connections[:gene.inputs()] {
		sg := x.from.geneAt(src)
		if sg < 0 || x.from.Genes[sg].Function == instr.ADF || depth+1 >= x.opts.MaxDepth {
			out.Connections[slot] = x.input(src)
			continue
		}
		x.visit(sg, depth+1)
		out.Connections[slot] = x.remap(src)
	}
}
