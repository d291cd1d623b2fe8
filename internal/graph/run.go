package graph

import (
	"gpr/internal/instr"
	"gpr/internal/numeric"
	"gpr/internal/prng"
)

// Run evaluates the main module once. Cells that are not used are skipped
// unless dynamic is set; each evaluated cell is additionally dropped with
// probability dropout. Sensors must already be loaded with SetSensor.
func (p *Program) Run(dropout float64, dynamic bool, custom instr.CustomFunc) {
	RunModule(p, 0, dropout, dynamic, custom)
}

// RunModule evaluates module index of p in raster order and then copies
// every actuator from its source cell. Values are truncated toward zero
// when the program is in integer mode.
func RunModule(p *Program, index int, dropout float64, dynamic bool, custom instr.CustomFunc) {
	if index < 0 || index >= len(p.Modules) {
		return
	}
	rng := prng.New(p.Seed)
	r := runner{
		program: p,
		dropout: dropout,
		dynamic: dynamic,
		custom:  instr.OrNone(custom),
		rng:     rng,
	}
	r.module(index, 0)
	p.Seed = rng.Seed()
}

type runner struct {
	program *Program
	dropout float64
	dynamic bool
	custom  instr.CustomFunc
	rng     *prng.Rand
}

func (r *runner) module(index, depth int) {
	m := r.program.Modules[index]
	for g := range m.Genes {
		addr := m.Sensors + g
		if !r.dynamic && !m.Used[addr] {
			continue
		}
		if r.dropout > 0 && r.rng.Chance(r.dropout) {
			continue
		}
		v := r.gene(m, g, depth)
		if r.program.Integer {
			v = numeric.Truncate(v)
		} else {
			v = numeric.Guard(v)
		}
		m.State[addr] = v
	}
	for i, src := range m.Outputs {
		if src >= 0 && int(src) < m.Sources() {
			m.State[m.actuatorSlot(i)] = m.State[src]
		}
	}
}

func (r *runner) gene(m *Module, g, depth int) float64 {
	gene := &m.Genes[g]
	var buf [instr.MaxArguments]float64
	vals := buf[:0]
	for _, src := range gene.Connections[:gene.inputs()] {
		vals = append(vals, m.State[src])
	}
	limit := int(m.Limit(m.Column(g)))

	switch f := gene.Function; {
	case f == instr.Value:
		return gene.Constant
	case f == instr.None:
		return 0
	case f == instr.ADF:
		return r.call(m, gene, vals, depth)
	case len(vals) == 0:
		return 0
	case f == instr.Weight:
		return gene.Constant * vals[0]
	case f == instr.Not:
		return instr.Compare(f, vals[0], 0)
	case f.Logical():
		a, b := numberPair(vals)
		return instr.Compare(f, a, b)
	case f == instr.Custom:
		for len(vals) < 3 {
			vals = append(vals, 0)
		}
		return r.custom.Apply(vals[0], vals[1], vals[2])
	case f == instr.GetIndirect:
		return m.State[numeric.Index(vals[0], limit)]
	case f == instr.SetIndirect:
		v := 0.0
		if len(vals) > 1 {
			v = vals[1]
		}
		if dst := numeric.Index(vals[0], limit); dst >= m.Sensors {
			m.State[dst] = v
		}
		return v
	case f == instr.Hebbian:
		return hebbian(gene, vals)
	case f.SelfModifying():
		return r.selfModify(m, f, vals, limit)
	}
	return instr.Arithmetic(gene.Function, vals)
}

// hebbian outputs the weighted input sum and then moves every weight
// toward the correlation of its input with that output.
func hebbian(gene *Gene, vals []float64) float64 {
	out := 0.0
	for i, v := range vals {
		out += v * gene.Weights[i]
	}
	out = numeric.Guard(out)
	for i, v := range vals {
		gene.Weights[i] = numeric.Guard(gene.Weights[i] + out*v*LearningRate)
	}
	return out
}

// selfModify implements the copy functions. Source and destination are
// drawn from the first two inputs and must both be genes in columns before
// the running gene; ADF genes are never read or written.
func (r *runner) selfModify(m *Module, f instr.Function, vals []float64, limit int) float64 {
	if len(vals) < 2 {
		return 0
	}
	src := numeric.Index(vals[0], limit)
	dst := numeric.Index(vals[1], limit)
	if f == instr.CopyState {
		if dst < m.Sensors {
			return 0
		}
		m.State[dst] = m.State[src]
		return m.State[src]
	}
	sg, dg := m.geneAt(CellIndex(src)), m.geneAt(CellIndex(dst))
	if sg < 0 || dg < 0 || sg == dg {
		return 0
	}
	from, to := &m.Genes[sg], &m.Genes[dg]
	if from.Function == instr.ADF || to.Function == instr.ADF {
		return 0
	}
	toLimit := m.Limit(m.Column(dg))
	switch f {
	case instr.CopyFunction:
		to.Function = from.Function
	case instr.CopyConstant:
		to.Constant = from.Constant
	case instr.CopyBlock:
		to.Function = from.Function
		to.Constant = from.Constant
		for i := range to.Connections {
			if i < len(from.Connections) && from.Connections[i] < toLimit {
				to.Connections[i] = from.Connections[i]
			}
			if i < len(from.Weights) {
				to.Weights[i] = from.Weights[i]
			}
		}
	default:
		slot := int(f - instr.CopyConnection1)
		if slot >= len(to.Connections) || slot >= len(from.Connections) {
			return 0
		}
		if from.Connections[slot] < toLimit {
			to.Connections[slot] = from.Connections[slot]
		}
	}
	return m.State[src]
}

// call runs an ADF module: the gene's inputs are written into the callee's
// used sensors in order, the callee runs twice and its actuator is the
// result.
func (r *runner) call(m *Module, gene *Gene, vals []float64, depth int) float64 {
	p := r.program
	if p.ADFModules() == 0 || depth >= instr.MaxCallDepth-1 {
		return 0
	}
	index := p.callee(gene.Constant)
	callee := p.Modules[index]
	args := min(len(vals), MaxADFModuleSensors, m.ConnectionsPerGene)
	j := 0
	for s := 0; s < callee.Sensors && j < args; s++ {
		if callee.Used[s] {
			callee.State[s] = vals[j]
			j++
		}
	}
	for pass := 0; pass < 2; pass++ {
		r.module(index, depth+1)
	}
	if callee.Actuators == 0 {
		return 0
	}
	return callee.State[callee.actuatorSlot(0)]
}

func numberPair(vals []float64) (float64, float64) {
	half := len(vals) / 2
	var a, b float64
	for i, v := range vals {
		if i < half {
			a += v
		} else {
			b += v
		}
	}
	return numeric.Guard(a), numeric.Guard(b)
}
