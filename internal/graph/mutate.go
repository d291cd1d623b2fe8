package graph

import (
	"gpr/internal/instr"
	"gpr/internal/numeric"
	"gpr/internal/prng"
)

const jitter = 0.02

// Mutate perturbs p in place. Each module receives on average
// prob*cells/modules point mutations of a random cell or actuator, then as
// many connection permutations; with probability prob the main grid also
// gets a chromosome swap. Repairs run last.
func Mutate(p *Program, cfg Config, prob float64, rng *prng.Rand) {
	cfg = cfg.Normalize()
	p.ComputeUsed()
	for mi, m := range p.Modules {
		n := attempts(prob*float64(m.Cells())/float64(len(p.Modules)), rng)
		for i := 0; i < n; i++ {
			cell := rng.Intn(m.Cells() + m.Actuators)
			if cell >= m.Cells() {
				m.Outputs[cell-m.Cells()] = CellIndex(rng.Intn(m.Sources()))
				continue
			}
			switch rng.Intn(3) {
			case 0:
				mutateFunction(p, mi, cell, cfg, rng)
			case 1:
				mutateConstant(&m.Genes[cell], cfg, rng)
			default:
				mutateConnection(m, cell, rng)
			}
		}
		for i := 0; i < n; i++ {
			permuteConnections(&m.Genes[rng.Intn(m.Cells())], rng)
		}
	}
	if rng.Chance(prob) {
		SwapChromosomes(p.Main(), cfg.Chromosomes, rng)
	}
	repair(p, cfg, rng)
}

// attempts rounds x stochastically so small rates still mutate sometimes.
func attempts(x float64, rng *prng.Rand) int {
	if x <= 0 {
		return 0
	}
	n := int(x)
	if rng.Chance(x - float64(n)) {
		n++
	}
	return n
}

func mutateFunction(p *Program, mi, g int, cfg Config, rng *prng.Rand) {
	gene := &p.Modules[mi].Genes[g]
	if mi == 0 && p.ADFModules() > 0 && rng.Chance(cfg.ADFProb) {
		// Only modules main already calls may gain callers.
		refs := p.Referenced()
		var targets []int
		for i := 1; i < len(p.Modules); i++ {
			if a := p.Modules[i].Arity(); refs[i] && a >= 1 && a <= cfg.maxCallArgs() {
				targets = append(targets, i)
			}
		}
		if len(targets) == 0 {
			return
		}
		target := targets[rng.Intn(len(targets))]
		gene.Function = instr.ADF
		gene.Constant = float64(target - 1)
		gene.Args = p.Modules[target].Arity()
		return
	}
	gene.Function = cfg.Set.Random(rng)
	gene.Args = 0
}

func mutateConstant(gene *Gene, cfg Config, rng *prng.Rand) {
	if gene.Function == instr.ADF {
		return
	}
	if rng.Intn(2) == 0 {
		gene.Constant = numeric.Guard(gene.Constant + gene.Constant*rng.Range(-jitter, jitter))
	} else {
		gene.Constant = rng.Range(cfg.MinConstant, cfg.MaxConstant)
	}
	if cfg.Integer {
		gene.Constant = float64(int64(gene.Constant))
	}
}

func mutateConnection(m *Module, g int, rng *prng.Rand) {
	gene := &m.Genes[g]
	if len(gene.Connections) == 0 {
		return
	}
	slot := rng.Intn(len(gene.Connections))
	gene.Connections[slot] = CellIndex(rng.Intn(int(m.Limit(m.Column(g)))))
	if rng.Intn(2) == 0 {
		gene.Weights[slot] = rng.Range(-1, 1)
	}
}

func permuteConnections(gene *Gene, rng *prng.Rand) {
	k := len(gene.Connections)
	if k < 2 {
		return
	}
	i, j := rng.Intn(k), rng.Intn(k)
	gene.Connections[i], gene.Connections[j] = gene.Connections[j], gene.Connections[i]
	gene.Weights[i], gene.Weights[j] = gene.Weights[j], gene.Weights[i]
}

// band returns the row range [start, end) of chromosome b.
func band(b, bands, rows int) (int, int) {
	return b * rows / bands, (b + 1) * rows / bands
}

// SwapChromosomes exchanges two row bands of m, rotating the columns of the
// moved genes by a random shift. Connections that would point forward
// after the move are folded back into range. It reports whether a swap
// happened.
func SwapChromosomes(m *Module, bands int, rng *prng.Rand) bool {
	if bands < 2 || bands > m.Rows {
		return false
	}
	a := rng.Intn(bands)
	b := (a + 1 + rng.Intn(bands-1)) % bands
	shift := rng.Intn(m.Columns)
	aStart, aEnd := band(a, bands, m.Rows)
	bStart, bEnd := band(b, bands, m.Rows)
	size := min(aEnd-aStart, bEnd-bStart)
	var moved []int
	for r := 0; r < size; r++ {
		for c := 0; c < m.Columns; c++ {
			ga := c*m.Rows + aStart + r
			gb := ((c+shift)%m.Columns)*m.Rows + bStart + r
			m.Genes[ga], m.Genes[gb] = m.Genes[gb], m.Genes[ga]
			moved = append(moved, ga, gb)
		}
	}
	for _, g := range moved {
		limit := m.Limit(m.Column(g))
		for slot, src := range m.Genes[g].Connections {
			if src >= limit {
				m.Genes[g].Connections[slot] = src % limit
			}
		}
	}
	return true
}

// repair restores the invariants random edits may break: no ADF calls
// inside ADF modules, distinct inputs on logical genes, distinct actuator
// sources and ADF calls whose argument count matches the callee.
func repair(p *Program, cfg Config, rng *prng.Rand) {
	for mi := len(p.Modules) - 1; mi >= 0; mi-- {
		m := p.Modules[mi]
		if mi > 0 {
			for g := range m.Genes {
				if m.Genes[g].Function == instr.ADF {
					demote(&m.Genes[g], cfg.Set, rng)
				}
			}
		}
		repairLogical(m, cfg.Set, rng)
		repairOutputs(m, rng)
		if mi == 0 {
			repairCalls(p, cfg.maxCallArgs(), cfg.Set, rng)
		}
	}
	p.ComputeUsed()
}

// demote turns an ADF gene into a plain non-logical function from set.
func demote(gene *Gene, set instr.Set, rng *prng.Rand) {
	gene.Function = set.RandomWhere(rng, func(f instr.Function) bool { return !f.Logical() })
	gene.Args = 0
}

func repairLogical(m *Module, set instr.Set, rng *prng.Rand) {
	for g := range m.Genes {
		gene := &m.Genes[g]
		if !gene.Function.Logical() {
			continue
		}
		limit := int(m.Limit(m.Column(g)))
		fixed := false
		for try := 0; try < repairRetries; try++ {
			slot := duplicateInput(gene)
			if slot < 0 {
				fixed = true
				break
			}
			gene.Connections[slot] = CellIndex(rng.Intn(limit))
		}
		if !fixed && duplicateInput(gene) >= 0 {
			gene.Function = set.RandomWhere(rng, func(f instr.Function) bool { return !f.Logical() })
		}
	}
}

// duplicateInput returns a slot whose source repeats an earlier active
// slot, or -1.
func duplicateInput(gene *Gene) int {
	active := gene.Connections[:gene.inputs()]
	for i := 1; i < len(active); i++ {
		for j := 0; j < i; j++ {
			if active[i] == active[j] {
				return i
			}
		}
	}
	return -1
}

func repairOutputs(m *Module, rng *prng.Rand) {
	taken := make(map[CellIndex]bool, len(m.Outputs))
	for i := range m.Outputs {
		for try := 0; try < repairRetries && taken[m.Outputs[i]]; try++ {
			m.Outputs[i] = CellIndex(rng.Intn(m.Sources()))
		}
		if taken[m.Outputs[i]] {
			for a := CellIndex(m.Sources() - 1); a >= 0; a-- {
				if !taken[a] {
					m.Outputs[i] = a
					break
				}
			}
		}
		taken[m.Outputs[i]] = true
	}
}

// repairCalls normalizes every ADF gene in main: the constant names an
// existing module and Args equals that module's arity. Calls into modules
// whose arity cannot be expressed are demoted.
func repairCalls(p *Program, maxArgs int, set instr.Set, rng *prng.Rand) {
	main := p.Main()
	arity := make([]int, len(p.Modules))
	for i := 1; i < len(p.Modules); i++ {
		arity[i] = p.Modules[i].Arity()
	}
	for g := range main.Genes {
		gene := &main.Genes[g]
		if gene.Function != instr.ADF {
			continue
		}
		if p.ADFModules() == 0 {
			demote(gene, set, rng)
			continue
		}
		target := p.callee(gene.Constant)
		if a := arity[target]; a < 1 || a > maxArgs {
			demote(gene, set, rng)
			continue
		}
		gene.Constant = float64(target - 1)
		gene.Args = arity[target]
	}
}
