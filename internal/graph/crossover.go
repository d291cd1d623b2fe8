package graph

import "gpr/internal/prng"

// blockMask records, per block, whether the child takes it from the first
// parent.
type blockMask struct {
	bands   []bool
	modules []bool
	outputs []bool
}

func crossoverMask(bands, modules, actuators int, rng *prng.Rand) blockMask {
	mask := blockMask{
		bands:   make([]bool, bands),
		modules: make([]bool, modules),
		outputs: make([]bool, actuators),
	}
	for i := range mask.bands {
		mask.bands[i] = rng.Intn(2) == 0
	}
	for i := range mask.modules {
		mask.modules[i] = rng.Intn(2) == 0
	}
	for i := range mask.outputs {
		mask.outputs[i] = rng.Intn(2) == 0
	}
	return mask
}

// compatible reports whether a and b share every module shape.
func compatible(a, b *Program) bool {
	if len(a.Modules) != len(b.Modules) {
		return false
	}
	for i, m := range a.Modules {
		o := b.Modules[i]
		if m.Rows != o.Rows || m.Columns != o.Columns || m.Sensors != o.Sensors ||
			m.Actuators != o.Actuators || m.ConnectionsPerGene != o.ConnectionsPerGene {
			return false
		}
	}
	return true
}

// Crossover builds a child by block-level uniform crossover: every row band
// of the main grid and every ADF module comes whole from one parent, and
// each actuator source from either. Blocks keep their grid positions, so
// all connections stay within earlier columns. Incompatible parents yield
// a clone of a.
func Crossover(a, b *Program, cfg Config, rng *prng.Rand) *Program {
	cfg = cfg.Normalize()
	if !compatible(a, b) {
		return a.Clone()
	}
	main := a.Main()
	bands := cfg.Chromosomes
	if bands > main.Rows {
		bands = main.Rows
	}
	mask := crossoverMask(bands, a.ADFModules(), main.Actuators, rng)
	child := crossoverBlocks(a, b, mask)
	child.Seed = rng.Uint32()
	repair(child, cfg, rng)
	return child
}

func crossoverBlocks(a, b *Program, mask blockMask) *Program {
	child := a.Clone()
	main, other := child.Main(), b.Main()
	for bi, fromA := range mask.bands {
		if fromA {
			continue
		}
		start, end := band(bi, len(mask.bands), main.Rows)
		for c := 0; c < main.Columns; c++ {
			for r := start; r < end; r++ {
				g := c*main.Rows + r
				main.Genes[g] = other.Genes[g].clone()
			}
		}
	}
	for i, fromA := range mask.outputs {
		if !fromA {
			main.Outputs[i] = other.Outputs[i]
		}
	}
	for i, fromA := range mask.modules {
		if !fromA {
			child.Modules[i+1] = b.Modules[i+1].Clone()
		}
	}
	return child
}
