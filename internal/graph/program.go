package graph

import (
	"errors"
	"fmt"

	"gpr/internal/instr"
	"gpr/internal/numeric"
	"gpr/internal/prng"
)

var ErrConfig = errors.New("invalid graph configuration")

// Config is the shape and generation bounds of graph programs.
type Config struct {
	Rows               int
	Columns            int
	Sensors            int
	Actuators          int
	ConnectionsPerGene int
	ADFModules         int
	// Chromosomes splits the rows into bands for block crossover and
	// chromosome swaps.
	Chromosomes int
	MinConstant float64
	MaxConstant float64
	Integer     bool
	Set         instr.Set
	ADFProb     float64
}

const DefaultADFProb = 0.1

// Normalize fills defaults and applies clamps.
func (c Config) Normalize() Config {
	if c.Rows <= 0 {
		c.Rows = 1
	}
	if c.Columns <= 0 {
		c.Columns = 1
	}
	if c.Sensors <= 0 {
		c.Sensors = 1
	}
	if c.Actuators <= 0 {
		c.Actuators = 1
	}
	if c.ConnectionsPerGene <= 0 {
		c.ConnectionsPerGene = 2
	}
	if c.ConnectionsPerGene > instr.MaxArguments {
		c.ConnectionsPerGene = instr.MaxArguments
	}
	c.ADFModules = max(0, min(c.ADFModules, MaxADFModules))
	if c.Chromosomes <= 0 || c.Chromosomes > c.Rows {
		c.Chromosomes = 1
	}
	if c.MinConstant == 0 && c.MaxConstant == 0 {
		c.MinConstant, c.MaxConstant = -10, 10
	}
	if c.Set.Len() == 0 {
		c.Set = instr.Default()
	}
	if c.ADFProb == 0 {
		c.ADFProb = DefaultADFProb
	}
	return c
}

// Validate reports configuration values Normalize cannot repair.
func (c Config) Validate() error {
	if c.Rows < 0 || c.Columns < 0 || c.Sensors < 0 || c.Actuators < 0 {
		return fmt.Errorf("%w: negative dimension", ErrConfig)
	}
	if c.ADFModules > MaxADFModules {
		return fmt.Errorf("%w: %d adf modules exceeds %d", ErrConfig, c.ADFModules, MaxADFModules)
	}
	if c.MinConstant > c.MaxConstant {
		return fmt.Errorf("%w: min constant %v above max %v", ErrConfig, c.MinConstant, c.MaxConstant)
	}
	return nil
}

// maxCallArgs is the widest ADF call a gene can express.
func (c Config) maxCallArgs() int {
	return min(MaxADFModuleSensors, c.ConnectionsPerGene)
}

// Program is a graph individual. Modules[0] is the main grid and
// Modules[1:] are ADF bodies.
type Program struct {
	Modules []*Module
	// SensorMap and ActuatorMap optionally redirect external indices to
	// main-module sensor and actuator slots.
	SensorMap   []int
	ActuatorMap []int
	// Seed drives dropout draws during runs.
	Seed    uint32
	Integer bool
}

// New allocates a program of VALUE genes shaped by cfg.
func New(cfg Config) *Program {
	cfg = cfg.Normalize()
	p := &Program{Integer: cfg.Integer, Seed: 1}
	p.Modules = append(p.Modules, NewModule(cfg.Rows, cfg.Columns, cfg.Sensors, cfg.Actuators, cfg.ConnectionsPerGene))
	for i := 0; i < cfg.ADFModules; i++ {
		p.Modules = append(p.Modules, NewModule(cfg.Rows, cfg.Columns, MaxADFModuleSensors, 1, cfg.ConnectionsPerGene))
	}
	return p
}

// NewRandom generates a valid random program.
func NewRandom(cfg Config, rng *prng.Rand) *Program {
	cfg = cfg.Normalize()
	p := New(cfg)
	for _, m := range p.Modules {
		for g := range m.Genes {
			randomGene(m, g, cfg, rng)
		}
		for i := range m.Outputs {
			m.Outputs[i] = CellIndex(rng.Intn(m.Sources()))
		}
	}
	p.Seed = rng.Uint32()
	repair(p, cfg, rng)
	return p
}

func randomGene(m *Module, g int, cfg Config, rng *prng.Rand) {
	gene := &m.Genes[g]
	gene.Function = cfg.Set.Random(rng)
	gene.Args = 0
	gene.Constant = randomConstant(cfg, rng)
	limit := int(m.Limit(m.Column(g)))
	for slot := range gene.Connections {
		gene.Connections[slot] = CellIndex(rng.Intn(limit))
		gene.Weights[slot] = rng.Range(-1, 1)
	}
}

func randomConstant(cfg Config, rng *prng.Rand) float64 {
	v := rng.Range(cfg.MinConstant, cfg.MaxConstant)
	if cfg.Integer {
		v = float64(int64(v))
	}
	return v
}

// Main returns the main module.
func (p *Program) Main() *Module {
	return p.Modules[0]
}

// ADFModules is the number of ADF bodies.
func (p *Program) ADFModules() int {
	return len(p.Modules) - 1
}

func (p *Program) Clone() *Program {
	out := &Program{
		Modules:     make([]*Module, len(p.Modules)),
		SensorMap:   append([]int(nil), p.SensorMap...),
		ActuatorMap: append([]int(nil), p.ActuatorMap...),
		Seed:        p.Seed,
		Integer:     p.Integer,
	}
	for i, m := range p.Modules {
		out.Modules[i] = m.Clone()
	}
	return out
}

// Equal compares genomes: modules, redirection tables, seed and mode.
func (p *Program) Equal(o *Program) bool {
	if p.Seed != o.Seed || p.Integer != o.Integer || len(p.Modules) != len(o.Modules) ||
		!equalInts(p.SensorMap, o.SensorMap) || !equalInts(p.ActuatorMap, o.ActuatorMap) {
		return false
	}
	for i := range p.Modules {
		if !p.Modules[i].Equal(o.Modules[i]) {
			return false
		}
	}
	return true
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SetSensor writes external sensor i, through SensorMap when present.
func (p *Program) SetSensor(i int, v float64) {
	m := p.Main()
	if len(p.SensorMap) > 0 {
		if i < 0 || i >= len(p.SensorMap) {
			return
		}
		i = p.SensorMap[i]
	}
	if i >= 0 && i < m.Sensors {
		m.State[i] = v
	}
}

// Actuator reads external actuator i, through ActuatorMap when present.
func (p *Program) Actuator(i int) float64 {
	m := p.Main()
	if len(p.ActuatorMap) > 0 {
		if i < 0 || i >= len(p.ActuatorMap) {
			return 0
		}
		i = p.ActuatorMap[i]
	}
	if i < 0 || i >= m.Actuators {
		return 0
	}
	return m.State[m.actuatorSlot(i)]
}

// Clear zeroes every module's scratch state.
func (p *Program) Clear() {
	for _, m := range p.Modules {
		m.Clear()
	}
}

// ComputeUsed refreshes the Used flags of every module.
func (p *Program) ComputeUsed() {
	for _, m := range p.Modules {
		m.ComputeUsed()
	}
}

// callee resolves an ADF gene's constant to a module index in [1, N].
func (p *Program) callee(constant float64) int {
	n := p.ADFModules()
	if n == 0 {
		return 0
	}
	return 1 + numeric.Index(constant, n)
}

// Referenced flags the ADF modules some used ADF gene in main calls.
func (p *Program) Referenced() []bool {
	refs := make([]bool, len(p.Modules))
	if p.ADFModules() == 0 {
		return refs
	}
	main := p.Main()
	used := main.reach()
	for g, gene := range main.Genes {
		if gene.Function == instr.ADF && used[main.Sensors+g] {
			refs[p.callee(gene.Constant)] = true
		}
	}
	return refs
}
