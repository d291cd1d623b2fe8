// Package graph implements the Cartesian program encoding: a grid of genes
// with feed-forward connections, ADF modules callable from the main grid,
// the interpreter, usage analysis, validity checks, mutation, block
// crossover, subgraph compression into modules and the binary genome format.
package graph

import (
	"errors"
	"fmt"

	"gpr/internal/instr"
)

const (
	// MaxADFModules bounds the number of ADF modules next to the main grid.
	MaxADFModules = 4
	// MaxADFModuleSensors is the sensor capacity of every ADF module.
	MaxADFModuleSensors = 6
	// LearningRate scales the Hebbian weight update.
	LearningRate = 0.01
	// repairRetries bounds every best-effort repair loop.
	repairRetries = 8
)

var ErrForwardConnection = errors.New("connection does not point to an earlier column")

// CellIndex addresses a module's linear space: sensors first, then grid
// cells in column-major order. Actuator slots follow the grid in State but
// are never a connection target.
type CellIndex int

// Gene is one grid cell. Args is the declared argument count of an ADF
// call and zero for every other function.
type Gene struct {
	Function    instr.Function
	Constant    float64
	Args        int
	Connections []CellIndex
	Weights     []float64
}

func (g Gene) clone() Gene {
	g.Connections = append([]CellIndex(nil), g.Connections...)
	g.Weights = append([]float64(nil), g.Weights...)
	return g
}

func (g Gene) equal(o Gene) bool {
	if g.Function != o.Function || g.Constant != o.Constant || g.Args != o.Args ||
		len(g.Connections) != len(o.Connections) || len(g.Weights) != len(o.Weights) {
		return false
	}
	for i := range g.Connections {
		if g.Connections[i] != o.Connections[i] {
			return false
		}
	}
	for i := range g.Weights {
		if g.Weights[i] != o.Weights[i] {
			return false
		}
	}
	return true
}

// inputs is how many leading connections the gene reads.
func (g Gene) inputs() int {
	if g.Function == instr.ADF {
		return min(g.Args, len(g.Connections))
	}
	return g.Function.Inputs(len(g.Connections))
}

// Module is one grid: the main program or an ADF body.
type Module struct {
	Rows               int
	Columns            int
	Sensors            int
	Actuators          int
	ConnectionsPerGene int

	Genes   []Gene
	Outputs []CellIndex
	// State holds the last computed value of every sensor, cell and
	// actuator slot.
	State []float64
	// Used flags cells reachable from the actuators.
	Used []bool
}

// NewModule allocates a zeroed module whose genes are VALUE cells wired to
// sensor 0.
func NewModule(rows, columns, sensors, actuators, connections int) *Module {
	m := &Module{
		Rows:               rows,
		Columns:            columns,
		Sensors:            sensors,
		Actuators:          actuators,
		ConnectionsPerGene: connections,
		Genes:              make([]Gene, rows*columns),
		Outputs:            make([]CellIndex, actuators),
	}
	for i := range m.Genes {
		m.Genes[i] = Gene{
			Function:    instr.Value,
			Connections: make([]CellIndex, connections),
			Weights:     make([]float64, connections),
		}
	}
	size := m.Size()
	m.State = make([]float64, size)
	m.Used = make([]bool, size)
	return m
}

// Cells is the grid size.
func (m *Module) Cells() int {
	return m.Rows * m.Columns
}

// Sources is the number of addresses a connection or output may name.
func (m *Module) Sources() int {
	return m.Sensors + m.Cells()
}

// Size is the length of State and Used.
func (m *Module) Size() int {
	return m.Sources() + m.Actuators
}

// Address returns the linear address of the gene at (row, col).
func (m *Module) Address(row, col int) CellIndex {
	return CellIndex(m.Sensors + col*m.Rows + row)
}

// Gene returns the gene at (row, col).
func (m *Module) Gene(row, col int) *Gene {
	return &m.Genes[col*m.Rows+row]
}

// Column returns the grid column of gene index g.
func (m *Module) Column(g int) int {
	return g / m.Rows
}

// Limit is the first address a gene in column col may not read.
func (m *Module) Limit(col int) CellIndex {
	return CellIndex(m.Sensors + col*m.Rows)
}

// geneAt maps an address to a gene index, or -1 for sensors and actuators.
func (m *Module) geneAt(a CellIndex) int {
	g := int(a) - m.Sensors
	if g < 0 || g >= m.Cells() {
		return -1
	}
	return g
}

// actuatorSlot returns the State index of actuator i.
func (m *Module) actuatorSlot(i int) int {
	return m.Sources() + i
}

// SetConnection assigns src to connection slot of gene g, refusing any
// source that is not strictly in an earlier column.
func (m *Module) SetConnection(g, slot int, src CellIndex) error {
	if g < 0 || g >= len(m.Genes) || slot < 0 || slot >= len(m.Genes[g].Connections) {
		return fmt.Errorf("gene %d slot %d out of range", g, slot)
	}
	if src < 0 || src >= m.Limit(m.Column(g)) {
		return fmt.Errorf("%w: gene %d column %d source %d", ErrForwardConnection, g, m.Column(g), src)
	}
	m.Genes[g].Connections[slot] = src
	return nil
}

// SetOutput points actuator i at src.
func (m *Module) SetOutput(i int, src CellIndex) error {
	if i < 0 || i >= len(m.Outputs) {
		return fmt.Errorf("actuator %d out of range", i)
	}
	if src < 0 || int(src) >= m.Sources() {
		return fmt.Errorf("actuator %d source %d out of range", i, src)
	}
	m.Outputs[i] = src
	return nil
}

func (m *Module) Clone() *Module {
	out := *m
	out.Genes = make([]Gene, len(m.Genes))
	for i, g := range m.Genes {
		out.Genes[i] = g.clone()
	}
	out.Outputs = append([]CellIndex(nil), m.Outputs...)
	out.State = append([]float64(nil), m.State...)
	out.Used = append([]bool(nil), m.Used...)
	return &out
}

// Equal compares structure: genes and outputs, not scratch state.
func (m *Module) Equal(o *Module) bool {
	if m.Rows != o.Rows || m.Columns != o.Columns || m.Sensors != o.Sensors ||
		m.Actuators != o.Actuators || m.ConnectionsPerGene != o.ConnectionsPerGene ||
		len(m.Genes) != len(o.Genes) || len(m.Outputs) != len(o.Outputs) {
		return false
	}
	for i := range m.Genes {
		if !m.Genes[i].equal(o.Genes[i]) {
			return false
		}
	}
	for i := range m.Outputs {
		if m.Outputs[i] != o.Outputs[i] {
			return false
		}
	}
	return true
}

// reach computes backward reachability from the actuators to a fixed point
// without touching m.Used.
func (m *Module) reach() []bool {
	used := make([]bool, m.Size())
	for i, src := range m.Outputs {
		used[m.actuatorSlot(i)] = true
		if src >= 0 && int(src) < m.Sources() {
			used[src] = true
		}
	}
	for changed := true; changed; {
		changed = false
		for g := len(m.Genes) - 1; g >= 0; g-- {
			if !used[m.Sensors+g] {
				continue
			}
			gene := &m.Genes[g]
			for _, src := range gene.Connections[:gene.inputs()] {
				if src >= 0 && int(src) < m.Sources() && !used[src] {
					used[src] = true
					changed = true
				}
			}
		}
	}
	return used
}

// ComputeUsed refreshes the Used flags.
func (m *Module) ComputeUsed() {
	used := m.reach()
	if len(m.Used) != len(used) {
		m.Used = used
		return
	}
	copy(m.Used, used)
}

// Arity is the number of sensors the module reads, the argument count an
// ADF call into it must supply.
func (m *Module) Arity() int {
	used := m.reach()
	n := 0
	for s := 0; s < m.Sensors; s++ {
		if used[s] {
			n++
		}
	}
	return n
}

// Active counts used grid cells.
func (m *Module) Active() int {
	n := 0
	for g := range m.Genes {
		if m.Used[m.Sensors+g] {
			n++
		}
	}
	return n
}

// Clear zeroes the scratch state.
func (m *Module) Clear() {
	clear(m.State)
}
