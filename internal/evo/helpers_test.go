package evo

import (
	"strconv"

	"gpr/internal/instr"
	"gpr/internal/prng"
	"gpr/internal/tree"
)

// scalar is a one-number genome whose fitness is its value.
type scalar struct{ v float64 }

type scalarRep struct{}

func (scalarRep) Random(rng *prng.Rand) *scalar { return &scalar{v: rng.Range(0.5, 10)} }

func (scalarRep) Clone(g *scalar) *scalar { return &scalar{v: g.v} }

func (scalarRep) Mate(a, b *scalar, _ *prng.Rand) *scalar { return &scalar{v: (a.v + b.v) / 2} }

func (scalarRep) Mutate(g *scalar, prob float64, rng *prng.Rand) {
	if rng.Chance(prob) {
		g.v += rng.Range(-1, 1)
	}
}

func (scalarRep) Reset(*scalar) {}

func (scalarRep) Size(*scalar) int { return 1 }

func (scalarRep) Encode(g *scalar) ([]byte, error) {
	return strconv.AppendFloat(nil, g.v, 'g', -1, 64), nil
}

func scalarFitness(_ int, pop *Population[*scalar], i, _ int) float64 {
	return pop.Members[i].v
}

func constantFitness[G any](_ int, _ *Population[G], _, _ int) float64 { return 1 }

func treeRep() Tree {
	return Tree{Config: tree.Config{
		Sensors:   1,
		Actuators: 1,
		MaxDepth:  4,
		ADFs:      1,
		Set:       instr.MustSet(instr.Add, instr.Subtract, instr.Multiply, instr.Value),
	}}
}

// squareFitness rewards trees close to x*x on a few sample points.
func squareFitness(_ int, pop *Population[*tree.Program], i, _ int) float64 {
	p := pop.Members[i]
	errSum := 0.0
	for _, x := range []float64{-2, -1, 0, 1, 2, 3} {
		p.State.Clear()
		p.State.Sensors[0] = x
		d := p.Run(nil) - x*x
		errSum += d * d
	}
	return 1 / (1 + errSum)
}

type countingObserver struct {
	generations int
	migrations  [][2]int
}

func (o *countingObserver) ObserveGeneration(Diagnostics) { o.generations++ }

func (o *countingObserver) ObserveMigration(from, to int) {
	o.migrations = append(o.migrations, [2]int{from, to})
}
