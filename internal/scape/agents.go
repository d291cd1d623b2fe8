package scape

import (
	"gpr/internal/graph"
	"gpr/internal/instr"
	"gpr/internal/tree"
)

// TreeAgent runs a tree program per sample. Inputs beyond the program's
// sensor count are ignored; missing ones stay 0.
type TreeAgent struct {
	Program *tree.Program
	Custom  instr.CustomFunc
}

func (a TreeAgent) RunStep(in []float64) float64 {
	state := a.Program.State
	state.Clear()
	copy(state.Sensors, in)
	return a.Program.Run(a.Custom)
}

// GraphAgent runs a graph program per sample and reads actuator 0.
type GraphAgent struct {
	Program *graph.Program
	Dropout float64
	Dynamic bool
	Custom  instr.CustomFunc
}

func (a GraphAgent) RunStep(in []float64) float64 {
	a.Program.Clear()
	for i, v := range in {
		a.Program.SetSensor(i, v)
	}
	a.Program.Run(a.Dropout, a.Dynamic, a.Custom)
	return a.Program.Actuator(0)
}
