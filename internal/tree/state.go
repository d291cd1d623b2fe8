package tree

import "gpr/internal/instr"

// State is an individual's mutable scratch: registers, sensors, actuators,
// the ADF table and the argument-passing stack. It is created once and
// cleared between fitness trials.
type State struct {
	Registers []float64
	Sensors   []float64
	Actuators []float64

	adf     [instr.MaxArguments]*Node
	adfArgs [instr.MaxArguments]int
	adfs    int
	args    [instr.MaxCallDepth][instr.MaxArguments]float64
}

func NewState(registers, sensors, actuators int) *State {
	return &State{
		Registers: make([]float64, registers),
		Sensors:   make([]float64, sensors),
		Actuators: make([]float64, actuators),
	}
}

// Clear zeroes every buffer without reallocating.
func (s *State) Clear() {
	clear(s.Registers)
	clear(s.Sensors)
	clear(s.Actuators)
	s.args = [instr.MaxCallDepth][instr.MaxArguments]float64{}
}

func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	return &State{
		Registers: append([]float64(nil), s.Registers...),
		Sensors:   append([]float64(nil), s.Sensors...),
		Actuators: append([]float64(nil), s.Actuators...),
	}
}

// bind points the ADF table at the DEFUN bodies under root.
func (s *State) bind(root *Node) {
	s.adf = [instr.MaxArguments]*Node{}
	s.adfArgs = [instr.MaxArguments]int{}
	s.adfs = 0
	if root == nil || root.Function != instr.TopLevel {
		return
	}
	for _, c := range root.Children {
		if c.Function != instr.Defun || len(c.Children) == 0 || s.adfs >= instr.MaxArguments {
			continue
		}
		s.adf[s.adfs] = c.Children[0]
		s.adfArgs[s.adfs] = int(c.Value)
		s.adfs++
	}
}

// array resolves the GET/SET oracle type: 0 registers, 1 sensors, 2 actuators.
func (s *State) array(kind int) []float64 {
	switch kind {
	case 0:
		return s.Registers
	case 1:
		return s.Sensors
	default:
		return s.Actuators
	}
}
