package tree

import (
	"gpr/internal/instr"
	"gpr/internal/numeric"
)

// Run evaluates node against state. The state's ADF table must already be
// bound; Program.Run does that.
func Run(node *Node, state *State, custom instr.CustomFunc) float64 {
	e := evaluator{state: state, custom: instr.OrNone(custom)}
	return e.eval(node, 0)
}

type evaluator struct {
	state  *State
	custom instr.CustomFunc
}

func (e *evaluator) eval(n *Node, depth int) float64 {
	if n == nil {
		return 0
	}
	switch n.Function {
	case instr.Value:
		return n.Value
	case instr.Arg:
		return e.state.args[depth][numeric.Index(n.Value, instr.MaxArguments)]
	case instr.None, instr.Defun:
		return 0
	}
	if lo, _ := n.Function.Arity(); len(n.Children) < lo {
		return 0
	}
	switch n.Function {
	case instr.Main:
		return e.eval(n.Children[0], depth)
	case instr.TopLevel:
		result := 0.0
		for _, c := range n.Children {
			result = e.eval(c, depth)
		}
		return result
	case instr.ADF:
		return e.call(n, depth)
	case instr.GetIndirect:
		kind := numeric.Index(e.eval(n.Children[0], depth), 3)
		arr := e.state.array(kind)
		idx := e.eval(n.Children[1], depth)
		if len(arr) == 0 {
			return 0
		}
		return arr[numeric.Index(idx, len(arr))]
	case instr.SetIndirect:
		kind := numeric.Index(e.eval(n.Children[0], depth), 3)
		idx := e.eval(n.Children[1], depth)
		v := e.eval(n.Children[2], depth)
		arr := e.state.array(kind)
		if len(arr) > 0 {
			arr[numeric.Index(idx, len(arr))] = v
		}
		return v
	case instr.GreaterThan, instr.LessThan, instr.Equals, instr.And, instr.Or, instr.Xor:
		a, b := e.numberPair(n, depth)
		return instr.Compare(n.Function, a, b)
	case instr.Not:
		return numeric.Bool(e.eval(n.Children[0], depth) <= 0)
	}

	var buf [instr.MaxArguments]float64
	vals := buf[:0]
	for _, c := range n.Children {
		vals = append(vals, e.eval(c, depth))
	}
	if len(vals) == 0 {
		return 0
	}
	if n.Function == instr.Custom {
		for len(vals) < 3 {
			vals = append(vals, 0)
		}
		return numeric.Guard(e.custom.Apply(vals[0], vals[1], vals[2]))
	}
	if n.Function == instr.Weight {
		return numeric.Guard(n.Value * vals[0])
	}
	return instr.Arithmetic(n.Function, vals)
}

// call evaluates an ADF node: arguments are computed at the caller's depth
// and pushed onto the next stack frame before entering the DEFUN body.
func (e *evaluator) call(n *Node, depth int) float64 {
	if depth >= instr.MaxCallDepth-1 || e.state.adfs == 0 {
		return 0
	}
	idx := numeric.Index(n.Value, e.state.adfs)
	var frame [instr.MaxArguments]float64
	for i, c := range n.Children {
		if i >= instr.MaxArguments {
			break
		}
		frame[i] = e.eval(c, depth)
	}
	e.state.args[depth+1] = frame
	return e.eval(e.state.adf[idx], depth+1)
}

// numberPair sums the first half of the children into one operand and the
// second half into the other.
func (e *evaluator) numberPair(n *Node, depth int) (float64, float64) {
	half := len(n.Children) / 2
	var a, b float64
	for i, c := range n.Children {
		v := e.eval(c, depth)
		if i < half {
			a += v
		} else {
			b += v
		}
	}
	return numeric.Guard(a), numeric.Guard(b)
}

