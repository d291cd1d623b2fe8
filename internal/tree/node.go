// Package tree implements the expression-tree program encoding: nodes with
// automatically defined functions, the recursive interpreter, random
// generation, mutation, crossover, validation and the text genome format.
package tree

import (
	"strconv"
	"strings"

	"gpr/internal/instr"
)

// Node is one tagged operation or terminal. Each child is exclusively owned
// by its parent; the arity of a node is len(Children).
type Node struct {
	Function instr.Function
	Value    float64
	Children []*Node
}

func NewValue(v float64) *Node {
	return &Node{Function: instr.Value, Value: v}
}

func NewArg(index int) *Node {
	return &Node{Function: instr.Arg, Value: float64(index)}
}

func NewOp(f instr.Function, children ...*Node) *Node {
	return &Node{Function: f, Children: children}
}

// Clone returns a deep copy of the subtree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Function: n.Function, Value: n.Value}
	if len(n.Children) > 0 {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

func (n *Node) Arity() int {
	return len(n.Children)
}

// Depth counts levels, a lone terminal being depth 1.
func (n *Node) Depth() int {
	if n == nil {
		return 0
	}
	best := 0
	for _, c := range n.Children {
		if d := c.Depth(); d > best {
			best = d
		}
	}
	return best + 1
}

// Count returns the number of nodes in the subtree.
func (n *Node) Count() int {
	if n == nil {
		return 0
	}
	total := 1
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

// Equal reports structural equality including constants.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.Function != o.Function || n.Value != o.Value || len(n.Children) != len(o.Children) {
		return false
	}
	for i := range n.Children {
		if !n.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

// replace overwrites n in place so that the parent's pointer sees the new
// content.
func (n *Node) replace(with *Node) {
	*n = *with
}

// String renders an S-expression.
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	switch n.Function {
	case instr.Value:
		b.WriteString(strconv.FormatFloat(n.Value, 'g', 6, 64))
		return
	case instr.Arg:
		b.WriteString("arg")
		b.WriteString(strconv.Itoa(int(n.Value)))
		return
	}
	b.WriteByte('(')
	b.WriteString(n.Function.String())
	if n.Function == instr.ADF || n.Function == instr.Defun {
		b.WriteString(strconv.Itoa(int(n.Value)))
	}
	for _, c := range n.Children {
		b.WriteByte(' ')
		c.write(b)
	}
	b.WriteByte(')')
}

// site is a node reached during a walk together with its depth (root = 1).
type site struct {
	node  *Node
	depth int
}

// collect walks the subtree in pre-order.
func collect(root *Node, depth int, keep func(*Node) bool, out []site) []site {
	if root == nil {
		return out
	}
	if keep == nil || keep(root) {
		out = append(out, site{node: root, depth: depth})
	}
	for _, c := range root.Children {
		out = collect(c, depth+1, keep, out)
	}
	return out
}

func nonTerminal(n *Node) bool {
	return !n.Function.Terminal()
}
