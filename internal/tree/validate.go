package tree

import (
	"fmt"
	"math"

	"gpr/internal/instr"
	"gpr/internal/numeric"
)

// Code names the structural invariant a tree program broke.
type Code int

const (
	CodeOK Code = iota
	CodeNotTerminated
	CodeTooDeep
	CodeTerminatorAtRoot
	CodeBadTopLevel
	CodeFunctionNotInSet
	CodeArity
	CodeADFArgCount
	CodeADFNested
	CodeADFIndex
	CodeArgIndex
	CodeValueRange
)

var codeNames = map[Code]string{
	CodeOK:               "ok",
	CodeNotTerminated:    "not terminated",
	CodeTooDeep:          "too deep",
	CodeTerminatorAtRoot: "terminator at root",
	CodeBadTopLevel:      "bad top level",
	CodeFunctionNotInSet: "function not in set",
	CodeArity:            "arity out of range",
	CodeADFArgCount:      "adf argument count mismatch",
	CodeADFNested:        "adf nested inside adf",
	CodeADFIndex:         "adf index out of range",
	CodeArgIndex:         "arg index out of range",
	CodeValueRange:       "value out of range",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// ValidationError reports which invariant failed and where.
type ValidationError struct {
	Code   Code
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return "tree: " + e.Code.String()
	}
	return "tree: " + e.Code.String() + ": " + e.Detail
}

func invalid(code Code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Validate checks every tree invariant against cfg. A nil error means the
// program is well formed; otherwise the error is a *ValidationError.
func Validate(p *Program, cfg Config) error {
	if p == nil || p.Root == nil {
		return invalid(CodeBadTopLevel, "empty program")
	}
	cfg = cfg.withDefaults()
	root := p.Root
	if root.Function.Terminal() {
		return invalid(CodeTerminatorAtRoot, "root is %s", root.Function)
	}
	if root.Function != instr.TopLevel {
		return invalid(CodeBadTopLevel, "root is %s", root.Function)
	}
	if n := len(root.Children); n == 0 || n > instr.MaxArguments {
		return invalid(CodeBadTopLevel, "%d top-level children", n)
	}
	for i, slot := range root.Children {
		last := i == len(root.Children)-1
		switch {
		case last && slot.Function != instr.Main:
			return invalid(CodeBadTopLevel, "last top-level child is %s", slot.Function)
		case !last && slot.Function != instr.Defun:
			return invalid(CodeBadTopLevel, "top-level child %d is %s", i, slot.Function)
		}
		if len(slot.Children) != 1 {
			return invalid(CodeArity, "%s with %d bodies", slot.Function, len(slot.Children))
		}
		if slot.Function == instr.Defun {
			if argc := int(slot.Value); float64(argc) != slot.Value || argc < 1 || argc > instr.MaxArguments {
				return invalid(CodeADFArgCount, "defun %d declares %v arguments", i, slot.Value)
			}
		}
	}
	if d := p.Depth(); d > cfg.MaxDepth {
		return invalid(CodeTooDeep, "depth %d exceeds %d", d, cfg.MaxDepth)
	}
	for i, slot := range root.Children {
		sc, _ := p.scopeFor(i)
		if err := validateNode(slot.Children[0], sc, cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateNode(n *Node, sc scope, cfg Config) error {
	if n == nil {
		return invalid(CodeArity, "missing child")
	}
	if math.IsNaN(n.Value) || math.Abs(n.Value) > numeric.MaxConstant {
		return invalid(CodeValueRange, "%s holds %v", n.Function, n.Value)
	}
	switch n.Function {
	case instr.Value:
	case instr.Arg:
		if sc.args == 0 || int(n.Value) < 0 || int(n.Value) >= sc.args {
			return invalid(CodeArgIndex, "arg %v with %d arguments in scope", n.Value, sc.args)
		}
	case instr.ADF:
		if sc.args > 0 {
			return invalid(CodeADFNested, "adf call inside a defun body")
		}
		if len(sc.defunArgs) == 0 {
			return invalid(CodeADFIndex, "adf call without defuns")
		}
		idx := numeric.Index(n.Value, len(sc.defunArgs))
		if want := sc.defunArgs[idx]; len(n.Children) != want {
			return invalid(CodeADFArgCount, "adf %d called with %d of %d arguments", idx, len(n.Children), want)
		}
	case instr.None, instr.Defun, instr.Main, instr.TopLevel:
		return invalid(CodeBadTopLevel, "%s inside a body", n.Function)
	default:
		if !n.Function.Valid() || !cfg.Set.Contains(n.Function) {
			return invalid(CodeFunctionNotInSet, "%s", n.Function)
		}
	}
	if n.Function.Terminal() {
		if len(n.Children) > 0 {
			return invalid(CodeArity, "terminal %s has %d children", n.Function, len(n.Children))
		}
		return nil
	}
	if lo, hi := n.Function.Arity(); len(n.Children) < lo || len(n.Children) > hi {
		return invalid(CodeArity, "%s with %d children", n.Function, len(n.Children))
	}
	for _, c := range n.Children {
		if err := validateNode(c, sc, cfg); err != nil {
			return err
		}
	}
	return nil
}
