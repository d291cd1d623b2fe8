package graph

import (
	"fmt"
	"math"

	"gpr/internal/instr"
	"gpr/internal/numeric"
)

// Code names the structural invariant a graph program broke.
type Code int

const (
	CodeOK Code = iota
	CodeShape
	CodeConnectionRange
	CodeOutputRange
	CodeFunctionNotInSet
	CodeADFIndex
	CodeADFArgCount
	CodeADFNested
	CodeValueRange
	CodeRedirection
)

var codeNames = map[Code]string{
	CodeOK:               "ok",
	CodeShape:            "shape mismatch",
	CodeConnectionRange:  "connection out of range",
	CodeOutputRange:      "actuator source out of range",
	CodeFunctionNotInSet: "function not in set",
	CodeADFIndex:         "adf call without modules",
	CodeADFArgCount:      "adf argument count mismatch",
	CodeADFNested:        "adf nested inside adf",
	CodeValueRange:       "value out of range",
	CodeRedirection:      "redirection out of range",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// ValidationError reports which invariant failed, in which module and at
// which gene (-1 when not gene specific).
type ValidationError struct {
	Code   Code
	Module int
	Gene   int
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("graph: %s (module %d gene %d): %s", e.Code, e.Module, e.Gene, e.Detail)
}

func invalid(code Code, module, gene int, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Module: module, Gene: gene, Detail: fmt.Sprintf(format, args...)}
}

func badValue(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > numeric.MaxConstant
}

// Validate checks every structural invariant of p against cfg; a non-nil
// error is a *ValidationError. Functions are checked against cfg.Set, with
// VALUE always allowed.
func Validate(p *Program, cfg Config) error {
	if p == nil || len(p.Modules) == 0 {
		return invalid(CodeShape, 0, -1, "no modules")
	}
	cfg = cfg.Normalize()
	if len(p.Modules) > MaxADFModules+1 {
		return invalid(CodeShape, 0, -1, "%d modules", len(p.Modules))
	}
	main := p.Main()
	for i, s := range p.SensorMap {
		if s < 0 || s >= main.Sensors {
			return invalid(CodeRedirection, 0, -1, "sensor map %d -> %d", i, s)
		}
	}
	for i, a := range p.ActuatorMap {
		if a < 0 || a >= main.Actuators {
			return invalid(CodeRedirection, 0, -1, "actuator map %d -> %d", i, a)
		}
	}
	maxArgs := min(MaxADFModuleSensors, main.ConnectionsPerGene)
	for mi, m := range p.Modules {
		if err := validateModule(p, mi, m, cfg, maxArgs); err != nil {
			return err
		}
	}
	return nil
}

func validateModule(p *Program, mi int, m *Module, cfg Config, maxArgs int) error {
	if mi > 0 {
		main := p.Main()
		if m.Rows != main.Rows || m.Columns != main.Columns || m.ConnectionsPerGene != main.ConnectionsPerGene ||
			m.Sensors != MaxADFModuleSensors || m.Actuators != 1 {
			return invalid(CodeShape, mi, -1, "adf module shape %dx%d s%d a%d", m.Rows, m.Columns, m.Sensors, m.Actuators)
		}
	}
	if m.Rows <= 0 || m.Columns <= 0 || m.Sensors <= 0 || len(m.Genes) != m.Cells() ||
		len(m.Outputs) != m.Actuators || len(m.State) != m.Size() || len(m.Used) != m.Size() {
		return invalid(CodeShape, mi, -1, "inconsistent module sizes")
	}
	for i, v := range m.State {
		if badValue(v) {
			return invalid(CodeValueRange, mi, -1, "state %d holds %v", i, v)
		}
	}
	for i, src := range m.Outputs {
		if src < 0 || int(src) >= m.Sources() {
			return invalid(CodeOutputRange, mi, -1, "actuator %d reads %d", i, src)
		}
	}
	for g := range m.Genes {
		gene := &m.Genes[g]
		if len(gene.Connections) != m.ConnectionsPerGene || len(gene.Weights) != m.ConnectionsPerGene {
			return invalid(CodeShape, mi, g, "%d connections, %d weights", len(gene.Connections), len(gene.Weights))
		}
		limit := m.Limit(m.Column(g))
		for slot, src := range gene.Connections {
			if src < 0 || src >= limit {
				return invalid(CodeConnectionRange, mi, g, "slot %d reads %d, limit %d", slot, src, limit)
			}
		}
		if badValue(gene.Constant) {
			return invalid(CodeValueRange, mi, g, "constant %v", gene.Constant)
		}
		for _, w := range gene.Weights {
			if badValue(w) {
				return invalid(CodeValueRange, mi, g, "weight %v", w)
			}
		}
		switch f := gene.Function; {
		case f == instr.ADF:
			if mi > 0 {
				return invalid(CodeADFNested, mi, g, "adf call inside module %d", mi)
			}
			if p.ADFModules() == 0 {
				return invalid(CodeADFIndex, mi, g, "adf call without modules")
			}
			target := p.callee(gene.Constant)
			want := p.Modules[target].Arity()
			if gene.Args != want || want < 1 || want > maxArgs {
				return invalid(CodeADFArgCount, mi, g, "declares %d arguments, module %d takes %d", gene.Args, target, want)
			}
		case f == instr.Value:
			if gene.Args != 0 {
				return invalid(CodeADFArgCount, mi, g, "value gene declares %d arguments", gene.Args)
			}
		default:
			if !f.Valid() || !cfg.Set.Contains(f) {
				return invalid(CodeFunctionNotInSet, mi, g, "%s", f)
			}
			if gene.Args != 0 {
				return invalid(CodeADFArgCount, mi, g, "%s declares %d arguments", f, gene.Args)
			}
		}
	}
	return nil
}
