package instr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrEmptySet       = errors.New("instruction set is empty")
	ErrSelfModifying  = errors.New("instruction set contains self-modifying functions")
	ErrStructuralFunc = errors.New("instruction set contains a structural function")
)

// Rand is the subset of the generator an instruction set draws with.
type Rand interface {
	Intn(n int) int
}

// Set is an ordered list of enabled function tags.
type Set struct {
	funcs   []Function
	enabled [functionCount]bool
}

// NewSet builds a set from tags, dropping duplicates while keeping order.
// Structural tags (ADF, ARG, DEFUN, MAIN, TOP_LEVEL, NONE) are placed by the
// generators themselves and are rejected here.
func NewSet(funcs ...Function) (Set, error) {
	var s Set
	for _, f := range funcs {
		if !f.Valid() {
			return Set{}, fmt.Errorf("invalid function tag %d", uint8(f))
		}
		if f.Structural() {
			return Set{}, fmt.Errorf("%w: %s", ErrStructuralFunc, f)
		}
		if s.enabled[f] {
			continue
		}
		s.enabled[f] = true
		s.funcs = append(s.funcs, f)
	}
	if len(s.funcs) == 0 {
		return Set{}, ErrEmptySet
	}
	return s, nil
}

// MustSet is NewSet for static tables.
func MustSet(funcs ...Function) Set {
	s, err := NewSet(funcs...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Set) Len() int {
	return len(s.funcs)
}

func (s Set) Contains(f Function) bool {
	return f.Valid() && s.enabled[f]
}

func (s Set) Functions() []Function {
	return append([]Function(nil), s.funcs...)
}

// Random draws a uniformly chosen enabled tag.
func (s Set) Random(rng Rand) Function {
	if len(s.funcs) == 0 {
		return Value
	}
	return s.funcs[rng.Intn(len(s.funcs))]
}

// RandomWhere draws among enabled tags accepted by keep, falling back to
// Value when none qualify.
func (s Set) RandomWhere(rng Rand, keep func(Function) bool) Function {
	candidates := make([]Function, 0, len(s.funcs))
	for _, f := range s.funcs {
		if keep(f) {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return Value
	}
	return candidates[rng.Intn(len(candidates))]
}

// NonTerminal returns the enabled tags that take arguments.
func (s Set) NonTerminal() []Function {
	out := make([]Function, 0, len(s.funcs))
	for _, f := range s.funcs {
		if !f.Terminal() {
			out = append(out, f)
		}
	}
	return out
}

func (s Set) Names() []string {
	out := make([]string, len(s.funcs))
	for i, f := range s.funcs {
		out[i] = f.String()
	}
	return out
}

func (s Set) String() string {
	return strings.Join(s.Names(), ",")
}

// ValidateEquation rejects sets that cannot be rendered as a plain
// equation: any copy or Hebbian function is an error.
func ValidateEquation(s Set) error {
	if s.Len() == 0 {
		return ErrEmptySet
	}
	var bad []string
	for _, f := range s.funcs {
		if f.SelfModifying() {
			bad = append(bad, f.String())
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("%w: %s", ErrSelfModifying, strings.Join(bad, ","))
	}
	return nil
}

var arithmeticSet = []Function{
	Value, Add, Subtract, Multiply, Divide, Modulus, Pow, Exp, Sin, Cos,
	Asin, Acos, Sqrt, Abs, Floor, Min, Max, Average, Sigmoid, Negate, Weight,
}

var logic = []Function{GreaterThan, LessThan, Equals, And, Or, Xor, Not}

var selfModifying = []Function{
	CopyFunction, CopyConstant, CopyState, CopyBlock,
	CopyConnection1, CopyConnection2, CopyConnection3, CopyConnection4,
}

func concat(parts ...[]Function) []Function {
	var out []Function
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var presets = map[string]Set{
	"default":     MustSet(concat(arithmeticSet, logic)...),
	"simple":      MustSet(Value, Add, Subtract, Multiply, Divide),
	"equation":    MustSet(arithmeticSet...),
	"dynamic":     MustSet(concat(arithmeticSet, logic, []Function{GetIndirect, SetIndirect}, selfModifying)...),
	"associative": MustSet(Value, Hebbian),
	"advanced":    MustSet(concat(arithmeticSet, logic, []Function{GetIndirect, SetIndirect, Hebbian, Custom}, selfModifying)...),
}

func Default() Set     { return presets["default"] }
func Simple() Set      { return presets["simple"] }
func Equation() Set    { return presets["equation"] }
func Dynamic() Set     { return presets["dynamic"] }
func Associative() Set { return presets["associative"] }
func Advanced() Set    { return presets["advanced"] }

// Preset returns a named preset.
func Preset(name string) (Set, error) {
	s, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Set{}, fmt.Errorf("unknown instruction set %q (available: %s)", name, strings.Join(PresetNames(), ", "))
	}
	return s, nil
}

func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseSet resolves either a preset name or a comma separated tag list.
func ParseSet(list string) (Set, error) {
	if s, err := Preset(list); err == nil {
		return s, nil
	}
	var funcs []Function
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		f, err := Parse(part)
		if err != nil {
			return Set{}, err
		}
		funcs = append(funcs, f)
	}
	return NewSet(funcs...)
}
