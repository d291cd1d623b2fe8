package instr

// CustomFunc is the host-supplied operation behind the CUSTOM tag.
type CustomFunc interface {
	Apply(a, b, c float64) float64
}

// CustomFuncOf adapts a plain function.
type CustomFuncOf func(a, b, c float64) float64

func (f CustomFuncOf) Apply(a, b, c float64) float64 {
	return f(a, b, c)
}

type noCustom struct{}

func (noCustom) Apply(_, _, _ float64) float64 { return 0 }

// NoCustom evaluates every CUSTOM node to zero.
var NoCustom CustomFunc = noCustom{}

// OrNone returns f, or NoCustom when f is nil.
func OrNone(f CustomFunc) CustomFunc {
	if f == nil {
		return NoCustom
	}
	return f
}
