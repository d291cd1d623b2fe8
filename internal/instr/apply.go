package instr

import (
	"math"

	"gpr/internal/numeric"
)

func compare(f Function, a, b float64) float64 {
	switch f {
	case GreaterThan:
		return numeric.Bool(a > b)
	case LessThan:
		return numeric.Bool(a < b)
	case Equals:
		return numeric.Bool(a == b)
	case And:
		return numeric.Bool(a > 0 && b > 0)
	case Or:
		return numeric.Bool(a > 0 || b > 0)
	case Xor:
		return numeric.Bool((a > 0) != (b > 0))
	}
	return 0
}

func arithmetic(f Function, vals []float64) float64 {
	v0 := vals[0]
	v1 := 0.0
	if len(vals) > 1 {
		v1 = vals[1]
	}
	var r float64
	switch f {
	case Add:
		for _, v := range vals {
			r += v
		}
	case Subtract:
		r = v0
		for _, v := range vals[1:] {
			r -= v
		}
	case Multiply:
		r = 1
		for _, v := range vals {
			r *= v
		}
	case Divide:
		return numeric.Divide(v0, v1)
	case Modulus:
		return numeric.Modulus(v0, v1)
	case Pow:
		r = math.Pow(math.Abs(v0), numeric.Clamp(v1, -50, 50))
	case Exp:
		r = math.Exp(numeric.Clamp(v0, -50, 50))
	case Sin:
		r = math.Sin(v0)
	case Cos:
		r = math.Cos(v0)
	case Asin:
		r = math.Asin(numeric.Clamp(v0, -1, 1))
	case Acos:
		r = math.Acos(numeric.Clamp(v0, -1, 1))
	case Sqrt:
		r = math.Sqrt(math.Abs(v0))
	case Abs:
		r = math.Abs(v0)
	case Floor:
		r = math.Floor(v0)
	case Min:
		r = v0
		for _, v := range vals[1:] {
			r = math.Min(r, v)
		}
	case Max:
		r = v0
		for _, v := range vals[1:] {
			r = math.Max(r, v)
		}
	case Average:
		for _, v := range vals {
			r += v
		}
		r /= float64(len(vals))
	case Sigmoid:
		return numeric.Sigmoid(v0)
	case Negate:
		r = -v0
	default:
		r = v0
	}
	return numeric.Guard(r)
}

// Arithmetic applies an arithmetic or transcendental tag to evaluated
// operands and guards the result.
func Arithmetic(f Function, vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return arithmetic(f, vals)
}

// Compare applies a comparison or logic tag to two operands, returning the
// TRUE (1) or FALSE (0) value. NOT only looks at a.
func Compare(f Function, a, b float64) float64 {
	if f == Not {
		return numeric.Bool(a <= 0)
	}
	return compare(f, a, b)
}
