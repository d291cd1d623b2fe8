package numeric

import (
	"math"
	"testing"
)

func TestGuard(t *testing.T) {
	if got := Guard(math.NaN()); got != 0 {
		t.Fatalf("expected NaN to map to 0, got=%f", got)
	}
	if got := Guard(math.Inf(1)); got != MaxConstant {
		t.Fatalf("expected +Inf clamp, got=%f", got)
	}
	if got := Guard(math.Inf(-1)); got != -MaxConstant {
		t.Fatalf("expected -Inf clamp, got=%f", got)
	}
	if got := Guard(3.5); got != 3.5 {
		t.Fatalf("expected passthrough, got=%f", got)
	}
}

func TestClampGeneric(t *testing.T) {
	if got := Clamp(12, 0, 10); got != 10 {
		t.Fatalf("expected int clamp, got=%d", got)
	}
	if got := Clamp(-0.5, 0.1, 0.9); got != 0.1 {
		t.Fatalf("expected float clamp, got=%f", got)
	}
	if got := Saturate(5, -2); got != 2 {
		t.Fatalf("expected spread clamp, got=%f", got)
	}
}

func TestProtectedDivision(t *testing.T) {
	if got := Divide(7, 0.005); got != 7 {
		t.Fatalf("expected numerator on tiny denominator, got=%f", got)
	}
	if got := Divide(8, 2); got != 4 {
		t.Fatalf("unexpected quotient: %f", got)
	}
	if got := Modulus(7, 0); got != 7 {
		t.Fatalf("expected numerator on zero modulus, got=%f", got)
	}
	if got := Modulus(7, 4); got != 3 {
		t.Fatalf("unexpected modulus: %f", got)
	}
}

func TestIndexAndTruncate(t *testing.T) {
	if got := Index(-7.9, 3); got != 1 {
		t.Fatalf("expected |-7| mod 3 = 1, got=%d", got)
	}
	if got := Index(4, 0); got != 0 {
		t.Fatalf("expected 0 for empty range, got=%d", got)
	}
	if got := Truncate(-2.7); got != -2 {
		t.Fatalf("expected truncation toward zero, got=%f", got)
	}
	if got := Sigmoid(0); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("unexpected sigmoid(0): %f", got)
	}
}
