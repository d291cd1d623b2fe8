package scape

import (
	"context"
	"math"
	"testing"

	"gpr/internal/graph"
	"gpr/internal/instr"
	"gpr/internal/prng"
	"gpr/internal/tree"
)

type agentFunc func(in []float64) float64

func (f agentFunc) RunStep(in []float64) float64 { return f(in) }

func TestXORScapeReciprocalSSE(t *testing.T) {
	perfect := agentFunc(func(in []float64) float64 {
		if in[0] != in[1] {
			return 1
		}
		return 0
	})
	fitness, trace, err := XORScape{}.Evaluate(context.Background(), perfect, ModeGT)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if sse := trace["sse"].(float64); sse != 0 {
		t.Fatalf("expected sse 0, got %f", sse)
	}
	if math.Abs(float64(fitness)-1e6) > 1e-6 {
		t.Fatalf("expected reciprocal-sse fitness 1e6, got %f", fitness)
	}

	constant := agentFunc(func([]float64) float64 { return 0.5 })
	fitness, trace, err = XORScape{}.Evaluate(context.Background(), constant, ModeTest)
	if err != nil {
		t.Fatalf("evaluate test mode: %v", err)
	}
	if trace["cases"].(int) != 8 || trace["mode"].(string) != ModeTest {
		t.Fatalf("unexpected trace: %+v", trace)
	}
	want := Fitness(1.0 / (8*0.25 + 0.000001))
	if math.Abs(float64(fitness-want)) > 1e-9 {
		t.Fatalf("expected %f, got %f", want, fitness)
	}
}

func TestXORScapeRejectsUnknownMode(t *testing.T) {
	if _, _, err := (XORScape{}).Evaluate(context.Background(), agentFunc(func([]float64) float64 { return 0 }), "live"); err == nil {
		t.Fatal("expected unsupported mode error")
	}
}

func TestRegressionMimicIdentity(t *testing.T) {
	s, err := Lookup("regression-mimic")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	for _, mode := range []string{ModeGT, ModeValidation, ModeTest} {
		fitness, trace, err := s.Evaluate(context.Background(), agentFunc(func(in []float64) float64 { return in[0] }), mode)
		if err != nil {
			t.Fatalf("evaluate %s: %v", mode, err)
		}
		if fitness != 1 || trace["mse"].(float64) != 0 {
			t.Fatalf("expected perfect fit in %s, got fitness=%f trace=%+v", mode, fitness, trace)
		}
	}
}

func TestEvaluateStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, _ := Lookup("quadratic")
	if _, _, err := s.Evaluate(ctx, agentFunc(func([]float64) float64 { return 0 }), ModeGT); err == nil {
		t.Fatal("expected context error")
	}
}

func TestLookupAndModeName(t *testing.T) {
	if _, err := Lookup("pole-balancing"); err == nil {
		t.Fatal("expected unknown scape error")
	}
	for alias, want := range map[string]string{
		"XOR":              "xor",
		"scape_xor_sim":    "xor",
		"Regression Mimic": "regression-mimic",
		"quadratic-sim1":   "quadratic",
		"unknown_thing":    "unknown-thing",
	} {
		if got := NormalizeName(alias); got != want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", alias, got, want)
		}
	}
	if s, err := Lookup("scape-cubic"); err != nil || s.Name() != "cubic" {
		t.Fatalf("alias lookup: %v", err)
	}
	names := Names()
	if len(names) != 5 || names[0] != "cubic" {
		t.Fatalf("unexpected names: %v", names)
	}
	if ModeName(1) != ModeValidation || ModeName(7) != ModeGT || ModeName(-1) != ModeGT {
		t.Fatal("unexpected mode mapping")
	}
}

func TestTreeAgentSolvesQuadratic(t *testing.T) {
	cfg := tree.Config{Sensors: 1, Actuators: 1, MaxDepth: 4, Set: instr.MustSet(instr.Add, instr.Multiply, instr.Value, instr.GetIndirect)}
	// x*x + x + 1, reading sensor 0 through the indirect oracle (type 1).
	x := func() *tree.Node { return tree.NewOp(instr.GetIndirect, tree.NewValue(1), tree.NewValue(0)) }
	root := tree.NewOp(instr.Add,
		tree.NewOp(instr.Multiply, x(), x()),
		tree.NewOp(instr.Add, x(), tree.NewValue(1)),
	)
	p := tree.NewProgram(root, cfg)

	s, _ := Lookup("quadratic")
	fitness, _, err := s.Evaluate(context.Background(), TreeAgent{Program: p}, ModeGT)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if fitness != 1 {
		t.Fatalf("expected exact fit, got %f", fitness)
	}
}

func TestGraphAgentReadsActuator(t *testing.T) {
	cfg := graph.Config{Rows: 2, Columns: 3, Sensors: 1, Actuators: 1, ConnectionsPerGene: 2, Set: instr.Simple()}
	p := graph.NewRandom(cfg, prng.New(3))
	agent := GraphAgent{Program: p}

	first := agent.RunStep([]float64{0.5})
	second := agent.RunStep([]float64{0.5})
	if first != second {
		t.Fatalf("expected repeatable output, got %f then %f", first, second)
	}
	if first != p.Actuator(0) {
		t.Fatalf("expected actuator value %f, got %f", p.Actuator(0), first)
	}
}
