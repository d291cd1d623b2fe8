package graph

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"gpr/internal/instr"
	"gpr/internal/prng"
)

func evolvingConfig() Config {
	return Config{
		Rows:               4,
		Columns:            6,
		Sensors:            3,
		Actuators:          2,
		ConnectionsPerGene: 3,
		ADFModules:         2,
		Chromosomes:        2,
		Set:                instr.Default(),
		ADFProb:            0.3,
	}
}

func outputs(p *Program, sensors []float64) []float64 {
	p.Clear()
	for i, v := range sensors {
		p.SetSensor(i, v)
	}
	p.Run(0, false, nil)
	out := make([]float64, p.Main().Actuators)
	for i := range out {
		out[i] = p.Actuator(i)
	}
	return out
}

func TestOperatorsKeepInvariants(t *testing.T) {
	cases := []struct {
		name string
		set  instr.Set
		// stateless sets cannot change outputs by running, so moving an
		// unreferenced module's worth of genes must not change them either.
		stateless bool
	}{
		{"default", instr.Default(), true},
		{"dynamic", instr.Dynamic(), false},
		{"advanced", instr.Advanced(), false},
	}
	sensors := []float64{1, -2, 0.5}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := evolvingConfig()
			cfg.Set = tc.set
			rng := prng.New(2024)
			compressed := 0
			for i := 0; i < 30; i++ {
				a := NewRandom(cfg, rng)
				b := NewRandom(cfg, rng)
				require.NoError(t, Validate(a, cfg))
				for j := 0; j < 10; j++ {
					Mutate(a, cfg, 0.4, rng)
					require.NoError(t, Validate(a, cfg))

					child := Crossover(a, b, cfg, rng)
					require.NoError(t, Validate(child, cfg))

					// Runs go through clones: copy genes inside an ADF body
					// may rewire which of its sensors are read.
					before := outputs(child.Clone(), sensors)
					refs := child.Referenced()
					if module, err := CompressToADF(child, -1, CompressOptions{}, rng); err == nil {
						compressed++
						require.NoError(t, Validate(child, cfg))
						if tc.stateless && !refs[module] {
							require.Equal(t, before, outputs(child.Clone(), sensors))
						}
					}
					b = child
				}
			}
			require.Positive(t, compressed)
		})
	}
}

func TestDropoutZeroIsIdempotent(t *testing.T) {
	cfg := evolvingConfig()
	p := NewRandom(cfg, prng.New(8))
	sensors := []float64{0.25, 3, -1}
	first := outputs(p, sensors)
	require.Equal(t, first, outputs(p, sensors))
}

func TestDropoutSkipsCells(t *testing.T) {
	p := adder(t, 5, 3)
	p.Run(1, false, nil)
	require.Equal(t, 0.0, p.Actuator(0))
}

func TestOperatorsAreDeterministic(t *testing.T) {
	cfg := evolvingConfig()
	run := func() *Program {
		rng := prng.New(55)
		a := NewRandom(cfg, rng)
		b := NewRandom(cfg, rng)
		for i := 0; i < 5; i++ {
			Mutate(a, cfg, 0.5, rng)
			a = Crossover(a, b, cfg, rng)
			_, _ = CompressToADF(a, -1, CompressOptions{}, rng)
		}
		return a
	}
	require.True(t, run().Equal(run()))
}

func TestCrossoverTakesWholeBands(t *testing.T) {
	cfg := evolvingConfig()
	cfg.ADFModules = 0
	a := NewRandom(cfg, prng.New(11))
	b := a.Clone()
	m := b.Main()
	start, end := band(0, cfg.Chromosomes, m.Rows)
	for c := 0; c < m.Columns; c++ {
		for r := start; r < end; r++ {
			m.Gene(r, c).Constant += 1
		}
	}

	var rng *prng.Rand
	for seed := uint32(1); rng == nil; seed++ {
		candidate := prng.New(seed)
		snapshot := *candidate
		if crossoverMask(cfg.Chromosomes, 0, m.Actuators, &snapshot).bands[0] {
			rng = candidate
		}
	}
	child := Crossover(a, b, cfg, rng).Main()
	for c := 0; c < m.Columns; c++ {
		for r := 0; r < m.Rows; r++ {
			want := b.Main().Gene(r, c)
			if r >= start && r < end {
				want = a.Main().Gene(r, c)
			}
			require.True(t, child.Gene(r, c).equal(*want), "gene (%d,%d)", r, c)
		}
	}
}

func TestSwapChromosomesKeepsConnectionsBackward(t *testing.T) {
	cfg := evolvingConfig()
	rng := prng.New(3)
	p := NewRandom(cfg, rng)
	require.False(t, SwapChromosomes(p.Main(), 1, rng))
	for i := 0; i < 50; i++ {
		require.True(t, SwapChromosomes(p.Main(), cfg.Chromosomes, rng))
		repair(p, cfg, rng)
		require.NoError(t, Validate(p, cfg))
	}
}

func TestCodecRoundTrip(t *testing.T) {
	for _, integer := range []bool{false, true} {
		cfg := evolvingConfig()
		cfg.Integer = integer
		rng := prng.New(77)
		for i := 0; i < 20; i++ {
			p := NewRandom(cfg, rng)
			Mutate(p, cfg, 0.3, rng)
			_, _ = CompressToADF(p, -1, CompressOptions{}, rng)
			p.SensorMap = []int{2, 1, 0}
			p.ActuatorMap = []int{1, 0}

			data, err := p.MarshalBinary()
			require.NoError(t, err)
			q, err := Load(data, cfg)
			require.NoError(t, err)
			require.True(t, p.Equal(q))

			sensors := []float64{1.5, -0.25, 7}
			require.Equal(t, outputs(p, sensors), outputs(q, sensors))
		}
	}
}

func TestDecodeRejectsCorruptInput(t *testing.T) {
	p := NewRandom(evolvingConfig(), prng.New(1))
	data, err := p.MarshalBinary()
	require.NoError(t, err)

	_, err = Decode(bytes.NewReader([]byte("nope")))
	require.ErrorIs(t, err, ErrBadMagic)

	_, err = Decode(bytes.NewReader(data[:len(data)/2]))
	require.ErrorIs(t, err, ErrCorrupt)

	bad := append([]byte(nil), data...)
	bad[4] = 9
	_, err = Decode(bytes.NewReader(bad))
	require.ErrorIs(t, err, ErrBadVersion)
}
