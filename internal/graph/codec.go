package graph

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"gpr/internal/instr"
)

const (
	codecVersion = 1
	maxCells     = 1 << 20
)

var (
	magic = [4]byte{'G', 'P', 'R', 'G'}

	ErrBadMagic   = errors.New("not a graph genome")
	ErrBadVersion = errors.New("unsupported graph genome version")
	ErrCorrupt    = errors.New("corrupt graph genome")
)

type encoder struct {
	w   *bufio.Writer
	err error
}

func (e *encoder) put(v any) {
	if e.err == nil {
		e.err = binary.Write(e.w, binary.LittleEndian, v)
	}
}

// Encode writes the genome: header, redirection tables, then every module's
// shape, genes and actuator sources. Scratch state is not written.
func Encode(w io.Writer, p *Program) error {
	e := &encoder{w: bufio.NewWriter(w)}
	e.put(magic)
	e.put(uint8(codecVersion))
	var flags uint8
	if p.Integer {
		flags |= 1
	}
	e.put(flags)
	e.put(p.Seed)
	e.put(uint8(len(p.Modules)))
	e.put(uint16(len(p.SensorMap)))
	for _, s := range p.SensorMap {
		e.put(int32(s))
	}
	e.put(uint16(len(p.ActuatorMap)))
	for _, a := range p.ActuatorMap {
		e.put(int32(a))
	}
	for _, m := range p.Modules {
		e.put([5]uint16{uint16(m.Rows), uint16(m.Columns), uint16(m.Sensors), uint16(m.Actuators), uint16(m.ConnectionsPerGene)})
		for _, g := range m.Genes {
			e.put(uint8(g.Function))
			e.put(uint8(g.Args))
			e.put(g.Constant)
			for i := range g.Connections {
				e.put(uint32(g.Connections[i]))
				e.put(g.Weights[i])
			}
		}
		for _, o := range m.Outputs {
			e.put(uint32(o))
		}
	}
	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

type decoder struct {
	r   io.Reader
	err error
}

func (d *decoder) get(v any) {
	if d.err == nil {
		d.err = binary.Read(d.r, binary.LittleEndian, v)
	}
}

// Decode reads a genome written by Encode. The program is only returned
// when the whole input decodes; its Used flags are recomputed.
func Decode(r io.Reader) (*Program, error) {
	d := &decoder{r: bufio.NewReader(r)}
	var head [4]byte
	d.get(&head)
	if d.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, d.err)
	}
	if head != magic {
		return nil, ErrBadMagic
	}
	var version, flags, modules uint8
	var seed uint32
	d.get(&version)
	if d.err == nil && version != codecVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, version)
	}
	d.get(&flags)
	d.get(&seed)
	d.get(&modules)
	if d.err == nil && (modules == 0 || int(modules) > MaxADFModules+1) {
		return nil, fmt.Errorf("%w: %d modules", ErrCorrupt, modules)
	}
	p := &Program{Seed: seed, Integer: flags&1 != 0}
	p.SensorMap = d.ints()
	p.ActuatorMap = d.ints()
	for i := 0; i < int(modules) && d.err == nil; i++ {
		var shape [5]uint16
		d.get(&shape)
		if d.err != nil {
			break
		}
		rows, cols, sensors, actuators, k := int(shape[0]), int(shape[1]), int(shape[2]), int(shape[3]), int(shape[4])
		if rows == 0 || cols == 0 || rows*cols > maxCells || k > instr.MaxArguments {
			return nil, fmt.Errorf("%w: module %d shape %dx%d k%d", ErrCorrupt, i, rows, cols, k)
		}
		m := NewModule(rows, cols, sensors, actuators, k)
		for g := range m.Genes {
			gene := &m.Genes[g]
			var fn, args uint8
			d.get(&fn)
			d.get(&args)
			d.get(&gene.Constant)
			gene.Function = instr.Function(fn)
			gene.Args = int(args)
			for s := 0; s < k; s++ {
				var conn uint32
				d.get(&conn)
				d.get(&gene.Weights[s])
				gene.Connections[s] = CellIndex(conn)
			}
		}
		for o := range m.Outputs {
			var src uint32
			d.get(&src)
			m.Outputs[o] = CellIndex(src)
		}
		p.Modules = append(p.Modules, m)
	}
	if d.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, d.err)
	}
	p.ComputeUsed()
	return p, nil
}

func (d *decoder) ints() []int {
	var n uint16
	d.get(&n)
	if d.err != nil || n == 0 {
		return nil
	}
	out := make([]int, n)
	for i := range out {
		var v int32
		d.get(&v)
		out[i] = int(v)
	}
	return out
}

// MarshalBinary encodes p.
func (p *Program) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load decodes and validates a genome against cfg.
func Load(data []byte, cfg Config) (*Program, error) {
	p, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := Validate(p, cfg); err != nil {
		return nil, err
	}
	return p, nil
}
