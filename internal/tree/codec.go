package tree

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gpr/internal/instr"
)

// ErrMalformed is wrapped by every decode failure that is not a missing
// terminator.
var ErrMalformed = errors.New("malformed tree genome")

// Encode writes the flat node list ("N id tag argc value") in pre-order,
// then the edge list ("E parent argindex child"), then a "." line.
func Encode(w io.Writer, root *Node) error {
	if root == nil {
		return fmt.Errorf("%w: nil root", ErrMalformed)
	}
	bw := bufio.NewWriter(w)
	nodes := collect(root, 0, nil, nil)
	ids := make(map[*Node]int, len(nodes))
	for i, s := range nodes {
		ids[s.node] = i
	}
	for i, s := range nodes {
		n := s.node
		fmt.Fprintf(bw, "N %d %s %d %s\n", i, n.Function, len(n.Children), strconv.FormatFloat(n.Value, 'g', -1, 64))
	}
	for i, s := range nodes {
		for j, c := range s.node.Children {
			fmt.Fprintf(bw, "E %d %d %d\n", i, j, ids[c])
		}
	}
	bw.WriteString(".\n")
	return bw.Flush()
}

// Decode parses a genome written by Encode. Nothing is returned unless the
// whole input parses and links into a single tree.
func Decode(r io.Reader) (*Node, error) {
	sc := bufio.NewScanner(r)
	nodes := map[int]*Node{}
	var order []int
	parents := map[int]bool{}
	terminated := false
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if text == "." {
			terminated = true
			break
		}
		fields := strings.Fields(text)
		switch fields[0] {
		case "N":
			if len(fields) != 5 {
				return nil, fmt.Errorf("%w: line %d: node needs 4 fields", ErrMalformed, line)
			}
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: node id: %v", ErrMalformed, line, err)
			}
			f, err := instr.Parse(fields[2])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
			}
			argc, err := strconv.Atoi(fields[3])
			if err != nil || argc < 0 || argc > instr.MaxArguments {
				return nil, fmt.Errorf("%w: line %d: bad argc %q", ErrMalformed, line, fields[3])
			}
			value, err := strconv.ParseFloat(fields[4], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: value: %v", ErrMalformed, line, err)
			}
			if _, dup := nodes[id]; dup {
				return nil, fmt.Errorf("%w: line %d: duplicate node %d", ErrMalformed, line, id)
			}
			n := &Node{Function: f, Value: value}
			if argc > 0 {
				n.Children = make([]*Node, argc)
			}
			nodes[id] = n
			order = append(order, id)
		case "E":
			if len(fields) != 4 {
				return nil, fmt.Errorf("%w: line %d: edge needs 3 fields", ErrMalformed, line)
			}
			var v [3]int
			for i := range v {
				x, err := strconv.Atoi(fields[i+1])
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: edge: %v", ErrMalformed, line, err)
				}
				v[i] = x
			}
			parent, ok := nodes[v[0]]
			child, ok2 := nodes[v[2]]
			if !ok || !ok2 {
				return nil, fmt.Errorf("%w: line %d: edge to unknown node", ErrMalformed, line)
			}
			if v[1] < 0 || v[1] >= len(parent.Children) || parent.Children[v[1]] != nil {
				return nil, fmt.Errorf("%w: line %d: bad argument slot %d", ErrMalformed, line, v[1])
			}
			if parents[v[2]] || v[0] == v[2] {
				return nil, fmt.Errorf("%w: line %d: node %d has two parents", ErrMalformed, line, v[2])
			}
			parents[v[2]] = true
			parent.Children[v[1]] = child
		default:
			return nil, fmt.Errorf("%w: line %d: unknown record %q", ErrMalformed, line, fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !terminated {
		return nil, &ValidationError{Code: CodeNotTerminated, Detail: "missing '.' line"}
	}
	var root *Node
	for _, id := range order {
		n := nodes[id]
		for i, c := range n.Children {
			if c == nil {
				return nil, fmt.Errorf("%w: node %d argument %d unset", ErrMalformed, id, i)
			}
		}
		if !parents[id] {
			if root != nil {
				return nil, fmt.Errorf("%w: more than one root", ErrMalformed)
			}
			root = n
		}
	}
	if root == nil {
		return nil, fmt.Errorf("%w: no root", ErrMalformed)
	}
	if root.Count() != len(nodes) {
		return nil, fmt.Errorf("%w: cycle or detached nodes", ErrMalformed)
	}
	return root, nil
}

// MarshalText encodes the program tree.
func (p *Program) MarshalText() ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, p.Root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load decodes a genome into a new program sized by cfg and validates it.
func Load(data []byte, cfg Config) (*Program, error) {
	root, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	p := NewProgram(root, cfg)
	if err := Validate(p, cfg); err != nil {
		return nil, err
	}
	return p, nil
}
