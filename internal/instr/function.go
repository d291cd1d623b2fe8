// Package instr defines the function tags both program encodings evaluate,
// their arity rules and the instruction-set presets that bound random
// generation and mutation.
package instr

import (
	"fmt"
	"strings"
)

const (
	// MaxArguments bounds node arity, top-level children and ADF arguments.
	MaxArguments = 4
	// MaxCallDepth bounds nested ADF evaluation.
	MaxCallDepth = 8
)

// Function tags a tree node or graph gene. The numeric values are part of
// the binary graph format; append new tags at the end.
type Function uint8

const (
	None Function = iota
	Value
	Add
	Subtract
	Multiply
	Divide
	Modulus
	Pow
	Exp
	Sin
	Cos
	Asin
	Acos
	Sqrt
	Abs
	Floor
	Min
	Max
	Average
	Sigmoid
	Negate
	Weight
	GreaterThan
	LessThan
	Equals
	And
	Or
	Xor
	Not
	GetIndirect
	SetIndirect
	Hebbian
	CopyFunction
	CopyConstant
	CopyState
	CopyBlock
	CopyConnection1
	CopyConnection2
	CopyConnection3
	CopyConnection4
	ADF
	Arg
	Defun
	Main
	TopLevel
	Custom

	functionCount
)

type info struct {
	name     string
	minArity int
	maxArity int
}

var table = [functionCount]info{
	None:            {"none", 0, 0},
	Value:           {"value", 0, 0},
	Add:             {"add", 2, MaxArguments},
	Subtract:        {"subtract", 2, MaxArguments},
	Multiply:        {"multiply", 2, MaxArguments},
	Divide:          {"divide", 2, 2},
	Modulus:         {"modulus", 2, 2},
	Pow:             {"pow", 2, 2},
	Exp:             {"exp", 1, 1},
	Sin:             {"sin", 1, 1},
	Cos:             {"cos", 1, 1},
	Asin:            {"asin", 1, 1},
	Acos:            {"acos", 1, 1},
	Sqrt:            {"sqrt", 1, 1},
	Abs:             {"abs", 1, 1},
	Floor:           {"floor", 1, 1},
	Min:             {"min", 2, MaxArguments},
	Max:             {"max", 2, MaxArguments},
	Average:         {"average", 2, MaxArguments},
	Sigmoid:         {"sigmoid", 1, 1},
	Negate:          {"negate", 1, 1},
	Weight:          {"weight", 1, 1},
	GreaterThan:     {"greater_than", 2, MaxArguments},
	LessThan:        {"less_than", 2, MaxArguments},
	Equals:          {"equals", 2, MaxArguments},
	And:             {"and", 2, MaxArguments},
	Or:              {"or", 2, MaxArguments},
	Xor:             {"xor", 2, MaxArguments},
	Not:             {"not", 1, 1},
	GetIndirect:     {"get", 2, 2},
	SetIndirect:     {"set", 3, 3},
	Hebbian:         {"hebbian", 1, MaxArguments},
	CopyFunction:    {"copy_function", 2, 2},
	CopyConstant:    {"copy_constant", 2, 2},
	CopyState:       {"copy_state", 2, 2},
	CopyBlock:       {"copy_block", 2, 2},
	CopyConnection1: {"copy_connection1", 2, 2},
	CopyConnection2: {"copy_connection2", 2, 2},
	CopyConnection3: {"copy_connection3", 2, 2},
	CopyConnection4: {"copy_connection4", 2, 2},
	ADF:             {"adf", 1, MaxArguments},
	Arg:             {"arg", 0, 0},
	Defun:           {"defun", 1, 1},
	Main:            {"main", 1, 1},
	TopLevel:        {"top_level", 1, MaxArguments},
	Custom:          {"custom", 3, 3},
}

var byName = func() map[string]Function {
	m := make(map[string]Function, functionCount)
	for f := Function(0); f < functionCount; f++ {
		m[table[f].name] = f
	}
	return m
}()

func (f Function) Valid() bool {
	return f < functionCount
}

func (f Function) String() string {
	if !f.Valid() {
		return fmt.Sprintf("function(%d)", uint8(f))
	}
	return table[f].name
}

// Arity returns the inclusive arity range a tree node with this tag accepts.
func (f Function) Arity() (int, int) {
	if !f.Valid() {
		return 0, 0
	}
	return table[f].minArity, table[f].maxArity
}

// Variadic reports whether the tag accepts a range of argument counts.
func (f Function) Variadic() bool {
	lo, hi := f.Arity()
	return hi > lo
}

// Terminal reports whether nodes with this tag never have children.
func (f Function) Terminal() bool {
	return f == Value || f == Arg || f == None
}

// Structural tags shape a tree but are never drawn from an instruction set.
func (f Function) Structural() bool {
	switch f {
	case None, Arg, Defun, Main, TopLevel, ADF:
		return true
	}
	return false
}

// Logical tags should not see the same input twice.
func (f Function) Logical() bool {
	switch f {
	case GreaterThan, LessThan, Equals, And, Or, Xor, Not:
		return true
	}
	return false
}

// SelfModifying tags rewrite program structure or weights while running.
func (f Function) SelfModifying() bool {
	switch f {
	case Hebbian, CopyFunction, CopyConstant, CopyState, CopyBlock,
		CopyConnection1, CopyConnection2, CopyConnection3, CopyConnection4:
		return true
	}
	return false
}

// Inputs returns how many of a gene's k connections a graph gene with this
// tag reads. Variadic tags consume every connection. ADF genes declare
// their own count and are resolved by the graph package.
func (f Function) Inputs(k int) int {
	if !f.Valid() || f.Terminal() {
		return 0
	}
	lo, hi := f.Arity()
	n := lo
	if hi > lo {
		n = k
	}
	if n > k {
		n = k
	}
	return n
}

// Parse resolves a tag name as written by String.
func Parse(name string) (Function, error) {
	f, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return None, fmt.Errorf("unknown function: %q", name)
	}
	return f, nil
}

// Functions lists every defined tag in numeric order.
func Functions() []Function {
	out := make([]Function, 0, functionCount)
	for f := Function(0); f < functionCount; f++ {
		out = append(out, f)
	}
	return out
}
