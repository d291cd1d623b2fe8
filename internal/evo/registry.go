package evo

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrStrategyExists   = errors.New("strategy already registered")
	ErrStrategyNotFound = errors.New("strategy not found")
)

type registry[T interface{ Name() string }] struct {
	mu sync.RWMutex
	m  map[string]T
}

func newRegistry[T interface{ Name() string }](defaults ...T) *registry[T] {
	r := &registry[T]{m: make(map[string]T, len(defaults))}
	for _, d := range defaults {
		r.m[d.Name()] = d
	}
	return r
}

func (r *registry[T]) register(v T) error {
	name := v.Name()
	if name == "" {
		return errors.New("strategy name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrStrategyExists, name)
	}
	r.m[name] = v
	return nil
}

func (r *registry[T]) resolve(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.m[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrStrategyNotFound, name)
	}
	return v, nil
}

func (r *registry[T]) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.m))
	for name := range r.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	selectors      = newRegistry[Selector](EliteSelector{}, TournamentSelector{})
	postprocessors = newRegistry[FitnessPostprocessor](NoopFitnessPostprocessor{}, SizeProportionalPostprocessor{})
	policies       = newRegistry[MutationPolicy](DiversityAdaptiveMutation{}, ConstMutation{})
)

func RegisterSelector(s Selector) error { return selectors.register(s) }

func RegisterPostprocessor(p FitnessPostprocessor) error { return postprocessors.register(p) }

func RegisterMutationPolicy(p MutationPolicy) error { return policies.register(p) }

// ResolveSelector looks up a selector by name; empty means elite.
func ResolveSelector(name string) (Selector, error) {
	if name == "" {
		return EliteSelector{}, nil
	}
	return selectors.resolve(name)
}

// ResolvePostprocessor looks up a fitness postprocessor; empty means none.
func ResolvePostprocessor(name string) (FitnessPostprocessor, error) {
	if name == "" {
		return NoopFitnessPostprocessor{}, nil
	}
	return postprocessors.resolve(name)
}

// ResolveMutationPolicy looks up a mutation policy; empty means diversity
// adaptive.
func ResolveMutationPolicy(name string) (MutationPolicy, error) {
	if name == "" {
		return DiversityAdaptiveMutation{}, nil
	}
	return policies.resolve(name)
}

func ListSelectors() []string { return selectors.names() }

func ListPostprocessors() []string { return postprocessors.names() }

func ListMutationPolicies() []string { return policies.names() }
