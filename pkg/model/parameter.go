package model

// Parameter is a symbolic positive integer scoped to the Program that
// declares it (SPEC_FULL.md §3).
type Parameter struct {
	Name string
}

// NewParameter constructs a Parameter. Parameters referenced by a
// Computation's iteration set or access relation text are picked up directly
// by pkg/presburger/literal's parser and need no separate registration.
func NewParameter(name string) Parameter {
	return Parameter{Name: name}
}
