package model

import (
	"github.com/polyforge/ploop/pkg/perr"
	"github.com/polyforge/ploop/pkg/presburger"
)

// Computation is a named numerical computation over an iteration set,
// together with the schedule and access relations that place it in time and
// in a target Buffer (SPEC_FULL.md §3).
//
// Invariant: the domain tuple name of Schedule equals the iteration set's
// tuple name equals the domain tuple name of Access (once Access is set).
type Computation struct {
	name     string
	iter     *presburger.Set
	expr     *Expr
	schedule *presburger.Relation
	access   *presburger.Relation // nil until SetAccess
	function *Function
}

// NewComputation parses iterSetText as a set literal and constructs a
// Computation over it, with schedule initialized to the identity
// (set_identity_schedule, SPEC_FULL.md §4.C). The Computation is registered
// with fn and with fn's owning Program.
func NewComputation(fn *Function, name string, iterSetText string, expr *Expr) (*Computation, error) {
	set, err := presburger.ParseSet(fn.program.ctx, iterSetText)
	if err != nil {
		return nil, err
	}

	set = set.WithTupleName(name)

	c := &Computation{
		name:     name,
		iter:     set,
		expr:     expr,
		schedule: presburger.Identity(set),
		function: fn,
	}

	fn.computations = append(fn.computations, c)
	fn.program.register(c)

	return c, nil
}

// Name returns the computation's name, which is also its iteration set's
// and schedule's tuple name.
func (c *Computation) Name() string {
	return c.name
}

// IterationSet returns the computation's iteration set.
func (c *Computation) IterationSet() *presburger.Set {
	return c.iter
}

// Expr returns the computation's expression tree.
func (c *Computation) Expr() *Expr {
	return c.expr
}

// Schedule returns the computation's current schedule relation.
func (c *Computation) Schedule() *presburger.Relation {
	return c.schedule
}

// SetSchedule replaces the computation's schedule relation. Callers use it
// to install the relation a pkg/schedule transformation returns; those
// transformations never mutate a Computation directly.
func (c *Computation) SetSchedule(r *presburger.Relation) {
	c.schedule = r
}

// Access returns the computation's access relation, or nil if SetAccess has
// not been called.
func (c *Computation) Access() *presburger.Relation {
	return c.access
}

// HasAccess reports whether SetAccess has been called.
func (c *Computation) HasAccess() bool {
	return c.access != nil
}

// SetAccess parses relationText as a relation literal and installs it as the
// computation's access relation. Fails with SpaceMismatch if the parsed
// relation's domain does not match this computation's iteration set.
func (c *Computation) SetAccess(relationText string) error {
	rel, err := presburger.ParseRelation(c.function.program.ctx, relationText)
	if err != nil {
		return err
	}

	if rel.DomainTupleName() != c.name || rel.DomainArity() != c.iter.NumDims() {
		return perr.New(perr.SpaceMismatch,
			"access relation domain %s does not match computation %s's iteration set",
			rel.DomainTupleName(), c.name)
	}

	c.access = rel

	return nil
}

// Function returns the owning Function.
func (c *Computation) Function() *Function {
	return c.function
}

// TargetBuffer returns the Buffer this computation's access relation
// writes into, looked up by the access relation's range tuple name.
func (c *Computation) TargetBuffer() (*Buffer, bool) {
	if c.access == nil {
		return nil, false
	}

	b, ok := c.function.buffers[c.access.RangeTupleName()]

	return b, ok
}
