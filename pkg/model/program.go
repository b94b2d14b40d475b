package model

import (
	"github.com/bits-and-blooms/bitset"
	log "github.com/sirupsen/logrus"

	"github.com/polyforge/ploop/pkg/perr"
	"github.com/polyforge/ploop/pkg/presburger"
)

// TagKey identifies a (computation, loop level) pair for the parallel/vector
// tag maps.
type TagKey struct {
	Computation string
	Level       int
}

// Program is the top-level aggregate: one Presburger context, its
// Functions, the parallel/vector tag maps, and the AST synth.Synthesize
// caches through SetAST (SPEC_FULL.md §3).
type Program struct {
	name      string
	ctx       *presburger.Context
	functions []*Function

	parallel map[TagKey]bool
	vector   map[TagKey]bool

	ast *presburger.AstNode

	log *log.Entry

	index     map[string]uint
	nextIndex uint
	registry  *bitset.BitSet
	unrolled  *bitset.BitSet
}

// NewProgram constructs an empty Program with a fresh Presburger context.
func NewProgram(name string) *Program {
	return &Program{
		name:     name,
		ctx:      presburger.NewContext(name),
		parallel: make(map[TagKey]bool),
		vector:   make(map[TagKey]bool),
		log:      log.WithField("program", name),
		index:    make(map[string]uint),
		registry: bitset.New(0),
		unrolled: bitset.New(0),
	}
}

// Name returns the program's name.
func (p *Program) Name() string {
	return p.name
}

// Functions returns the program's functions, in declaration order.
func (p *Program) Functions() []*Function {
	return append([]*Function(nil), p.functions...)
}

// Log returns the program's structured logger.
func (p *Program) Log() *log.Entry {
	return p.log
}

// Context returns the Presburger context every value under this Program is
// built against.
func (p *Program) Context() *presburger.Context {
	return p.ctx
}

// register assigns c a dense per-Program index and marks it present in the
// membership registry. Called by NewComputation; never by user code.
func (p *Program) register(c *Computation) {
	idx := p.nextIndex
	p.nextIndex++

	p.index[c.name] = idx
	p.registry.Set(idx)
}

// ComputationIndex returns the dense registry index assigned to a
// computation name, if one has been registered.
func (p *Program) ComputationIndex(name string) (uint, bool) {
	idx, ok := p.index[name]
	return idx, ok
}

// IsRegistered reports whether a computation index is a member of this
// Program's registry, in O(1) without walking the computation slice.
func (p *Program) IsRegistered(idx uint) bool {
	return p.registry.Test(idx)
}

// MarkUnrolled sets the write-once "unrolled" flag for a computation index
// (Design Note (c) in SPEC_FULL.md §9); there is no corresponding Clear.
func (p *Program) MarkUnrolled(idx uint) {
	p.unrolled.Set(idx)
}

// IsUnrolled reports whether a computation index has ever been marked
// unrolled.
func (p *Program) IsUnrolled(idx uint) bool {
	return p.unrolled.Test(idx)
}

// TagParallelDimension records that loop level level of computation
// compName should be tagged parallel. Tagging the same pair parallel twice
// is idempotent; tagging it vector first fails with ConflictingTag, since
// two Computations sharing a For node (after fusion) cannot honor two
// different execution-mode requests for the same loop.
func (p *Program) TagParallelDimension(compName string, level int) error {
	if level < 0 {
		return perr.New(perr.InvalidLevel, "negative loop level %d for %q", level, compName)
	}

	key := TagKey{Computation: compName, Level: level}
	if p.vector[key] {
		p.log.WithField("computation", compName).WithField("level", level).
			Warn("level already tagged vector")
		return perr.New(perr.ConflictingTag, "level %d of %q is already tagged vector", level, compName)
	}

	p.parallel[key] = true

	return nil
}

// TagVectorDimension records that loop level level of computation compName
// should be tagged vector. Fails with ConflictingTag if that pair is already
// tagged parallel.
func (p *Program) TagVectorDimension(compName string, level int) error {
	if level < 0 {
		return perr.New(perr.InvalidLevel, "negative loop level %d for %q", level, compName)
	}

	key := TagKey{Computation: compName, Level: level}
	if p.parallel[key] {
		p.log.WithField("computation", compName).WithField("level", level).
			Warn("level already tagged parallel")
		return perr.New(perr.ConflictingTag, "level %d of %q is already tagged parallel", level, compName)
	}

	p.vector[key] = true

	return nil
}

// ParallelTagged reports whether (compName, level) is tagged parallel.
func (p *Program) ParallelTagged(compName string, level int) bool {
	return p.parallel[TagKey{Computation: compName, Level: level}]
}

// VectorTagged reports whether (compName, level) is tagged vector.
func (p *Program) VectorTagged(compName string, level int) bool {
	return p.vector[TagKey{Computation: compName, Level: level}]
}

// AllComputations returns every computation across every function, in
// function-declaration then computation-declaration order.
func (p *Program) AllComputations() []*Computation {
	var all []*Computation

	for _, fn := range p.functions {
		all = append(all, fn.computations...)
	}

	return all
}

// AST returns the AST most recently produced by synth.Synthesize, or nil if
// generation has not run yet.
func (p *Program) AST() *presburger.AstNode {
	return p.ast
}

// SetAST installs the AST synth.Synthesize produced for this Program. Called
// by the top-level generation driver, not by user code directly.
func (p *Program) SetAST(node *presburger.AstNode) {
	p.ast = node
}
