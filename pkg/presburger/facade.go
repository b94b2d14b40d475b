// Package presburger is a typed façade around a minimal integer-set engine
// that realizes the contract SPEC_FULL.md §6 describes for the external
// Presburger/ISL library the core treats as a black box. It is scoped to the
// literal forms pkg/model and pkg/schedule actually construct — rectangular
// sets with strided affine bounds and parameters — not a general Presburger
// solver (see DESIGN.md for why no ecosystem library fills this role).
//
// The façade never mutates its inputs; every operation returns a new value.
package presburger

import (
	"github.com/polyforge/ploop/pkg/perr"
	"github.com/polyforge/ploop/pkg/presburger/literal"
)

// ParseSet parses a set literal of the form "{Name[d1,...] : constraints}".
func ParseSet(ctx *Context, text string) (*Set, error) {
	form, err := literal.Parse(text)
	if err != nil {
		ctx.Log().WithError(err).Warn("failed to parse set literal")
		return nil, perr.New(perr.MalformedLiteral, "%s", err.Error())
	}

	if form.IsRelation {
		return nil, perr.New(perr.BadPolyhedralForm, "expected a set literal, got a relation: %q", text)
	}

	return buildSet(form)
}

// ParseRelation parses a relation literal of the form
// "{Name[d1,...] -> Name'[e1,...] : constraints}".
func ParseRelation(ctx *Context, text string) (*Relation, error) {
	form, err := literal.Parse(text)
	if err != nil {
		ctx.Log().WithError(err).Warn("failed to parse relation literal")
		return nil, perr.New(perr.MalformedLiteral, "%s", err.Error())
	}

	if !form.IsRelation {
		return nil, perr.New(perr.BadPolyhedralForm, "expected a relation literal, got a set: %q", text)
	}

	dimIndex := indexOf(form.DomainDims)

	rangeExprs := make([]*Expr, len(form.RangeDims))
	for i, e := range form.RangeDims {
		rangeExprs[i] = convertExpr(e, dimIndex)
	}

	domain := Space{TupleName: form.DomainName, Dims: form.DomainDims, Params: form.Params}
	rng := Space{TupleName: form.RangeName, Dims: anonDims(len(form.RangeDims))}

	return NewRelation(domain, rng, rangeExprs), nil
}

func buildSet(form *literal.Form) (*Set, error) {
	dimIndex := indexOf(form.DomainDims)
	bounds := make([]Bound, len(form.DomainDims))

	for i := range bounds {
		bounds[i] = Bound{Lo: ConstE(0), Hi: nil}
	}

	for _, chain := range form.Constraints {
		if err := applyChain(chain, dimIndex, bounds); err != nil {
			return nil, err
		}
	}

	for i, name := range form.DomainDims {
		if bounds[i].Hi == nil {
			return nil, perr.New(perr.BadPolyhedralForm, "dimension %q has no upper bound", name)
		}
	}

	space := Space{TupleName: form.DomainName, Dims: form.DomainDims, Params: inferParams(form, bounds)}

	return NewSet(space, bounds), nil
}

func applyChain(chain literal.Chain, dimIndex map[string]int, bounds []Bound) error {
	for i, op := range chain.Ops {
		lhs := chain.Exprs[i]
		rhs := chain.Exprs[i+1]

		if d, ok := identDim(lhs, dimIndex); ok {
			setUpperSide(bounds, d, op, convertExpr(rhs, dimIndex))
			continue
		}

		if d, ok := identDim(rhs, dimIndex); ok {
			setLowerSide(bounds, d, op, convertExpr(lhs, dimIndex))
			continue
		}

		return perr.New(perr.BadPolyhedralForm, "constraint does not isolate a single dimension")
	}

	return nil
}

func identDim(e *literal.Expr, dimIndex map[string]int) (int, bool) {
	if e.Kind != literal.EIdent {
		return 0, false
	}

	d, ok := dimIndex[e.Name]

	return d, ok
}

// setUpperSide handles "dim OP bound", e.g. "i < N", "i <= 1000".
func setUpperSide(bounds []Bound, d int, op literal.CmpOp, bound *Expr) {
	switch op {
	case literal.OpLt:
		bounds[d].Hi = bound
	case literal.OpLe:
		bounds[d].Hi = AddE(bound, ConstE(1))
	case literal.OpGt:
		bounds[d].Lo = AddE(bound, ConstE(1))
	case literal.OpGe:
		bounds[d].Lo = bound
	case literal.OpEq:
		bounds[d].Lo = bound
		bounds[d].Hi = AddE(bound, ConstE(1))
	}
}

// setLowerSide handles "bound OP dim", e.g. "0 <= i", "N > i".
func setLowerSide(bounds []Bound, d int, op literal.CmpOp, bound *Expr) {
	switch op {
	case literal.OpLt:
		bounds[d].Lo = AddE(bound, ConstE(1))
	case literal.OpLe:
		bounds[d].Lo = bound
	case literal.OpGt:
		bounds[d].Hi = bound
	case literal.OpGe:
		bounds[d].Hi = AddE(bound, ConstE(1))
	case literal.OpEq:
		bounds[d].Lo = bound
		bounds[d].Hi = AddE(bound, ConstE(1))
	}
}

func convertExpr(e *literal.Expr, dimIndex map[string]int) *Expr {
	switch e.Kind {
	case literal.EConst:
		return ConstE(e.Value)
	case literal.EIdent:
		if d, ok := dimIndex[e.Name]; ok {
			return DimE(d)
		}

		return ParamE(e.Name)
	case literal.EAdd:
		return AddE(convertExpr(e.L, dimIndex), convertExpr(e.R, dimIndex))
	case literal.ESub:
		return SubE(convertExpr(e.L, dimIndex), convertExpr(e.R, dimIndex))
	case literal.EMul:
		return MulE(convertExpr(e.L, dimIndex), convertExpr(e.R, dimIndex))
	default:
		return ConstE(0)
	}
}

func indexOf(names []string) map[string]int {
	idx := make(map[string]int, len(names))
	for i, n := range names {
		idx[n] = i
	}

	return idx
}

func anonDims(n int) []string {
	dims := make([]string, n)
	for i := range dims {
		dims[i] = ""
	}

	return dims
}

// inferParams collects identifiers referenced by bounds that are not
// explicitly declared, in addition to any declared via a "[params] ->"
// prefix.
func inferParams(form *literal.Form, bounds []Bound) []string {
	seen := make(map[string]bool)
	for _, p := range form.Params {
		seen[p] = true
	}

	var params []string

	var walk func(e *Expr)
	walk = func(e *Expr) {
		if e == nil {
			return
		}

		switch e.Kind {
		case KParam:
			if !seen[e.Param] {
				seen[e.Param] = true
				params = append(params, e.Param)
			}
		case KAdd, KSub, KMul:
			walk(e.L)
			walk(e.R)
		case KFloorDiv, KMod:
			walk(e.L)
		}
	}

	for _, b := range bounds {
		walk(b.Lo)
		walk(b.Hi)
	}

	return append(form.Params, params...)
}

// Identity constructs the identity relation on a set's space: each range
// dimension k maps to domain dimension k, under the same tuple name
// (SPEC_FULL.md §4.C, set_identity_schedule).
func Identity(set *Set) *Relation {
	n := set.NumDims()
	exprs := make([]*Expr, n)

	for k := 0; k < n; k++ {
		exprs[k] = DimE(k)
	}

	domain := set.Space()
	rng := Space{TupleName: set.TupleName(), Dims: append([]string(nil), set.Dims()...)}

	return NewRelation(domain, rng, exprs)
}

// Apply computes the image of a set under a relation: the set of points in
// the relation's range space reachable from some point of the given set.
// Fails with SpaceMismatch if the relation's domain tuple name or arity does
// not match the set.
func Apply(set *Set, rel *Relation) (*Set, error) {
	if set.TupleName() != rel.DomainTupleName() || set.NumDims() != rel.DomainArity() {
		return nil, perr.New(perr.SpaceMismatch,
			"cannot apply relation %s->%s to set %s", rel.DomainTupleName(), rel.RangeTupleName(), set.TupleName())
	}

	bounds := make([]Bound, rel.RangeArity())

	for k := 0; k < rel.RangeArity(); k++ {
		bounds[k] = boundOf(rel.RangeExpr(k), set)
	}

	space := Space{TupleName: rel.RangeTupleName(), Dims: append([]string(nil), rel.RangeSpace().Dims...), Params: set.Space().Params}

	return NewSet(space, bounds), nil
}

// boundOf derives the bound of a range expression from the bounds of the
// domain set it is defined over.
func boundOf(e *Expr, domain *Set) Bound {
	switch e.Kind {
	case KDim:
		return domain.Bound(e.Dim)
	case KFloorDiv:
		inner := boundOf(e.L, domain)
		return Bound{Lo: FloorDivE(inner.Lo, e.Factor), Hi: CeilDivE(inner.Hi, e.Factor)}
	case KMod:
		return Bound{Lo: ConstE(0), Hi: ConstE(e.Factor)}
	default:
		if v, ok := e.AsConstant(); ok {
			return Bound{Lo: ConstE(v), Hi: ConstE(v + 1)}
		}

		return Bound{Lo: ConstE(0), Hi: e}
	}
}

// IntersectDomain checks that set lies in rel's domain space and returns a
// copy of rel. Relations in this façade carry no domain constraints, so the
// result is not restricted to set's bounds. Fails with SpaceMismatch if the
// tuple names or arities disagree.
func IntersectDomain(rel *Relation, set *Set) (*Relation, error) {
	if set.TupleName() != rel.DomainTupleName() || set.NumDims() != rel.DomainArity() {
		return nil, perr.New(perr.SpaceMismatch, "domain set %s does not match relation domain %s",
			set.TupleName(), rel.DomainTupleName())
	}

	return rel.Clone(), nil
}

// Union satisfies the façade's relation-union contract for two relations of
// equal range arity. Because every Computation's schedule keeps its own
// tuple name (the domain-tuple-name invariant in SPEC_FULL.md §3), combining
// several computations' time-processor relations is, in practice, a
// disjoint union over differently-named spaces rather than a same-space
// union — that case is handled by UnionSets below, which is what
// pkg/lowering actually uses.
func Union(a, b *Relation) (*Relation, error) {
	if a.RangeArity() != b.RangeArity() {
		return nil, perr.New(perr.SpaceMismatch, "cannot union relations of differing range arity (%d vs %d)",
			a.RangeArity(), b.RangeArity())
	}

	return a.Clone(), nil
}

// UnionSets computes the set union of two sets. Distinct computations' time
// processor sets generally carry distinct tuple names, so this façade
// represents the union as the list of constituent sets rather than
// attempting to encode a heterogeneous disjunction inside one Set value; see
// UnionSet.
type UnionSet struct {
	Sets []*Set
}

// UnionSets collects sets into a UnionSet, in argument order.
func UnionSets(sets ...*Set) *UnionSet {
	return &UnionSet{Sets: sets}
}
