package presburger

import "fmt"

// ExprKind identifies the shape of an Expr node.
type ExprKind uint8

// The affine expression fragment the façade manipulates internally: enough
// to express loop bounds (Const, Param, Add, FloorDiv) and access-relation
// index expressions (Dim, Const, Add, Sub, Mul).
const (
	KConst ExprKind = iota
	KParam
	KDim
	KAdd
	KSub
	KMul
	KFloorDiv
	KMod
)

// Expr is an affine expression over a relation's domain dimensions and a
// Program's parameters. Values are immutable once constructed; every
// combinator returns a new node. Expr is used both for Set bounds and for
// Relation range-dimension definitions (where KDim refers to a domain
// dimension index).
type Expr struct {
	Kind   ExprKind
	Const  int64
	Param  string
	Dim    int
	L, R   *Expr
	Factor int64

	// outer is populated only on a KMod node introduced by Split: it points
	// at the sibling KFloorDiv node produced by the same split, letting AST
	// construction later find the paired outer loop to build a boundary
	// guard against. It does not participate in equality or printing.
	outer *Expr
}

// ConstE constructs a constant expression.
func ConstE(v int64) *Expr { return &Expr{Kind: KConst, Const: v} }

// ParamE constructs a reference to a named parameter.
func ParamE(name string) *Expr { return &Expr{Kind: KParam, Param: name} }

// DimE constructs a reference to domain dimension d.
func DimE(d int) *Expr { return &Expr{Kind: KDim, Dim: d} }

// AddE constructs l + r.
func AddE(l, r *Expr) *Expr { return &Expr{Kind: KAdd, L: l, R: r} }

// SubE constructs l - r.
func SubE(l, r *Expr) *Expr { return &Expr{Kind: KSub, L: l, R: r} }

// MulE constructs l * r.
func MulE(l, r *Expr) *Expr { return &Expr{Kind: KMul, L: l, R: r} }

// FloorDivE constructs floor(e / f).
func FloorDivE(e *Expr, f int64) *Expr { return &Expr{Kind: KFloorDiv, L: e, Factor: f} }

// ModE constructs e mod f.
func ModE(e *Expr, f int64) *Expr { return &Expr{Kind: KMod, L: e, Factor: f} }

// SplitPair builds the FloorDiv/Mod pair Split introduces when splitting
// range expression e by factor f, wiring the Mod node's sibling pointer to
// the FloorDiv node so a later AST build can reconstruct a boundary guard
// between the two (see IsIterRef, ast.go).
func SplitPair(e *Expr, f int64) (outer, inner *Expr) {
	outer = FloorDivE(e, f)
	inner = &Expr{Kind: KMod, L: e, Factor: f, outer: outer}

	return outer, inner
}

// DomainDimOf reports the domain dimension e directly references, if e is a
// bare KDim node.
func DomainDimOf(e *Expr) (int, bool) {
	if e != nil && e.Kind == KDim {
		return e.Dim, true
	}

	return 0, false
}

// AsConstant evaluates this expression if it contains no parameter or
// dimension reference, returning (value, true); otherwise (0, false).
func (e *Expr) AsConstant() (int64, bool) {
	if e == nil {
		return 0, false
	}

	switch e.Kind {
	case KConst:
		return e.Const, true
	case KParam, KDim:
		return 0, false
	case KAdd:
		if l, ok := e.L.AsConstant(); ok {
			if r, ok := e.R.AsConstant(); ok {
				return l + r, true
			}
		}

		return 0, false
	case KSub:
		if l, ok := e.L.AsConstant(); ok {
			if r, ok := e.R.AsConstant(); ok {
				return l - r, true
			}
		}

		return 0, false
	case KMul:
		if l, ok := e.L.AsConstant(); ok {
			if r, ok := e.R.AsConstant(); ok {
				return l * r, true
			}
		}

		return 0, false
	case KFloorDiv:
		if l, ok := e.L.AsConstant(); ok {
			return floorDiv(l, e.Factor), true
		}

		return 0, false
	case KMod:
		if l, ok := e.L.AsConstant(); ok {
			return ((l % e.Factor) + e.Factor) % e.Factor, true
		}

		return 0, false
	default:
		return 0, false
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}

	return q
}

// CeilDivE constructs ceil(e / f) = floor((e + f - 1) / f), the standard
// formula for the outer-loop trip count introduced by Split.
func CeilDivE(e *Expr, f int64) *Expr {
	return FloorDivE(AddE(e, ConstE(f-1)), f)
}

// RenameDim returns a copy of this expression with every KDim reference to
// oldDim replaced by newDim. Split does not call it: inserting range
// dimensions leaves the domain-dimension references in range expressions
// unchanged.
func (e *Expr) RenameDim(oldDim, newDim int) *Expr {
	if e == nil {
		return nil
	}

	clone := *e

	switch e.Kind {
	case KDim:
		if e.Dim == oldDim {
			clone.Dim = newDim
		}
	case KAdd, KSub, KMul:
		clone.L = e.L.RenameDim(oldDim, newDim)
		clone.R = e.R.RenameDim(oldDim, newDim)
	case KFloorDiv, KMod:
		clone.L = e.L.RenameDim(oldDim, newDim)
	}

	return &clone
}

// SubstituteDims returns a copy of e with every KDim(d) reference replaced
// by subst[d]. Used to compose an access relation's range expressions
// (defined over a Computation's domain dimensions) with the reconstructed
// domain-dimension values an AST leaf carries in its Args.
func SubstituteDims(e *Expr, subst []*Expr) *Expr {
	if e == nil {
		return nil
	}

	if e.Kind == KDim {
		if e.Dim >= 0 && e.Dim < len(subst) {
			return subst[e.Dim]
		}

		return e
	}

	clone := *e

	switch e.Kind {
	case KAdd, KSub, KMul:
		clone.L = SubstituteDims(e.L, subst)
		clone.R = SubstituteDims(e.R, subst)
	case KFloorDiv, KMod:
		clone.L = SubstituteDims(e.L, subst)
	}

	return &clone
}

// ExprEqual reports whether a and b are structurally identical affine
// expressions. nil equals nil only.
func ExprEqual(a, b *Expr) bool {
	if a == nil || b == nil {
		return a == b
	}

	if a.Kind != b.Kind {
		return false
	}

	switch a.Kind {
	case KConst:
		return a.Const == b.Const
	case KParam:
		return a.Param == b.Param
	case KDim:
		return a.Dim == b.Dim
	case KAdd, KSub, KMul:
		return ExprEqual(a.L, b.L) && ExprEqual(a.R, b.R)
	case KFloorDiv, KMod:
		return a.Factor == b.Factor && ExprEqual(a.L, b.L)
	default:
		return false
	}
}

func (e *Expr) String() string {
	if e == nil {
		return "<nil>"
	}

	switch e.Kind {
	case KConst:
		return fmt.Sprintf("%d", e.Const)
	case KParam:
		return e.Param
	case KDim:
		return fmt.Sprintf("d%d", e.Dim)
	case KAdd:
		return fmt.Sprintf("(%s+%s)", e.L, e.R)
	case KSub:
		return fmt.Sprintf("(%s-%s)", e.L, e.R)
	case KMul:
		return fmt.Sprintf("(%s*%s)", e.L, e.R)
	case KFloorDiv:
		return fmt.Sprintf("floor(%s/%d)", e.L, e.Factor)
	case KMod:
		return fmt.Sprintf("(%s mod %d)", e.L, e.Factor)
	default:
		return "?"
	}
}
