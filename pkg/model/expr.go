package model

import "fmt"

// ExprKind identifies the shape of an Expr node. Coverage matches the widened
// expression surface SPEC_FULL.md §4.E calls for: integer/float/boolean
// literals, arithmetic, comparison, min/max, logical connectives, negation,
// cast, and ternary select.
type ExprKind uint8

const (
	EConst ExprKind = iota
	EVar
	EAdd
	ESub
	EMul
	EDiv
	EMod
	ECmpLt
	ECmpLe
	ECmpGt
	ECmpGe
	ECmpEq
	EMin
	EMax
	EAnd
	EOr
	ENot
	ENeg
	ECast
	ESelect
)

// ValueKind identifies the scalar type a constant or cast targets.
type ValueKind uint8

const (
	KindInt ValueKind = iota
	KindFloat
	KindBool
)

// Expr is a Computation's expression tree, over free variables named after
// its iteration set's dimension names and the owning Program's parameters.
// It is resolved into an ir.Expr at synthesis time, once the iterator stack
// for each free variable is known.
type Expr struct {
	Kind ExprKind

	// EConst
	IntValue   int64
	FloatValue float64
	BoolValue  bool
	ValueKind  ValueKind

	// EVar
	Name string

	// ECast
	CastTo ValueKind

	L, R  *Expr
	Third *Expr // ESelect's else-branch
}

// IntE constructs an integer literal.
func IntE(v int64) *Expr { return &Expr{Kind: EConst, ValueKind: KindInt, IntValue: v} }

// FloatE constructs a float literal.
func FloatE(v float64) *Expr { return &Expr{Kind: EConst, ValueKind: KindFloat, FloatValue: v} }

// BoolE constructs a boolean literal.
func BoolE(v bool) *Expr { return &Expr{Kind: EConst, ValueKind: KindBool, BoolValue: v} }

// VarE constructs a reference to a free variable (an iteration dimension
// name or a Program parameter name).
func VarE(name string) *Expr { return &Expr{Kind: EVar, Name: name} }

// AddE, SubE, MulE, DivE, ModE construct binary arithmetic.
func AddE(l, r *Expr) *Expr { return &Expr{Kind: EAdd, L: l, R: r} }
func SubE(l, r *Expr) *Expr { return &Expr{Kind: ESub, L: l, R: r} }
func MulE(l, r *Expr) *Expr { return &Expr{Kind: EMul, L: l, R: r} }
func DivE(l, r *Expr) *Expr { return &Expr{Kind: EDiv, L: l, R: r} }
func ModE(l, r *Expr) *Expr { return &Expr{Kind: EMod, L: l, R: r} }

// CmpLt, CmpLe, CmpGt, CmpGe, CmpEq construct comparisons.
func CmpLt(l, r *Expr) *Expr { return &Expr{Kind: ECmpLt, L: l, R: r} }
func CmpLe(l, r *Expr) *Expr { return &Expr{Kind: ECmpLe, L: l, R: r} }
func CmpGt(l, r *Expr) *Expr { return &Expr{Kind: ECmpGt, L: l, R: r} }
func CmpGe(l, r *Expr) *Expr { return &Expr{Kind: ECmpGe, L: l, R: r} }
func CmpEq(l, r *Expr) *Expr { return &Expr{Kind: ECmpEq, L: l, R: r} }

// MinE, MaxE construct the binary min/max builtins.
func MinE(l, r *Expr) *Expr { return &Expr{Kind: EMin, L: l, R: r} }
func MaxE(l, r *Expr) *Expr { return &Expr{Kind: EMax, L: l, R: r} }

// AndE, OrE, NotE construct logical connectives.
func AndE(l, r *Expr) *Expr { return &Expr{Kind: EAnd, L: l, R: r} }
func OrE(l, r *Expr) *Expr  { return &Expr{Kind: EOr, L: l, R: r} }
func NotE(e *Expr) *Expr    { return &Expr{Kind: ENot, L: e} }

// NegE constructs unary negation.
func NegE(e *Expr) *Expr { return &Expr{Kind: ENeg, L: e} }

// CastE constructs a cast of e to the given scalar kind.
func CastE(e *Expr, to ValueKind) *Expr { return &Expr{Kind: ECast, L: e, CastTo: to} }

// SelectE constructs a ternary select: cond ? then : els.
func SelectE(cond, then, els *Expr) *Expr { return &Expr{Kind: ESelect, L: cond, R: then, Third: els} }

// FreeVars returns the distinct variable names this expression references,
// in first-occurrence order.
func (e *Expr) FreeVars() []string {
	seen := map[string]bool{}

	var names []string

	var walk func(*Expr)
	walk = func(n *Expr) {
		if n == nil {
			return
		}

		if n.Kind == EVar && !seen[n.Name] {
			seen[n.Name] = true
			names = append(names, n.Name)
		}

		walk(n.L)
		walk(n.R)
		walk(n.Third)
	}

	walk(e)

	return names
}

// Substitute returns a copy of e with every EVar reference resolved through
// subst, which must provide a replacement expression for every free
// variable Substitute encounters; a variable subst has no entry for is left
// unresolved.
func (e *Expr) Substitute(subst map[string]*Expr) *Expr {
	if e == nil {
		return nil
	}

	if e.Kind == EVar {
		if r, ok := subst[e.Name]; ok {
			return r
		}

		return e
	}

	clone := *e
	clone.L = e.L.Substitute(subst)
	clone.R = e.R.Substitute(subst)
	clone.Third = e.Third.Substitute(subst)

	return &clone
}

func (e *Expr) String() string {
	if e == nil {
		return "<nil>"
	}

	switch e.Kind {
	case EConst:
		switch e.ValueKind {
		case KindFloat:
			return fmt.Sprintf("%g", e.FloatValue)
		case KindBool:
			return fmt.Sprintf("%t", e.BoolValue)
		default:
			return fmt.Sprintf("%d", e.IntValue)
		}
	case EVar:
		return e.Name
	case EAdd:
		return fmt.Sprintf("(%s+%s)", e.L, e.R)
	case ESub:
		return fmt.Sprintf("(%s-%s)", e.L, e.R)
	case EMul:
		return fmt.Sprintf("(%s*%s)", e.L, e.R)
	case EDiv:
		return fmt.Sprintf("(%s/%s)", e.L, e.R)
	case EMod:
		return fmt.Sprintf("(%s%%%s)", e.L, e.R)
	case ECmpLt:
		return fmt.Sprintf("(%s<%s)", e.L, e.R)
	case ECmpLe:
		return fmt.Sprintf("(%s<=%s)", e.L, e.R)
	case ECmpGt:
		return fmt.Sprintf("(%s>%s)", e.L, e.R)
	case ECmpGe:
		return fmt.Sprintf("(%s>=%s)", e.L, e.R)
	case ECmpEq:
		return fmt.Sprintf("(%s==%s)", e.L, e.R)
	case EMin:
		return fmt.Sprintf("min(%s,%s)", e.L, e.R)
	case EMax:
		return fmt.Sprintf("max(%s,%s)", e.L, e.R)
	case EAnd:
		return fmt.Sprintf("(%s&&%s)", e.L, e.R)
	case EOr:
		return fmt.Sprintf("(%s||%s)", e.L, e.R)
	case ENot:
		return fmt.Sprintf("!%s", e.L)
	case ENeg:
		return fmt.Sprintf("-%s", e.L)
	case ECast:
		return fmt.Sprintf("cast(%s)", e.L)
	case ESelect:
		return fmt.Sprintf("(%s?%s:%s)", e.L, e.R, e.Third)
	default:
		return "?"
	}
}
