package presburger

import (
	"fmt"

	"github.com/polyforge/ploop/pkg/perr"
)

// AstNodeKind identifies which variant of the façade's AST an AstNode holds.
// These mirror the external AST node kinds SPEC_FULL.md §4.E lists:
// For/If/Block/UserStmt.
type AstNodeKind uint8

// AST node variants produced by BuildAstFromSchedule.
const (
	AstFor AstNodeKind = iota
	AstIf
	AstBlock
	AstUserStmt
)

// CmpOp identifies the comparison used by an AstIf guard.
type CmpOp uint8

// Comparison operators an AstIf guard may use. The engine currently only
// ever emits Lt guards (boundary clipping after Split), but the synthesizer
// handles the full set for completeness and future callers constructing
// guards by hand.
const (
	Lt CmpOp = iota
	Le
	Gt
	Ge
	Eq
)

// ForNode is a single loop level: iterate Iter from Lo (inclusive) below Hi
// (exclusive) stepping by Inc.
type ForNode struct {
	Iter string
	Lo   *Expr
	Hi   *Expr
	Inc  int64
	Body *AstNode
}

// IfNode is a boundary guard, introduced when a Split's tile factor does not
// evenly divide the original extent.
type IfNode struct {
	Op    CmpOp
	Left  *Expr
	Right *Expr
	Then  *AstNode
}

// UserStmtNode is a leaf identifying the Computation that executes at this
// point in the schedule-derived AST. Args holds, for each original iteration
// dimension, the expression that recovers that dimension's value from the
// active AST iterators — the "already-computed index expression" SPEC_FULL.md
// §4.E's UserStmt(name,args) contract describes. Each Arg is built from
// synthetic iterator references; see IsIterRef.
type UserStmtNode struct {
	Name string
	Args []*Expr
}

// AstNode is a tagged union over the façade's AST node kinds. Exactly one of
// For/If/Block/UserStmt is populated, selected by Kind.
type AstNode struct {
	Kind     AstNodeKind
	For      *ForNode
	If       *IfNode
	Block    []*AstNode
	UserStmt *UserStmtNode
}

// AstBuild carries the mutable state threaded through one AST build: in the
// real library this is the isl_ast_build handle the callbacks receive.
type AstBuild struct {
	domain   *Set
	schedule *Relation
	origins  []*Expr
}

// AstBuildHooks are the type-erased closures the façade invokes at each For
// and at each leaf (user statement), mirroring the external library's
// ast_build_set_after_each_for / ast_build_set_at_each_domain callback
// contract (SPEC_FULL.md §6, Design Note "Callback passing into the
// Presburger AST builder"). Either field may be nil.
type AstBuildHooks struct {
	AfterEachFor  func(node *AstNode, build *AstBuild)
	AtEachDomain  func(node *AstNode, build *AstBuild)
}

// BuildAstFromSchedule builds the nested-loop AST for one computation's
// schedule over its iteration domain, invoking hooks at each For and at the
// leaf user statement. Range dimensions are visited in order, which is
// exactly the lexicographic execution order a schedule relation defines
// (SPEC_FULL.md Glossary, "Time-processor space").
func BuildAstFromSchedule(domain *Set, schedule *Relation, hooks AstBuildHooks) (*AstNode, error) {
	if domain.TupleName() != schedule.DomainTupleName() || domain.NumDims() != schedule.DomainArity() {
		return nil, perr.New(perr.SpaceMismatch, "schedule domain does not match iteration set %s", domain.TupleName())
	}

	build := &AstBuild{domain: domain, schedule: schedule}
	positions := positionsOf(schedule)
	build.origins = computeOrigins(schedule, positions)

	return buildLevel(build, positions, 0, hooks)
}

// computeOrigins derives, for each original domain dimension, an expression
// over synthetic iterator references that reconstructs that dimension's
// value — the inverse of the schedule's forward (domain -> range) mapping.
// Every range dimension is either a direct reference to a domain dimension
// (identity, or relocated by Interchange) or one half of a Split-introduced
// FloorDiv/Mod pair; computeOrigins recognizes both shapes.
func computeOrigins(schedule *Relation, positions map[*Expr]int) []*Expr {
	origins := make([]*Expr, schedule.DomainArity())

	for k := 0; k < schedule.RangeArity(); k++ {
		if e := schedule.RangeExpr(k); e.Kind == KDim {
			origins[e.Dim] = iterRefE(k)
		}
	}

	for k := 0; k < schedule.RangeArity(); k++ {
		e := schedule.RangeExpr(k)
		if e.Kind != KMod || e.outer == nil {
			continue
		}

		outerPos, ok := positions[e.outer]
		if !ok || e.outer.L == nil || e.outer.L.Kind != KDim {
			continue
		}

		origins[e.outer.L.Dim] = reconstructRef(outerPos, k, e.Factor)
	}

	return origins
}

// positionsOf maps each Mod-kind range expression's outer sibling to its
// range-dimension position, so a boundary guard introduced by Split can
// reference the correct (possibly relocated, after Interchange) outer loop
// variable.
func positionsOf(schedule *Relation) map[*Expr]int {
	pos := make(map[*Expr]int, schedule.RangeArity())

	for k := 0; k < schedule.RangeArity(); k++ {
		pos[schedule.RangeExpr(k)] = k
	}

	return pos
}

func buildLevel(build *AstBuild, positions map[*Expr]int, k int, hooks AstBuildHooks) (*AstNode, error) {
	if k == build.schedule.RangeArity() {
		leaf := &AstNode{Kind: AstUserStmt, UserStmt: &UserStmtNode{
			Name: build.domain.TupleName(),
			Args: append([]*Expr(nil), build.origins...),
		}}
		if hooks.AtEachDomain != nil {
			hooks.AtEachDomain(leaf, build)
		}

		return leaf, nil
	}

	expr := build.schedule.RangeExpr(k)
	bound := boundOf(expr, build.domain)

	body, err := buildLevel(build, positions, k+1, hooks)
	if err != nil {
		return nil, err
	}

	if expr.Kind == KMod && expr.outer != nil {
		if d, ok := DomainDimOf(expr.outer.L); ok {
			origHi := build.domain.Bound(d).Hi

			if outerPos, ok := positions[expr.outer]; ok && outerPos < k && !dividesEvenly(origHi, expr.Factor) {
				body = &AstNode{
					Kind: AstIf,
					If: &IfNode{
						Op:    Lt,
						Left:  reconstructRef(outerPos, k, expr.Factor),
						Right: origHi,
						Then:  body,
					},
				}
			}
			// else: either the factor divides evenly (no guard needed) or the
			// outer loop this guard needs is not yet in scope at this nesting
			// depth (an Interchange placed it deeper) — every schedule Tile
			// itself produces keeps outer before inner, so the latter case is
			// not exercised by Tile.
		}
	}

	node := &AstNode{
		Kind: AstFor,
		For: &ForNode{
			Iter: fmt.Sprintf("c%d", k),
			Lo:   bound.Lo,
			Hi:   bound.Hi,
			Inc:  1,
			Body: body,
		},
	}

	if hooks.AfterEachFor != nil {
		hooks.AfterEachFor(node, build)
	}

	return node, nil
}

// reconstructRef builds the expression "iter(outerPos)*factor + iter(k)",
// referencing loop variables by a synthetic negative-dimension encoding that
// the synthesizer recognises as "the For at range-position p", since at this
// stage no domain dimension index is appropriate (the guard is expressed in
// terms of AST iterators, not domain dimensions).
func reconstructRef(outerPos, innerPos int, factor int64) *Expr {
	return AddE(MulE(iterRefE(outerPos), ConstE(factor)), iterRefE(innerPos))
}

// iterRefE constructs a reference to the loop variable introduced for
// range-dimension position p. It reuses KDim with a position offset by a
// large constant so it can never collide with a genuine domain-dimension
// reference; the synthesizer's expression translator special-cases it.
func iterRefE(p int) *Expr {
	return &Expr{Kind: KDim, Dim: iterRefBase + p}
}

// iterRefBase pushes synthetic iterator references out of the range
// ordinarily used for domain dimension indices (which stays small: the
// literal grammar never needs more than a handful of dimensions).
const iterRefBase = 1 << 16

// IsIterRef reports whether e is a synthetic loop-variable reference created
// by reconstructRef, returning its range-dimension position.
func IsIterRef(e *Expr) (int, bool) {
	if e.Kind == KDim && e.Dim >= iterRefBase {
		return e.Dim - iterRefBase, true
	}

	return 0, false
}

func dividesEvenly(hi *Expr, factor int64) bool {
	v, ok := hi.AsConstant()
	return ok && v%factor == 0
}
