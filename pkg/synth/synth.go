// Package synth is the loop-nest synthesizer: it walks the
// presburger.AstNode tree produced from a Program's computations' schedules
// and produces an ir.Stmt tree, attaching parallel/vector tags and resolving
// each leaf's access relation into a concrete Store (SPEC_FULL.md §4.E).
//
// The synthesizer is stateless over the AST; only the active iterator stack
// is carried through the descent.
package synth

import (
	"sort"

	"github.com/polyforge/ploop/pkg/ir"
	"github.com/polyforge/ploop/pkg/lowering"
	"github.com/polyforge/ploop/pkg/model"
	"github.com/polyforge/ploop/pkg/perr"
	"github.com/polyforge/ploop/pkg/presburger"
	"github.com/polyforge/ploop/pkg/util/collection/stack"
)

// Synthesize is the top-level code-generation driver SPEC_FULL.md §2 and §4.E
// describe: it lowers program to its time-processor space (pkg/lowering),
// builds each computation's AST from its own schedule and iteration set
// (pkg/presburger), fuses and tags the result, and walks it into the target
// IR. The produced AST is cached on program via Program.SetAST before this
// function lowers it further. Fails with EmptyProgram if program has no
// computations, MissingAccess if a computation's access relation was never
// set, or ConflictingTag if two computations sharing a For request
// incompatible tags at that level.
//
// This is a free function rather than a Program method: pkg/lowering and
// pkg/presburger's AST builder both take a *model.Program (or the values
// hanging off one) as input, so a method here would require pkg/model to
// import pkg/lowering and pkg/synth, which already import pkg/model — an
// import cycle Go disallows. See DESIGN.md.
func Synthesize(program *model.Program) (ir.Stmt, error) {
	comps := program.AllComputations()
	if len(comps) == 0 {
		program.Log().Warn("generate requested with no scheduled computation")
		return ir.Stmt{}, perr.New(perr.EmptyProgram, "program %q has no computations", program.Name())
	}

	tp, err := lowering.BuildTimeProcessorSpace(program)
	if err != nil {
		return ir.Stmt{}, err
	}

	byName := make(map[string]*model.Computation, len(comps))
	for _, c := range comps {
		byName[c.Name()] = c
	}

	type rooted struct {
		node  *presburger.AstNode
		order int64
		seq   int
	}

	roots := make([]rooted, 0, len(comps))

	for i, c := range comps {
		tpSet, ok := tp.PerComp[c.Name()]
		if !ok {
			return ir.Stmt{}, perr.New(perr.BadPolyhedralForm, "no time-processor set computed for %q", c.Name())
		}

		// The identity relation on a computation's own time-processor set
		// always restricts cleanly onto that same set; this is the
		// "identity relation intersected with the domain" precondition
		// gen_isl_ast() checks before an AST build (SPEC_FULL.md §4.D/§4.E).
		if _, err := presburger.IntersectDomain(tp.Identity[c.Name()], tpSet); err != nil {
			return ir.Stmt{}, err
		}

		// The AST itself is still built from the computation's own schedule
		// over its original iteration set, not the time-processor identity
		// relation: BuildAstFromSchedule's computeOrigins step needs the
		// real (possibly tiled/split/interchanged) schedule to invert
		// AST-iterator positions back to original iteration dimensions,
		// which the identity relation on already-scheduled coordinates
		// cannot recover.
		node, err := presburger.BuildAstFromSchedule(c.IterationSet(), c.Schedule(), presburger.AstBuildHooks{})
		if err != nil {
			program.Log().WithError(err).WithField("computation", c.Name()).Warn("failed to build AST")
			return ir.Stmt{}, err
		}

		roots = append(roots, rooted{node: node, order: leadingOrderKey(tpSet), seq: i})
	}

	sort.SliceStable(roots, func(i, j int) bool { return roots[i].order < roots[j].order })

	nodes := make([]*presburger.AstNode, len(roots))
	for i, r := range roots {
		nodes[i] = r.node
	}

	nodes = fuseIdenticalRoots(nodes)

	var root *presburger.AstNode
	if len(nodes) == 1 {
		root = nodes[0]
	} else {
		root = &presburger.AstNode{Kind: presburger.AstBlock, Block: nodes}
	}

	program.SetAST(root)

	iterStack := stack.New[string]()

	return walk(program, byName, root, 0, iterStack)
}

// leadingOrderKey returns a computation's time-processor set's leading
// (position 0) dimension's lower bound, when it is constant, so distinct
// computations tagged with different constant leading time coordinates are
// ordered by them (SPEC_FULL.md §8 scenario 2); computations without a
// constant lead keep their declaration order via the stable sort. Reading
// this off the already-lowered time-processor set (pkg/lowering), rather
// than re-deriving it from the raw schedule, is what makes lowering part of
// the real generation path instead of a parallel, unconsumed computation.
func leadingOrderKey(tp *presburger.Set) int64 {
	if tp.NumDims() == 0 {
		return 0
	}

	if v, ok := tp.Bound(0).Lo.AsConstant(); ok {
		return v
	}

	return 0
}

// fuseIdenticalRoots merges adjacent computation roots whose schedules are
// shape-identical at every nesting level (same bounds and step down to the
// leaf) into one shared AstFor/AstIf chain terminating in a Block of their
// UserStmt leaves. This mirrors how a real Presburger AST builder handles a
// union of computation domains: when two statements' schedules coincide at
// a level, the builder emits a single enclosing loop rather than two
// separate ones. Roots whose shapes diverge at any level (different arity,
// different bounds) are left untouched, so scenarios like distinctly-shaped
// computations sharing only a coincidental leading bound are never merged.
func fuseIdenticalRoots(nodes []*presburger.AstNode) []*presburger.AstNode {
	fused := make([]*presburger.AstNode, 0, len(nodes))

	for _, n := range nodes {
		if last := len(fused) - 1; last >= 0 && canFullyFuse(fused[last], n) {
			fused[last] = fuseFully(fused[last], n)
			continue
		}

		fused = append(fused, n)
	}

	return fused
}

// canFullyFuse reports whether a and b have the identical AstFor/AstIf
// nesting shape (matching bounds, step, and guard) all the way down to a
// leaf on both sides.
func canFullyFuse(a, b *presburger.AstNode) bool {
	if a.Kind != b.Kind {
		return false
	}

	switch a.Kind {
	case presburger.AstFor:
		return presburger.ExprEqual(a.For.Lo, b.For.Lo) &&
			presburger.ExprEqual(a.For.Hi, b.For.Hi) &&
			a.For.Inc == b.For.Inc &&
			canFullyFuse(a.For.Body, b.For.Body)
	case presburger.AstIf:
		return a.If.Op == b.If.Op &&
			presburger.ExprEqual(a.If.Left, b.If.Left) &&
			presburger.ExprEqual(a.If.Right, b.If.Right) &&
			canFullyFuse(a.If.Then, b.If.Then)
	case presburger.AstUserStmt:
		return true
	default:
		return false
	}
}

// fuseFully builds the merged node canFullyFuse already validated: the same
// nesting shape as a, with the leaves at the bottom combined into one Block.
func fuseFully(a, b *presburger.AstNode) *presburger.AstNode {
	switch a.Kind {
	case presburger.AstFor:
		return &presburger.AstNode{Kind: presburger.AstFor, For: &presburger.ForNode{
			Iter: a.For.Iter,
			Lo:   a.For.Lo,
			Hi:   a.For.Hi,
			Inc:  a.For.Inc,
			Body: fuseFully(a.For.Body, b.For.Body),
		}}
	case presburger.AstIf:
		return &presburger.AstNode{Kind: presburger.AstIf, If: &presburger.IfNode{
			Op:    a.If.Op,
			Left:  a.If.Left,
			Right: a.If.Right,
			Then:  fuseFully(a.If.Then, b.If.Then),
		}}
	default:
		return &presburger.AstNode{Kind: presburger.AstBlock, Block: []*presburger.AstNode{a, b}}
	}
}

func walk(program *model.Program, byName map[string]*model.Computation, node *presburger.AstNode, depth int, iterStack *stack.Stack[string]) (ir.Stmt, error) {
	switch node.Kind {
	case presburger.AstBlock:
		children := make([]*ir.Stmt, 0, len(node.Block))

		for _, c := range node.Block {
			s, err := walk(program, byName, c, depth, iterStack)
			if err != nil {
				return ir.Stmt{}, err
			}

			children = append(children, &s)
		}

		return *ir.Block(children...), nil

	case presburger.AstIf:
		cond, err := translateExpr(node.If.Left, iterStack.Items())
		if err != nil {
			return ir.Stmt{}, err
		}

		right, err := translateExpr(node.If.Right, iterStack.Items())
		if err != nil {
			return ir.Stmt{}, err
		}

		then, err := walk(program, byName, node.If.Then, depth, iterStack)
		if err != nil {
			return ir.Stmt{}, err
		}

		guard, err := translateCmpOp(node.If.Op, cond, right)
		if err != nil {
			return ir.Stmt{}, err
		}

		return *ir.If(guard, &then, nil), nil

	case presburger.AstFor:
		iterStack.Push(node.For.Iter)

		body, err := walk(program, byName, node.For.Body, depth+1, iterStack)
		if err != nil {
			iterStack.Pop()
			return ir.Stmt{}, err
		}

		iterStack.Pop()

		min, err := translateExpr(node.For.Lo, iterStack.Items())
		if err != nil {
			return ir.Stmt{}, err
		}

		hi, err := translateExpr(node.For.Hi, iterStack.Items())
		if err != nil {
			return ir.Stmt{}, err
		}

		tag, err := tagForDepth(program, node.For.Body, depth)
		if err != nil {
			return ir.Stmt{}, err
		}

		extent := ir.Sub(hi, min)

		return *ir.For(node.For.Iter, min, extent, node.For.Inc, &body, tag), nil

	case presburger.AstUserStmt:
		return synthesizeLeaf(program, byName, node.UserStmt, iterStack.Items())

	default:
		return *ir.Block(), nil
	}
}

// tagForDepth finds the first tag request among the computations under
// node's leaves at level depth, failing with ConflictingTag if a later leaf
// requests a different tag at the same depth.
func tagForDepth(program *model.Program, node *presburger.AstNode, depth int) (ir.Tag, error) {
	found := ir.Serial
	any := false

	var walkErr error

	var visit func(n *presburger.AstNode)
	visit = func(n *presburger.AstNode) {
		if n == nil || walkErr != nil {
			return
		}

		switch n.Kind {
		case presburger.AstUserStmt:
			name := n.UserStmt.Name
			parallel := program.ParallelTagged(name, depth)
			vector := program.VectorTagged(name, depth)

			var t ir.Tag
			switch {
			case parallel:
				t = ir.Parallel
			case vector:
				t = ir.Vectorized
			default:
				return
			}

			if any && found != t {
				walkErr = perr.New(perr.ConflictingTag,
					"computation %q requests a tag conflicting with another computation sharing a loop at level %d", name, depth)
				return
			}

			found, any = t, true
		case presburger.AstFor:
			visit(n.For.Body)
		case presburger.AstIf:
			visit(n.If.Then)
		case presburger.AstBlock:
			for _, c := range n.Block {
				visit(c)
			}
		}
	}

	visit(node)

	return found, walkErr
}

func synthesizeLeaf(program *model.Program, byName map[string]*model.Computation, leaf *presburger.UserStmtNode, stackNames []string) (ir.Stmt, error) {
	c, ok := byName[leaf.Name]
	if !ok {
		return ir.Stmt{}, perr.New(perr.BadPolyhedralForm, "unknown computation %q in synthesized AST", leaf.Name)
	}

	if !c.HasAccess() {
		program.Log().WithField("computation", c.Name()).Warn("code generation requested without an access relation")
		return ir.Stmt{}, perr.New(perr.MissingAccess, "computation %q has no access relation", c.Name())
	}

	dimNames := c.IterationSet().Dims()
	modelSubst := make(map[string]*model.Expr, len(dimNames))

	for d, name := range dimNames {
		me, err := presburgerToModelExpr(leaf.Args[d], stackNames)
		if err != nil {
			return ir.Stmt{}, err
		}

		modelSubst[name] = me
	}

	valueExpr := c.Expr().Substitute(modelSubst)

	irValue, err := translateModelExpr(valueExpr)
	if err != nil {
		return ir.Stmt{}, err
	}

	access := c.Access()

	index := make([]ir.Expr, access.RangeArity())

	for k := 0; k < access.RangeArity(); k++ {
		substituted := presburger.SubstituteDims(access.RangeExpr(k), leaf.Args)

		idx, err := translateExpr(substituted, stackNames)
		if err != nil {
			return ir.Stmt{}, err
		}

		index[k] = idx
	}

	return *ir.Store(access.RangeTupleName(), index, irValue), nil
}

// translateCmpOp builds the target IR comparison an AstIf guard's CmpOp
// names. The AST builder currently only ever emits Lt guards, but this
// translates every presburger.CmpOp so a future guard op cannot silently
// mis-lower into the wrong comparison.
func translateCmpOp(op presburger.CmpOp, l, r ir.Expr) (ir.Expr, error) {
	switch op {
	case presburger.Lt:
		return ir.CmpLt(l, r), nil
	case presburger.Le:
		return ir.CmpLe(l, r), nil
	case presburger.Gt:
		return ir.CmpGt(l, r), nil
	case presburger.Ge:
		return ir.CmpGe(l, r), nil
	case presburger.Eq:
		return ir.CmpEq(l, r), nil
	default:
		return ir.Expr{}, perr.New(perr.BadPolyhedralForm, "unknown AST guard comparison operator %d", op)
	}
}

// translateExpr maps a purely affine presburger.Expr (a loop bound, guard
// condition, or access-relation index expression with domain dimensions
// already substituted) into the target IR.
func translateExpr(e *presburger.Expr, stackNames []string) (ir.Expr, error) {
	if p, ok := presburger.IsIterRef(e); ok {
		if p < 0 || p >= len(stackNames) {
			return ir.Expr{}, perr.New(perr.BadPolyhedralForm, "iterator reference at position %d out of scope", p)
		}

		return ir.IterRef(stackNames[p]), nil
	}

	switch e.Kind {
	case presburger.KConst:
		return ir.IntLit(e.Const), nil
	case presburger.KParam:
		return ir.IterRef(e.Param), nil
	case presburger.KAdd, presburger.KSub, presburger.KMul:
		l, err := translateExpr(e.L, stackNames)
		if err != nil {
			return ir.Expr{}, err
		}

		r, err := translateExpr(e.R, stackNames)
		if err != nil {
			return ir.Expr{}, err
		}

		switch e.Kind {
		case presburger.KAdd:
			return ir.Add(l, r), nil
		case presburger.KSub:
			return ir.Sub(l, r), nil
		default:
			return ir.Mul(l, r), nil
		}
	case presburger.KFloorDiv:
		l, err := translateExpr(e.L, stackNames)
		if err != nil {
			return ir.Expr{}, err
		}

		return ir.Div(l, ir.IntLit(e.Factor)), nil
	case presburger.KMod:
		l, err := translateExpr(e.L, stackNames)
		if err != nil {
			return ir.Expr{}, err
		}

		return ir.Mod(l, ir.IntLit(e.Factor)), nil
	default:
		return ir.Expr{}, perr.New(perr.BadPolyhedralForm, "cannot translate expression %s to target IR", e)
	}
}

// presburgerToModelExpr converts an affine presburger.Expr (an AST leaf's
// reconstructed domain-dimension value) into a model.Expr usable as a
// substitution value in a Computation's expression tree.
func presburgerToModelExpr(e *presburger.Expr, stackNames []string) (*model.Expr, error) {
	if p, ok := presburger.IsIterRef(e); ok {
		if p < 0 || p >= len(stackNames) {
			return nil, perr.New(perr.BadPolyhedralForm, "iterator reference at position %d out of scope", p)
		}

		return model.VarE(stackNames[p]), nil
	}

	switch e.Kind {
	case presburger.KConst:
		return model.IntE(e.Const), nil
	case presburger.KParam:
		return model.VarE(e.Param), nil
	case presburger.KAdd, presburger.KSub, presburger.KMul:
		l, err := presburgerToModelExpr(e.L, stackNames)
		if err != nil {
			return nil, err
		}

		r, err := presburgerToModelExpr(e.R, stackNames)
		if err != nil {
			return nil, err
		}

		switch e.Kind {
		case presburger.KAdd:
			return model.AddE(l, r), nil
		case presburger.KSub:
			return model.SubE(l, r), nil
		default:
			return model.MulE(l, r), nil
		}
	case presburger.KFloorDiv:
		l, err := presburgerToModelExpr(e.L, stackNames)
		if err != nil {
			return nil, err
		}

		return model.DivE(l, model.IntE(e.Factor)), nil
	case presburger.KMod:
		l, err := presburgerToModelExpr(e.L, stackNames)
		if err != nil {
			return nil, err
		}

		return model.ModE(l, model.IntE(e.Factor)), nil
	default:
		return nil, perr.New(perr.BadPolyhedralForm, "cannot translate expression %s into a computation's index value", e)
	}
}

// translateModelExpr maps a Computation's (already substituted) expression
// tree into the target IR, the expanded expression coverage SPEC_FULL.md
// §4.E calls for.
func translateModelExpr(e *model.Expr) (ir.Expr, error) {
	switch e.Kind {
	case model.EConst:
		switch e.ValueKind {
		case model.KindFloat:
			return ir.FloatLit(e.FloatValue), nil
		case model.KindBool:
			return ir.BoolLit(e.BoolValue), nil
		default:
			return ir.IntLit(e.IntValue), nil
		}
	case model.EVar:
		return ir.IterRef(e.Name), nil
	}

	l, err := translateModelExpr(e.L)
	if err != nil {
		return ir.Expr{}, err
	}

	switch e.Kind {
	case model.ENot:
		return ir.Not(l), nil
	case model.ENeg:
		return ir.Neg(l), nil
	case model.ECast:
		if e.CastTo == model.KindFloat {
			return ir.CastFloat(l), nil
		}

		return ir.CastInt(l), nil
	}

	r, err := translateModelExpr(e.R)
	if err != nil {
		return ir.Expr{}, err
	}

	switch e.Kind {
	case model.EAdd:
		return ir.Add(l, r), nil
	case model.ESub:
		return ir.Sub(l, r), nil
	case model.EMul:
		return ir.Mul(l, r), nil
	case model.EDiv:
		return ir.Div(l, r), nil
	case model.EMod:
		return ir.Mod(l, r), nil
	case model.ECmpLt:
		return ir.CmpLt(l, r), nil
	case model.ECmpLe:
		return ir.CmpLe(l, r), nil
	case model.ECmpGt:
		return ir.CmpGt(l, r), nil
	case model.ECmpGe:
		return ir.CmpGe(l, r), nil
	case model.ECmpEq:
		return ir.CmpEq(l, r), nil
	case model.EMin:
		return ir.Min(l, r), nil
	case model.EMax:
		return ir.Max(l, r), nil
	case model.EAnd:
		return ir.And(l, r), nil
	case model.EOr:
		return ir.Or(l, r), nil
	case model.ESelect:
		third, err := translateModelExpr(e.Third)
		if err != nil {
			return ir.Expr{}, err
		}

		return ir.Select(l, r, third), nil
	default:
		return ir.Expr{}, perr.New(perr.BadPolyhedralForm, "cannot translate expression %s to target IR", e)
	}
}
