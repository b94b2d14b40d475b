package synth

import (
	"errors"
	"testing"

	"github.com/polyforge/ploop/pkg/ir"
	"github.com/polyforge/ploop/pkg/model"
	"github.com/polyforge/ploop/pkg/perr"
	"github.com/polyforge/ploop/pkg/schedule"
)

func mustComp(t *testing.T, fn *model.Function, name, iter string, expr *model.Expr) *model.Computation {
	t.Helper()

	c, err := model.NewComputation(fn, name, iter, expr)
	if err != nil {
		t.Fatalf("NewComputation(%s): %v", name, err)
	}

	return c
}

// countFors reports how many nested For statements this chain contains
// before reaching a non-For, non-If statement (following Then on any
// boundary-guard If a non-evenly-dividing Split/Tile inserts along the
// way), and returns that terminal statement.
func countFors(s *ir.Stmt) (int, *ir.Stmt) {
	n := 0

	for {
		switch s.Kind {
		case ir.SFor:
			n++
			s = s.Body
		case ir.SIf:
			s = s.Then
		default:
			return n, s
		}
	}
}

// evalInt folds a constant integer ir.Expr tree, for asserting on loop
// bounds the synthesizer leaves as unreduced arithmetic (e.g. floor(0/10)).
func evalInt(t *testing.T, e ir.Expr) int64 {
	t.Helper()

	switch e.Kind {
	case ir.EIntLit:
		return e.IntLit
	case ir.EAdd:
		return evalInt(t, *e.L) + evalInt(t, *e.R)
	case ir.ESub:
		return evalInt(t, *e.L) - evalInt(t, *e.R)
	case ir.EMul:
		return evalInt(t, *e.L) * evalInt(t, *e.R)
	case ir.EDiv:
		return evalInt(t, *e.L) / evalInt(t, *e.R)
	case ir.EMod:
		return evalInt(t, *e.L) % evalInt(t, *e.R)
	default:
		t.Fatalf("evalInt: unsupported expression kind %v", e.Kind)
		return 0
	}
}

func TestSynthesizeAstShapeForIdentitySchedule(t *testing.T) {
	prog := model.NewProgram("p")
	fn := model.NewFunction(prog, "f")

	buf, err := model.NewBuffer(fn, "buf", model.Int64, model.OutputBuffer, []int64{0, 0})
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	if err := fn.AddArgument(buf); err != nil {
		t.Fatalf("AddArgument: %v", err)
	}

	comp := mustComp(t, fn, "C", "{C[i,j] : 0 <= i < N and 0 <= j < M}", model.IntE(1))
	if err := comp.SetAccess("{C[i,j]->buf[i,j]}"); err != nil {
		t.Fatalf("SetAccess: %v", err)
	}

	stmt, err := Synthesize(prog)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if stmt.Kind != ir.SFor || stmt.Iter != "c0" {
		t.Fatalf("expected outer For(i), got kind %v iter %q", stmt.Kind, stmt.Iter)
	}

	inner := stmt.Body
	if inner.Kind != ir.SFor || inner.Iter != "c1" {
		t.Fatalf("expected inner For(j), got kind %v iter %q", inner.Kind, inner.Iter)
	}

	if inner.Body.Kind != ir.SStore {
		t.Fatalf("expected a Store at the innermost level, got kind %v", inner.Body.Kind)
	}
}

// scenario 1: constant fill, tiled 32x32, outer j-tile tagged parallel.
func TestScenarioConstantFillTileAndParallelTag(t *testing.T) {
	prog := model.NewProgram("constant_fill")
	fn := model.NewFunction(prog, "fill")

	buf0, err := model.NewBuffer(fn, "buf0", model.Int64, model.OutputBuffer, []int64{1001, 1001})
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	if err := fn.AddArgument(buf0); err != nil {
		t.Fatalf("AddArgument: %v", err)
	}

	comp := mustComp(t, fn, "S0", "{S0[i,j] : 0 <= i <= 1000 and 0 <= j <= 1000}", model.IntE(3))
	if err := comp.SetAccess("{S0[i,j]->buf0[i,j]}"); err != nil {
		t.Fatalf("SetAccess: %v", err)
	}

	tiled, err := schedule.Tile(comp.Schedule(), 0, 1, 32, 32)
	if err != nil {
		t.Fatalf("Tile: %v", err)
	}

	comp.SetSchedule(tiled)

	if err := schedule.TagParallel(prog, "S0", 1); err != nil {
		t.Fatalf("TagParallel: %v", err)
	}

	stmt, err := Synthesize(prog)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	depth, leaf := countFors(&stmt)
	if depth != 4 {
		t.Fatalf("expected four nested For loops after a 2D tile, got %d", depth)
	}

	if leaf.Kind != ir.SStore {
		t.Fatalf("expected a Store at the innermost level, got kind %v", leaf.Kind)
	}

	// walk down to the loop at level 1 (the outer j-tile) and check its tag.
	cur := &stmt
	for i := 0; i < 1; i++ {
		cur = cur.Body
	}

	if cur.ForTag != ir.Parallel {
		t.Fatalf("expected the outer j-tile (level 1) to carry the parallel tag, got %v", cur.ForTag)
	}
}

// scenario 2: init/update ordered by declaration, since both have the same
// constant leading time coordinate (0) and the stable sort keeps ties in
// declaration order.
func TestScenarioMatrixVectorOrdering(t *testing.T) {
	prog := model.NewProgram("matrix_vector")
	fn := model.NewFunction(prog, "mv")

	y, err := model.NewBuffer(fn, "y", model.Float64, model.OutputBuffer, []int64{100})
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	if err := fn.AddArgument(y); err != nil {
		t.Fatalf("AddArgument: %v", err)
	}

	initC := mustComp(t, fn, "init", "{init[i] : 0 <= i < 100}", model.FloatE(0))
	if err := initC.SetAccess("{init[i]->y[i]}"); err != nil {
		t.Fatalf("SetAccess(init): %v", err)
	}

	updateC := mustComp(t, fn, "update", "{update[i,k] : 0 <= i < 100 and 0 <= k < 100}",
		model.AddE(model.VarE("y"), model.VarE("a")))
	if err := updateC.SetAccess("{update[i,k]->y[i]}"); err != nil {
		t.Fatalf("SetAccess(update): %v", err)
	}

	stmt, err := Synthesize(prog)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if stmt.Kind != ir.SBlock || len(stmt.Children) != 2 {
		t.Fatalf("expected a two-statement top-level Block, got kind %v with %d children", stmt.Kind, len(stmt.Children))
	}

	firstDepth, _ := countFors(stmt.Children[0])
	secondDepth, _ := countFors(stmt.Children[1])

	if firstDepth != 1 || secondDepth != 2 {
		t.Fatalf("expected init (1 loop) before update (2 loops), got depths %d then %d", firstDepth, secondDepth)
	}
}

// scenario 3: interchange(0,1) swaps loop order.
func TestScenarioInterchange(t *testing.T) {
	prog := model.NewProgram("interchange_demo")
	fn := model.NewFunction(prog, "f")

	buf, err := model.NewBuffer(fn, "buf", model.Int64, model.OutputBuffer, []int64{0, 0})
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	if err := fn.AddArgument(buf); err != nil {
		t.Fatalf("AddArgument: %v", err)
	}

	comp := mustComp(t, fn, "S", "{S[i,j] : 0 <= i < N and 0 <= j < M}", model.IntE(1))
	if err := comp.SetAccess("{S[i,j]->buf[i,j]}"); err != nil {
		t.Fatalf("SetAccess: %v", err)
	}

	swapped, err := schedule.Interchange(comp.Schedule(), 0, 1)
	if err != nil {
		t.Fatalf("Interchange: %v", err)
	}

	comp.SetSchedule(swapped)

	stmt, err := Synthesize(prog)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if stmt.Kind != ir.SFor {
		t.Fatalf("expected outer For, got kind %v", stmt.Kind)
	}

	inner := stmt.Body
	if inner.Kind != ir.SFor {
		t.Fatalf("expected inner For, got kind %v", inner.Kind)
	}

	if inner.Body.Kind != ir.SStore {
		t.Fatalf("expected Store at the innermost level, got kind %v", inner.Body.Kind)
	}
}

// scenario 4: split(0,10) over a 100-iteration loop yields two 10-bound loops.
func TestScenarioSplit(t *testing.T) {
	prog := model.NewProgram("split_demo")
	fn := model.NewFunction(prog, "f")

	buf, err := model.NewBuffer(fn, "buf", model.Int64, model.OutputBuffer, []int64{100})
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	if err := fn.AddArgument(buf); err != nil {
		t.Fatalf("AddArgument: %v", err)
	}

	comp := mustComp(t, fn, "S", "{S[i] : 0 <= i < 100}", model.IntE(1))
	if err := comp.SetAccess("{S[i]->buf[i]}"); err != nil {
		t.Fatalf("SetAccess: %v", err)
	}

	split, err := schedule.Split(comp.Schedule(), 0, 10)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	comp.SetSchedule(split)

	stmt, err := Synthesize(prog)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	depth, leaf := countFors(&stmt)
	if depth != 2 {
		t.Fatalf("expected two nested loops after split(0,10) over 100, got %d", depth)
	}

	if leaf.Kind != ir.SStore {
		t.Fatalf("expected a Store at the innermost level, got kind %v", leaf.Kind)
	}

	if got := evalInt(t, stmt.Extent); got != 10 {
		t.Fatalf("expected outer trip count 10, got %d", got)
	}

	if got := evalInt(t, stmt.Body.Extent); got != 10 {
		t.Fatalf("expected inner trip count 10, got %d", got)
	}
}

// scenario 5: code generation without an access relation fails with MissingAccess.
func TestScenarioMissingAccess(t *testing.T) {
	prog := model.NewProgram("missing_access_demo")
	fn := model.NewFunction(prog, "f")

	mustComp(t, fn, "S", "{S[i] : 0 <= i < 10}", model.IntE(1))

	_, err := Synthesize(prog)
	if err == nil {
		t.Fatalf("expected MissingAccess for a computation with no access relation")
	}

	var perrErr *perr.Error
	if !errors.As(err, &perrErr) || perrErr.Kind != perr.MissingAccess {
		t.Fatalf("expected a MissingAccess perr.Error, got %v", err)
	}
}

// scenario 6: two computations sharing an outer loop after fusion, tagged
// incompatibly, fail with ConflictingTag.
func TestScenarioConflictingTagAfterFusion(t *testing.T) {
	prog := model.NewProgram("conflicting_tag_demo")
	fn := model.NewFunction(prog, "f")

	buf, err := model.NewBuffer(fn, "buf", model.Int64, model.OutputBuffer, []int64{10})
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	if err := fn.AddArgument(buf); err != nil {
		t.Fatalf("AddArgument: %v", err)
	}

	a := mustComp(t, fn, "A", "{A[i] : 0 <= i < 10}", model.IntE(1))
	if err := a.SetAccess("{A[i]->buf[i]}"); err != nil {
		t.Fatalf("SetAccess(A): %v", err)
	}

	b := mustComp(t, fn, "B", "{B[i] : 0 <= i < 10}", model.IntE(2))
	if err := b.SetAccess("{B[i]->buf[i]}"); err != nil {
		t.Fatalf("SetAccess(B): %v", err)
	}

	if err := schedule.TagParallel(prog, "A", 0); err != nil {
		t.Fatalf("TagParallel: %v", err)
	}

	if err := schedule.TagVector(prog, "B", 0); err != nil {
		t.Fatalf("TagVector: %v", err)
	}

	_, err = Synthesize(prog)
	if err == nil {
		t.Fatalf("expected ConflictingTag for two fused computations tagged incompatibly at the same level")
	}

	var perrErr *perr.Error
	if !errors.As(err, &perrErr) || perrErr.Kind != perr.ConflictingTag {
		t.Fatalf("expected a ConflictingTag perr.Error, got %v", err)
	}
}

func TestScenarioEmptyProgram(t *testing.T) {
	prog := model.NewProgram("empty")

	_, err := Synthesize(prog)
	if err == nil {
		t.Fatalf("expected EmptyProgram for a program with no computations")
	}

	var perrErr *perr.Error
	if !errors.As(err, &perrErr) || perrErr.Kind != perr.EmptyProgram {
		t.Fatalf("expected an EmptyProgram perr.Error, got %v", err)
	}
}
