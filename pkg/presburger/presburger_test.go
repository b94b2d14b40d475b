package presburger

import "testing"

func mustSet(t *testing.T, ctx *Context, text string) *Set {
	t.Helper()

	s, err := ParseSet(ctx, text)
	if err != nil {
		t.Fatalf("ParseSet(%q): %v", text, err)
	}

	return s
}

func TestParseSetBounds(t *testing.T) {
	ctx := NewContext("t")
	s := mustSet(t, ctx, "{S0[i,j] : 0 <= i <= 1000 and 0 <= j <= 1000}")

	if s.TupleName() != "S0" || s.NumDims() != 2 {
		t.Fatalf("got tuple %q dims %d", s.TupleName(), s.NumDims())
	}

	lo, ok := s.Bound(0).Lo.AsConstant()
	if !ok || lo != 0 {
		t.Fatalf("got lo %v ok=%v", lo, ok)
	}

	hi, ok := s.Bound(0).Hi.AsConstant()
	if !ok || hi != 1001 {
		t.Fatalf("<=1000 should produce an exclusive bound of 1001, got %v", hi)
	}
}

func TestParseRelationDomainMismatchRejectedByApply(t *testing.T) {
	ctx := NewContext("t")
	s := mustSet(t, ctx, "{S[i] : 0 <= i < 10}")

	rel, err := ParseRelation(ctx, "{T[i]->buf[i]}")
	if err != nil {
		t.Fatalf("ParseRelation: %v", err)
	}

	if _, err := Apply(s, rel); err == nil {
		t.Fatalf("expected SpaceMismatch applying a relation over a different tuple name")
	}
}

func TestIdentityThenApplyReproducesSet(t *testing.T) {
	ctx := NewContext("t")
	s := mustSet(t, ctx, "{S[i,j] : 0 <= i < 10 and 0 <= j < 20}")

	image, err := Apply(s, Identity(s))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	for d := 0; d < 2; d++ {
		want := s.Bound(d)
		got := image.Bound(d)

		if !ExprEqual(want.Lo, got.Lo) || !ExprEqual(want.Hi, got.Hi) {
			t.Fatalf("dim %d bound changed under identity: want %v..%v got %v..%v", d, want.Lo, want.Hi, got.Lo, got.Hi)
		}
	}
}

func TestSplitPairWiresOuterSibling(t *testing.T) {
	outer, inner := SplitPair(DimE(0), 10)

	if outer.Kind != KFloorDiv || inner.Kind != KMod {
		t.Fatalf("got kinds %v, %v", outer.Kind, inner.Kind)
	}

	if inner.outer != outer {
		t.Fatalf("inner's outer sibling pointer was not wired to outer")
	}
}

func TestExprEqual(t *testing.T) {
	a := AddE(DimE(0), ConstE(1))
	b := AddE(DimE(0), ConstE(1))
	c := AddE(DimE(0), ConstE(2))

	if !ExprEqual(a, b) {
		t.Fatalf("structurally identical expressions should be equal")
	}

	if ExprEqual(a, c) {
		t.Fatalf("expressions differing in a constant should not be equal")
	}

	if ExprEqual(nil, a) || ExprEqual(a, nil) {
		t.Fatalf("nil should only equal nil")
	}
}

func TestBuildAstFromScheduleIdentityShape(t *testing.T) {
	ctx := NewContext("t")
	s := mustSet(t, ctx, "{C[i,j] : 0 <= i < 10 and 0 <= j < 20}")

	root, err := BuildAstFromSchedule(s, Identity(s), AstBuildHooks{})
	if err != nil {
		t.Fatalf("BuildAstFromSchedule: %v", err)
	}

	if root.Kind != AstFor {
		t.Fatalf("want outer For, got %v", root.Kind)
	}

	inner := root.For.Body
	if inner.Kind != AstFor {
		t.Fatalf("want inner For, got %v", inner.Kind)
	}

	leaf := inner.For.Body
	if leaf.Kind != AstUserStmt || leaf.UserStmt.Name != "C" {
		t.Fatalf("want leaf UserStmt named C, got %+v", leaf)
	}

	if len(leaf.UserStmt.Args) != 2 {
		t.Fatalf("want 2 reconstructed args, got %d", len(leaf.UserStmt.Args))
	}
}

func TestBuildAstFromScheduleSplitInsertsGuardWhenFactorDoesNotDivide(t *testing.T) {
	ctx := NewContext("t")
	s := mustSet(t, ctx, "{C[i] : 0 <= i < 25}")

	outer, inner := SplitPair(DimE(0), 10)
	schedule := NewRelation(s.Space(), Space{TupleName: "C", Dims: []string{"", ""}}, []*Expr{outer, inner})

	root, err := BuildAstFromSchedule(s, schedule, AstBuildHooks{})
	if err != nil {
		t.Fatalf("BuildAstFromSchedule: %v", err)
	}

	innerFor := root.For.Body
	if innerFor.Kind != AstFor {
		t.Fatalf("want inner For, got %v", innerFor.Kind)
	}

	if innerFor.For.Body.Kind != AstIf {
		t.Fatalf("25 does not divide evenly by 10: want a boundary guard, got %v", innerFor.For.Body.Kind)
	}
}

func TestBuildAstFromScheduleSplitOmitsGuardWhenFactorDivides(t *testing.T) {
	ctx := NewContext("t")
	s := mustSet(t, ctx, "{C[i] : 0 <= i < 20}")

	outer, inner := SplitPair(DimE(0), 10)
	schedule := NewRelation(s.Space(), Space{TupleName: "C", Dims: []string{"", ""}}, []*Expr{outer, inner})

	root, err := BuildAstFromSchedule(s, schedule, AstBuildHooks{})
	if err != nil {
		t.Fatalf("BuildAstFromSchedule: %v", err)
	}

	innerFor := root.For.Body
	if innerFor.For.Body.Kind != AstUserStmt {
		t.Fatalf("20 divides evenly by 10: expected no boundary guard, got %v", innerFor.For.Body.Kind)
	}
}

func TestBuildAstFromScheduleDomainMismatch(t *testing.T) {
	ctx := NewContext("t")
	s := mustSet(t, ctx, "{C[i] : 0 <= i < 10}")

	other := mustSet(t, ctx, "{D[i] : 0 <= i < 10}")

	if _, err := BuildAstFromSchedule(s, Identity(other), AstBuildHooks{}); err == nil {
		t.Fatalf("expected SpaceMismatch for mismatched domain tuple names")
	}
}
