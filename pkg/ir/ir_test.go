package ir

import "testing"

func TestBlockFlattensNestedBlocks(t *testing.T) {
	leaf1 := Store("a", nil, IntLit(1))
	leaf2 := Store("b", nil, IntLit(2))
	inner := Block(leaf1, leaf2)

	leaf3 := Store("c", nil, IntLit(3))
	outer := Block(inner, leaf3)

	if outer.Kind != SBlock {
		t.Fatalf("expected SBlock, got %v", outer.Kind)
	}

	if len(outer.Children) != 3 {
		t.Fatalf("expected nested Block to be spliced flat into 3 children, got %d", len(outer.Children))
	}

	if outer.Children[0] != leaf1 || outer.Children[1] != leaf2 || outer.Children[2] != leaf3 {
		t.Fatalf("expected children in original order [leaf1,leaf2,leaf3]")
	}
}

func TestBlockDropsNilChildren(t *testing.T) {
	leaf := Store("a", nil, IntLit(1))

	b := Block(nil, leaf, nil)
	if len(b.Children) != 1 || b.Children[0] != leaf {
		t.Fatalf("expected nil children dropped, got %d children", len(b.Children))
	}
}

func TestBlockOfSingleBlockIsEmptyWhenNoChildren(t *testing.T) {
	b := Block()
	if b.Kind != SBlock || len(b.Children) != 0 {
		t.Fatalf("expected an empty Block, got %+v", b)
	}
}

func TestForIfLetConstructShape(t *testing.T) {
	body := Store("out", []Expr{IterRef("i")}, IterRef("i"))
	loop := For("i", IntLit(0), IntLit(10), 1, body, Serial)

	if loop.Kind != SFor || loop.Body != body || loop.Step != 1 {
		t.Fatalf("For did not build the expected shape: %+v", loop)
	}

	then := Store("out", nil, IntLit(1))
	cond := If(BoolLit(true), then, nil)

	if cond.Kind != SIf || cond.Then != then || cond.Else != nil {
		t.Fatalf("If did not build the expected shape: %+v", cond)
	}

	let := Let("n", IntLit(5), cond)
	if let.Kind != SLet || let.Bound.Kind != EIntLit || let.In != cond {
		t.Fatalf("Let did not build the expected shape: %+v", let)
	}
}

func TestExprConstructorsSetOperands(t *testing.T) {
	sum := Add(IntLit(1), IntLit(2))
	if sum.Kind != EAdd || sum.L.IntLit != 1 || sum.R.IntLit != 2 {
		t.Fatalf("Add did not build the expected shape: %+v", sum)
	}

	sel := Select(BoolLit(true), IntLit(1), IntLit(0))
	if sel.Kind != ESelect || sel.L.BoolLit != true || sel.R.IntLit != 1 || sel.Third.IntLit != 0 {
		t.Fatalf("Select did not build the expected shape: %+v", sel)
	}

	neg := Neg(IntLit(3))
	if neg.Kind != ENeg || neg.L.IntLit != 3 {
		t.Fatalf("Neg did not build the expected shape: %+v", neg)
	}
}
