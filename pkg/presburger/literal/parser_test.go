package literal

import "testing"

func TestParseSetLiteral(t *testing.T) {
	form, err := Parse("{S0[i,j] : 0 <= i <= 1000 and 0 <= j <= 1000}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if form.DomainName != "S0" {
		t.Fatalf("got domain name %q", form.DomainName)
	}

	if len(form.DomainDims) != 2 || form.DomainDims[0] != "i" || form.DomainDims[1] != "j" {
		t.Fatalf("got dims %v", form.DomainDims)
	}

	if len(form.Constraints) != 2 {
		t.Fatalf("got %d constraint chains, want 2", len(form.Constraints))
	}

	chain := form.Constraints[0]
	if len(chain.Exprs) != 3 || len(chain.Ops) != 2 {
		t.Fatalf("got malformed chain: %+v", chain)
	}
}

func TestParseAccessRelation(t *testing.T) {
	form, err := Parse("{S0[i,j]->buf0[i,j]}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !form.IsRelation {
		t.Fatalf("expected a relation literal")
	}

	if form.RangeName != "buf0" || len(form.RangeDims) != 2 {
		t.Fatalf("got range name %q dims %v", form.RangeName, form.RangeDims)
	}
}

func TestParseMalformedLiteral(t *testing.T) {
	if _, err := Parse("{S0[i,j] : 0 <= }"); err == nil {
		t.Fatalf("expected a parse error")
	}
}

func TestParseParametricBound(t *testing.T) {
	form, err := Parse("{S[i,j] : 0 <= i < N and 0 <= j < M}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(form.DomainDims) != 2 {
		t.Fatalf("got dims %v", form.DomainDims)
	}
}
