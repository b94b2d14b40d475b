package lowering

import (
	"errors"
	"testing"

	"github.com/polyforge/ploop/pkg/model"
	"github.com/polyforge/ploop/pkg/perr"
)

func mustComp(t *testing.T, fn *model.Function, name, iter string) *model.Computation {
	t.Helper()

	c, err := model.NewComputation(fn, name, iter, model.IntE(0))
	if err != nil {
		t.Fatalf("NewComputation(%s): %v", name, err)
	}

	return c
}

func TestBuildTimeProcessorSpaceEmptyProgram(t *testing.T) {
	prog := model.NewProgram("empty")

	_, err := BuildTimeProcessorSpace(prog)
	if err == nil {
		t.Fatalf("expected EmptyProgram for a program with no computations")
	}

	var perrErr *perr.Error
	if !errors.As(err, &perrErr) || perrErr.Kind != perr.EmptyProgram {
		t.Fatalf("expected an EmptyProgram perr.Error, got %v", err)
	}
}

// union commutativity (spec.md §8): the time-processor set does not depend
// on the order computations were declared in.
func TestUnionDoesNotDependOnDeclarationOrder(t *testing.T) {
	progAB := model.NewProgram("ab")
	fnAB := model.NewFunction(progAB, "f")
	mustComp(t, fnAB, "A", "{A[i] : 0 <= i < 10}")
	mustComp(t, fnAB, "B", "{B[i] : 0 <= i < 20}")

	progBA := model.NewProgram("ba")
	fnBA := model.NewFunction(progBA, "f")
	mustComp(t, fnBA, "B", "{B[i] : 0 <= i < 20}")
	mustComp(t, fnBA, "A", "{A[i] : 0 <= i < 10}")

	ab, err := BuildTimeProcessorSpace(progAB)
	if err != nil {
		t.Fatalf("BuildTimeProcessorSpace(ab): %v", err)
	}

	ba, err := BuildTimeProcessorSpace(progBA)
	if err != nil {
		t.Fatalf("BuildTimeProcessorSpace(ba): %v", err)
	}

	if len(ab.Union.Sets) != len(ba.Union.Sets) {
		t.Fatalf("expected the same number of constituent sets regardless of order, got %d vs %d",
			len(ab.Union.Sets), len(ba.Union.Sets))
	}

	namesAB := map[string]bool{}
	for _, s := range ab.Union.Sets {
		namesAB[s.TupleName()] = true
	}

	for _, s := range ba.Union.Sets {
		if !namesAB[s.TupleName()] {
			t.Fatalf("tuple %q present in the ba ordering but not ab", s.TupleName())
		}
	}
}

func TestPerComputationImageMatchesIterationSet(t *testing.T) {
	prog := model.NewProgram("p")
	fn := model.NewFunction(prog, "f")

	mustComp(t, fn, "A", "{A[i] : 0 <= i < 10}")

	result, err := BuildTimeProcessorSpace(prog)
	if err != nil {
		t.Fatalf("BuildTimeProcessorSpace: %v", err)
	}

	tp, ok := result.PerComp["A"]
	if !ok {
		t.Fatalf("expected a time-processor set for A")
	}

	if tp.NumDims() != 1 {
		t.Fatalf("expected A's time-processor set to keep arity 1 under the identity schedule, got %d", tp.NumDims())
	}

	if _, ok := result.Identity["A"]; !ok {
		t.Fatalf("expected an identity relation recorded for A")
	}

	if result.Identity["A"].RangeTupleName() != "" {
		t.Fatalf("expected the time-processor identity relation's range tuple name erased, got %q",
			result.Identity["A"].RangeTupleName())
	}
}
