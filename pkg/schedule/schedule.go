// Package schedule implements the named loop transformations (split,
// interchange, tile) as rewrites of a presburger.Relation, plus
// tag_parallel/tag_vector and identity-schedule construction
// (SPEC_FULL.md §4.C). Every transformation returns a new Relation; none
// mutate their input, matching the façade's own no-mutation contract.
package schedule

import (
	"github.com/polyforge/ploop/pkg/perr"
	"github.com/polyforge/ploop/pkg/presburger"
)

// IdentitySchedule constructs {C[i_0,...] -> C[i_0,...] : constraints_of_iter(C)}
// directly from the parsed iteration set structure, without any text
// round-trip (Open Question (a), SPEC_FULL.md §9).
func IdentitySchedule(iter *presburger.Set) *presburger.Relation {
	return presburger.Identity(iter)
}

// Split replaces output dimension d with two dimensions i_d^o, i_d^i such
// that i_d = i_d^o*f + i_d^i and 0 <= i_d^i < f. New range arity is m+1.
// Fails with InvalidLevel if d is out of range, InvalidFactor if f <= 0.
func Split(schedule *presburger.Relation, d int, f int64) (*presburger.Relation, error) {
	m := schedule.RangeArity()

	if d < 0 || d >= m {
		return nil, perr.New(perr.InvalidLevel, "split level %d out of range [0,%d)", d, m)
	}

	if f <= 0 {
		return nil, perr.New(perr.InvalidFactor, "split factor %d must be positive", f)
	}

	exprs := schedule.RangeExprs()
	outer, inner := presburger.SplitPair(exprs[d], f)

	next := append(exprs[:d:d], outer, inner)
	next = append(next, exprs[d+1:]...)

	rangeSpace := schedule.RangeSpace()
	rangeSpace.Dims = insertDim(rangeSpace.Dims, d)

	return presburger.NewRelation(schedule.DomainSpace(), rangeSpace, next), nil
}

// Interchange swaps output dimensions d1 and d2. Fails with InvalidLevel if
// either index is out of range or the two are equal.
func Interchange(schedule *presburger.Relation, d1, d2 int) (*presburger.Relation, error) {
	m := schedule.RangeArity()

	if d1 < 0 || d1 >= m || d2 < 0 || d2 >= m {
		return nil, perr.New(perr.InvalidLevel, "interchange levels (%d,%d) out of range [0,%d)", d1, d2, m)
	}

	if d1 == d2 {
		return nil, perr.New(perr.InvalidLevel, "interchange requires distinct levels, got %d twice", d1)
	}

	exprs := schedule.RangeExprs()
	exprs[d1], exprs[d2] = exprs[d2], exprs[d1]

	return presburger.NewRelation(schedule.DomainSpace(), schedule.RangeSpace(), exprs), nil
}

// Tile is exactly split(d1,f1); split(d2+1,f2); interchange(d1+1,d2+1), the
// composition SPEC_FULL.md §4.C defines. Contract: d1 < d2 == d1+1, f1,f2 > 0.
// After the operation the loop order is (d1^o, d2^o, d1^i, d2^i) at levels
// d1, d2, d1+2, d2+2.
func Tile(schedule *presburger.Relation, d1, d2 int, f1, f2 int64) (*presburger.Relation, error) {
	if d2 != d1+1 {
		return nil, perr.New(perr.InvalidLevel, "tile requires d2 == d1+1, got d1=%d d2=%d", d1, d2)
	}

	s, err := Split(schedule, d1, f1)
	if err != nil {
		return nil, err
	}

	s, err = Split(s, d2+1, f2)
	if err != nil {
		return nil, err
	}

	return Interchange(s, d1+1, d2+1)
}

// Tagger is the minimal surface TagParallel/TagVector need from a Program.
// *model.Program satisfies it; this package does not import pkg/model.
type Tagger interface {
	TagParallelDimension(compName string, level int) error
	TagVectorDimension(compName string, level int) error
}

// TagParallel records that computation compName's loop level should be
// tagged parallel in program. Fails with ConflictingTag if that level is
// already tagged vector.
func TagParallel(program Tagger, compName string, level int) error {
	return program.TagParallelDimension(compName, level)
}

// TagVector records that computation compName's loop level should be
// tagged vector in program. Fails with ConflictingTag if that level is
// already tagged parallel.
func TagVector(program Tagger, compName string, level int) error {
	return program.TagVectorDimension(compName, level)
}

func insertDim(dims []string, at int) []string {
	out := make([]string, 0, len(dims)+1)
	out = append(out, dims[:at]...)
	out = append(out, "", "")
	out = append(out, dims[at+1:]...)

	return out
}
