// Package lowering computes a Program's time-processor space: the union,
// over every scheduled Computation, of the image of its iteration set under
// its schedule (SPEC_FULL.md §4.D).
package lowering

import (
	"github.com/polyforge/ploop/pkg/model"
	"github.com/polyforge/ploop/pkg/perr"
	"github.com/polyforge/ploop/pkg/presburger"
)

// TimeProcessorSpace is the result of BuildTimeProcessorSpace: the union
// time-processor set across every computation, the per-computation image
// sets and identity relations an AST build needs, and those identity
// relations folded into same-arity groups.
type TimeProcessorSpace struct {
	Union    *presburger.UnionSet
	PerComp  map[string]*presburger.Set
	Identity map[string]*presburger.Relation
	Grouped  []*presburger.Relation
}

// BuildTimeProcessorSpace computes, for each scheduled Computation C_i,
// TP_i = apply(iter(C_i), schedule(C_i)), and returns their union together
// with the identity relation on each TP_i (its range tuple name erased, so
// the eventual AST build does not produce a named-call statement for
// interior nodes). Fails with EmptyProgram if no computation exists.
func BuildTimeProcessorSpace(program *model.Program) (*TimeProcessorSpace, error) {
	comps := program.AllComputations()
	if len(comps) == 0 {
		program.Log().Warn("generate requested with no scheduled computation")
		return nil, perr.New(perr.EmptyProgram, "program %q has no computations", program.Name())
	}

	result := &TimeProcessorSpace{
		PerComp:  make(map[string]*presburger.Set, len(comps)),
		Identity: make(map[string]*presburger.Relation, len(comps)),
	}

	sets := make([]*presburger.Set, 0, len(comps))

	for _, c := range comps {
		tp, err := presburger.Apply(c.IterationSet(), c.Schedule())
		if err != nil {
			program.Log().WithError(err).WithField("computation", c.Name()).Warn("failed to apply schedule")
			return nil, err
		}

		result.PerComp[c.Name()] = tp
		result.Identity[c.Name()] = presburger.Identity(tp).WithRangeTupleName("")
		sets = append(sets, tp)
	}

	result.Union = presburger.UnionSets(sets...)
	result.Grouped = groupByArity(comps, result.Identity)

	program.Log().WithField("computations", len(comps)).WithField("relation_groups", len(result.Grouped)).
		Debug("time-processor space built")

	return result, nil
}

// groupByArity folds each computation's time-processor identity relation
// into buckets sharing the same range arity via presburger.Union, mirroring
// how a real union-relation builder merges same-space schedule maps into one
// entry before an AST build rather than carrying one map per statement.
// Distinct computations generally carry distinct tuple names, so this is a
// coarser grouping than a genuine same-space union; it exists to exercise
// and validate that operation across the whole program rather than to
// replace the per-computation identity relations BuildAstFromSchedule needs.
func groupByArity(comps []*model.Computation, identity map[string]*presburger.Relation) []*presburger.Relation {
	grouped := make([]*presburger.Relation, 0, len(comps))

outer:
	for _, c := range comps {
		rel := identity[c.Name()]

		for i, g := range grouped {
			if g.RangeArity() != rel.RangeArity() {
				continue
			}

			merged, err := presburger.Union(g, rel)
			if err != nil {
				continue
			}

			grouped[i] = merged
			continue outer
		}

		grouped = append(grouped, rel)
	}

	return grouped
}
