// Package stategen is the optional exhaustive state generator: it enumerates
// candidate transformation sequences over a simplified syntax-tree view of a
// Program's generated loop nest (SPEC_FULL.md §4.F). It is grounded directly
// on tiramisu_states_generator.cpp's four generate_* passes and is not wired
// into Program/synth.Synthesize by default; callers opt in explicitly.
package stategen

import (
	"runtime"
	"sync"

	"github.com/polyforge/ploop/pkg/model"
	"github.com/polyforge/ploop/pkg/presburger"
)

// Kind identifies which transformation an OptimizationInfo candidate
// proposes.
type Kind uint8

const (
	Fusion Kind = iota
	Tiling
	Interchange
	Unrolling
)

// TreeNode is one loop level (or, at a leaf, one computation) in the
// simplified syntax-tree view stategen searches over. Boundary-guard If
// nodes from the polyhedral AST are not represented here; they are a
// codegen-time detail, not a loop level a transformation can target.
type TreeNode struct {
	Name  string // iterator name; empty at a leaf
	Low   *presburger.Expr
	Up    *presburger.Expr
	Depth int

	Comp      string // computation name, set only at a leaf
	CompIndex uint   // registry index of the computation at or below this node

	Children []*TreeNode
}

// OptimizationInfo records one candidate transformation: its kind, the node
// it targets, the levels and factors it needs, and the computations it
// affects (SPEC_FULL.md §4.F).
type OptimizationInfo struct {
	Kind         Kind
	Node         *TreeNode
	Levels       []int
	Factors      []int64
	Computations []string
}

// BuildForest constructs one TreeNode chain per scheduled computation in
// program, mirroring the original's per-root ast.roots list.
func BuildForest(program *model.Program) ([]*TreeNode, error) {
	comps := program.AllComputations()
	roots := make([]*TreeNode, 0, len(comps))

	for _, c := range comps {
		astRoot, err := presburger.BuildAstFromSchedule(c.IterationSet(), c.Schedule(), presburger.AstBuildHooks{})
		if err != nil {
			return nil, err
		}

		roots = append(roots, convertThroughIf(program, astRoot, 0))
	}

	return roots, nil
}

func convertThroughIf(program *model.Program, node *presburger.AstNode, depth int) *TreeNode {
	switch node.Kind {
	case presburger.AstIf:
		return convertThroughIf(program, node.If.Then, depth)
	case presburger.AstFor:
		tn := &TreeNode{Name: node.For.Iter, Low: node.For.Lo, Up: node.For.Hi, Depth: depth}
		if child := convertThroughIf(program, node.For.Body, depth+1); child != nil {
			tn.Children = []*TreeNode{child}
			tn.CompIndex = child.CompIndex
		}

		return tn
	case presburger.AstUserStmt:
		idx, _ := program.ComputationIndex(node.UserStmt.Name)
		return &TreeNode{Comp: node.UserStmt.Name, CompIndex: idx, Depth: depth}
	default:
		return nil
	}
}

// chainDepth returns the deepest absolute depth reachable from node by
// following single-child (perfect-nest) links, i.e. node's own depth when
// node has no child or more than one child.
func chainDepth(node *TreeNode) int {
	depth := node.Depth
	cur := node

	for len(cur.Children) == 1 {
		cur = cur.Children[0]
		depth = cur.Depth
	}

	return depth
}

func canSplit(extent, factor int64) bool {
	return factor > 0 && extent > 0 && extent%factor == 0
}

// extentOf returns a loop node's trip count, when its bounds are both
// constant; ok is false for a parametric extent, which no factor in a
// configured list can be checked against.
func extentOf(node *TreeNode) (int64, bool) {
	lo, ok := node.Low.AsConstant()
	if !ok {
		return 0, false
	}

	hi, ok := node.Up.AsConstant()
	if !ok {
		return 0, false
	}

	return hi - lo, true
}

func leftmostComputation(node *TreeNode) string {
	for node.Comp == "" && len(node.Children) > 0 {
		node = node.Children[0]
	}

	return node.Comp
}

func rightmostComputation(node *TreeNode) string {
	for node.Comp == "" && len(node.Children) > 0 {
		node = node.Children[len(node.Children)-1]
	}

	return node.Comp
}

func allComputations(node *TreeNode) []string {
	if node.Comp != "" {
		return []string{node.Comp}
	}

	var out []string

	for _, c := range node.Children {
		out = append(out, allComputations(c)...)
	}

	return out
}

func cloneTree(node *TreeNode) *TreeNode {
	clone := *node

	clone.Children = make([]*TreeNode, len(node.Children))
	for i, c := range node.Children {
		clone.Children[i] = cloneTree(c)
	}

	return &clone
}

// GenerateFusions emits, for every pair of sibling loop nodes at the same
// tree level whose name and bounds are identical and neither is already
// marked unrolled, a candidate that fuses them.
func GenerateFusions(program *model.Program, level []*TreeNode) []OptimizationInfo {
	var infos []OptimizationInfo

	for i := 0; i < len(level); i++ {
		if level[i].Comp != "" || program.IsUnrolled(level[i].CompIndex) {
			continue
		}

		for j := i + 1; j < len(level); j++ {
			if level[j].Comp != "" || program.IsUnrolled(level[j].CompIndex) {
				continue
			}

			if level[i].Name != level[j].Name || !boundsEqual(level[i], level[j]) {
				continue
			}

			infos = append(infos, OptimizationInfo{
				Kind:         Fusion,
				Node:         cloneTree(level[i]),
				Levels:       []int{i, j},
				Factors:      []int64{int64(level[i].Depth)},
				Computations: []string{rightmostComputation(level[i]), leftmostComputation(level[j])},
			})
		}
	}

	var nextLevel []*TreeNode
	for _, n := range level {
		nextLevel = append(nextLevel, n.Children...)
	}

	if len(nextLevel) > 0 {
		infos = append(infos, GenerateFusions(program, nextLevel)...)
	}

	return infos
}

// GenerateParallel runs the same enumeration GenerateFusions,
// GenerateTilings, GenerateInterchanges, and GenerateUnrollings perform,
// fanning candidate evaluation for each root out across goroutines bounded
// by GOMAXPROCS (SPEC_FULL.md §5). It is the explicit opt-in the exhaustive
// generator's default sequential path does not take on its own. program is
// only ever read concurrently; each goroutine works from its own cloneTree
// copy of its root before any candidate touches it, so no two goroutines
// share a TreeNode.
func GenerateParallel(program *model.Program, forest []*TreeNode, factors []int64) []OptimizationInfo {
	fusions := GenerateFusions(program, forest)

	sem := make(chan struct{}, runtime.GOMAXPROCS(0))

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		infos = append([]OptimizationInfo(nil), fusions...)
	)

	for _, root := range forest {
		root := root

		wg.Add(1)
		sem <- struct{}{}

		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			clone := cloneTree(root)

			found := GenerateTilings(clone, factors)
			found = append(found, GenerateInterchanges(program, clone)...)
			found = append(found, GenerateUnrollings(program, clone, factors)...)

			mu.Lock()
			infos = append(infos, found...)
			mu.Unlock()
		}()
	}

	wg.Wait()

	return infos
}

func boundsEqual(a, b *TreeNode) bool {
	return presburger.ExprEqual(a.Low, b.Low) && presburger.ExprEqual(a.Up, b.Up)
}

// GenerateTilings emits, for every node with at least two nested levels
// forming a perfect-nest chain, a 2D tiling candidate for every pair of
// factors that evenly divide the respective extents (and a 3D candidate
// when a third chain level exists).
func GenerateTilings(node *TreeNode, factors []int64) []OptimizationInfo {
	var infos []OptimizationInfo

	branchDepth := chainDepth(node)

	if node.Depth+1 < branchDepth {
		extent1, ok1 := extentOf(node)
		node2 := node.Children[0]

		for _, f1 := range factors {
			if !ok1 || !canSplit(extent1, f1) {
				continue
			}

			extent2, ok2 := extentOf(node2)

			for _, f2 := range factors {
				if !ok2 || !canSplit(extent2, f2) {
					continue
				}

				infos = append(infos, OptimizationInfo{
					Kind:         Tiling,
					Node:         cloneTree(node),
					Levels:       []int{node.Depth, node.Depth + 1},
					Factors:      []int64{f1, f2},
					Computations: allComputations(node),
				})

				if node.Depth+2 < branchDepth {
					node3 := node2.Children[0]
					extent3, ok3 := extentOf(node3)

					for _, f3 := range factors {
						if !ok3 || !canSplit(extent3, f3) {
							continue
						}

						infos = append(infos, OptimizationInfo{
							Kind:         Tiling,
							Node:         cloneTree(node),
							Levels:       []int{node.Depth, node.Depth + 1, node.Depth + 2},
							Factors:      []int64{f1, f2, f3},
							Computations: allComputations(node),
						})
					}
				}
			}
		}
	}

	for _, c := range node.Children {
		infos = append(infos, GenerateTilings(c, factors)...)
	}

	return infos
}

// GenerateInterchanges emits, for every node not marked unrolled, a
// candidate swapping it with each strict descendant in its perfect-nest
// chain.
func GenerateInterchanges(program *model.Program, node *TreeNode) []OptimizationInfo {
	var infos []OptimizationInfo

	if !program.IsUnrolled(node.CompIndex) {
		branchDepth := chainDepth(node)

		for i := node.Depth + 1; i < branchDepth; i++ {
			infos = append(infos, OptimizationInfo{
				Kind:         Interchange,
				Node:         cloneTree(node),
				Levels:       []int{node.Depth, i},
				Computations: allComputations(node),
			})
		}
	}

	for _, c := range node.Children {
		infos = append(infos, GenerateInterchanges(program, c)...)
	}

	return infos
}

// GenerateUnrollings emits, for every node not marked unrolled whose extent
// equals a factor from the list or is evenly divided by one, an unrolling
// candidate.
func GenerateUnrollings(program *model.Program, node *TreeNode, factors []int64) []OptimizationInfo {
	var infos []OptimizationInfo

	if !program.IsUnrolled(node.CompIndex) {
		extent, ok := extentOf(node)

		for _, f := range factors {
			if !ok || (extent != f && !canSplit(extent, f)) {
				continue
			}

			infos = append(infos, OptimizationInfo{
				Kind:         Unrolling,
				Node:         cloneTree(node),
				Levels:       []int{node.Depth},
				Factors:      []int64{f},
				Computations: allComputations(node),
			})
		}
	}

	for _, c := range node.Children {
		infos = append(infos, GenerateUnrollings(program, c, factors)...)
	}

	return infos
}
