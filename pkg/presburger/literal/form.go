package literal

// ExprKind identifies the shape of a parsed affine expression.
type ExprKind uint8

// Expression kinds the literal grammar supports. This is intentionally a
// small affine fragment (no multiplication of two non-constants, no
// division) — sufficient for loop bounds and buffer index expressions, not a
// general expression language.
const (
	EConst ExprKind = iota
	EIdent
	EAdd
	ESub
	EMul
)

// Expr is a parsed affine expression tree, e.g. "i+1" or "2*i".
type Expr struct {
	Kind  ExprKind
	Value int64
	Name  string
	L, R  *Expr
}

// CmpOp identifies a comparison operator within a constraint chain.
type CmpOp uint8

// Comparison operators recognised between expressions in a constraint.
const (
	OpLt CmpOp = iota
	OpLe
	OpGt
	OpGe
	OpEq
)

// Chain is a sequence of expressions linked by comparison operators, e.g.
// "0 <= i < N" parses to the chain [0, <=, i, <, N].
type Chain struct {
	Exprs []*Expr
	Ops   []CmpOp
}

// Form is the fully parsed shape of one literal: the optional parameter
// list, the domain tuple name and dimension names, the optional range tuple
// name and dimension expressions (present only for relation literals), and
// the conjunction of constraint chains.
type Form struct {
	Params      []string
	DomainName  string
	DomainDims  []string
	IsRelation  bool
	RangeName   string
	RangeDims   []*Expr
	Constraints []Chain
}
