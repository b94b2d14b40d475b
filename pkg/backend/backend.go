// Package backend defines the pluggable object-emission contract
// (SPEC_FULL.md §6) that consumes a synthesized ir.Stmt tree, and a
// reference text-dump implementation standing in for "lower to machine
// code or C source", which spec.md §1 explicitly excludes from the core.
package backend

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/polyforge/ploop/pkg/ir"
	"github.com/polyforge/ploop/pkg/perr"
)

// BackEnd consumes a synthesized statement tree and the buffer-argument
// descriptors for its enclosing function, emitting an object at path for the
// given target os/arch/bits triple. Failures are wrapped as BackEndError.
type BackEnd interface {
	EmitObject(path string, targetOS, arch string, bits int, stmt ir.Stmt, args []ir.BufferArg) error
}

// TextDump is a reference BackEnd that writes a deterministic textual
// rendering of the statement tree. It never fails on well-formed input;
// wraps the underlying I/O error as BackEndError otherwise.
type TextDump struct{}

// EmitObject writes stmt's textual rendering to path.
func (TextDump) EmitObject(path string, targetOS, arch string, bits int, stmt ir.Stmt, args []ir.BufferArg) error {
	f, err := os.Create(path)
	if err != nil {
		return perr.New(perr.BackEndError, "create %q: %s", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	fmt.Fprintf(w, "; target os=%s arch=%s bits=%d\n", targetOS, arch, bits)

	for _, a := range args {
		fmt.Fprintf(w, "; arg %s kind=%d element=%d rank=%d\n", a.Name, a.Kind, a.Element, a.Rank)
	}

	if err := writeStmt(w, &stmt, 0); err != nil {
		return perr.New(perr.BackEndError, "render %q: %s", path, err)
	}

	if err := w.Flush(); err != nil {
		return perr.New(perr.BackEndError, "flush %q: %s", path, err)
	}

	return nil
}

func writeStmt(w io.Writer, s *ir.Stmt, depth int) error {
	if s == nil {
		return nil
	}

	indent := func() { fmt.Fprint(w, nesting(depth)) }

	switch s.Kind {
	case ir.SFor:
		indent()
		fmt.Fprintf(w, "for %s = %s, +%s, step %d [%s] {\n", s.Iter, writeExpr(s.Min), writeExpr(s.Extent), s.Step, tagName(s.ForTag))

		if err := writeStmt(w, s.Body, depth+1); err != nil {
			return err
		}

		indent()
		fmt.Fprint(w, "}\n")
	case ir.SIf:
		indent()
		fmt.Fprintf(w, "if %s {\n", writeExpr(*s.Cond))

		if err := writeStmt(w, s.Then, depth+1); err != nil {
			return err
		}

		indent()
		fmt.Fprint(w, "}")

		if s.Else != nil {
			fmt.Fprint(w, " else {\n")

			if err := writeStmt(w, s.Else, depth+1); err != nil {
				return err
			}

			indent()
			fmt.Fprint(w, "}")
		}

		fmt.Fprint(w, "\n")
	case ir.SBlock:
		for _, c := range s.Children {
			if err := writeStmt(w, c, depth); err != nil {
				return err
			}
		}
	case ir.SStore:
		indent()

		idx := ""
		for i, e := range s.Index {
			if i > 0 {
				idx += ","
			}

			idx += writeExpr(e)
		}

		fmt.Fprintf(w, "%s[%s] = %s\n", s.Buffer, idx, writeExpr(s.Value))
	case ir.SLet:
		indent()
		fmt.Fprintf(w, "let %s = %s {\n", s.Name, writeExpr(s.Bound))

		if err := writeStmt(w, s.In, depth+1); err != nil {
			return err
		}

		indent()
		fmt.Fprint(w, "}\n")
	}

	return nil
}

func writeExpr(e ir.Expr) string {
	switch e.Kind {
	case ir.EIntLit:
		return fmt.Sprintf("%d", e.IntLit)
	case ir.EFloatLit:
		return fmt.Sprintf("%g", e.FloatLit)
	case ir.EBoolLit:
		return fmt.Sprintf("%t", e.BoolLit)
	case ir.EIterRef:
		return e.Ref
	case ir.EAdd:
		return fmt.Sprintf("(%s+%s)", writeExpr(*e.L), writeExpr(*e.R))
	case ir.ESub:
		return fmt.Sprintf("(%s-%s)", writeExpr(*e.L), writeExpr(*e.R))
	case ir.EMul:
		return fmt.Sprintf("(%s*%s)", writeExpr(*e.L), writeExpr(*e.R))
	case ir.EDiv:
		return fmt.Sprintf("(%s/%s)", writeExpr(*e.L), writeExpr(*e.R))
	case ir.EMod:
		return fmt.Sprintf("(%s%%%s)", writeExpr(*e.L), writeExpr(*e.R))
	case ir.ECmpLt:
		return fmt.Sprintf("(%s<%s)", writeExpr(*e.L), writeExpr(*e.R))
	case ir.ECmpLe:
		return fmt.Sprintf("(%s<=%s)", writeExpr(*e.L), writeExpr(*e.R))
	case ir.ECmpGt:
		return fmt.Sprintf("(%s>%s)", writeExpr(*e.L), writeExpr(*e.R))
	case ir.ECmpGe:
		return fmt.Sprintf("(%s>=%s)", writeExpr(*e.L), writeExpr(*e.R))
	case ir.ECmpEq:
		return fmt.Sprintf("(%s==%s)", writeExpr(*e.L), writeExpr(*e.R))
	case ir.EMin:
		return fmt.Sprintf("min(%s,%s)", writeExpr(*e.L), writeExpr(*e.R))
	case ir.EMax:
		return fmt.Sprintf("max(%s,%s)", writeExpr(*e.L), writeExpr(*e.R))
	case ir.EAnd:
		return fmt.Sprintf("(%s&&%s)", writeExpr(*e.L), writeExpr(*e.R))
	case ir.EOr:
		return fmt.Sprintf("(%s||%s)", writeExpr(*e.L), writeExpr(*e.R))
	case ir.ENot:
		return fmt.Sprintf("!%s", writeExpr(*e.L))
	case ir.ENeg:
		return fmt.Sprintf("-%s", writeExpr(*e.L))
	case ir.ECastInt:
		return fmt.Sprintf("int(%s)", writeExpr(*e.L))
	case ir.ECastFloat:
		return fmt.Sprintf("float(%s)", writeExpr(*e.L))
	case ir.ESelect:
		return fmt.Sprintf("(%s?%s:%s)", writeExpr(*e.L), writeExpr(*e.R), writeExpr(*e.Third))
	default:
		return "?"
	}
}

func tagName(t ir.Tag) string {
	switch t {
	case ir.Parallel:
		return "parallel"
	case ir.Vectorized:
		return "vector"
	default:
		return "serial"
	}
}

func nesting(depth int) string {
	out := make([]byte, depth*2)
	for i := range out {
		out[i] = ' '
	}

	return string(out)
}
