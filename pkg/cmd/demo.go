package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/polyforge/ploop/pkg/backend"
	"github.com/polyforge/ploop/pkg/ir"
	"github.com/polyforge/ploop/pkg/model"
	"github.com/polyforge/ploop/pkg/perr"
	"github.com/polyforge/ploop/pkg/schedule"
	"github.com/polyforge/ploop/pkg/synth"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a built-in end-to-end scenario and print what it generates.",
	Run: func(cmd *cobra.Command, args []string) {
		name := getString(cmd, "scenario")
		out := getString(cmd, "out")

		scenarios := demoScenarios()

		if name == "all" {
			for _, s := range scenarios {
				runScenario(s, out)
			}

			return
		}

		for _, s := range scenarios {
			if s.name == name {
				runScenario(s, out)
				return
			}
		}

		fmt.Fprintf(os.Stderr, "unknown scenario %q; choose one of:", name)

		for _, s := range scenarios {
			fmt.Fprintf(os.Stderr, " %s", s.name)
		}

		fmt.Fprintln(os.Stderr)
		os.Exit(2)
	},
}

func init() {
	demoCmd.Flags().String("scenario", "all", "which scenario to run (or \"all\")")
	rootCmd.AddCommand(demoCmd)
}

type demoScenario struct {
	name        string
	description string
	run         func() (ir.Stmt, []ir.BufferArg, error)
}

func demoScenarios() []demoScenario {
	return []demoScenario{
		{"constant-fill", "tile a constant fill and tag the outer j-tile parallel", constantFillScenario},
		{"matrix-vector", "init/update ordered by leading schedule coordinate", matrixVectorScenario},
		{"interchange", "interchange(0,1) swaps loop order", interchangeScenario},
		{"split", "split(0,10) over a 100-iteration loop", splitScenario},
		{"missing-access", "code generation without an access relation fails with MissingAccess", missingAccessScenario},
		{"conflicting-tag", "two fused computations request incompatible tags", conflictingTagScenario},
	}
}

func runScenario(s demoScenario, out string) {
	entry := log.WithField("scenario", s.name)
	entry.Info(s.description)

	stmt, args, err := s.run()
	if err != nil {
		var perrErr *perr.Error
		if errors.As(err, &perrErr) {
			entry.WithField("kind", perrErr.Kind).Info("scenario produced the expected error")
			return
		}

		entry.WithError(err).Error("scenario failed")
		return
	}

	if err := dumpTo(backend.TextDump{}, out, stmt, args); err != nil {
		entry.WithError(err).Error("failed to emit scenario output")
	}
}

func dumpTo(b backend.BackEnd, out string, stmt ir.Stmt, args []ir.BufferArg) error {
	path := out
	useStdout := out == "-"

	if useStdout {
		f, err := os.CreateTemp("", "ploop-demo-*.txt")
		if err != nil {
			return err
		}

		path = f.Name()
		f.Close()
		defer os.Remove(path)
	}

	if err := b.EmitObject(path, "linux", "amd64", 64, stmt, args); err != nil {
		return err
	}

	if !useStdout {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(os.Stdout, f)

	return err
}

func constantFillScenario() (ir.Stmt, []ir.BufferArg, error) {
	prog := model.NewProgram("constant_fill")
	fn := model.NewFunction(prog, "fill")

	buf0, err := model.NewBuffer(fn, "buf0", model.Int64, model.OutputBuffer, []int64{1001, 1001})
	if err != nil {
		return ir.Stmt{}, nil, err
	}

	if err := fn.AddArgument(buf0); err != nil {
		return ir.Stmt{}, nil, err
	}

	comp, err := model.NewComputation(fn, "S0", "{S0[i,j] : 0 <= i <= 1000 and 0 <= j <= 1000}", model.IntE(3))
	if err != nil {
		return ir.Stmt{}, nil, err
	}

	if err := comp.SetAccess("{S0[i,j]->buf0[i,j]}"); err != nil {
		return ir.Stmt{}, nil, err
	}

	tiled, err := schedule.Tile(comp.Schedule(), 0, 1, 32, 32)
	if err != nil {
		return ir.Stmt{}, nil, err
	}

	comp.SetSchedule(tiled)

	if err := schedule.TagParallel(prog, "S0", 1); err != nil {
		return ir.Stmt{}, nil, err
	}

	stmt, err := synth.Synthesize(prog)

	return stmt, bufferArgs(fn), err
}

func matrixVectorScenario() (ir.Stmt, []ir.BufferArg, error) {
	prog := model.NewProgram("matrix_vector")
	fn := model.NewFunction(prog, "mv")

	y, err := model.NewBuffer(fn, "y", model.Float64, model.OutputBuffer, []int64{100})
	if err != nil {
		return ir.Stmt{}, nil, err
	}

	if err := fn.AddArgument(y); err != nil {
		return ir.Stmt{}, nil, err
	}

	initC, err := model.NewComputation(fn, "init", "{init[i] : 0 <= i < 100}", model.FloatE(0))
	if err != nil {
		return ir.Stmt{}, nil, err
	}

	if err := initC.SetAccess("{init[i]->y[i]}"); err != nil {
		return ir.Stmt{}, nil, err
	}

	updateC, err := model.NewComputation(fn, "update", "{update[i,k] : 0 <= i < 100 and 0 <= k < 100}",
		model.AddE(model.VarE("y"), model.VarE("a")))
	if err != nil {
		return ir.Stmt{}, nil, err
	}

	if err := updateC.SetAccess("{update[i,k]->y[i]}"); err != nil {
		return ir.Stmt{}, nil, err
	}

	stmt, err := synth.Synthesize(prog)

	return stmt, bufferArgs(fn), err
}

func interchangeScenario() (ir.Stmt, []ir.BufferArg, error) {
	prog := model.NewProgram("interchange_demo")
	fn := model.NewFunction(prog, "f")

	buf, err := model.NewBuffer(fn, "buf", model.Int64, model.OutputBuffer, []int64{0, 0})
	if err != nil {
		return ir.Stmt{}, nil, err
	}

	if err := fn.AddArgument(buf); err != nil {
		return ir.Stmt{}, nil, err
	}

	comp, err := model.NewComputation(fn, "S", "{S[i,j] : 0 <= i < N and 0 <= j < M}", model.IntE(1))
	if err != nil {
		return ir.Stmt{}, nil, err
	}

	if err := comp.SetAccess("{S[i,j]->buf[i,j]}"); err != nil {
		return ir.Stmt{}, nil, err
	}

	swapped, err := schedule.Interchange(comp.Schedule(), 0, 1)
	if err != nil {
		return ir.Stmt{}, nil, err
	}

	comp.SetSchedule(swapped)

	stmt, err := synth.Synthesize(prog)

	return stmt, bufferArgs(fn), err
}

func splitScenario() (ir.Stmt, []ir.BufferArg, error) {
	prog := model.NewProgram("split_demo")
	fn := model.NewFunction(prog, "f")

	buf, err := model.NewBuffer(fn, "buf", model.Int64, model.OutputBuffer, []int64{100})
	if err != nil {
		return ir.Stmt{}, nil, err
	}

	if err := fn.AddArgument(buf); err != nil {
		return ir.Stmt{}, nil, err
	}

	comp, err := model.NewComputation(fn, "S", "{S[i] : 0 <= i < 100}", model.IntE(1))
	if err != nil {
		return ir.Stmt{}, nil, err
	}

	if err := comp.SetAccess("{S[i]->buf[i]}"); err != nil {
		return ir.Stmt{}, nil, err
	}

	split, err := schedule.Split(comp.Schedule(), 0, 10)
	if err != nil {
		return ir.Stmt{}, nil, err
	}

	comp.SetSchedule(split)

	stmt, err := synth.Synthesize(prog)

	return stmt, bufferArgs(fn), err
}

func missingAccessScenario() (ir.Stmt, []ir.BufferArg, error) {
	prog := model.NewProgram("missing_access_demo")
	fn := model.NewFunction(prog, "f")

	if _, err := model.NewComputation(fn, "S", "{S[i] : 0 <= i < 10}", model.IntE(1)); err != nil {
		return ir.Stmt{}, nil, err
	}

	stmt, err := synth.Synthesize(prog)

	return stmt, bufferArgs(fn), err
}

func conflictingTagScenario() (ir.Stmt, []ir.BufferArg, error) {
	prog := model.NewProgram("conflicting_tag_demo")
	fn := model.NewFunction(prog, "f")

	buf, err := model.NewBuffer(fn, "buf", model.Int64, model.OutputBuffer, []int64{10})
	if err != nil {
		return ir.Stmt{}, nil, err
	}

	if err := fn.AddArgument(buf); err != nil {
		return ir.Stmt{}, nil, err
	}

	a, err := model.NewComputation(fn, "A", "{A[i] : 0 <= i < 10}", model.IntE(1))
	if err != nil {
		return ir.Stmt{}, nil, err
	}

	if err := a.SetAccess("{A[i]->buf[i]}"); err != nil {
		return ir.Stmt{}, nil, err
	}

	b, err := model.NewComputation(fn, "B", "{B[i] : 0 <= i < 10}", model.IntE(2))
	if err != nil {
		return ir.Stmt{}, nil, err
	}

	if err := b.SetAccess("{B[i]->buf[i]}"); err != nil {
		return ir.Stmt{}, nil, err
	}

	if err := schedule.TagParallel(prog, "A", 0); err != nil {
		return ir.Stmt{}, nil, err
	}

	if err := schedule.TagVector(prog, "B", 0); err != nil {
		return ir.Stmt{}, nil, err
	}

	stmt, err := synth.Synthesize(prog)

	return stmt, bufferArgs(fn), err
}

func bufferArgs(fn *model.Function) []ir.BufferArg {
	args := make([]ir.BufferArg, 0, len(fn.Arguments()))

	for _, b := range fn.Arguments() {
		args = append(args, ir.BufferArg{
			Name:    b.Name,
			Kind:    ir.BufferArgKind(b.Kind),
			Element: ir.ElementType(b.Element),
			Rank:    b.Rank(),
		})
	}

	return args
}
