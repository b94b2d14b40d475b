package model

import "github.com/polyforge/ploop/pkg/perr"

// Function is an ordered list of argument Buffers (the calling convention),
// a set of owned Buffers, and an unordered collection of Computations
// (SPEC_FULL.md §3). The relative order of Computations does not influence
// execution order; only schedules do.
type Function struct {
	name         string
	arguments    []*Buffer
	buffers      map[string]*Buffer
	computations []*Computation
	program      *Program
}

// NewFunction constructs a Function owned by program and registers it.
func NewFunction(program *Program, name string) *Function {
	fn := &Function{
		name:    name,
		buffers: make(map[string]*Buffer),
		program: program,
	}

	program.functions = append(program.functions, fn)
	program.log.WithField("function", name).Debug("function declared")

	return fn
}

// Name returns the function's name.
func (f *Function) Name() string {
	return f.name
}

// AddArgument appends an already-owned Buffer to the calling convention,
// in call order. Fails with BadPolyhedralForm if buf is not owned by f.
func (f *Function) AddArgument(buf *Buffer) error {
	if owned, ok := f.buffers[buf.Name]; !ok || owned != buf {
		return perr.New(perr.BadPolyhedralForm, "buffer %q is not owned by function %q", buf.Name, f.name)
	}

	f.arguments = append(f.arguments, buf)

	return nil
}

// Arguments returns the ordered argument list.
func (f *Function) Arguments() []*Buffer {
	return append([]*Buffer(nil), f.arguments...)
}

// Buffer looks up an owned buffer by name.
func (f *Function) Buffer(name string) (*Buffer, bool) {
	b, ok := f.buffers[name]
	return b, ok
}

// Computations returns the function's computations, in declaration order
// (an implementation detail; execution order is determined by schedules,
// never by this order).
func (f *Function) Computations() []*Computation {
	return append([]*Computation(nil), f.computations...)
}

// Program returns the owning Program.
func (f *Function) Program() *Program {
	return f.program
}
