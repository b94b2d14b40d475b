package model

import "github.com/polyforge/ploop/pkg/perr"

// ElementType is a Buffer's scalar element type.
type ElementType uint8

const (
	Int32 ElementType = iota
	Int64
	Float32
	Float64
	Bool
)

// BufferKind classifies a Buffer's role in a Function's calling convention,
// matching the back-end contract's buffer-argument descriptor kinds
// (SPEC_FULL.md §6).
type BufferKind uint8

const (
	InputScalar BufferKind = iota
	InputBuffer
	OutputBuffer
)

// Buffer is a named, ranked block of memory a Function reads or writes.
// Invariant: len(Extents) == rank, rank >= 1 (SPEC_FULL.md §3).
type Buffer struct {
	Name    string
	Element ElementType
	Kind    BufferKind
	Extents []int64 // dimension extents; a 0 entry marks a parametric extent, whose size is not recorded
	Data    []byte  // optional backing data for input buffers; nil otherwise

	function *Function
}

// NewBuffer constructs a Buffer owned by fn. Fails with BadPolyhedralForm if
// extents is empty.
func NewBuffer(fn *Function, name string, element ElementType, kind BufferKind, extents []int64) (*Buffer, error) {
	if len(extents) == 0 {
		return nil, perr.New(perr.BadPolyhedralForm, "buffer %q must have rank >= 1", name)
	}

	b := &Buffer{
		Name:     name,
		Element:  element,
		Kind:     kind,
		Extents:  append([]int64(nil), extents...),
		function: fn,
	}

	fn.buffers[name] = b

	return b, nil
}

// Rank returns the buffer's declared rank.
func (b *Buffer) Rank() int {
	return len(b.Extents)
}

// Function returns the owning Function.
func (b *Buffer) Function() *Function {
	return b.function
}
