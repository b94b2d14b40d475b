// Package perr defines the structured error taxonomy shared by every layer
// of the polyhedral core: the façade, the literal parser, the schedule
// algebra, the time-processor lowering, and the loop-nest synthesizer. Every
// variant carries a textual Detail for display; none of it is
// locale-sensitive.
package perr

import "fmt"

// Kind identifies which of the error variants a *Error represents.
type Kind uint8

const (
	// MalformedLiteral signals bad text passed to the set/relation literal
	// parser.
	MalformedLiteral Kind = iota
	// BadPolyhedralForm signals syntactically invalid text passed to the
	// polyhedral façade.
	BadPolyhedralForm
	// SpaceMismatch signals composition of relations whose domain/range
	// tuple names or arities disagree.
	SpaceMismatch
	// InvalidLevel signals a loop-level index out of range for a schedule.
	InvalidLevel
	// InvalidFactor signals a non-positive tile or split factor.
	InvalidFactor
	// ConflictingTag signals two computations sharing a For node with
	// incompatible parallel/vector tag requests.
	ConflictingTag
	// EmptyProgram signals code generation requested with no scheduled
	// computation.
	EmptyProgram
	// MissingAccess signals code generation requested for a computation
	// whose access relation was never set.
	MissingAccess
	// BackEndError signals object emission failed; the detail is an opaque
	// message forwarded from the back end.
	BackEndError
)

// names gives each Kind its display name, used by Error() and by tests that
// want to assert on the error variant without string-matching the detail.
var names = map[Kind]string{
	MalformedLiteral:  "MalformedLiteral",
	BadPolyhedralForm: "BadPolyhedralForm",
	SpaceMismatch:     "SpaceMismatch",
	InvalidLevel:      "InvalidLevel",
	InvalidFactor:     "InvalidFactor",
	ConflictingTag:    "ConflictingTag",
	EmptyProgram:      "EmptyProgram",
	MissingAccess:     "MissingAccess",
	BackEndError:      "BackEndError",
}

func (k Kind) String() string {
	if name, ok := names[k]; ok {
		return name
	}

	return "UnknownError"
}

// Error is the concrete type behind every error this module returns. Callers
// needing to distinguish variants should use errors.As and inspect Kind,
// rather than matching on Error()'s string form.
type Error struct {
	Kind   Kind
	Detail string
}

// New constructs an *Error of the given kind with a formatted detail.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Is allows errors.Is(err, perr.MalformedLiteral) style matching against a
// bare Kind value wrapped as an error by KindError.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Kind == e.Kind
}

// KindError wraps a bare Kind so it can be used as a matching target with
// errors.Is, e.g. errors.Is(err, perr.KindError(perr.InvalidLevel)).
func KindError(kind Kind) error {
	return &Error{Kind: kind}
}
