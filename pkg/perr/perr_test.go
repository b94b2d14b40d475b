package perr

import (
	"errors"
	"testing"
)

func TestErrorKindMatching(t *testing.T) {
	err := New(InvalidLevel, "level %d out of range", 4)

	if !errors.Is(err, KindError(InvalidLevel)) {
		t.Fatalf("expected error to match InvalidLevel, got %v", err)
	}

	if errors.Is(err, KindError(InvalidFactor)) {
		t.Fatalf("did not expect error to match InvalidFactor")
	}
}

func TestErrorMessageIncludesKindAndDetail(t *testing.T) {
	err := New(MissingAccess, "computation %q has no access relation", "S0")

	want := "MissingAccess: computation \"S0\" has no access relation"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}
