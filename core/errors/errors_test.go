package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      *NotFoundError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with ID",
			err:      &NotFoundError{Resource: "citation group", ID: "CS_cite_1_abc_0"},
			wantMsg:  "citation group not found: CS_cite_1_abc_0",
			wantBase: ErrNotFound,
		},
		{
			name:     "without ID",
			err:      &NotFoundError{Resource: "anchor"},
			wantMsg:  "anchor not found",
			wantBase: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}

	t.Run("with underlying error", func(t *testing.T) {
		underlyingErr := fmt.Errorf("property store offline")
		err := &NotFoundError{Resource: "record", ID: "x", Err: underlyingErr}
		if got := err.Unwrap(); got != underlyingErr {
			t.Errorf("Unwrap() = %v, want %v", got, underlyingErr)
		}
	})
}

func TestValidationError(t *testing.T) {
	err := NewValidation("keys", "at least one citation key is required")
	if got := err.Error(); got != "validation failed for keys: at least one citation key is required" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ValidationError should unwrap to ErrInvalidInput")
	}

	bare := &ValidationError{Message: "invalid format"}
	if got := bare.Error(); got != "validation failed: invalid format" {
		t.Errorf("Error() = %q", got)
	}
}

func TestIOError(t *testing.T) {
	base := fmt.Errorf("disk full")
	err := NewIO("write", "/tmp/doc.json.xz", base)
	if got := err.Error(); got != "failed to write /tmp/doc.json.xz: disk full" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, base) {
		t.Error("IOError should unwrap to the underlying error")
	}

	noPath := &IOError{Operation: "read", Err: base}
	if got := noPath.Error(); got != "failed to read: disk full" {
		t.Errorf("Error() = %q", got)
	}
}

func TestParseError(t *testing.T) {
	err := NewParse("mark name", "JR_cite_x", "unexpected token")
	if got := err.Error(); got != "failed to parse mark name at JR_cite_x: unexpected token" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ParseError should unwrap to ErrInvalidInput")
	}
}

func TestUnsupportedError(t *testing.T) {
	err := NewUnsupported("data model", "unknown variant")
	if got := err.Error(); got != "unsupported data model: unknown variant" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrUnsupported) {
		t.Error("UnsupportedError should unwrap to ErrUnsupported")
	}
}

func TestPreconditionError(t *testing.T) {
	err := NewPrecondition("view cursor", "Please move the cursor into the document text.")
	if got := err.Error(); got != "view cursor unavailable: Please move the cursor into the document text." {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrPrecondition) {
		t.Error("PreconditionError should unwrap to ErrPrecondition")
	}
	if got := UserMessage(fmt.Errorf("visual order: %w", err)); got != "Please move the cursor into the document text." {
		t.Errorf("UserMessage() = %q", got)
	}
}

func TestCorruptionError(t *testing.T) {
	err := NewCorruption("CS_cite_1_ab_0", "fewer than two placeholder units after recreation")
	if !errors.Is(err, ErrCorrupted) {
		t.Error("CorruptionError should unwrap to ErrCorrupted")
	}
	msg := UserMessage(Wrap(err, "fill citation"))
	if !strings.Contains(msg, "CS_cite_1_ab_0") || !strings.Contains(msg, "reopen the document") {
		t.Errorf("UserMessage() = %q", msg)
	}
}

func TestInvariantError(t *testing.T) {
	err := NewInvariant("fold", "number mismatch for %q: %d vs %d", "A", 1, 2)
	want := `fold: invariant violated: number mismatch for "A": 1 vs 2`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrInvariant) {
		t.Error("InvariantError should unwrap to ErrInvariant")
	}
	if got := UserMessage(err); got != want {
		t.Errorf("UserMessage() should pass invariant errors through, got %q", got)
	}
}

func TestOverlapError(t *testing.T) {
	single := &OverlapError{Reports: []string{"(A) overlaps (B)"}}
	if got := single.Error(); got != "found overlapping or touching citations: (A) overlaps (B)" {
		t.Errorf("Error() = %q", got)
	}
	multi := &OverlapError{Reports: []string{"one", "two"}}
	if !strings.Contains(multi.Error(), "\n  one\n  two") {
		t.Errorf("Error() = %q", multi.Error())
	}
	if !errors.Is(multi, ErrOverlap) {
		t.Error("OverlapError should unwrap to ErrOverlap")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	base := errors.New("base")
	wrapped := Wrap(base, "context")
	if wrapped.Error() != "context: base" {
		t.Errorf("Wrap() = %q", wrapped.Error())
	}
	if !Is(wrapped, base) {
		t.Error("wrapped error should match base")
	}
}

func TestWrapf(t *testing.T) {
	if Wrapf(nil, "context %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}
	base := errors.New("base")
	wrapped := Wrapf(base, "group %s", "g1")
	if wrapped.Error() != "group g1: base" {
		t.Errorf("Wrapf() = %q", wrapped.Error())
	}
}

func TestAs(t *testing.T) {
	err := Wrap(NewNotFound("anchor", "m1"), "locate")
	var nf *NotFoundError
	if !As(err, &nf) {
		t.Fatal("As() should find NotFoundError")
	}
	if nf.ID != "m1" {
		t.Errorf("ID = %q, want m1", nf.ID)
	}
}
