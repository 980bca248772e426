// Package document defines the contracts citesync needs from the external,
// independently edited text document.
//
// The document is weakly typed and offers no transactions. Ranges are opaque:
// positions are never exposed as numbers, and two ranges are comparable only
// when they belong to the same Stream. Everything in this package is consumed
// from a single logical thread; implementations need not be safe for
// concurrent use.
package document

import "fmt"

// StreamKind classifies an independent text stream of a document.
type StreamKind string

// Stream kind constants.
const (
	StreamBody     StreamKind = "body"
	StreamFootnote StreamKind = "footnote"
	StreamFrame    StreamKind = "frame"
	StreamSection  StreamKind = "section"
)

// Stream identifies one independent text stream. It is comparable and may be
// used as a map key.
type Stream struct {
	ID   string
	Kind StreamKind
}

func (s Stream) String() string {
	return fmt.Sprintf("%s:%s", s.Kind, s.ID)
}

// Range is an opaque region inside one stream.
type Range interface {
	// Stream returns the stream holding this range.
	Stream() Stream

	// Start returns the collapsed range at the start of this range.
	Start() Range

	// End returns the collapsed range at the end of this range.
	End() Range
}

// RangeComparer is the document's native three-way comparison. Both ranges
// must belong to the same stream; the result is negative when a is before b.
type RangeComparer interface {
	CompareStarts(a, b Range) (int, error)
	CompareEnds(a, b Range) (int, error)
}

// TextEditor reads and writes text through ranges.
type TextEditor interface {
	// Text returns the text covered by r.
	Text(r Range) (string, error)

	// SetText replaces the text covered by r and returns the range of the new text.
	SetText(r Range, text string) (Range, error)

	// Offset returns the collapsed range n characters after the start of r
	// (before it when n is negative).
	Offset(r Range, n int) (Range, error)

	// Span returns the range from the start of from to the end of to.
	Span(from, to Range) (Range, error)
}

// MarkStore manages named marks: ranges that follow the text they cover
// while the document is edited.
type MarkStore interface {
	// CreateMark inserts content at the start of at and marks the inserted text
	// with name. Empty content yields a collapsed mark.
	CreateMark(name string, at Range, content string) (Range, error)

	// MarkRange returns the current range of the named mark. The boolean is
	// false when the mark no longer exists.
	MarkRange(name string) (Range, bool, error)

	// RemoveMark removes the mark, leaving its text in place.
	RemoveMark(name string) error

	// MarkNames lists all marks in the document.
	MarkNames() ([]string, error)
}

// FootnoteLocator maps ranges inside footnote bodies to their markers.
type FootnoteLocator interface {
	// FootnoteMarker returns the range of the footnote marker in the
	// enclosing stream when r lies inside a footnote body.
	FootnoteMarker(r Range) (Range, bool, error)
}

// Point is an on-screen position. Y grows downward.
type Point struct {
	Y int
	X int
}

// ViewCursor is the live cursor of the document's active view. Moving it
// moves what the user sees.
type ViewCursor interface {
	// Selection returns the current selection.
	Selection() (Range, error)

	// Select restores a selection previously obtained from Selection.
	Select(r Range) error

	// GotoRange moves the cursor to the start of r.
	GotoRange(r Range) error

	// Position returns the on-screen position of the cursor.
	Position() (Point, error)
}

// ViewCursorProvider gives access to the live view cursor. Implementations
// return a precondition error when the focus is not in the document text.
type ViewCursorProvider interface {
	ViewCursor() (ViewCursor, error)
}

// PropertyStore is the document-scoped key/value store used for metadata
// that does not live inside anchors.
type PropertyStore interface {
	Property(name string) (string, bool, error)
	SetProperty(name, value string) error
	RemoveProperty(name string) error
	PropertyNames() ([]string, error)
}

// ControllerLocker suppresses screen updates. Locks nest; every
// LockControllers must be paired with exactly one UnlockControllers.
type ControllerLocker interface {
	LockControllers()
	UnlockControllers() error
	ControllersLocked() bool
}

// Document is everything citesync consumes from the external document.
type Document interface {
	RangeComparer
	TextEditor
	MarkStore
	FootnoteLocator
	ViewCursorProvider
	PropertyStore
	ControllerLocker
}

// WithControllersLocked runs fn with screen updates suppressed and unlocks on
// every path, including panics.
func WithControllersLocked(locker ControllerLocker, fn func() error) (err error) {
	locker.LockControllers()
	defer func() {
		if unlockErr := locker.UnlockControllers(); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}()
	return fn()
}

// CompareStartsThenEnds orders two ranges of the same stream by start, then end.
func CompareStartsThenEnds(cmp RangeComparer, a, b Range) (int, error) {
	res, err := cmp.CompareStarts(a, b)
	if err != nil || res != 0 {
		return res, err
	}
	return cmp.CompareEnds(a, b)
}
