package visualorder

import (
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/FocuswithJustin/citesync/core/document"
	"github.com/FocuswithJustin/citesync/core/errors"
	"github.com/FocuswithJustin/citesync/core/memdoc"
)

func point(t *testing.T, doc *memdoc.Document, s document.Stream, offset int) document.Range {
	t.Helper()
	r, err := doc.PointAt(s, offset)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func joined(ps []string) string { return strings.Join(ps, ",") }

func TestResolveFrameBetweenLines(t *testing.T) {
	doc := memdoc.NewWithText("aaaa\nbbbb")
	frame := doc.AddFrame("ff", document.Point{Y: 10, X: 400})
	entries := []Entry[string]{
		{Range: point(t, doc, doc.Body(), 6), Index: 0, Payload: "B"},
		{Range: point(t, doc, frame, 0), Index: 1, Payload: "F"},
		{Range: point(t, doc, doc.Body(), 1), Index: 2, Payload: "A"},
	}

	got, err := Resolve(doc, entries, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if joined(got) != "A,F,B" {
		t.Errorf("visual = %v, want A,F,B", got)
	}

	textual, err := ResolveTextual[string](doc, entries)
	if err != nil {
		t.Fatal(err)
	}
	if joined(textual) != "A,B,F" {
		t.Errorf("textual = %v, want A,B,F", textual)
	}
}

func TestResolveFootnotes(t *testing.T) {
	doc := memdoc.NewWithText("xx yy")
	fn, err := doc.InsertFootnote(point(t, doc, doc.Body(), 2), "a note")
	if err != nil {
		t.Fatal(err)
	}
	// Body is now "xx* yy".
	entries := []Entry[string]{
		{Range: point(t, doc, fn, 2), Index: 0, Payload: "N1"},
		{Range: point(t, doc, doc.Body(), 4), Index: 1, Payload: "B"},
		{Range: point(t, doc, doc.Body(), 0), Index: 2, Payload: "A"},
		{Range: point(t, doc, fn, 0), Index: 3, Payload: "N0"},
	}

	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"measured in place", Options{}, "A,B,N0,N1"},
		{"mapped to marker", Options{MapFootnotesToMarks: true}, "A,N0,N1,B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(doc, entries, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if joined(got) != tt.want {
				t.Errorf("order = %v, want %s", got, tt.want)
			}
		})
	}
}

func TestResolveIdenticalRangesUseIndex(t *testing.T) {
	doc := memdoc.NewWithText("abc")
	r := point(t, doc, doc.Body(), 1)
	entries := []Entry[string]{
		{Range: r, Index: 7, Payload: "late"},
		{Range: r, Index: 2, Payload: "early"},
	}
	got, err := Resolve(doc, entries, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if joined(got) != "early,late" {
		t.Errorf("order = %v", got)
	}
}

func TestResolveStableUnderShuffle(t *testing.T) {
	doc := memdoc.NewWithText("one two three\nfour five six\nseven eight nine")
	frame := doc.AddFrame("side note", document.Point{Y: 20, X: 300})
	var entries []Entry[int]
	for i, off := range []int{0, 4, 8, 14, 19, 24, 28, 34, 40} {
		entries = append(entries, Entry[int]{Range: point(t, doc, doc.Body(), off), Payload: i})
	}
	entries = append(entries, Entry[int]{Range: point(t, doc, frame, 5), Payload: 99})
	for i := range entries {
		entries[i].Index = i
	}

	want, err := Resolve(doc, entries, Options{})
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewPCG(1, 2))
	for round := 0; round < 5; round++ {
		shuffled := slices.Clone(entries)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		for i := range shuffled {
			shuffled[i].Index = i
		}
		got, err := Resolve(doc, shuffled, Options{})
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(got, want) {
			t.Fatalf("round %d: %v, want %v", round, got, want)
		}
	}
}

func TestResolveRestoresSelection(t *testing.T) {
	doc := memdoc.NewWithText("0123456789")
	vc, err := doc.ViewCursor()
	if err != nil {
		t.Fatal(err)
	}
	sel, _ := doc.RangeAt(doc.Body(), 1, 3)
	if err := vc.Select(sel); err != nil {
		t.Fatal(err)
	}

	entries := []Entry[string]{
		{Range: point(t, doc, doc.Body(), 8), Payload: "b"},
		{Range: point(t, doc, doc.Body(), 5), Index: 1, Payload: "a"},
	}
	if _, err := Resolve(doc, entries, Options{}); err != nil {
		t.Fatal(err)
	}
	if doc.CursorMoves() == 0 {
		t.Error("view cursor was never moved")
	}
	if doc.CurrentSelection() != sel {
		t.Errorf("selection = %v, want %v", doc.CurrentSelection(), sel)
	}

	t.Run("on error", func(t *testing.T) {
		stale, _ := doc.RangeAt(doc.Body(), 6, 9)
		if err := doc.DeleteText(mustRange(t, doc, 4, 10)); err != nil {
			t.Fatal(err)
		}
		_, err := Resolve(doc, []Entry[string]{{Range: stale, Payload: "x"}}, Options{})
		if err == nil {
			t.Fatal("expected error for a range outside the text")
		}
		if doc.CurrentSelection() != sel {
			t.Errorf("selection = %v after failure, want %v", doc.CurrentSelection(), sel)
		}
	})
}

func mustRange(t *testing.T, doc *memdoc.Document, start, end int) document.Range {
	t.Helper()
	r, err := doc.RangeAt(doc.Body(), start, end)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestResolveNeedsViewCursor(t *testing.T) {
	doc := memdoc.NewWithText("abc")
	doc.SetFocusInText(false)
	_, err := Resolve(doc, []Entry[string]{{Range: point(t, doc, doc.Body(), 0), Payload: "a"}}, Options{})
	if !errors.Is(err, errors.ErrPrecondition) {
		t.Fatalf("err = %v, want precondition", err)
	}
	if !strings.Contains(errors.UserMessage(err), "cursor") {
		t.Errorf("message %q does not tell the user what to do", errors.UserMessage(err))
	}
	if doc.CursorMoves() != 0 {
		t.Error("cursor moved without a live view")
	}
}

func TestResolveWithControllersLocked(t *testing.T) {
	doc := memdoc.NewWithText("ab")
	entries := []Entry[string]{
		{Range: point(t, doc, doc.Body(), 1), Payload: "b"},
		{Range: point(t, doc, doc.Body(), 0), Index: 1, Payload: "a"},
	}
	err := document.WithControllersLocked(doc, func() error {
		got, err := Resolve(doc, entries, Options{})
		if err == nil && joined(got) != "a,b" {
			t.Errorf("order = %v", got)
		}
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestResolveEmpty(t *testing.T) {
	doc := memdoc.New()
	doc.SetFocusInText(false)
	got, err := Resolve[string](doc, nil, Options{})
	if err != nil || len(got) != 0 {
		t.Errorf("Resolve(nil) = %v, %v", got, err)
	}
}
