package anchor

import (
	stderrors "errors"
	"testing"

	"github.com/FocuswithJustin/citesync/core/document"
	"github.com/FocuswithJustin/citesync/core/errors"
	"github.com/FocuswithJustin/citesync/core/memdoc"
)

func setup(t *testing.T, text string) (*memdoc.Document, *Manager) {
	t.Helper()
	doc := memdoc.NewWithText(text)
	return doc, NewManager(doc)
}

func at(t *testing.T, doc *memdoc.Document, offset int) document.Range {
	t.Helper()
	r, err := doc.PointAt(doc.Body(), offset)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func body(t *testing.T, doc *memdoc.Document) string {
	t.Helper()
	s, err := doc.StreamText(doc.Body())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func anchorText(t *testing.T, h *Handle) string {
	t.Helper()
	s, err := h.Text()
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	return s
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name        string
		separator   bool
		suppress    bool
		wantBody    string
		wantContent string
	}{
		{"placeholder", false, false, "ab<>cd", "<>"},
		{"placeholder and separator", true, false, "ab<> cd", "<>"},
		{"suppressed", false, true, "abcd", ""},
		{"suppressed with separator", true, true, "ab cd", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, m := setup(t, "abcd")
			h, err := m.Create("a1", at(t, doc, 2), tt.separator, tt.suppress)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if got := body(t, doc); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
			if got := anchorText(t, h); got != tt.wantContent {
				t.Errorf("anchor = %q, want %q", got, tt.wantContent)
			}
		})
	}
}

func TestCreateDuplicateLeavesNothingBehind(t *testing.T) {
	doc, m := setup(t, "abcd")
	if _, err := m.Create("a1", at(t, doc, 0), false, false); err != nil {
		t.Fatal(err)
	}
	before := body(t, doc)
	if _, err := m.Create("a1", at(t, doc, 3), true, false); !stderrors.Is(err, errors.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
	if got := body(t, doc); got != before {
		t.Errorf("body changed to %q", got)
	}
}

// separatorFailingStore rejects the separator insertion.
type separatorFailingStore struct {
	*memdoc.Document
}

func (s separatorFailingStore) SetText(r document.Range, text string) (document.Range, error) {
	if text == Separator {
		return nil, stderrors.New("read-only region")
	}
	return s.Document.SetText(r, text)
}

func TestCreateRollsBackOnSeparatorFailure(t *testing.T) {
	doc := memdoc.NewWithText("abcd")
	m := NewManager(separatorFailingStore{doc})
	if _, err := m.Create("a1", at(t, doc, 2), true, false); err == nil {
		t.Fatal("expected error")
	}
	if got := body(t, doc); got != "abcd" {
		t.Errorf("body = %q after rollback", got)
	}
	if _, ok, _ := m.Locate("a1"); ok {
		t.Error("mark left behind after rollback")
	}
}

func TestLocateAndRange(t *testing.T) {
	doc, m := setup(t, "text")
	if _, ok, err := m.Locate("nope"); ok || err != nil {
		t.Errorf("Locate(nope) = %v, %v", ok, err)
	}
	h, _ := m.Create("a1", at(t, doc, 4), false, false)
	found, ok, err := m.Locate("a1")
	if err != nil || !ok || found.Name() != "a1" {
		t.Fatalf("Locate(a1) = %v, %v", ok, err)
	}

	loc, err := h.Range()
	if err != nil || !loc.Found() {
		t.Fatalf("Range = %+v, %v", loc, err)
	}

	// An external edit deletes the anchor.
	if err := doc.RemoveMark("a1"); err != nil {
		t.Fatal(err)
	}
	loc, err = h.Range()
	if err != nil {
		t.Fatalf("a missing anchor is not an error: %v", err)
	}
	if _, ok := loc.Range(); ok {
		t.Error("Range found a deleted anchor")
	}
	if _, err := loc.Require(); !stderrors.Is(err, errors.ErrCorrupted) {
		t.Errorf("Require err = %v", err)
	}
	if _, err := h.FillCursor(); !stderrors.Is(err, errors.ErrCorrupted) {
		t.Errorf("FillCursor on missing anchor err = %v", err)
	}
}

func TestUsedNames(t *testing.T) {
	doc, m := setup(t, "")
	for _, name := range []string{"b", "a"} {
		if _, err := m.Create(name, at(t, doc, 0), false, false); err != nil {
			t.Fatal(err)
		}
	}
	names, err := m.UsedNames()
	if err != nil || len(names) != 2 || names[0] != "a" {
		t.Errorf("UsedNames = %v, %v", names, err)
	}
}

func fill(t *testing.T, doc *memdoc.Document, h *Handle, text string) {
	t.Helper()
	cursor, err := h.FillCursor()
	if err != nil {
		t.Fatalf("FillCursor: %v", err)
	}
	if text != "" {
		if _, err := doc.SetText(cursor, text); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFillCursorOnFreshAnchor(t *testing.T) {
	doc, m := setup(t, "x  y")
	h, _ := m.Create("a1", at(t, doc, 2), false, false)

	fill(t, doc, h, "")
	if got := anchorText(t, h); got != "<>" {
		t.Fatalf("fresh fill cursor content = %q, want two placeholder units", got)
	}

	// Scenario: one character written leaves exactly one placeholder unit.
	fill(t, doc, h, "1")
	if err := h.CleanFillCursor(false); err != nil {
		t.Fatal(err)
	}
	if got := anchorText(t, h); got != "<1" {
		t.Errorf("anchor = %q, want <1", got)
	}
	if got := body(t, doc); got != "x <1 y" {
		t.Errorf("body = %q", got)
	}
}

func TestCleanFillCursor(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		forceEmpty bool
		want       string
	}{
		{"empty keeps both", "", false, "<>"},
		{"single keeps left", "7", false, "<7"},
		{"two removes both", "12", false, "12"},
		{"long removes both", "[Smith 2000]", false, "[Smith 2000]"},
		{"force empty on empty", "", true, ""},
		{"force empty with content", "9", true, "9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, m := setup(t, "ab")
			h, _ := m.Create("a1", at(t, doc, 1), false, false)
			fill(t, doc, h, tt.content)
			if err := h.CleanFillCursor(tt.forceEmpty); err != nil {
				t.Fatalf("CleanFillCursor: %v", err)
			}
			if got := anchorText(t, h); got != tt.want {
				t.Errorf("anchor = %q, want %q", got, tt.want)
			}
			if got := body(t, doc); got != "a"+tt.want+"b" {
				t.Errorf("body = %q", got)
			}
		})
	}
}

func TestRefillAfterClean(t *testing.T) {
	doc, m := setup(t, "")
	h, _ := m.Create("a1", at(t, doc, 0), true, false)
	for _, text := range []string{"[1]", "[2,3]", "x"} {
		fill(t, doc, h, text)
		if err := h.CleanFillCursor(false); err != nil {
			t.Fatal(err)
		}
	}
	if got := body(t, doc); got != "<x " {
		t.Errorf("body = %q", got)
	}
}

func TestCleanFillCursorDetectsDamage(t *testing.T) {
	doc, m := setup(t, "ab")
	h, _ := m.Create("a1", at(t, doc, 1), false, false)
	fill(t, doc, h, "xy")
	r, _ := h.RawCursor()
	if _, err := doc.SetText(r, "[xy]"); err != nil {
		t.Fatal(err)
	}
	if err := h.CleanFillCursor(false); !stderrors.Is(err, errors.ErrCorrupted) {
		t.Errorf("err = %v, want corruption", err)
	}

	r, _ = h.RawCursor()
	if _, err := doc.SetText(r, "<"); err != nil {
		t.Fatal(err)
	}
	if err := h.CleanFillCursor(false); !stderrors.Is(err, errors.ErrCorrupted) {
		t.Errorf("short anchor err = %v, want corruption", err)
	}
}

func TestFillCursorSelfHeals(t *testing.T) {
	doc, m := setup(t, "abcd")
	h, _ := m.Create("a1", at(t, doc, 2), false, false)
	r, _ := h.RawCursor()
	// An external edit shrinks the anchor to one character.
	if _, err := doc.SetText(r, "x"); err != nil {
		t.Fatal(err)
	}

	fill(t, doc, h, "ok")
	if err := h.CleanFillCursor(false); err != nil {
		t.Fatal(err)
	}
	if got := body(t, doc); got != "abokcd" {
		t.Errorf("body = %q", got)
	}
}

func TestSuppressedAnchorHealsWhenFilled(t *testing.T) {
	doc, m := setup(t, "ab")
	h, _ := m.Create("a1", at(t, doc, 1), false, true)
	fill(t, doc, h, "")
	if got := anchorText(t, h); got != "<>" {
		t.Errorf("anchor = %q", got)
	}
}

// shrinkingStore recreates marks with a single character, so healing fails.
type shrinkingStore struct {
	*memdoc.Document
	creates int
}

func (s *shrinkingStore) CreateMark(name string, at document.Range, content string) (document.Range, error) {
	s.creates++
	return s.Document.CreateMark(name, at, "?")
}

func TestFillCursorHealsOnlyOnce(t *testing.T) {
	doc := memdoc.NewWithText("abcd")
	if _, err := NewManager(doc).Create("a1", at(t, doc, 2), false, true); err != nil {
		t.Fatal(err)
	}
	store := &shrinkingStore{Document: doc}
	h, ok, err := NewManager(store).Locate("a1")
	if err != nil || !ok {
		t.Fatal("anchor not found")
	}

	_, err = h.FillCursor()
	var corrupt *errors.CorruptionError
	if !stderrors.As(err, &corrupt) || corrupt.Anchor != "a1" {
		t.Fatalf("err = %v, want CorruptionError for a1", err)
	}
	if store.creates != 1 {
		t.Errorf("recreated %d times, want exactly 1", store.creates)
	}
}

func TestRemove(t *testing.T) {
	doc, m := setup(t, "ab")
	h, _ := m.Create("a1", at(t, doc, 1), true, false)
	if err := h.Remove(); err != nil {
		t.Fatal(err)
	}
	if got := body(t, doc); got != "a b" {
		t.Errorf("body = %q", got)
	}
	if _, ok, _ := m.Locate("a1"); ok {
		t.Error("anchor still present")
	}
	if err := h.Remove(); err != nil {
		t.Errorf("removing a missing anchor: %v", err)
	}
}

func TestDiscard(t *testing.T) {
	tests := []struct {
		name          string
		separator     bool
		withSeparator bool
		want          string
	}{
		{"no separator", false, false, "abcd"},
		{"with separator", true, true, "abcd"},
		{"separator kept", true, false, "ab cd"},
		{"nothing to remove", false, true, "abcd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, m := setup(t, "abcd")
			h, err := m.Create("a1", at(t, doc, 2), tt.separator, false)
			if err != nil {
				t.Fatal(err)
			}
			if err := h.Discard(tt.withSeparator); err != nil {
				t.Fatal(err)
			}
			if got := body(t, doc); got != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("at end of text", func(t *testing.T) {
		doc, m := setup(t, "ab")
		h, _ := m.Create("a1", at(t, doc, 2), false, false)
		if err := h.Discard(true); err != nil {
			t.Fatal(err)
		}
		if got := body(t, doc); got != "ab" {
			t.Errorf("body = %q", got)
		}
	})
}
