package memdoc

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FocuswithJustin/citesync/core/document"
	cerrors "github.com/FocuswithJustin/citesync/core/errors"
)

func mustRange(t *testing.T, d *Document, s document.Stream, start, end int) document.Range {
	t.Helper()
	r, err := d.RangeAt(s, start, end)
	if err != nil {
		t.Fatalf("RangeAt(%d,%d): %v", start, end, err)
	}
	return r
}

func markText(t *testing.T, d *Document, name string) string {
	t.Helper()
	r, ok, err := d.MarkRange(name)
	if err != nil || !ok {
		t.Fatalf("MarkRange(%s) = %v, %v", name, ok, err)
	}
	text, err := d.Text(r)
	if err != nil {
		t.Fatal(err)
	}
	return text
}

func TestCreateMarkAndText(t *testing.T) {
	d := NewWithText("Hello world")
	at := mustRange(t, d, d.Body(), 5, 5)
	if _, err := d.CreateMark("m1", at, "<>"); err != nil {
		t.Fatalf("CreateMark: %v", err)
	}
	body, _ := d.StreamText(d.Body())
	if body != "Hello<> world" {
		t.Errorf("body = %q", body)
	}
	if got := markText(t, d, "m1"); got != "<>" {
		t.Errorf("mark text = %q", got)
	}

	if _, err := d.CreateMark("m1", at, "x"); !errors.Is(err, cerrors.ErrAlreadyExists) {
		t.Errorf("duplicate CreateMark err = %v, want ErrAlreadyExists", err)
	}
	if _, err := d.CreateMark("", at, "x"); !errors.Is(err, cerrors.ErrInvalidInput) {
		t.Errorf("empty name err = %v, want ErrInvalidInput", err)
	}
}

func TestEditsAtMarkBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		edit     func(d *Document) error
		wantMark string
		wantBody string
	}{
		{
			name: "insert at start stays outside",
			edit: func(d *Document) error {
				_, err := d.InsertText(mustRange(t, d, d.Body(), 2, 2), "X")
				return err
			},
			wantMark: "<ab>",
			wantBody: "..X<ab>..",
		},
		{
			name: "insert at end stays outside",
			edit: func(d *Document) error {
				_, err := d.InsertText(mustRange(t, d, d.Body(), 6, 6), "X")
				return err
			},
			wantMark: "<ab>",
			wantBody: "..<ab>X..",
		},
		{
			name: "insert inside grows the mark",
			edit: func(d *Document) error {
				_, err := d.InsertText(mustRange(t, d, d.Body(), 3, 3), "XY")
				return err
			},
			wantMark: "<XYab>",
			wantBody: "..<XYab>..",
		},
		{
			name: "replace whole mark keeps it around new text",
			edit: func(d *Document) error {
				_, err := d.SetText(mustRange(t, d, d.Body(), 2, 6), "[1]")
				return err
			},
			wantMark: "[1]",
			wantBody: "..[1]..",
		},
		{
			name: "delete text before shifts",
			edit: func(d *Document) error {
				return d.DeleteText(mustRange(t, d, d.Body(), 0, 2))
			},
			wantMark: "<ab>",
			wantBody: "<ab>..",
		},
		{
			name: "delete last character shrinks",
			edit: func(d *Document) error {
				return d.DeleteText(mustRange(t, d, d.Body(), 5, 6))
			},
			wantMark: "<ab",
			wantBody: "..<ab..",
		},
		{
			name: "delete across start clips",
			edit: func(d *Document) error {
				return d.DeleteText(mustRange(t, d, d.Body(), 1, 4))
			},
			wantMark: "b>",
			wantBody: ".b>..",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewWithText("....")
			if _, err := d.CreateMark("m", mustRange(t, d, d.Body(), 2, 2), "<ab>"); err != nil {
				t.Fatal(err)
			}
			if err := tt.edit(d); err != nil {
				t.Fatalf("edit: %v", err)
			}
			if got := markText(t, d, "m"); got != tt.wantMark {
				t.Errorf("mark = %q, want %q", got, tt.wantMark)
			}
			if got, _ := d.StreamText(d.Body()); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestAdjacentMarksDoNotMerge(t *testing.T) {
	d := NewWithText("")
	end, _ := d.EndOf(d.Body())
	if _, err := d.CreateMark("a", end, "AA"); err != nil {
		t.Fatal(err)
	}
	end, _ = d.EndOf(d.Body())
	if _, err := d.CreateMark("b", end, "BB"); err != nil {
		t.Fatal(err)
	}
	if got := markText(t, d, "a"); got != "AA" {
		t.Errorf("a = %q", got)
	}
	if got := markText(t, d, "b"); got != "BB" {
		t.Errorf("b = %q", got)
	}
}

func TestCollapsedMarkStaysBeforeInsertion(t *testing.T) {
	d := NewWithText("ab")
	at := mustRange(t, d, d.Body(), 1, 1)
	if _, err := d.CreateMark("c", at, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := d.InsertText(at, "XYZ"); err != nil {
		t.Fatal(err)
	}
	r, _, _ := d.MarkRange("c")
	cmp, _ := d.CompareStarts(r, mustRange(t, d, d.Body(), 1, 1))
	if cmp != 0 {
		t.Errorf("collapsed mark moved, compare = %d", cmp)
	}
	if got := markText(t, d, "c"); got != "" {
		t.Errorf("collapsed mark text = %q", got)
	}
}

func TestRemoveMarkAndNames(t *testing.T) {
	d := NewWithText("abc")
	for _, name := range []string{"z", "a"} {
		if _, err := d.CreateMark(name, mustRange(t, d, d.Body(), 0, 0), "x"); err != nil {
			t.Fatal(err)
		}
	}
	names, _ := d.MarkNames()
	if strings.Join(names, ",") != "a,z" {
		t.Errorf("MarkNames = %v", names)
	}
	if err := d.RemoveMark("a"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := d.MarkRange("a"); ok {
		t.Error("removed mark still found")
	}
	if err := d.RemoveMark("a"); !errors.Is(err, cerrors.ErrNotFound) {
		t.Errorf("RemoveMark twice err = %v", err)
	}
}

func TestCompareAcrossStreamsFails(t *testing.T) {
	d := NewWithText("body text")
	fn, err := d.InsertFootnote(mustRange(t, d, d.Body(), 4, 4), "note")
	if err != nil {
		t.Fatal(err)
	}
	a := mustRange(t, d, d.Body(), 0, 1)
	b := mustRange(t, d, fn, 0, 1)
	if _, err := d.CompareStarts(a, b); !errors.Is(err, cerrors.ErrInvalidInput) {
		t.Errorf("CompareStarts across streams err = %v", err)
	}
}

func TestFootnoteMarker(t *testing.T) {
	d := NewWithText("body text")
	fn, err := d.InsertFootnote(mustRange(t, d, d.Body(), 4, 4), "note")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := d.StreamText(d.Body())
	if body != "body"+FootnoteMarkerText+" text" {
		t.Errorf("body = %q", body)
	}

	marker, ok, err := d.FootnoteMarker(mustRange(t, d, fn, 1, 2))
	if err != nil || !ok {
		t.Fatalf("FootnoteMarker = %v, %v", ok, err)
	}
	if marker.Stream() != d.Body() {
		t.Errorf("marker stream = %v", marker.Stream())
	}
	if text, _ := d.Text(marker); text != FootnoteMarkerText {
		t.Errorf("marker text = %q", text)
	}

	if _, ok, _ := d.FootnoteMarker(mustRange(t, d, d.Body(), 0, 0)); ok {
		t.Error("body range should have no footnote marker")
	}
	if names, _ := d.MarkNames(); len(names) != 0 {
		t.Errorf("footnote markers must not be listed, got %v", names)
	}

	if _, err := d.InsertFootnote(mustRange(t, d, fn, 0, 0), "nested"); !errors.Is(err, cerrors.ErrUnsupported) {
		t.Errorf("nested footnote err = %v", err)
	}
}

func TestViewCursor(t *testing.T) {
	d := NewWithText("line one\nline two")
	vc, err := d.ViewCursor()
	if err != nil {
		t.Fatal(err)
	}
	if err := vc.GotoRange(mustRange(t, d, d.Body(), 11, 13)); err != nil {
		t.Fatal(err)
	}
	pos, _ := vc.Position()
	want := document.Point{Y: DefaultLineHeight, X: 2 * DefaultCharWidth}
	if pos != want {
		t.Errorf("Position = %+v, want %+v", pos, want)
	}
	if d.CursorMoves() != 1 {
		t.Errorf("CursorMoves = %d", d.CursorMoves())
	}

	frame := d.AddFrame("x", document.Point{Y: 5, X: 300})
	_ = vc.GotoRange(mustRange(t, d, frame, 1, 1))
	pos, _ = vc.Position()
	if pos != (document.Point{Y: 5, X: 300 + DefaultCharWidth}) {
		t.Errorf("frame Position = %+v", pos)
	}

	d.SetFocusInText(false)
	if _, err := d.ViewCursor(); !errors.Is(err, cerrors.ErrPrecondition) {
		t.Errorf("ViewCursor without focus err = %v", err)
	}
}

func TestProperties(t *testing.T) {
	d := New()
	if err := d.SetProperty("b", "2"); err != nil {
		t.Fatal(err)
	}
	_ = d.SetProperty("a", "1")
	if v, ok, _ := d.Property("a"); !ok || v != "1" {
		t.Errorf("Property(a) = %q, %v", v, ok)
	}
	names, _ := d.PropertyNames()
	if strings.Join(names, ",") != "a,b" {
		t.Errorf("PropertyNames = %v", names)
	}
	if err := d.RemoveProperty("a"); err != nil {
		t.Fatal(err)
	}
	if err := d.RemoveProperty("a"); !errors.Is(err, cerrors.ErrNotFound) {
		t.Errorf("RemoveProperty twice err = %v", err)
	}
	if err := d.SetProperty("", "x"); err == nil {
		t.Error("empty property name should fail")
	}
}

func TestControllerLockNests(t *testing.T) {
	d := New()
	d.LockControllers()
	d.LockControllers()
	if err := d.UnlockControllers(); err != nil {
		t.Fatal(err)
	}
	if !d.ControllersLocked() {
		t.Error("still locked once")
	}
	if err := d.UnlockControllers(); err != nil {
		t.Fatal(err)
	}
	if d.ControllersLocked() {
		t.Error("should be unlocked")
	}
	if err := d.UnlockControllers(); !errors.Is(err, cerrors.ErrInvariant) {
		t.Errorf("unbalanced unlock err = %v", err)
	}
}

func TestWithControllersLockedUnlocksOnError(t *testing.T) {
	d := New()
	boom := errors.New("boom")
	err := document.WithControllersLocked(d, func() error {
		if !d.ControllersLocked() {
			t.Error("fn should run locked")
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if d.ControllersLocked() {
		t.Error("controllers left locked")
	}
}

func TestOffsetAndSpan(t *testing.T) {
	d := NewWithText("abcdef")
	start := mustRange(t, d, d.Body(), 1, 1)
	r, err := d.Offset(start, 2)
	if err != nil {
		t.Fatal(err)
	}
	span, err := d.Span(start, r)
	if err != nil {
		t.Fatal(err)
	}
	if text, _ := d.Text(span); text != "bc" {
		t.Errorf("span text = %q", text)
	}
	if _, err := d.Offset(start, 10); err == nil {
		t.Error("Offset past end should fail")
	}
	if _, err := d.Span(r, start); err == nil {
		t.Error("backwards span should fail")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	d := NewWithText("Some body")
	if _, err := d.CreateMark("m", mustRange(t, d, d.Body(), 4, 4), "<>"); err != nil {
		t.Fatal(err)
	}
	fn, _ := d.InsertFootnote(mustRange(t, d, d.Body(), 0, 0), "note")
	_ = d.SetProperty("m", `{"v":1}`)

	path := filepath.Join(t.TempDir(), "doc.json.xz")
	if err := d.SaveFile(path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	want, _ := d.StreamText(d.Body())
	if got, _ := loaded.StreamText(loaded.Body()); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
	if got := markText(t, loaded, "m"); got != "<>" {
		t.Errorf("mark = %q", got)
	}
	if v, ok, _ := loaded.Property("m"); !ok || v != `{"v":1}` {
		t.Errorf("property = %q, %v", v, ok)
	}
	r := mustRange(t, loaded, fn, 0, 1)
	if _, ok, err := loaded.FootnoteMarker(r); !ok || err != nil {
		t.Errorf("footnote marker lost: %v, %v", ok, err)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	_, err := Load(bytes.NewReader([]byte("not xz")))
	var perr *cerrors.ParseError
	if !errors.As(err, &perr) {
		t.Errorf("Load(garbage) err = %v, want ParseError", err)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("LoadFile(missing) should fail")
	}
}

func TestLoadXML(t *testing.T) {
	src := `<document>
  <body>
    <p>First <cite keys="A"/>para.</p>
    <p>Second<footnote>In note <cite keys="B" page="p. 4"/></footnote> end.</p>
  </body>
  <frame x="400" y="80">Side <cite keys="C"/></frame>
</document>`
	d, cites, err := LoadXML([]byte(src))
	if err != nil {
		t.Fatalf("LoadXML: %v", err)
	}
	body, _ := d.StreamText(d.Body())
	if body != "First para.\nSecond"+FootnoteMarkerText+" end." {
		t.Errorf("body = %q", body)
	}
	if len(cites) != 3 {
		t.Fatalf("got %d cites, want 3", len(cites))
	}
	if cites[1].Attrs["page"] != "p. 4" || cites[1].Attrs["keys"] != "B" {
		t.Errorf("cite attrs = %v", cites[1].Attrs)
	}

	r, ok, _ := d.MarkRange(cites[0].Mark)
	if !ok {
		t.Fatal("placeholder mark missing")
	}
	if r.Stream() != d.Body() {
		t.Errorf("first cite stream = %v", r.Stream())
	}
	before, _ := d.Offset(r, -6)
	prefix, _ := d.Span(before, r)
	if text, _ := d.Text(prefix); text != "First " {
		t.Errorf("text before first cite = %q", text)
	}

	r, _, _ = d.MarkRange(cites[1].Mark)
	if r.Stream().Kind != document.StreamFootnote {
		t.Errorf("second cite stream kind = %v", r.Stream().Kind)
	}
	r, _, _ = d.MarkRange(cites[2].Mark)
	if r.Stream().Kind != document.StreamFrame {
		t.Errorf("third cite stream kind = %v", r.Stream().Kind)
	}
}

func TestLoadXMLErrors(t *testing.T) {
	tests := map[string]string{
		"wrong root":           `<doc/>`,
		"bad child":            `<document><table/></document>`,
		"non-p in body":        `<document><body><div/></body></document>`,
		"footnote in note":     `<document><body><p><footnote><footnote/></footnote></p></body></document>`,
		"bad frame origin":     `<document><frame x="left"/></document>`,
		"malformed":            `<document>`,
		"two bodies":           `<document><body/><body/></document>`,
		"cite without keys":    `<document><body><p>a<cite/></p></body></document>`,
		"cite with blank keys": `<document><body><p>a<cite keys=" "/></p></body></document>`,
		"cite with text":       `<document><body><p>a<cite keys="A">Adams</cite></p></body></document>`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, err := LoadXML([]byte(src)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
