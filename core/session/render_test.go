package session

import (
	"context"
	"testing"

	"github.com/FocuswithJustin/citesync/core/citation"
	"github.com/FocuswithJustin/citesync/core/memdoc"
)

func renderGroup(t *testing.T, kind citation.Kind, keys ...string) *citation.CitationGroup {
	t.Helper()
	g, err := citation.NewGroup("g", kind, nil, keys)
	if err != nil {
		t.Fatal(err)
	}
	db := testDB()
	numbers := map[string]int{"A": 2, "B": 1}
	letters := map[string]string{"B": "a"}
	for i := range g.Citations {
		c := &g.Citations[i]
		if e, ok, _ := db.Lookup(context.Background(), c.Key); ok {
			c.Lookup = &citation.Lookup{Entry: e, Database: db.Name()}
		}
		c.Number = numbers[c.Key]
		c.UniqueLetter = letters[c.Key]
	}
	return g
}

func TestDefaultRenderer(t *testing.T) {
	tests := []struct {
		name      string
		kind      citation.Kind
		keys      []string
		order     []int
		model     citation.DataModel
		groupPage string
		pages     []string
		numbered  bool
		want      string
	}{
		{name: "numbered", kind: citation.KindParenthetical, keys: []string{"A", "B"}, order: []int{1, 0}, numbered: true, want: "[1, 2]"},
		{name: "numbered with page", kind: citation.KindParenthetical, keys: []string{"A", "B"}, order: []int{1, 0}, groupPage: "p. 4", numbered: true, want: "[1, 2, p. 4]"},
		{name: "numbered in-text", kind: citation.KindInText, keys: []string{"A"}, numbered: true, want: "Adams [2]"},
		{name: "numbered in-text with page", kind: citation.KindInText, keys: []string{"A"}, groupPage: "p. 4", numbered: true, want: "Adams [2, p. 4]"},
		{name: "numbered unresolved", kind: citation.KindParenthetical, keys: []string{"X"}, numbered: true, want: "[?]"},
		{name: "numbered unresolved in-text", kind: citation.KindInText, keys: []string{"X"}, numbered: true, want: "X [?]"},
		{name: "author-year", kind: citation.KindParenthetical, keys: []string{"A", "B"}, want: "(Adams 2001; Brown 1999a)"},
		{name: "author-year in-text with page", kind: citation.KindInText, keys: []string{"B"}, groupPage: "p. 4", want: "Brown (1999a, p. 4)"},
		{name: "author-year unresolved", kind: citation.KindParenthetical, keys: []string{"X"}, want: "(X)"},
		{name: "invisible", kind: citation.KindInvisible, keys: []string{"A"}, numbered: true, want: ""},
		{
			name: "citation pages", kind: citation.KindParenthetical, keys: []string{"A", "B"}, order: []int{1, 0},
			model: citation.CitationPageInfo, pages: []string{"p. 1", ""}, numbered: true, want: "[1, 2, p. 1]",
		},
		{
			name: "citation pages in-text", kind: citation.KindInText, keys: []string{"A", "B"},
			model: citation.CitationPageInfo, pages: []string{"p. 1", ""}, numbered: true, want: "Adams [2, p. 1]; Brown [1]",
		},
		{
			name: "group page ignored under citation model", kind: citation.KindParenthetical, keys: []string{"A"},
			model: citation.CitationPageInfo, groupPage: "p. 9", want: "(Adams 2001)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := renderGroup(t, tt.kind, tt.keys...)
			if tt.order != nil {
				g.LocalOrder = tt.order
			}
			g.PageInfo = citation.NewPageInfo(tt.groupPage)
			for i, p := range tt.pages {
				g.Citations[i].PageInfo = citation.NewPageInfo(p)
			}
			if got := DefaultRenderer(g, tt.model, tt.numbered); got != tt.want {
				t.Errorf("DefaultRenderer() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBibliographyLinesBeforeRefresh(t *testing.T) {
	doc := memdoc.NewWithText("ab")
	s := open(t, doc, options())
	create(t, s, point(t, doc, doc.Body(), 1), citation.KindParenthetical, "A")
	if lines, ok := s.BibliographyLines(); ok || lines != nil {
		t.Errorf("BibliographyLines() = %q, %v", lines, ok)
	}
}
