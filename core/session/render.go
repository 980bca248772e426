package session

import (
	"strconv"
	"strings"

	"github.com/FocuswithJustin/citesync/core/bibdb"
	"github.com/FocuswithJustin/citesync/core/citation"
)

// Renderer produces the text shown in a group's anchor. numbered is set when
// the bibliography is numbered.
type Renderer func(g *citation.CitationGroup, model citation.DataModel, numbered bool) string

// DefaultRenderer is a plain renderer for documents without a citation
// style: "[1, 2]" for numbered bibliographies, "(Smith 2000a; Doe 1999)" for
// parenthetical and "Smith (2000a)" for in-text author-year citations.
// Unresolved citations show their key. Invisible groups render as "".
func DefaultRenderer(g *citation.CitationGroup, model citation.DataModel, numbered bool) string {
	if g.Kind == citation.KindInvisible {
		return ""
	}
	order := g.InLocalOrder()
	parts := make([]string, 0, len(order))
	for _, i := range order {
		c := &g.Citations[i]
		part := renderOne(c, g.Kind, numbered)
		if p := g.PageInfoOf(i, model); model == citation.CitationPageInfo && !p.IsEmpty() {
			part = withPage(part, p.String(), g.Kind)
		}
		parts = append(parts, part)
	}
	if model == citation.GroupPageInfo && !g.PageInfo.IsEmpty() && len(parts) > 0 {
		last := len(parts) - 1
		parts[last] = withPage(parts[last], g.PageInfo.String(), g.Kind)
	}

	switch {
	case numbered && g.Kind == citation.KindParenthetical:
		return "[" + strings.Join(parts, ", ") + "]"
	case numbered, g.Kind == citation.KindInText:
		return strings.Join(parts, "; ")
	default:
		return "(" + strings.Join(parts, "; ") + ")"
	}
}

func renderOne(c *citation.Citation, kind citation.Kind, numbered bool) string {
	var entry *bibdb.Entry
	if c.Lookup != nil {
		entry = c.Lookup.Entry
	}
	if numbered {
		num := "?"
		if c.Number > 0 {
			num = strconv.Itoa(c.Number)
		}
		if kind == citation.KindInText {
			who := c.Key
			if entry != nil {
				who = bibdb.AuthorLabel(entry)
			}
			return who + " [" + num + "]"
		}
		return num
	}
	if entry == nil {
		return c.Key
	}
	who := bibdb.AuthorLabel(entry)
	year := entry.Field(bibdb.FieldYear) + c.UniqueLetter
	if kind == citation.KindInText {
		return who + " (" + year + ")"
	}
	return strings.TrimSpace(who + " " + year)
}

// withPage appends a page locator inside the closing parenthesis or bracket
// of an in-text citation, or after a comma otherwise.
func withPage(part, page string, kind citation.Kind) string {
	if kind == citation.KindInText {
		if n := len(part); n > 0 && (part[n-1] == ')' || part[n-1] == ']') {
			return part[:n-1] + ", " + page + part[n-1:]
		}
	}
	return part + ", " + page
}

// BibliographyLines renders the built bibliography one entry per line:
// "[n] " for numbered entries, then the author, year with unique letter and
// title of resolved entries, or the key of unresolved ones.
func (s *Session) BibliographyLines() ([]string, bool) {
	bib, ok := s.reg.Bibliography()
	if !ok {
		return nil, false
	}
	lines := make([]string, 0, bib.Len())
	for _, k := range bib.Keys() {
		var b strings.Builder
		if k.Number > 0 {
			b.WriteString("[" + strconv.Itoa(k.Number) + "] ")
		}
		if k.Lookup == nil {
			b.WriteString(k.Key + ". Not found in any database.")
			lines = append(lines, b.String())
			continue
		}
		e := k.Lookup.Entry
		b.WriteString(bibdb.AuthorLabel(e))
		if year := e.Field(bibdb.FieldYear); year != "" || k.UniqueLetter != "" {
			b.WriteString(" (" + year + k.UniqueLetter + ")")
		}
		if title := e.Field(bibdb.FieldTitle); title != "" {
			b.WriteString(". " + title)
		}
		b.WriteString(".")
		lines = append(lines, b.String())
	}
	return lines, true
}
