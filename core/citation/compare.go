package citation

import (
	"strings"

	"github.com/FocuswithJustin/citesync/core/bibdb"
)

// Comparable is what CompareCitations needs from a citation or a cited key.
type Comparable interface {
	// CitationKey returns the citation key.
	CitationKey() string
	// ResolvedEntry returns the database entry, or nil when unresolved.
	ResolvedEntry() *bibdb.Entry
	// ComparisonPageInfo returns the page info used as the final tiebreak.
	ComparisonPageInfo() PageInfo
}

// CompareCitations orders two citations for presentation or bibliography.
//
// Two unresolved citations order by key. An unresolved citation sorts before
// every resolved one when unresolvedFirst is set, after them otherwise. Two
// resolved citations order by cmp. Page info breaks remaining ties.
func CompareCitations(a, b Comparable, cmp bibdb.Comparator, unresolvedFirst bool) int {
	ea, eb := a.ResolvedEntry(), b.ResolvedEntry()
	var c int
	switch {
	case ea == nil && eb == nil:
		c = strings.Compare(a.CitationKey(), b.CitationKey())
	case ea == nil:
		c = unresolvedSign(unresolvedFirst)
	case eb == nil:
		c = -unresolvedSign(unresolvedFirst)
	default:
		c = cmp(ea, eb)
	}
	if c != 0 {
		return c
	}
	return ComparePageInfo(a.ComparisonPageInfo(), b.ComparisonPageInfo())
}

func unresolvedSign(unresolvedFirst bool) int {
	if unresolvedFirst {
		return -1
	}
	return 1
}

type citationView struct {
	c    *Citation
	page PageInfo
}

func (v citationView) CitationKey() string          { return v.c.Key }
func (v citationView) ComparisonPageInfo() PageInfo { return v.page }

func (v citationView) ResolvedEntry() *bibdb.Entry {
	if v.c.Lookup == nil {
		return nil
	}
	return v.c.Lookup.Entry
}
