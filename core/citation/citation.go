// Package citation holds the in-memory model of citation groups and the
// cross-group cited-key projection built from them.
package citation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/FocuswithJustin/citesync/core/anchor"
	"github.com/FocuswithJustin/citesync/core/bibdb"
	"github.com/FocuswithJustin/citesync/core/errors"
)

// GroupID identifies a citation group. It is fixed at creation and is also
// the name of the group's anchor.
type GroupID string

// Kind is how a group is shown in the text.
type Kind int

// Citation kinds. The numeric values are the codes used in legacy anchor names.
const (
	KindParenthetical Kind = 1
	KindInText        Kind = 2
	KindInvisible     Kind = 3
)

var kindNames = map[Kind]string{
	KindParenthetical: "parenthetical",
	KindInText:        "in-text",
	KindInvisible:     "invisible",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind accepts a kind name.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return k, nil
		}
	}
	return 0, &errors.ValidationError{Field: "kind", Value: s, Message: "expected parenthetical, in-text or invisible"}
}

// KindFromCode maps a legacy numeric code to a Kind.
func KindFromCode(code int) (Kind, error) {
	k := Kind(code)
	if !k.Valid() {
		return 0, &errors.ValidationError{Field: "kind", Value: fmt.Sprint(code), Message: "unknown kind code"}
	}
	return k, nil
}

// DataModel says where page information is stored.
type DataModel int

// Data models.
const (
	// GroupPageInfo attaches one page info to the whole group.
	GroupPageInfo DataModel = iota
	// CitationPageInfo attaches page info to each citation.
	CitationPageInfo
)

func (m DataModel) String() string {
	if m == CitationPageInfo {
		return "citation-page-info"
	}
	return "group-page-info"
}

// ParseDataModel accepts "group-page-info" or "citation-page-info".
func ParseDataModel(s string) (DataModel, error) {
	switch s {
	case "group-page-info", "":
		return GroupPageInfo, nil
	case "citation-page-info":
		return CitationPageInfo, nil
	}
	return 0, &errors.ValidationError{Field: "data_model", Value: s, Message: "expected group-page-info or citation-page-info"}
}

// PageInfo is a normalised page locator such as "p. 4". The zero value is empty.
type PageInfo struct {
	text string
}

// NewPageInfo trims and collapses whitespace in s.
func NewPageInfo(s string) PageInfo {
	return PageInfo{text: strings.Join(strings.Fields(s), " ")}
}

func (p PageInfo) String() string { return p.text }

// IsEmpty reports whether p holds no text.
func (p PageInfo) IsEmpty() bool { return p.text == "" }

// ComparePageInfo orders empty page info before non-empty page info, and
// non-empty values as strings.
func ComparePageInfo(a, b PageInfo) int {
	switch {
	case a.IsEmpty() && b.IsEmpty():
		return 0
	case a.IsEmpty():
		return -1
	case b.IsEmpty():
		return 1
	}
	return strings.Compare(a.text, b.text)
}

// Lookup is a resolved database entry and the database that holds it.
type Lookup struct {
	Entry    *bibdb.Entry
	Database string
}

// Equal reports whether two lookups point at the same entry. Nil lookups are
// equal to each other.
func (l *Lookup) Equal(o *Lookup) bool {
	if l == nil || o == nil {
		return l == nil && o == nil
	}
	return l.Database == o.Database && l.Entry.Key == o.Entry.Key
}

func (l *Lookup) String() string {
	if l == nil {
		return "unresolved"
	}
	return l.Database + ":" + l.Entry.Key
}

// Citation is one key inside a group. Lookup, Number and UniqueLetter are
// derived by the bibliography passes; zero values mean "not assigned".
type Citation struct {
	Key          string
	Lookup       *Lookup
	Number       int
	UniqueLetter string
	PageInfo     PageInfo
}

// ResetDerived clears everything the bibliography passes assign.
func (c *Citation) ResetDerived() {
	c.Lookup = nil
	c.Number = 0
	c.UniqueLetter = ""
}

// CitationPath addresses one citation: its group and its index in the group's
// storage order.
type CitationPath struct {
	Group GroupID
	Index int
}

func (p CitationPath) String() string {
	return fmt.Sprintf("%s#%d", p.Group, p.Index)
}

// CitationGroup is one citation marker in the document.
type CitationGroup struct {
	ID     GroupID
	Kind   Kind
	Anchor *anchor.Handle

	// Citations are kept in storage (creation) order.
	Citations []Citation

	// LocalOrder is the presentation order: a permutation of citation indices.
	LocalOrder []int

	// PageInfo is the group page info under the GroupPageInfo data model.
	PageInfo PageInfo
}

// NewGroup creates a group whose local order is the storage order.
func NewGroup(id GroupID, kind Kind, handle *anchor.Handle, keys []string) (*CitationGroup, error) {
	if len(keys) == 0 {
		return nil, errors.NewValidation("keys", "a citation group needs at least one key")
	}
	if !kind.Valid() {
		return nil, &errors.ValidationError{Field: "kind", Value: kind.String(), Message: "unknown kind"}
	}
	g := &CitationGroup{ID: id, Kind: kind, Anchor: handle}
	for _, k := range keys {
		if strings.TrimSpace(k) == "" {
			return nil, errors.NewValidation("keys", "citation keys cannot be empty")
		}
		g.Citations = append(g.Citations, Citation{Key: k})
	}
	g.LocalOrder = identity(len(keys))
	return g, nil
}

// Keys returns the citation keys in storage order.
func (g *CitationGroup) Keys() []string {
	keys := make([]string, len(g.Citations))
	for i, c := range g.Citations {
		keys[i] = c.Key
	}
	return keys
}

// Path returns the path of the citation at storage index i.
func (g *CitationGroup) Path(i int) CitationPath {
	return CitationPath{Group: g.ID, Index: i}
}

// InLocalOrder returns the storage indices in presentation order.
func (g *CitationGroup) InLocalOrder() []int {
	return append([]int(nil), g.LocalOrder...)
}

// CheckLocalOrder verifies that LocalOrder is a permutation of [0, N).
func (g *CitationGroup) CheckLocalOrder() error {
	n := len(g.Citations)
	if len(g.LocalOrder) != n {
		return errors.NewInvariant("local order", "group %s has %d citations but local order of length %d",
			g.ID, n, len(g.LocalOrder))
	}
	seen := make([]bool, n)
	for _, i := range g.LocalOrder {
		if i < 0 || i >= n || seen[i] {
			return errors.NewInvariant("local order", "group %s local order %v is not a permutation", g.ID, g.LocalOrder)
		}
		seen[i] = true
	}
	return nil
}

// PageInfoOf returns the page info that applies to citation i under model.
func (g *CitationGroup) PageInfoOf(i int, model DataModel) PageInfo {
	if model == CitationPageInfo {
		return g.Citations[i].PageInfo
	}
	return g.PageInfo
}

// SortLocalOrder recomputes LocalOrder by comparing citations. The sort is
// stable with respect to storage order, so sorting twice is a no-op.
func (g *CitationGroup) SortLocalOrder(cmp bibdb.Comparator, unresolvedFirst bool, model DataModel) {
	order := identity(len(g.Citations))
	views := make([]Comparable, len(g.Citations))
	for i := range g.Citations {
		views[i] = citationView{c: &g.Citations[i], page: g.PageInfoOf(i, model)}
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return CompareCitations(views[a], views[b], cmp, unresolvedFirst)
	})
	g.LocalOrder = order
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
