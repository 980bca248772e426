// Package registry owns the citation groups of one document and derives the
// cited-key projection and bibliography from them.
//
// The registry only holds in-memory state. Creating and deleting anchors in
// the document is left to the caller, which registers a group once its anchor
// exists and unregisters it once the anchor is gone.
//
// Every group mutation invalidates what was derived from the previous set of
// groups: lookups, numbers, unique letters and the bibliography. Adding a
// group also drops the global order; removing one edits it in place.
package registry

import (
	"context"
	"slices"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/FocuswithJustin/citesync/core/bibdb"
	"github.com/FocuswithJustin/citesync/core/citation"
	"github.com/FocuswithJustin/citesync/core/errors"
)

// BibliographyState tells whether a bibliography snapshot exists.
type BibliographyState int

// Bibliography states.
const (
	Empty BibliographyState = iota
	Built
)

func (s BibliographyState) String() string {
	if s == Built {
		return "built"
	}
	return "empty"
}

// Numbering selects the order in which a numbered bibliography is numbered.
type Numbering int

// Numbering orders.
const (
	// ByAppearance numbers keys in global order, then local order.
	ByAppearance Numbering = iota
	// ByComparator numbers keys in bibliography sort order.
	ByComparator
)

// Registry holds citation groups. It is not safe for concurrent use.
type Registry struct {
	model           citation.DataModel
	unresolvedFirst bool

	groups      map[citation.GroupID]*citation.CitationGroup
	globalOrder []citation.GroupID
	hasOrder    bool

	state        BibliographyState
	bibliography *citation.CitedKeys
}

// New returns an empty registry for model. unresolvedFirst places citations
// without a database entry before resolved ones in every sort.
func New(model citation.DataModel, unresolvedFirst bool) *Registry {
	return &Registry{
		model:           model,
		unresolvedFirst: unresolvedFirst,
		groups:          make(map[citation.GroupID]*citation.CitationGroup),
	}
}

// DataModel returns where page info is kept.
func (r *Registry) DataModel() citation.DataModel { return r.model }

// UnresolvedFirst reports the unresolved-citation sort placement.
func (r *Registry) UnresolvedFirst() bool { return r.unresolvedFirst }

// Len returns the number of groups.
func (r *Registry) Len() int { return len(r.groups) }

// Add registers g. The global order is dropped.
func (r *Registry) Add(g *citation.CitationGroup) error {
	if g == nil {
		return errors.NewValidation("group", "nil group")
	}
	if _, ok := r.groups[g.ID]; ok {
		return &errors.ValidationError{Field: "group", Value: string(g.ID), Message: "already registered", Err: errors.ErrAlreadyExists}
	}
	if err := g.CheckLocalOrder(); err != nil {
		return err
	}
	r.groups[g.ID] = g
	r.globalOrder, r.hasOrder = nil, false
	r.invalidateDerived()
	return nil
}

// Remove unregisters the group. A global order, if any, loses the id and
// stays valid.
func (r *Registry) Remove(id citation.GroupID) error {
	if _, ok := r.groups[id]; !ok {
		return errors.NewNotFound("citation group", string(id))
	}
	delete(r.groups, id)
	if r.hasOrder {
		r.globalOrder = slices.DeleteFunc(r.globalOrder, func(x citation.GroupID) bool { return x == id })
	}
	r.invalidateDerived()
	return nil
}

// RemoveMany removes every listed group, continuing past failures. The
// returned error lists each failed id.
func (r *Registry) RemoveMany(ids []citation.GroupID) error {
	var result *multierror.Error
	for _, id := range ids {
		if err := r.Remove(id); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Group returns the group with id.
func (r *Registry) Group(id citation.GroupID) (*citation.CitationGroup, bool) {
	g, ok := r.groups[id]
	return g, ok
}

// IDs returns all group ids, sorted.
func (r *Registry) IDs() []citation.GroupID {
	ids := make([]citation.GroupID, 0, len(r.groups))
	for id := range r.groups {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Groups returns all groups ordered by id.
func (r *Registry) Groups() []*citation.CitationGroup {
	out := make([]*citation.CitationGroup, 0, len(r.groups))
	for _, id := range r.IDs() {
		out = append(out, r.groups[id])
	}
	return out
}

// SetGroupPageInfo sets the page info of a group under the group page info model.
func (r *Registry) SetGroupPageInfo(id citation.GroupID, p citation.PageInfo) error {
	if r.model != citation.GroupPageInfo {
		return errors.NewUnsupported("group page info", "the registry keeps page info per citation")
	}
	g, ok := r.groups[id]
	if !ok {
		return errors.NewNotFound("citation group", string(id))
	}
	g.PageInfo = p
	return nil
}

// SetCitationPageInfo sets the page info of one citation under the citation
// page info model.
func (r *Registry) SetCitationPageInfo(path citation.CitationPath, p citation.PageInfo) error {
	if r.model != citation.CitationPageInfo {
		return errors.NewUnsupported("citation page info", "the registry keeps page info per group")
	}
	c, err := r.citation(path)
	if err != nil {
		return err
	}
	c.PageInfo = p
	return nil
}

// ImposeLocalOrder sorts the citations of every group with cmp.
func (r *Registry) ImposeLocalOrder(cmp bibdb.Comparator) error {
	if cmp == nil {
		return errors.NewValidation("comparator", "nil entry comparator")
	}
	for _, g := range r.Groups() {
		g.SortLocalOrder(cmp, r.unresolvedFirst, r.model)
	}
	return nil
}

// CitedKeys folds all citations by key. Groups are visited by id and
// citations in storage order.
func (r *Registry) CitedKeys() (*citation.CitedKeys, error) {
	ck := citation.NewCitedKeys()
	for _, g := range r.Groups() {
		for i := range g.Citations {
			if err := ck.Fold(g.Path(i), &g.Citations[i]); err != nil {
				return nil, err
			}
		}
	}
	return ck, nil
}

// CitedKeysInAppearanceOrder folds all citations by key, visiting groups in
// global order and citations in local order. It fails without a global order.
func (r *Registry) CitedKeysInAppearanceOrder() (*citation.CitedKeys, error) {
	groups, err := r.GroupsInGlobalOrder()
	if err != nil {
		return nil, err
	}
	ck := citation.NewCitedKeys()
	for _, g := range groups {
		for _, i := range g.InLocalOrder() {
			if err := ck.Fold(g.Path(i), &g.Citations[i]); err != nil {
				return nil, err
			}
		}
	}
	return ck, nil
}

// SetGlobalOrder installs an appearance order. It must list every group once.
func (r *Registry) SetGlobalOrder(ids []citation.GroupID) error {
	if len(ids) != len(r.groups) {
		return errors.NewInvariant("set global order", "%d ids for %d groups", len(ids), len(r.groups))
	}
	seen := make(map[citation.GroupID]bool, len(ids))
	for _, id := range ids {
		if _, ok := r.groups[id]; !ok {
			return errors.NewInvariant("set global order", "unknown group %s", id)
		}
		if seen[id] {
			return errors.NewInvariant("set global order", "group %s listed twice", id)
		}
		seen[id] = true
	}
	r.globalOrder = slices.Clone(ids)
	r.hasOrder = true
	return nil
}

// GlobalOrder returns the appearance order, if one is set.
func (r *Registry) GlobalOrder() ([]citation.GroupID, bool) {
	if !r.hasOrder {
		return nil, false
	}
	return slices.Clone(r.globalOrder), true
}

// HasGlobalOrder reports whether an appearance order is set.
func (r *Registry) HasGlobalOrder() bool { return r.hasOrder }

// ClearGlobalOrder drops the appearance order.
func (r *Registry) ClearGlobalOrder() {
	r.globalOrder, r.hasOrder = nil, false
}

// GroupsInGlobalOrder returns the groups in appearance order.
func (r *Registry) GroupsInGlobalOrder() ([]*citation.CitationGroup, error) {
	if !r.hasOrder {
		return nil, errors.NewInvariant("appearance order", "no global order has been computed")
	}
	out := make([]*citation.CitationGroup, len(r.globalOrder))
	for i, id := range r.globalOrder {
		out[i] = r.groups[id]
	}
	return out, nil
}

// LookupCitations resolves every cited key against dbs and writes the result
// to each citation. Numbers, letters and the bibliography are cleared first,
// since they depend on the lookups.
func (r *Registry) LookupCitations(ctx context.Context, dbs []bibdb.Database) error {
	r.ClearBibliography()
	ck, err := r.CitedKeys()
	if err != nil {
		return err
	}
	if err := ck.LookupInDatabases(ctx, dbs); err != nil {
		return errors.Wrap(err, "look up citations")
	}
	return ck.DistributeLookups(r)
}

// UnresolvedKeys returns the sorted keys that have no database entry.
func (r *Registry) UnresolvedKeys() ([]string, error) {
	ck, err := r.CitedKeys()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, k := range ck.Keys() {
		if k.Lookup == nil {
			out = append(out, k.Key)
		}
	}
	sort.Strings(out)
	return out, nil
}

// BuildNumberedBibliography builds the bibliography and numbers its keys
// 1, 2, 3... in the requested order. cmp sorts the keys for ByComparator and
// may be nil for ByAppearance.
func (r *Registry) BuildNumberedBibliography(order Numbering, cmp bibdb.Comparator) error {
	if err := r.requireEmpty("build numbered bibliography"); err != nil {
		return err
	}
	var ck *citation.CitedKeys
	var err error
	switch order {
	case ByAppearance:
		ck, err = r.CitedKeysInAppearanceOrder()
	case ByComparator:
		if cmp == nil {
			return errors.NewValidation("comparator", "nil entry comparator")
		}
		if ck, err = r.CitedKeys(); err == nil {
			ck.SortByComparator(cmp, r.unresolvedFirst)
		}
	default:
		return errors.NewValidation("numbering", "unknown numbering order")
	}
	if err != nil {
		return err
	}
	ck.NumberInCurrentOrder()
	if err := ck.DistributeNumbers(r); err != nil {
		r.resetNumbersAndLetters()
		return err
	}
	r.bibliography, r.state = ck, Built
	return nil
}

// BuildPlainBibliography builds the bibliography sorted by cmp without
// numbering it.
func (r *Registry) BuildPlainBibliography(cmp bibdb.Comparator) error {
	if err := r.requireEmpty("build plain bibliography"); err != nil {
		return err
	}
	if cmp == nil {
		return errors.NewValidation("comparator", "nil entry comparator")
	}
	ck, err := r.CitedKeys()
	if err != nil {
		return err
	}
	ck.SortByComparator(cmp, r.unresolvedFirst)
	r.bibliography, r.state = ck, Built
	return nil
}

// AssignUniqueLetters disambiguates resolved keys whose labels collide,
// lettering them in bibliography order. A bibliography must be built.
func (r *Registry) AssignUniqueLetters(label bibdb.Labeler) error {
	if r.state != Built {
		return errors.NewInvariant("assign unique letters", "no bibliography has been built")
	}
	r.bibliography.AssignUniqueLetters(label)
	return r.bibliography.DistributeUniqueLetters(r)
}

// Bibliography returns the current bibliography snapshot.
func (r *Registry) Bibliography() (*citation.CitedKeys, bool) {
	return r.bibliography, r.state == Built
}

// BibliographyState returns whether a bibliography is built.
func (r *Registry) BibliographyState() BibliographyState { return r.state }

// ClearBibliography drops the bibliography and every number and unique
// letter. Lookups are kept.
func (r *Registry) ClearBibliography() {
	r.bibliography, r.state = nil, Empty
	r.resetNumbersAndLetters()
}

func (r *Registry) requireEmpty(op string) error {
	if r.state == Built {
		return errors.NewInvariant(op, "a bibliography already exists; clear it first")
	}
	return nil
}

func (r *Registry) invalidateDerived() {
	r.bibliography, r.state = nil, Empty
	for _, g := range r.groups {
		for i := range g.Citations {
			g.Citations[i].ResetDerived()
		}
	}
}

func (r *Registry) resetNumbersAndLetters() {
	for _, g := range r.groups {
		for i := range g.Citations {
			g.Citations[i].Number = 0
			g.Citations[i].UniqueLetter = ""
		}
	}
}

func (r *Registry) citation(p citation.CitationPath) (*citation.Citation, error) {
	g, ok := r.groups[p.Group]
	if !ok {
		return nil, errors.NewNotFound("citation group", string(p.Group))
	}
	if p.Index < 0 || p.Index >= len(g.Citations) {
		return nil, errors.NewNotFound("citation", p.String())
	}
	return &g.Citations[p.Index], nil
}

// SetLookup implements citation.Sink.
func (r *Registry) SetLookup(p citation.CitationPath, l *citation.Lookup) error {
	c, err := r.citation(p)
	if err != nil {
		return err
	}
	c.Lookup = l
	return nil
}

// SetNumber implements citation.Sink.
func (r *Registry) SetNumber(p citation.CitationPath, n int) error {
	c, err := r.citation(p)
	if err != nil {
		return err
	}
	c.Number = n
	return nil
}

// SetUniqueLetter implements citation.Sink.
func (r *Registry) SetUniqueLetter(p citation.CitationPath, letter string) error {
	c, err := r.citation(p)
	if err != nil {
		return err
	}
	c.UniqueLetter = letter
	return nil
}

var _ citation.Sink = (*Registry)(nil)
