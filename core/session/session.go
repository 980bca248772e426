// Package session binds a document to a citation registry.
//
// A Session loads the citation groups stored in a document, keeps the
// document and the registry in step as groups are created and removed, and
// runs the refresh pipeline that looks citations up, orders them, builds the
// bibliography and rewrites the text of every anchor.
//
// Group metadata lives in the document property named after the group's
// anchor. Documents written with the older naming scheme are migrated when
// they are opened: their anchors keep their names and gain a record.
package session

import (
	"context"
	"strings"

	"github.com/FocuswithJustin/citesync/core/anchor"
	"github.com/FocuswithJustin/citesync/core/bibdb"
	"github.com/FocuswithJustin/citesync/core/citation"
	"github.com/FocuswithJustin/citesync/core/document"
	"github.com/FocuswithJustin/citesync/core/errors"
	"github.com/FocuswithJustin/citesync/core/markname"
	"github.com/FocuswithJustin/citesync/core/registry"
	"github.com/FocuswithJustin/citesync/internal/logging"
)

// Order selects how the global order is computed.
type Order int

// Global order sources.
const (
	OrderVisual Order = iota
	OrderTextual
)

// Numbering selects how the bibliography is numbered.
type Numbering int

// Numbering modes. NumberNone builds an unnumbered bibliography and assigns
// unique letters instead.
const (
	NumberByAppearance Numbering = iota
	NumberByComparator
	NumberNone
)

// Options configures a session.
type Options struct {
	DataModel           citation.DataModel
	UnresolvedFirst     bool
	MapFootnotesToMarks bool

	// RequireSeparation makes touching anchors count as overlapping.
	RequireSeparation bool

	// OverlapReportLimit caps the reports of one overlap check; 0 means no cap.
	OverlapReportLimit int

	Order     Order
	Numbering Numbering

	// Databases are searched in order.
	Databases []bibdb.Database

	// Comparator sorts entries. Nil means collation for "en".
	Comparator bibdb.Comparator

	// Labeler groups entries for unique letters. Nil means AuthorYearLabel.
	Labeler bibdb.Labeler

	// Renderer produces anchor text. Nil means DefaultRenderer.
	Renderer Renderer
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		DataModel:          citation.GroupPageInfo,
		OverlapReportLimit: 10,
		Order:              OrderVisual,
		Numbering:          NumberByAppearance,
	}
}

// LoadProblem is a group that could not be loaded.
type LoadProblem struct {
	Name string
	Err  error
}

// Session is a document with its registry. It is not safe for concurrent use.
type Session struct {
	doc      document.Document
	anchors  *anchor.Manager
	reg      *registry.Registry
	opts     Options
	problems []LoadProblem
}

// Open loads the citation groups of doc. Groups that cannot be loaded are
// skipped and reported by Problems; only failures to read the document are
// returned as errors.
func Open(ctx context.Context, doc document.Document, opts Options) (*Session, error) {
	if doc == nil {
		return nil, errors.NewPrecondition("document", "Open a document and try again.")
	}
	if opts.Comparator == nil {
		cmp, err := bibdb.CollatingComparator("en")
		if err != nil {
			return nil, err
		}
		opts.Comparator = cmp
	}
	if opts.Labeler == nil {
		opts.Labeler = bibdb.AuthorYearLabel
	}
	if opts.Renderer == nil {
		opts.Renderer = DefaultRenderer
	}

	s := &Session{
		doc:     doc,
		anchors: anchor.NewManager(doc),
		reg:     registry.New(opts.DataModel, opts.UnresolvedFirst),
		opts:    opts,
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Registry returns the registry behind the session.
func (s *Session) Registry() *registry.Registry { return s.reg }

// Document returns the session's document.
func (s *Session) Document() document.Document { return s.doc }

// Options returns the effective options.
func (s *Session) Options() Options { return s.opts }

// Problems returns the groups skipped by Open.
func (s *Session) Problems() []LoadProblem {
	return append([]LoadProblem(nil), s.problems...)
}

func hasOurPrefix(name string) bool {
	return strings.HasPrefix(name, markname.CurrentPrefix) || strings.HasPrefix(name, markname.LegacyPrefix)
}

func (s *Session) load(ctx context.Context) error {
	names, err := s.anchors.UsedNames()
	if err != nil {
		return errors.Wrap(err, "list anchors")
	}
	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
		if !hasOurPrefix(name) {
			continue
		}
		g, err := s.loadGroup(name)
		if err == nil {
			err = s.reg.Add(g)
		}
		if err != nil {
			s.problem(ctx, name, err)
		}
	}

	props, err := s.doc.PropertyNames()
	if err != nil {
		return errors.Wrap(err, "list properties")
	}
	for _, name := range props {
		if present[name] || !markname.IsOurs(name) {
			continue
		}
		s.problem(ctx, name, errors.NewCorruption(name, "the group record has no anchor in the document"))
	}
	logging.InfoContext(ctx, "citation groups loaded", "groups", s.reg.Len(), "problems", len(s.problems))
	return nil
}

func (s *Session) problem(ctx context.Context, name string, err error) {
	logging.WarnContext(ctx, "skipping citation group", "anchor", name, "error", err)
	s.problems = append(s.problems, LoadProblem{Name: name, Err: err})
}

func (s *Session) loadGroup(name string) (*citation.CitationGroup, error) {
	parsed, err := markname.Parse(name)
	if err != nil {
		return nil, err
	}
	handle, ok, err := s.anchors.Locate(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewCorruption(name, "the anchor is no longer in the document")
	}
	value, has, err := s.doc.Property(name)
	if err != nil {
		return nil, errors.Wrapf(err, "read record of %s", name)
	}

	var rec markname.Record
	switch {
	case has && markname.IsRecord(value):
		if rec, err = markname.DecodeRecord(name, value); err != nil {
			return nil, err
		}
	case parsed.Legacy:
		rec = markname.Record{
			Version: markname.RecordVersion,
			Kind:    parsed.Kind.String(),
			Keys:    parsed.Keys,
		}
		if has {
			rec.PageInfo = citation.NewPageInfo(value).String()
		}
		encoded, err := rec.Encode()
		if err != nil {
			return nil, err
		}
		if err := s.doc.SetProperty(name, encoded); err != nil {
			return nil, errors.Wrapf(err, "migrate %s", name)
		}
		logging.AnchorEvent(name, "migrate", "keys", len(rec.Keys))
	default:
		return nil, errors.NewCorruption(name, "the group record is missing")
	}
	return s.groupFromRecord(citation.GroupID(name), handle, rec)
}

// groupFromRecord builds a group. Page info is mapped onto the session's
// data model: a group page info read under the citation model goes to the
// last citation, and citation page infos read under the group model are
// joined.
func (s *Session) groupFromRecord(id citation.GroupID, h *anchor.Handle, rec markname.Record) (*citation.CitationGroup, error) {
	kind, err := rec.ParsedKind()
	if err != nil {
		return nil, err
	}
	g, err := citation.NewGroup(id, kind, h, rec.Keys)
	if err != nil {
		return nil, err
	}
	switch s.opts.DataModel {
	case citation.CitationPageInfo:
		for i, p := range rec.CitationPageInfo {
			g.Citations[i].PageInfo = citation.NewPageInfo(p)
		}
		if len(rec.CitationPageInfo) == 0 && rec.PageInfo != "" {
			g.Citations[len(g.Citations)-1].PageInfo = citation.NewPageInfo(rec.PageInfo)
		}
	default:
		page := rec.PageInfo
		if page == "" {
			var parts []string
			for _, p := range rec.CitationPageInfo {
				if p = strings.TrimSpace(p); p != "" {
					parts = append(parts, p)
				}
			}
			page = strings.Join(parts, "; ")
		}
		g.PageInfo = citation.NewPageInfo(page)
	}
	return g, nil
}

func (s *Session) writeRecord(g *citation.CitationGroup) error {
	encoded, err := markname.RecordOf(g, s.opts.DataModel).Encode()
	if err != nil {
		return err
	}
	return errors.Wrapf(s.doc.SetProperty(string(g.ID), encoded), "write record of %s", g.ID)
}

func (s *Session) removeRecord(id citation.GroupID) error {
	err := s.doc.RemoveProperty(string(id))
	if errors.Is(err, errors.ErrNotFound) {
		return nil
	}
	return err
}
