package session

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/FocuswithJustin/citesync/core/citation"
	"github.com/FocuswithJustin/citesync/core/document"
	"github.com/FocuswithJustin/citesync/core/errors"
	"github.com/FocuswithJustin/citesync/core/rangeindex"
	"github.com/FocuswithJustin/citesync/core/visualorder"
)

type located struct {
	group *citation.CitationGroup
	rng   document.Range
}

// locateAll finds the anchor of every group. Missing anchors are collected
// and returned together.
func (s *Session) locateAll() ([]located, error) {
	var result *multierror.Error
	var out []located
	for _, g := range s.reg.Groups() {
		loc, err := g.Anchor.Range()
		if err == nil {
			var r document.Range
			if r, err = loc.Require(); err == nil {
				out = append(out, located{group: g, rng: r})
				continue
			}
		}
		result = multierror.Append(result, err)
	}
	return out, result.ErrorOrNil()
}

func (s *Session) orderEntries() ([]visualorder.Entry[citation.GroupID], error) {
	groups, err := s.locateAll()
	if err != nil {
		return nil, err
	}
	entries := make([]visualorder.Entry[citation.GroupID], len(groups))
	for i, l := range groups {
		entries[i] = visualorder.Entry[citation.GroupID]{Range: l.rng, Index: i, Payload: l.group.ID}
	}
	return entries, nil
}

// VisualOrder orders the groups by their position on screen and installs
// the result as the registry's global order.
func (s *Session) VisualOrder() ([]citation.GroupID, error) {
	entries, err := s.orderEntries()
	if err != nil {
		return nil, err
	}
	ids, err := visualorder.Resolve(s.doc, entries, visualorder.Options{MapFootnotesToMarks: s.opts.MapFootnotesToMarks})
	if err != nil {
		return nil, err
	}
	if err := s.reg.SetGlobalOrder(ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// TextualOrder orders the groups by stream, then by position in the stream,
// and installs the result as the registry's global order.
func (s *Session) TextualOrder() ([]citation.GroupID, error) {
	entries, err := s.orderEntries()
	if err != nil {
		return nil, err
	}
	ids, err := visualorder.ResolveTextual(s.doc, entries)
	if err != nil {
		return nil, err
	}
	if err := s.reg.SetGlobalOrder(ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateGlobalOrder recomputes the global order with the configured method.
func (s *Session) UpdateGlobalOrder() ([]citation.GroupID, error) {
	if s.opts.Order == OrderTextual {
		return s.TextualOrder()
	}
	return s.VisualOrder()
}

// Describe names a group for messages: its id and keys.
func (s *Session) Describe(id citation.GroupID) string {
	g, ok := s.reg.Group(id)
	if !ok {
		return string(id)
	}
	return fmt.Sprintf("%s (%s)", id, strings.Join(g.Keys(), ", "))
}

// CheckRangeOverlaps looks for anchors sharing, overlapping or, when
// separation is required, touching ranges. Problems are returned as an
// OverlapError with at most OverlapReportLimit reports. Missing anchors are
// reported alongside.
func (s *Session) CheckRangeOverlaps() error {
	groups, missing := s.locateAll()
	ix := rangeindex.New[citation.GroupID](s.doc)
	var result *multierror.Error
	if missing != nil {
		result = multierror.Append(result, missing)
	}
	for _, l := range groups {
		if err := ix.Put(l.rng, l.group.ID); err != nil {
			result = multierror.Append(result, err)
		}
	}
	reports, err := ix.FindOverlaps(s.opts.OverlapReportLimit, s.opts.RequireSeparation)
	if err != nil {
		result = multierror.Append(result, err)
	}
	if len(reports) > 0 {
		overlap := &errors.OverlapError{}
		for _, r := range reports {
			overlap.Reports = append(overlap.Reports, r.Describe(s.Describe))
		}
		result = multierror.Append(result, overlap)
	}
	return result.ErrorOrNil()
}

// CheckCursorOverlap reports the groups whose anchors overlap r, or touch it
// when separation is required. Use it before editing at r.
func (s *Session) CheckCursorOverlap(r document.Range) error {
	groups, err := s.locateAll()
	if err != nil {
		return err
	}
	overlap := &errors.OverlapError{}
	for _, l := range groups {
		if l.rng.Stream() != r.Stream() {
			continue
		}
		hit, err := s.rangesMeet(r, l.rng)
		if err != nil {
			return err
		}
		if hit {
			overlap.Reports = append(overlap.Reports, "the cursor is in "+s.Describe(l.group.ID))
			if limit := s.opts.OverlapReportLimit; limit > 0 && len(overlap.Reports) >= limit {
				break
			}
		}
	}
	if len(overlap.Reports) == 0 {
		return nil
	}
	return overlap
}

// rangesMeet reports whether a and b share text, or also share a boundary
// when separation is required.
func (s *Session) rangesMeet(a, b document.Range) (bool, error) {
	aStartBEnd, err := s.doc.CompareStarts(a.Start(), b.End())
	if err != nil {
		return false, err
	}
	bStartAEnd, err := s.doc.CompareStarts(b.Start(), a.End())
	if err != nil {
		return false, err
	}
	if s.opts.RequireSeparation {
		return aStartBEnd <= 0 && bStartAEnd <= 0, nil
	}
	return aStartBEnd < 0 && bStartAEnd < 0, nil
}
