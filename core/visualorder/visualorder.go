// Package visualorder computes the order in which ranges appear on screen.
//
// Positions are measured by moving the document's live view cursor to each
// range, so the user's selection is saved first and restored on every exit
// path. Ranges are pre-sorted textually inside their stream and that order is
// the tiebreak for ranges drawn at the same position.
//
// Multi-column and side-by-side page layouts can yield an order that differs
// from the intended reading order. That is a property of measuring by screen
// position and is not corrected here.
package visualorder

import (
	"slices"

	"github.com/FocuswithJustin/citesync/core/document"
	"github.com/FocuswithJustin/citesync/core/errors"
	"github.com/FocuswithJustin/citesync/core/rangeindex"
	"github.com/FocuswithJustin/citesync/internal/logging"
)

// CursorRemedy is the message shown when no live view cursor is available.
const CursorRemedy = "Move the focus into the document body and try again."

// Document is the part of the document the resolver uses.
type Document interface {
	document.RangeComparer
	document.FootnoteLocator
	document.ViewCursorProvider
	document.ControllerLocker
}

// Entry is one range to order. Index breaks ties between identical ranges.
type Entry[P any] struct {
	Range   document.Range
	Index   int
	Payload P
}

// Options controls Resolve.
type Options struct {
	// MapFootnotesToMarks measures ranges inside footnotes at the footnote marker.
	MapFootnotesToMarks bool
}

type measured[P any] struct {
	Entry[P]
	dense int
	at    document.Range
	pos   document.Point
}

func rangeOf[P any](m *measured[P]) document.Range { return m.Range }

// Resolve returns the payloads in on-screen order: by vertical position,
// then horizontal position, then textual order.
func Resolve[P any](doc Document, entries []Entry[P], opts Options) (out []P, err error) {
	if len(entries) == 0 {
		return nil, nil
	}
	vc, err := doc.ViewCursor()
	if err != nil {
		var pre *errors.PreconditionError
		if errors.As(err, &pre) {
			return nil, err
		}
		logging.Debug("view cursor unavailable", "error", err)
		return nil, errors.NewPrecondition("view cursor", CursorRemedy)
	}
	saved, err := vc.Selection()
	if err != nil {
		return nil, errors.Wrap(err, "save selection")
	}
	defer func() {
		if restoreErr := vc.Select(saved); restoreErr != nil && err == nil {
			err = errors.Wrap(restoreErr, "restore selection")
		}
	}()
	if doc.ControllersLocked() {
		logging.Warn("measuring visual order with controllers locked", "entries", len(entries))
	}

	items, err := textual(doc, entries)
	if err != nil {
		return nil, err
	}

	for _, m := range items {
		m.at = m.Range
		if opts.MapFootnotesToMarks {
			marker, ok, err := doc.FootnoteMarker(m.Range)
			if err != nil {
				return nil, errors.Wrapf(err, "footnote marker of entry %d", m.Index)
			}
			if ok {
				m.at = marker
			}
		}
		if err := vc.GotoRange(m.at.Start()); err != nil {
			return nil, errors.Wrapf(err, "move view cursor to entry %d", m.Index)
		}
		if m.pos, err = vc.Position(); err != nil {
			return nil, errors.Wrapf(err, "position of entry %d", m.Index)
		}
	}

	slices.SortStableFunc(items, func(a, b *measured[P]) int {
		switch {
		case a.pos.Y != b.pos.Y:
			return a.pos.Y - b.pos.Y
		case a.pos.X != b.pos.X:
			return a.pos.X - b.pos.X
		}
		return a.dense - b.dense
	})
	return payloads(items), nil
}

// ResolveTextual returns the payloads ordered by stream id, then by textual
// position inside each stream. It does not touch the view cursor.
func ResolveTextual[P any](cmp document.RangeComparer, entries []Entry[P]) ([]P, error) {
	items, err := textual(cmp, entries)
	if err != nil {
		return nil, err
	}
	return payloads(items), nil
}

// textual partitions entries by stream, sorts each partition by (start, end)
// with the caller's index as tiebreak, and numbers the result densely.
func textual[P any](cmp document.RangeComparer, entries []Entry[P]) ([]*measured[P], error) {
	items := make([]*measured[P], len(entries))
	for i := range entries {
		items[i] = &measured[P]{Entry: entries[i]}
	}
	slices.SortStableFunc(items, func(a, b *measured[P]) int { return a.Index - b.Index })

	groups, err := rangeindex.SortWithinPartitions(cmp, items, rangeOf[P])
	if err != nil {
		return nil, errors.Wrap(err, "textual pre-sort")
	}
	out := make([]*measured[P], 0, len(items))
	for _, g := range groups {
		for _, m := range g.Items {
			m.dense = len(out)
			out = append(out, m)
		}
	}
	return out, nil
}

func payloads[P any](items []*measured[P]) []P {
	out := make([]P, len(items))
	for i, m := range items {
		out[i] = m.Payload
	}
	return out
}
