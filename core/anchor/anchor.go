// Package anchor stores citation groups in the document as named marks.
//
// An anchor normally holds rendered citation text. To rewrite it, callers ask
// for a fill cursor, which resets the anchor to the two placeholder units "<>"
// and returns a collapsed range between them. Text written there stays inside
// the anchor without touching its boundaries. CleanFillCursor must follow on
// the same handle before anything else is done with it; it removes the
// placeholders that are no longer needed.
//
// Anchors created without placeholder markup are collapsed. They are used
// for invisible citations, which are never filled.
package anchor

import (
	"unicode/utf8"

	"github.com/FocuswithJustin/citesync/core/document"
	"github.com/FocuswithJustin/citesync/core/errors"
	"github.com/FocuswithJustin/citesync/internal/logging"
)

// Placeholder units written by Create and FillCursor.
const (
	PlaceholderOpen  = "<"
	PlaceholderClose = ">"
	Placeholder      = PlaceholderOpen + PlaceholderClose

	// Separator is inserted after an anchor when a trailing separator is requested.
	Separator = " "
)

// Store is the part of the document anchors are built on.
type Store interface {
	document.TextEditor
	document.MarkStore
}

// Manager creates and finds anchors in one document.
type Manager struct {
	store Store
}

// NewManager returns a manager over store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Create inserts a new anchor called name at the start of at.
//
// Unless suppressPlaceholder is set the anchor holds "<>". With
// insertTrailingSeparator a space follows the anchor, outside it. If any step
// fails, whatever was already inserted is removed again.
func (m *Manager) Create(name string, at document.Range, insertTrailingSeparator, suppressPlaceholder bool) (*Handle, error) {
	content := Placeholder
	if suppressPlaceholder {
		content = ""
	}
	r, err := m.store.CreateMark(name, at.Start(), content)
	if err != nil {
		return nil, errors.Wrapf(err, "create anchor %s", name)
	}
	h := &Handle{m: m, name: name}
	if insertTrailingSeparator {
		if _, err := m.store.SetText(r.End(), Separator); err != nil {
			if rmErr := h.Remove(); rmErr != nil {
				logging.BatchFailure("anchor rollback", name, rmErr)
			}
			return nil, errors.Wrapf(err, "insert separator after anchor %s", name)
		}
	}
	return h, nil
}

// Locate returns the anchor called name, if the document still has it.
func (m *Manager) Locate(name string) (*Handle, bool, error) {
	_, ok, err := m.store.MarkRange(name)
	if err != nil || !ok {
		return nil, false, err
	}
	return &Handle{m: m, name: name}, true, nil
}

// UsedNames lists every mark name in the document, ours or not.
func (m *Manager) UsedNames() ([]string, error) {
	return m.store.MarkNames()
}

// Location is the result of looking up an anchor's range: either Found with
// a range, or AnchorMissing when the anchor was destroyed by an external edit.
type Location struct {
	name  string
	rng   document.Range
	found bool
}

// Found reports whether the anchor still exists.
func (l Location) Found() bool { return l.found }

// Range returns the anchor's range and whether it was found.
func (l Location) Range() (document.Range, bool) { return l.rng, l.found }

// Require returns the range, or a CorruptionError when the anchor is missing.
func (l Location) Require() (document.Range, error) {
	if !l.found {
		return nil, errors.NewCorruption(l.name, "the anchor is no longer in the document")
	}
	return l.rng, nil
}

// Handle refers to one anchor. It is owned by the group using the anchor.
type Handle struct {
	m    *Manager
	name string
}

// Name returns the anchor name.
func (h *Handle) Name() string { return h.name }

// Range looks the anchor up. A missing anchor is reported in the Location,
// not as an error.
func (h *Handle) Range() (Location, error) {
	r, ok, err := h.m.store.MarkRange(h.name)
	if err != nil {
		return Location{}, errors.Wrapf(err, "locate anchor %s", h.name)
	}
	return Location{name: h.name, rng: r, found: ok}, nil
}

// RawCursor returns the whole anchor range.
func (h *Handle) RawCursor() (document.Range, error) {
	loc, err := h.Range()
	if err != nil {
		return nil, err
	}
	return loc.Require()
}

// Text returns the text inside the anchor.
func (h *Handle) Text() (string, error) {
	r, err := h.RawCursor()
	if err != nil {
		return "", err
	}
	return h.m.store.Text(r)
}

// FillCursor resets the anchor to "<>" and returns a collapsed range between
// the two placeholder units.
//
// An anchor holding fewer than two characters cannot be reset without its
// boundaries collapsing onto the new text. Such an anchor is deleted and
// recreated at the same position once; if that still does not give two
// characters, a CorruptionError is returned.
func (h *Handle) FillCursor() (document.Range, error) {
	r, err := h.RawCursor()
	if err != nil {
		return nil, err
	}
	n, err := h.length(r)
	if err != nil {
		return nil, err
	}
	if n < 2 {
		logging.AnchorDamage(h.name, "self_heal", "length", n)
		if r, err = h.recreate(r); err != nil {
			return nil, err
		}
		if n, err = h.length(r); err != nil {
			return nil, err
		}
		if n < 2 {
			return nil, errors.NewCorruption(h.name,
				"the anchor could not be restored to hold its placeholder")
		}
	}

	r, err = h.m.store.SetText(r, Placeholder)
	if err != nil {
		return nil, errors.Wrapf(err, "reset anchor %s", h.name)
	}
	return h.m.store.Offset(r.Start(), utf8.RuneCountInString(PlaceholderOpen))
}

// CleanFillCursor removes the placeholder units left by FillCursor.
//
// With content of length 0 both units stay, so the anchor does not collapse.
// With one character the left unit stays and the right one goes. With two or
// more characters both go. forceEmpty removes both regardless.
func (h *Handle) CleanFillCursor(forceEmpty bool) error {
	r, err := h.RawCursor()
	if err != nil {
		return err
	}
	text, err := h.m.store.Text(r)
	if err != nil {
		return err
	}
	n := utf8.RuneCountInString(text)
	if n < 2 {
		return errors.NewCorruption(h.name, "fill cursor lost its placeholder units")
	}
	if text[:len(PlaceholderOpen)] != PlaceholderOpen || text[len(text)-len(PlaceholderClose):] != PlaceholderClose {
		return errors.NewCorruption(h.name, "fill cursor placeholder units were overwritten")
	}

	content := n - 2
	removeLeft, removeRight := false, false
	switch {
	case forceEmpty:
		removeLeft, removeRight = true, true
	case content == 0:
	case content == 1:
		removeRight = true
	default:
		removeLeft, removeRight = true, true
	}

	if removeRight {
		closeStart, err := h.m.store.Offset(r.End(), -utf8.RuneCountInString(PlaceholderClose))
		if err != nil {
			return err
		}
		span, err := h.m.store.Span(closeStart, r.End())
		if err != nil {
			return err
		}
		if _, err := h.m.store.SetText(span, ""); err != nil {
			return errors.Wrapf(err, "remove closing placeholder of %s", h.name)
		}
	}
	if removeLeft {
		openEnd, err := h.m.store.Offset(r.Start(), utf8.RuneCountInString(PlaceholderOpen))
		if err != nil {
			return err
		}
		span, err := h.m.store.Span(r.Start(), openEnd)
		if err != nil {
			return err
		}
		if _, err := h.m.store.SetText(span, ""); err != nil {
			return errors.Wrapf(err, "remove opening placeholder of %s", h.name)
		}
	}
	return nil
}

// Remove deletes the anchor text and the anchor. Removing an anchor that is
// already gone is not an error.
func (h *Handle) Remove() error {
	loc, err := h.Range()
	if err != nil {
		return err
	}
	r, ok := loc.Range()
	if !ok {
		logging.AnchorEvent(h.name, "remove_missing")
		return nil
	}
	if _, err := h.m.store.SetText(r, ""); err != nil {
		return errors.Wrapf(err, "clear anchor %s", h.name)
	}
	if err := h.m.store.RemoveMark(h.name); err != nil {
		return errors.Wrapf(err, "remove anchor %s", h.name)
	}
	return nil
}

func (h *Handle) length(r document.Range) (int, error) {
	text, err := h.m.store.Text(r)
	if err != nil {
		return 0, err
	}
	return utf8.RuneCountInString(text), nil
}

func (h *Handle) recreate(r document.Range) (document.Range, error) {
	salvaged, err := h.m.store.SetText(r, "")
	if err != nil {
		return nil, errors.Wrapf(err, "self-heal anchor %s", h.name)
	}
	if err := h.m.store.RemoveMark(h.name); err != nil {
		return nil, errors.Wrapf(err, "self-heal anchor %s", h.name)
	}
	created, err := h.m.store.CreateMark(h.name, salvaged.Start(), Placeholder)
	if err != nil {
		return nil, &errors.CorruptionError{Anchor: h.name, Reason: "recreating the anchor failed", Err: err}
	}
	return created, nil
}

// Discard removes an anchor that was just created, together with the
// separator Create put after it when withSeparator is set.
func (h *Handle) Discard(withSeparator bool) error {
	if withSeparator {
		if err := h.removeSeparator(); err != nil {
			return err
		}
	}
	return h.Remove()
}

func (h *Handle) removeSeparator() error {
	r, err := h.RawCursor()
	if err != nil {
		return err
	}
	end, err := h.m.store.Offset(r.End(), utf8.RuneCountInString(Separator))
	if err != nil {
		// Nothing follows the anchor.
		return nil
	}
	span, err := h.m.store.Span(r.End(), end)
	if err != nil {
		return err
	}
	text, err := h.m.store.Text(span)
	if err != nil || text != Separator {
		return err
	}
	_, err = h.m.store.SetText(span, "")
	return errors.Wrapf(err, "remove separator after %s", h.name)
}
