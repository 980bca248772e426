package session

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/FocuswithJustin/citesync/core/citation"
	"github.com/FocuswithJustin/citesync/core/document"
	"github.com/FocuswithJustin/citesync/core/errors"
	"github.com/FocuswithJustin/citesync/core/registry"
	"github.com/FocuswithJustin/citesync/internal/logging"
)

// Summary describes a finished refresh.
type Summary struct {
	SyncID     string
	Groups     int
	CitedKeys  int
	Unresolved []string
	Order      []citation.GroupID
}

// Refresh runs the whole synchronization: it looks every citation up, sorts
// citations inside their groups, computes the global order, builds the
// bibliography and rewrites the text of every anchor.
func (s *Session) Refresh(ctx context.Context) (*Summary, error) {
	syncID := logging.NewSyncID()
	ctx = logging.WithSyncID(ctx, syncID)
	sum := &Summary{SyncID: syncID, Groups: s.reg.Len()}

	step := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		logging.SyncStep(ctx, name, time.Since(start), "ok", err == nil)
		if err != nil {
			return errors.Wrapf(err, "refresh %s", name)
		}
		return nil
	}

	if err := step("lookup", func() error {
		return s.reg.LookupCitations(ctx, s.opts.Databases)
	}); err != nil {
		return nil, err
	}
	if err := step("local_order", func() error {
		return s.reg.ImposeLocalOrder(s.opts.Comparator)
	}); err != nil {
		return nil, err
	}
	if err := step("global_order", func() error {
		var err error
		sum.Order, err = s.UpdateGlobalOrder()
		return err
	}); err != nil {
		return nil, err
	}
	if err := step("bibliography", s.BuildBibliography); err != nil {
		return nil, err
	}
	if err := step("fill", s.FillAll); err != nil {
		return nil, err
	}

	if bib, ok := s.reg.Bibliography(); ok {
		sum.CitedKeys = bib.Len()
	}
	unresolved, err := s.reg.UnresolvedKeys()
	if err != nil {
		return nil, err
	}
	sum.Unresolved = unresolved
	logging.InfoContext(ctx, "refresh complete",
		"groups", sum.Groups, "cited_keys", sum.CitedKeys, "unresolved", len(sum.Unresolved))
	return sum, nil
}

// BuildBibliography clears any previous bibliography and builds a new one
// with the configured numbering. Numbering by appearance needs a global order.
func (s *Session) BuildBibliography() error {
	s.reg.ClearBibliography()
	switch s.opts.Numbering {
	case NumberByAppearance:
		return s.reg.BuildNumberedBibliography(registry.ByAppearance, nil)
	case NumberByComparator:
		return s.reg.BuildNumberedBibliography(registry.ByComparator, s.opts.Comparator)
	default:
		if err := s.reg.BuildPlainBibliography(s.opts.Comparator); err != nil {
			return err
		}
		return s.reg.AssignUniqueLetters(s.opts.Labeler)
	}
}

// FillAll rewrites the text of every group with controllers locked. Each
// group is attempted; failures are returned together.
func (s *Session) FillAll() error {
	var result *multierror.Error
	err := document.WithControllersLocked(s.doc, func() error {
		for _, g := range s.reg.Groups() {
			if err := s.FillGroup(g.ID); err != nil {
				logging.BatchFailure("fill group", string(g.ID), err)
				result = multierror.Append(result, err)
			}
		}
		return nil
	})
	if err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// FillGroup writes the rendered text of a group into its anchor. Invisible
// groups are left alone.
func (s *Session) FillGroup(id citation.GroupID) error {
	g, ok := s.reg.Group(id)
	if !ok {
		return errors.NewNotFound("citation group", string(id))
	}
	if g.Kind == citation.KindInvisible {
		return nil
	}
	text := s.opts.Renderer(g, s.opts.DataModel, s.numbered())

	cursor, err := g.Anchor.FillCursor()
	if err != nil {
		return err
	}
	if text != "" {
		if _, err := s.doc.SetText(cursor, text); err != nil {
			if cleanErr := g.Anchor.CleanFillCursor(false); cleanErr != nil {
				logging.BatchFailure("clean fill cursor", string(id), cleanErr)
			}
			return errors.Wrapf(err, "write text of %s", id)
		}
	}
	return g.Anchor.CleanFillCursor(text == "")
}

func (s *Session) numbered() bool {
	return s.opts.Numbering != NumberNone
}
