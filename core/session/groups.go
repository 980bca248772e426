package session

import (
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/FocuswithJustin/citesync/core/anchor"
	"github.com/FocuswithJustin/citesync/core/citation"
	"github.com/FocuswithJustin/citesync/core/document"
	"github.com/FocuswithJustin/citesync/core/errors"
	"github.com/FocuswithJustin/citesync/core/markname"
	"github.com/FocuswithJustin/citesync/internal/logging"
)

// GroupRequest describes a group to create.
type GroupRequest struct {
	Keys []string
	Kind citation.Kind

	// PageInfo is used under the group page info model.
	PageInfo string

	// CitationPageInfo is used under the citation page info model, one per key.
	CitationPageInfo []string

	// At is where the anchor goes.
	At document.Range

	// TrailingSeparator inserts a space after the anchor.
	TrailingSeparator bool
}

// CreateGroup inserts an anchor at req.At and registers a group for it.
// Invisible groups get a collapsed anchor. Either everything is created or
// nothing is left in the document.
func (s *Session) CreateGroup(req GroupRequest) (citation.GroupID, error) {
	g, err := s.newGroup(req)
	if err != nil {
		return "", err
	}
	used, err := s.anchors.UsedNames()
	if err != nil {
		return "", err
	}
	taken := make(map[string]bool, len(used))
	for _, n := range used {
		taken[n] = true
	}
	id, err := markname.New(req.Kind, req.Keys, func(name string) bool {
		if taken[name] {
			return true
		}
		_, ok, _ := s.doc.Property(name)
		return ok
	})
	if err != nil {
		return "", err
	}
	g.ID = id

	err = document.WithControllersLocked(s.doc, func() error {
		h, err := s.anchors.Create(string(id), req.At, req.TrailingSeparator, req.Kind == citation.KindInvisible)
		if err != nil {
			return err
		}
		g.Anchor = h
		if err = s.writeRecord(g); err == nil {
			err = s.reg.Add(g)
		}
		if err != nil {
			s.rollbackCreate(id, h, req.TrailingSeparator)
			return err
		}
		return nil
	})
	if err != nil {
		return "", errors.Wrapf(err, "create citation group for %s", strings.Join(req.Keys, ", "))
	}
	logging.AnchorEvent(string(id), "create", "keys", len(req.Keys), "kind", req.Kind.String())
	return id, nil
}

func (s *Session) newGroup(req GroupRequest) (*citation.CitationGroup, error) {
	if req.At == nil {
		return nil, errors.NewValidation("position", "no position for the new citation")
	}
	g, err := citation.NewGroup("", req.Kind, nil, req.Keys)
	if err != nil {
		return nil, err
	}
	switch s.opts.DataModel {
	case citation.CitationPageInfo:
		if req.PageInfo != "" {
			return nil, errors.NewUnsupported("group page info", "page info is kept per citation")
		}
		if n := len(req.CitationPageInfo); n != 0 && n != len(req.Keys) {
			return nil, errors.NewValidation("citation_page_info", "needs one entry per key")
		}
		for i, p := range req.CitationPageInfo {
			g.Citations[i].PageInfo = citation.NewPageInfo(p)
		}
	default:
		if len(req.CitationPageInfo) != 0 {
			return nil, errors.NewUnsupported("citation page info", "page info is kept per group")
		}
		g.PageInfo = citation.NewPageInfo(req.PageInfo)
	}
	return g, nil
}

func (s *Session) rollbackCreate(id citation.GroupID, h *anchor.Handle, separator bool) {
	if err := h.Discard(separator); err != nil {
		logging.BatchFailure("create rollback", string(id), err)
	}
	if err := s.removeRecord(id); err != nil {
		logging.BatchFailure("create rollback", string(id), err)
	}
}

// RemoveGroups deletes the anchors, records and registry entries of ids.
// Every id is attempted; the error lists those that failed.
func (s *Session) RemoveGroups(ids []citation.GroupID) error {
	var result *multierror.Error
	err := document.WithControllersLocked(s.doc, func() error {
		for _, id := range ids {
			if err := s.removeGroup(id); err != nil {
				logging.BatchFailure("remove group", string(id), err)
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

func (s *Session) removeGroup(id citation.GroupID) error {
	g, ok := s.reg.Group(id)
	if !ok {
		return errors.NewNotFound("citation group", string(id))
	}
	if err := g.Anchor.Remove(); err != nil {
		return err
	}
	if err := s.removeRecord(id); err != nil {
		return errors.Wrapf(err, "remove record of %s", id)
	}
	return s.reg.Remove(id)
}

// GroupRange locates the anchor of a group. A destroyed anchor is reported
// through the Location.
func (s *Session) GroupRange(id citation.GroupID) (anchor.Location, error) {
	g, ok := s.reg.Group(id)
	if !ok {
		return anchor.Location{}, errors.NewNotFound("citation group", string(id))
	}
	return g.Anchor.Range()
}

// GroupText returns the current text of a group's anchor.
func (s *Session) GroupText(id citation.GroupID) (string, error) {
	g, ok := s.reg.Group(id)
	if !ok {
		return "", errors.NewNotFound("citation group", string(id))
	}
	return g.Anchor.Text()
}

// SetPageInfo changes a group's page info and stores it.
func (s *Session) SetPageInfo(id citation.GroupID, page string) error {
	if err := s.reg.SetGroupPageInfo(id, citation.NewPageInfo(page)); err != nil {
		return err
	}
	g, _ := s.reg.Group(id)
	return s.writeRecord(g)
}

// SetCitationPageInfo changes one citation's page info and stores it.
func (s *Session) SetCitationPageInfo(path citation.CitationPath, page string) error {
	if err := s.reg.SetCitationPageInfo(path, citation.NewPageInfo(page)); err != nil {
		return err
	}
	g, _ := s.reg.Group(path.Group)
	return s.writeRecord(g)
}
