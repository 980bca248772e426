package session

import (
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/FocuswithJustin/citesync/core/citation"
	"github.com/FocuswithJustin/citesync/core/errors"
)

// Placeholder is a collapsed mark left by an importer where a citation was
// written in the source. Attrs holds "keys" (comma separated), and
// optionally "kind" and "page".
type Placeholder struct {
	Mark  string
	Attrs map[string]string
}

// ImportPlaceholders creates a group at each placeholder and removes the
// placeholder mark. Placeholders must be listed in document order; those
// sharing a position end up in list order. Placeholders are handled
// independently; the ids of the created groups are returned in list order
// along with the collected failures.
func (s *Session) ImportPlaceholders(placeholders []Placeholder) ([]citation.GroupID, error) {
	// A collapsed mark stays in front of text inserted at its position, so
	// the list is walked backwards.
	ids := make([]citation.GroupID, len(placeholders))
	var failures []error
	for i := len(placeholders) - 1; i >= 0; i-- {
		p := placeholders[i]
		id, err := s.importPlaceholder(p)
		ids[i] = id
		if err != nil {
			failures = append(failures, errors.Wrapf(err, "placeholder %s", p.Mark))
		}
	}

	var created []citation.GroupID
	for _, id := range ids {
		if id != "" {
			created = append(created, id)
		}
	}
	var result *multierror.Error
	for i := len(failures) - 1; i >= 0; i-- {
		result = multierror.Append(result, failures[i])
	}
	return created, result.ErrorOrNil()
}

func (s *Session) importPlaceholder(p Placeholder) (citation.GroupID, error) {
	at, ok, err := s.doc.MarkRange(p.Mark)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.NewNotFound("placeholder mark", p.Mark)
	}

	var keys []string
	for _, k := range strings.Split(p.Attrs["keys"], ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	kind := citation.KindParenthetical
	if name := p.Attrs["kind"]; name != "" {
		if kind, err = citation.ParseKind(name); err != nil {
			return "", err
		}
	}
	req := GroupRequest{Keys: keys, Kind: kind, At: at}
	if page := p.Attrs["page"]; page != "" {
		if s.opts.DataModel == citation.CitationPageInfo {
			req.CitationPageInfo = make([]string, len(keys))
			if len(keys) > 0 {
				req.CitationPageInfo[len(keys)-1] = page
			}
		} else {
			req.PageInfo = page
		}
	}

	id, err := s.CreateGroup(req)
	if err != nil {
		return "", err
	}
	if err := s.doc.RemoveMark(p.Mark); err != nil {
		return id, errors.Wrapf(err, "remove placeholder %s", p.Mark)
	}
	return id, nil
}
