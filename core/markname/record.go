package markname

import (
	"encoding/json"
	"strings"

	"github.com/FocuswithJustin/citesync/core/citation"
	"github.com/FocuswithJustin/citesync/core/errors"
)

// RecordVersion is the version written by Encode.
const RecordVersion = 1

// Record is the metadata of one group, stored as JSON in the document
// property named after the group's anchor.
type Record struct {
	Version int    `json:"version"`
	Kind    string `json:"kind"`

	// Keys are the citation keys in storage order.
	Keys []string `json:"keys"`

	// PageInfo is the group page info.
	PageInfo string `json:"page_info,omitempty"`

	// CitationPageInfo holds one entry per key under the citation page info model.
	CitationPageInfo []string `json:"citation_page_info,omitempty"`
}

// RecordOf captures a group under model.
func RecordOf(g *citation.CitationGroup, model citation.DataModel) Record {
	r := Record{Version: RecordVersion, Kind: g.Kind.String(), Keys: g.Keys()}
	if model == citation.CitationPageInfo {
		hasAny := false
		pages := make([]string, len(g.Citations))
		for i, c := range g.Citations {
			pages[i] = c.PageInfo.String()
			hasAny = hasAny || !c.PageInfo.IsEmpty()
		}
		if hasAny {
			r.CitationPageInfo = pages
		}
	} else {
		r.PageInfo = g.PageInfo.String()
	}
	return r
}

// ParsedKind returns the record's kind.
func (r Record) ParsedKind() (citation.Kind, error) {
	return citation.ParseKind(r.Kind)
}

// Validate checks the record is usable.
func (r Record) Validate() error {
	if r.Version != RecordVersion {
		return &errors.UnsupportedError{Feature: "group record version", Reason: "only version 1 is understood"}
	}
	if _, err := r.ParsedKind(); err != nil {
		return err
	}
	if len(r.Keys) == 0 {
		return errors.NewValidation("keys", "a group record needs at least one key")
	}
	if n := len(r.CitationPageInfo); n != 0 && n != len(r.Keys) {
		return errors.NewValidation("citation_page_info", "needs one entry per key")
	}
	return nil
}

// Encode returns the JSON form of r.
func (r Record) Encode() (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return "", errors.Wrap(err, "encode group record")
	}
	return string(data), nil
}

// IsRecord reports whether a property value looks like an encoded record
// rather than a legacy bare page info string.
func IsRecord(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), "{")
}

// DecodeRecord parses and validates an encoded record.
func DecodeRecord(name, value string) (Record, error) {
	var r Record
	dec := json.NewDecoder(strings.NewReader(value))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&r); err != nil {
		return Record{}, &errors.ParseError{Format: "group record", Path: name, Message: err.Error(), Err: err}
	}
	if err := r.Validate(); err != nil {
		return Record{}, errors.Wrapf(err, "group record %s", name)
	}
	return r, nil
}
