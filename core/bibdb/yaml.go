package bibdb

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/citesync/core/errors"
)

type entryFile struct {
	Entries []Entry `yaml:"entries"`
}

// LoadEntriesYAML reads entries from a YAML document of the form
//
//	entries:
//	  - key: Smith2000
//	    type: book
//	    fields: {author: "Smith, Jane", year: "2000", title: "A Book"}
//
// Keys must be present and unique.
func LoadEntriesYAML(r io.Reader) ([]Entry, error) {
	var f entryFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, &errors.ParseError{Format: "YAML", Message: err.Error(), Err: err}
	}
	seen := make(map[string]bool, len(f.Entries))
	for i := range f.Entries {
		if err := f.Entries[i].Validate(); err != nil {
			return nil, errors.Wrapf(err, "entry %d", i)
		}
		if seen[f.Entries[i].Key] {
			return nil, errors.NewParse("YAML", f.Entries[i].Key, fmt.Sprintf("duplicate key at entry %d", i))
		}
		seen[f.Entries[i].Key] = true
	}
	return f.Entries, nil
}
