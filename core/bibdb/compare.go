package bibdb

import (
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/FocuswithJustin/citesync/core/errors"
)

// Comparator is a total order over entries. Negative means a sorts first.
type Comparator func(a, b *Entry) int

// Labeler returns the author-year label used to decide which entries need
// unique letters.
type Labeler func(e *Entry) string

// CollatingComparator orders entries by first author (or editor), year and
// title, comparing names and titles with the collation rules of locale. The
// citation key breaks remaining ties.
func CollatingComparator(locale string) (Comparator, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, &errors.ValidationError{Field: "collation_locale", Value: locale, Message: "not a BCP 47 tag", Err: err}
	}
	var mu sync.Mutex
	col := collate.New(tag, collate.IgnoreCase)
	compareStrings := func(a, b string) int {
		mu.Lock()
		defer mu.Unlock()
		return col.CompareString(a, b)
	}

	return func(a, b *Entry) int {
		if c := compareStrings(sortName(a), sortName(b)); c != 0 {
			return c
		}
		if c := compareYears(a.Field(FieldYear), b.Field(FieldYear)); c != 0 {
			return c
		}
		if c := compareStrings(a.Field(FieldTitle), b.Field(FieldTitle)); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	}, nil
}

// AuthorYearLabel renders the "Name Year" label of an entry.
func AuthorYearLabel(e *Entry) string {
	who := AuthorLabel(e)
	if year := e.Field(FieldYear); year != "" {
		return who + " " + year
	}
	return who
}

// AuthorLabel renders the name part of a label: one or two family names, or
// the first followed by "et al." for three or more. Entries without authors
// or editors fall back to their key.
func AuthorLabel(e *Entry) string {
	names := familyNames(e)
	switch len(names) {
	case 0:
		return e.Key
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return names[0] + " et al."
	}
}

func sortName(e *Entry) string {
	names := familyNames(e)
	if len(names) == 0 {
		return ""
	}
	return strings.Join(names, " ")
}

// familyNames splits a BibTeX-style name list ("Last, First and First Last")
// into family names.
func familyNames(e *Entry) []string {
	raw := e.Field(FieldAuthor)
	if raw == "" {
		raw = e.Field(FieldEditor)
	}
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, person := range strings.Split(raw, " and ") {
		person = strings.TrimSpace(person)
		if person == "" {
			continue
		}
		if i := strings.Index(person, ","); i >= 0 {
			out = append(out, strings.TrimSpace(person[:i]))
			continue
		}
		fields := strings.Fields(person)
		out = append(out, fields[len(fields)-1])
	}
	return out
}

func compareYears(a, b string) int {
	ya, errA := strconv.Atoi(strings.TrimSpace(a))
	yb, errB := strconv.Atoi(strings.TrimSpace(b))
	switch {
	case errA == nil && errB == nil:
		switch {
		case ya < yb:
			return -1
		case ya > yb:
			return 1
		}
		return 0
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}
