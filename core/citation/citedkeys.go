package citation

import (
	"context"
	"slices"

	"github.com/hashicorp/go-multierror"

	"github.com/FocuswithJustin/citesync/core/bibdb"
	"github.com/FocuswithJustin/citesync/core/errors"
)

// CitedKey is every occurrence of one citation key across all groups.
type CitedKey struct {
	Key          string
	Paths        []CitationPath
	Lookup       *Lookup
	Number       int
	UniqueLetter string
}

// CitationKey implements Comparable.
func (k *CitedKey) CitationKey() string { return k.Key }

// ResolvedEntry implements Comparable.
func (k *CitedKey) ResolvedEntry() *bibdb.Entry {
	if k.Lookup == nil {
		return nil
	}
	return k.Lookup.Entry
}

// ComparisonPageInfo implements Comparable. Cited keys carry no page info.
func (k *CitedKey) ComparisonPageInfo() PageInfo { return PageInfo{} }

func (k *CitedKey) hasPath(p CitationPath) bool {
	return slices.Contains(k.Paths, p)
}

// Sink receives the values a CitedKeys pass distributes to citations.
type Sink interface {
	SetLookup(p CitationPath, l *Lookup) error
	SetNumber(p CitationPath, n int) error
	SetUniqueLetter(p CitationPath, letter string) error
}

// CitedKeys is an ordered collection of cited keys. Its order is first-seen
// until a sort pass changes it.
type CitedKeys struct {
	keys  []*CitedKey
	index map[string]*CitedKey
}

// NewCitedKeys returns an empty collection.
func NewCitedKeys() *CitedKeys {
	return &CitedKeys{index: make(map[string]*CitedKey)}
}

// Fold adds the citation at path. A citation whose key is already present
// must agree with it on lookup, number and unique letter.
func (ck *CitedKeys) Fold(path CitationPath, c *Citation) error {
	k, ok := ck.index[c.Key]
	if !ok {
		k = &CitedKey{Key: c.Key, Lookup: c.Lookup, Number: c.Number, UniqueLetter: c.UniqueLetter}
		ck.index[c.Key] = k
		ck.keys = append(ck.keys, k)
	} else {
		switch {
		case !k.Lookup.Equal(c.Lookup):
			return errors.NewInvariant("fold cited key", "%s at %s has lookup %s, key has %s",
				c.Key, path, c.Lookup, k.Lookup)
		case k.Number != c.Number:
			return errors.NewInvariant("fold cited key", "%s at %s has number %d, key has %d",
				c.Key, path, c.Number, k.Number)
		case k.UniqueLetter != c.UniqueLetter:
			return errors.NewInvariant("fold cited key", "%s at %s has unique letter %q, key has %q",
				c.Key, path, c.UniqueLetter, k.UniqueLetter)
		}
	}
	if !k.hasPath(path) {
		k.Paths = append(k.Paths, path)
	}
	return nil
}

// Len returns the number of distinct keys.
func (ck *CitedKeys) Len() int { return len(ck.keys) }

// Keys returns the cited keys in current order.
func (ck *CitedKeys) Keys() []*CitedKey {
	return append([]*CitedKey(nil), ck.keys...)
}

// Get returns the cited key for key.
func (ck *CitedKeys) Get(key string) (*CitedKey, bool) {
	k, ok := ck.index[key]
	return k, ok
}

// SortByComparator reorders the keys with CompareCitations. The sort is stable.
func (ck *CitedKeys) SortByComparator(cmp bibdb.Comparator, unresolvedFirst bool) {
	slices.SortStableFunc(ck.keys, func(a, b *CitedKey) int {
		return CompareCitations(a, b, cmp, unresolvedFirst)
	})
}

// NumberInCurrentOrder numbers the keys 1, 2, 3... in their current order.
func (ck *CitedKeys) NumberInCurrentOrder() {
	for i, k := range ck.keys {
		k.Number = i + 1
	}
}

// LookupInDatabases resolves every key against dbs, first match wins. Keys
// that match nothing are left unresolved. A database error stops the pass.
func (ck *CitedKeys) LookupInDatabases(ctx context.Context, dbs []bibdb.Database) error {
	for _, k := range ck.keys {
		entry, db, ok, err := bibdb.FindFirst(ctx, dbs, k.Key)
		if err != nil {
			return err
		}
		if ok {
			k.Lookup = &Lookup{Entry: entry, Database: db.Name()}
		} else {
			k.Lookup = nil
		}
	}
	return nil
}

// AssignUniqueLetters gives "a", "b", ... to resolved keys whose labels
// collide, in current order, and clears the letter of every other key.
func (ck *CitedKeys) AssignUniqueLetters(label bibdb.Labeler) {
	byLabel := make(map[string][]*CitedKey)
	var labels []string
	for _, k := range ck.keys {
		k.UniqueLetter = ""
		if k.Lookup == nil {
			continue
		}
		l := label(k.Lookup.Entry)
		if _, ok := byLabel[l]; !ok {
			labels = append(labels, l)
		}
		byLabel[l] = append(byLabel[l], k)
	}
	for _, l := range labels {
		same := byLabel[l]
		if len(same) < 2 {
			continue
		}
		for i, k := range same {
			k.UniqueLetter = letter(i)
		}
	}
}

// letter returns a, b, ..., z, aa, ab, ...
func letter(i int) string {
	var out []byte
	for i++; i > 0; i = (i - 1) / 26 {
		out = append([]byte{byte('a' + (i-1)%26)}, out...)
	}
	return string(out)
}

// DistributeLookups writes each key's lookup to every path holding it.
func (ck *CitedKeys) DistributeLookups(sink Sink) error {
	return ck.distribute(func(k *CitedKey, p CitationPath) error { return sink.SetLookup(p, k.Lookup) })
}

// DistributeNumbers writes each key's number to every path holding it.
func (ck *CitedKeys) DistributeNumbers(sink Sink) error {
	return ck.distribute(func(k *CitedKey, p CitationPath) error { return sink.SetNumber(p, k.Number) })
}

// DistributeUniqueLetters writes each key's unique letter to every path holding it.
func (ck *CitedKeys) DistributeUniqueLetters(sink Sink) error {
	return ck.distribute(func(k *CitedKey, p CitationPath) error { return sink.SetUniqueLetter(p, k.UniqueLetter) })
}

func (ck *CitedKeys) distribute(write func(*CitedKey, CitationPath) error) error {
	var result *multierror.Error
	for _, k := range ck.keys {
		for _, p := range k.Paths {
			if err := write(k, p); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	return result.ErrorOrNil()
}
