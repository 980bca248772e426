// Package rangeindex groups document ranges by stream, orders them with the
// document's own comparison, and finds ranges that coincide, overlap or touch.
//
// Ranges in different streams are never compared. Within a stream the order
// is (start, end). Overlap detection only looks at neighbours in that order,
// which is enough to find every stream that has an overlap and keeps the check
// linear per stream.
package rangeindex

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/FocuswithJustin/citesync/core/document"
)

// Entry is one distinct range with every value stored under it.
type Entry[V any] struct {
	Range  document.Range
	Values []V
}

// Partition holds the entries of one stream in (start, end) order.
type Partition[V any] struct {
	Stream  document.Stream
	Entries []Entry[V]
}

// Index maps ranges to values.
type Index[V any] struct {
	cmp   document.RangeComparer
	parts map[document.Stream][]Entry[V]
}

// New returns an empty index using cmp to order ranges.
func New[V any](cmp document.RangeComparer) *Index[V] {
	return &Index[V]{cmp: cmp, parts: make(map[document.Stream][]Entry[V])}
}

// Put stores v under r. Values put under an identical range share an entry.
func (ix *Index[V]) Put(r document.Range, v V) error {
	entries := ix.parts[r.Stream()]
	i, found, err := ix.search(entries, r)
	if err != nil {
		return err
	}
	if found {
		entries[i].Values = append(entries[i].Values, v)
		return nil
	}
	ix.parts[r.Stream()] = slices.Insert(entries, i, Entry[V]{Range: r, Values: []V{v}})
	return nil
}

// Get returns the values stored under exactly r.
func (ix *Index[V]) Get(r document.Range) ([]V, error) {
	entries := ix.parts[r.Stream()]
	i, found, err := ix.search(entries, r)
	if err != nil || !found {
		return nil, err
	}
	return entries[i].Values, nil
}

// Len returns the number of stored values.
func (ix *Index[V]) Len() int {
	n := 0
	for _, entries := range ix.parts {
		for _, e := range entries {
			n += len(e.Values)
		}
	}
	return n
}

// Partitions returns the per-stream partitions ordered by stream id.
func (ix *Index[V]) Partitions() []Partition[V] {
	out := make([]Partition[V], 0, len(ix.parts))
	for s, entries := range ix.parts {
		out = append(out, Partition[V]{Stream: s, Entries: entries})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stream.ID < out[j].Stream.ID })
	return out
}

// search finds the position of r among entries with a binary search.
func (ix *Index[V]) search(entries []Entry[V], r document.Range) (int, bool, error) {
	var firstErr error
	i := sort.Search(len(entries), func(i int) bool {
		c, err := document.CompareStartsThenEnds(ix.cmp, entries[i].Range, r)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return c >= 0
	})
	if firstErr != nil {
		return 0, false, firstErr
	}
	if i < len(entries) {
		c, err := document.CompareStartsThenEnds(ix.cmp, entries[i].Range, r)
		if err != nil {
			return 0, false, err
		}
		if c == 0 {
			return i, true, nil
		}
	}
	return i, false, nil
}

// ReportKind classifies an overlap report.
type ReportKind int

// Report kinds.
const (
	// EqualRange: several values share the same start and end.
	EqualRange ReportKind = iota
	// Overlap: a range ends after the next range starts.
	Overlap
	// Touch: a range ends exactly where the next one starts.
	Touch
)

func (k ReportKind) String() string {
	switch k {
	case EqualRange:
		return "EQUAL_RANGE"
	case Overlap:
		return "OVERLAP"
	case Touch:
		return "TOUCH"
	}
	return fmt.Sprintf("ReportKind(%d)", int(k))
}

// Report describes one problem. For EqualRange, First holds every value of
// the shared range and Second is empty. Otherwise First holds the values of
// the earlier range and Second those of the later one.
type Report[V any] struct {
	Kind   ReportKind
	Stream document.Stream
	First  []V
	Second []V
}

// Describe renders the report with name turning values into text.
func (r Report[V]) Describe(name func(V) string) string {
	names := func(vs []V) string {
		parts := make([]string, len(vs))
		for i, v := range vs {
			parts[i] = name(v)
		}
		return strings.Join(parts, ", ")
	}
	switch r.Kind {
	case EqualRange:
		return fmt.Sprintf("%s share the same position", names(r.First))
	case Overlap:
		return fmt.Sprintf("%s overlaps %s", names(r.First), names(r.Second))
	default:
		return fmt.Sprintf("%s touches %s", names(r.First), names(r.Second))
	}
}

// FindOverlaps reports shared, overlapping and, when includeTouching is set,
// touching ranges. At most maxResults reports are returned; maxResults <= 0
// means no limit.
func (ix *Index[V]) FindOverlaps(maxResults int, includeTouching bool) ([]Report[V], error) {
	var out []Report[V]
	full := func() bool { return maxResults > 0 && len(out) >= maxResults }

	for _, p := range ix.Partitions() {
		for i, e := range p.Entries {
			if full() {
				return out, nil
			}
			if len(e.Values) > 1 {
				out = append(out, Report[V]{Kind: EqualRange, Stream: p.Stream, First: e.Values})
				if full() {
					return out, nil
				}
			}
			if i+1 == len(p.Entries) {
				continue
			}
			next := p.Entries[i+1]
			c, err := ix.cmp.CompareStarts(e.Range.End(), next.Range.Start())
			if err != nil {
				return out, err
			}
			switch {
			case c > 0:
				out = append(out, Report[V]{Kind: Overlap, Stream: p.Stream, First: e.Values, Second: next.Values})
			case c == 0 && includeTouching:
				out = append(out, Report[V]{Kind: Touch, Stream: p.Stream, First: e.Values, Second: next.Values})
			}
		}
	}
	return out, nil
}
