package rangeindex

import (
	"slices"
	"sort"

	"github.com/FocuswithJustin/citesync/core/document"
)

// GroupByStream splits items by the stream of their range. Streams come back
// ordered by id; items keep their relative order.
func GroupByStream[T any](items []T, rangeOf func(T) document.Range) []Group[T] {
	byStream := make(map[document.Stream][]T)
	for _, it := range items {
		s := rangeOf(it).Stream()
		byStream[s] = append(byStream[s], it)
	}
	out := make([]Group[T], 0, len(byStream))
	for s, its := range byStream {
		out = append(out, Group[T]{Stream: s, Items: its})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stream.ID < out[j].Stream.ID })
	return out
}

// Group is the items of one stream.
type Group[T any] struct {
	Stream document.Stream
	Items  []T
}

// SortTextual sorts items of one stream by (start, end) of their range. The
// sort is stable, so items with identical ranges keep their order.
func SortTextual[T any](cmp document.RangeComparer, items []T, rangeOf func(T) document.Range) error {
	var firstErr error
	slices.SortStableFunc(items, func(a, b T) int {
		c, err := document.CompareStartsThenEnds(cmp, rangeOf(a), rangeOf(b))
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return c
	})
	return firstErr
}

// SortWithinPartitions groups items by stream and sorts each group textually.
func SortWithinPartitions[T any](cmp document.RangeComparer, items []T, rangeOf func(T) document.Range) ([]Group[T], error) {
	groups := GroupByStream(items, rangeOf)
	for _, g := range groups {
		if err := SortTextual(cmp, g.Items, rangeOf); err != nil {
			return nil, err
		}
	}
	return groups, nil
}
