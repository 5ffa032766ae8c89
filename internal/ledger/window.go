package ledger

import (
	"slices"
	"time"
)

// Naive is the location carried by window bounds that were given without a
// zone, e.g. a plain "2024-12-01" on the command line. Such bounds are
// re-read as wall-clock time in the zone of the first record of the
// collection being filtered.
//
// This only holds up when every timestamp in a bundle shares one zone; a
// bundle mixing offsets gets filtered relative to whichever record sorts first.
var Naive = time.FixedZone("naive", 0)

// IsNaive reports whether t was constructed in the Naive location.
func IsNaive(t time.Time) bool {
	return t.Location() == Naive
}

// Localize re-reads a naive bound's wall clock in loc. Zoned bounds and a nil
// loc are returned unchanged.
func Localize(bound time.Time, loc *time.Location) time.Time {
	if loc == nil || !IsNaive(bound) {
		return bound
	}
	y, mo, d := bound.Date()
	h, mi, s := bound.Clock()
	return time.Date(y, mo, d, h, mi, s, bound.Nanosecond(), loc)
}

// within filters time-ordered items to [start, end], inclusive on both ends.
// An inverted window yields nothing.
func within[T any](items []T, at func(T) time.Time, start, end *time.Time) []T {
	if start == nil && end == nil {
		return slices.Clip(items)
	}
	if len(items) == 0 {
		return nil
	}

	loc := at(items[0]).Location()
	var lo, hi time.Time
	if start != nil {
		lo = Localize(*start, loc)
	}
	if end != nil {
		hi = Localize(*end, loc)
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		ts := at(item)
		if start != nil && ts.Before(lo) {
			continue
		}
		if end != nil && ts.After(hi) {
			continue
		}
		out = append(out, item)
	}
	return out
}
