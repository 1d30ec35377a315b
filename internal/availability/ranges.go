package availability

import (
	"slices"
	"time"

	"github.com/teemow/freebusy/internal/calendar"
)

type timeRange = calendar.TimeRange

// Normalize returns the ranges sorted by start with empty ranges dropped and
// overlapping or touching ranges merged. The input is not modified.
func Normalize(ranges []timeRange) []timeRange {
	out := make([]timeRange, 0, len(ranges))
	for _, r := range ranges {
		if r.End.After(r.Start) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b timeRange) int {
		return a.Start.Compare(b.Start)
	})

	merged := out[:0]
	for _, r := range out {
		if n := len(merged); n > 0 && !r.Start.After(merged[n-1].End) {
			if r.End.After(merged[n-1].End) {
				merged[n-1].End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// Intersect returns the instants covered by both a and b. Both inputs must
// be normalized; the result is normalized.
func Intersect(a, b []timeRange) []timeRange {
	var out []timeRange
	for i, j := 0, 0; i < len(a) && j < len(b); {
		start := later(a[i].Start, b[j].Start)
		end := earlier(a[i].End, b[j].End)
		if end.After(start) {
			out = append(out, timeRange{Start: start, End: end})
		}
		if a[i].End.Before(b[j].End) {
			i++
		} else {
			j++
		}
	}
	return out
}

// Subtract returns the parts of window not covered by busy. busy must be
// normalized.
func Subtract(window timeRange, busy []timeRange) []timeRange {
	var out []timeRange
	cursor := window.Start
	for _, b := range busy {
		if !b.End.After(cursor) {
			continue
		}
		if !b.Start.Before(window.End) {
			break
		}
		if b.Start.After(cursor) {
			out = append(out, timeRange{Start: cursor, End: b.Start})
		}
		cursor = b.End
	}
	if window.End.After(cursor) {
		out = append(out, timeRange{Start: cursor, End: window.End})
	}
	return out
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
