package model

import (
	"fmt"
	"strings"
)

// Range identifies a statistics aggregation window.
type Range string

const (
	RangeWeeks    Range = "weeks"
	RangeMonths   Range = "months"
	RangeLifetime Range = "lifetime"
)

// AllRanges lists every range in processing order.
var AllRanges = []Range{RangeWeeks, RangeMonths, RangeLifetime}

// String implements fmt.Stringer.
func (r Range) String() string {
	return string(r)
}

// Valid reports whether r is one of the known ranges.
func (r Range) Valid() bool {
	for _, known := range AllRanges {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRange converts a textual range into a Range.
func ParseRange(raw string) (Range, error) {
	r := Range(strings.ToLower(strings.TrimSpace(raw)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown range %q: must be one of %v", raw, AllRanges)
	}
	return r, nil
}

// OrderRanges deduplicates ranges and sorts them into processing order.
func OrderRanges(ranges []Range) []Range {
	seen := make(map[Range]bool, len(ranges))
	for _, r := range ranges {
		seen[r] = true
	}
	ordered := make([]Range, 0, len(seen))
	for _, r := range AllRanges {
		if seen[r] {
			ordered = append(ordered, r)
		}
	}
	return ordered
}
