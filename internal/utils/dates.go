// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "time"

// dateLayout matches the canonical "YYYY-MM-DD" calendar date format.
const dateLayout = "2006-01-02"

// ParseDate parses a "YYYY-MM-DD" string into a UTC midnight time.Time.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

// FormatDate renders t as "YYYY-MM-DD".
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// DaysInclusive returns the number of calendar days in [start, end], both
// ends included. A reversed range yields 0.
//
// Example:
//
//	n := utils.DaysInclusive(d, d)            // returns 1
//	n = utils.DaysInclusive(d, d.AddDate(0,0,2)) // returns 3
func DaysInclusive(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// DateStrings enumerates every date in [start, end] inclusive, ascending,
// formatted as "YYYY-MM-DD". A reversed range yields an empty slice.
func DateStrings(start, end time.Time) []string {
	n := DaysInclusive(start, end)
	out := make([]string, 0, n)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, FormatDate(d))
	}
	return out
}

// Chunk partitions items into consecutive groups of at most size elements.
// The final group may be shorter. A size <= 0 is coerced to 1.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	var out [][]T
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
