// Package solartime converts between the upstream wire formats for solar
// event times and the internal representations used by the rest of the
// application. It is purely computational: no I/O and no failure modes other
// than reporting a malformed input.
//
// Conversions covered:
//   - ISO-8601 timestamps (upstream `formatted=0` payloads) → UTC time.Time
//   - event seconds counts → "HH:MM:SS" duration strings
//   - UTC event times → "HH:MM:SS UTC" wire clock strings
package solartime

import (
	"fmt"
	"time"
)

// clockLayout renders a UTC time-of-day for the public wire shape.
const clockLayout = "15:04:05"

// ParseISO parses an ISO-8601 timestamp as emitted by the upstream API when
// formatted=0 (e.g. "2024-01-01T07:15:10+00:00") and normalizes it to UTC.
func ParseISO(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("solartime: parse %q: %w", s, err)
	}
	return t.UTC(), nil
}

// ParseISOEvent parses an optional event timestamp. Empty strings and the
// upstream's zero-value sentinel (year 1, used for polar day/night where the
// event does not occur) map to nil rather than an error.
func ParseISOEvent(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := ParseISO(s)
	if err != nil {
		return nil, err
	}
	if t.Year() <= 1 {
		return nil, nil
	}
	return &t, nil
}

// SecondsToHMS renders a seconds count as "HH:MM:SS". Hours are not wrapped
// at 24, so a full polar day renders as "24:00:00".
func SecondsToHMS(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// DayLength converts an upstream day-length seconds count to the nullable
// stored form. Zero or negative means the sun never rises; that is
// represented as nil, consistent with the nullable event columns.
func DayLength(seconds int64) *string {
	if seconds <= 0 {
		return nil
	}
	s := SecondsToHMS(seconds)
	return &s
}

// ClockUTC renders an optional UTC event time as "HH:MM:SS UTC" for the wire
// shape, or nil when the event is absent.
func ClockUTC(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(clockLayout) + " UTC"
	return &s
}

// Clock renders an optional UTC event time as a bare "HH:MM:SS", or nil when
// absent. Used for golden-hour window boundaries.
func Clock(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(clockLayout)
	return &s
}
