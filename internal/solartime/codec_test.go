package solartime

import (
	"testing"
	"time"
)

func TestParseISO_NormalizesToUTC(t *testing.T) {
	got, err := ParseISO("2024-01-01T09:15:10+02:00")
	if err != nil {
		t.Fatalf("ParseISO: %v", err)
	}
	want := time.Date(2024, 1, 1, 7, 15, 10, 0, time.UTC)
	if !got.Equal(want) || got.Location() != time.UTC {
		t.Fatalf("ParseISO = %v; want %v (UTC)", got, want)
	}
}

func TestParseISO_Malformed(t *testing.T) {
	if _, err := ParseISO("not-a-timestamp"); err == nil {
		t.Fatal("expected error for malformed input")
	}
}

func TestParseISOEvent_AbsentForms(t *testing.T) {
	for _, in := range []string{"", "0001-01-01T00:00:00+00:00"} {
		got, err := ParseISOEvent(in)
		if err != nil {
			t.Fatalf("ParseISOEvent(%q): %v", in, err)
		}
		if got != nil {
			t.Fatalf("ParseISOEvent(%q) = %v; want nil", in, *got)
		}
	}
}

func TestParseISOEvent_Present(t *testing.T) {
	got, err := ParseISOEvent("2024-06-21T03:43:00+00:00")
	if err != nil {
		t.Fatalf("ParseISOEvent: %v", err)
	}
	if got == nil || got.Hour() != 3 || got.Minute() != 43 {
		t.Fatalf("unexpected event time: %v", got)
	}
}

func TestSecondsToHMS(t *testing.T) {
	cases := map[int64]string{
		0:     "00:00:00",
		59:    "00:00:59",
		3661:  "01:01:01",
		86400: "24:00:00",
		-5:    "00:00:00",
	}
	for in, want := range cases {
		if got := SecondsToHMS(in); got != want {
			t.Errorf("SecondsToHMS(%d) = %q; want %q", in, got, want)
		}
	}
}

func TestDayLength_NilOnPolarNight(t *testing.T) {
	if got := DayLength(0); got != nil {
		t.Fatalf("DayLength(0) = %q; want nil", *got)
	}
	got := DayLength(30600)
	if got == nil || *got != "08:30:00" {
		t.Fatalf("DayLength(30600) = %v; want 08:30:00", got)
	}
}

func TestClockUTC(t *testing.T) {
	if ClockUTC(nil) != nil {
		t.Fatal("ClockUTC(nil) should be nil")
	}
	ts := time.Date(2024, 1, 1, 7, 15, 10, 0, time.FixedZone("EET", 2*3600))
	got := ClockUTC(&ts)
	if got == nil || *got != "05:15:10 UTC" {
		t.Fatalf("ClockUTC = %v; want 05:15:10 UTC", got)
	}
}

func TestClock(t *testing.T) {
	if Clock(nil) != nil {
		t.Fatal("Clock(nil) should be nil")
	}
	ts := time.Date(2024, 1, 1, 7, 15, 10, 0, time.UTC)
	if got := Clock(&ts); got == nil || *got != "07:15:10" {
		t.Fatalf("Clock = %v; want 07:15:10", got)
	}
}
