// Package domain defines the persistence model for cached solar-event data.
// Types here are mapped with GORM and form the core data layer of the
// application.
package domain

import (
	"time"
)

// DateLayout is the canonical wire and storage format for calendar dates.
// Dates are stored as plain "YYYY-MM-DD" strings so that lexical ordering
// matches chronological ordering in range queries.
const DateLayout = "2006-01-02"

// SolarRecord holds one calendar day of solar-event data for one location.
// A record is created once when a missing day is fetched from the upstream
// provider and is never updated or deleted afterwards.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Location: canonical display name returned by geocoding; together with
//     Date it forms the unique cache key (ux_solar_location_date).
//   - Date: calendar date in DateLayout format.
//   - Latitude / Longitude: coordinates in decimal degrees.
//   - Sunrise / Sunset / SolarNoon: UTC event times; nil represents polar
//     day or night where the event does not occur.
//   - DayLength: "HH:MM:SS" duration string, nil when undefined.
//   - Civil/Nautical/Astronomical twilight begin/end: UTC times, nullable.
//
// The golden-hour window is intentionally not stored: it is derived from
// Sunrise/Sunset on every read (see services.FormatRecord).
type SolarRecord struct {
	ID        string  `json:"id"        gorm:"type:char(36);primaryKey"`
	Location  string  `json:"location"  gorm:"type:varchar(255);not null;uniqueIndex:ux_solar_location_date,priority:1"`
	Date      string  `json:"date"      gorm:"type:char(10);not null;uniqueIndex:ux_solar_location_date,priority:2;index:idx_solar_coords,priority:3"`
	Latitude  float64 `json:"latitude"  gorm:"type:decimal(10,6);not null;index:idx_solar_coords,priority:1"`
	Longitude float64 `json:"longitude" gorm:"type:decimal(10,6);not null;index:idx_solar_coords,priority:2"`

	Sunrise   *time.Time `json:"sunrise,omitempty"`
	Sunset    *time.Time `json:"sunset,omitempty"`
	SolarNoon *time.Time `json:"solar_noon,omitempty"`
	DayLength *string    `json:"day_length,omitempty" gorm:"type:varchar(16)"`

	CivilTwilightBegin        *time.Time `json:"civil_twilight_begin,omitempty"`
	CivilTwilightEnd          *time.Time `json:"civil_twilight_end,omitempty"`
	NauticalTwilightBegin     *time.Time `json:"nautical_twilight_begin,omitempty"`
	NauticalTwilightEnd       *time.Time `json:"nautical_twilight_end,omitempty"`
	AstronomicalTwilightBegin *time.Time `json:"astronomical_twilight_begin,omitempty"`
	AstronomicalTwilightEnd   *time.Time `json:"astronomical_twilight_end,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for SolarRecord.
func (SolarRecord) TableName() string { return "solar_records" }

// Day parses the record's Date field. The zero time is returned for a
// malformed value, which cannot happen for rows written through the repo.
func (r SolarRecord) Day() time.Time {
	t, _ := time.Parse(DateLayout, r.Date)
	return t
}
