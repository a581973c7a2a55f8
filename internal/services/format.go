// Package services – formatting
//
// This file converts stored SolarRecords into the public wire shape. The
// conversion is a pure, total function: no I/O, and absent events simply
// render as JSON null. The golden-hour windows are derived here on every
// read from sunrise/sunset rather than stored, so a future change to the
// one-hour rule needs no migration.
package services

import (
	"time"

	"github.com/tbourn/go-solar-backend/internal/domain"
	"github.com/tbourn/go-solar-backend/internal/solartime"
)

// goldenHourSpan is the width of each golden-hour window.
const goldenHourSpan = time.Hour

// Coordinates is the wire shape for a coordinate pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TwilightTimes carries the six twilight boundaries as "HH:MM:SS UTC"
// strings, null where the band does not occur.
type TwilightTimes struct {
	CivilBegin        *string `json:"civil_begin"`
	CivilEnd          *string `json:"civil_end"`
	NauticalBegin     *string `json:"nautical_begin"`
	NauticalEnd       *string `json:"nautical_end"`
	AstronomicalBegin *string `json:"astronomical_begin"`
	AstronomicalEnd   *string `json:"astronomical_end"`
}

// GoldenWindow is one golden-hour interval.
type GoldenWindow struct {
	Start       *string `json:"start"`
	End         *string `json:"end"`
	Description string  `json:"description"`
}

// GoldenHour groups the morning and evening windows. The whole object is
// omitted when sunrise or sunset is absent (polar day/night).
type GoldenHour struct {
	Morning GoldenWindow `json:"morning_golden_hour"`
	Evening GoldenWindow `json:"evening_golden_hour"`
}

// DayRecord is the formatted wire shape for one day of solar data.
type DayRecord struct {
	Date        string        `json:"date"`
	Location    string        `json:"location"`
	Coordinates Coordinates   `json:"coordinates"`
	Sunrise     *string       `json:"sunrise"`
	Sunset      *string       `json:"sunset"`
	SolarNoon   *string       `json:"solar_noon"`
	DayLength   *string       `json:"day_length"`
	Twilight    TwilightTimes `json:"twilight"`
	GoldenHour  *GoldenHour   `json:"golden_hour"`
}

// DateRange echoes the requested inclusive range.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SolarResponse is the aggregate success response for one range request.
// DataSource is "cache" when every day was already stored and "api" when at
// least one day had to be fetched upstream.
type SolarResponse struct {
	Location           string      `json:"location"`
	RequestedDateRange DateRange   `json:"requested_date_range"`
	DataSource         string      `json:"data_source"`
	Message            string      `json:"message"`
	Data               []DayRecord `json:"data"`
	TotalDays          int         `json:"total_days"`
}

// FormatRecord converts a stored record to its wire shape, deriving the
// golden-hour windows from sunrise/sunset.
func FormatRecord(rec domain.SolarRecord) DayRecord {
	return DayRecord{
		Date:        rec.Date,
		Location:    rec.Location,
		Coordinates: Coordinates{Latitude: rec.Latitude, Longitude: rec.Longitude},
		Sunrise:     solartime.ClockUTC(rec.Sunrise),
		Sunset:      solartime.ClockUTC(rec.Sunset),
		SolarNoon:   solartime.ClockUTC(rec.SolarNoon),
		DayLength:   rec.DayLength,
		Twilight: TwilightTimes{
			CivilBegin:        solartime.ClockUTC(rec.CivilTwilightBegin),
			CivilEnd:          solartime.ClockUTC(rec.CivilTwilightEnd),
			NauticalBegin:     solartime.ClockUTC(rec.NauticalTwilightBegin),
			NauticalEnd:       solartime.ClockUTC(rec.NauticalTwilightEnd),
			AstronomicalBegin: solartime.ClockUTC(rec.AstronomicalTwilightBegin),
			AstronomicalEnd:   solartime.ClockUTC(rec.AstronomicalTwilightEnd),
		},
		GoldenHour: goldenHour(rec.Sunrise, rec.Sunset),
	}
}

// goldenHour derives the two windows: [sunrise, sunrise+1h] in the morning
// and [sunset-1h, sunset] in the evening. Nil when either event is absent.
func goldenHour(sunrise, sunset *time.Time) *GoldenHour {
	if sunrise == nil || sunset == nil {
		return nil
	}
	morningEnd := sunrise.Add(goldenHourSpan)
	eveningStart := sunset.Add(-goldenHourSpan)
	return &GoldenHour{
		Morning: GoldenWindow{
			Start:       solartime.ClockUTC(sunrise),
			End:         solartime.ClockUTC(&morningEnd),
			Description: "Soft warm light after sunrise, ideal for photography",
		},
		Evening: GoldenWindow{
			Start:       solartime.ClockUTC(&eveningStart),
			End:         solartime.ClockUTC(sunset),
			Description: "Soft warm light before sunset, ideal for photography",
		},
	}
}
