// Package services – SolarService
//
// This file implements SolarService, the application-level component behind
// "get solar data for a place and date range". It geocodes the free-text
// location, then runs the cache-aware batch-fetch orchestration: dates
// already stored are served from the cache, missing dates are fetched from
// the upstream provider in paced batches and persisted, and the merged
// result is returned as one gap-free, date-ascending list.
//
// Failure policy: per-date fetch errors are collected, never thrown
// immediately; a non-empty collection turns into exactly one
// AggregateFetchError at the end and no partial data is returned, even
// though the days that did succeed were persisted as a side effect.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the location key and requested range.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-solar-backend/internal/domain"
	"github.com/tbourn/go-solar-backend/internal/geocode"
	"github.com/tbourn/go-solar-backend/internal/provider"
	"github.com/tbourn/go-solar-backend/internal/repo"
	"github.com/tbourn/go-solar-backend/internal/solartime"
	"github.com/tbourn/go-solar-backend/internal/utils"
)

// Source tags for SolarResponse.DataSource.
const (
	SourceCache = "cache"
	SourceAPI   = "api"
)

// rangeRequests counts completed range requests by data source (or "error").
var rangeRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "solar_range_requests_total",
		Help: "Completed solar range requests by data source.",
	},
	[]string{"source"},
)

// fetchedDays observes how many days a single request had to fetch upstream.
var fetchedDays = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "solar_fetched_days_per_request",
		Help:    "Number of upstream-fetched days per range request.",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 200, 365},
	},
)

func init() {
	prometheus.MustRegister(rangeRequests, fetchedDays)
}

// Geocoder resolves a free-text place name to coordinates and the canonical
// display name used as the cache partition key.
type Geocoder interface {
	Resolve(ctx context.Context, query string) (*geocode.Location, error)
}

// DayFetcher fetches one day of solar data from the upstream provider. The
// upstream API is single-day only; callers must not expect batching here.
type DayFetcher interface {
	FetchDay(ctx context.Context, lat, lng float64, date string) (*provider.DayResult, error)
}

// SolarRepo defines the repository contract required by SolarService.
// Implementations are responsible for persistence of per-(location, date)
// solar records.
type SolarRepo interface {
	// IsRangeComplete reports whether every date in [start, end] has a row.
	IsRangeComplete(ctx context.Context, db *gorm.DB, location, start, end string) (bool, error)

	// ListRange returns the stored records for the range, date-ascending.
	ListRange(ctx context.Context, db *gorm.DB, location, start, end string) ([]domain.SolarRecord, error)

	// Exists reports whether (location, date) is cached.
	Exists(ctx context.Context, db *gorm.DB, location, date string) (bool, error)

	// Find fetches the record for (location, date).
	Find(ctx context.Context, db *gorm.DB, location, date string) (*domain.SolarRecord, error)

	// Insert persists a freshly fetched day; duplicate keys return
	// repo.ErrDuplicateRecord.
	Insert(ctx context.Context, db *gorm.DB, rec *domain.SolarRecord) (*domain.SolarRecord, error)
}

// SolarService wires the geocoder, record store, and provider client behind
// a single entry point. Batch size and pacing delays are configuration, not
// hard-coded constants.
type SolarService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the solar record repository used by this service.
	Repo SolarRepo
	// Geocoder resolves raw location text.
	Geocoder Geocoder
	// Fetcher is the upstream single-day client.
	Fetcher DayFetcher

	// BatchSize caps how many missing dates are fetched per batch.
	BatchSize int
	// CallDelay paces consecutive upstream calls within a batch.
	CallDelay time.Duration
	// BatchDelay is the longer pause between batches.
	BatchDelay time.Duration
}

// NewSolarService constructs a SolarService with the default batch size and
// pacing used against the public upstream.
func NewSolarService(db *gorm.DB, r SolarRepo, g Geocoder, f DayFetcher) *SolarService {
	return &SolarService{
		DB:         db,
		Repo:       r,
		Geocoder:   g,
		Fetcher:    f,
		BatchSize:  10,
		CallDelay:  50 * time.Millisecond,
		BatchDelay: 200 * time.Millisecond,
	}
}

// GetSolarData is the request facade: it resolves rawLocation via the
// geocoder and hands the canonical location key plus coordinates to the
// orchestrator. Geocoding failures come back as *LocationError; date-range
// validation is the transport layer's responsibility and is assumed done.
func (s *SolarService) GetSolarData(ctx context.Context, rawLocation, start, end string) (*SolarResponse, error) {
	tr := otel.Tracer("services/SolarService")
	ctx, span := tr.Start(ctx, "GetSolarData",
		trace.WithAttributes(
			attribute.String("solar.location_raw", rawLocation),
			attribute.String("solar.start", start),
			attribute.String("solar.end", end),
		),
	)
	defer span.End()

	loc, err := s.Geocoder.Resolve(ctx, rawLocation)
	if err != nil {
		return nil, &LocationError{Err: err}
	}
	return s.FetchRange(ctx, loc.Name, loc.Latitude, loc.Longitude, start, end)
}

// FetchRange runs the cache-aware batch-fetch orchestration for an already
// resolved location. start and end are inclusive "YYYY-MM-DD" dates with
// start <= end.
func (s *SolarService) FetchRange(ctx context.Context, location string, lat, lng float64, start, end string) (*SolarResponse, error) {
	tr := otel.Tracer("services/SolarService")
	ctx, span := tr.Start(ctx, "FetchRange",
		trace.WithAttributes(
			attribute.String("solar.location", location),
			attribute.String("solar.start", start),
			attribute.String("solar.end", end),
		),
	)
	defer span.End()

	resp, err := s.fetchRange(ctx, location, lat, lng, start, end)
	if err != nil {
		rangeRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	rangeRequests.WithLabelValues(resp.DataSource).Inc()
	return resp, nil
}

func (s *SolarService) fetchRange(ctx context.Context, location string, lat, lng float64, start, end string) (*SolarResponse, error) {
	// Fast path: every requested day is already cached, so the upstream
	// provider is never contacted.
	complete, err := s.Repo.IsRangeComplete(ctx, s.DB, location, start, end)
	if err != nil {
		return nil, err
	}
	if complete {
		recs, err := s.Repo.ListRange(ctx, s.DB, location, start, end)
		if err != nil {
			return nil, err
		}
		data := make([]DayRecord, 0, len(recs))
		for _, rec := range recs {
			data = append(data, FormatRecord(rec))
		}
		fetchedDays.Observe(0)
		return s.response(location, start, end, SourceCache, "Data served from cache", data), nil
	}

	startDay, err := utils.ParseDate(start)
	if err != nil {
		return nil, err
	}
	endDay, err := utils.ParseDate(end)
	if err != nil {
		return nil, err
	}

	// Slow path: merge cached days immediately and collect the rest. Cached
	// days are never re-fetched, even when the range as a whole is
	// incomplete.
	var (
		data    []DayRecord
		missing []string
	)
	for _, date := range utils.DateStrings(startDay, endDay) {
		exists, err := s.Repo.Exists(ctx, s.DB, location, date)
		if err != nil {
			return nil, err
		}
		if exists {
			rec, err := s.Repo.Find(ctx, s.DB, location, date)
			if err != nil {
				return nil, err
			}
			data = append(data, FormatRecord(*rec))
			continue
		}
		missing = append(missing, date)
	}

	fetchedDays.Observe(float64(len(missing)))
	if len(missing) == 0 {
		// A concurrent request filled the gap between the completeness
		// check and the per-day walk.
		sortByDate(data)
		return s.response(location, start, end, SourceCache, "Data served from cache", data), nil
	}

	// The pacer spaces consecutive upstream calls; burst 1 lets the first
	// call of the request proceed immediately. Waits honor ctx, so a client
	// disconnect aborts the remaining calls cleanly.
	pacer := rate.NewLimiter(rate.Every(s.CallDelay), 1)
	if s.CallDelay <= 0 {
		pacer = rate.NewLimiter(rate.Inf, 1)
	}

	var fetchErrs []string
	for bi, batch := range utils.Chunk(missing, s.BatchSize) {
		if bi > 0 {
			if err := sleepCtx(ctx, s.BatchDelay); err != nil {
				return nil, err
			}
		}
		for _, date := range batch {
			if err := pacer.Wait(ctx); err != nil {
				return nil, err
			}
			day, err := s.Fetcher.FetchDay(ctx, lat, lng, date)
			if err != nil {
				// Collect and keep going: one bad day must not abort
				// the rest of the range.
				fetchErrs = append(fetchErrs, fmt.Sprintf("%s: %v", date, err))
				continue
			}
			stored, err := s.persistDay(ctx, location, lat, lng, date, day)
			if err != nil {
				fetchErrs = append(fetchErrs, fmt.Sprintf("%s: %v", date, err))
				continue
			}
			data = append(data, FormatRecord(*stored))
		}
	}

	if len(fetchErrs) > 0 {
		return nil, &AggregateFetchError{Errors: fetchErrs}
	}

	sortByDate(data)
	msg := fmt.Sprintf("Fetched %d missing day(s) from upstream API", len(missing))
	return s.response(location, start, end, SourceAPI, msg, data), nil
}

// persistDay stores a freshly fetched day. A duplicate-key collision means a
// concurrent request cached the same day first; that is treated as "already
// cached" and the stored row is returned instead.
func (s *SolarService) persistDay(ctx context.Context, location string, lat, lng float64, date string, day *provider.DayResult) (*domain.SolarRecord, error) {
	rec := &domain.SolarRecord{
		Location:  location,
		Date:      date,
		Latitude:  lat,
		Longitude: lng,

		Sunrise:   day.Sunrise,
		Sunset:    day.Sunset,
		SolarNoon: day.SolarNoon,
		DayLength: solartime.DayLength(day.DayLengthSeconds),

		CivilTwilightBegin:        day.CivilTwilightBegin,
		CivilTwilightEnd:          day.CivilTwilightEnd,
		NauticalTwilightBegin:     day.NauticalTwilightBegin,
		NauticalTwilightEnd:       day.NauticalTwilightEnd,
		AstronomicalTwilightBegin: day.AstronomicalTwilightBegin,
		AstronomicalTwilightEnd:   day.AstronomicalTwilightEnd,
	}
	stored, err := s.Repo.Insert(ctx, s.DB, rec)
	if errors.Is(err, repo.ErrDuplicateRecord) {
		return s.Repo.Find(ctx, s.DB, location, date)
	}
	return stored, err
}

func (s *SolarService) response(location, start, end, source, msg string, data []DayRecord) *SolarResponse {
	if data == nil {
		data = []DayRecord{}
	}
	return &SolarResponse{
		Location:           location,
		RequestedDateRange: DateRange{Start: start, End: end},
		DataSource:         source,
		Message:            msg,
		Data:               data,
		TotalDays:          len(data),
	}
}

// sortByDate orders formatted records ascending. Dates are "YYYY-MM-DD"
// strings, so lexical order is chronological order.
func sortByDate(data []DayRecord) {
	sort.Slice(data, func(i, j int) bool { return data[i].Date < data[j].Date })
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
