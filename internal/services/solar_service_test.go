package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-solar-backend/internal/domain"
	"github.com/tbourn/go-solar-backend/internal/geocode"
	"github.com/tbourn/go-solar-backend/internal/provider"
	"github.com/tbourn/go-solar-backend/internal/repo"
	"github.com/tbourn/go-solar-backend/internal/utils"
)

// ----- Fakes -----

// fakeRepo is an in-memory SolarRepo keyed by location and date. It enforces
// the (location, date) uniqueness the real store provides.
type fakeRepo struct {
	records map[string]map[string]*domain.SolarRecord
	inserts []string // "location|date" in insert order
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: map[string]map[string]*domain.SolarRecord{}}
}

func (r *fakeRepo) seed(rec domain.SolarRecord) {
	if r.records[rec.Location] == nil {
		r.records[rec.Location] = map[string]*domain.SolarRecord{}
	}
	cp := rec
	r.records[rec.Location][rec.Date] = &cp
}

func (r *fakeRepo) IsRangeComplete(ctx context.Context, db *gorm.DB, location, start, end string) (bool, error) {
	s, err := utils.ParseDate(start)
	if err != nil {
		return false, err
	}
	e, err := utils.ParseDate(end)
	if err != nil {
		return false, err
	}
	for _, d := range utils.DateStrings(s, e) {
		if r.records[location][d] == nil {
			return false, nil
		}
	}
	return true, nil
}

func (r *fakeRepo) ListRange(ctx context.Context, db *gorm.DB, location, start, end string) ([]domain.SolarRecord, error) {
	s, _ := utils.ParseDate(start)
	e, _ := utils.ParseDate(end)
	var out []domain.SolarRecord
	for _, d := range utils.DateStrings(s, e) {
		if rec := r.records[location][d]; rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *fakeRepo) Exists(ctx context.Context, db *gorm.DB, location, date string) (bool, error) {
	return r.records[location][date] != nil, nil
}

func (r *fakeRepo) Find(ctx context.Context, db *gorm.DB, location, date string) (*domain.SolarRecord, error) {
	if rec := r.records[location][date]; rec != nil {
		return rec, nil
	}
	return nil, repo.ErrNotFound
}

func (r *fakeRepo) Insert(ctx context.Context, db *gorm.DB, rec *domain.SolarRecord) (*domain.SolarRecord, error) {
	if r.records[rec.Location][rec.Date] != nil {
		return nil, repo.ErrDuplicateRecord
	}
	r.seed(*rec)
	r.inserts = append(r.inserts, rec.Location+"|"+rec.Date)
	return r.records[rec.Location][rec.Date], nil
}

// fakeFetcher records call order and timing and fails configured dates.
type fakeFetcher struct {
	calls   []string
	callAt  []time.Time
	errFor  map[string]error
	sunrise time.Time
}

func (f *fakeFetcher) FetchDay(ctx context.Context, lat, lng float64, date string) (*provider.DayResult, error) {
	f.calls = append(f.calls, date)
	f.callAt = append(f.callAt, time.Now())
	if err := f.errFor[date]; err != nil {
		return nil, err
	}
	sunrise := f.sunrise
	if sunrise.IsZero() {
		sunrise = time.Date(2024, 1, 1, 7, 17, 0, 0, time.UTC)
	}
	sunset := sunrise.Add(8 * time.Hour)
	return &provider.DayResult{
		Sunrise:          &sunrise,
		Sunset:           &sunset,
		DayLengthSeconds: 8 * 3600,
	}, nil
}

type fakeGeocoder struct {
	gotQuery string
	loc      *geocode.Location
	err      error
}

func (g *fakeGeocoder) Resolve(ctx context.Context, query string) (*geocode.Location, error) {
	g.gotQuery = query
	return g.loc, g.err
}

func newService(r *fakeRepo, f *fakeFetcher, g Geocoder) *SolarService {
	s := NewSolarService(nil, r, g, f)
	s.CallDelay = time.Millisecond
	s.BatchDelay = 2 * time.Millisecond
	return s
}

func berlinGeocoder() *fakeGeocoder {
	return &fakeGeocoder{loc: &geocode.Location{
		Name:      "Berlin, Germany",
		Latitude:  52.52,
		Longitude: 13.405,
	}}
}

// ----- Tests -----

func TestNewSolarService_Defaults(t *testing.T) {
	s := NewSolarService(nil, newFakeRepo(), berlinGeocoder(), &fakeFetcher{})
	if s.BatchSize != 10 {
		t.Fatalf("BatchSize default = %d; want 10", s.BatchSize)
	}
	if s.CallDelay != 50*time.Millisecond || s.BatchDelay != 200*time.Millisecond {
		t.Fatalf("pacing defaults = %v / %v", s.CallDelay, s.BatchDelay)
	}
}

func TestFetchRange_EmptyStore_FetchesAndPersistsAll(t *testing.T) {
	r := newFakeRepo()
	f := &fakeFetcher{}
	s := newService(r, f, berlinGeocoder())

	resp, err := s.FetchRange(context.Background(), "Berlin, Germany", 52.52, 13.405, "2024-01-01", "2024-01-03")
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	if len(f.calls) != 3 {
		t.Fatalf("upstream calls = %d; want 3", len(f.calls))
	}
	if len(r.inserts) != 3 {
		t.Fatalf("inserts = %d; want 3", len(r.inserts))
	}
	if resp.DataSource != SourceAPI {
		t.Fatalf("DataSource = %q; want api", resp.DataSource)
	}
	if resp.TotalDays != 3 || len(resp.Data) != 3 {
		t.Fatalf("TotalDays = %d, len(Data) = %d", resp.TotalDays, len(resp.Data))
	}
	for i, want := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		if resp.Data[i].Date != want {
			t.Fatalf("Data[%d].Date = %s; want %s", i, resp.Data[i].Date, want)
		}
	}
	if resp.Location != "Berlin, Germany" || resp.RequestedDateRange.Start != "2024-01-01" {
		t.Fatalf("response envelope wrong: %+v", resp)
	}
}

func TestFetchRange_CacheComplete_NeverCallsUpstream(t *testing.T) {
	r := newFakeRepo()
	f := &fakeFetcher{}
	s := newService(r, f, berlinGeocoder())
	ctx := context.Background()

	// First request fills the cache.
	first, err := s.FetchRange(ctx, "Berlin, Germany", 52.52, 13.405, "2024-01-01", "2024-01-03")
	if err != nil {
		t.Fatalf("first FetchRange: %v", err)
	}
	callsAfterFirst := len(f.calls)

	// Second identical request must be a pure cache hit.
	second, err := s.FetchRange(ctx, "Berlin, Germany", 52.52, 13.405, "2024-01-01", "2024-01-03")
	if err != nil {
		t.Fatalf("second FetchRange: %v", err)
	}
	if len(f.calls) != callsAfterFirst {
		t.Fatalf("cache-complete range re-invoked upstream (%d -> %d calls)", callsAfterFirst, len(f.calls))
	}
	if second.DataSource != SourceCache {
		t.Fatalf("DataSource = %q; want cache", second.DataSource)
	}
	if len(second.Data) != len(first.Data) {
		t.Fatalf("result size changed between runs: %d vs %d", len(first.Data), len(second.Data))
	}
	for i := range second.Data {
		if second.Data[i].Date != first.Data[i].Date ||
			!equalStr(second.Data[i].Sunrise, first.Data[i].Sunrise) {
			t.Fatalf("formatted output differs at %d: %+v vs %+v", i, first.Data[i], second.Data[i])
		}
	}
}

func TestFetchRange_GapFilling(t *testing.T) {
	r := newFakeRepo()
	sunrise := time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)
	for _, d := range []string{"2024-01-01", "2024-01-03"} {
		r.seed(domain.SolarRecord{
			Location: "Berlin, Germany", Date: d,
			Latitude: 52.52, Longitude: 13.405, Sunrise: &sunrise,
		})
	}
	f := &fakeFetcher{}
	s := newService(r, f, berlinGeocoder())

	resp, err := s.FetchRange(context.Background(), "Berlin, Germany", 52.52, 13.405, "2024-01-01", "2024-01-03")
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	if len(f.calls) != 1 || f.calls[0] != "2024-01-02" {
		t.Fatalf("upstream calls = %v; want exactly [2024-01-02]", f.calls)
	}
	if r.records["Berlin, Germany"]["2024-01-02"] == nil {
		t.Fatal("gap day was not persisted")
	}
	if resp.DataSource != SourceAPI {
		t.Fatalf("DataSource = %q; want api (a fetch occurred)", resp.DataSource)
	}
	for i, want := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		if resp.Data[i].Date != want {
			t.Fatalf("Data[%d].Date = %s; want %s", i, resp.Data[i].Date, want)
		}
	}
}

func TestFetchRange_AllOrNothingOnPartialFailure(t *testing.T) {
	r := newFakeRepo()
	f := &fakeFetcher{errFor: map[string]error{"2024-01-02": provider.ErrInvalidDate}}
	s := newService(r, f, berlinGeocoder())

	resp, err := s.FetchRange(context.Background(), "Berlin, Germany", 52.52, 13.405, "2024-01-01", "2024-01-04")
	if resp != nil {
		t.Fatalf("expected no partial data, got %+v", resp)
	}
	var agg *AggregateFetchError
	if !errors.As(err, &agg) {
		t.Fatalf("expected AggregateFetchError, got %v", err)
	}
	if len(agg.Errors) != 1 || !strings.HasPrefix(agg.Errors[0], "2024-01-02: ") {
		t.Fatalf("aggregate entries = %v", agg.Errors)
	}
	// Upstream was still asked for every day, and the good days were
	// persisted as a side effect.
	if len(f.calls) != 4 {
		t.Fatalf("upstream calls = %d; want 4 (no short-circuit)", len(f.calls))
	}
	if len(r.inserts) != 3 {
		t.Fatalf("inserts = %d; want 3 successful days persisted", len(r.inserts))
	}
	if r.records["Berlin, Germany"]["2024-01-02"] != nil {
		t.Fatal("failed day must not be persisted")
	}
}

func TestFetchRange_MultipleFailuresJoinedBySemicolon(t *testing.T) {
	r := newFakeRepo()
	f := &fakeFetcher{errFor: map[string]error{
		"2024-01-01": provider.ErrNetwork,
		"2024-01-03": provider.ErrInvalidDate,
	}}
	s := newService(r, f, berlinGeocoder())

	_, err := s.FetchRange(context.Background(), "Berlin, Germany", 52.52, 13.405, "2024-01-01", "2024-01-03")
	var agg *AggregateFetchError
	if !errors.As(err, &agg) {
		t.Fatalf("expected AggregateFetchError, got %v", err)
	}
	if len(agg.Errors) != 2 {
		t.Fatalf("aggregate entries = %v", agg.Errors)
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Fatalf("aggregate message should join with semicolons: %q", err.Error())
	}
}

func TestFetchRange_DuplicateInsertTreatedAsCached(t *testing.T) {
	r := newFakeRepo()
	f := &fakeFetcher{}
	s := newService(r, f, berlinGeocoder())

	// Simulate a concurrent request winning the insert race: the record
	// appears after the existence walk but before our insert.
	sunrise := time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)
	raced := &racingRepo{fakeRepo: r, raceDate: "2024-01-02", sunrise: sunrise}
	s.Repo = raced

	resp, err := s.FetchRange(context.Background(), "Berlin, Germany", 52.52, 13.405, "2024-01-02", "2024-01-02")
	if err != nil {
		t.Fatalf("duplicate insert should not fail the request: %v", err)
	}
	if resp.TotalDays != 1 {
		t.Fatalf("TotalDays = %d; want 1", resp.TotalDays)
	}
}

// racingRepo reports the race date as missing, then seeds it right before
// the orchestrator's insert so Insert observes a duplicate.
type racingRepo struct {
	*fakeRepo
	raceDate string
	sunrise  time.Time
	seeded   bool
}

func (r *racingRepo) Exists(ctx context.Context, db *gorm.DB, location, date string) (bool, error) {
	if date == r.raceDate {
		return false, nil
	}
	return r.fakeRepo.Exists(ctx, db, location, date)
}

func (r *racingRepo) Insert(ctx context.Context, db *gorm.DB, rec *domain.SolarRecord) (*domain.SolarRecord, error) {
	if rec.Date == r.raceDate && !r.seeded {
		r.seeded = true
		r.fakeRepo.seed(domain.SolarRecord{
			Location: rec.Location, Date: rec.Date,
			Latitude: rec.Latitude, Longitude: rec.Longitude, Sunrise: &r.sunrise,
		})
	}
	return r.fakeRepo.Insert(ctx, db, rec)
}

func TestFetchRange_BatchPacing(t *testing.T) {
	r := newFakeRepo()
	f := &fakeFetcher{}
	s := newService(r, f, berlinGeocoder())
	s.BatchSize = 10
	s.CallDelay = time.Millisecond
	s.BatchDelay = 60 * time.Millisecond

	resp, err := s.FetchRange(context.Background(), "Berlin, Germany", 52.52, 13.405, "2024-01-01", "2024-01-25")
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	if len(f.calls) != 25 || resp.TotalDays != 25 {
		t.Fatalf("calls = %d, total = %d; want 25/25", len(f.calls), resp.TotalDays)
	}

	// The inter-batch pause shows up between calls 10→11 and 20→21 only.
	gap1 := f.callAt[10].Sub(f.callAt[9])
	gap2 := f.callAt[20].Sub(f.callAt[19])
	if gap1 < 30*time.Millisecond || gap2 < 30*time.Millisecond {
		t.Fatalf("inter-batch delays not observed: %v, %v", gap1, gap2)
	}
	for _, i := range []int{5, 15, 24} {
		if gap := f.callAt[i].Sub(f.callAt[i-1]); gap > 30*time.Millisecond {
			t.Fatalf("unexpected long pause within a batch at call %d: %v", i, gap)
		}
	}
}

func TestFetchRange_CancellationAbortsRemainingCalls(t *testing.T) {
	r := newFakeRepo()
	f := &fakeFetcher{}
	s := newService(r, f, berlinGeocoder())
	s.BatchSize = 5
	s.BatchDelay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// Let the first batch run, then cancel during the batch pause.
		time.Sleep(25 * time.Millisecond)
		cancel()
	}()

	_, err := s.FetchRange(ctx, "Berlin, Germany", 52.52, 13.405, "2024-01-01", "2024-01-20")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(f.calls) >= 20 {
		t.Fatalf("cancellation did not stop upstream calls (%d made)", len(f.calls))
	}
}

func TestGetSolarData_Facade(t *testing.T) {
	r := newFakeRepo()
	f := &fakeFetcher{}
	g := berlinGeocoder()
	s := newService(r, f, g)

	resp, err := s.GetSolarData(context.Background(), "berlin", "2024-01-01", "2024-01-02")
	if err != nil {
		t.Fatalf("GetSolarData: %v", err)
	}
	if g.gotQuery != "berlin" {
		t.Fatalf("geocoder query = %q", g.gotQuery)
	}
	// The canonical geocoded name, not the raw input, keys the cache.
	if resp.Location != "Berlin, Germany" {
		t.Fatalf("Location = %q; want canonical name", resp.Location)
	}
	if r.records["Berlin, Germany"] == nil {
		t.Fatal("records stored under wrong partition key")
	}
}

func TestGetSolarData_GeocodingFailure(t *testing.T) {
	g := &fakeGeocoder{err: geocode.ErrNoMatch}
	f := &fakeFetcher{}
	s := newService(newFakeRepo(), f, g)

	_, err := s.GetSolarData(context.Background(), "nowhere at all", "2024-01-01", "2024-01-02")
	var le *LocationError
	if !errors.As(err, &le) {
		t.Fatalf("expected LocationError, got %v", err)
	}
	if !errors.Is(err, geocode.ErrNoMatch) {
		t.Fatalf("LocationError should wrap the cause, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "location error: ") {
		t.Fatalf("message = %q", err.Error())
	}
	if len(f.calls) != 0 {
		t.Fatal("no upstream call may happen when geocoding fails")
	}
}

func equalStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Keeps the examples in the doc comment honest: a full-range request over a
// seeded cache returns every stored field formatted.
func TestFetchRange_CacheHitFormatting(t *testing.T) {
	r := newFakeRepo()
	sunrise := time.Date(2024, 1, 1, 7, 17, 0, 0, time.UTC)
	sunset := time.Date(2024, 1, 1, 15, 2, 0, 0, time.UTC)
	r.seed(domain.SolarRecord{
		Location: "Berlin, Germany", Date: "2024-01-01",
		Latitude: 52.52, Longitude: 13.405,
		Sunrise: &sunrise, Sunset: &sunset,
	})
	s := newService(r, &fakeFetcher{}, berlinGeocoder())

	resp, err := s.FetchRange(context.Background(), "Berlin, Germany", 52.52, 13.405, "2024-01-01", "2024-01-01")
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	day := resp.Data[0]
	if day.Sunrise == nil || *day.Sunrise != "07:17:00 UTC" {
		t.Fatalf("sunrise = %v", day.Sunrise)
	}
	if day.GoldenHour == nil || *day.GoldenHour.Evening.Start != "14:02:00 UTC" {
		t.Fatalf("golden hour = %+v", day.GoldenHour)
	}
	if fmt.Sprintf("%d", resp.TotalDays) != "1" {
		t.Fatalf("TotalDays = %d", resp.TotalDays)
	}
}
