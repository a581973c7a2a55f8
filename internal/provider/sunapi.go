// Package provider implements the client for the upstream sunrise-sunset
// astronomy API. The upstream serves exactly one day of data per request, so
// the client exposes a single FetchDay call; batching and pacing across days
// is the orchestrator's job (see services.SolarService).
//
// The upstream responds 200 with an application-level status field; the
// client translates that field into the sentinel errors below. Transport
// failures (timeout, refused connection, open circuit breaker) map to
// ErrNetwork, and anything else unexpected to ErrInternal. None of these are
// retried here: a failed day is reported as an error for that date.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"

	"github.com/tbourn/go-solar-backend/internal/solartime"
)

// DefaultBaseURL is the public sunrise-sunset API endpoint.
const DefaultBaseURL = "https://api.sunrise-sunset.org/json"

// DefaultTimeout bounds a single upstream call.
const DefaultTimeout = 15 * time.Second

// Sentinel errors for the upstream status taxonomy. Callers match with
// errors.Is; the wrapped message carries any raw detail.
var (
	// ErrInvalidCoordinates maps the upstream INVALID_REQUEST status
	// (latitude or longitude rejected).
	ErrInvalidCoordinates = errors.New("upstream rejected coordinates")

	// ErrInvalidDate maps the upstream INVALID_DATE status.
	ErrInvalidDate = errors.New("upstream rejected date")

	// ErrUpstreamUnknown maps the upstream UNKNOWN_ERROR status and
	// unexpected HTTP status codes.
	ErrUpstreamUnknown = errors.New("upstream reported an unknown error")

	// ErrUnrecognizedStatus is returned for status values outside the
	// documented set; the raw value is included in the wrapping message.
	ErrUnrecognizedStatus = errors.New("unrecognized upstream status")

	// ErrNetwork covers transport-level failures: timeouts, connection
	// errors, and a tripped circuit breaker.
	ErrNetwork = errors.New("network failure calling upstream")

	// ErrInternal covers unexpected local failures (body read, decode).
	ErrInternal = errors.New("internal failure calling upstream")
)

// upstreamCalls counts FetchDay calls by terminal outcome.
var upstreamCalls = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "solar_upstream_calls_total",
		Help: "Total upstream sunrise-sunset API calls by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(upstreamCalls)
}

// Config carries the explicit client configuration. There is no hidden
// global client state; each Client owns its http.Client and breaker.
type Config struct {
	BaseURL   string        // defaults to DefaultBaseURL
	Timeout   time.Duration // per-call; defaults to DefaultTimeout
	UserAgent string        // sent as User-Agent when non-empty
}

// DayResult is one parsed day of solar data, with all event times in UTC.
// Nil pointers represent polar day/night where the event does not occur.
type DayResult struct {
	Sunrise   *time.Time
	Sunset    *time.Time
	SolarNoon *time.Time

	// DayLengthSeconds is the upstream day length; zero on polar night.
	DayLengthSeconds int64

	CivilTwilightBegin        *time.Time
	CivilTwilightEnd          *time.Time
	NauticalTwilightBegin     *time.Time
	NauticalTwilightEnd       *time.Time
	AstronomicalTwilightBegin *time.Time
	AstronomicalTwilightEnd   *time.Time
}

// apiResponse mirrors the upstream wire shape for formatted=0 responses:
// ISO-8601 timestamps and day_length in seconds.
type apiResponse struct {
	Status  string     `json:"status"`
	Results apiResults `json:"results"`
}

type apiResults struct {
	Sunrise                   string `json:"sunrise"`
	Sunset                    string `json:"sunset"`
	SolarNoon                 string `json:"solar_noon"`
	DayLength                 int64  `json:"day_length"`
	CivilTwilightBegin        string `json:"civil_twilight_begin"`
	CivilTwilightEnd          string `json:"civil_twilight_end"`
	NauticalTwilightBegin     string `json:"nautical_twilight_begin"`
	NauticalTwilightEnd       string `json:"nautical_twilight_end"`
	AstronomicalTwilightBegin string `json:"astronomical_twilight_begin"`
	AstronomicalTwilightEnd   string `json:"astronomical_twilight_end"`
}

// Client fetches single days of solar data from the upstream API.
// It is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// New constructs a Client from cfg, applying defaults for the base URL and
// timeout. The circuit breaker trips after a run of consecutive transport
// failures so a dead upstream fails fast instead of burning the per-call
// timeout for every remaining date.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "sunrise-sunset",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
	}
}

// FetchDay requests one day of solar data for the coordinate pair. The date
// is "YYYY-MM-DD". Application-level rejections and transport failures are
// both returned as errors matching the package sentinels.
func (c *Client) FetchDay(ctx context.Context, lat, lng float64, date string) (*DayResult, error) {
	res, err := c.fetchDay(ctx, lat, lng, date)
	upstreamCalls.WithLabelValues(outcomeLabel(err)).Inc()
	return res, err
}

func (c *Client) fetchDay(ctx context.Context, lat, lng float64, date string) (*DayResult, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base url: %v", ErrInternal, err)
	}
	q := u.Query()
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lng", strconv.FormatFloat(lng, 'f', 6, 64))
	q.Set("date", date)
	q.Set("formatted", "0")
	u.RawQuery = q.Encode()

	// Only transport and decode problems flow through the breaker; a day the
	// upstream rejects (e.g. INVALID_DATE) is not a sign the service is down.
	body, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("%w: build request: %v", ErrInternal, err)
		}
		if c.cfg.UserAgent != "" {
			req.Header.Set("User-Agent", c.cfg.UserAgent)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: http status %d", ErrUpstreamUnknown, resp.StatusCode)
		}
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("%w: read body: %v", ErrInternal, err)
		}
		return raw, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit breaker open", ErrNetwork)
		}
		return nil, err
	}

	var payload apiResponse
	if err := json.Unmarshal(body.([]byte), &payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrInternal, err)
	}

	switch payload.Status {
	case "OK":
		return parseResults(payload.Results)
	case "INVALID_REQUEST":
		return nil, ErrInvalidCoordinates
	case "INVALID_DATE":
		return nil, ErrInvalidDate
	case "UNKNOWN_ERROR":
		return nil, ErrUpstreamUnknown
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedStatus, payload.Status)
	}
}

// parseResults decodes the ISO-8601 event fields. Absent events (polar
// day/night sentinels) come back nil; a genuinely malformed timestamp is an
// internal failure since the upstream said status OK.
func parseResults(r apiResults) (*DayResult, error) {
	out := &DayResult{DayLengthSeconds: r.DayLength}

	fields := []struct {
		raw string
		dst **time.Time
	}{
		{r.Sunrise, &out.Sunrise},
		{r.Sunset, &out.Sunset},
		{r.SolarNoon, &out.SolarNoon},
		{r.CivilTwilightBegin, &out.CivilTwilightBegin},
		{r.CivilTwilightEnd, &out.CivilTwilightEnd},
		{r.NauticalTwilightBegin, &out.NauticalTwilightBegin},
		{r.NauticalTwilightEnd, &out.NauticalTwilightEnd},
		{r.AstronomicalTwilightBegin, &out.AstronomicalTwilightBegin},
		{r.AstronomicalTwilightEnd, &out.AstronomicalTwilightEnd},
	}
	for _, f := range fields {
		t, err := solartime.ParseISOEvent(f.raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternal, err)
		}
		*f.dst = t
	}
	return out, nil
}

// outcomeLabel maps a FetchDay error to a bounded metric label.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidCoordinates):
		return "invalid_coordinates"
	case errors.Is(err, ErrInvalidDate):
		return "invalid_date"
	case errors.Is(err, ErrUnrecognizedStatus):
		return "unrecognized_status"
	case errors.Is(err, ErrUpstreamUnknown):
		return "upstream_unknown"
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		return "internal"
	}
}
