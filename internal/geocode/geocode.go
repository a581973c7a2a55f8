// Package geocode resolves free-text place names into coordinates plus the
// canonical display name the rest of the application uses as its cache
// partition key. It speaks the Nominatim-style search wire shape: a GET with
// q/format/limit query parameters returning a JSON array of candidates.
//
// Configuration is explicit (base URL, timeout, user agent) and passed to the
// constructor; there is no global client state. Public Nominatim instances
// require a descriptive User-Agent, so the config carries one.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public OpenStreetMap Nominatim search endpoint.
const DefaultBaseURL = "https://nominatim.openstreetmap.org/search"

// DefaultTimeout bounds a single geocoding call.
const DefaultTimeout = 10 * time.Second

// maxNameLen caps canonical display names; longer names are truncated so
// they always fit the cache key column.
const maxNameLen = 200

var (
	// ErrEmptyQuery is returned for blank input before any network call.
	ErrEmptyQuery = errors.New("location query is empty")

	// ErrNoMatch is returned when the provider finds no candidate.
	ErrNoMatch = errors.New("no matching location found")

	// ErrUnavailable covers transport failures and non-200 responses from
	// the geocoding provider.
	ErrUnavailable = errors.New("geocoding service unavailable")
)

// Config carries the explicit resolver configuration.
type Config struct {
	BaseURL   string        // defaults to DefaultBaseURL
	Timeout   time.Duration // defaults to DefaultTimeout
	UserAgent string        // sent as User-Agent when non-empty
}

// Location is a resolved place. Name is the canonical display name used
// verbatim as the cache partition key; two inputs resolving to the same
// display name share cached data.
type Location struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// candidate mirrors one element of the provider's JSON array response.
// Nominatim serializes coordinates as strings.
type candidate struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Resolver geocodes free-text place names. It is safe for concurrent use.
type Resolver struct {
	cfg  Config
	http *http.Client
}

// New constructs a Resolver from cfg, applying defaults for base URL and
// timeout.
func New(cfg Config) *Resolver {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Resolver{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// Resolve geocodes query to its best candidate. It returns ErrEmptyQuery for
// blank input, ErrNoMatch when the provider has no candidate, and
// ErrUnavailable for transport or provider failures.
func (r *Resolver) Resolve(ctx context.Context, query string) (*Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	u, err := url.Parse(r.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base url: %v", ErrUnavailable, err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	if r.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", r.cfg.UserAgent)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http status %d", ErrUnavailable, resp.StatusCode)
	}

	var candidates []candidate
	if err := json.NewDecoder(resp.Body).Decode(&candidates); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoMatch
	}

	return toLocation(candidates[0])
}

// toLocation validates and converts the provider candidate. Coordinates
// outside the legal ranges or names too short to be meaningful are treated
// as no-match rather than unavailable: retrying will not help.
func toLocation(c candidate) (*Location, error) {
	lat, err := strconv.ParseFloat(c.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad latitude %q", ErrNoMatch, c.Lat)
	}
	lng, err := strconv.ParseFloat(c.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad longitude %q", ErrNoMatch, c.Lon)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, fmt.Errorf("%w: coordinates out of range (%f, %f)", ErrNoMatch, lat, lng)
	}

	name := strings.TrimSpace(c.DisplayName)
	if len(name) < 2 {
		return nil, fmt.Errorf("%w: unusable display name %q", ErrNoMatch, c.DisplayName)
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	return &Location{Name: name, Latitude: lat, Longitude: lng}, nil
}
