// Package services defines the business logic for resolving locations and
// assembling solar-data ranges. This file centralizes the service-level error
// values and types so that they can be consistently returned by service
// methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the
// handler layer.
package services

import (
	"fmt"
	"strings"
)

// LocationError wraps a geocoding failure so callers can distinguish "we
// could not resolve the place name" from a failure fetching solar data.
type LocationError struct {
	Err error
}

// Error prefixes the underlying cause to mark it as a location problem.
func (e *LocationError) Error() string {
	return fmt.Sprintf("location error: %v", e.Err)
}

// Unwrap exposes the underlying geocoding error for errors.Is/As matching.
func (e *LocationError) Unwrap() error { return e.Err }

// AggregateFetchError is the all-or-nothing failure for one range request:
// every date that failed carries its own "{date}: {cause}" entry. Days that
// succeeded in the same request were still persisted to the cache, but no
// partial data is returned alongside this error.
type AggregateFetchError struct {
	Errors []string
}

// Error joins every per-date failure with "; ".
func (e *AggregateFetchError) Error() string {
	return "failed to fetch solar data: " + strings.Join(e.Errors, "; ")
}
