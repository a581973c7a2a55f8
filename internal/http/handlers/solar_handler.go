// Solar HTTP handlers.
//
// This file exposes the public endpoint for solar-event data:
//   - GET /solar?location=...&start_date=YYYY-MM-DD&end_date=YYYY-MM-DD
//
// Handlers are transport-thin: they validate input, call the application
// service, and translate results into HTTP responses. All date-range
// validation happens here — the service layer assumes it already holds.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-solar-backend/internal/geocode"
	"github.com/tbourn/go-solar-backend/internal/services"
	"github.com/tbourn/go-solar-backend/internal/utils"
)

// Range-validation limits enforced at the transport boundary.
const (
	// maxRangeDays caps one request's inclusive date span.
	maxRangeDays = 365
	// maxYearsBack is how far in the past start_date may lie.
	maxYearsBack = 5
	// maxYearsAhead is how far in the future end_date may lie.
	maxYearsAhead = 2
)

// SolarService defines the solar-data operation consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type SolarService interface {
	// GetSolarData resolves a place name and returns the formatted solar
	// records for the inclusive date range.
	GetSolarData(ctx context.Context, rawLocation, start, end string) (*services.SolarResponse, error)
}

// Handlers groups the HTTP endpoints of the solar API.
// It depends on an abstract service interface to keep transport concerns
// separate from business logic.
type Handlers struct {
	solarSvc SolarService
}

// New constructs and returns a Handlers instance bound to the given service.
func New(solarSvc SolarService) *Handlers {
	return &Handlers{solarSvc: solarSvc}
}

// GetSolarData handles GET /solar.
//
// Query parameters:
//   - location:   free-text place name (required, non-empty)
//   - start_date: inclusive range start, "YYYY-MM-DD" (required)
//   - end_date:   inclusive range end, "YYYY-MM-DD" (required)
//
// The date range must satisfy: start <= end, span <= 365 days, start no more
// than 5 years in the past, end no more than 2 years in the future. Requests
// violating any of these never reach the service layer.
func (h *Handlers) GetSolarData(c *gin.Context) {
	location := strings.TrimSpace(c.Query("location"))
	if location == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "location is required")
		return
	}

	startStr := strings.TrimSpace(c.Query("start_date"))
	endStr := strings.TrimSpace(c.Query("end_date"))
	start, err := utils.ParseDate(startStr)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "start_date must be a valid YYYY-MM-DD date")
		return
	}
	end, err := utils.ParseDate(endStr)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "end_date must be a valid YYYY-MM-DD date")
		return
	}
	if end.Before(start) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "start_date must not be after end_date")
		return
	}
	if days := utils.DaysInclusive(start, end); days > maxRangeDays {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest,
			fmt.Sprintf("date range must not exceed %d days (got %d)", maxRangeDays, days))
		return
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if start.Before(today.AddDate(-maxYearsBack, 0, 0)) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest,
			fmt.Sprintf("start_date must not be more than %d years in the past", maxYearsBack))
		return
	}
	if end.After(today.AddDate(maxYearsAhead, 0, 0)) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest,
			fmt.Sprintf("end_date must not be more than %d years in the future", maxYearsAhead))
		return
	}

	resp, err := h.solarSvc.GetSolarData(c.Request.Context(), location, startStr, endStr)
	if err != nil {
		h.failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, resp)
}

// failFromService maps service-layer errors to HTTP responses.
func (h *Handlers) failFromService(c *gin.Context, err error) {
	var locErr *services.LocationError
	if errors.As(err, &locErr) {
		switch {
		case errors.Is(err, geocode.ErrNoMatch):
			fail(c, http.StatusNotFound, ErrCodeLocationNotFound, locErr.Error())
		case errors.Is(err, geocode.ErrEmptyQuery):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, locErr.Error())
		default:
			fail(c, http.StatusBadGateway, ErrCodeGeocodingUnavailable, locErr.Error())
		}
		return
	}

	var agg *services.AggregateFetchError
	if errors.As(err, &agg) {
		fail(c, http.StatusBadGateway, ErrCodeFetchFailed, agg.Error())
		return
	}

	fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
}
