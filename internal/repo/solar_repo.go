// Package repo implements the data persistence layer for cached solar data,
// backed by GORM. This file provides repository functions for the SolarRecord
// model — the durable per-(location, date) cache the fetch orchestrator reads
// and fills.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a record is not found, FindSolarDay returns gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - When an insert collides with an existing (location, date) row, the
//     uniqueness constraint fires and ErrDuplicateRecord is returned.
//   - On other DB errors, the raw gorm error is propagated.
//
// Functions:
//
//   - InsertSolarRecord(ctx, db, rec) -> *domain.SolarRecord, error
//     Inserts a new row with UUID primary key and UTC timestamp.
//
//   - CountSolarDays(ctx, db, location, start, end) -> (int64, error)
//     Counts distinct stored dates in [start, end] for a location.
//
//   - IsRangeComplete(ctx, db, location, start, end) -> (bool, error)
//     Reports whether every date in the inclusive range has a row.
//
//   - SolarDayExists / FindSolarDay: point lookups used during the
//     per-day merge in the orchestrator's slow path.
//
//   - ListSolarRange(ctx, db, location, start, end) -> []domain.SolarRecord
//     Loads a date-ascending slice for the range.
//
// This repository is designed to be wrapped by a higher-level service
// (see services.SolarService) which enforces batching, pacing, and
// error aggregation for upstream fetches.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-solar-backend/internal/domain"
	"github.com/tbourn/go-solar-backend/internal/utils"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicateRecord is returned when an insert collides with an existing
// (location, date) row. Callers performing benign concurrent fetches should
// treat it as "already cached" rather than a fatal error.
var ErrDuplicateRecord = errors.New("solar record already exists for location and date")

// InsertSolarRecord persists one day of solar data. The record ID is a
// randomly generated UUID (string) and CreatedAt is set to UTC. The row is
// never updated afterwards; the cache is append-only.
//
// A violation of the (location, date) uniqueness constraint is translated to
// ErrDuplicateRecord. Other DB errors are returned as-is.
func InsertSolarRecord(ctx context.Context, db *gorm.DB, rec *domain.SolarRecord) (*domain.SolarRecord, error) {
	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicateRecord
		}
		return nil, err
	}
	return rec, nil
}

// isDuplicate reports whether err is a unique-constraint violation. GORM's
// TranslateError covers the common path; the string check covers drivers
// that bypass translation.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CountSolarDays returns the number of distinct dates with a stored record in
// [start, end] inclusive for the location. Dates are "YYYY-MM-DD" strings, so
// BETWEEN compares them in chronological order.
func CountSolarDays(ctx context.Context, db *gorm.DB, location, start, end string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.SolarRecord{}).
		Where("location = ? AND date BETWEEN ? AND ?", location, start, end).
		Count(&total).Error
	return total, err
}

// IsRangeComplete reports whether a record exists for every date in
// [start, end] inclusive for the location. It only checks row existence, not
// the shape of the stored data; a present row counts as cached.
func IsRangeComplete(ctx context.Context, db *gorm.DB, location, start, end string) (bool, error) {
	s, err := utils.ParseDate(start)
	if err != nil {
		return false, err
	}
	e, err := utils.ParseDate(end)
	if err != nil {
		return false, err
	}
	want := utils.DaysInclusive(s, e)
	if want == 0 {
		return false, nil
	}
	got, err := CountSolarDays(ctx, db, location, start, end)
	if err != nil {
		return false, err
	}
	return got == int64(want), nil
}

// SolarDayExists reports whether a record exists for (location, date).
func SolarDayExists(ctx context.Context, db *gorm.DB, location, date string) (bool, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.SolarRecord{}).
		Where("location = ? AND date = ?", location, date).
		Count(&total).Error
	return total > 0, err
}

// FindSolarDay fetches the record for (location, date), or ErrNotFound if it
// is missing.
func FindSolarDay(ctx context.Context, db *gorm.DB, location, date string) (*domain.SolarRecord, error) {
	var rec domain.SolarRecord
	err := db.WithContext(ctx).
		Where("location = ? AND date = ?", location, date).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListSolarRange returns every record for the location in [start, end]
// inclusive, sorted ascending by date. It returns an empty slice when nothing
// is cached for the range.
func ListSolarRange(ctx context.Context, db *gorm.DB, location, start, end string) ([]domain.SolarRecord, error) {
	var out []domain.SolarRecord
	err := db.WithContext(ctx).
		Where("location = ? AND date BETWEEN ? AND ?", location, start, end).
		Order("date asc").
		Find(&out).Error
	return out, err
}
