// Package store persists predictions, actual sales and the holiday calendar.
// The production implementation is SQLite; a memory implementation backs
// tests and database-less development.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kitchencopilot/backend/internal/forecast"
	"github.com/kitchencopilot/backend/internal/holiday"
	"github.com/kitchencopilot/backend/internal/metrics"
)

// ErrNotFound is returned when a read matches no rows.
var ErrNotFound = errors.New("no data for requested range")

// AppendResult reports the outcome of an append. Persistence failures are
// carried in the result rather than returned as an error so callers can
// surface the message without special-casing.
type AppendResult struct {
	OK      bool   `json:"saved"`
	Rows    int64  `json:"rows"`
	Message string `json:"message"`
}

// PredictionRecord is a persisted prediction row. FinalPrediction is the
// value computed at append time (override wins over the model prediction).
type PredictionRecord struct {
	ID int64 `json:"id"`
	forecast.Row
	FinalPrediction int `json:"final_prediction"`
}

// ActualSale is one imported day of recorded sales.
type ActualSale struct {
	Date        time.Time `json:"date"`
	ActualMeals int       `json:"actual_meals"`
}

// Store is the persistence boundary of the forecasting core.
type Store interface {
	// AppendPredictions appends the batch in one transaction, never
	// updating prior rows. A date accumulates one row per prediction run.
	AppendPredictions(ctx context.Context, rows []forecast.Row) AppendResult

	// LatestPerDate returns, for each date in [from, to] that has
	// predictions, only the newest row: maximum prediction timestamp,
	// ties broken by the highest row id.
	LatestPerDate(ctx context.Context, from, to time.Time) ([]PredictionRecord, error)

	// ActualsJoin inner-joins latest-per-date predictions with actual
	// sales on date, restricted to actual-sales dates in [from, to].
	ActualsJoin(ctx context.Context, from, to time.Time) ([]metrics.Pair, error)

	// LatestBatch returns all rows of the most recent prediction run.
	LatestBatch(ctx context.Context) ([]PredictionRecord, error)

	// ImportActuals upserts sales records by date.
	ImportActuals(ctx context.Context, sales []ActualSale) (int, error)

	// ImportHolidays replaces the holiday calendar rows for the imported
	// dates.
	ImportHolidays(ctx context.Context, days []holiday.Day) (int, error)

	// Range implements holiday.Source from the holidays table.
	Range(ctx context.Context, start, end time.Time) ([]holiday.Day, error)

	// Ping reports storage reachability for the health endpoint.
	Ping(ctx context.Context) error
}
