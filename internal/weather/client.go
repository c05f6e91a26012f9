package weather

import (
	"context"
	"time"
)

// Client abstracts the daily weather source. The production implementation
// talks to Open-Meteo; tests substitute fakes.
type Client interface {
	// FetchDaily returns one Day per calendar day in [start, end], ordered by
	// date ascending. Days the provider has no data for may be missing from
	// the result; callers join by date.
	FetchDaily(ctx context.Context, start, end time.Time, mode Mode) ([]Day, error)
}
