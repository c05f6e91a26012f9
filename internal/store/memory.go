package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kitchencopilot/backend/internal/forecast"
	"github.com/kitchencopilot/backend/internal/holiday"
	"github.com/kitchencopilot/backend/internal/metrics"
)

// MemoryStore is a concurrency-safe in-memory Store. It backs unit tests
// and lets the service run without a database file, with the same
// append-only and latest-row semantics as SQLite.
type MemoryStore struct {
	mu sync.RWMutex

	nextID      int64
	predictions []PredictionRecord
	actuals     map[string]ActualSale // key: date string
	holidays    map[string]holiday.Day
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:   1,
		actuals:  make(map[string]ActualSale),
		holidays: make(map[string]holiday.Day),
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// AppendPredictions implements Store.
func (s *MemoryStore) AppendPredictions(_ context.Context, rows []forecast.Row) AppendResult {
	if len(rows) == 0 {
		return AppendResult{OK: false, Message: "nothing to save"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rows {
		s.predictions = append(s.predictions, PredictionRecord{
			ID:              s.nextID,
			Row:             r,
			FinalPrediction: r.FinalPrediction(),
		})
		s.nextID++
	}

	return AppendResult{OK: true, Rows: int64(len(rows)), Message: "saved predictions"}
}

// LatestPerDate implements Store.
func (s *MemoryStore) LatestPerDate(_ context.Context, from, to time.Time) ([]PredictionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := s.latestByDate(from, to)

	records := make([]PredictionRecord, 0, len(latest))
	for _, rec := range latest {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}

// LatestBatch implements Store.
func (s *MemoryStore) LatestBatch(context.Context) ([]PredictionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.predictions) == 0 {
		return nil, ErrNotFound
	}

	var maxTS time.Time
	for _, rec := range s.predictions {
		if rec.PredictionTimestamp.After(maxTS) {
			maxTS = rec.PredictionTimestamp
		}
	}

	var records []PredictionRecord
	for _, rec := range s.predictions {
		if rec.PredictionTimestamp.Equal(maxTS) {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}

// ActualsJoin implements Store.
func (s *MemoryStore) ActualsJoin(_ context.Context, from, to time.Time) ([]metrics.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := s.latestByDate(from, to)

	var pairs []metrics.Pair
	for key, sale := range s.actuals {
		rec, ok := latest[key]
		if !ok {
			continue
		}
		if sale.Date.Before(from) || sale.Date.After(to) {
			continue
		}
		pairs = append(pairs, metrics.Pair{
			Date:            sale.Date,
			FinalPrediction: rec.FinalPrediction,
			ActualMeals:     sale.ActualMeals,
		})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Date.Before(pairs[j].Date) })
	return pairs, nil
}

// ImportActuals implements Store.
func (s *MemoryStore) ImportActuals(_ context.Context, sales []ActualSale) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sale := range sales {
		s.actuals[sale.Date.Format(dateLayout)] = sale
	}
	return len(sales), nil
}

// ImportHolidays implements Store.
func (s *MemoryStore) ImportHolidays(_ context.Context, days []holiday.Day) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range days {
		s.holidays[d.Date.Format(dateLayout)] = d
	}
	return len(days), nil
}

// Range implements holiday.Source.
func (s *MemoryStore) Range(_ context.Context, start, end time.Time) ([]holiday.Day, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var days []holiday.Day
	for _, d := range s.holidays {
		if d.Date.Before(start) || d.Date.After(end) {
			continue
		}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days, nil
}

// latestByDate applies the latest-row rule: max prediction timestamp per
// date, ties resolved by the highest id. Caller holds the lock.
func (s *MemoryStore) latestByDate(from, to time.Time) map[string]PredictionRecord {
	latest := make(map[string]PredictionRecord)
	for _, rec := range s.predictions {
		if rec.Date.Before(from) || rec.Date.After(to) {
			continue
		}
		key := rec.Date.Format(dateLayout)
		cur, ok := latest[key]
		if !ok ||
			rec.PredictionTimestamp.After(cur.PredictionTimestamp) ||
			(rec.PredictionTimestamp.Equal(cur.PredictionTimestamp) && rec.ID > cur.ID) {
			latest[key] = rec
		}
	}
	return latest
}
