package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kitchencopilot/backend/internal/forecast"
	"github.com/kitchencopilot/backend/internal/holiday"
	"github.com/kitchencopilot/backend/internal/metrics"
	"github.com/kitchencopilot/backend/internal/weather"
)

const (
	dateLayout = "2006-01-02"
	tsLayout   = time.RFC3339Nano
)

const schema = `
CREATE TABLE IF NOT EXISTS predictions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT,
	date TEXT NOT NULL,
	weekday TEXT,
	expected_capacity INTEGER,
	temperature_max REAL,
	weather_condition TEXT,
	is_bank_holiday INTEGER NOT NULL DEFAULT 0,
	is_bridge_day INTEGER NOT NULL DEFAULT 0,
	is_semester_break INTEGER NOT NULL DEFAULT 0,
	holiday_desc TEXT NOT NULL DEFAULT '',
	predicted_meals INTEGER NOT NULL,
	override_meal_prediction INTEGER,
	override_reason TEXT,
	final_prediction INTEGER NOT NULL,
	prediction_timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_date_ts
	ON predictions(date, prediction_timestamp);

CREATE TABLE IF NOT EXISTS actual_sales (
	date TEXT PRIMARY KEY,
	actual_meals INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS holidays (
	date TEXT PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	is_bank_holiday INTEGER NOT NULL DEFAULT 0,
	is_semester_break INTEGER NOT NULL DEFAULT 0,
	is_bridge_day INTEGER NOT NULL DEFAULT 0
);
`

// latestRowFilter picks, per date, the row with the maximum prediction
// timestamp; timestamp ties resolve to the highest id (the newest insert).
const latestRowFilter = `p.id = (
	SELECT p2.id FROM predictions p2
	WHERE p2.date = p.date
	ORDER BY p2.prediction_timestamp DESC, p2.id DESC
	LIMIT 1
)`

// SQLiteStore implements Store on a local SQLite database in WAL mode.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates
// the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlite open %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping: %w", err)
	}
	return nil
}

// AppendPredictions implements Store. The whole batch is one transaction:
// either every row lands or none does.
func (s *SQLiteStore) AppendPredictions(ctx context.Context, rows []forecast.Row) AppendResult {
	if len(rows) == 0 {
		return AppendResult{OK: false, Message: "nothing to save"}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return AppendResult{OK: false, Message: fmt.Sprintf("begin transaction: %v", err)}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO predictions (
			run_id, date, weekday, expected_capacity, temperature_max,
			weather_condition, is_bank_holiday, is_bridge_day, is_semester_break,
			holiday_desc, predicted_meals, override_meal_prediction,
			override_reason, final_prediction, prediction_timestamp
		) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return AppendResult{OK: false, Message: fmt.Sprintf("prepare insert: %v", err)}
	}
	defer stmt.Close()

	var saved int64
	for _, r := range rows {
		var cond *string
		if r.WeatherCondition != nil {
			c := string(*r.WeatherCondition)
			cond = &c
		}
		var reason *string
		if r.OverrideReason != "" {
			reason = &r.OverrideReason
		}

		res, err := stmt.ExecContext(ctx,
			r.RunID,
			r.Date.Format(dateLayout),
			r.Weekday,
			r.ExpectedCapacity,
			r.TemperatureMax,
			cond,
			r.IsBridgeDay,
			r.IsSemesterBreak,
			r.HolidayDesc,
			r.PredictedMeals,
			r.OverrideMealPrediction,
			reason,
			r.FinalPrediction(),
			r.PredictionTimestamp.UTC().Format(tsLayout),
		)
		if err != nil {
			return AppendResult{OK: false, Message: fmt.Sprintf("insert prediction for %s: %v", r.Date.Format(dateLayout), err)}
		}
		n, _ := res.RowsAffected()
		saved += n
	}

	if err := tx.Commit(); err != nil {
		return AppendResult{OK: false, Message: fmt.Sprintf("commit: %v", err)}
	}

	return AppendResult{OK: true, Rows: saved, Message: fmt.Sprintf("saved %d prediction rows", saved)}
}

const predictionColumns = `
	p.id, p.run_id, p.date, p.weekday, p.expected_capacity, p.temperature_max,
	p.weather_condition, p.is_bridge_day, p.is_semester_break, p.holiday_desc,
	p.predicted_meals, p.override_meal_prediction, p.override_reason,
	p.final_prediction, p.prediction_timestamp`

// LatestPerDate implements Store.
func (s *SQLiteStore) LatestPerDate(ctx context.Context, from, to time.Time) ([]PredictionRecord, error) {
	query := `SELECT ` + predictionColumns + `
		FROM predictions p
		WHERE p.date BETWEEN ? AND ? AND ` + latestRowFilter + `
		ORDER BY p.date`

	rows, err := s.db.QueryContext(ctx, query, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("sqlite latest per date: %w", err)
	}
	defer rows.Close()

	return scanPredictions(rows)
}

// LatestBatch implements Store: all rows sharing the newest prediction
// timestamp, ordered by date.
func (s *SQLiteStore) LatestBatch(ctx context.Context) ([]PredictionRecord, error) {
	query := `SELECT ` + predictionColumns + `
		FROM predictions p
		WHERE p.prediction_timestamp = (SELECT MAX(prediction_timestamp) FROM predictions)
		ORDER BY p.date`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite latest batch: %w", err)
	}
	defer rows.Close()

	records, err := scanPredictions(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

// ActualsJoin implements Store.
func (s *SQLiteStore) ActualsJoin(ctx context.Context, from, to time.Time) ([]metrics.Pair, error) {
	query := `
		SELECT a.date, p.final_prediction, a.actual_meals
		FROM actual_sales a
		JOIN predictions p ON p.date = a.date
		WHERE a.date BETWEEN ? AND ? AND ` + latestRowFilter + `
		ORDER BY a.date`

	rows, err := s.db.QueryContext(ctx, query, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("sqlite actuals join: %w", err)
	}
	defer rows.Close()

	var pairs []metrics.Pair
	for rows.Next() {
		var dateStr string
		var p metrics.Pair
		if err := rows.Scan(&dateStr, &p.FinalPrediction, &p.ActualMeals); err != nil {
			return nil, fmt.Errorf("sqlite scan pair: %w", err)
		}
		if p.Date, err = time.Parse(dateLayout, dateStr); err != nil {
			return nil, fmt.Errorf("sqlite parse pair date %q: %w", dateStr, err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// ImportActuals implements Store. Re-imported dates replace prior values.
func (s *SQLiteStore) ImportActuals(ctx context.Context, sales []ActualSale) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite import actuals: %w", err)
	}
	defer tx.Rollback()

	var n int
	for _, sale := range sales {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO actual_sales (date, actual_meals) VALUES (?, ?)`,
			sale.Date.Format(dateLayout), sale.ActualMeals,
		); err != nil {
			return 0, fmt.Errorf("sqlite import actuals for %s: %w", sale.Date.Format(dateLayout), err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite import actuals commit: %w", err)
	}
	return n, nil
}

// ImportHolidays implements Store.
func (s *SQLiteStore) ImportHolidays(ctx context.Context, days []holiday.Day) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite import holidays: %w", err)
	}
	defer tx.Rollback()

	var n int
	for _, d := range days {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO holidays
				(date, description, is_bank_holiday, is_semester_break, is_bridge_day)
			 VALUES (?, ?, ?, ?, ?)`,
			d.Date.Format(dateLayout), d.Description, d.IsBankHoliday, d.IsSemesterBreak, d.IsBridgeDay,
		); err != nil {
			return 0, fmt.Errorf("sqlite import holidays for %s: %w", d.Date.Format(dateLayout), err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite import holidays commit: %w", err)
	}
	return n, nil
}

// Range implements holiday.Source.
func (s *SQLiteStore) Range(ctx context.Context, start, end time.Time) ([]holiday.Day, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, description, is_bank_holiday, is_semester_break, is_bridge_day
		FROM holidays
		WHERE date BETWEEN ? AND ?
		ORDER BY date`,
		start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("sqlite holiday range: %w", err)
	}
	defer rows.Close()

	var days []holiday.Day
	for rows.Next() {
		var d holiday.Day
		var dateStr string
		if err := rows.Scan(&dateStr, &d.Description, &d.IsBankHoliday, &d.IsSemesterBreak, &d.IsBridgeDay); err != nil {
			return nil, fmt.Errorf("sqlite scan holiday: %w", err)
		}
		if d.Date, err = time.Parse(dateLayout, dateStr); err != nil {
			return nil, fmt.Errorf("sqlite parse holiday date %q: %w", dateStr, err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

func scanPredictions(rows *sql.Rows) ([]PredictionRecord, error) {
	var records []PredictionRecord
	for rows.Next() {
		var rec PredictionRecord
		var dateStr, tsStr string
		var cond, reason *string

		err := rows.Scan(
			&rec.ID, &rec.RunID, &dateStr, &rec.Weekday, &rec.ExpectedCapacity,
			&rec.TemperatureMax, &cond, &rec.IsBridgeDay, &rec.IsSemesterBreak,
			&rec.HolidayDesc, &rec.PredictedMeals, &rec.OverrideMealPrediction,
			&reason, &rec.FinalPrediction, &tsStr,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite scan prediction: %w", err)
		}

		if rec.Date, err = time.Parse(dateLayout, dateStr); err != nil {
			return nil, fmt.Errorf("sqlite parse prediction date %q: %w", dateStr, err)
		}
		if rec.PredictionTimestamp, err = time.Parse(tsLayout, tsStr); err != nil {
			return nil, fmt.Errorf("sqlite parse prediction timestamp %q: %w", tsStr, err)
		}
		if cond != nil {
			c := weather.Condition(*cond)
			rec.WeatherCondition = &c
			rec.WeatherIcon = weather.IconFor(c)
		}
		if reason != nil {
			rec.OverrideReason = *reason
		}

		records = append(records, rec)
	}
	return records, rows.Err()
}
