package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kitchencopilot/backend/internal/forecast"
	"github.com/kitchencopilot/backend/internal/holiday"
	"github.com/kitchencopilot/backend/internal/weather"
)

func openTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)

	temp := 14.5
	cond := weather.ConditionRainy
	override := 220
	day := date(2025, 3, 10)
	ts := time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC)

	row := forecast.Row{
		Date:                   day,
		Weekday:                "Monday",
		Month:                  "March",
		TemperatureMax:         &temp,
		WeatherCondition:       &cond,
		HolidayDesc:            "Semester break",
		IsSemesterBreak:        true,
		ExpectedCapacity:       intPtr(200),
		PredictedMeals:         180,
		PredictionTimestamp:    ts,
		RunID:                  "run-1",
		OverrideMealPrediction: &override,
		OverrideReason:         "team event",
	}

	res := s.AppendPredictions(ctx, []forecast.Row{row})
	if !res.OK || res.Rows != 1 {
		t.Fatalf("append: %+v", res)
	}

	records, err := s.LatestPerDate(ctx, day, day)
	if err != nil {
		t.Fatalf("LatestPerDate: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	got := records[0]
	if !got.Date.Equal(day) || got.Weekday != "Monday" {
		t.Errorf("date/weekday = %v/%s", got.Date, got.Weekday)
	}
	if got.TemperatureMax == nil || *got.TemperatureMax != temp {
		t.Errorf("temperature = %v", got.TemperatureMax)
	}
	if got.WeatherCondition == nil || *got.WeatherCondition != cond {
		t.Errorf("condition = %v", got.WeatherCondition)
	}
	if !got.IsSemesterBreak || got.HolidayDesc != "Semester break" {
		t.Errorf("holiday fields = %v %q", got.IsSemesterBreak, got.HolidayDesc)
	}
	if got.PredictedMeals != 180 {
		t.Errorf("predicted = %d", got.PredictedMeals)
	}
	// Override precedence survives the round-trip.
	if got.FinalPrediction != 220 {
		t.Errorf("final prediction = %d, want 220", got.FinalPrediction)
	}
	if got.OverrideMealPrediction == nil || *got.OverrideMealPrediction != 220 || got.OverrideReason != "team event" {
		t.Errorf("override fields = %v %q", got.OverrideMealPrediction, got.OverrideReason)
	}
	if !got.PredictionTimestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", got.PredictionTimestamp, ts)
	}
}

func TestSQLiteLatestRowRule(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)
	day := date(2025, 3, 10)

	older := time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)

	s.AppendPredictions(ctx, []forecast.Row{predRow(day, 150, older)})
	s.AppendPredictions(ctx, []forecast.Row{predRow(day, 175, newer)})
	// Same timestamp as the newest row: the higher id must win.
	s.AppendPredictions(ctx, []forecast.Row{predRow(day, 190, newer)})

	records, err := s.LatestPerDate(ctx, day, day)
	if err != nil {
		t.Fatalf("LatestPerDate: %v", err)
	}
	if len(records) != 1 || records[0].PredictedMeals != 190 {
		t.Errorf("latest row = %+v, want predicted 190", records)
	}
}

func TestSQLiteActualsJoinAndHolidays(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)
	ts := time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)

	var rows []forecast.Row
	for i := 0; i < 3; i++ {
		rows = append(rows, predRow(date(2025, 3, 10+i), 100+i, ts))
	}
	if res := s.AppendPredictions(ctx, rows); !res.OK {
		t.Fatalf("append: %+v", res)
	}

	if _, err := s.ImportActuals(ctx, []ActualSale{
		{Date: date(2025, 3, 10), ActualMeals: 98},
		{Date: date(2025, 3, 12), ActualMeals: 111},
	}); err != nil {
		t.Fatalf("ImportActuals: %v", err)
	}

	pairs, err := s.ActualsJoin(ctx, date(2025, 3, 10), date(2025, 3, 14))
	if err != nil {
		t.Fatalf("ActualsJoin: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs, want 2", len(pairs))
	}
	if pairs[1].FinalPrediction != 102 || pairs[1].ActualMeals != 111 {
		t.Errorf("pair 1 = %+v", pairs[1])
	}

	if _, err := s.ImportHolidays(ctx, []holiday.Day{
		{Date: date(2025, 3, 11), Description: "Bridge day", IsBridgeDay: true},
	}); err != nil {
		t.Fatalf("ImportHolidays: %v", err)
	}
	days, err := s.Range(ctx, date(2025, 3, 1), date(2025, 3, 31))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(days) != 1 || !days[0].IsBridgeDay {
		t.Errorf("holidays = %+v", days)
	}
}
