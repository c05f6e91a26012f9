// Package metrics compares final predictions against recorded actual sales.
//
// Two distinct ratio conventions live here on purpose: the aggregate
// accuracy rate classifies each day by |error| / actual, while the per-day
// comparison table reports pct_error = difference / prediction. They answer
// different questions and must not be merged.
package metrics

import (
	"errors"
	"math"
	"time"
)

// DefaultTolerance is the relative error under which a day counts as
// accurately predicted.
const DefaultTolerance = 0.05

// ErrNoPairs is returned when a period has no matched
// prediction/actual pairs; metrics over an empty set are undefined rather
// than NaN.
var ErrNoPairs = errors.New("no matched prediction/actual pairs")

// Pair is one day's final prediction joined with its recorded actual.
type Pair struct {
	Date            time.Time `json:"date"`
	FinalPrediction int       `json:"final_prediction"`
	ActualMeals     int       `json:"actual_meals"`
}

// Snapshot aggregates prediction quality over a period.
type Snapshot struct {
	MAE            float64 `json:"mae"`
	AccuracyRate   float64 `json:"accuracy_rate"`
	OverPredicted  int     `json:"over_predicted"`
	UnderPredicted int     `json:"under_predicted"`
	Pairs          int     `json:"pairs"`
}

// Deltas is the change from the previous period to the current one.
type Deltas struct {
	MAE            float64 `json:"mae"`
	AccuracyRate   float64 `json:"accuracy_rate"`
	OverPredicted  int     `json:"over_predicted"`
	UnderPredicted int     `json:"under_predicted"`
}

// ComparisonRow is one line of the per-day comparison table.
type ComparisonRow struct {
	Pair
	// Difference = actual - final prediction.
	Difference int `json:"difference"`
	// PctError = difference / final prediction (zero when the prediction
	// is zero). Distinct from the accuracy-rate ratio, which divides by
	// the actual.
	PctError float64 `json:"pct_error"`
}

// Report bundles current-period metrics with the preceding period of equal
// length. Previous and PeriodDeltas are nil when the previous period had no
// matched pairs.
type Report struct {
	Current      Snapshot        `json:"current"`
	Previous     *Snapshot       `json:"previous,omitempty"`
	PeriodDeltas *Deltas         `json:"deltas,omitempty"`
	Daily        []ComparisonRow `json:"daily"`
}

// Compute aggregates pairs into a snapshot. A pair whose actual is zero
// cannot produce a meaningful relative error and is classified inaccurate.
func Compute(pairs []Pair, tolerance float64) (Snapshot, error) {
	if len(pairs) == 0 {
		return Snapshot{}, ErrNoPairs
	}

	var sumAbsErr float64
	var accurate, over, under int

	for _, p := range pairs {
		diff := p.ActualMeals - p.FinalPrediction
		absErr := math.Abs(float64(diff))
		sumAbsErr += absErr

		if p.ActualMeals > 0 && absErr/float64(p.ActualMeals) <= tolerance {
			accurate++
		}

		switch {
		case p.FinalPrediction > p.ActualMeals:
			over++
		case p.FinalPrediction < p.ActualMeals:
			under++
		}
	}

	n := float64(len(pairs))
	return Snapshot{
		MAE:            sumAbsErr / n,
		AccuracyRate:   float64(accurate) / n * 100,
		OverPredicted:  over,
		UnderPredicted: under,
		Pairs:          len(pairs),
	}, nil
}

// DailyComparison expands pairs into the per-day table, preserving order.
func DailyComparison(pairs []Pair) []ComparisonRow {
	rows := make([]ComparisonRow, len(pairs))
	for i, p := range pairs {
		diff := p.ActualMeals - p.FinalPrediction
		var pct float64
		if p.FinalPrediction != 0 {
			pct = float64(diff) / float64(p.FinalPrediction)
		}
		rows[i] = ComparisonRow{Pair: p, Difference: diff, PctError: pct}
	}
	return rows
}

// PreviousPeriod returns the period of identical length immediately
// preceding [from, to]: it ends the day before from and spans as many days
// backwards.
func PreviousPeriod(from, to time.Time) (time.Time, time.Time) {
	length := to.Sub(from)
	prevEnd := from.AddDate(0, 0, -1)
	prevStart := prevEnd.Add(-length)
	return prevStart, prevEnd
}

// BuildReport computes the current snapshot and, when the previous period
// has matched pairs, the previous snapshot and period-over-period deltas.
// The current period having no pairs is the caller-visible ErrNoPairs; an
// empty previous period just omits the comparison.
func BuildReport(current, previous []Pair, tolerance float64) (Report, error) {
	snap, err := Compute(current, tolerance)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Current: snap,
		Daily:   DailyComparison(current),
	}

	if prevSnap, err := Compute(previous, tolerance); err == nil {
		report.Previous = &prevSnap
		report.PeriodDeltas = &Deltas{
			MAE:            snap.MAE - prevSnap.MAE,
			AccuracyRate:   snap.AccuracyRate - prevSnap.AccuracyRate,
			OverPredicted:  snap.OverPredicted - prevSnap.OverPredicted,
			UnderPredicted: snap.UnderPredicted - prevSnap.UnderPredicted,
		}
	}

	return report, nil
}
