// Package holiday defines the holiday calendar collaborator. The production
// source is the holidays table in the SQLite store; tests substitute fakes.
package holiday

import (
	"context"
	"time"
)

// Day is one calendar day's holiday record.
type Day struct {
	Date            time.Time `json:"date"`
	Description     string    `json:"description"`
	IsBankHoliday   bool      `json:"is_bank_holiday"`
	IsSemesterBreak bool      `json:"is_semester_break"`
	IsBridgeDay     bool      `json:"is_bridge_day"`
}

// Source returns holiday records for every recorded day in [start, end].
// Days without a record are simply absent; a missing day means "no holiday".
type Source interface {
	Range(ctx context.Context, start, end time.Time) ([]Day, error)
}
