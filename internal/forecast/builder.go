package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/kitchencopilot/backend/internal/holiday"
	"github.com/kitchencopilot/backend/internal/weather"
)

const dateKeyLayout = "2006-01-02"

// Builder composes business days, weather and holiday data into the feature
// table the prediction engine consumes.
type Builder struct {
	weather  weather.Client
	holidays holiday.Source

	// now is injectable so tests can pin "today".
	now func() time.Time
}

func NewBuilder(w weather.Client, h holiday.Source) *Builder {
	return &Builder{
		weather:  w,
		holidays: h,
		now:      time.Now,
	}
}

// Build returns one Row per business day, numberOfDays rows in total,
// starting at startDate. Weekends are skipped without counting toward
// numberOfDays, so the window can span more calendar days than that.
// Bank holidays are removed after the joins, so the result can be shorter
// than numberOfDays when the window contains them.
func (b *Builder) Build(ctx context.Context, startDate time.Time, numberOfDays int) ([]Row, error) {
	days := businessDays(startDate, numberOfDays)
	first, last := days[0], days[len(days)-1]

	// One mode decision for the whole window: historical only when the last
	// business day is strictly before today.
	mode := weather.ModeForecast
	if last.Before(dateOnly(b.now())) {
		mode = weather.ModeHistorical
	}

	weatherDays, err := b.weather.FetchDaily(ctx, first, last, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: weather fetch: %v", ErrDataUnavailable, err)
	}
	weatherByDate := make(map[string]weather.Day, len(weatherDays))
	for _, d := range weatherDays {
		weatherByDate[d.Date.Format(dateKeyLayout)] = d
	}

	holidayDays, err := b.holidays.Range(ctx, first, last)
	if err != nil {
		return nil, fmt.Errorf("%w: holiday fetch: %v", ErrDataUnavailable, err)
	}
	holidayByDate := make(map[string]holiday.Day, len(holidayDays))
	for _, d := range holidayDays {
		holidayByDate[d.Date.Format(dateKeyLayout)] = d
	}

	rows := make([]Row, 0, len(days))
	for _, day := range days {
		key := day.Format(dateKeyLayout)

		// A missing holiday record is not a bank holiday.
		h, hasHoliday := holidayByDate[key]
		if hasHoliday && h.IsBankHoliday {
			continue
		}

		row := Row{
			Date:    day,
			Weekday: day.Weekday().String(),
			Month:   day.Month().String(),
		}

		if w, ok := weatherByDate[key]; ok {
			row.TemperatureMax = w.TemperatureMax
			row.WeatherCondition = w.Condition
			row.WeatherIcon = w.Icon
		}

		if hasHoliday {
			row.HolidayDesc = h.Description
			row.IsSemesterBreak = h.IsSemesterBreak
			row.IsBridgeDay = h.IsBridgeDay
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// businessDays returns n Mon-Fri dates starting at the first business day on
// or after start, normalized to midnight UTC.
func businessDays(start time.Time, n int) []time.Time {
	days := make([]time.Time, 0, n)
	d := dateOnly(start)
	for len(days) < n {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
		default:
			days = append(days, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return days
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
