package httpapi

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/kitchencopilot/backend/internal/forecast"
	"github.com/kitchencopilot/backend/internal/holiday"
	"github.com/kitchencopilot/backend/internal/insights"
	"github.com/kitchencopilot/backend/internal/metrics"
	"github.com/kitchencopilot/backend/internal/model"
	"github.com/kitchencopilot/backend/internal/predict"
	"github.com/kitchencopilot/backend/internal/store"
)

const dateLayout = "2006-01-02"

var validate = validator.New()

// Deps bundles everything the handlers need.
type Deps struct {
	Builder  *forecast.Builder
	Engine   *predict.Engine
	Store    store.Store
	Insights *insights.Client

	// WeatherPinger reports weather API reachability for /health; may be nil.
	WeatherPinger interface{ Ping(context.Context) error }

	Tolerance float64
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	h := &handlers{deps: deps}

	app.Get("/health", h.health)

	v1 := app.Group("/api/v1")
	v1.Post("/forecast/prepare", h.prepare)
	v1.Post("/forecast/predict", h.predictAndSave)
	v1.Get("/predictions/current", h.currentPredictions)
	v1.Get("/metrics", h.metricsReport)
	v1.Post("/actuals/import", h.importActuals)
	v1.Post("/holidays/import", h.importHolidays)
}

type handlers struct {
	deps Deps
}

func (h *handlers) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "ok"
	if err := h.deps.Store.Ping(ctx); err != nil {
		dbStatus = err.Error()
	}

	weatherStatus := "ok"
	if h.deps.WeatherPinger != nil {
		if err := h.deps.WeatherPinger.Ping(ctx); err != nil {
			weatherStatus = err.Error()
		}
	}

	return c.JSON(fiber.Map{
		"status":      "ok",
		"service":     "kitchencopilot",
		"database":    dbStatus,
		"weather_api": weatherStatus,
	})
}

// prepareRequest holds the forecast window the user picked.
type prepareRequest struct {
	StartDate string `json:"start_date" validate:"required"`
	Days      int    `json:"days" validate:"required,min=1,max=7"`
}

func (h *handlers) prepare(c *fiber.Ctx) error {
	var req prepareRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "start_date must be YYYY-MM-DD")
	}

	rows, err := h.deps.Builder.Build(c.Context(), start, req.Days)
	if err != nil {
		if errors.Is(err, forecast.ErrDataUnavailable) {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to prepare forecast")
	}

	return c.JSON(fiber.Map{"rows": rows})
}

// predictRequest carries prepared rows back with capacities (and optional
// overrides) filled in.
type predictRequest struct {
	Rows []forecast.Row `json:"rows" validate:"required,min=1,max=7"`
}

func (h *handlers) predictAndSave(c *fiber.Ctx) error {
	var req predictRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	predicted, err := h.deps.Engine.Predict(c.Context(), req.Rows)
	if err != nil {
		switch {
		case errors.Is(err, predict.ErrMissingCapacity):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, model.ErrModelUnavailable), errors.Is(err, model.ErrSchemaMismatch):
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		default:
			return fiber.NewError(fiber.StatusInternalServerError, "prediction failed")
		}
	}

	// Persistence failures are part of the result, not an HTTP error.
	result := h.deps.Store.AppendPredictions(c.Context(), predicted)

	return c.JSON(fiber.Map{
		"saved":   result.OK,
		"rows":    result.Rows,
		"message": result.Message,
		"data":    predicted,
	})
}

func (h *handlers) currentPredictions(c *fiber.Ctx) error {
	batch, err := h.deps.Store.LatestBatch(c.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "no predictions recorded yet")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load predictions")
	}

	return c.JSON(fiber.Map{
		"rows":    batch,
		"summary": summarize(batch),
	})
}

type batchSummary struct {
	TotalPredicted    int     `json:"total_predicted"`
	DailyAverage      float64 `json:"daily_average"`
	PeakDate          string  `json:"peak_date"`
	PeakMeals         int     `json:"peak_meals"`
	AvgUtilizationPct float64 `json:"avg_utilization_pct"`
}

func summarize(batch []store.PredictionRecord) batchSummary {
	var s batchSummary
	if len(batch) == 0 {
		return s
	}

	var utilSum float64
	var utilDays int
	for _, rec := range batch {
		s.TotalPredicted += rec.FinalPrediction
		if rec.FinalPrediction > s.PeakMeals {
			s.PeakMeals = rec.FinalPrediction
			s.PeakDate = rec.Date.Format(dateLayout)
		}
		if rec.ExpectedCapacity != nil && *rec.ExpectedCapacity > 0 {
			utilSum += float64(rec.FinalPrediction) / float64(*rec.ExpectedCapacity)
			utilDays++
		}
	}

	s.DailyAverage = float64(s.TotalPredicted) / float64(len(batch))
	if utilDays > 0 {
		s.AvgUtilizationPct = utilSum / float64(utilDays) * 100
	}
	return s
}

func (h *handlers) metricsReport(c *fiber.Ctx) error {
	from, err := time.Parse(dateLayout, c.Query("from"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "from must be YYYY-MM-DD")
	}
	to, err := time.Parse(dateLayout, c.Query("to"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "to must be YYYY-MM-DD")
	}
	if to.Before(from) {
		return fiber.NewError(fiber.StatusBadRequest, "to must not precede from")
	}

	pairs, err := h.deps.Store.ActualsJoin(c.Context(), from, to)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load comparison data")
	}

	prevStart, prevEnd := metrics.PreviousPeriod(from, to)
	prevPairs, err := h.deps.Store.ActualsJoin(c.Context(), prevStart, prevEnd)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load comparison data")
	}

	report, err := metrics.BuildReport(pairs, prevPairs, h.deps.Tolerance)
	if err != nil {
		if errors.Is(err, metrics.ErrNoPairs) {
			return fiber.NewError(fiber.StatusNotFound, "no matched predictions and actuals in range")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to compute metrics")
	}

	resp := fiber.Map{"report": report}

	if c.QueryBool("insights") && h.deps.Insights.Enabled() {
		reviewed, err := h.deps.Insights.Review(c.Context(), report.Daily)
		if err != nil {
			// Commentary is best-effort; the metrics still stand.
			log.Printf("insights review failed: %v", err)
		} else {
			resp["insights"] = reviewed
		}
	}

	return c.JSON(resp)
}

func (h *handlers) importActuals(c *fiber.Ctx) error {
	records, err := readCSVUpload(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	sales := make([]store.ActualSale, 0, len(records))
	for i, rec := range records {
		if len(rec) < 2 {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("line %d: want date,actual_meals", i+1))
		}
		date, err := time.Parse(dateLayout, strings.TrimSpace(rec[0]))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("line %d: invalid date %q", i+1, rec[0]))
		}
		meals, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil || meals < 0 {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("line %d: invalid meal count %q", i+1, rec[1]))
		}
		sales = append(sales, store.ActualSale{Date: date, ActualMeals: meals})
	}

	n, err := h.deps.Store.ImportActuals(c.Context(), sales)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to import actuals")
	}
	return c.JSON(fiber.Map{"imported": n})
}

func (h *handlers) importHolidays(c *fiber.Ctx) error {
	records, err := readCSVUpload(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	days := make([]holiday.Day, 0, len(records))
	for i, rec := range records {
		if len(rec) < 5 {
			return fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("line %d: want date,description,is_bank_holiday,is_semester_break,is_bridge_day", i+1))
		}
		date, err := time.Parse(dateLayout, strings.TrimSpace(rec[0]))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("line %d: invalid date %q", i+1, rec[0]))
		}
		flags := make([]bool, 3)
		for j := 0; j < 3; j++ {
			b, err := strconv.ParseBool(strings.TrimSpace(rec[2+j]))
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("line %d: invalid flag %q", i+1, rec[2+j]))
			}
			flags[j] = b
		}
		days = append(days, holiday.Day{
			Date:            date,
			Description:     strings.TrimSpace(rec[1]),
			IsBankHoliday:   flags[0],
			IsSemesterBreak: flags[1],
			IsBridgeDay:     flags[2],
		})
	}

	n, err := h.deps.Store.ImportHolidays(c.Context(), days)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to import holidays")
	}
	return c.JSON(fiber.Map{"imported": n})
}

// readCSVUpload reads the uploaded "file" form field and returns its data
// records, skipping a header line when the first cell is not a date.
func readCSVUpload(c *fiber.Ctx) ([][]string, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, errors.New("multipart field 'file' is required")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		if len(records) == 0 && len(rec) > 0 {
			if _, err := time.Parse(dateLayout, strings.TrimSpace(rec[0])); err != nil {
				// Header line.
				continue
			}
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, errors.New("no data rows in upload")
	}
	return records, nil
}
