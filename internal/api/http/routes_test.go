package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/kitchencopilot/backend/internal/forecast"
	"github.com/kitchencopilot/backend/internal/holiday"
	"github.com/kitchencopilot/backend/internal/model"
	"github.com/kitchencopilot/backend/internal/predict"
	"github.com/kitchencopilot/backend/internal/store"
	"github.com/kitchencopilot/backend/internal/weather"
)

type fakeWeather struct{}

func (fakeWeather) FetchDaily(context.Context, time.Time, time.Time, weather.Mode) ([]weather.Day, error) {
	return nil, nil
}

type fakeHolidays struct{}

func (fakeHolidays) Range(context.Context, time.Time, time.Time) ([]holiday.Day, error) {
	return nil, nil
}

// constRegressor predicts the same raw value for every row.
type constRegressor struct {
	value float64
}

func (r constRegressor) Predict(_ context.Context, x *mat.Dense) ([]float64, error) {
	rows, _ := x.Dims()
	out := make([]float64, rows)
	for i := range out {
		out[i] = r.value
	}
	return out, nil
}

func newTestApp(t *testing.T) (*fiber.App, *store.MemoryStore) {
	t.Helper()

	artifact := &model.Artifact{
		ModelType:      "linear_regression",
		FeatureColumns: []string{"expected_capacity", "is_bridge_day"},
	}
	st := store.NewMemoryStore()

	app := fiber.New()
	RegisterRoutes(app, Deps{
		Builder:   forecast.NewBuilder(fakeWeather{}, fakeHolidays{}),
		Engine:    predict.NewEngine(artifact, constRegressor{value: 179.2}),
		Store:     st,
		Tolerance: 0.05,
	})
	return app, st
}

func decodeBody(t *testing.T, resp io.Reader, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	decodeBody(t, resp.Body, &body)
	if body["status"] != "ok" || body["database"] != "ok" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestPrepareValidatesDays(t *testing.T) {
	app, _ := newTestApp(t)

	for _, days := range []int{-1, 0, 8, 30} {
		payload := fmt.Sprintf(`{"start_date":"2025-03-10","days":%d}`, days)
		req := httptest.NewRequest("POST", "/api/v1/forecast/prepare", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Errorf("days=%d: status = %d, want 400", days, resp.StatusCode)
		}
	}
}

func TestPrepareReturnsBusinessDayRows(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest("POST", "/api/v1/forecast/prepare",
		strings.NewReader(`{"start_date":"2025-03-10","days":3}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Rows []forecast.Row `json:"rows"`
	}
	decodeBody(t, resp.Body, &body)
	if len(body.Rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(body.Rows))
	}
	if got := body.Rows[0].Date.Format("2006-01-02"); got != "2025-03-10" {
		t.Errorf("first row date = %s, want 2025-03-10", got)
	}
}

func predictPayload(t *testing.T, capacity *int) string {
	t.Helper()
	rows := []forecast.Row{{
		Date:             time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Weekday:          "Monday",
		Month:            "March",
		ExpectedCapacity: capacity,
	}}
	data, err := json.Marshal(map[string]interface{}{"rows": rows})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return string(data)
}

func TestPredictAndSave(t *testing.T) {
	app, st := newTestApp(t)

	capacity := 200
	req := httptest.NewRequest("POST", "/api/v1/forecast/predict",
		strings.NewReader(predictPayload(t, &capacity)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Saved bool           `json:"saved"`
		Rows  int            `json:"rows"`
		Data  []forecast.Row `json:"data"`
	}
	decodeBody(t, resp.Body, &body)
	if !body.Saved || body.Rows != 1 {
		t.Fatalf("saved=%v rows=%d, want saved with 1 row", body.Saved, body.Rows)
	}
	// Raw 179.2 rounds up.
	if body.Data[0].PredictedMeals != 180 {
		t.Errorf("predicted_meals = %d, want 180", body.Data[0].PredictedMeals)
	}

	batch, err := st.LatestBatch(context.Background())
	if err != nil {
		t.Fatalf("LatestBatch: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("stored %d records, want 1", len(batch))
	}
}

func TestPredictRejectsMissingCapacity(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest("POST", "/api/v1/forecast/predict",
		strings.NewReader(predictPayload(t, nil)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCurrentPredictionsEmpty(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/predictions/current", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCurrentPredictionsSummary(t *testing.T) {
	app, st := newTestApp(t)

	capacity := 200
	ts := time.Now().UTC()
	rows := []forecast.Row{
		{Date: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), ExpectedCapacity: &capacity,
			PredictedMeals: 180, PredictionTimestamp: ts, RunID: "run-1"},
		{Date: time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), ExpectedCapacity: &capacity,
			PredictedMeals: 160, PredictionTimestamp: ts, RunID: "run-1"},
	}
	if res := st.AppendPredictions(context.Background(), rows); !res.OK {
		t.Fatalf("seed append failed: %s", res.Message)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/predictions/current", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Summary batchSummary `json:"summary"`
	}
	decodeBody(t, resp.Body, &body)
	if body.Summary.TotalPredicted != 340 {
		t.Errorf("total = %d, want 340", body.Summary.TotalPredicted)
	}
	if body.Summary.PeakDate != "2025-03-10" || body.Summary.PeakMeals != 180 {
		t.Errorf("peak = %s/%d, want 2025-03-10/180", body.Summary.PeakDate, body.Summary.PeakMeals)
	}
	if body.Summary.DailyAverage != 170 {
		t.Errorf("daily average = %v, want 170", body.Summary.DailyAverage)
	}
	if body.Summary.AvgUtilizationPct != 85 {
		t.Errorf("utilization = %v, want 85", body.Summary.AvgUtilizationPct)
	}
}

func TestMetricsReport(t *testing.T) {
	app, st := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/metrics?from=2025-03-10&to=2025-03-14", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("empty store: status = %d, want 404", resp.StatusCode)
	}

	capacity := 200
	ts := time.Now().UTC()
	st.AppendPredictions(context.Background(), []forecast.Row{
		{Date: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), ExpectedCapacity: &capacity,
			PredictedMeals: 180, PredictionTimestamp: ts, RunID: "run-1"},
	})
	if _, err := st.ImportActuals(context.Background(), []store.ActualSale{
		{Date: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), ActualMeals: 190},
	}); err != nil {
		t.Fatalf("seed actuals: %v", err)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/metrics?from=2025-03-10&to=2025-03-14", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Report struct {
			Current struct {
				MAE          float64 `json:"mae"`
				AccuracyRate float64 `json:"accuracy_rate"`
			} `json:"current"`
		} `json:"report"`
	}
	decodeBody(t, resp.Body, &body)
	if body.Report.Current.MAE != 10 {
		t.Errorf("mae = %v, want 10", body.Report.Current.MAE)
	}
	if body.Report.Current.AccuracyRate != 0 {
		t.Errorf("accuracy_rate = %v, want 0", body.Report.Current.AccuracyRate)
	}
}

func TestMetricsRejectsBadRange(t *testing.T) {
	app, _ := newTestApp(t)

	for _, query := range []string{
		"from=2025-03-14&to=2025-03-10",
		"from=notadate&to=2025-03-10",
		"to=2025-03-10",
	} {
		resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/metrics?"+query, nil))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Errorf("query %q: status = %d, want 400", query, resp.StatusCode)
		}
	}
}

func csvUpload(t *testing.T, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "upload.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func TestImportActuals(t *testing.T) {
	app, st := newTestApp(t)

	body, contentType := csvUpload(t, "date,actual_meals\n2025-03-10,190\n2025-03-11,165\n")
	req := httptest.NewRequest("POST", "/api/v1/actuals/import", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var result map[string]int
	decodeBody(t, resp.Body, &result)
	if result["imported"] != 2 {
		t.Fatalf("imported = %d, want 2", result["imported"])
	}

	pairs, err := st.ActualsJoin(context.Background(),
		time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ActualsJoin: %v", err)
	}
	// No predictions imported yet, so no matched pairs.
	if len(pairs) != 0 {
		t.Fatalf("got %d pairs, want 0", len(pairs))
	}
}

func TestImportActualsRejectsBadRows(t *testing.T) {
	app, _ := newTestApp(t)

	for _, content := range []string{
		"2025-03-10,notanumber\n",
		"13/03/2025,150\n",
		"2025-03-10,-5\n",
	} {
		body, contentType := csvUpload(t, content)
		req := httptest.NewRequest("POST", "/api/v1/actuals/import", body)
		req.Header.Set("Content-Type", contentType)

		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Errorf("content %q: status = %d, want 400", content, resp.StatusCode)
		}
	}
}

func TestImportHolidays(t *testing.T) {
	app, st := newTestApp(t)

	body, contentType := csvUpload(t,
		"date,description,is_bank_holiday,is_semester_break,is_bridge_day\n"+
			"2025-04-18,Good Friday,1,0,0\n"+
			"2025-04-17,Bridge day,0,0,1\n")
	req := httptest.NewRequest("POST", "/api/v1/holidays/import", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	days, err := st.Range(context.Background(),
		time.Date(2025, 4, 17, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 4, 18, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("got %d holidays, want 2", len(days))
	}
}
