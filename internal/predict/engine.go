// Package predict turns a prepared feature table into persisted-ready meal
// predictions.
package predict

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/kitchencopilot/backend/internal/forecast"
	"github.com/kitchencopilot/backend/internal/model"
)

// ErrMissingCapacity is returned when any row in a batch lacks its
// user-supplied expected capacity. The batch is rejected before any model
// work happens.
var ErrMissingCapacity = errors.New("expected capacity missing")

// Engine aligns features to the model schema and runs the batch prediction.
type Engine struct {
	artifact  *model.Artifact
	regressor model.Regressor

	// now is injectable so tests can pin the prediction timestamp.
	now func() time.Time
}

func NewEngine(artifact *model.Artifact, regressor model.Regressor) *Engine {
	return &Engine{
		artifact:  artifact,
		regressor: regressor,
		now:       time.Now,
	}
}

// Predict returns a copy of rows with PredictedMeals, PredictionTimestamp
// and RunID filled in. Row count and order are preserved; every row in the
// batch shares one UTC timestamp and one run id. Predictions are rounded up
// to whole meals and never negative.
func (e *Engine) Predict(ctx context.Context, rows []forecast.Row) ([]forecast.Row, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrMissingCapacity)
	}
	for i, r := range rows {
		if r.ExpectedCapacity == nil {
			return nil, fmt.Errorf("%w: row %d (%s)", ErrMissingCapacity, i, r.Date.Format("2006-01-02"))
		}
	}

	x, err := model.Align(model.Encode(rows), e.artifact.FeatureColumns)
	if err != nil {
		return nil, err
	}

	raw, err := e.regressor.Predict(ctx, x)
	if err != nil {
		return nil, err
	}
	if len(raw) != len(rows) {
		return nil, fmt.Errorf("%w: %d predictions for %d rows", model.ErrSchemaMismatch, len(raw), len(rows))
	}

	ts := e.now().UTC()
	runID := uuid.NewString()

	out := make([]forecast.Row, len(rows))
	for i, r := range rows {
		r.PredictedMeals = ceilMeals(raw[i])
		r.PredictionTimestamp = ts
		r.RunID = runID
		out[i] = r
	}

	return out, nil
}

// ceilMeals rounds a raw model output up to the next whole meal. Rounding
// down risks shortage; a negative output clamps to zero.
func ceilMeals(v float64) int {
	n := int(math.Ceil(v))
	if n < 0 {
		return 0
	}
	return n
}
