package model

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Regressor abstracts the trained model's batch-predict operation: one
// real-valued prediction per matrix row, in row order.
type Regressor interface {
	Predict(ctx context.Context, x *mat.Dense) ([]float64, error)
}

// Linear evaluates an artifact-supplied linear model locally. The weight
// vector follows the artifact's feature column order.
type Linear struct {
	intercept float64
	weights   *mat.VecDense
	columns   int
}

// NewLinear builds a Linear regressor from an artifact carrying
// coefficients. Columns without a coefficient get weight 0.
func NewLinear(a *Artifact) (*Linear, error) {
	if len(a.Coefficients) == 0 {
		return nil, fmt.Errorf("%w: artifact has no coefficients", ErrModelUnavailable)
	}

	w := make([]float64, len(a.FeatureColumns))
	for i, col := range a.FeatureColumns {
		w[i] = a.Coefficients[col]
	}

	return &Linear{
		intercept: a.Intercept,
		weights:   mat.NewVecDense(len(w), w),
		columns:   len(w),
	}, nil
}

// Predict implements Regressor.
func (l *Linear) Predict(_ context.Context, x *mat.Dense) ([]float64, error) {
	rows, cols := x.Dims()
	if cols != l.columns {
		return nil, fmt.Errorf("%w: matrix has %d columns, model expects %d",
			ErrSchemaMismatch, cols, l.columns)
	}

	var y mat.VecDense
	y.MulVec(x, l.weights)

	out := make([]float64, rows)
	for i := range out {
		out[i] = y.AtVec(i) + l.intercept
	}
	return out, nil
}
