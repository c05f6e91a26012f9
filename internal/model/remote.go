package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gonum.org/v1/gonum/mat"
)

// RemoteRegressor bridges to an external model service, for model types
// (random forest and the like) that cannot be evaluated locally. The
// service receives the aligned matrix and returns one prediction per row.
type RemoteRegressor struct {
	serviceURL string
	httpClient *http.Client
}

func NewRemoteRegressor(serviceURL string) *RemoteRegressor {
	return &RemoteRegressor{
		serviceURL: serviceURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Predict implements Regressor.
func (r *RemoteRegressor) Predict(ctx context.Context, x *mat.Dense) ([]float64, error) {
	rows, cols := x.Dims()
	instances := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		instances[i] = make([]float64, cols)
		mat.Row(instances[i], i, x)
	}

	body, err := json.Marshal(map[string]interface{}{"instances": instances})
	if err != nil {
		return nil, fmt.Errorf("model bridge: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/predict", r.serviceURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("model bridge: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: model service unreachable: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: model service returned status %d", ErrModelUnavailable, resp.StatusCode)
	}

	var payload struct {
		Predictions []float64 `json:"predictions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("model bridge: decode response: %w", err)
	}

	if len(payload.Predictions) != rows {
		return nil, fmt.Errorf("%w: service returned %d predictions for %d rows",
			ErrSchemaMismatch, len(payload.Predictions), rows)
	}

	return payload.Predictions, nil
}
