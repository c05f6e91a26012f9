// Package model loads the trained regression artifact and aligns engineered
// features to the fixed column schema it was trained on.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

var (
	// ErrModelUnavailable is returned when the model or its feature-schema
	// artifact cannot be loaded.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrSchemaMismatch is returned when an aligned feature matrix still does
	// not match the column layout the model expects.
	ErrSchemaMismatch = errors.New("feature schema mismatch")
)

// Artifact is the deployment-time model descriptor. FeatureColumns is the
// ordered list of columns the regressor requires; for a locally evaluated
// linear model the coefficients live here too. The core never interprets
// anything beyond these fields.
type Artifact struct {
	ModelType         string             `json:"model_type"`
	TrainingTimestamp time.Time          `json:"training_timestamp"`
	FeatureColumns    []string           `json:"feature_columns"`
	Intercept         float64            `json:"intercept"`
	Coefficients      map[string]float64 `json:"coefficients"`
}

// LoadArtifact reads and validates the artifact JSON at path.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read artifact %s: %v", ErrModelUnavailable, path, err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: parse artifact %s: %v", ErrModelUnavailable, path, err)
	}

	if len(a.FeatureColumns) == 0 {
		return nil, fmt.Errorf("%w: artifact %s has no feature columns", ErrModelUnavailable, path)
	}

	return &a, nil
}
