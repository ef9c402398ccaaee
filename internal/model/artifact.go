// Package model implements the calibration and prediction stage: a
// pretrained linear coefficient set is applied to the feature vector and
// patient covariates to produce a glucose estimate, which the advisory
// engine maps to a clinical bucket.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/glucolumin/glucolumin/internal/signal"
)

// ErrModelUnavailable is returned when no usable coefficient artifact can
// be loaded. It is fatal to the visit being processed, never to the
// serving process.
var ErrModelUnavailable = errors.New("model artifact unavailable")

// ErrValidation is returned for malformed or unrecognised covariate
// fields (blood pressure, skin tone).
var ErrValidation = errors.New("validation error")

// CovariateNames is the canonical covariate order appended to the signal
// feature vector.
var CovariateNames = []string{
	"age",
	"sex_male",
	"bmi",
	"bp_systolic",
	"bp_diastolic",
	"skin_tone_encoded",
	"fasting_hours",
}

// Artifact is a pretrained linear model: one weight per feature and
// covariate, an intercept, and an additive calibration offset per skin
// tone. The feature and covariate name lists pin the expected vector
// length and order; any mismatch is an error, never silently padded or
// truncated.
type Artifact struct {
	Version         string             `json:"version"`
	FeatureNames    []string           `json:"feature_names"`
	CovariateNames  []string           `json:"covariate_names"`
	Coefficients    map[string]float64 `json:"coefficients"`
	Intercept       float64            `json:"intercept"`
	SkinToneOffsets map[string]float64 `json:"skin_tone_offsets"`

	// EstimateClampMin/Max bound the raw dot-product output before the
	// skin-tone offset is applied.
	EstimateClampMin float64 `json:"estimate_clamp_min"`
	EstimateClampMax float64 `json:"estimate_clamp_max"`
}

// LoadArtifact reads and validates a coefficient artifact from disk.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrModelUnavailable, path, err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Validate checks the artifact against the canonical feature and
// covariate contracts.
func (a *Artifact) Validate() error {
	if len(a.FeatureNames) != len(signal.FeatureNames) {
		return fmt.Errorf("%w: artifact lists %d features, pipeline produces %d",
			ErrModelUnavailable, len(a.FeatureNames), len(signal.FeatureNames))
	}
	for i, name := range a.FeatureNames {
		if name != signal.FeatureNames[i] {
			return fmt.Errorf("%w: feature %d is %q, expected %q",
				ErrModelUnavailable, i, name, signal.FeatureNames[i])
		}
	}
	if len(a.CovariateNames) != len(CovariateNames) {
		return fmt.Errorf("%w: artifact lists %d covariates, expected %d",
			ErrModelUnavailable, len(a.CovariateNames), len(CovariateNames))
	}
	for i, name := range a.CovariateNames {
		if name != CovariateNames[i] {
			return fmt.Errorf("%w: covariate %d is %q, expected %q",
				ErrModelUnavailable, i, name, CovariateNames[i])
		}
	}
	for _, name := range append(append([]string{}, a.FeatureNames...), a.CovariateNames...) {
		if _, ok := a.Coefficients[name]; !ok {
			return fmt.Errorf("%w: missing coefficient for %q", ErrModelUnavailable, name)
		}
	}
	if len(a.SkinToneOffsets) == 0 {
		return fmt.Errorf("%w: missing skin tone offset table", ErrModelUnavailable)
	}
	if a.EstimateClampMax <= a.EstimateClampMin {
		return fmt.Errorf("%w: invalid estimate clamp [%v, %v]",
			ErrModelUnavailable, a.EstimateClampMin, a.EstimateClampMax)
	}
	return nil
}

// Placeholder returns the v5 placeholder artifact. It tracks the sensor
// signal through the mean feature and applies the BMI and fasting
// adjustments of the calibration data generator; the skin-tone offsets
// are zero pending a clinically validated table.
func Placeholder() *Artifact {
	coeffs := map[string]float64{}
	for _, name := range signal.FeatureNames {
		coeffs[name] = 0
	}
	for _, name := range CovariateNames {
		coeffs[name] = 0
	}
	coeffs["mean"] = 1.0
	coeffs["bmi"] = 0.3
	coeffs["fasting_hours"] = -0.5

	return &Artifact{
		Version:        "glucose_linear_v5",
		FeatureNames:   append([]string{}, signal.FeatureNames...),
		CovariateNames: append([]string{}, CovariateNames...),
		Coefficients:   coeffs,
		// -0.3*22 so a BMI of 22 is glucose-neutral.
		Intercept: -6.6,
		SkinToneOffsets: map[string]float64{
			"Very Fair": 0,
			"Fair":      0,
			"Medium":    0,
			"Dark":      0,
			"Black":     0,
		},
		EstimateClampMin: 40,
		EstimateClampMax: 400,
	}
}

// WriteArtifact serialises an artifact to path as indented JSON.
func WriteArtifact(a *Artifact, path string) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
