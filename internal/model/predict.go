package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/glucolumin/glucolumin/internal/signal"
)

// Predict applies the linear model to the feature vector and covariates:
// a dot product plus intercept, clamped to the artifact's estimate
// bounds, then shifted by the per-tone calibration offset. Pure given
// the artifact.
func (a *Artifact) Predict(features *signal.Features, cov *Covariates) (float64, error) {
	if a == nil {
		return 0, fmt.Errorf("%w: no artifact loaded", ErrModelUnavailable)
	}

	fv := features.Vector()
	cv := cov.Vector()
	if len(fv) != len(a.FeatureNames) || len(cv) != len(a.CovariateNames) {
		return 0, fmt.Errorf("%w: vector length %d+%d does not match artifact %d+%d",
			ErrModelUnavailable, len(fv), len(cv), len(a.FeatureNames), len(a.CovariateNames))
	}

	weights := make([]float64, 0, len(fv)+len(cv))
	for _, name := range a.FeatureNames {
		weights = append(weights, a.Coefficients[name])
	}
	for _, name := range a.CovariateNames {
		weights = append(weights, a.Coefficients[name])
	}

	input := append(append([]float64{}, fv...), cv...)
	estimate := floats.Dot(weights, input) + a.Intercept

	if math.IsNaN(estimate) || math.IsInf(estimate, 0) {
		return 0, fmt.Errorf("%w: non-finite estimate", signal.ErrSignalProcessing)
	}

	estimate = math.Min(a.EstimateClampMax, math.Max(a.EstimateClampMin, estimate))

	offset, ok := a.SkinToneOffsets[cov.SkinToneLabel]
	if !ok {
		return 0, fmt.Errorf("%w: no calibration offset for skin tone %q",
			ErrValidation, cov.SkinToneLabel)
	}
	return estimate + offset, nil
}
