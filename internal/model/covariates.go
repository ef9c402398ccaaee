package model

import (
	"fmt"
	"strconv"
	"strings"
)

// skinToneEncoding maps the enumerated skin tones onto the calibration
// scale used when the coefficient set was fitted.
var skinToneEncoding = map[string]float64{
	"Very Fair": 1,
	"Fair":      2,
	"Medium":    3,
	"Dark":      4,
	"Black":     4,
}

// SkinTones returns the recognised skin tone labels.
func SkinTones() []string {
	return []string{"Very Fair", "Fair", "Medium", "Dark", "Black"}
}

// CovariateInput is the patient snapshot slice the prediction stage
// consumes. The session layer populates it from the registered visit.
type CovariateInput struct {
	Age           int
	Sex           string
	HeightCM      float64
	WeightKG      float64
	BloodPressure string // "systolic/diastolic"
	SkinTone      string
	HadFood       string // yes/no
}

// Covariates is the derived numeric covariate vector, ordered per
// CovariateNames.
type Covariates struct {
	Age         float64
	SexMale     float64
	BMI         float64
	BPSystolic  float64
	BPDiastolic float64
	SkinTone    float64
	// FastingHours is a proxy derived from the food-status flag: a fed
	// patient is treated as 2h fasted, an unfed one as 10h.
	FastingHours float64

	// SkinToneLabel is retained for the additive offset lookup.
	SkinToneLabel string
}

// Vector returns the covariate values in CovariateNames order.
func (c *Covariates) Vector() []float64 {
	return []float64{
		c.Age,
		c.SexMale,
		c.BMI,
		c.BPSystolic,
		c.BPDiastolic,
		c.SkinTone,
		c.FastingHours,
	}
}

// DeriveCovariates converts the patient snapshot into the numeric
// covariate vector: BMI from height/weight, the blood-pressure split,
// the skin-tone encoding, and the fasting proxy.
func DeriveCovariates(in CovariateInput) (*Covariates, error) {
	sys, dia, err := ParseBloodPressure(in.BloodPressure)
	if err != nil {
		return nil, err
	}

	tone, ok := skinToneEncoding[in.SkinTone]
	if !ok {
		return nil, fmt.Errorf("%w: unknown skin tone %q", ErrValidation, in.SkinTone)
	}

	c := &Covariates{
		Age:           float64(in.Age),
		BMI:           BMI(in.HeightCM, in.WeightKG),
		BPSystolic:    float64(sys),
		BPDiastolic:   float64(dia),
		SkinTone:      tone,
		SkinToneLabel: in.SkinTone,
		FastingHours:  10,
	}
	if strings.EqualFold(in.Sex, "Male") {
		c.SexMale = 1
	}
	switch strings.ToLower(in.HadFood) {
	case "yes", "true":
		c.FastingHours = 2
	}
	return c, nil
}

// ParseBloodPressure splits a "systolic/diastolic" string.
func ParseBloodPressure(s string) (sys, dia int, err error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: blood pressure %q is not systolic/diastolic", ErrValidation, s)
	}
	sys, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad systolic in %q", ErrValidation, s)
	}
	dia, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad diastolic in %q", ErrValidation, s)
	}
	if sys <= 0 || dia <= 0 || dia >= sys {
		return 0, 0, fmt.Errorf("%w: implausible blood pressure %q", ErrValidation, s)
	}
	return sys, dia, nil
}

// BMI computes body-mass index from height in centimetres and weight in
// kilograms.
func BMI(heightCM, weightKG float64) float64 {
	if heightCM <= 0 {
		return 0
	}
	h := heightCM / 100
	return weightKG / (h * h)
}
