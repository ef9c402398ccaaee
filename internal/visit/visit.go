// Package visit owns the lifecycle of one measurement visit: patient
// registration, raw-sample collection, triggering the prediction
// pipeline exactly once, and answering status polls.
package visit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/glucolumin/glucolumin/internal/model"
)

// Errors surfaced by the session layer.
var (
	// ErrValidation marks malformed registration fields. Rejected at the
	// boundary; visit state is never affected.
	ErrValidation = errors.New("validation error")

	// ErrDuplicateVisit marks a visit-id collision on registration.
	ErrDuplicateVisit = errors.New("duplicate visit")

	// ErrNotFound marks a query for an unknown visit id.
	ErrNotFound = errors.New("visit not found")

	// ErrProcessingTimeout marks a pipeline run that exceeded its time
	// budget.
	ErrProcessingTimeout = errors.New("processing timeout")

	// ErrTerminalState marks sample ingestion or reprocessing attempts
	// against a visit already in DONE or FAILED.
	ErrTerminalState = errors.New("visit in terminal state")
)

// Status is the session state of a visit.
type Status string

const (
	StatusRegistered Status = "REGISTERED"
	StatusCollecting Status = "COLLECTING"
	StatusProcessing Status = "PROCESSING"
	StatusDone       Status = "DONE"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Registration is the explicit request payload for a new visit. Every
// recognised field is enumerated here; validation happens at this
// boundary.
type Registration struct {
	PatientName           string  `json:"patient_name"`
	PatientAge            int     `json:"patient_age"`
	Gender                string  `json:"gender"`
	HeightCM              float64 `json:"height_cm"`
	WeightKG              float64 `json:"weight_kg"`
	SkinTone              string  `json:"skin_tone"`
	BloodPressure         string  `json:"blood_pressure"`
	HadFood               string  `json:"had_food"`
	FamilyDiabeticHistory string  `json:"family_diabetic_history"`
}

// Validate checks every registration field.
func (r *Registration) Validate() error {
	if strings.TrimSpace(r.PatientName) == "" {
		return fmt.Errorf("%w: patient_name is required", ErrValidation)
	}
	if r.PatientAge <= 0 || r.PatientAge > 130 {
		return fmt.Errorf("%w: patient_age %d out of range", ErrValidation, r.PatientAge)
	}
	if r.HeightCM <= 0 {
		return fmt.Errorf("%w: height_cm must be positive", ErrValidation)
	}
	if r.WeightKG <= 0 {
		return fmt.Errorf("%w: weight_kg must be positive", ErrValidation)
	}
	if _, _, err := model.ParseBloodPressure(r.BloodPressure); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	validTone := false
	for _, tone := range model.SkinTones() {
		if r.SkinTone == tone {
			validTone = true
			break
		}
	}
	if !validTone {
		return fmt.Errorf("%w: unknown skin_tone %q", ErrValidation, r.SkinTone)
	}
	if !yesNo(r.HadFood) {
		return fmt.Errorf("%w: had_food must be yes or no", ErrValidation)
	}
	if !yesNo(r.FamilyDiabeticHistory) {
		return fmt.Errorf("%w: family_diabetic_history must be yes or no", ErrValidation)
	}
	return nil
}

func yesNo(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "no", "true", "false":
		return true
	}
	return false
}

// Patient is the immutable snapshot taken at registration.
type Patient struct {
	VisitID               string    `json:"visit_id"`
	PatientID             string    `json:"patient_id"`
	Name                  string    `json:"name"`
	Age                   int       `json:"age"`
	Sex                   string    `json:"sex"`
	HeightCM              float64   `json:"height_cm"`
	WeightKG              float64   `json:"weight_kg"`
	BMI                   float64   `json:"bmi"`
	SkinTone              string    `json:"skin_tone"`
	BloodPressure         string    `json:"blood_pressure"`
	HadFood               string    `json:"had_food"`
	FamilyDiabeticHistory string    `json:"family_diabetic_history"`
	CreatedAt             time.Time `json:"created_at"`
}

// Sample is one raw sensor reading.
type Sample struct {
	Index int     `json:"sample_index"`
	Value float64 `json:"signal_value"`
}

// PredictionResult is the finished record for one visit. Immutable once
// written.
type PredictionResult struct {
	VisitID        string               `json:"visit_id"`
	PatientID      string               `json:"patient_id"`
	GlucoseMgDl    float64              `json:"glucose_mg_dl"`
	Classification model.Classification `json:"classification"`
	DietAdvice     string               `json:"diet_advice"`
	ComputedAt     time.Time            `json:"computed_at"`
}

// Snapshot is the poll view of a visit: current status plus the result
// once DONE or the failure reason once FAILED.
type Snapshot struct {
	VisitID       string
	Status        Status
	FailureReason string
	Result        *PredictionResult
}

// NewVisitID builds a visit identifier: V<date> plus a random suffix,
// unique across the process lifetime.
func NewVisitID(now time.Time) string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("V%s_%s", now.Format("20060102"), strings.ToUpper(hex[:6]))
}
