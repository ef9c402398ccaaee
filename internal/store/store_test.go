package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/glucolumin/glucolumin/internal/signal"
	"github.com/glucolumin/glucolumin/internal/visit"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "scans.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testPatient(visitID string) *visit.Patient {
	return &visit.Patient{
		VisitID:               visitID,
		PatientID:             "P-a1b2c3d4",
		Name:                  "Asha Rao",
		Age:                   35,
		Sex:                   "Female",
		HeightCM:              165,
		WeightKG:              60,
		BMI:                   22.04,
		SkinTone:              "Medium",
		BloodPressure:         "120/80",
		HadFood:               "No",
		FamilyDiabeticHistory: "Yes",
		CreatedAt:             time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC),
	}
}

func TestPatientRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	p := testPatient("V20260829_AAAAAA")

	if err := s.SavePatient(ctx, p); err != nil {
		t.Fatalf("SavePatient: %v", err)
	}

	got, err := s.Patient(ctx, p.VisitID)
	if err != nil {
		t.Fatalf("Patient: %v", err)
	}
	if got.PatientID != p.PatientID || got.Name != p.Name || got.BMI != p.BMI ||
		got.SkinTone != p.SkinTone || got.BloodPressure != p.BloodPressure {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, p)
	}

	// The visit id is the primary key.
	if err := s.SavePatient(ctx, p); err == nil {
		t.Error("second insert with the same visit id should fail")
	}
}

func TestPatientNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.Patient(context.Background(), "V20260829_ZZZZZZ")
	if !errors.Is(err, visit.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStatusTransitions(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	p := testPatient("V20260829_BBBBBB")
	if err := s.SavePatient(ctx, p); err != nil {
		t.Fatal(err)
	}

	status, _, err := s.VisitStatus(ctx, p.VisitID)
	if err != nil {
		t.Fatalf("VisitStatus: %v", err)
	}
	if status != visit.StatusRegistered {
		t.Errorf("initial status = %s", status)
	}

	if err := s.SetStatus(ctx, p.VisitID, visit.StatusFailed, "SENSOR_ERROR"); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	status, reason, err := s.VisitStatus(ctx, p.VisitID)
	if err != nil {
		t.Fatal(err)
	}
	if status != visit.StatusFailed || reason != "SENSOR_ERROR" {
		t.Errorf("got %s/%q", status, reason)
	}

	if err := s.SetStatus(ctx, "V20260829_ZZZZZZ", visit.StatusDone, ""); !errors.Is(err, visit.ErrNotFound) {
		t.Errorf("status update for unknown visit: err = %v, want ErrNotFound", err)
	}
}

func TestRawSampleLog(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	visitID := "V20260829_CCCCCC"

	first := []visit.Sample{{Index: 0, Value: 94.1}, {Index: 1, Value: 94.3}}
	second := []visit.Sample{{Index: 2, Value: 94.7}}
	if err := s.AppendRawSamples(ctx, visitID, first); err != nil {
		t.Fatalf("AppendRawSamples: %v", err)
	}
	if err := s.AppendRawSamples(ctx, visitID, second); err != nil {
		t.Fatalf("AppendRawSamples: %v", err)
	}
	if err := s.AppendRawSamples(ctx, visitID, nil); err != nil {
		t.Fatalf("empty append should be a no-op, got %v", err)
	}

	samples, err := s.RawSamples(ctx, visitID)
	if err != nil {
		t.Fatalf("RawSamples: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("got %d samples, want 3", len(samples))
	}
	for i, smp := range samples {
		if smp.Index != i {
			t.Errorf("sample %d has index %d", i, smp.Index)
		}
	}
	if samples[2].Value != 94.7 {
		t.Errorf("sample 2 value = %v", samples[2].Value)
	}
}

func TestFeatureVectorRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	visitID := "V20260829_DDDDDD"

	values := make([]float64, len(signal.FeatureNames))
	for i := range values {
		values[i] = float64(i) + 0.5
	}
	if err := s.SaveFeatures(ctx, visitID, signal.FeatureNames, values); err != nil {
		t.Fatalf("SaveFeatures: %v", err)
	}

	// Re-saving overwrites rather than duplicates.
	values[0] = 99.9
	if err := s.SaveFeatures(ctx, visitID, signal.FeatureNames, values); err != nil {
		t.Fatalf("SaveFeatures (upsert): %v", err)
	}

	names, got, err := s.Features(ctx, visitID)
	if err != nil {
		t.Fatalf("Features: %v", err)
	}
	if len(names) != len(signal.FeatureNames) {
		t.Fatalf("got %d features, want %d", len(names), len(signal.FeatureNames))
	}
	for i, name := range signal.FeatureNames {
		if names[i] != name {
			t.Errorf("feature %d is %q, want %q", i, names[i], name)
		}
	}
	if got[0] != 99.9 {
		t.Errorf("feature 0 = %v after upsert, want 99.9", got[0])
	}

	if err := s.SaveFeatures(ctx, visitID, signal.FeatureNames, values[:3]); err == nil {
		t.Error("mismatched name/value lengths should be rejected")
	}
}

func TestResultRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	r := &visit.PredictionResult{
		VisitID:        "V20260829_EEEEEE",
		PatientID:      "P-a1b2c3d4",
		GlucoseMgDl:    112.4,
		Classification: "Pre-Diabetic",
		DietAdvice:     "Reduce sugar intake",
		ComputedAt:     time.Date(2026, 8, 29, 10, 31, 0, 0, time.UTC),
	}
	if err := s.SaveResult(ctx, r); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	got, err := s.Result(ctx, r.VisitID)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if got.GlucoseMgDl != r.GlucoseMgDl || got.Classification != r.Classification ||
		got.DietAdvice != r.DietAdvice || got.PatientID != r.PatientID {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, r)
	}
	if !got.ComputedAt.Equal(r.ComputedAt) {
		t.Errorf("computed_at = %v, want %v", got.ComputedAt, r.ComputedAt)
	}

	// One result per visit, immutable once written.
	if err := s.SaveResult(ctx, r); err == nil {
		t.Error("second result for the same visit should fail")
	}
}

func TestResultNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.Result(context.Background(), "V20260829_ZZZZZZ")
	if !errors.Is(err, visit.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLogInvalidScan(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.LogInvalidScan(ctx, "V20260829_FFFFFF", "NO_FINGER_DETECTED", 612.4); err != nil {
		t.Fatalf("LogInvalidScan: %v", err)
	}

	var reason string
	var value float64
	err := s.QueryRowContext(ctx,
		`SELECT reason, value FROM invalid_scans WHERE visit_id = ?`,
		"V20260829_FFFFFF").Scan(&reason, &value)
	if err != nil {
		t.Fatalf("query invalid_scans: %v", err)
	}
	if reason != "NO_FINGER_DETECTED" || value != 612.4 {
		t.Errorf("got %q/%v", reason, value)
	}
}

func TestOpenCreatesSchemaIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scans.db")
	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := s1.SavePatient(context.Background(), testPatient("V20260829_ABABAB")); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer s2.Close()
	if _, err := s2.Patient(context.Background(), "V20260829_ABABAB"); err != nil {
		t.Errorf("record lost across reopen: %v", err)
	}
}
