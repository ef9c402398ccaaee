package model

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPlaceholderValidates(t *testing.T) {
	if err := Placeholder().Validate(); err != nil {
		t.Fatalf("placeholder artifact failed validation: %v", err)
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	if err := WriteArtifact(Placeholder(), path); err != nil {
		t.Fatalf("WriteArtifact: %v", err)
	}

	loaded, err := LoadArtifact(path)
	if err != nil {
		t.Fatalf("LoadArtifact: %v", err)
	}
	if loaded.Version != "glucose_linear_v5" {
		t.Errorf("version = %q", loaded.Version)
	}
	if loaded.Coefficients["mean"] != 1.0 {
		t.Errorf("mean coefficient = %v, want 1.0", loaded.Coefficients["mean"])
	}
	if loaded.EstimateClampMin != 40 || loaded.EstimateClampMax != 400 {
		t.Errorf("clamp = [%v, %v], want [40, 400]",
			loaded.EstimateClampMin, loaded.EstimateClampMax)
	}
}

func TestLoadArtifactMissingFile(t *testing.T) {
	_, err := LoadArtifact(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("err = %v, want ErrModelUnavailable", err)
	}
}

func TestLoadArtifactMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadArtifact(path)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("err = %v, want ErrModelUnavailable", err)
	}
}

func TestValidateRejectsContractMismatch(t *testing.T) {
	reorder := Placeholder()
	reorder.FeatureNames[0], reorder.FeatureNames[1] = reorder.FeatureNames[1], reorder.FeatureNames[0]
	if err := reorder.Validate(); err == nil {
		t.Error("reordered feature names should fail validation")
	}

	short := Placeholder()
	short.CovariateNames = short.CovariateNames[:3]
	if err := short.Validate(); err == nil {
		t.Error("truncated covariate list should fail validation")
	}

	missing := Placeholder()
	delete(missing.Coefficients, "bmi")
	if err := missing.Validate(); err == nil {
		t.Error("missing coefficient should fail validation")
	}

	badClamp := Placeholder()
	badClamp.EstimateClampMax = badClamp.EstimateClampMin
	if err := badClamp.Validate(); err == nil {
		t.Error("degenerate clamp interval should fail validation")
	}

	noOffsets := Placeholder()
	noOffsets.SkinToneOffsets = nil
	if err := noOffsets.Validate(); err == nil {
		t.Error("missing skin tone offsets should fail validation")
	}
}
