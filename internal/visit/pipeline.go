package visit

import (
	"context"
	"fmt"

	"github.com/glucolumin/glucolumin/internal/model"
	"github.com/glucolumin/glucolumin/internal/monitoring"
	"github.com/glucolumin/glucolumin/internal/signal"
)

// Runner executes the signal→prediction→classification pipeline for one
// visit. The session manager invokes it at most once per visit id.
type Runner interface {
	Run(ctx context.Context, p *Patient, values []float64) (*PredictionResult, error)
}

// Pipeline is the production Runner: signal conditioning, patient-
// conditioned linear prediction, and threshold classification, with the
// intermediate feature vector persisted for audit.
type Pipeline struct {
	Signal   signal.Config
	Artifact *model.Artifact
	Store    Store
}

// NewPipeline wires the production pipeline. artifact may be nil when no
// coefficient set could be loaded; every run then fails with
// ErrModelUnavailable while the process keeps serving.
func NewPipeline(cfg signal.Config, artifact *model.Artifact, store Store) *Pipeline {
	return &Pipeline{Signal: cfg, Artifact: artifact, Store: store}
}

// Run executes the three pipeline stages for one visit.
func (pl *Pipeline) Run(ctx context.Context, p *Patient, values []float64) (*PredictionResult, error) {
	if pl.Artifact == nil {
		return nil, fmt.Errorf("%w: no coefficient artifact loaded", model.ErrModelUnavailable)
	}

	features, err := signal.Extract(values, pl.Signal)
	if err != nil {
		return nil, fmt.Errorf("signal conditioning: %w", err)
	}

	if pl.Store != nil {
		if err := pl.Store.SaveFeatures(ctx, p.VisitID, signal.FeatureNames, features.Vector()); err != nil {
			// Feature persistence is audit-only; the prediction still counts.
			monitoring.Logf("[%s] failed to persist features: %v", p.VisitID, err)
		}
	}

	cov, err := model.DeriveCovariates(model.CovariateInput{
		Age:           p.Age,
		Sex:           p.Sex,
		HeightCM:      p.HeightCM,
		WeightKG:      p.WeightKG,
		BloodPressure: p.BloodPressure,
		SkinTone:      p.SkinTone,
		HadFood:       p.HadFood,
	})
	if err != nil {
		return nil, fmt.Errorf("covariates: %w", err)
	}

	glucose, err := pl.Artifact.Predict(features, cov)
	if err != nil {
		return nil, fmt.Errorf("prediction: %w", err)
	}

	class, dietAdvice, err := model.Classify(glucose)
	if err != nil {
		return nil, fmt.Errorf("classification: %w", err)
	}

	monitoring.Logf("[%s] pipeline result: %.2f mg/dL (%s)", p.VisitID, glucose, class)

	return &PredictionResult{
		VisitID:        p.VisitID,
		PatientID:      p.PatientID,
		GlucoseMgDl:    glucose,
		Classification: class,
		DietAdvice:     dietAdvice,
	}, nil
}
