package visit

import "context"

// Store is the contract the session state machine uses to persist and
// retrieve durable records. Implementations must serialise writes per
// visit id (the session guard already guarantees callers do) and allow
// unrestricted concurrent reads.
type Store interface {
	// SavePatient persists the registration snapshot. Must fail for a
	// visit id that already exists.
	SavePatient(ctx context.Context, p *Patient) error

	// SetStatus records the session status and, for FAILED, the reason.
	SetStatus(ctx context.Context, visitID string, status Status, reason string) error

	// VisitStatus returns the persisted status and failure reason, or
	// ErrNotFound. Serves polls for visits no process session holds.
	VisitStatus(ctx context.Context, visitID string) (Status, string, error)

	// AppendRawSamples appends to the visit's raw-sample log.
	AppendRawSamples(ctx context.Context, visitID string, samples []Sample) error

	// SaveFeatures records the intermediate feature vector for audit.
	SaveFeatures(ctx context.Context, visitID string, names []string, values []float64) error

	// SaveResult persists the finished record. At most one per visit.
	SaveResult(ctx context.Context, r *PredictionResult) error

	// Result returns the finished record, or ErrNotFound.
	Result(ctx context.Context, visitID string) (*PredictionResult, error)

	// LogInvalidScan records a rejected scan on the audit trail.
	LogInvalidScan(ctx context.Context, visitID, reason string, value float64) error
}
