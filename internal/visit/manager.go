package visit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glucolumin/glucolumin/internal/model"
	"github.com/glucolumin/glucolumin/internal/monitoring"
	"github.com/glucolumin/glucolumin/internal/timeutil"
)

// ManagerOptions configures the session manager.
type ManagerOptions struct {
	// CollectionWindow bounds how long a visit may sit in COLLECTING
	// after its first sample before processing is forced. Zero disables
	// the timer (an explicit end-of-scan is then required).
	CollectionWindow time.Duration

	// ProcessingTimeout bounds one pipeline run. A run that overruns
	// moves the visit to FAILED with a timeout reason rather than hang.
	ProcessingTimeout time.Duration

	// Clock defaults to the real clock.
	Clock timeutil.Clock
}

// Manager is the visit session state machine. It owns every visit from
// registration until a terminal state, at which point ownership of the
// result record rests with the store.
type Manager struct {
	store  Store
	runner Runner
	opts   ManagerOptions

	mu       sync.RWMutex
	sessions map[string]*session

	wg sync.WaitGroup
}

// session is the in-memory state for one visit. All fields are guarded
// by mu; sample ingestion for different visits never contends.
type session struct {
	mu sync.Mutex

	patient *Patient
	status  Status
	reason  string
	samples []Sample
	result  *PredictionResult

	lastIndex   int
	windowTimer timeutil.Timer
	windowStop  chan struct{}
}

// NewManager wires a session manager over the given store and pipeline
// runner.
func NewManager(store Store, runner Runner, opts ManagerOptions) *Manager {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.ProcessingTimeout <= 0 {
		opts.ProcessingTimeout = 30 * time.Second
	}
	return &Manager{
		store:    store,
		runner:   runner,
		opts:     opts,
		sessions: make(map[string]*session),
	}
}

// Register validates the registration, snapshots the patient, persists
// the record, and returns the new visit in REGISTERED.
func (m *Manager) Register(ctx context.Context, reg Registration) (*Patient, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	now := m.opts.Clock.Now()
	visitID := NewVisitID(now)

	p := &Patient{
		VisitID:               visitID,
		PatientID:             "P-" + uuid.New().String()[:8],
		Name:                  reg.PatientName,
		Age:                   reg.PatientAge,
		Sex:                   reg.Gender,
		HeightCM:              reg.HeightCM,
		WeightKG:              reg.WeightKG,
		SkinTone:              reg.SkinTone,
		BloodPressure:         reg.BloodPressure,
		HadFood:               reg.HadFood,
		FamilyDiabeticHistory: reg.FamilyDiabeticHistory,
		CreatedAt:             now,
	}
	p.BMI = math.Round(model.BMI(reg.HeightCM, reg.WeightKG)*100) / 100

	m.mu.Lock()
	if _, exists := m.sessions[visitID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateVisit, visitID)
	}
	s := &session{patient: p, status: StatusRegistered, lastIndex: -1}
	m.sessions[visitID] = s
	m.mu.Unlock()

	if err := m.store.SavePatient(ctx, p); err != nil {
		m.mu.Lock()
		delete(m.sessions, visitID)
		m.mu.Unlock()
		return nil, fmt.Errorf("persist registration: %w", err)
	}

	monitoring.Logf("[%s] registered patient %s", visitID, p.PatientID)
	return p, nil
}

// Append ingests ordered raw samples for a visit in REGISTERED or
// COLLECTING. The first sample moves the visit to COLLECTING and arms
// the collection-window timer.
func (m *Manager) Append(ctx context.Context, visitID string, samples []Sample) error {
	s, err := m.session(visitID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusRegistered:
		s.status = StatusCollecting
		if m.opts.CollectionWindow > 0 {
			s.windowTimer = m.opts.Clock.NewTimer(m.opts.CollectionWindow)
			s.windowStop = make(chan struct{})
			go m.watchWindow(visitID, s.windowTimer, s.windowStop)
		}
		if err := m.store.SetStatus(ctx, visitID, StatusCollecting, ""); err != nil {
			monitoring.Logf("[%s] failed to persist COLLECTING: %v", visitID, err)
		}
	case StatusCollecting:
		// accepting appends
	default:
		if s.status.Terminal() {
			return fmt.Errorf("%w: %s is %s", ErrTerminalState, visitID, s.status)
		}
		return fmt.Errorf("%w: %s is %s, not collecting", ErrValidation, visitID, s.status)
	}

	// Validate the whole batch before touching session state, so a
	// rejected batch leaves the index watermark where it was.
	last := s.lastIndex
	for _, smp := range samples {
		if smp.Index <= last {
			return fmt.Errorf("%w: sample index %d out of order (last %d)",
				ErrValidation, smp.Index, last)
		}
		last = smp.Index
	}
	s.lastIndex = last
	s.samples = append(s.samples, samples...)

	if err := m.store.AppendRawSamples(ctx, visitID, samples); err != nil {
		return fmt.Errorf("persist raw samples: %w", err)
	}
	return nil
}

// EndScan delivers the end-of-scan marker: the sample series becomes
// immutable and the pipeline is triggered asynchronously. Exactly one
// pipeline run ever starts per visit; duplicate or concurrent calls are
// no-ops once processing has begun.
func (m *Manager) EndScan(ctx context.Context, visitID string) error {
	s, err := m.session(visitID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.status == StatusProcessing || s.status.Terminal() {
		s.mu.Unlock()
		return nil
	}
	if s.windowTimer != nil {
		s.windowTimer.Stop()
		close(s.windowStop)
		s.windowTimer = nil
	}
	s.status = StatusProcessing
	values := make([]float64, len(s.samples))
	for i, smp := range s.samples {
		values[i] = smp.Value
	}
	patient := s.patient
	s.mu.Unlock()

	if err := m.store.SetStatus(ctx, visitID, StatusProcessing, ""); err != nil {
		monitoring.Logf("[%s] failed to persist PROCESSING: %v", visitID, err)
	}

	m.wg.Add(1)
	go m.process(visitID, patient, values, s)
	return nil
}

// FailVisit moves a visit directly to FAILED with the given reason and
// records the rejection on the invalid-scan audit trail. Used by the
// ingest quality gate; terminal visits are left untouched.
func (m *Manager) FailVisit(ctx context.Context, visitID, reason string, value float64) error {
	s, err := m.session(visitID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.status == StatusProcessing || s.status.Terminal() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrTerminalState, visitID, s.status)
	}
	if s.windowTimer != nil {
		s.windowTimer.Stop()
		close(s.windowStop)
		s.windowTimer = nil
	}
	s.status = StatusFailed
	s.reason = reason
	s.mu.Unlock()

	if err := m.store.LogInvalidScan(ctx, visitID, reason, value); err != nil {
		monitoring.Logf("[%s] failed to log invalid scan: %v", visitID, err)
	}
	if err := m.store.SetStatus(ctx, visitID, StatusFailed, reason); err != nil {
		monitoring.Logf("[%s] failed to persist FAILED: %v", visitID, err)
	}
	return nil
}

// Status answers a poll: the current status, plus the result once DONE
// or the failure reason once FAILED. Visits no live session holds are
// looked up in the store, so completed visits stay readable across a
// process restart.
func (m *Manager) Status(ctx context.Context, visitID string) (*Snapshot, error) {
	s, err := m.session(visitID)
	if err == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return &Snapshot{
			VisitID:       visitID,
			Status:        s.status,
			FailureReason: s.reason,
			Result:        s.result,
		}, nil
	}

	status, reason, err := m.store.VisitStatus(ctx, visitID)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{VisitID: visitID, Status: status, FailureReason: reason}
	if status == StatusDone {
		result, err := m.store.Result(ctx, visitID)
		if err != nil {
			return nil, err
		}
		snap.Result = result
	}
	return snap, nil
}

// Close waits for in-flight pipeline runs to settle.
func (m *Manager) Close() {
	m.wg.Wait()
}

func (m *Manager) session(visitID string) (*session, error) {
	m.mu.RLock()
	s, ok := m.sessions[visitID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, visitID)
	}
	return s, nil
}

// watchWindow forces end-of-scan when the collection window elapses
// before an explicit marker arrives. stop releases the goroutine when
// the marker wins.
func (m *Manager) watchWindow(visitID string, timer timeutil.Timer, stop <-chan struct{}) {
	select {
	case <-timer.C():
	case <-stop:
		return
	}
	monitoring.Logf("[%s] collection window elapsed, forcing end of scan", visitID)
	if err := m.EndScan(context.Background(), visitID); err != nil {
		monitoring.Logf("[%s] window-triggered end of scan failed: %v", visitID, err)
	}
}

// process runs the pipeline under the per-visit guard and the
// processing deadline. The result record is persisted before the DONE
// transition becomes observable, so a poller never sees DONE without a
// readable result.
func (m *Manager) process(visitID string, patient *Patient, values []float64, s *session) {
	defer m.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.ProcessingTimeout)
	defer cancel()

	type outcome struct {
		result *PredictionResult
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		r, err := m.runner.Run(ctx, patient, values)
		ch <- outcome{r, err}
	}()

	var result *PredictionResult
	select {
	case o := <-ch:
		if o.err != nil {
			m.fail(visitID, s, o.err)
			return
		}
		result = o.result
	case <-ctx.Done():
		m.fail(visitID, s, fmt.Errorf("%w: exceeded %s",
			ErrProcessingTimeout, m.opts.ProcessingTimeout))
		return
	}

	result.ComputedAt = m.opts.Clock.Now()

	storeCtx, storeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer storeCancel()
	if err := m.store.SaveResult(storeCtx, result); err != nil {
		m.fail(visitID, s, fmt.Errorf("persist result: %w", err))
		return
	}
	if err := m.store.SetStatus(storeCtx, visitID, StatusDone, ""); err != nil {
		monitoring.Logf("[%s] failed to persist DONE: %v", visitID, err)
	}

	s.mu.Lock()
	s.result = result
	s.status = StatusDone
	s.mu.Unlock()

	monitoring.Logf("[%s] visit complete: %.2f mg/dL %s",
		visitID, result.GlucoseMgDl, result.Classification)
}

func (m *Manager) fail(visitID string, s *session, cause error) {
	s.mu.Lock()
	s.status = StatusFailed
	s.reason = cause.Error()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.store.SetStatus(ctx, visitID, StatusFailed, cause.Error()); err != nil {
		monitoring.Logf("[%s] failed to persist FAILED: %v", visitID, err)
	}
	monitoring.Logf("[%s] visit failed: %v", visitID, cause)
}

