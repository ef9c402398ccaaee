package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/glucolumin/glucolumin/internal/httputil"
	"github.com/glucolumin/glucolumin/internal/monitoring"
	"github.com/glucolumin/glucolumin/internal/version"
	"github.com/glucolumin/glucolumin/internal/visit"
)

// Ingest quality-gate thresholds, carried over from prototype
// experience with the optical sensor: a saturated or flatlined payload
// means no finger on the sensor; a near-zero mean means a floating
// input.
const (
	rejectMeanAbove = 500.0
	rejectMeanBelow = 5.0
	rejectStdBelow  = 0.01
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		httputil.NotFound(w, "not found")
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"message": "GlucoLumin backend is running",
		"status":  "active",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "connected"
	if err := s.db.Ping(ctx); err != nil {
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":       "healthy",
		"version":      version.Version,
		"database":     dbStatus,
		"model_loaded": s.modelLoaded,
		"uptime_secs":  int(time.Since(s.started).Seconds()),
		"timestamp":    time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var reg visit.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid registration payload: %v", err))
		return
	}

	p, err := s.manager.Register(r.Context(), reg)
	switch {
	case errors.Is(err, visit.ErrValidation):
		httputil.BadRequest(w, err.Error())
		return
	case errors.Is(err, visit.ErrDuplicateVisit):
		httputil.Conflict(w, err.Error())
		return
	case err != nil:
		httputil.InternalServerError(w, err.Error())
		return
	}

	httputil.WriteJSONOK(w, map[string]string{
		"visit_id": p.VisitID,
		"status":   "registered",
	})
}

// rawUpload is the upload payload: raw_data carries either plain
// comma/newline-separated values or structured
// "<visit_id>,<index>,<value>" lines.
type rawUpload struct {
	VisitID   string `json:"visit_id"`
	RawData   string `json:"raw_data"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (s *Server) handleUploadRaw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var upload rawUpload
	if err := json.NewDecoder(r.Body).Decode(&upload); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid upload payload: %v", err))
		return
	}
	if upload.VisitID == "" {
		httputil.BadRequest(w, "visit_id is required")
		return
	}

	samples, err := parseRawPayload(upload.VisitID, upload.RawData)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if flag := qualityGate(samples); flag != "" {
		monitoring.Logf("[%s] rejecting scan: %s", upload.VisitID, flag)
		value := 0.0
		if len(samples) > 0 {
			value = mean(samples)
		}
		if err := s.manager.FailVisit(r.Context(), upload.VisitID, flag, value); err != nil {
			s.writeVisitError(w, err)
			return
		}
		httputil.WriteJSONOK(w, map[string]string{"status": "error", "message": flag})
		return
	}

	if err := s.manager.Append(r.Context(), upload.VisitID, samples); err != nil {
		s.writeVisitError(w, err)
		return
	}

	// One upload is one complete scan: deliver the end-of-scan marker.
	// The pipeline runs asynchronously; callers poll get_result.
	if err := s.manager.EndScan(r.Context(), upload.VisitID); err != nil {
		s.writeVisitError(w, err)
		return
	}

	httputil.WriteJSONOK(w, map[string]string{
		"status":   "processing",
		"visit_id": upload.VisitID,
	})
}

// invalidScanReport is a client-side rejection (sensor app refused a
// scan before upload) recorded on the same audit trail as server-side
// quality-gate rejections.
type invalidScanReport struct {
	VisitID      string `json:"visit_id"`
	ErrorMessage string `json:"error_message"`
	Timestamp    string `json:"timestamp,omitempty"`
}

func (s *Server) handleUploadInvalidScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var report invalidScanReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid report payload: %v", err))
		return
	}
	if report.VisitID == "" {
		httputil.BadRequest(w, "visit_id is required")
		return
	}
	if report.ErrorMessage == "" {
		report.ErrorMessage = "Unknown error"
	}

	// Client reports carry no sensor reading, so the value is zero.
	if err := s.db.LogInvalidScan(r.Context(), report.VisitID, report.ErrorMessage, 0); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"status":  "logged",
		"message": "Invalid scan recorded for audit",
	})
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	visitID := strings.TrimPrefix(r.URL.Path, "/api/get_result/")
	if visitID == "" || strings.Contains(visitID, "/") {
		httputil.BadRequest(w, "visit id missing from path")
		return
	}

	snap, err := s.manager.Status(r.Context(), visitID)
	if err != nil {
		s.writeVisitError(w, err)
		return
	}

	switch snap.Status {
	case visit.StatusDone:
		httputil.WriteJSONOK(w, map[string]interface{}{
			"visit_id":       snap.VisitID,
			"status":         string(snap.Status),
			"glucose":        snap.Result.GlucoseMgDl,
			"classification": string(snap.Result.Classification),
			"diet_advice":    snap.Result.DietAdvice,
			"timestamp":      snap.Result.ComputedAt.Format(time.RFC3339),
		})
	case visit.StatusFailed:
		httputil.WriteJSONOK(w, map[string]interface{}{
			"visit_id": snap.VisitID,
			"status":   string(snap.Status),
			"message":  snap.FailureReason,
		})
	default:
		httputil.WriteJSONOK(w, map[string]interface{}{
			"visit_id": snap.VisitID,
			"status":   string(snap.Status),
		})
	}
}

func (s *Server) writeVisitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, visit.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, visit.ErrValidation):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, visit.ErrTerminalState):
		httputil.Conflict(w, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

// parseRawPayload tolerantly parses the upload body. Tokens that fail to
// parse (sensor chatter like "No finger?") are skipped; structured
// "<visit_id>,<index>,<value>" lines are accepted when the visit id
// matches, and the remaining numeric tokens are indexed in arrival
// order.
func parseRawPayload(visitID, raw string) ([]visit.Sample, error) {
	lines := strings.FieldsFunc(raw, func(r rune) bool { return r == '\n' || r == ';' })

	var samples []visit.Sample
	next := 0
	for _, line := range lines {
		fields := strings.Split(line, ",")

		// Structured record: "<visit_id>,<index>,<value>". A record for
		// a different visit id is a hard error, not chatter.
		if len(fields) == 3 {
			id := strings.TrimSpace(fields[0])
			idx, idxErr := strconv.Atoi(strings.TrimSpace(fields[1]))
			val, valErr := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
			if idxErr == nil && valErr == nil && !isNumeric(id) {
				if id != visitID {
					return nil, fmt.Errorf("raw data references a different visit: %q", id)
				}
				samples = append(samples, visit.Sample{Index: idx, Value: val})
				if idx >= next {
					next = idx + 1
				}
				continue
			}
		}

		for _, token := range fields {
			token = strings.TrimSpace(strings.ReplaceAll(token, "\x00", ""))
			if token == "" {
				continue
			}
			v, err := strconv.ParseFloat(token, 64)
			if err != nil {
				continue
			}
			samples = append(samples, visit.Sample{Index: next, Value: v})
			next++
		}
	}
	return samples, nil
}

// qualityGate returns a rejection flag for payloads that cannot be a
// real scan, or "" when the payload passes.
func qualityGate(samples []visit.Sample) string {
	if len(samples) == 0 {
		return "NO_NUMERIC_DATA"
	}
	m := mean(samples)
	sd := stddev(samples, m)
	switch {
	case m > rejectMeanAbove || sd < rejectStdBelow:
		return "NO_FINGER_DETECTED"
	case m < rejectMeanBelow:
		return "SENSOR_ERROR"
	}
	return ""
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func mean(samples []visit.Sample) float64 {
	var sum float64
	for _, s := range samples {
		sum += s.Value
	}
	return sum / float64(len(samples))
}

func stddev(samples []visit.Sample, mean float64) float64 {
	var sum float64
	for _, s := range samples {
		d := s.Value - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(samples)))
}
