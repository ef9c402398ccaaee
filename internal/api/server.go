// Package api exposes the scan lifecycle over HTTP: registration, raw
// uploads, and polling for results. The transport is a thin collaborator
// around the visit session manager; all pipeline semantics live there.
package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/glucolumin/glucolumin/internal/store"
	"github.com/glucolumin/glucolumin/internal/visit"
)

// ANSI escape codes for request logging.
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server routes scan API requests to the session manager.
type Server struct {
	manager *visit.Manager
	db      *store.Store
	// modelLoaded reports at startup whether a coefficient artifact was
	// available; surfaced on /health.
	modelLoaded bool
	started     time.Time
}

// NewServer wires the API over the session manager and store.
func NewServer(manager *visit.Manager, db *store.Store, modelLoaded bool) *Server {
	return &Server{
		manager:     manager,
		db:          db,
		modelLoaded: modelLoaded,
		started:     time.Now(),
	}
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/start_scan", s.handleStartScan)
	mux.HandleFunc("/api/upload_raw", s.handleUploadRaw)
	mux.HandleFunc("/api/upload_invalid_scan", s.handleUploadInvalidScan)
	mux.HandleFunc("/api/get_result/", s.handleGetResult)
	return mux
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}
