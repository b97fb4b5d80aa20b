package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Health status constants for health check responses.
const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
	healthStatusQueueFull    = "queue full"
)

// QueueStats is the dispatcher state reported by health endpoints.
type QueueStats interface {
	Pending() int
	Capacity() int
	Processed() (total, failed int64)
	LastError() error
}

// HealthChecker provides health check endpoints for Kubernetes probes.
type HealthChecker struct {
	ready        atomic.Bool
	shuttingDown atomic.Bool
	queue        QueueStats
	startTime    time.Time
}

// NewHealthChecker creates a new HealthChecker. queue may be nil.
func NewHealthChecker(queue QueueStats) *HealthChecker {
	h := &HealthChecker{
		queue:     queue,
		startTime: time.Now(),
	}
	// Server starts as ready by default
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// SetShuttingDown marks the server as draining; readiness fails from then on.
func (h *HealthChecker) SetShuttingDown() {
	h.shuttingDown.Store(true)
}

func (h *HealthChecker) queueFull() bool {
	return h.queue != nil && h.queue.Pending() >= h.queue.Capacity()
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse provides comprehensive health information.
type DetailedHealthResponse struct {
	Status        string `json:"status"`
	Uptime        string `json:"uptime"`
	QueuePending  int    `json:"queue_pending"`
	QueueCapacity int    `json:"queue_capacity"`
	JobsProcessed int64  `json:"jobs_processed"`
	JobsFailed    int64  `json:"jobs_failed"`
	LastJobError  string `json:"last_job_error,omitempty"`
}

// LivenessHandler returns an HTTP handler for the /healthz endpoint.
// Liveness probes indicate whether the process should be restarted.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler returns an HTTP handler for the /readyz endpoint.
// A full dispatch queue makes the server unready so that load balancers
// stop sending notifications it would reject anyway.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		checks := make(map[string]string)
		allOk := true

		if !h.ready.Load() {
			checks["ready"] = healthStatusNotReady
			allOk = false
		} else {
			checks["ready"] = healthStatusOK
		}

		if h.shuttingDown.Load() {
			checks["shutdown"] = healthStatusShuttingDown
			allOk = false
		} else {
			checks["shutdown"] = healthStatusOK
		}

		if h.queueFull() {
			checks["queue"] = healthStatusQueueFull
			allOk = false
		} else {
			checks["queue"] = healthStatusOK
		}

		response := HealthResponse{Checks: checks}
		if allOk {
			response.Status = healthStatusOK
			w.WriteHeader(http.StatusOK)
		} else {
			response.Status = healthStatusNotReady
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		_ = json.NewEncoder(w).Encode(response)
	})
}

// RegisterHealthEndpoints registers health check endpoints on the given mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

// DetailedHealthHandler returns an HTTP handler for the /healthz/detailed endpoint.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		response := DetailedHealthResponse{
			Status: healthStatusOK,
			Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
		}
		if h.queue != nil {
			response.QueuePending = h.queue.Pending()
			response.QueueCapacity = h.queue.Capacity()
			response.JobsProcessed, response.JobsFailed = h.queue.Processed()
			if err := h.queue.LastError(); err != nil {
				response.LastJobError = err.Error()
			}
		}

		switch {
		case !h.ready.Load():
			response.Status = healthStatusNotReady
			w.WriteHeader(http.StatusServiceUnavailable)
		case h.shuttingDown.Load():
			response.Status = healthStatusShuttingDown
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(response)
	})
}
