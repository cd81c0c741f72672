package handler

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker defines an interface for checking service health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// ProviderReporter names the provider a chat request would currently hit.
type ProviderReporter interface {
	ActiveProvider(ctx context.Context) string
}

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	db        HealthChecker
	cache     HealthChecker
	providers ProviderReporter
}

// NewHealthHandler creates a new HealthHandler.
// Pass nil for db or cache if they are not configured.
func NewHealthHandler(db, cache HealthChecker, providers ProviderReporter) *HealthHandler {
	return &HealthHandler{
		db:        db,
		cache:     cache,
		providers: providers,
	}
}

// HealthResponse represents the public health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	AI      string `json:"ai"`
}

// ReadyResponse represents the readiness probe response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health is the public liveness endpoint. It also reports which AI
// provider is currently active - informational only, dispatch does not
// consult it.
//
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "chatrelay",
		AI:      h.providers.ActiveProvider(r.Context()),
	})
}

// Healthz is a bare liveness probe endpoint.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ReadyResponse{Status: "ok"})
}

// Readyz is a readiness probe endpoint.
// It checks all dependencies and returns 200 only if all are healthy.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	healthy := true

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			checks["postgres"] = "error: " + err.Error()
			healthy = false
		} else {
			checks["postgres"] = "ok"
		}
	} else {
		checks["postgres"] = "not configured"
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			checks["redis"] = "error: " + err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	} else {
		checks["redis"] = "not configured"
	}

	status := "ok"
	statusCode := http.StatusOK
	if !healthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, ReadyResponse{
		Status: status,
		Checks: checks,
	})
}
