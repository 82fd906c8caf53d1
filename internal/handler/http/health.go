package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"feedrelay/internal/handler/http/respond"
)

// Pinger is satisfied by repository.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerState reports a named circuit breaker for the health body.
type BreakerState interface {
	Name() string
	IsOpen() bool
}

type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

type CheckStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// HealthHandler serves GET /health. The store is the only hard dependency;
// an open breaker degrades the status without failing the probe.
type HealthHandler struct {
	Store    Pinger
	Backend  string
	Version  string
	Breakers []BreakerState
	Logger   *slog.Logger
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]CheckStatus{"database": h.checkStore(ctx)}
	status := statusHealthy
	code := http.StatusOK
	if checks["database"].Status != statusHealthy {
		status = statusUnhealthy
		code = http.StatusServiceUnavailable
	}

	if len(h.Breakers) > 0 {
		c := h.checkBreakers()
		checks["circuit_breakers"] = c
		if c.Status != statusHealthy && status == statusHealthy {
			status = statusDegraded
		}
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respond.JSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	})
}

func (h *HealthHandler) checkStore(ctx context.Context) CheckStatus {
	if h.Store == nil {
		return CheckStatus{Status: statusUnhealthy, Message: "not configured"}
	}
	details := map[string]any{"backend": h.Backend}
	if err := h.Store.Ping(ctx); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("health check: store ping failed", slog.Any("error", err))
		}
		return CheckStatus{Status: statusUnhealthy, Message: "ping failed", Details: details}
	}
	return CheckStatus{Status: statusHealthy, Details: details}
}

func (h *HealthHandler) checkBreakers() CheckStatus {
	details := make(map[string]any, len(h.Breakers))
	status := statusHealthy
	for _, b := range h.Breakers {
		state := "closed"
		if b.IsOpen() {
			state = "open"
			status = statusDegraded
		}
		details[b.Name()] = state
	}
	return CheckStatus{Status: status, Details: details}
}

// ReadyHandler serves GET /health/ready: 200 once the store answers.
type ReadyHandler struct {
	Store Pinger
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.Store == nil || h.Store.Ping(ctx) != nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// LiveHandler serves GET /health/live.
type LiveHandler struct{}

func (LiveHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
