package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type HealthResponse struct {
	Status     HealthStatus          `json:"status"`
	CheckedAt  time.Time             `json:"checked_at"`
	Components map[string]CheckEntry `json:"components"`
}

type CheckEntry struct {
	Status     HealthStatus `json:"status"`
	Message    string       `json:"message,omitempty"`
	CheckedAt  time.Time    `json:"checked_at"`
	DurationMs int64        `json:"duration_ms"`
}

// Pinger is anything the readiness probe can reach, *sql.DB included.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	components map[string]Pinger
	timeout    time.Duration
}

func NewHealthHandler(db *sql.DB) *HealthHandler {
	h := &HealthHandler{components: make(map[string]Pinger), timeout: 2 * time.Second}
	if db != nil {
		h.components["postgres"] = db
	}
	return h
}

// WithComponent adds another dependency to the readiness check.
func (h *HealthHandler) WithComponent(name string, p Pinger) *HealthHandler {
	h.components[name] = p
	return h
}

// pingHandler is the liveness probe.
func (h *HealthHandler) pingHandler(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, map[string]string{"status": "OK"})
}

// healthCheckHandler is the readiness probe; any failing component makes the
// whole service unhealthy.
func (h *HealthHandler) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.components))
	for name := range h.components {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{
		Status:     HealthHealthy,
		Components: make(map[string]CheckEntry, len(names)),
	}
	for _, name := range names {
		start := time.Now()
		err := h.components[name].PingContext(ctx)
		entry := CheckEntry{
			Status:     HealthHealthy,
			CheckedAt:  time.Now(),
			DurationMs: time.Since(start).Milliseconds(),
		}
		if err != nil {
			entry.Status = HealthUnhealthy
			entry.Message = err.Error()
			resp.Status = HealthUnhealthy
		}
		resp.Components[name] = entry
	}
	resp.CheckedAt = time.Now()

	statusCode := http.StatusOK
	if resp.Status == HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeHealth(w, statusCode, resp)
}

func writeHealth(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
