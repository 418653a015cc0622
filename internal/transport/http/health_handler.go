package http

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	service    LicenseService
	storeProbe func() error
	started    time.Time
}

// NewHealthHandler creates a health handler. storeProbe checks that the
// license snapshot location is writable; nil skips the check.
func NewHealthHandler(service LicenseService, storeProbe func() error) *HealthHandler {
	return &HealthHandler{service: service, storeProbe: storeProbe, started: time.Now()}
}

// HealthResponse is the payload of GET /api/health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Licenses  int    `json:"licenses"`
	Store     string `json:"store"`
	UptimeSec int64  `json:"uptime_seconds"`
	Timestamp string `json:"timestamp"`
}

// Health handles GET /api/health. A store that cannot be written degrades
// the status without failing the request: the process is alive, but every
// mutating operation would fail.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	storeStatus := "writable"
	if h.storeProbe != nil {
		if err := h.storeProbe(); err != nil {
			status = "degraded"
			storeStatus = err.Error()
		}
	}

	resp := HealthResponse{
		Status:    status,
		Version:   Version,
		Licenses:  h.service.Count(r.Context()),
		Store:     storeStatus,
		UptimeSec: int64(time.Since(h.started).Seconds()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if status != "healthy" {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, resp)
}
