// Package handler provides HTTP request handlers for the items API.
package handler

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status string `json:"status"`
}

// ProbeHandler serves liveness and readiness probes.
type ProbeHandler struct {
	ready  atomic.Bool
	logger *zap.Logger
}

// NewProbeHandler creates a ProbeHandler that reports not ready until
// SetReady(true) is called.
func NewProbeHandler(logger *zap.Logger) *ProbeHandler {
	return &ProbeHandler{logger: logger}
}

// RegisterRoutes registers the probe routes with the router.
func (p *ProbeHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", p.Health).Methods(http.MethodGet)
	router.HandleFunc("/ready", p.Ready).Methods(http.MethodGet)
}

// SetReady toggles the readiness state.
func (p *ProbeHandler) SetReady(ready bool) {
	p.ready.Store(ready)
}

// Health handles GET /health requests. It always reports healthy.
func (p *ProbeHandler) Health(w http.ResponseWriter, _ *http.Request) {
	p.write(w, http.StatusOK, HealthResponse{Status: "healthy", Version: Version})
}

// Ready handles GET /ready requests.
func (p *ProbeHandler) Ready(w http.ResponseWriter, _ *http.Request) {
	if !p.ready.Load() {
		p.write(w, http.StatusServiceUnavailable, ReadyResponse{Status: "not ready"})
		return
	}
	p.write(w, http.StatusOK, ReadyResponse{Status: "ready"})
}

func (p *ProbeHandler) write(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		p.logger.Debug("failed to encode probe response", zap.Error(err))
	}
}
