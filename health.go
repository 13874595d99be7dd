// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package chatflow

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// workerReporter is the subset of ConsumerPool the health surface needs.
type workerReporter interface {
	Metrics() []WorkerStatus
	Healthy() bool
}

// HealthServer exposes the consumer's health surface:
//
//	GET /health  → aggregate status plus per-worker counters
//	GET /ready   → 200 only when every worker is healthy, 503 otherwise
//	GET /metrics → Prometheus exposition
type HealthServer struct {
	pool     workerReporter
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewHealthServer builds the health surface. gatherer may be nil to skip
// the /metrics route.
func NewHealthServer(pool workerReporter, gatherer prometheus.Gatherer, logger *zap.Logger) *HealthServer {
	return &HealthServer{
		pool:     pool,
		gatherer: gatherer,
		logger:   orNop(logger),
	}
}

// Handler returns the HTTP handler for the health port.
func (s *HealthServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// healthResponse is the /health body.
type healthResponse struct {
	Status      string         `json:"status"`
	WorkerCount int            `json:"workerCount"`
	Workers     []WorkerStatus `json:"workers"`
}

func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	workers := s.pool.Metrics()

	status := "UP"
	if !s.pool.Healthy() {
		status = "DEGRADED"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:      status,
		WorkerCount: len(workers),
		Workers:     workers,
	})
}

func (s *HealthServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ready := s.pool.Healthy()
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]bool{"ready": ready})
}
