// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package chatflow

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkerMetrics holds the per-worker counters. Counters are mutated only by
// the owning worker and read concurrently by the health reporter; all fields
// are atomics so no locking is needed on either side. Counters are
// monotonically non-decreasing for the worker's lifetime.
type WorkerMetrics struct {
	workerID string

	processed  atomic.Int64
	duplicates atomic.Int64
	failures   atomic.Int64

	// lastHeartbeat is unix milliseconds of the last loop activity.
	lastHeartbeat atomic.Int64
	healthy       atomic.Bool
}

// NewWorkerMetrics creates metrics for one worker, healthy and freshly
// heartbeaten.
func NewWorkerMetrics(workerID string) *WorkerMetrics {
	m := &WorkerMetrics{workerID: workerID}
	m.healthy.Store(true)
	m.Heartbeat()
	return m
}

// RecordProcessed counts a successfully delivered message and refreshes the
// heartbeat.
func (m *WorkerMetrics) RecordProcessed() {
	m.processed.Add(1)
	m.Heartbeat()
}

// RecordDuplicate counts a duplicate-skip.
func (m *WorkerMetrics) RecordDuplicate() {
	m.duplicates.Add(1)
}

// RecordFailure counts a failed delivery or consume-loop fault.
func (m *WorkerMetrics) RecordFailure() {
	m.failures.Add(1)
}

// Heartbeat refreshes the last-activity timestamp.
func (m *WorkerMetrics) Heartbeat() {
	m.lastHeartbeat.Store(time.Now().UnixMilli())
}

// SetHealthy flips the worker's health flag.
func (m *WorkerMetrics) SetHealthy(healthy bool) {
	m.healthy.Store(healthy)
}

// Healthy reports the worker's health flag.
func (m *WorkerMetrics) Healthy() bool {
	return m.healthy.Load()
}

// WorkerStatus is a point-in-time snapshot of one worker's metrics, shaped
// for the health surface.
type WorkerStatus struct {
	WorkerID              string `json:"workerId"`
	Healthy               bool   `json:"healthy"`
	MessagesProcessed     int64  `json:"messagesProcessed"`
	DuplicatesSkipped     int64  `json:"duplicatesSkipped"`
	Failures              int64  `json:"failures"`
	SecondsSinceHeartbeat int64  `json:"secondsSinceLastHeartbeat"`
}

// Snapshot captures the current counter values.
func (m *WorkerMetrics) Snapshot() WorkerStatus {
	return WorkerStatus{
		WorkerID:              m.workerID,
		Healthy:               m.healthy.Load(),
		MessagesProcessed:     m.processed.Load(),
		DuplicatesSkipped:     m.duplicates.Load(),
		Failures:              m.failures.Load(),
		SecondsSinceHeartbeat: (time.Now().UnixMilli() - m.lastHeartbeat.Load()) / 1000,
	}
}

// PipelineMetrics exports the pipeline's Prometheus metrics. A nil
// *PipelineMetrics is valid and records nothing, so tests and callers that
// do not scrape can skip the registry entirely.
type PipelineMetrics struct {
	processed   *prometheus.CounterVec
	duplicates  *prometheus.CounterVec
	failures    *prometheus.CounterVec
	connections prometheus.Gauge
}

// NewPipelineMetrics registers the pipeline metrics on reg.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatflow_messages_processed_total",
			Help: "Messages delivered and acknowledged, per worker.",
		}, []string{"worker"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatflow_duplicates_skipped_total",
			Help: "Messages skipped as duplicates, per worker.",
		}, []string{"worker"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatflow_delivery_failures_total",
			Help: "Failed deliveries and consume faults, per worker.",
		}, []string{"worker"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatflow_client_connections",
			Help: "Live client WebSocket connections.",
		}),
	}
	reg.MustRegister(m.processed, m.duplicates, m.failures, m.connections)
	return m
}

func (m *PipelineMetrics) recordProcessed(worker string) {
	if m == nil {
		return
	}
	m.processed.WithLabelValues(worker).Inc()
}

func (m *PipelineMetrics) recordDuplicate(worker string) {
	if m == nil {
		return
	}
	m.duplicates.WithLabelValues(worker).Inc()
}

func (m *PipelineMetrics) recordFailure(worker string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(worker).Inc()
}

// SetConnections updates the live-connection gauge.
func (m *PipelineMetrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(n))
}
