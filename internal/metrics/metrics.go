// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the plan pipeline:
// - Ingestion outcomes (accepted per slot, stale rejections)
// - Backup store reads/writes
// - Render and publish attempts
// - Deferred-timer and rollover state transitions
// - HTTP endpoint latency and throughput
// - Publish-sink circuit breaker state

var (
	// Ingestion Metrics
	PlansIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plans_ingested_total",
			Help: "Total number of plans accepted into a slot",
		},
		[]string{"slot"}, // "today", "tomorrow"
	)

	PlansRejectedStale = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plans_rejected_stale_total",
			Help: "Total number of plans rejected because their date is in the past",
		},
	)

	PlanParseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plan_parse_errors_total",
			Help: "Total number of pushed documents that failed to parse",
		},
	)

	// Backup Store Metrics
	BackupWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_writes_total",
			Help: "Total number of backup writes",
		},
		[]string{"slot", "status"}, // status: "ok", "error"
	)

	BackupReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_reads_total",
			Help: "Total number of backup reads",
		},
		[]string{"slot", "status"}, // status: "ok", "miss", "error"
	)

	// Publish Metrics
	PublishAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publish_attempts_total",
			Help: "Total number of publish attempts against the remote sink",
		},
		[]string{"trigger", "status"}, // trigger: "immediate", "deferred"; status: "ok", "render_error", "sink_error"
	)

	PublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "publish_duration_seconds",
			Help:    "Duration of render-and-publish operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Scheduler Metrics
	DeferredTimerArmed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "deferred_timer_armed",
			Help: "Whether a deferred publish timer is currently armed (0 or 1)",
		},
	)

	DeferredTimerCancellations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deferred_timer_cancellations_total",
			Help: "Total number of deferred timers canceled by a superseding plan",
		},
	)

	Rollovers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rollovers_total",
			Help: "Total number of midnight slot rollovers performed",
		},
	)

	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through the circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)
)

// RecordHTTPRequest records metrics for a completed HTTP request.
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
