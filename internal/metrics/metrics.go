// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - API endpoint latency and throughput
// - Provider fetch performance and failures
// - Reconciliation snapshot builds
// - Troubleshooting mutations (link/unlink/confirm/recreate)
// - Circuit breaker state per provider

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Provider Fetch Metrics
	ProviderFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_fetch_duration_seconds",
			Help:    "Duration of provider event window fetches in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	ProviderFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_fetch_errors_total",
			Help: "Total number of failed provider fetches",
		},
		[]string{"provider"},
	)

	ProviderRecordsFetched = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "provider_records_fetched",
			Help: "Number of event records returned by the most recent fetch",
		},
		[]string{"provider"},
	)

	// Flow History Metrics
	FlowFetchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flow_fetch_errors_total",
			Help: "Total number of failed sync-engine history fetches",
		},
	)

	FlowRecordsFetched = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flow_records_fetched",
			Help: "Number of flow records returned by the most recent fetch",
		},
	)

	// Reconciliation Snapshot Metrics
	SnapshotGeneration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reconcile_snapshot_generation",
			Help: "Generation counter of the currently published snapshot",
		},
	)

	SnapshotBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconcile_snapshot_build_duration_seconds",
			Help:    "Duration of a full snapshot refresh (fetch + reconcile) in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	SnapshotGroups = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reconcile_groups",
			Help: "Number of reconciliation groups in the current snapshot",
		},
	)

	SnapshotCollisions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reconcile_suspect_collisions",
			Help: "Number of suspect collision groups in the current snapshot",
		},
	)

	SnapshotStaleDiscards = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_stale_snapshots_discarded_total",
			Help: "Total number of completed refreshes discarded because a newer generation started",
		},
	)

	// Mutation Metrics
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "troubleshoot_mutations_total",
			Help: "Total number of troubleshooting mutations by action and outcome",
		},
		[]string{"action", "result"}, // result: "success", "failure", "rejected", "conflict"
	)

	MutationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "troubleshoot_mutation_duration_seconds",
			Help:    "Duration of troubleshooting mutations in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"action"},
	)

	MutationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "troubleshoot_mutations_in_flight",
			Help: "Current number of pending troubleshooting mutations",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total requests through circuit breakers by result",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current consecutive failure count per circuit breaker",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Operation Store Metrics
	OperationsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "operations_recorded_total",
			Help: "Total operation records written by final status",
		},
		[]string{"status"},
	)
)

// RecordAPIRequest records metrics for an API request
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordProviderFetch records the outcome of one provider window fetch
func RecordProviderFetch(provider string, records int, duration time.Duration, err error) {
	ProviderFetchDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if err != nil {
		ProviderFetchErrors.WithLabelValues(provider).Inc()
		return
	}
	ProviderRecordsFetched.WithLabelValues(provider).Set(float64(records))
}

// RecordSnapshot records gauges for a freshly published snapshot
func RecordSnapshot(generation uint64, groups, collisions int, duration time.Duration) {
	SnapshotGeneration.Set(float64(generation))
	SnapshotGroups.Set(float64(groups))
	SnapshotCollisions.Set(float64(collisions))
	SnapshotBuildDuration.Observe(duration.Seconds())
}

// RecordMutation records the outcome of one troubleshooting mutation
func RecordMutation(action, result string, duration time.Duration) {
	MutationsTotal.WithLabelValues(action, result).Inc()
	MutationDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
