// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the pipeline. Event types form an open
// string taxonomy, so per-type labels are restricted to places where the
// set is bounded (severity, consumer name, rule ID, job name) to keep
// cardinality under control.

var (
	// Event Bus Metrics
	BusEventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_events_emitted_total",
			Help: "Total number of events accepted onto the bus",
		},
		[]string{"severity"},
	)

	BusEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bus_events_dropped_total",
			Help: "Total number of events dropped because the queue was full",
		},
	)

	BusQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bus_queue_depth",
			Help: "Current number of events waiting in the bus queue",
		},
	)

	BusBatchesDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bus_batches_dispatched_total",
			Help: "Total number of batches drained from the bus",
		},
	)

	BusBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bus_batch_size",
			Help:    "Number of events in each drained batch",
			Buckets: []float64{1, 5, 10, 25, 50},
		},
	)

	BusConsumerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_consumer_failures_total",
			Help: "Total number of consumer batch failures (errors and panics)",
		},
		[]string{"consumer"},
	)

	BusConsumerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bus_consumer_duration_seconds",
			Help:    "Duration of consumer batch processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"consumer"},
	)

	// Inline Check Metrics
	CheckRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "check_requests_total",
			Help: "Total number of inline policy checks",
		},
		[]string{"outcome"}, // "allowed", "denied"
	)

	CheckDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "check_duration_seconds",
			Help:    "Duration of inline policy checks in seconds",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"action_class"},
	)

	RateLimitBuckets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ratelimit_buckets",
			Help: "Current number of tracked rate limit buckets",
		},
	)

	// Policy Engine Metrics
	PolicyRuleMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policy_rule_matches_total",
			Help: "Total number of policy rule matches by rule ID",
		},
		[]string{"rule"},
	)

	ViolationsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "policy_violations_recorded_total",
			Help: "Total number of violations recorded against actors",
		},
	)

	TempBansIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "policy_temp_bans_issued_total",
			Help: "Total number of temporary bans issued",
		},
	)

	ActiveBans = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "policy_bans_active",
			Help: "Current number of active temporary bans",
		},
	)

	// Detection Metrics
	PatternMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detection_pattern_matches_total",
			Help: "Total number of suspicious sequence matches",
		},
		[]string{"sequence"},
	)

	PatternAlerts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "detection_pattern_alerts_total",
			Help: "Total number of pattern alerts emitted",
		},
	)

	AnomalyAlerts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "detection_anomaly_alerts_total",
			Help: "Total number of anomaly alerts emitted",
		},
	)

	TrackedActors = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "detection_tracked_actors",
			Help: "Current number of actors tracked per detector",
		},
		[]string{"detector"}, // "pattern", "anomaly"
	)

	// Log Aggregator Metrics
	AggregatorEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aggregator_entries",
			Help: "Current number of distinct (type, severity) aggregation keys",
		},
	)

	AggregatorEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregator_events_total",
			Help: "Total number of events folded into the aggregator",
		},
	)

	AggregatorFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_flushes_total",
			Help: "Total number of aggregator flushes",
		},
		[]string{"trigger"}, // "threshold", "scheduled", "shutdown"
	)

	// Alert Dispatcher Metrics
	AlertsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_dispatched_total",
			Help: "Total number of alerts delivered to sinks",
		},
		[]string{"level"},
	)

	AlertsThrottled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alerts_throttled_total",
			Help: "Total number of alerts suppressed by the cooldown window",
		},
	)

	AlertsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alerts_failed_total",
			Help: "Total number of alert deliveries that failed",
		},
	)

	AlertSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alert_send_duration_seconds",
			Help:    "Duration of alert sink deliveries in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Session Registry Metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Current number of registered sessions",
		},
	)

	SessionValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_validations_total",
			Help: "Total number of session validations by result",
		},
		[]string{"result"}, // "valid", "expired", "not_found"
	)

	SessionsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_swept_total",
			Help: "Total number of expired sessions removed by sweeps",
		},
	)

	// Scheduler Metrics
	SchedulerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_runs_total",
			Help: "Total number of scheduler job executions",
		},
		[]string{"job"},
	)

	SchedulerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_errors_total",
			Help: "Total number of scheduler job failures",
		},
		[]string{"job"},
	)

	SchedulerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Duration of scheduler job executions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	LastCompactionTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_last_compaction_timestamp",
			Help: "Unix timestamp of the last completed compaction",
		},
	)

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

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
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
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	// Audit Ledger Metrics
	AuditEventsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_recorded_total",
			Help: "Total number of audit events recorded",
		},
		[]string{"type"},
	)

	AuditWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Total number of audit store write failures",
		},
	)

	AuditBufferDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_buffer_dropped_total",
			Help: "Total number of audit events dropped due to a full buffer",
		},
	)
)

// RecordCheck records an inline check outcome and duration.
func RecordCheck(allowed bool, duration time.Duration) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	CheckRequests.WithLabelValues(outcome).Inc()
	CheckDuration.Observe(duration.Seconds())
}

// RecordConsumerBatch records the outcome of one consumer batch invocation.
func RecordConsumerBatch(consumer string, duration time.Duration, err error) {
	BusConsumerDuration.WithLabelValues(consumer).Observe(duration.Seconds())
	if err != nil {
		BusConsumerFailures.WithLabelValues(consumer).Inc()
	}
}

// RecordBatchDispatch records one drained batch.
func RecordBatchDispatch(size int) {
	BusBatchesDispatched.Inc()
	BusBatchSize.Observe(float64(size))
}

// RecordSessionValidation records a validation result ("valid", "expired",
// "not_found").
func RecordSessionValidation(result string) {
	SessionValidations.WithLabelValues(result).Inc()
}

// RecordAlertDispatch records a dispatched, throttled, or failed alert.
func RecordAlertDispatch(level string, duration time.Duration, err error) {
	AlertSendDuration.Observe(duration.Seconds())
	if err != nil {
		AlertsFailed.Inc()
		return
	}
	AlertsDispatched.WithLabelValues(level).Inc()
}

// RecordSchedulerRun records one scheduler job tick.
func RecordSchedulerRun(job string, duration time.Duration, err error) {
	SchedulerRuns.WithLabelValues(job).Inc()
	SchedulerJobDuration.WithLabelValues(job).Observe(duration.Seconds())
	if err != nil {
		SchedulerErrors.WithLabelValues(job).Inc()
	}
}

// SetCircuitBreakerState updates the breaker state gauge.
// State values: 0=closed, 1=half-open, 2=open.
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRateLimitHit records a transport-level rate limit rejection.
func RecordRateLimitHit(endpoint string) {
	APIRateLimitHits.WithLabelValues(endpoint).Inc()
}

// SetWSConnections updates the alert stream connection gauge.
func SetWSConnections(n int) {
	WSConnections.Set(float64(n))
}

// RecordWSMessage counts one message queued for an alert stream client.
func RecordWSMessage() {
	WSMessagesSent.Inc()
}

// RecordWSError counts a websocket failure by type ("slow_client",
// "write", "read").
func RecordWSError(errorType string) {
	WSErrors.WithLabelValues(errorType).Inc()
}
