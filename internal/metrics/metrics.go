// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Manager Metrics
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layersync_dispatch_total",
			Help: "Total number of manager operations by result",
		},
		[]string{"operation", "result"},
	)

	FanOutTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layersync_fanout_total",
			Help: "Total number of interface connector deliveries",
		},
		[]string{"connector", "operation", "outcome"}, // outcome: "ok", "failed"
	)

	DirectoryEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "layersync_directory_entries",
			Help: "Current number of entries per directory",
		},
		[]string{"directory"}, // layers, projects, keys
	)

	DirectoryWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layersync_directory_writes_total",
			Help: "Total number of directory file writes",
		},
		[]string{"directory", "status"},
	)

	KeysUnpersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "layersync_keys_unpersisted_total",
			Help: "Total number of key updates with no storage connector to persist them",
		},
	)

	ResourcesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "layersync_resources_loaded",
			Help: "Number of resource files in the catalog",
		},
	)

	// Storage Metrics
	StorageOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "layersync_storage_operation_duration_seconds",
			Help:    "Duration of storage connector operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"storage", "operation"},
	)

	StorageOpErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layersync_storage_operation_errors_total",
			Help: "Total number of failed storage connector operations",
		},
		[]string{"storage", "operation"},
	)

	// Bus Metrics
	BusPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layersync_bus_published_total",
			Help: "Total number of events published to the message bus",
		},
		[]string{"action", "status"},
	)

	BusReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layersync_bus_received_total",
			Help: "Total number of events received from the message bus",
		},
		[]string{"action", "status"}, // status: "applied", "ignored", "failed"
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
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
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

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// API Metrics
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
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)
)

// RecordDispatch counts a completed manager operation.
func RecordDispatch(operation, result string) {
	DispatchTotal.WithLabelValues(operation, result).Inc()
}

// RecordFanOut counts an interface connector delivery.
func RecordFanOut(connector, operation string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	FanOutTotal.WithLabelValues(connector, operation, outcome).Inc()
}

// SetDirectorySize records the current size of a directory.
func SetDirectorySize(directory string, n int) {
	DirectoryEntries.WithLabelValues(directory).Set(float64(n))
}

// RecordDirectoryWrite counts a directory file write.
func RecordDirectoryWrite(directory string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DirectoryWrites.WithLabelValues(directory, status).Inc()
}

// RecordUnpersistedKey counts a key update that no storage connector received.
func RecordUnpersistedKey() {
	KeysUnpersisted.Inc()
}

// RecordStorageOp records the latency and outcome of a storage operation.
func RecordStorageOp(storage, operation string, duration time.Duration, err error) {
	StorageOpDuration.WithLabelValues(storage, operation).Observe(duration.Seconds())
	if err != nil {
		StorageOpErrors.WithLabelValues(storage, operation).Inc()
	}
}

// RecordBusPublish counts an event handed to the bus.
func RecordBusPublish(action string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	BusPublished.WithLabelValues(action, status).Inc()
}

// RecordBusReceive counts an event taken off the bus.
func RecordBusReceive(action, status string) {
	BusReceived.WithLabelValues(action, status).Inc()
}

// RecordCircuitBreakerTransition records a state change and the new state.
func RecordCircuitBreakerTransition(name, from, to string, state float64) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(state)
}

// RecordAPIRequest records an API request metric.
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
