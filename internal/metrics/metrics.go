// Reactord - Reactor Telemetry Relay
// Copyright 2026 The Reactord Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reactord/reactord

// Package metrics provides Prometheus instrumentation for Reactord.
//
// Exposed at /metrics in Prometheus text format. Labels stay low
// cardinality: device type and channel count, never per-device identifiers.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_sessions_active",
			Help: "Current number of live device sessions",
		},
	)

	ChannelsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_channels_active",
			Help: "Current number of non-empty fan-out channels",
		},
	)

	FramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_frames_received_total",
			Help: "Total telemetry frames received from devices",
		},
		[]string{"device_type", "kind"}, // kind: telemetry, identity, heartbeat
	)

	FramesMalformed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_frames_malformed_total",
			Help: "Total inbound frames dropped because they failed to parse",
		},
	)

	FramesBroadcast = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_frames_broadcast_total",
			Help: "Total frames fanned out to channel subscribers",
		},
	)

	// Handshake metrics
	HandshakeRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_handshake_rejections_total",
			Help: "Total rejected connection attempts",
		},
		[]string{"reason"},
	)

	StateResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_state_resets_total",
			Help: "Total reactor state resets written to storage",
		},
		[]string{"trigger"}, // trigger: disconnect, shutdown
	)

	// Database metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// HTTP metrics (plain endpoints only; streaming sessions are tracked
	// by the session metrics above)
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
)

// RecordDBQuery records a query duration, and an error if err is non-nil.
func RecordDBQuery(operation, table string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records one completed plain HTTP request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordFrame records one inbound frame by device type and parse kind.
func RecordFrame(deviceType, kind string) {
	FramesReceived.WithLabelValues(deviceType, kind).Inc()
}

// RecordRejection records one rejected handshake.
func RecordRejection(reason string) {
	HandshakeRejections.WithLabelValues(reason).Inc()
}
