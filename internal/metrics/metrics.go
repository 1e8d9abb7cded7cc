// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

// Package metrics provides Prometheus instrumentation for the daemon:
// socket channel lifecycle, frame handling, the notification store,
// backend REST calls, and the companion gateway.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Socket Channel Metrics

	ChannelConnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_connects_total",
			Help: "Total number of WebSocket connection attempts",
		},
		[]string{"channel", "result"}, // channel: "notification", "chat"; result: "success", "failure"
	)

	ChannelReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_reconnects_total",
			Help: "Total number of automatic reconnection attempts",
		},
		[]string{"channel"},
	)

	ChannelConnected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "channel_connected",
			Help: "Whether the channel currently holds a live socket (1) or not (0)",
		},
		[]string{"channel"},
	)

	FramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_frames_received_total",
			Help: "Total number of inbound socket frames",
		},
		[]string{"channel", "kind"}, // kind: "notification", "message", "seen", "malformed"
	)

	FramesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_frames_sent_total",
			Help: "Total number of outbound socket frames",
		},
		[]string{"channel", "kind"},
	)

	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_frames_dropped_total",
			Help: "Outbound frames dropped because the socket was not open",
		},
		[]string{"channel"},
	)

	// Notification Store Metrics

	StoreSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_store_size",
			Help: "Current number of notifications held in memory",
		},
	)

	StoreUnread = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_store_unread",
			Help: "Current unread notification count",
		},
	)

	StoreDiscards = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_store_discards_total",
			Help: "Incoming notifications discarded by store guards",
		},
		[]string{"reason"}, // "duplicate", "recipient_mismatch"
	)

	StoreRepairs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_store_repairs_total",
			Help: "Optimistic read-flag flips reverted after backend failure",
		},
	)

	// Backend REST Metrics

	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_request_duration_seconds",
			Help:    "StaySpot backend REST request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	BackendRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_request_errors_total",
			Help: "StaySpot backend REST request failures",
		},
		[]string{"operation", "status_code"},
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
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests seen by the circuit breaker by outcome",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	// Gateway Metrics

	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of companion gateway requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Companion gateway request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordBackendRequest observes one REST call's duration and, for non-2xx
// results, its status code.
func RecordBackendRequest(operation string, status int, duration time.Duration) {
	BackendRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if status >= 400 {
		BackendRequestErrors.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	}
}

// RecordGatewayRequest observes one companion gateway request.
func RecordGatewayRequest(method, endpoint string, status int, duration time.Duration) {
	GatewayRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	GatewayRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
