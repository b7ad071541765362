// Package metrics はPrometheusのメトリクスを定義します。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "academy_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "academy_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "academy_access_gate_decisions_total",
			Help: "Access gate decisions by outcome",
		},
		[]string{"outcome", "required_tier"},
	)

	ProfileCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "academy_profile_cache_total",
			Help: "Profile cache lookups by result",
		},
		[]string{"result"},
	)

	LeadsCaptured = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "academy_leads_captured_total",
			Help: "Quiz leads captured by recommended tier",
		},
		[]string{"tier"},
	)

	NotificationsPushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "academy_notifications_pushed_total",
			Help: "Notifications delivered to connected websocket clients",
		},
	)

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "academy_ws_clients",
			Help: "Number of connected notification websocket clients",
		},
	)
)
