// Package metrics exposes the Prometheus collectors shared by the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthTransitions counts login state machine transitions by resulting state.
	AuthTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rxcheck",
		Subsystem: "auth",
		Name:      "transitions_total",
		Help:      "Authentication state transitions by state.",
	}, []string{"state"})

	// PasswordResets counts reset workflow calls by stage and outcome.
	PasswordResets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rxcheck",
		Subsystem: "auth",
		Name:      "password_resets_total",
		Help:      "Password reset requests and confirmations by outcome.",
	}, []string{"stage", "outcome"})

	// NotificationsFailed counts notifications that could not be handed off.
	NotificationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rxcheck",
		Subsystem: "notifications",
		Name:      "failed_total",
		Help:      "Notifications dropped after a delivery error.",
	}, []string{"kind"})

	// HTTPRequestDuration tracks handler latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rxcheck",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
