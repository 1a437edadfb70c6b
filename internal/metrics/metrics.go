// Package metrics provides Prometheus metrics for the chat client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SendsTotal counts message sends by outcome (confirmed, failed).
	SendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_sends_total",
			Help: "Total number of message sends by outcome",
		},
		[]string{"outcome"},
	)

	// SendDuration tracks time from submit to server confirmation or failure.
	SendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_client_send_duration_seconds",
			Help:    "Duration of optimistic sends until they settle",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ActiveSubscriptions tracks realtime subscriptions in the subscribed state.
	ActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_client_active_subscriptions",
			Help: "Number of currently active realtime subscriptions",
		},
	)

	// SubscriptionFailures counts subscription setup failures.
	SubscriptionFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_subscription_failures_total",
			Help: "Total number of failed realtime subscription attempts",
		},
	)

	// RealtimeEvents counts dispatched realtime events by type.
	RealtimeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_realtime_events_total",
			Help: "Total number of realtime events dispatched",
		},
		[]string{"type"},
	)

	// BackfillFetches counts older-page fetches by outcome (ok, error, stale).
	BackfillFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_backfill_fetches_total",
			Help: "Total number of history page fetches by outcome",
		},
		[]string{"outcome"},
	)

	// StaleResults counts fetch results and realtime events dropped because
	// the conversation was switched away or the fetch was cancelled.
	StaleResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_stale_results_total",
			Help: "Total number of results discarded as stale by source",
		},
		[]string{"source"},
	)
)

// RecordSend records a settled send.
func RecordSend(outcome string, seconds float64) {
	SendsTotal.WithLabelValues(outcome).Inc()
	SendDuration.Observe(seconds)
}

// RecordEvent records a dispatched realtime event.
func RecordEvent(eventType string) {
	RealtimeEvents.WithLabelValues(eventType).Inc()
}

// RecordBackfill records a settled history fetch.
func RecordBackfill(outcome string) {
	BackfillFetches.WithLabelValues(outcome).Inc()
}

// RecordStale records a discarded stale result.
func RecordStale(source string) {
	StaleResults.WithLabelValues(source).Inc()
}
