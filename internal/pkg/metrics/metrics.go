// Package metrics exposes Prometheus instruments for the mastery pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MasteryChecks counts reconciliation runs, regardless of outcome.
	MasteryChecks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leaguebot_mastery_checks_total",
		Help: "Number of per-account mastery reconciliation runs.",
	})

	// MasteriesDetected counts newly detected masteries.
	MasteriesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leaguebot_masteries_detected_total",
		Help: "Number of new masteries detected.",
	})

	// NotificationsSent counts mastery announcements delivered to chat.
	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leaguebot_notifications_sent_total",
		Help: "Number of mastery notifications sent.",
	})

	// UpstreamErrors counts failed RetroAchievements API calls.
	UpstreamErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leaguebot_upstream_errors_total",
		Help: "Number of failed achievement source calls.",
	})

	// StoreErrors counts failed snapshot store operations.
	StoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leaguebot_store_errors_total",
		Help: "Number of failed snapshot store operations.",
	})

	// TickDuration observes how long a full roster tick takes.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "leaguebot_tick_duration_seconds",
		Help:    "Duration of a full roster reconciliation tick.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
