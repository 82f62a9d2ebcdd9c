// Package metrics exposes Prometheus counters for check and notification activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certwatch_checks_total",
		Help: "Target checks by resulting status.",
	}, []string{"status"})

	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certwatch_notifications_total",
		Help: "Notifications sent by condition and delivery outcome.",
	}, []string{"condition", "delivered"})

	NotificationsSuppressed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certwatch_notifications_suppressed_total",
		Help: "Notifications dropped by the once-per-day gate.",
	}, []string{"condition"})

	BatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certwatch_batches_total",
		Help: "Batch runs by trigger.",
	}, []string{"trigger"})

	BatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "certwatch_batch_duration_seconds",
		Help:    "Wall time of a full batch.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	DaysRemaining = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "certwatch_certificate_days_remaining",
		Help: "Days until the observed certificate expires.",
	}, []string{"hostname"})
)

func init() {
	prometheus.MustRegister(ChecksTotal, NotificationsTotal, NotificationsSuppressed, BatchesTotal, BatchDuration, DaysRemaining)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
