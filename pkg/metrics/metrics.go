package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Referral lifecycle metrics
	TransitionsTotal *prometheus.CounterVec
	TransitionDenied *prometheus.CounterVec

	// Report event log metrics
	ReportEventsTotal       *prometheus.CounterVec
	ReportEventsDeactivated prometheus.Counter

	// Notification metrics
	NotificationsCreated *prometheus.CounterVec
	EmailsSent           prometheus.Counter
	EmailsFailed         prometheus.Counter

	// Index-sync outbox metrics
	IndexEventsProcessed   prometheus.Counter
	IndexEventsFailed      prometheus.Counter
	IndexProcessingLatency prometheus.Histogram
	IndexQueueSize         prometheus.Gauge
	IndexRetries           *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		TransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "referral_transitions_total",
			Help:      "Total number of applied referral state transitions",
		}, []string{"transition"}),
		TransitionDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "referral_transitions_denied_total",
			Help:      "Total number of transitions rejected by state guards",
		}, []string{"transition", "state"}),

		ReportEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "report_events_total",
			Help:      "Total number of report events appended",
		}, []string{"verb"}),
		ReportEventsDeactivated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "report_events_deactivated_total",
			Help:      "Total number of report events soft-deactivated by newer events",
		}),

		NotificationsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notifications_created_total",
			Help:      "Total number of notification rows created",
		}, []string{"type"}),
		EmailsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "emails_sent_total",
			Help:      "Total number of template emails handed to the SMTP sender",
		}),
		EmailsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "emails_failed_total",
			Help:      "Total number of email sends that failed (best-effort, never rolled back)",
		}),

		IndexEventsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "index_events_processed_total",
			Help:      "Total number of successfully published index-sync events",
		}),
		IndexEventsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "index_events_failed_total",
			Help:      "Total number of failed index-sync events",
		}),
		IndexProcessingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "index_processing_duration_seconds",
			Help:      "Time spent publishing index-sync events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		IndexQueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "index_queue_size",
			Help:      "Current number of pending index-sync events",
		}),
		IndexRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "index_retry_attempts_total",
			Help:      "Total number of retry attempts for index-sync events",
		}, []string{"event_type"}),
	}
}
