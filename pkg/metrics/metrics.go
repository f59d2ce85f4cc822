package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Dispatch metrics
	NotificationsDispatched *prometheus.CounterVec
	RecipientsResolved      prometheus.Histogram
	DispatchDuration        prometheus.Histogram

	// Web Push metrics
	PushSendTotal            *prometheus.CounterVec
	DeadSubscriptionsRemoved prometheus.Counter
	EmailFallbacksSent       prometheus.Counter

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		NotificationsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dispatched_total",
			Help:      "Total number of notifications dispatched",
		}, []string{"type", "status"}),
		RecipientsResolved: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recipients_resolved",
			Help:      "Resolved recipient set size per dispatch",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
		DispatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent dispatching a notification, delivery included",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		PushSendTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_send_total",
			Help:      "Web Push send attempts by outcome",
		}, []string{"outcome"}),
		DeadSubscriptionsRemoved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dead_subscriptions_removed_total",
			Help:      "Subscriptions removed after a 404/410 from the push service",
		}),
		EmailFallbacksSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_fallbacks_sent_total",
			Help:      "Fallback emails sent to recipients unreachable by push",
		}),
		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}
