package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	notificationsProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notification_dispatch",
			Name:      "records_processed_total",
			Help:      "Total notification records processed by sweeps.",
		},
		[]string{"type", "outcome"}, // outcome: "sent", "retry_scheduled", "failed", "store_error"
	)

	providerRequestDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "notification_dispatch",
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of send calls to the email provider.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider_name"},
	)

	sweepBatchSizeHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "notification_dispatch",
			Name:      "sweep_batch_size",
			Help:      "Number of due records picked up per sweep.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	notificationsEnqueuedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notification_dispatch",
			Name:      "records_enqueued_total",
			Help:      "Total notification records queued by producers.",
		},
		[]string{"type", "result"}, // result: "created", "duplicate", "error"
	)
)
