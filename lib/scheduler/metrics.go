package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotwatch",
			Subsystem: "scheduler",
			Name:      "cycles_total",
			Help:      "Check cycles by result",
		},
		[]string{"result"},
	)

	cyclesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotwatch",
			Subsystem: "scheduler",
			Name:      "cycles_skipped_total",
			Help:      "Ticks skipped because the previous cycle was still running",
		},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "slotwatch",
			Subsystem: "scheduler",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a complete check cycle",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	subscriptionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotwatch",
			Subsystem: "scheduler",
			Name:      "subscription_checks_total",
			Help:      "Per-subscription check outcomes",
		},
		[]string{"outcome"},
	)
)
