package scraper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scrapeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "slotwatch",
			Subsystem: "scraper",
			Name:      "fetch_duration_seconds",
			Help:      "Time spent rendering and parsing a page",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"renderer"},
	)

	scrapeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotwatch",
			Subsystem: "scraper",
			Name:      "errors_total",
			Help:      "Failed fetches by error kind",
		},
		[]string{"kind"},
	)
)
