package notifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var notificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "slotwatch",
		Subsystem: "notifier",
		Name:      "messages_total",
		Help:      "Outbound messages by platform, message kind and outcome",
	},
	[]string{"platform", "kind", "status"},
)
