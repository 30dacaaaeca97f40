package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "hierarchy_outbox"

var (
	enqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "enqueued_total",
		Help:      "Messages written to an outbox table.",
	}, []string{"table", "topic"})

	dispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "dispatched_total",
		Help:      "Dispatch attempts by outcome (published, retry, dead).",
	}, []string{"table", "topic", "outcome"})

	dispatchSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "dispatch_seconds",
		Help:      "Time spent in the dispatcher per message.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 12),
	}, []string{"table", "topic"})

	pendingGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "pending",
		Help:      "Unpublished rows, locked or not.",
	}, []string{"table"})

	lockedGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "locked",
		Help:      "Unpublished rows currently claimed by a relay.",
	}, []string{"table"})

	leaderGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "relay_leader",
		Help:      "1 while this process holds the relay lock for the table.",
	}, []string{"table"})

	cleanedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "cleaned_total",
		Help:      "Rows deleted by the cleaner.",
	}, []string{"table", "state"})
)
