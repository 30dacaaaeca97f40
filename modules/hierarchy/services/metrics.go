package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hierarchyTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hierarchy",
		Subsystem: "transition",
		Name:      "total",
		Help:      "Total number of role transitions broken down by action and result.",
	}, []string{"action", "result"})

	hierarchyReassignments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hierarchy",
		Subsystem: "reassignment",
		Name:      "edges_total",
		Help:      "Total number of subordinate reassignments broken down by mode and result.",
	}, []string{"mode", "result"})

	hierarchyRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hierarchy",
		Subsystem: "write",
		Name:      "rejections_total",
		Help:      "Total number of rejected hierarchy writes broken down by error code.",
	}, []string{"code"})

	hierarchyWriteConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hierarchy",
		Subsystem: "write",
		Name:      "conflicts_total",
		Help:      "Total number of database write conflicts broken down by kind.",
	}, []string{"kind"})

	hierarchyDiscoverySize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hierarchy",
		Subsystem: "discovery",
		Name:      "subtree_size",
		Help:      "Size of transitive subordinate sets returned by discovery.",
		Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
)

func recordTransition(action TransitionAction, err error) {
	result := "success"
	if err != nil {
		result = "rejected"
	}
	hierarchyTransitions.WithLabelValues(string(action), result).Inc()
}

func recordReassignment(mode ReassignmentMode, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	hierarchyReassignments.WithLabelValues(string(mode), result).Inc()
}

func recordRejection(code string) {
	if code == "" {
		code = CodeInternal
	}
	hierarchyRejections.WithLabelValues(code).Inc()
}

func recordWriteConflict(kind string) {
	if kind == "" {
		kind = "other"
	}
	hierarchyWriteConflicts.WithLabelValues(kind).Inc()
}

func recordDiscoverySize(n int) {
	hierarchyDiscoverySize.Observe(float64(n))
}
