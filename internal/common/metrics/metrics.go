// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hr_assistant_queries_total",
			Help: "Total number of processed questions by parse source",
		},
		[]string{"source"},
	)

	ParseFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hr_assistant_parse_fallbacks_total",
			Help: "Number of times the keyword cascade replaced the model parser",
		},
		[]string{"reason"},
	)

	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hr_assistant_dispatch_total",
			Help: "Commands executed by tool group, action and result status",
		},
		[]string{"group", "action", "status"},
	)

	CompletionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hr_assistant_completion_duration_seconds",
			Help:    "Latency of completion service calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	VocabularyLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hr_assistant_vocabulary_loads_total",
			Help: "Distinct-value loads by column and tier that served them",
		},
		[]string{"column", "tier"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "hr_assistant_query_duration_seconds",
			Help: "Duration of dataset queries by shape",
		},
		[]string{"shape"},
	)
)
