// Package metrics holds the prometheus collectors shared by the binaries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "retail_insights_build_info",
			Help: "Build information of the Retail Insights Assistant",
		},
		[]string{"version", "commit", "date"},
	)

	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retail_insights_queries_total",
			Help: "Query pipeline runs by outcome ('ok' or the failure kind)",
		},
		[]string{"outcome"},
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "retail_insights_query_duration_seconds",
			Help:    "End-to-end duration of query pipeline runs",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)
)
