package sfquery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for salesforce client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sfquery_requests_total",
		Help: "Total salesforce requests by method and status",
	}, []string{"method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sfquery_request_duration_seconds",
		Help:    "Salesforce request duration in seconds by method",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	queryPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sfquery_query_pages_total",
		Help: "Total query result pages fetched",
	})
)
