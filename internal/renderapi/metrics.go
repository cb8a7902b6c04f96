package renderapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values.
const (
	StatusOK         = "200"
	StatusBadRequest = "400"
	StatusTooLarge   = "413"
	StatusLimited    = "429"

	EndpointPlain   = "plain"
	EndpointMarkup  = "markup"
	EndpointDiff    = "diff"
	EndpointInfobox = "infobox"
	EndpointSplit   = "split"
	EndpointUnknown = "unknown"
)

var (
	// RequestsTotal counts render requests by endpoint and HTTP status code.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "render_api_requests_total",
		Help: "Total number of render API requests",
	}, []string{"endpoint", "status"})

	// LatencyHistogram measures request latency.
	LatencyHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "render_api_latency_seconds",
		Help:    "Latency of render API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
