package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values.
const (
	StatusOK       = "ok"
	StatusNotFound = "not_found"
	StatusError    = "error"
)

var (
	WikiAPIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wikirender_wiki_api_requests_total",
		Help: "The total number of wiki API requests",
	}, []string{"action", "status"})

	WikiAPIDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wikirender_wiki_api_request_duration_seconds",
		Help:    "Duration of wiki API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	RenderedChunks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wikirender_rendered_chunks_total",
		Help: "Number of message chunks produced by the CLI and fetch modes",
	}, []string{"mode"})

	BrokenInfoboxes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wikirender_broken_infoboxes_total",
		Help: "Infoboxes that contained unresolved link placeholders",
	})
)
