package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "intuneview"
)

var (
	graphDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

	// Graph Metrics
	GraphRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "graph_requests_total",
		Help:      "Count of Microsoft Graph requests by resource and outcome.",
	}, []string{"resource", "status"})

	GraphRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "graph_request_duration_seconds",
		Help:      "Latency of Microsoft Graph requests.",
		Buckets:   graphDurationBuckets,
	}, []string{"resource"})

	GraphRecordsReturned = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "graph_records_returned",
		Help:      "Number of records returned by one collection request.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"resource"})

	// Auth Metrics
	TokenAcquisitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_acquisitions_total",
		Help:      "Count of bearer token acquisitions by provider and outcome.",
	}, []string{"provider", "outcome"})

	SignInsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sign_ins_total",
		Help:      "Count of completed interactive sign-ins by outcome.",
	}, []string{"outcome"})

	// Controller Metrics
	FetchCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_cycles_total",
		Help:      "Count of view controller fetch cycles by screen and final state.",
	}, []string{"screen", "state"})

	FetchCycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_cycle_duration_seconds",
		Help:      "Time from entering Loading to settling, per screen.",
		Buckets:   graphDurationBuckets,
	}, []string{"screen"})

	StaleCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stale_fetch_cycles_total",
		Help:      "Count of fetch cycles whose result was discarded because a newer cycle started.",
	}, []string{"screen"})

	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Count of dashboard HTTP requests.",
	}, []string{"code", "method"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Latency of dashboard HTTP requests, including the Graph reads they trigger.",
		Buckets:   graphDurationBuckets,
	}, []string{"code", "method"})
)
