// Package observability holds the Prometheus collectors of the service.
package observability

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of coverage service calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"op"},
	)

	upstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_errors_total",
			Help: "Coverage service call failures by operation and HTTP status (0 = transport).",
		},
		[]string{"op", "status"},
	)

	layerOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_layer_outcomes_total",
			Help: "Per-layer extraction outcomes.",
		},
		[]string{"outcome"},
	)

	pipelineDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extraction_pipeline_duration_seconds",
			Help:    "End-to-end extraction pipeline duration by result.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"result"},
	)

	samplesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_samples_total",
			Help: "Samples seen by the pipeline by disposition.",
		},
		[]string{"disposition"},
	)

	cacheOpTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Redis operations by op and result.",
		},
		[]string{"op", "result"},
	)

	redisOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation latency in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Value cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	invalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layer_invalidations_total",
			Help: "Layer invalidation events by op and result.",
		},
		[]string{"op", "result"},
	)

	kafkaConsumerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_errors_total",
			Help: "Kafka consumer errors by kind.",
		},
		[]string{"kind"},
	)
)

var disabled atomic.Bool

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds,
		upstreamLatencySeconds, upstreamErrorsTotal,
		layerOutcomes, pipelineDurationSeconds, samplesProcessed,
		cacheOpTotal, redisOpDuration, cacheResults,
		invalidationsTotal, kafkaConsumerErrors,
	}
}

func init() {
	Init(prometheus.DefaultRegisterer, true)
}

// Init registers the collectors with reg (in addition to the default
// registry) and toggles recording. A nil reg only toggles.
func Init(reg prometheus.Registerer, on bool) {
	if reg != nil {
		for _, c := range collectors() {
			// already registered is fine
			_ = reg.Register(c)
		}
	}
	disabled.Store(!on)
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	if disabled.Load() {
		return
	}
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(op string, durationSeconds float64) {
	if disabled.Load() {
		return
	}
	upstreamLatencySeconds.WithLabelValues(op).Observe(durationSeconds)
}

func IncUpstreamError(op string, status int) {
	if disabled.Load() {
		return
	}
	upstreamErrorsTotal.WithLabelValues(op, strconv.Itoa(status)).Inc()
}

// layer outcomes: ok, service_error, timeout, canceled, schema_mismatch
func IncLayerOutcome(outcome string) {
	if disabled.Load() {
		return
	}
	layerOutcomes.WithLabelValues(outcome).Inc()
}

func ObservePipeline(result string, durationSeconds float64) {
	if disabled.Load() {
		return
	}
	pipelineDurationSeconds.WithLabelValues(result).Observe(durationSeconds)
}

func AddSamples(disposition string, n int) {
	if disabled.Load() || n <= 0 {
		return
	}
	samplesProcessed.WithLabelValues(disposition).Add(float64(n))
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	if disabled.Load() {
		return
	}
	res := "ok"
	if err != nil {
		res = "error"
	}
	cacheOpTotal.WithLabelValues(op, res).Inc()
	redisOpDuration.WithLabelValues(op).Observe(durationSeconds)
}

func AddCacheHits(n int) {
	if disabled.Load() || n <= 0 {
		return
	}
	cacheResults.WithLabelValues("hit").Add(float64(n))
}

func AddCacheMisses(n int) {
	if disabled.Load() || n <= 0 {
		return
	}
	cacheResults.WithLabelValues("miss").Add(float64(n))
}

func ObserveInvalidation(op string, err error) {
	if disabled.Load() {
		return
	}
	res := "ok"
	if err != nil {
		res = "error"
	}
	invalidationsTotal.WithLabelValues(op, res).Inc()
}

func IncKafkaConsumerError(kind string) {
	if disabled.Load() {
		return
	}
	kafkaConsumerErrors.WithLabelValues(kind).Inc()
}
