// Package observability holds the Prometheus instruments shared across the
// tile pipeline. Init wires them into a registry; before Init every observe
// call is a no-op so library code never needs a metrics handle.
package observability

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

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
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream tile source calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	cacheOpTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Cache backend operations by op and outcome.",
		},
		[]string{"op", "ok"},
	)

	cacheOpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Duration of cache backend operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Tile cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	resolveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tile_resolve_total",
			Help: "Tile resolutions by data kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	resolveDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tile_resolve_duration_seconds",
			Help:    "Duration of tile resolutions in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"kind", "outcome"},
	)

	resolveWalkDepth = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tile_resolve_walk_depth",
			Help:    "Levels climbed before a tile resolution terminated.",
			Buckets: prometheus.LinearBuckets(0, 1, 16),
		},
		[]string{"kind"},
	)

	reachabilityTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_reachability_total",
			Help: "Cache reachability evaluations by verdict.",
		},
		[]string{"verdict"},
	)

	invalidationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidation_events_total",
			Help: "Processed cache invalidation events by outcome.",
		},
		[]string{"outcome"},
	)

	invalidationKeys = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "invalidation_keys_deleted_total",
			Help: "Cache keys deleted by invalidation events.",
		},
	)

	consumerErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kafka_consumer_errors_total",
			Help: "Errors raised by the invalidation consumer group.",
		},
	)
)

// Init registers the shared instruments and arms the observe calls. Pass a
// fresh Registerer per process (or per test); re-registering into the same
// one panics, which is the behavior we want for double wiring.
func Init(reg prometheus.Registerer, on bool) {
	enabled.Store(on)
	if !on || reg == nil {
		return
	}
	reg.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		upstreamLatencySeconds,
		cacheOpTotal,
		cacheOpDurationSeconds,
		cacheResults,
		resolveTotal,
		resolveDurationSeconds,
		resolveWalkDepth,
		reachabilityTotal,
		invalidationTotal,
		invalidationKeys,
		consumerErrors,
	)
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	ok := "true"
	if err != nil {
		ok = "false"
	}
	cacheOpTotal.WithLabelValues(op, ok).Inc()
	cacheOpDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
}

func IncCacheHit() {
	if !enabled.Load() {
		return
	}
	cacheResults.WithLabelValues("hit").Inc()
}

func IncCacheMiss() {
	if !enabled.Load() {
		return
	}
	cacheResults.WithLabelValues("miss").Inc()
}

// ObserveResolve records one tile resolution. outcome is direct, fallback or
// absent.
func ObserveResolve(kind, outcome string, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	resolveTotal.WithLabelValues(kind, outcome).Inc()
	resolveDurationSeconds.WithLabelValues(kind, outcome).Observe(durationSeconds)
}

func ObserveWalkDepth(kind string, depth int) {
	if !enabled.Load() {
		return
	}
	resolveWalkDepth.WithLabelValues(kind).Observe(float64(depth))
}

// IncReachability records one cache reachability verdict: reachable,
// unreachable or vacuous.
func IncReachability(verdict string) {
	if !enabled.Load() {
		return
	}
	reachabilityTotal.WithLabelValues(verdict).Inc()
}

func ObserveInvalidation(outcome string, keysDeleted int) {
	if !enabled.Load() {
		return
	}
	invalidationTotal.WithLabelValues(outcome).Inc()
	if keysDeleted > 0 {
		invalidationKeys.Add(float64(keysDeleted))
	}
}

func IncKafkaConsumerError() {
	if !enabled.Load() {
		return
	}
	consumerErrors.Inc()
}
