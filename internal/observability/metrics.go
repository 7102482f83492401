package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AssistantQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_query_duration_seconds",
			Help:    "Assistant query processing duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1, 2.5},
		},
		[]string{"intent", "status"},
	)

	AssistantQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_queries_total",
			Help: "Total number of assistant queries",
		},
		[]string{"intent", "status"},
	)

	MatchPhaseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_match_phase_total",
			Help: "Product matches by the phase that produced them (text, category, none)",
		},
		[]string{"phase"},
	)

	SuggestionWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_record_writes_total",
			Help: "Durable writes of suggestions and search history",
		},
		[]string{"kind", "status"},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_cache_hits_total",
			Help: "Total number of Redis cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_cache_misses_total",
			Help: "Total number of Redis cache misses",
		},
	)

	PGQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pg_query_duration_seconds",
			Help:    "PostgreSQL query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"query", "status"},
	)

	ESQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "es_query_duration_seconds",
			Help:    "Elasticsearch query duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.15, 0.2, 0.5, 1},
		},
		[]string{"index", "status"},
	)

	CHQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ch_query_duration_seconds",
			Help:    "ClickHouse query duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"query_type", "status"},
	)

	IndexingLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexing_lag_seconds",
			Help: "Current listing indexing lag in seconds",
		},
	)

	IndexingEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexing_events_total",
			Help: "Total number of listing change events processed",
		},
		[]string{"operation", "status"},
	)

	KafkaPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_publish_total",
			Help: "Messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	SlowQueryCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slow_query_total",
			Help: "Total number of slow assistant queries",
		},
		[]string{"severity", "query_type"},
	)
)
