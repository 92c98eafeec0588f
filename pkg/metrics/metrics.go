package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CollectionsTotal counts collection attempts per source by outcome (success/failure).
var CollectionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ratefeed_collections_total",
		Help: "Total number of source collection attempts by outcome",
	},
	[]string{"source", "outcome"},
)

// CollectionDuration records per-source collection latency.
var CollectionDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ratefeed_collection_duration_seconds",
		Help:    "Latency in seconds of a single source collection",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"source"},
)

// Pipeline stage counters
var (
	RecordsCleaned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratefeed_records_cleaned_total",
			Help: "Raw records accepted or rejected by the cleaner",
		},
		[]string{"result"},
	)

	RecordsDeduplicated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ratefeed_records_deduplicated_total",
			Help: "Canonical records suppressed as near-duplicates",
		},
	)

	RecordsPersisted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratefeed_records_persisted_total",
			Help: "Canonical records written or skipped by the persistence writer",
		},
		[]string{"result"},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratefeed_events_published_total",
			Help: "Rate update events published to the messaging sink by outcome",
		},
		[]string{"outcome"},
	)
)

// Read path metrics
var (
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratefeed_cache_lookups_total",
			Help: "Latest-rate cache lookups by result (hit/miss/error)",
		},
		[]string{"result"},
	)

	ReaderFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ratefeed_reader_db_fallbacks_total",
			Help: "Reader lookups served from the historical store after a cache miss",
		},
	)
)

func init() {
	prometheus.MustRegister(CollectionsTotal, CollectionDuration)
	prometheus.MustRegister(RecordsCleaned, RecordsDeduplicated, RecordsPersisted, EventsPublished)
	prometheus.MustRegister(CacheLookups, ReaderFallbacks)
}
