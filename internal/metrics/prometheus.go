package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RecordsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_records_processed_total",
			Help: "Total raw records run through the pipeline",
		},
		[]string{"status"},
	)

	ExtractionTier = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_extraction_tier_total",
			Help: "Extraction results by confidence tier",
		},
		[]string{"tier"},
	)

	ExtractionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recon_extraction_duration_seconds",
			Help:    "Single-record pipeline duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
	)

	LLMCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_llm_calls_total",
			Help: "Completion service calls by purpose and outcome",
		},
		[]string{"purpose", "status"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_llm_tokens_used",
			Help: "Total completion service tokens used",
		},
		[]string{"model", "type"},
	)

	MatchDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_match_decisions_total",
			Help: "Matcher decisions by outcome",
		},
		[]string{"decision"},
	)

	MatchConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recon_match_confidence",
			Help:    "Top candidate confidence per match",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	QueueEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_queue_entries_total",
			Help: "Queue entries by type and transition",
		},
		[]string{"queue_type", "action"},
	)

	QueuePending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "recon_queue_pending",
			Help: "Current number of pending queue entries",
		},
	)

	DuplicatePairs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recon_duplicate_pairs_total",
			Help: "Duplicate pairs found by sweeps",
		},
	)

	SplitCandidates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recon_split_candidates_total",
			Help: "Split candidates found by sweeps",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(RecordsProcessed)
	prometheus.MustRegister(ExtractionTier)
	prometheus.MustRegister(ExtractionDuration)
	prometheus.MustRegister(LLMCalls)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(MatchDecisions)
	prometheus.MustRegister(MatchConfidence)
	prometheus.MustRegister(QueueEntries)
	prometheus.MustRegister(QueuePending)
	prometheus.MustRegister(DuplicatePairs)
	prometheus.MustRegister(SplitCandidates)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
