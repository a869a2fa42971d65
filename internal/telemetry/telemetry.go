package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters and histograms for the coverage and planning engine. Exposed on
// /metrics via promhttp in the server.
var (
	PlanRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planora_plan_runs_total",
		Help: "Content plan synthesis runs by terminal status.",
	}, []string{"status"})

	PlanCandidates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planora_plan_candidates_total",
		Help: "Plan candidates by filter outcome.",
	}, []string{"result"})

	PlanRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "planora_plan_run_duration_seconds",
		Help:    "Wall-clock duration of plan synthesis runs.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	EmbeddingFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planora_embedding_failures_total",
		Help: "Embedding calls that failed; dedup fails open on these.",
	})

	ExtractionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planora_extraction_failures_total",
		Help: "Answer-unit extraction runs that were aborted.",
	})

	AnswerUnitsMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planora_answer_units_merged_total",
		Help: "Answer units upserted into the coverage store.",
	})
)

// Candidate filter outcomes.
const (
	CandidateAccepted          = "accepted"
	CandidateRejectedDuplicate = "rejected_duplicate"
	CandidateRejectedInvalid   = "rejected_invalid"
)
