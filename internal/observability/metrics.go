package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wanderfeed_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wanderfeed_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// ToggleTotal counts toggle outcomes by edge kind and resulting action.
	ToggleTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wanderfeed_toggle_total",
		Help: "Toggle operations by edge and resulting action",
	}, []string{"edge", "action"})

	// ReviewOpsTotal counts review engine operations by outcome.
	ReviewOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wanderfeed_review_ops_total",
		Help: "Review operations by kind and outcome",
	}, []string{"op", "outcome"})

	// FeedRequestsTotal counts composed feeds by source branch.
	FeedRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wanderfeed_feed_requests_total",
		Help: "Feed pages composed, by source",
	}, []string{"source"})

	// RecommendationsTotal counts recommendation requests by outcome.
	RecommendationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wanderfeed_recommendations_total",
		Help: "Recommendation generation requests by outcome",
	}, []string{"outcome"})

	// MediaBytesTotal counts bytes written to the media store.
	MediaBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wanderfeed_media_bytes_total",
		Help: "Bytes written to the media store",
	})

	// IdentityEventsTotal counts processed identity lifecycle events.
	IdentityEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wanderfeed_identity_events_total",
		Help: "Identity lifecycle events by type and outcome",
	}, []string{"type", "outcome"})

	// CounterDriftTotal counts rows whose stored counter differed from the live recount.
	CounterDriftTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wanderfeed_counter_drift_total",
		Help: "Denormalized counters corrected by reconciliation",
	}, []string{"counter"})
)

// Outcome labels shared by the counters above.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeEmpty   = "empty"
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// OutcomeOf maps an error to an outcome label.
func OutcomeOf(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
