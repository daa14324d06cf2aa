package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_runs_total",
			Help: "Total number of digest runs by outcome",
		},
		[]string{"outcome"}, // outcome: delivered, empty, failed, skipped
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "digest_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		},
		[]string{"stage"},
	)

	MessagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "digest_messages_fetched_total",
			Help: "Total number of newsletter messages fetched",
		},
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_deliveries_total",
			Help: "Total number of digest deliveries by status",
		},
		[]string{"status"}, // status: sent, failed
	)

	LLMCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "digest_llm_call_latency_seconds",
			Help:    "Summarization call latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		},
		[]string{"provider", "status"},
	)

	SlowQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_db_slow_queries_total",
			Help: "Total number of database queries over the slow threshold",
		},
		[]string{"command"},
	)
)

func RecordStage(stage string, duration time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func RecordLLMCall(provider string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	LLMCallLatency.WithLabelValues(provider, status).Observe(duration.Seconds())
}

func RecordDelivery(err error) {
	if err != nil {
		Deliveries.WithLabelValues("failed").Inc()
		return
	}
	Deliveries.WithLabelValues("sent").Inc()
}

func IncrementSlowQuery(command string) {
	SlowQueries.WithLabelValues(command).Inc()
}
