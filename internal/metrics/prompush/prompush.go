// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// Batch pipelines have no long-lived HTTP surface to scrape, so collected
// metrics are pushed to a Pushgateway at the end of a run instead. All
// Prometheus-specific dependencies live here; the rest of the project sees
// only metrics.Backend.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/Svencol/data-modeling-pipeline/internal/metrics"
)

// Backend collects pipeline metrics in a private registry and pushes it to a
// Pushgateway on Flush.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stageCounter  *prometheus.CounterVec // ingest_stage_total
	stageDuration *prometheus.SummaryVec // ingest_stage_duration_seconds
	rowCounter    *prometheus.CounterVec // ingest_rows_total
	batchCounter  *prometheus.CounterVec // ingest_batches_total
}

// NewBackend constructs a Pushgateway backend. jobName becomes the
// Pushgateway "job" grouping key; empty defaults to "ingest".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "ingest"
	}

	reg := prometheus.NewRegistry()

	stageCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_stage_total",
			Help: "Pipeline stage executions, partitioned by job, stage, and status.",
		},
		[]string{"job", "stage", "status"},
	)
	stageDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "ingest_stage_duration_seconds",
			Help:       "Pipeline stage durations in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"job", "stage", "status"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_rows_total",
			Help: "Row counts per job and kind (extracted, invalid, deduped, loaded).",
		},
		[]string{"job", "kind"},
	)
	batchCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_batches_total",
			Help: "Warehouse insert batches flushed per job.",
		},
		[]string{"job"},
	)

	for _, c := range []prometheus.Collector{stageCounter, stageDuration, rowCounter, batchCounter} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		stageCounter:  stageCounter,
		stageDuration: stageDuration,
		rowCounter:    rowCounter,
		batchCounter:  batchCounter,
	}, nil
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "ingest_stage_total":
		b.stageCounter.WithLabelValues(labels["job"], labels["stage"], labels["status"]).Add(delta)
	case "ingest_rows_total":
		b.rowCounter.WithLabelValues(labels["job"], labels["kind"]).Add(delta)
	case "ingest_batches_total":
		b.batchCounter.WithLabelValues(labels["job"]).Add(delta)
	default:
		// unknown metric name: ignore
	}
}

// ObserveDuration implements metrics.Backend.
func (b *Backend) ObserveDuration(name string, seconds float64, labels metrics.Labels) {
	if name != "ingest_stage_duration_seconds" {
		return
	}
	b.stageDuration.WithLabelValues(labels["job"], labels["stage"], labels["status"]).Observe(seconds)
}

// Flush pushes the registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
