package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "healthcast"

// Collector provides forecasting metrics collection
type Collector struct {
	// Selection Metrics
	CandidateFitsTotal     *prometheus.CounterVec
	CandidateFitDuration   prometheus.Histogram
	SelectionFallbackTotal prometheus.Counter

	// Forecast Metrics
	ForecastsTotal *prometheus.CounterVec

	// Pipeline Metrics
	PipelineRunsTotal   *prometheus.CounterVec
	PipelineRunDuration prometheus.Histogram
}

// NewCollector creates a collector and registers it on reg. A nil reg
// leaves the metrics unregistered.
func NewCollector(reg prometheus.Registerer, namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Collector{
		CandidateFitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidate_fits_total",
				Help:      "Total number of candidate model evaluations by status",
			},
			[]string{"status"}, // "scored", "fit_failed", "forecast_invalid"
		),

		CandidateFitDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "candidate_fit_duration_seconds",
				Help:      "Duration of a single candidate fit and score in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
		),

		SelectionFallbackTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "selection_fallback_total",
				Help:      "Total number of selections that fell back to the default order",
			},
		),

		ForecastsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "forecasts_total",
				Help:      "Total number of final forecasts by outcome",
			},
			[]string{"outcome"}, // "valid", "invalid"
		),

		PipelineRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_runs_total",
				Help:      "Total number of pipeline runs by result",
			},
			[]string{"result"}, // "ok", "degraded", "failed"
		),

		PipelineRunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_run_duration_seconds",
				Help:      "Duration of a full pipeline run in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
		),
	}
}

// ObserveCandidate records one evaluated candidate
func (c *Collector) ObserveCandidate(status string, elapsed time.Duration) {
	c.CandidateFitsTotal.WithLabelValues(status).Inc()
	c.CandidateFitDuration.Observe(elapsed.Seconds())
}

// ObserveFallback records a selection that used the fallback order
func (c *Collector) ObserveFallback() {
	c.SelectionFallbackTotal.Inc()
}

// ObserveForecast records a final forecast outcome
func (c *Collector) ObserveForecast(outcome string) {
	c.ForecastsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRun records a finished pipeline run
func (c *Collector) ObserveRun(result string, elapsed time.Duration) {
	c.PipelineRunsTotal.WithLabelValues(result).Inc()
	c.PipelineRunDuration.Observe(elapsed.Seconds())
}

// Push sends everything gathered by g to a Prometheus Pushgateway under job.
func Push(ctx context.Context, url, job string, g prometheus.Gatherer) error {
	if url == "" {
		return fmt.Errorf("pushgateway url is required")
	}
	if job == "" {
		job = DefaultNamespace
	}

	if err := push.New(url, job).Gatherer(g).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
