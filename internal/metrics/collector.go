// Package metrics exports migration outcomes to Prometheus.
package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rflorenc/racktables-migrator/internal/models"
)

const namespace = "racktables_migrator"

// Collector counts resolution outcomes, runs and synthesized gaps. It is
// the run observer in serve mode and a prometheus.Collector at the same time.
type Collector struct {
	records     *prometheus.CounterVec
	runs        *prometheus.CounterVec
	gaps        *prometheus.CounterVec
	runDuration prometheus.Histogram
}

// NewCollector returns a Collector with all series at zero.
func NewCollector() *Collector {
	return &Collector{
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_total",
				Help:      "Records resolved, by entity type and action.",
			}, []string{"type", "action"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Finished migration runs, by result.",
			}, []string{"result"},
		),
		gaps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gaps_total",
				Help:      "Unallocated ranges found by the address-space analysis.",
			}, []string{"family"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of a migration run.",
				Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600, 10800},
			},
		),
	}
}

// NewRegistry returns a private registry holding c. Serve mode exposes
// this one rather than the global default.
func NewRegistry(c *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	return reg
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.records.Describe(ch)
	c.runs.Describe(ch)
	c.gaps.Describe(ch)
	c.runDuration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.records.Collect(ch)
	c.runs.Collect(ch)
	c.gaps.Collect(ch)
	c.runDuration.Collect(ch)
}

func (c *Collector) Outcome(t models.EntityType, a models.Action) {
	c.records.WithLabelValues(t.String(), string(a)).Inc()
}

func (c *Collector) Gaps(family string, n int) {
	c.gaps.WithLabelValues(family).Add(float64(n))
}

func (c *Collector) RunFinished(report *models.RunReport, err error) {
	c.runs.WithLabelValues(Result(err)).Inc()
	if report != nil && report.FinishedAt != nil {
		c.runDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}
}

// Result classifies how a run ended.
func Result(err error) string {
	switch {
	case err == nil:
		return models.JobCompleted
	case errors.Is(err, context.Canceled):
		return models.JobCancelled
	}
	return models.JobFailed
}
