// Package metrics defines the Prometheus collectors for a pipeline run and
// writes them to a node-exporter textfile when the run ends.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Item results recorded under contentpipe_items_total.
const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
	ResultSkipped   = "skipped"
	ResultPlanned   = "planned"
)

// Metrics holds all collectors for one run. The zero value is not usable;
// a nil *Metrics ignores every observation.
type Metrics struct {
	registry         *prometheus.Registry
	ItemsTotal       *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	TokensTotal      *prometheus.CounterVec
	CostTotal        prometheus.Counter
	BudgetHaltsTotal prometheus.Counter
	LastRunTimestamp prometheus.Gauge
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentpipe_items_total",
				Help: "Items handled per stage by result.",
			},
			[]string{"stage", "result"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contentpipe_stage_duration_seconds",
				Help:    "Per-item stage execution time in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"stage"},
		),
		TokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentpipe_generation_tokens_total",
				Help: "Generation tokens consumed by direction (input, output).",
			},
			[]string{"direction"},
		),
		CostTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "contentpipe_generation_cost_usd_total",
				Help: "Generation spend in US dollars.",
			},
		),
		BudgetHaltsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "contentpipe_budget_halts_total",
				Help: "Runs halted by the daily budget gate.",
			},
		),
		LastRunTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "contentpipe_last_run_timestamp_seconds",
				Help: "Unix time the metrics file was last written.",
			},
		),
	}
	m.registry.MustRegister(
		m.ItemsTotal,
		m.StageDuration,
		m.TokensTotal,
		m.CostTotal,
		m.BudgetHaltsTotal,
		m.LastRunTimestamp,
	)
	return m
}

// ObserveItem counts one item outcome for a stage.
func (m *Metrics) ObserveItem(stage, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(stage, result).Inc()
	if result == ResultSucceeded || result == ResultFailed {
		m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	}
}

// ObserveGeneration records a metered call.
func (m *Metrics) ObserveGeneration(tokensIn, tokensOut int, cost float64) {
	if m == nil {
		return
	}
	m.TokensTotal.WithLabelValues("input").Add(float64(tokensIn))
	m.TokensTotal.WithLabelValues("output").Add(float64(tokensOut))
	if cost > 0 {
		m.CostTotal.Add(cost)
	}
}

// ObserveBudgetHalt counts a budget halt.
func (m *Metrics) ObserveBudgetHalt() {
	if m == nil {
		return
	}
	m.BudgetHaltsTotal.Inc()
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the collectors in the text exposition format. An
// empty path is a no-op.
func (m *Metrics) WriteTextfile(path string, now time.Time) error {
	if m == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	m.LastRunTimestamp.Set(float64(now.Unix()))
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
