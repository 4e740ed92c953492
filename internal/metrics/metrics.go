// Package metrics exposes Prometheus metrics for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MetricsNamespace is the namespace for all pipeline metrics.
	MetricsNamespace = "ingestion"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	RunsTotal         *prometheus.CounterVec
	RunsActive        prometheus.Gauge
	RunDurationSecs   prometheus.Histogram
	PagesScrapedTotal prometheus.Counter
	PagesSkippedTotal prometheus.Counter
	StagedTotal       *prometheus.CounterVec
	PromotionsTotal   *prometheus.CounterVec
	ModelRepairsTotal prometheus.Counter
}

// New creates and registers all pipeline metrics.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "agent_runs_total",
				Help:      "Total number of agent runs by outcome",
			},
			[]string{"status"},
		),
		RunsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: MetricsNamespace,
				Name:      "agent_runs_active",
				Help:      "Number of agent runs currently executing",
			},
		),
		RunDurationSecs: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: MetricsNamespace,
				Name:      "agent_run_duration_seconds",
				Help:      "Duration of agent runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~7min
			},
		),
		PagesScrapedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "pages_scraped_total",
				Help:      "Total number of pages fetched and extracted",
			},
		),
		PagesSkippedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "pages_skipped_total",
				Help:      "Total number of pages skipped as duplicates within the freshness window",
			},
		),
		StagedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "staged_opportunities_total",
				Help:      "Total number of staged opportunity writes by action",
			},
			[]string{"action"}, // created, merged
		),
		PromotionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "promotions_total",
				Help:      "Total number of promotion attempts by outcome",
			},
			[]string{"outcome"}, // promoted, noop, refused, failed
		),
		ModelRepairsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "model_output_repairs_total",
				Help:      "Total number of model replies that needed JSON repair before parsing",
			},
		),
	}
}

// RecordRunStarted increments the active run gauge.
func (m *Metrics) RecordRunStarted() {
	if m == nil {
		return
	}
	m.RunsActive.Inc()
}

// RecordRunFinished records a completed or failed run.
func (m *Metrics) RecordRunFinished(status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RunsActive.Dec()
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDurationSecs.Observe(durationSeconds)
}

// RecordPageScraped counts an extracted page.
func (m *Metrics) RecordPageScraped() {
	if m == nil {
		return
	}
	m.PagesScrapedTotal.Inc()
}

// RecordPageSkipped counts a freshness-window skip.
func (m *Metrics) RecordPageSkipped() {
	if m == nil {
		return
	}
	m.PagesSkippedTotal.Inc()
}

// RecordStaged counts a staging write.
func (m *Metrics) RecordStaged(action string) {
	if m == nil {
		return
	}
	m.StagedTotal.WithLabelValues(action).Inc()
}

// RecordPromotion counts a promotion attempt outcome.
func (m *Metrics) RecordPromotion(outcome string) {
	if m == nil {
		return
	}
	m.PromotionsTotal.WithLabelValues(outcome).Inc()
}

// RecordModelRepair counts a model reply that needed repair.
func (m *Metrics) RecordModelRepair() {
	if m == nil {
		return
	}
	m.ModelRepairsTotal.Inc()
}
