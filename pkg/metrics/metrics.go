// Package metrics defines the Prometheus metric collectors used by the
// pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	FilesLoadedTotal        *prometheus.CounterVec
	ObservationsTotal       *prometheus.CounterVec
	UnseenFeaturesDropped   prometheus.Counter
	FeatureIndexSize        prometheus.Gauge
	StageDuration           *prometheus.HistogramVec
	StageErrorsTotal        *prometheus.CounterVec
	CrossValidationAccuracy *prometheus.GaugeVec
	PredictionsTotal        *prometheus.CounterVec
	StreamEventsTotal       *prometheus.CounterVec
}

// New creates all collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FilesLoadedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_files_loaded_total",
				Help: "Sample files loaded, by corpus (train, test).",
			},
			[]string{"corpus"},
		),
		ObservationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_observations_total",
				Help: "Feature observations produced, by corpus.",
			},
			[]string{"corpus"},
		),
		UnseenFeaturesDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pipeline_unseen_features_dropped_total",
				Help: "Test observations dropped because their key was not in the training index.",
			},
		),
		FeatureIndexSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pipeline_feature_index_size",
				Help: "Number of distinct feature keys in the current training index.",
			},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_duration_seconds",
				Help:    "Pipeline stage latency in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"stage"},
		),
		StageErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_stage_errors_total",
				Help: "Pipeline stage failures by stage.",
			},
			[]string{"stage"},
		),
		CrossValidationAccuracy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pipeline_cv_accuracy",
				Help: "Mean cross-validation accuracy per grid-search candidate.",
			},
			[]string{"candidate"},
		),
		PredictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_predictions_total",
				Help: "Predictions emitted by predicted label.",
			},
			[]string{"label"},
		),
		StreamEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stream_observation_events_total",
				Help: "Observation events consumed from Kafka by result (stored, invalid, error).",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.FilesLoadedTotal,
		m.ObservationsTotal,
		m.UnseenFeaturesDropped,
		m.FeatureIndexSize,
		m.StageDuration,
		m.StageErrorsTotal,
		m.CrossValidationAccuracy,
		m.PredictionsTotal,
		m.StreamEventsTotal,
	)

	return m
}

// Handler returns the scrape handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
