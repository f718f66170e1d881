package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// batch ETL pipeline.
type Metrics struct {
	RecordsExtracted   prometheus.Counter
	ParseErrors        prometheus.Counter
	RecordsEnriched    prometheus.Counter
	LookupFailures     prometheus.Counter
	IncidentsPublished prometheus.Counter

	Runs            *prometheus.CounterVec // labels: outcome={success,error}
	PipelineRunning prometheus.Gauge
	LastRunUnixtime prometheus.Gauge

	RunDuration   prometheus.Histogram
	StageDuration *prometheus.HistogramVec // labels: stage={extract,parse,enrich,aggregate,publish,persist}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RecordsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shooting_etl",
			Name:      "records_extracted_total",
			Help:      "Total CSV rows read from the dataset source.",
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shooting_etl",
			Name:      "parse_errors_total",
			Help:      "Total rows rejected while parsing into incidents.",
		}),
		RecordsEnriched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shooting_etl",
			Name:      "records_enriched_total",
			Help:      "Total incidents enriched with a census population.",
		}),
		LookupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shooting_etl",
			Name:      "lookup_failures_total",
			Help:      "Total incidents whose (year, borough) missed the population table.",
		}),
		IncidentsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shooting_etl",
			Name:      "incidents_published_total",
			Help:      "Total enriched incidents written to the sink topic.",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shooting_etl",
			Name:      "runs_total",
			Help:      "Completed pipeline runs by outcome.",
		}, []string{"outcome"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shooting_etl",
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress, 0 otherwise.",
		}),
		LastRunUnixtime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shooting_etl",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shooting_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete extract-enrich-aggregate-load run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shooting_etl",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"stage"}),
	}

	prometheus.MustRegister(
		m.RecordsExtracted,
		m.ParseErrors,
		m.RecordsEnriched,
		m.LookupFailures,
		m.IncidentsPublished,
		m.Runs,
		m.PipelineRunning,
		m.LastRunUnixtime,
		m.RunDuration,
		m.StageDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RecordsExtracted:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "shooting_etl", Name: "records_extracted_total"}),
		ParseErrors:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "shooting_etl", Name: "parse_errors_total"}),
		RecordsEnriched:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "shooting_etl", Name: "records_enriched_total"}),
		LookupFailures:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "shooting_etl", Name: "lookup_failures_total"}),
		IncidentsPublished: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "shooting_etl", Name: "incidents_published_total"}),
		Runs:               prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "shooting_etl", Name: "runs_total"}, []string{"outcome"}),
		PipelineRunning:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "shooting_etl", Name: "pipeline_running"}),
		LastRunUnixtime:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "shooting_etl", Name: "last_run_timestamp_seconds"}),
		RunDuration:        prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "shooting_etl", Name: "run_duration_seconds"}),
		StageDuration:      prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "shooting_etl", Name: "stage_duration_seconds"}, []string{"stage"}),
	}
}
