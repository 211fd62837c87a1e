package pipeline

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pevans/confpapers/corpus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "confpapers"

// Metrics holds the Prometheus collectors for one invocation. A scrape is a
// batch job, so the collectors live in their own registry and are exported
// as a node_exporter textfile rather than served.
type Metrics struct {
	registry *prometheus.Registry

	// UnitsTotal counts finished units, labeled by conference and status.
	UnitsTotal *prometheus.CounterVec

	// UnitDuration observes unit wall time in seconds, labeled by format.
	UnitDuration *prometheus.HistogramVec

	// PapersScraped counts papers returned by adapters, labeled by conference.
	PapersScraped *prometheus.CounterVec

	// RowsScraped counts flattened rows, labeled by conference.
	RowsScraped *prometheus.CounterVec

	// RowsAdmitted counts rows that were new to the corpus.
	RowsAdmitted prometheus.Counter

	// RowsDuplicate counts scraped rows the corpus already held.
	RowsDuplicate prometheus.Counter

	// RequestsTotal counts HTTP attempts, labeled by status code ("0" when no
	// response arrived).
	RequestsTotal *prometheus.CounterVec

	// RequestDuration observes HTTP attempt latency in seconds.
	RequestDuration prometheus.Histogram

	// LastSuccess is the Unix time of the last run that persisted its output.
	LastSuccess prometheus.Gauge
}

// NewMetrics creates a Metrics instance with a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		UnitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_total",
			Help:      "Total number of conference years processed",
		}, []string{"conference", "status"}),
		UnitDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "unit_duration_seconds",
			Help:      "Duration of one conference year scrape in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		}, []string{"format"}),
		PapersScraped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_scraped_total",
			Help:      "Total number of papers read from conference sites",
		}, []string{"conference"}),
		RowsScraped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_scraped_total",
			Help:      "Total number of paper, author, affiliation rows produced",
		}, []string{"conference"}),
		RowsAdmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_admitted_total",
			Help:      "Total number of rows added to the corpus",
		}),
		RowsDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_duplicate_total",
			Help:      "Total number of scraped rows already present in the corpus",
		}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP request attempts",
		}, []string{"code"}),
		RequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP request attempts in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that wrote its output",
		}),
	}
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one HTTP attempt. Its signature matches
// fetch.Observer.
func (m *Metrics) ObserveRequest(statusCode int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	m.RequestDuration.Observe(elapsed.Seconds())
}

// RecordUnit records the outcome of one unit.
func (m *Metrics) RecordUnit(u UnitResult) {
	conf := string(u.Conference)
	m.UnitsTotal.WithLabelValues(conf, string(u.Status)).Inc()
	if u.Format != "" {
		m.UnitDuration.WithLabelValues(u.Format).Observe(u.Duration.Seconds())
	}
	m.PapersScraped.WithLabelValues(conf).Add(float64(u.Papers))
	m.RowsScraped.WithLabelValues(conf).Add(float64(len(u.Records)))
}

// RecordMerge records how many scraped rows were new.
func (m *Metrics) RecordMerge(scraped int, admitted []corpus.Record) {
	m.RowsAdmitted.Add(float64(len(admitted)))
	m.RowsDuplicate.Add(float64(scraped - len(admitted)))
}

// RecordSuccess stamps the time of a run that persisted its output.
func (m *Metrics) RecordSuccess(at time.Time) {
	m.LastSuccess.Set(float64(at.Unix()))
}

// WriteTextfile writes every collector in the Prometheus text format for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
