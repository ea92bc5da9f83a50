package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters of one export run on a private registry
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal         *prometheus.CounterVec
	RetriesTotal          prometheus.Counter
	RetriesExhaustedTotal prometheus.Counter
	BudgetWindowRequests  prometheus.Gauge
	BudgetDayRequests     prometheus.Gauge
	ActivitiesExported    prometheus.Counter
	ActivitiesSkipped     prometheus.Counter
	RowsWritten           prometheus.Counter
	ExportDuration        prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "strava2csv_requests_total",
			Help: "Total number of API request attempts by HTTP status code (0 for transport errors)",
		}, []string{"code"}),
		RetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "strava2csv_retries_total",
			Help: "Total number of retries scheduled after a failed attempt",
		}),
		RetriesExhaustedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "strava2csv_retries_exhausted_total",
			Help: "Total number of requests that failed after all attempts",
		}),
		BudgetWindowRequests: factory.NewGauge(prometheus.GaugeOpts{
			Name: "strava2csv_budget_window_requests",
			Help: "Requests issued in the current 15 minute window",
		}),
		BudgetDayRequests: factory.NewGauge(prometheus.GaugeOpts{
			Name: "strava2csv_budget_day_requests",
			Help: "Requests issued in the current UTC day",
		}),
		ActivitiesExported: factory.NewCounter(prometheus.CounterOpts{
			Name: "strava2csv_activities_exported_total",
			Help: "Total number of activities written to the export",
		}),
		ActivitiesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "strava2csv_activities_skipped_total",
			Help: "Total number of activities skipped after a failure",
		}),
		RowsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "strava2csv_rows_written_total",
			Help: "Total number of CSV rows written, headers included",
		}),
		ExportDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "strava2csv_export_duration_seconds",
			Help: "Wall clock duration of the last export",
		}),
	}
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RequestCompleted(statusCode int) {
	m.RequestsTotal.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

func (m *Metrics) RetryScheduled() {
	m.RetriesTotal.Inc()
}

func (m *Metrics) RetriesExhausted() {
	m.RetriesExhaustedTotal.Inc()
}

func (m *Metrics) BudgetUpdated(window15m, day int) {
	m.BudgetWindowRequests.Set(float64(window15m))
	m.BudgetDayRequests.Set(float64(day))
}

// ObserveExport records the outcome of an export run
func (m *Metrics) ObserveExport(exported, skipped, rows int, duration time.Duration) {
	m.ActivitiesExported.Add(float64(exported))
	m.ActivitiesSkipped.Add(float64(skipped))
	m.RowsWritten.Add(float64(rows))
	m.ExportDuration.Set(duration.Seconds())
}

// WriteFile dumps the registry in the text exposition format, for the node
// exporter textfile collector
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
