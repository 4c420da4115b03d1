package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"quarterfeat/internal/quarteragg"
)

// Metrics holds all Prometheus metrics for the quarterly feature job.
type Metrics struct {
	CompaniesTotal     *prometheus.CounterVec // labels: status=ok|empty|failed
	RecordsTotal       prometheus.Counter
	SkippedOccurrences *prometheus.CounterVec // labels: reason
	DuplicateRows      prometheus.Counter
	NullDateRows       prometheus.Counter
	CompanyDuration    prometheus.Histogram

	SinkWriteDur    *prometheus.HistogramVec // labels: sink
	SinkErrorsTotal *prometheus.CounterVec   // labels: sink
	SinkRecords     *prometheus.CounterVec   // labels: sink

	LastRunTimestamp prometheus.Gauge
}

// New creates the metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CompaniesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quarterfeat_companies_total",
			Help: "Companies processed, by outcome",
		}, []string{"status"}),
		RecordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quarterfeat_records_total",
			Help: "Window records produced",
		}),
		SkippedOccurrences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quarterfeat_skipped_occurrences_total",
			Help: "Anchor occurrences that produced no record",
		}, []string{"reason"}),
		DuplicateRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quarterfeat_duplicate_rows_total",
			Help: "Rows sharing a date with the following row",
		}),
		NullDateRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quarterfeat_null_date_rows_total",
			Help: "Rows dropped for a missing date",
		}),
		CompanyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quarterfeat_company_duration_seconds",
			Help:    "Time to read and aggregate one company",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		SinkWriteDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quarterfeat_sink_write_duration_seconds",
			Help:    "Latency of one batch write, by sink",
			Buckets: prometheus.DefBuckets,
		}, []string{"sink"}),
		SinkErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quarterfeat_sink_errors_total",
			Help: "Failed batch writes, by sink",
		}, []string{"sink"}),
		SinkRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quarterfeat_sink_records_total",
			Help: "Records written, by sink",
		}, []string{"sink"}),

		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quarterfeat_last_run_timestamp_seconds",
			Help: "Unix time the last batch finished",
		}),
	}

	reg.MustRegister(
		m.CompaniesTotal,
		m.RecordsTotal,
		m.SkippedOccurrences,
		m.DuplicateRows,
		m.NullDateRows,
		m.CompanyDuration,
		m.SinkWriteDur,
		m.SinkErrorsTotal,
		m.SinkRecords,
		m.LastRunTimestamp,
	)
	return m
}

// CompanyDone implements quarteragg.Observer.
func (m *Metrics) CompanyDone(res quarteragg.CompanyResult, elapsed time.Duration, err error) {
	m.CompanyDuration.Observe(elapsed.Seconds())
	switch {
	case err != nil:
		status := "failed"
		if errors.Is(err, quarteragg.ErrUnsorted) {
			status = "unsorted"
		}
		m.CompaniesTotal.WithLabelValues(status).Inc()
		return
	case len(res.Records) == 0:
		m.CompaniesTotal.WithLabelValues("empty").Inc()
	default:
		m.CompaniesTotal.WithLabelValues("ok").Inc()
	}
	m.RecordsTotal.Add(float64(len(res.Records)))
	m.DuplicateRows.Add(float64(res.Duplicates))
	m.NullDateRows.Add(float64(res.NullDates))
	if res.Skipped > 0 {
		m.SkippedOccurrences.WithLabelValues("insufficient_history").Add(float64(res.Skipped))
	}
}

// SinkWritten records the outcome of one batch write to a sink.
func (m *Metrics) SinkWritten(sink string, records int, elapsed time.Duration, err error) {
	m.SinkWriteDur.WithLabelValues(sink).Observe(elapsed.Seconds())
	if err != nil {
		m.SinkErrorsTotal.WithLabelValues(sink).Inc()
		return
	}
	m.SinkRecords.WithLabelValues(sink).Add(float64(records))
}

// RunFinished stamps the completion time of a batch.
func (m *Metrics) RunFinished(t time.Time) {
	m.LastRunTimestamp.Set(float64(t.Unix()))
}
