package metrics

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarterfeat/internal/model"
	"quarterfeat/internal/quarteragg"
)

func TestCompanyDone(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CompanyDone(quarteragg.CompanyResult{
		CompanyID:  "A",
		Records:    make([]model.WindowRecord, 3),
		Skipped:    1,
		Duplicates: 2,
	}, 10*time.Millisecond, nil)
	m.CompanyDone(quarteragg.CompanyResult{CompanyID: "B", NullDates: 4}, time.Millisecond, nil)
	m.CompanyDone(quarteragg.CompanyResult{CompanyID: "C"}, time.Millisecond, fmt.Errorf("wrap: %w", quarteragg.ErrUnsorted))
	m.CompanyDone(quarteragg.CompanyResult{CompanyID: "D"}, time.Millisecond, errors.New("io"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompaniesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompaniesTotal.WithLabelValues("empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompaniesTotal.WithLabelValues("unsorted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompaniesTotal.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RecordsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SkippedOccurrences.WithLabelValues("insufficient_history")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DuplicateRows))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.NullDateRows))

	families, err := reg.Gather()
	require.NoError(t, err)
	var observed uint64
	for _, mf := range families {
		if mf.GetName() == "quarterfeat_company_duration_seconds" {
			observed = mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(4), observed)
}

func TestSinkWritten(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SinkWritten("redis", 10, time.Millisecond, nil)
	m.SinkWritten("redis", 5, time.Millisecond, nil)
	m.SinkWritten("kafka", 5, time.Millisecond, errors.New("broker down"))

	assert.Equal(t, 15.0, testutil.ToFloat64(m.SinkRecords.WithLabelValues("redis")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkErrorsTotal.WithLabelValues("kafka")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SinkRecords.WithLabelValues("kafka")))
}

func TestHealthz(t *testing.T) {
	h := NewHealthStatus()
	h.SetPhase(PhaseAggregating)
	h.SetCompaniesTotal(4)
	h.CompanyDone()
	h.AddRecordsWritten(12)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "aggregating", body["phase"])
	assert.Equal(t, 0.25, body["progress"])
	assert.Equal(t, 12.0, body["records_written"])

	h.Fail(errors.New("sink down"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "sink down")
}

func TestServerHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RecordsTotal.Add(7)

	s := NewServer(":0", reg, NewHealthStatus(), zerolog.Nop())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "quarterfeat_records_total 7"))

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
