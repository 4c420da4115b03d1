package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarterfeat/config"
	"quarterfeat/internal/metrics"
	"quarterfeat/internal/model"
	sqlitestore "quarterfeat/internal/store/sqlite"
)

// writeBars writes two companies of daily bars from 2021-01-01 to 2021-07-05.
func writeBars(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("company,date,close,volume,dividend\n")
	for _, id := range []string{"ACME", "BETA"} {
		d := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; !d.After(time.Date(2021, 7, 5, 0, 0, 0, 0, time.UTC)); i++ {
			fmt.Fprintf(&b, "%s,%s,\"$1,00%d.50\",%d,0\n", id, d.Format("2006-01-02"), i%7, 1000+i)
			d = d.AddDate(0, 0, 1)
		}
	}
	path := filepath.Join(dir, "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestSplitAnchors(t *testing.T) {
	assert.Equal(t, []string{"03-31", "06-30"}, splitAnchors(" 03-31, ,06-30 "))
	assert.Nil(t, splitAnchors(""))
}

func TestFlagOverrides(t *testing.T) {
	cfg := config.Default()
	flagOverrides{db: "x.db", anchors: "03-31", out: "o.csv", workers: 3, verify: true}.apply(cfg)
	assert.Equal(t, "sqlite", cfg.Input.Source)
	assert.Equal(t, "x.db", cfg.Input.SQLitePath)
	assert.Equal(t, []string{"03-31"}, cfg.Anchors.List)
	assert.True(t, cfg.Sinks.CSV.Enabled)
	assert.Equal(t, "o.csv", cfg.Sinks.CSV.Path)
	assert.Equal(t, 3, cfg.Aggregator.Workers)
	assert.True(t, cfg.Sinks.Verify)
}

func TestExecuteCSVToCSVAndSQLite(t *testing.T) {
	dir := t.TempDir()
	periods := filepath.Join(dir, "periods.csv")
	require.NoError(t, os.WriteFile(periods, []byte("company,period_end\nACME,2020-03-31\nACME,2020-06-30\n"), 0o644))

	cfg, err := config.Load("", flagOverrides{
		bars:    writeBars(t, dir),
		periods: periods,
		out:     filepath.Join(dir, "out", "features.csv"),
	}.apply, func(c *config.Config) {
		c.Sinks.SQLite.Enabled = true
		c.Sinks.SQLite.Path = filepath.Join(dir, "out.db")
		c.Features.PctChange = true
		c.Sinks.CSV.FeaturesPath = filepath.Join(dir, "out", "pct.csv")
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	health := metrics.NewHealthStatus()

	sum, err := execute(context.Background(), cfg, zerolog.Nop(), m, health)
	require.NoError(t, err)

	// Two anchors, each hit once per company; history starts in January so
	// 03-31 has a full window.
	assert.Equal(t, 2, sum.stats.Companies)
	assert.Equal(t, 4, sum.stats.Records)
	assert.Equal(t, 4, sum.written)
	assert.Equal(t, []string{"csv", "sqlite"}, sum.sinks)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.RecordsTotal))

	f, err := os.Open(cfg.Sinks.CSV.Path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"ACME", "2021-03-31"}, rows[1][:2])
	assert.Equal(t, []string{"BETA", "2021-06-30"}, rows[4][:2])

	r, err := sqlitestore.NewReader(cfg.Sinks.SQLite.Path)
	require.NoError(t, err)
	defer r.Close()
	recs, err := r.ReadRecords(context.Background(), "ACME")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Greater(t, recs[0].ClosePrice, 1000.0)

	_, err = os.Stat(cfg.Sinks.CSV.FeaturesPath)
	assert.NoError(t, err)
}

func TestExecuteVerifiesSQLiteReadBack(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load("", flagOverrides{
		bars:    writeBars(t, dir),
		anchors: "03-31,06-30",
		verify:  true,
	}.apply, func(c *config.Config) {
		c.Sinks.SQLite.Enabled = true
		c.Sinks.SQLite.Path = filepath.Join(dir, "out.db")
	})
	require.NoError(t, err)
	require.True(t, cfg.Sinks.Verify)

	health := metrics.NewHealthStatus()
	sum, err := execute(context.Background(), cfg, zerolog.Nop(), metrics.New(prometheus.NewRegistry()), health)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.written)
	assert.Equal(t, []verifyResult{{sink: "sqlite", checked: 4}}, sum.verified)
}

func TestCompareCloses(t *testing.T) {
	d := func(s string) time.Time {
		v, err := time.Parse(model.DateLayout, s)
		require.NoError(t, err)
		return v
	}
	written := []model.WindowRecord{
		{CompanyID: "ACME", EndDate: d("2021-03-31"), ClosePrice: 10},
		{CompanyID: "ACME", EndDate: d("2021-06-30"), ClosePrice: math.NaN()},
		{CompanyID: "ACME", EndDate: d("2021-09-30"), ClosePrice: 12},
		{CompanyID: "ACME", EndDate: d("2021-12-31"), ClosePrice: 13},
	}
	stored := storedClose{
		"2021-03-31": 10,
		"2021-06-30": math.NaN(),
		"2021-09-30": 12.5,
	}
	missing, mismatched := compareCloses(written, stored)
	assert.Equal(t, 1, missing)
	assert.Equal(t, 1, mismatched)

	missing, mismatched = compareCloses(written[:2], closesOf(written))
	assert.Zero(t, missing)
	assert.Zero(t, mismatched)
}

func TestGroupByCompanyOrdersEndDates(t *testing.T) {
	late := time.Date(2021, 6, 30, 0, 0, 0, 0, time.UTC)
	early := time.Date(2021, 3, 31, 0, 0, 0, 0, time.UTC)
	by, ids := groupByCompany([]model.WindowRecord{
		{CompanyID: "BETA", EndDate: late},
		{CompanyID: "ACME", EndDate: late},
		{CompanyID: "ACME", EndDate: early},
	})
	assert.Equal(t, []string{"ACME", "BETA"}, ids)
	require.Len(t, by["ACME"], 2)
	assert.Equal(t, early, by["ACME"][0].EndDate)
}

func TestExecuteBadAnchor(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load("", flagOverrides{bars: writeBars(t, dir), anchors: "13-45"}.apply)
	require.NoError(t, err)

	_, err = execute(context.Background(), cfg, zerolog.Nop(), metrics.New(prometheus.NewRegistry()), metrics.NewHealthStatus())
	assert.Error(t, err)
}
