package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarterfeat/config"
	"quarterfeat/internal/model"
	sqlitestore "quarterfeat/internal/store/sqlite"
)

func TestLoadWithGapFill(t *testing.T) {
	dir := t.TempDir()
	bars := filepath.Join(dir, "bars.csv")
	require.NoError(t, os.WriteFile(bars, []byte(
		"Ticker,Date,Close,Volume,Dividends\n"+
			"ACME,2021-03-26 00:00:00-04:00,10,100,0\n"+
			"ACME,2021-03-29 00:00:00-04:00,11,110,0.5\n"+
			"ACME,garbage,12,120,0\n"+
			"BETA,2021-03-31,5,50,0\n"), 0o644))
	periods := filepath.Join(dir, "periods.csv")
	require.NoError(t, os.WriteFile(periods, []byte("Period Ending,Company\n2020-12-31,ACME\n2021-03-31,ACME\n"), 0o644))

	cfg := config.Default()
	cfg.Input.BarsPath = bars
	cfg.Input.PeriodsPath = periods
	cfg.Input.SQLitePath = filepath.Join(dir, "q.db")
	cfg.Input.FillGaps = true

	res, err := load(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 4, res.read.Rows)
	assert.Equal(t, 1, res.read.BadDates)
	// ACME 26..29 filled to four days, plus BETA.
	assert.Equal(t, 5, res.stored)
	assert.Equal(t, 2, res.periodEnds)

	r, err := sqlitestore.NewReader(cfg.Input.SQLitePath)
	require.NoError(t, err)
	defer r.Close()

	ids, err := r.Companies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ACME", "BETA"}, ids)

	acme, err := r.ReadBars(context.Background(), "ACME")
	require.NoError(t, err)
	require.Len(t, acme, 4)
	assert.Equal(t, "2021-03-27", acme[1].Date.Format(model.DateLayout))
	assert.Equal(t, 10.0, acme[1].Close)

	ends, err := r.ReadPeriodEnds(context.Background())
	require.NoError(t, err)
	assert.Len(t, ends, 2)
}
