package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarterfeat/internal/model"
)

func rec(id, end string, price float64) model.WindowRecord {
	d, _ := time.Parse(model.DateLayout, end)
	return model.WindowRecord{CompanyID: id, EndDate: d, ClosePrice: price, MeanPrice: price * 2}
}

func TestCompute(t *testing.T) {
	records := []model.WindowRecord{
		rec("B", "2020-03-31", 50),
		rec("A", "2020-06-30", 110),
		rec("A", "2020-03-31", 100),
		rec("A", "2020-09-30", 99),
		rec("A", "2020-12-31", 120),
		rec("A", "2021-03-31", 150),
	}
	changes := Compute(records, nil)
	require.Len(t, changes, len(records)*len(model.MetricNames)*2)

	// Company A first, ordered by date.
	assert.Equal(t, "A", changes[0].CompanyID)
	assert.Equal(t, "ClosePrice", changes[0].Metric)
	assert.Equal(t, 1, changes[0].Lag)
	assert.True(t, math.IsNaN(changes[0].Value))

	idx := Index(changes)
	d := func(s string) time.Time { tm, _ := time.Parse(model.DateLayout, s); return tm }

	v, ok := idx.Get("A", d("2020-06-30"), "ClosePrice_pct_diff_1")
	require.True(t, ok)
	assert.InDelta(t, 0.1, v, 1e-12)

	v, _ = idx.Get("A", d("2020-09-30"), "ClosePrice_pct_diff_1")
	assert.InDelta(t, -0.1, v, 1e-12)

	v, _ = idx.Get("A", d("2020-12-31"), "ClosePrice_pct_diff_4")
	assert.True(t, math.IsNaN(v))

	v, _ = idx.Get("A", d("2021-03-31"), "ClosePrice_pct_diff_4")
	assert.InDelta(t, 0.5, v, 1e-12)

	v, _ = idx.Get("A", d("2021-03-31"), "MeanPrice_pct_diff_4")
	assert.InDelta(t, 0.5, v, 1e-12)

	// The lag never reaches across companies.
	v, _ = idx.Get("B", d("2020-03-31"), "ClosePrice_pct_diff_1")
	assert.True(t, math.IsNaN(v))

	assert.Equal(t, "B", records[0].CompanyID, "input must not be reordered")
}

func TestCompute_ZeroAndNaN(t *testing.T) {
	records := []model.WindowRecord{
		rec("A", "2020-03-31", 0),
		rec("A", "2020-06-30", 5),
		rec("A", "2020-09-30", 0),
	}
	records[0].StdPrice = 2
	records[1].StdPrice = math.NaN()
	records[2].StdPrice = 3

	idx := Index(Compute(records, []int{1}))
	d := func(s string) time.Time { tm, _ := time.Parse(model.DateLayout, s); return tm }

	v, _ := idx.Get("A", d("2020-06-30"), "ClosePrice_pct_diff_1")
	assert.True(t, math.IsInf(v, 1))

	// 0/0 in SumDividends.
	v, _ = idx.Get("A", d("2020-06-30"), "SumDividends_pct_diff_1")
	assert.True(t, math.IsNaN(v))

	// NaN is padded from the previous record.
	v, _ = idx.Get("A", d("2020-06-30"), "StdPrice_pct_diff_1")
	assert.Equal(t, 0.0, v)
	v, _ = idx.Get("A", d("2020-09-30"), "StdPrice_pct_diff_1")
	assert.InDelta(t, 0.5, v, 1e-12)
}

func TestColumn(t *testing.T) {
	assert.Equal(t, "MACD_Hist_pct_diff_4", PctChange{Metric: model.MetricMACDHist, Lag: 4}.Column())
}
