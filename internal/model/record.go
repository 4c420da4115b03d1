package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// WindowRecord holds the trailing-window statistics for one company at one
// occurrence of an anchor date. NaN marks a statistic that is undefined for
// the window (e.g. StdPrice of a single-row window).
type WindowRecord struct {
	CompanyID string
	EndDate   time.Time

	ClosePrice  float64
	MinPrice    float64
	MaxPrice    float64
	StdPrice    float64
	MeanPrice   float64
	MedianPrice float64

	MinVolume    int64
	MaxVolume    int64
	StdVolume    float64
	MeanVolume   float64
	MedianVolume float64

	SumDividends   float64
	MeanDividends  float64 // over paying days only, 0 when none paid
	CountDividends int

	RSI        float64
	MACD       float64
	MACDSignal float64
	MACDHist   float64
}

// Metric names in output column order.
const (
	MetricClosePrice     = "ClosePrice"
	MetricMinPrice       = "MinPrice"
	MetricMaxPrice       = "MaxPrice"
	MetricStdPrice       = "StdPrice"
	MetricMeanPrice      = "MeanPrice"
	MetricMedianPrice    = "MedianPrice"
	MetricMinVolume      = "MinVolume"
	MetricMaxVolume      = "MaxVolume"
	MetricStdVolume      = "StdVolume"
	MetricMeanVolume     = "MeanVolume"
	MetricMedianVolume   = "MedianVolume"
	MetricSumDividends   = "SumDividends"
	MetricMeanDividends  = "MeanDividends"
	MetricCountDividends = "CountDividends"
	MetricRSI            = "RSI"
	MetricMACD           = "MACD"
	MetricMACDSignal     = "MACD_Signal"
	MetricMACDHist       = "MACD_Hist"
)

// MetricNames lists every numeric field of a WindowRecord in column order.
var MetricNames = []string{
	MetricClosePrice, MetricMinPrice, MetricMaxPrice, MetricStdPrice, MetricMeanPrice, MetricMedianPrice,
	MetricMinVolume, MetricMaxVolume, MetricStdVolume, MetricMeanVolume, MetricMedianVolume,
	MetricSumDividends, MetricMeanDividends, MetricCountDividends,
	MetricRSI, MetricMACD, MetricMACDSignal, MetricMACDHist,
}

// Key returns "company:YYYY-MM-DD".
func (r *WindowRecord) Key() string {
	return r.CompanyID + ":" + r.EndDate.Format(DateLayout)
}

// StreamKey returns the Redis stream key: "feat:quarter:{company}".
func (r *WindowRecord) StreamKey() string {
	return "feat:quarter:" + r.CompanyID
}

// LatestKey returns the Redis key holding the most recent record: "feat:quarter:latest:{company}".
func (r *WindowRecord) LatestKey() string {
	return "feat:quarter:latest:" + r.CompanyID
}

// PubSubChannel returns the channel records are announced on.
func (r *WindowRecord) PubSubChannel() string {
	return "pub:feat:quarter:" + r.CompanyID
}

// Values returns the record's metrics in MetricNames order.
func (r *WindowRecord) Values() []float64 {
	return []float64{
		r.ClosePrice, r.MinPrice, r.MaxPrice, r.StdPrice, r.MeanPrice, r.MedianPrice,
		float64(r.MinVolume), float64(r.MaxVolume), r.StdVolume, r.MeanVolume, r.MedianVolume,
		r.SumDividends, r.MeanDividends, float64(r.CountDividends),
		r.RSI, r.MACD, r.MACDSignal, r.MACDHist,
	}
}

// SetValues assigns metrics given in MetricNames order. Integer fields are
// truncated, with NaN read as 0.
func (r *WindowRecord) SetValues(v []float64) {
	if len(v) != len(MetricNames) {
		return
	}
	toInt := func(f float64) int64 {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return int64(f)
	}
	r.ClosePrice, r.MinPrice, r.MaxPrice, r.StdPrice, r.MeanPrice, r.MedianPrice = v[0], v[1], v[2], v[3], v[4], v[5]
	r.MinVolume, r.MaxVolume = toInt(v[6]), toInt(v[7])
	r.StdVolume, r.MeanVolume, r.MedianVolume = v[8], v[9], v[10]
	r.SumDividends, r.MeanDividends, r.CountDividends = v[11], v[12], int(toInt(v[13]))
	r.RSI, r.MACD, r.MACDSignal, r.MACDHist = v[14], v[15], v[16], v[17]
}

// Metric returns a single metric by name.
func (r *WindowRecord) Metric(name string) (float64, bool) {
	for i, n := range MetricNames {
		if n == name {
			return r.Values()[i], true
		}
	}
	return 0, false
}

// MarshalJSON writes undefined (NaN or infinite) statistics as null.
func (r WindowRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(MetricNames)+2)
	out["company_id"] = r.CompanyID
	out["end_date"] = r.EndDate.Format(DateLayout)
	for i, v := range r.Values() {
		out[MetricNames[i]] = nullable(v)
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the MarshalJSON form back, mapping null to NaN.
func (r *WindowRecord) UnmarshalJSON(b []byte) error {
	var in map[string]json.RawMessage
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	var rec WindowRecord
	if raw, ok := in["company_id"]; ok {
		if err := json.Unmarshal(raw, &rec.CompanyID); err != nil {
			return fmt.Errorf("company_id: %w", err)
		}
	}
	if raw, ok := in["end_date"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("end_date: %w", err)
		}
		d, ok := ParseDate(s)
		if !ok {
			return fmt.Errorf("end_date: invalid date %q", s)
		}
		rec.EndDate = d
	}
	vals := make([]float64, len(MetricNames))
	for i, name := range MetricNames {
		vals[i] = math.NaN()
		raw, ok := in[name]
		if !ok {
			continue
		}
		var v *float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if v != nil {
			vals[i] = *v
		}
	}
	rec.SetValues(vals)
	*r = rec
	return nil
}

// JSON returns the JSON-encoded record (ignoring errors, as for candles).
func (r *WindowRecord) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
