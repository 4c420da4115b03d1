package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarterfeat/internal/model"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func record(id string, end time.Time) model.WindowRecord {
	return model.WindowRecord{
		CompanyID: id, EndDate: end, ClosePrice: 12.5, StdPrice: math.NaN(),
		RSI: math.NaN(), MACD: math.NaN(), MACDSignal: math.NaN(), MACDHist: math.NaN(),
	}
}

func TestProducerWriteRecords(t *testing.T) {
	fw := &fakeWriter{}
	p := newProducer(fw, "quarter-features", zerolog.Nop())

	end := time.Date(2022, 6, 30, 0, 0, 0, 0, time.UTC)
	err := p.WriteRecords(context.Background(), []model.WindowRecord{record("ACME", end), record("BETA", end)})
	require.NoError(t, err)
	require.Len(t, fw.msgs, 2)

	m := fw.msgs[0]
	assert.Equal(t, "ACME", string(m.Key))
	assert.Equal(t, end, m.Time)
	assert.Equal(t, "ACME:2022-06-30", string(m.Headers[0].Value))

	var decoded model.WindowRecord
	require.NoError(t, json.Unmarshal(m.Value, &decoded))
	assert.Equal(t, "ACME", decoded.CompanyID)
	assert.Equal(t, 12.5, decoded.ClosePrice)
	assert.True(t, math.IsNaN(decoded.StdPrice))

	require.NoError(t, p.Close())
	assert.True(t, fw.closed)
}

func TestProducerEmptyBatch(t *testing.T) {
	fw := &fakeWriter{err: errors.New("should not be called")}
	p := newProducer(fw, "t", zerolog.Nop())
	assert.NoError(t, p.WriteRecords(context.Background(), nil))
}

func TestProducerError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker down")}
	p := newProducer(fw, "t", zerolog.Nop())
	err := p.WriteRecords(context.Background(), []model.WindowRecord{record("ACME", time.Now())})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestNewProducerValidation(t *testing.T) {
	_, err := NewProducer(ProducerConfig{Topic: "t"})
	assert.Error(t, err)
	_, err = NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)

	p, err := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}, Topic: "t"})
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestParseCompression(t *testing.T) {
	assert.Equal(t, kafka.Gzip, parseCompression("gzip"))
	assert.Equal(t, kafka.Snappy, parseCompression("snappy"))
	assert.Equal(t, kafka.Lz4, parseCompression("lz4"))
	assert.Equal(t, kafka.Zstd, parseCompression("zstd"))
	assert.Equal(t, kafka.Compression(0), parseCompression("none"))
}
