// Package kafka publishes window records as JSON messages keyed by company.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"quarterfeat/internal/model"
)

// ProducerConfig holds producer settings.
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	RequiredAcks int
	Compression  string
	MaxAttempts  int
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	Logger       zerolog.Logger
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes records to one topic. The Hash balancer pins every
// company to one partition, so a consumer sees its records in date order.
type Producer struct {
	w     messageWriter
	topic string
	log   zerolog.Logger
}

// NewProducer builds a synchronous kafka.Writer for cfg.Topic.
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  parseCompression(cfg.Compression),
		MaxAttempts:  cfg.MaxAttempts,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return newProducer(w, cfg.Topic, cfg.Logger), nil
}

func newProducer(w messageWriter, topic string, log zerolog.Logger) *Producer {
	return &Producer{w: w, topic: topic, log: log.With().Str("component", "kafka").Logger()}
}

// WriteRecords publishes one message per record.
func (p *Producer) WriteRecords(ctx context.Context, records []model.WindowRecord) error {
	if len(records) == 0 {
		return nil
	}
	start := time.Now()
	msgs := buildMessages(records)
	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka publish %s: %w", p.topic, err)
	}
	p.log.Debug().Str("topic", p.topic).Int("messages", len(msgs)).Dur("elapsed", time.Since(start)).Msg("published")
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Producer) Close() error {
	if p.w != nil {
		return p.w.Close()
	}
	return nil
}

func buildMessages(records []model.WindowRecord) []kafka.Message {
	msgs := make([]kafka.Message, len(records))
	for i := range records {
		r := &records[i]
		msgs[i] = kafka.Message{
			Key:   []byte(r.CompanyID),
			Value: r.JSON(),
			Time:  r.EndDate,
			Headers: []kafka.Header{
				{Key: "record-key", Value: []byte(r.Key())},
			},
		}
	}
	return msgs
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return 0
	}
}
