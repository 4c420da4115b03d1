// Package store fans window records out to the configured sinks.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"quarterfeat/internal/model"
)

const defaultChunkSize = 1000

// Sink is a named RecordWriter.
type Sink struct {
	Name   string
	Writer model.RecordWriter
}

// WriteObserver is notified after every chunk written to a sink.
type WriteObserver func(sink string, records int, elapsed time.Duration, err error)

// Multi writes every batch to each sink in turn. A sink that keeps failing is
// cut off by its breaker for the rest of the batch; the other sinks still get
// every record. Errors from all sinks are joined.
type Multi struct {
	sinks    []Sink
	breakers []*Breaker
	chunk    int
	observe  WriteObserver
	log      zerolog.Logger
}

// MultiOption configures a Multi.
type MultiOption func(*Multi)

// WithChunkSize sets how many records go to a sink per write.
func WithChunkSize(n int) MultiOption {
	return func(m *Multi) { m.chunk = n }
}

// WithWriteObserver sets the per-chunk observer, e.g. for metrics.
func WithWriteObserver(o WriteObserver) MultiOption {
	return func(m *Multi) { m.observe = o }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) MultiOption {
	return func(m *Multi) { m.log = l }
}

// NewMulti creates a fan-out writer. Each sink gets a breaker that opens after
// three consecutive failed chunks.
func NewMulti(sinks []Sink, opts ...MultiOption) *Multi {
	m := &Multi{sinks: sinks, chunk: defaultChunkSize, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	if m.chunk <= 0 {
		m.chunk = defaultChunkSize
	}
	m.breakers = make([]*Breaker, len(sinks))
	for i, s := range sinks {
		name := s.Name
		b := NewBreaker(3, time.Minute)
		b.OnStateChange = func(from, to BreakerState) {
			m.log.Warn().Str("sink", name).Stringer("from", from).Stringer("to", to).Msg("sink breaker state change")
		}
		m.breakers[i] = b
	}
	return m
}

// Names lists the sink names in write order.
func (m *Multi) Names() []string {
	out := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		out[i] = s.Name
	}
	return out
}

// WriteRecords writes records to every sink.
func (m *Multi) WriteRecords(ctx context.Context, records []model.WindowRecord) error {
	var errs []error
	for i, s := range m.sinks {
		if err := m.writeSink(ctx, i, records); err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) writeSink(ctx context.Context, i int, records []model.WindowRecord) error {
	s, b := m.sinks[i], m.breakers[i]
	var firstErr error
	skipped := 0
	for start := 0; start < len(records); start += m.chunk {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := records[start:min(start+m.chunk, len(records))]

		began := time.Now()
		err := b.Do(func() error { return s.Writer.WriteRecords(ctx, chunk) })
		if errors.Is(err, ErrBreakerOpen) {
			skipped += len(chunk)
			continue
		}
		if m.observe != nil {
			m.observe(s.Name, len(chunk), time.Since(began), err)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if skipped > 0 {
		m.log.Error().Str("sink", s.Name).Int("skipped", skipped).Msg("records not written while breaker open")
		if firstErr == nil {
			firstErr = ErrBreakerOpen
		}
	}
	return firstErr
}

// Close closes every sink and joins the errors.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}
