package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarterfeat/internal/model"
)

type memSink struct {
	mu      sync.Mutex
	got     []model.WindowRecord
	calls   int
	failFor int // fail the first failFor calls
	closed  bool
}

func (s *memSink) WriteRecords(_ context.Context, recs []model.WindowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failFor {
		return errors.New("unavailable")
	}
	s.got = append(s.got, recs...)
	return nil
}

func (s *memSink) Close() error { s.closed = true; return nil }

func records(n int) []model.WindowRecord {
	out := make([]model.WindowRecord, n)
	for i := range out {
		out[i] = model.WindowRecord{CompanyID: "A", ClosePrice: float64(i)}
	}
	return out
}

func TestMultiWritesEverySink(t *testing.T) {
	a, b := &memSink{}, &memSink{}
	var observed []string
	m := NewMulti([]Sink{{"a", a}, {"b", b}}, WithChunkSize(4),
		WithWriteObserver(func(sink string, n int, _ time.Duration, err error) {
			observed = append(observed, sink)
		}))

	require.NoError(t, m.WriteRecords(context.Background(), records(10)))
	assert.Len(t, a.got, 10)
	assert.Len(t, b.got, 10)
	assert.Equal(t, 3, a.calls)
	assert.Equal(t, []string{"a", "a", "a", "b", "b", "b"}, observed)
	assert.Equal(t, []string{"a", "b"}, m.Names())

	require.NoError(t, m.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestMultiBreakerCutsOffFailingSink(t *testing.T) {
	bad, good := &memSink{failFor: 100}, &memSink{}
	m := NewMulti([]Sink{{"bad", bad}, {"good", good}}, WithChunkSize(1))

	err := m.WriteRecords(context.Background(), records(10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink bad")
	// Three failures open the breaker; the remaining chunks are skipped.
	assert.Equal(t, 3, bad.calls)
	assert.Len(t, good.got, 10)
}

func TestMultiRecoversFromTransientFailure(t *testing.T) {
	flaky := &memSink{failFor: 1}
	m := NewMulti([]Sink{{"flaky", flaky}}, WithChunkSize(2))

	err := m.WriteRecords(context.Background(), records(6))
	require.Error(t, err)
	assert.Len(t, flaky.got, 4)
}

func TestBreaker(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker(2, time.Second)
	b.now = func() time.Time { return now }
	fail := errors.New("fail")

	var transitions []string
	b.OnStateChange = func(from, to BreakerState) { transitions = append(transitions, to.String()) }

	assert.Equal(t, BreakerClosed, b.State())
	assert.ErrorIs(t, b.Do(func() error { return fail }), fail)
	assert.Equal(t, BreakerClosed, b.State())
	assert.ErrorIs(t, b.Do(func() error { return fail }), fail)
	assert.Equal(t, BreakerOpen, b.State())

	called := false
	assert.ErrorIs(t, b.Do(func() error { called = true; return nil }), ErrBreakerOpen)
	assert.False(t, called)

	// Failed probe reopens.
	now = now.Add(2 * time.Second)
	assert.ErrorIs(t, b.Do(func() error { return fail }), fail)
	assert.Equal(t, BreakerOpen, b.State())

	// Successful probe closes.
	now = now.Add(2 * time.Second)
	require.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, BreakerClosed, b.State())

	assert.Equal(t, []string{"open", "half-open", "open", "half-open", "closed"}, transitions)
}
