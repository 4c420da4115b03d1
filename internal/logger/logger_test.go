package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONWithService(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "test-service", "info", "json")
	require.NoError(t, err)

	l.Info().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "test-service", line["service"])
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "info", line["level"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "svc", "warn", "json")
	require.NoError(t, err)

	l.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	l.Warn().Msg("kept")
	assert.NotZero(t, buf.Len())
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "svc", "loud", "json")
	assert.Error(t, err)
}

func TestCompany_RoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, Company(ctx))

	ctx = WithCompany(ctx, "AAPL")
	assert.Equal(t, "AAPL", Company(ctx))
}

func TestCtx_AddsCompany(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "svc", "debug", "json")
	require.NoError(t, err)

	ctx := WithCompany(context.Background(), "MSFT")
	Ctx(ctx, Component(l, "batch")).Debug().Msg("x")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "MSFT", line["company"])
	assert.Equal(t, "batch", line["component"])
}
