package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarterfeat/internal/quarteragg"
)

func TestRunAlertLevels(t *testing.T) {
	stats := quarteragg.Stats{Companies: 10, Records: 40}

	a := RunAlert(stats, 40, 1500*time.Millisecond, nil)
	assert.Equal(t, AlertInfo, a.Level)
	assert.Equal(t, "40 records from 10 companies in 1.5s", a.Message)
	assert.Equal(t, 40, a.Fields["records_written"])

	stats.CompaniesFailed = 2
	a = RunAlert(stats, 40, time.Second, nil)
	assert.Equal(t, AlertWarning, a.Level)
	assert.Contains(t, a.Message, "2 companies failed")

	a = RunAlert(stats, 0, time.Second, errors.New("sink redis: down"))
	assert.Equal(t, AlertCritical, a.Level)
	assert.Equal(t, "sink redis: down", a.Message)
}

func TestWebhookNotifier(t *testing.T) {
	var (
		got     webhookEvent
		headers http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		headers = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sent := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n := NewWebhookNotifier(srv.URL, zerolog.Nop(), WithBearerToken("s3cret"), WithSource("nightly"))
	n.now = func() time.Time { return sent }

	err := n.Send(context.Background(), Alert{Level: AlertWarning, Title: "t", Message: "m", Fields: map[string]any{"records": 3}})
	require.NoError(t, err)

	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "Bearer s3cret", headers.Get("Authorization"))
	assert.Equal(t, webhookUserAgent, headers.Get("User-Agent"))

	assert.Equal(t, webhookEventRunFinished, got.Event)
	assert.Equal(t, "nightly", got.Source)
	assert.Equal(t, AlertWarning, got.Severity)
	assert.Equal(t, "m", got.Text)
	assert.Equal(t, 3.0, got.Run["records"])
	assert.True(t, sent.Equal(got.SentAt))
}

func TestWebhookNotifierNoTokenNoAuthHeader(t *testing.T) {
	var auth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Values("Authorization")
	}))
	defer srv.Close()

	require.NoError(t, NewWebhookNotifier(srv.URL, zerolog.Nop(), WithHTTPClient(srv.Client())).
		Send(context.Background(), Alert{Title: "x"}))
	assert.Empty(t, auth)
}

func TestWebhookNotifierBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down\n" + strings.Repeat("x", 2*maxErrorBody)))
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL, zerolog.Nop(), WithWebhookTimeout(time.Second)).Send(context.Background(), Alert{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream down")
	assert.Less(t, len(err.Error()), 2*maxErrorBody)
}

func TestFanoutAndLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	failing := NewWebhookNotifier("http://127.0.0.1:0", zerolog.Nop(), WithWebhookTimeout(100*time.Millisecond))

	err := Fanout{NewLogNotifier(log), failing}.Send(context.Background(), Alert{Level: AlertCritical, Title: "t", Message: "boom"})
	assert.Error(t, err)
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"message":"boom"`)
}
