package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	webhookEventRunFinished = "quarteragg.run.finished"
	webhookUserAgent        = "quarterfeat-notify/1"
	maxErrorBody            = 512
)

// webhookEvent is the JSON body posted for every alert.
type webhookEvent struct {
	Event    string         `json:"event"`
	Source   string         `json:"source"`
	Severity AlertLevel     `json:"severity"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Run      map[string]any `json:"run,omitempty"`
	SentAt   time.Time      `json:"sent_at"`
}

// WebhookOption configures a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithHTTPClient replaces the HTTP client. It overrides WithWebhookTimeout.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *WebhookNotifier) { w.client = c }
}

// WithWebhookTimeout bounds each delivery. Non-positive keeps the default.
func WithWebhookTimeout(d time.Duration) WebhookOption {
	return func(w *WebhookNotifier) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithBearerToken adds an Authorization header. Empty sends none.
func WithBearerToken(token string) WebhookOption {
	return func(w *WebhookNotifier) { w.token = token }
}

// WithSource sets the source field of posted events.
func WithSource(name string) WebhookOption {
	return func(w *WebhookNotifier) { w.source = name }
}

// WebhookNotifier posts run alerts as JSON events to an HTTP endpoint.
type WebhookNotifier struct {
	url     string
	token   string
	source  string
	timeout time.Duration
	client  *http.Client
	now     func() time.Time
	log     zerolog.Logger
}

// NewWebhookNotifier creates a notifier for url with a 10s delivery timeout.
func NewWebhookNotifier(url string, log zerolog.Logger, opts ...WebhookOption) *WebhookNotifier {
	w := &WebhookNotifier{
		url:     url,
		source:  "quarteragg",
		timeout: 10 * time.Second,
		now:     time.Now,
		log:     log,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.client == nil {
		w.client = &http.Client{Timeout: w.timeout}
	}
	return w
}

// Send posts one event. Any status outside 2xx is an error carrying the start
// of the response body.
func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(webhookEvent{
		Event:    webhookEventRunFinished,
		Source:   w.source,
		Severity: alert.Level,
		Title:    alert.Title,
		Text:     alert.Message,
		Run:      alert.Fields,
		SentAt:   w.now().UTC(),
	}); err != nil {
		return fmt.Errorf("webhook: encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, &body)
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("webhook: %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	w.log.Debug().Str("severity", string(alert.Level)).Str("title", alert.Title).Int("status", resp.StatusCode).Msg("webhook event delivered")
	return nil
}
