// Package notification delivers run-completion alerts to external channels.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"quarterfeat/internal/quarteragg"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel     `json:"level"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the logger.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(_ context.Context, alert Alert) error {
	ev := n.log.Info()
	switch alert.Level {
	case AlertWarning:
		ev = n.log.Warn()
	case AlertCritical:
		ev = n.log.Error()
	}
	ev.Fields(alert.Fields).Str("title", alert.Title).Msg(alert.Message)
	return nil
}

// Fanout sends to every notifier and joins the errors.
type Fanout []Notifier

func (f Fanout) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range f {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunAlert summarizes a finished batch. Any error makes it critical; failed
// companies without a run error make it a warning.
func RunAlert(stats quarteragg.Stats, written int, elapsed time.Duration, err error) Alert {
	a := Alert{
		Level: AlertInfo,
		Title: "quarter aggregation finished",
		Fields: map[string]any{
			"companies":        stats.Companies,
			"companies_failed": stats.CompaniesFailed,
			"records":          stats.Records,
			"records_written":  written,
			"skipped":          stats.SkippedOccurrences,
			"elapsed":          elapsed.Round(time.Millisecond).String(),
		},
	}
	a.Message = fmt.Sprintf("%d records from %d companies in %s",
		stats.Records, stats.Companies, elapsed.Round(time.Millisecond))
	switch {
	case err != nil:
		a.Level = AlertCritical
		a.Title = "quarter aggregation failed"
		a.Message = err.Error()
	case stats.CompaniesFailed > 0:
		a.Level = AlertWarning
		a.Message += fmt.Sprintf(", %d companies failed", stats.CompaniesFailed)
	}
	return a
}
