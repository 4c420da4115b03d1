// Package logger provides structured logging using zerolog.
// It sets up a JSON (or console) logger with service-level context and provides
// company propagation through context.Context.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const companyKey ctxKey = "company"

// Init creates and returns a structured logger for the given service, writing
// to stdout. format is "json" or "console".
func Init(service, level, format string) (zerolog.Logger, error) {
	return New(os.Stdout, service, level, format)
}

// New builds a logger on an arbitrary writer and installs it as the zerolog
// global logger so package-level log calls share the same output.
func New(w io.Writer, service, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level: %w", err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := w
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	l := zerolog.New(out).Level(lvl).With().
		Timestamp().
		Str("service", service).
		Logger()

	log.Logger = l
	return l, nil
}

// Component returns a child logger tagged with a component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// WithCompany stores the company being processed in the context.
func WithCompany(ctx context.Context, companyID string) context.Context {
	return context.WithValue(ctx, companyKey, companyID)
}

// Company extracts the company ID from context. Returns "" if not set.
func Company(ctx context.Context) string {
	if v, ok := ctx.Value(companyKey).(string); ok {
		return v
	}
	return ""
}

// Ctx returns l enriched with the company from ctx, if any.
// Usage: logger.Ctx(ctx, l).Info().Msg("done")
func Ctx(ctx context.Context, l zerolog.Logger) *zerolog.Logger {
	if id := Company(ctx); id != "" {
		l = l.With().Str("company", id).Logger()
	}
	return &l
}
