package model

import (
	"context"
	"time"
)

// ── Storage Port Interfaces ──
// These interfaces decouple the aggregation pipeline from concrete storage
// (CSV, SQLite, Redis, ClickHouse, Kafka). Each implementation satisfies one or
// more of these interfaces.

// BarReader reads daily bars grouped by company.
type BarReader interface {
	// Companies lists every company with at least one bar, ascending.
	Companies(ctx context.Context) ([]string, error)

	// ReadBars returns one company's bars ordered by date ascending.
	ReadBars(ctx context.Context, companyID string) ([]DailyBar, error)
}

// AnchorReader reads the fiscal period-end dates anchors are derived from.
type AnchorReader interface {
	// ReadPeriodEnds returns every distinct period-end date across companies.
	ReadPeriodEnds(ctx context.Context) ([]time.Time, error)
}

// RecordWriter persists or publishes window records.
type RecordWriter interface {
	// WriteRecords writes a batch of records.
	WriteRecords(ctx context.Context, records []WindowRecord) error

	// Close releases underlying resources.
	Close() error
}
