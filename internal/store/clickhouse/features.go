package clickhouse

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"quarterfeat/internal/model"
)

const (
	defaultTable = "quarter_features"
	insertChunk  = 2000 // records per INSERT; each record is one row per metric
)

// FeatureStore writes window records as (company, end_date, metric, value) rows.
// It satisfies model.RecordWriter.
type FeatureStore struct {
	client *Client
	table  string
	log    zerolog.Logger
}

// NewFeatureStore wraps a client. An empty table selects "quarter_features".
func NewFeatureStore(client *Client, table string, log zerolog.Logger) *FeatureStore {
	if table == "" {
		table = defaultTable
	}
	return &FeatureStore{client: client, table: table, log: log}
}

// SchemaStatements returns the DDL for the feature table.
// ReplacingMergeTree keeps the newest write per key, so reruns converge.
func SchemaStatements(table string) []string {
	return []string{fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			company     LowCardinality(String),
			end_date    Date,
			metric      LowCardinality(String),
			value       Nullable(Float64),
			inserted_at DateTime DEFAULT now()
		)
		ENGINE = ReplacingMergeTree(inserted_at)
		ORDER BY (company, metric, end_date)
	`, table)}
}

// InitSchema creates the feature table if needed.
func (s *FeatureStore) InitSchema(ctx context.Context) error {
	return s.client.InitSchema(ctx, SchemaStatements(s.table))
}

// WriteRecords inserts every metric of every record, chunked into multi-row
// INSERTs. Undefined statistics are stored as NULL.
func (s *FeatureStore) WriteRecords(ctx context.Context, records []model.WindowRecord) error {
	for start := 0; start < len(records); start += insertChunk {
		end := min(start+insertChunk, len(records))
		began := time.Now()
		q, args := buildInsert(s.table, records[start:end])
		if _, err := s.client.DB().ExecContext(ctx, q, args...); err != nil {
			s.log.Error().Err(err).Str("table", s.table).Int("records", end-start).Msg("clickhouse insert failed")
			return fmt.Errorf("clickhouse insert: %w", err)
		}
		s.log.Debug().Str("table", s.table).Int("records", end-start).Dur("elapsed", time.Since(began)).Msg("clickhouse insert ok")
	}
	return nil
}

// Point is one metric value at one end date.
type Point struct {
	EndDate time.Time
	Value   float64 // NaN when stored as NULL
}

// History returns a company's metric series ordered by end date.
func (s *FeatureStore) History(ctx context.Context, companyID, metric string) ([]Point, error) {
	q := fmt.Sprintf(`
		SELECT end_date, value
		FROM %s FINAL
		WHERE company = ? AND metric = ?
		ORDER BY end_date ASC
	`, s.table)
	rows, err := s.client.DB().QueryContext(ctx, q, companyID, metric)
	if err != nil {
		return nil, fmt.Errorf("clickhouse history: %w", err)
	}
	defer rows.Close()

	var out []Point
	for rows.Next() {
		var (
			p Point
			v *float64
		)
		if err := rows.Scan(&p.EndDate, &v); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		p.Value = math.NaN()
		if v != nil {
			p.Value = *v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Close closes the underlying client.
func (s *FeatureStore) Close() error {
	return s.client.Close()
}

func buildInsert(table string, records []model.WindowRecord) (string, []any) {
	values := make([]string, 0, len(records)*len(model.MetricNames))
	args := make([]any, 0, len(records)*len(model.MetricNames)*4)
	for i := range records {
		r := &records[i]
		for j, v := range r.Values() {
			values = append(values, "(?, ?, ?, ?)")
			var val any
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				val = v
			}
			args = append(args, r.CompanyID, r.EndDate, model.MetricNames[j], val)
		}
	}
	q := fmt.Sprintf("INSERT INTO %s (company, end_date, metric, value) VALUES %s", table, strings.Join(values, ","))
	return q, args
}
