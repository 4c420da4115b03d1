package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"quarterfeat/internal/model"
)

// Reader provides read-only access to the bar, period-end and record tables.
// It satisfies model.BarReader and model.AnchorReader.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := open(dbPath, 4)
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// Companies lists every company with at least one bar.
func (r *Reader) Companies(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT company FROM daily_bars ORDER BY company`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query companies: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite scan company: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReadBars reads one company's bars ordered by date ascending.
func (r *Reader) ReadBars(ctx context.Context, companyID string) ([]model.DailyBar, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, close, volume, dividend
		FROM daily_bars
		WHERE company = ?
		ORDER BY date ASC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query daily_bars: %w", err)
	}
	defer rows.Close()

	var bars []model.DailyBar
	for rows.Next() {
		var (
			date          string
			price, volume sql.NullFloat64
			b             = model.DailyBar{CompanyID: companyID}
		)
		if err := rows.Scan(&date, &price, &volume, &b.Dividend); err != nil {
			return nil, fmt.Errorf("sqlite scan daily_bars: %w", err)
		}
		b.Date, _ = model.ParseDate(date)
		b.Close = fromNull(price)
		b.Volume = fromNull(volume)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// ReadPeriodEnds returns every distinct period-end date.
func (r *Reader) ReadPeriodEnds(ctx context.Context) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT date FROM period_ends ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query period_ends: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("sqlite scan period_ends: %w", err)
		}
		if d, ok := model.ParseDate(s); ok {
			dates = append(dates, d)
		}
	}
	return dates, rows.Err()
}

// ReadRecords returns stored window records ordered by company and end date.
// An empty companyID reads every company.
func (r *Reader) ReadRecords(ctx context.Context, companyID string) ([]model.WindowRecord, error) {
	query := fmt.Sprintf(`SELECT company, end_date, %s FROM window_records`, strings.Join(recordColumns, ", "))
	var args []any
	if companyID != "" {
		query += ` WHERE company = ?`
		args = append(args, companyID)
	}
	query += ` ORDER BY company, end_date`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query window_records: %w", err)
	}
	defer rows.Close()

	var out []model.WindowRecord
	vals := make([]sql.NullFloat64, len(recordColumns))
	dest := make([]any, len(recordColumns)+2)
	for i := range vals {
		dest[i+2] = &vals[i]
	}
	for rows.Next() {
		var rec model.WindowRecord
		var end string
		dest[0], dest[1] = &rec.CompanyID, &end
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("sqlite scan window_records: %w", err)
		}
		rec.EndDate, _ = model.ParseDate(end)
		metrics := make([]float64, len(vals))
		for i, v := range vals {
			metrics[i] = fromNull(v)
		}
		rec.SetValues(metrics)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
