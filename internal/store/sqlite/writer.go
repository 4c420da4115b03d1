package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"quarterfeat/internal/model"
)

const (
	defaultBatchSize  = 500
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/quarterfeat.db"
	Logger zerolog.Logger
}

// Writer is a single-connection SQLite writer with transaction batching.
type Writer struct {
	db  *sql.DB
	log zerolog.Logger
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := open(cfg.DBPath, 1)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	cfg.Logger.Info().Str("path", cfg.DBPath).Msg("sqlite opened")
	return &Writer{db: db, log: cfg.Logger}, nil
}

// RunBars reads bars from barCh and inserts them in batched transactions.
// Flushes every defaultBatchSize bars OR every defaultFlushDelay, whichever first.
// Blocks until ctx is cancelled or barCh is closed and returns the number of
// bars stored and the first insert error.
func (w *Writer) RunBars(ctx context.Context, barCh <-chan model.DailyBar) (int, error) {
	batch := make([]model.DailyBar, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	var (
		stored   int
		firstErr error
	)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		n, err := w.insertBars(ctx, batch)
		if err != nil {
			w.log.Error().Err(err).Int("bars", len(batch)).Msg("bar batch insert failed")
			if firstErr == nil {
				firstErr = err
			}
		} else {
			stored += n
			w.log.Debug().Int("bars", n).Dur("elapsed", time.Since(start)).Msg("bar batch committed")
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return stored, firstErr

		case bar, ok := <-barCh:
			if !ok {
				flush()
				return stored, firstErr
			}
			batch = append(batch, bar)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// InsertBars stores bars in one transaction and returns how many were written.
// Null-dated bars have no key and are skipped. A repeated (company, date)
// replaces the earlier row.
func (w *Writer) InsertBars(ctx context.Context, bars []model.DailyBar) (int, error) {
	return w.insertBars(ctx, bars)
}

func (w *Writer) insertBars(ctx context.Context, bars []model.DailyBar) (int, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO daily_bars (company, date, close, volume, dividend)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	n := 0
	for i := range bars {
		b := &bars[i]
		if !b.HasDate() {
			continue
		}
		_, err := stmt.ExecContext(ctx, b.CompanyID, b.Date.Format(model.DateLayout),
			nullFloat(b.Close), nullFloat(b.Volume), b.Dividend)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("insert bar %s: %w", b.Key(), err)
		}
		n++
	}

	return n, tx.Commit()
}

// InsertPeriodEnds stores fiscal period-end dates. Zero dates are skipped.
func (w *Writer) InsertPeriodEnds(ctx context.Context, ends []model.PeriodEnd) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO period_ends (company, date) VALUES (?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, p := range ends {
		if p.Date.IsZero() {
			continue
		}
		if _, err := stmt.ExecContext(ctx, p.CompanyID, p.Date.Format(model.DateLayout)); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert period end: %w", err)
		}
	}
	return tx.Commit()
}

// WriteRecords upserts window records keyed by (company, end_date) in batched
// transactions. Undefined statistics are stored as NULL.
func (w *Writer) WriteRecords(ctx context.Context, records []model.WindowRecord) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(recordColumns)+2), ", ")
	query := fmt.Sprintf(`INSERT OR REPLACE INTO window_records (company, end_date, %s) VALUES (%s)`,
		strings.Join(recordColumns, ", "), placeholders)

	for start := 0; start < len(records); start += defaultBatchSize {
		end := min(start+defaultBatchSize, len(records))
		if err := w.insertRecords(ctx, query, records[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) insertRecords(ctx context.Context, query string, records []model.WindowRecord) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	args := make([]any, len(recordColumns)+2)
	for i := range records {
		r := &records[i]
		args[0] = r.CompanyID
		args[1] = r.EndDate.Format(model.DateLayout)
		for j, v := range r.Values() {
			args[j+2] = nullFloat(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert record %s: %w", r.Key(), err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
