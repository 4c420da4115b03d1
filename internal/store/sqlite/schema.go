package sqlite

import (
	"database/sql"
	"fmt"
	"math"
	"strings"

	"quarterfeat/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const dsnOptions = "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"

func open(path string, conns int) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+dsnOptions)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	return db, nil
}

// recordColumns maps model.MetricNames to column names.
var recordColumns = func() []string {
	cols := make([]string, len(model.MetricNames))
	for i, n := range model.MetricNames {
		cols[i] = strings.ToLower(n)
	}
	return cols
}()

func createSchema(db *sql.DB) error {
	metricDefs := make([]string, len(recordColumns))
	for i, c := range recordColumns {
		metricDefs[i] = c + " REAL"
	}
	_, err := db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS daily_bars (
			company  TEXT NOT NULL,
			date     TEXT NOT NULL,
			close    REAL,
			volume   REAL,
			dividend REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (company, date)
		);

		CREATE TABLE IF NOT EXISTS period_ends (
			company TEXT NOT NULL,
			date    TEXT NOT NULL,
			PRIMARY KEY (company, date)
		);

		CREATE TABLE IF NOT EXISTS window_records (
			company  TEXT NOT NULL,
			end_date TEXT NOT NULL,
			%s,
			PRIMARY KEY (company, end_date)
		);
	`, strings.Join(metricDefs, ",\n\t\t\t")))
	return err
}

// nullFloat stores NaN and infinities as NULL.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
