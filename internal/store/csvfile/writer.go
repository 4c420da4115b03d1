package csvfile

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"quarterfeat/internal/features"
	"quarterfeat/internal/model"
)

// Writer writes window records as CSV, one row per record. Undefined values
// are left empty. It satisfies model.RecordWriter.
type Writer struct {
	f   *os.File
	buf *bufio.Writer
	w   *csv.Writer
	row []string
}

// Create opens path for writing, creating parent directories, and writes the header.
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(f)
	w := &Writer{f: f, buf: buf, w: csv.NewWriter(buf), row: make([]string, len(model.MetricNames)+2)}

	header := append([]string{"company", "end_date"}, model.MetricNames...)
	if err := w.w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// WriteRecords appends records.
func (w *Writer) WriteRecords(_ context.Context, records []model.WindowRecord) error {
	for i := range records {
		r := &records[i]
		w.row[0] = r.CompanyID
		w.row[1] = r.EndDate.Format(model.DateLayout)
		for j, v := range r.Values() {
			w.row[j+2] = formatFloat(v)
		}
		if err := w.w.Write(w.row); err != nil {
			return fmt.Errorf("write %s: %w", r.Key(), err)
		}
	}
	w.w.Flush()
	return w.w.Error()
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		w.f.Close()
		return err
	}
	if err := w.buf.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// WritePctChanges writes lag features in wide form: one row per company and
// end date, one column per metric and lag (e.g. "ClosePrice_pct_diff_4").
// Rows and columns keep the order of their first appearance in changes.
func WritePctChanges(path string, changes []features.PctChange) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	type rowKey struct {
		company string
		end     time.Time
	}
	var (
		rows    []rowKey
		columns []string
		seenRow = make(map[rowKey]bool)
		seenCol = make(map[string]bool)
	)
	for _, c := range changes {
		k := rowKey{c.CompanyID, c.EndDate}
		if !seenRow[k] {
			seenRow[k] = true
			rows = append(rows, k)
		}
		if col := c.Column(); !seenCol[col] {
			seenCol[col] = true
			columns = append(columns, col)
		}
	}
	idx := features.Index(changes)

	buf := bufio.NewWriter(f)
	w := csv.NewWriter(buf)
	if err := w.Write(append([]string{"company", "end_date"}, columns...)); err != nil {
		return err
	}
	row := make([]string, len(columns)+2)
	for _, k := range rows {
		row[0], row[1] = k.company, k.end.Format(model.DateLayout)
		for i, col := range columns {
			row[i+2] = ""
			if v, ok := idx.Get(k.company, k.end, col); ok {
				row[i+2] = formatFloat(v)
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
