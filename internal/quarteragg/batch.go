package quarteragg

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quarterfeat/internal/logger"
	"quarterfeat/internal/model"
)

// Observer receives per-company outcomes, e.g. for metrics.
type Observer interface {
	CompanyDone(res CompanyResult, elapsed time.Duration, err error)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(res CompanyResult, elapsed time.Duration, err error)

func (f ObserverFunc) CompanyDone(res CompanyResult, elapsed time.Duration, err error) {
	f(res, elapsed, err)
}

// Observers fans a notification out to several observers.
type Observers []Observer

func (o Observers) CompanyDone(res CompanyResult, elapsed time.Duration, err error) {
	for _, obs := range o {
		obs.CompanyDone(res, elapsed, err)
	}
}

// Stats summarizes a batch run.
type Stats struct {
	Companies          int
	CompaniesEmpty     int // companies that produced no records
	CompaniesFailed    int
	Rows               int
	NullDates          int
	Duplicates         int
	Occurrences        int
	SkippedOccurrences int
	Records            int
}

// Report is the result of a batch run. Records are sorted by company, then end
// date, so identical input gives identical output.
type Report struct {
	Records []model.WindowRecord
	Stats   Stats
}

// Batch runs an Aggregator over every company of a BarReader with a bounded
// pool of workers. Companies are independent; a failing company is logged,
// counted and skipped.
type Batch struct {
	agg      *Aggregator
	workers  int
	log      zerolog.Logger
	observer Observer
}

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithWorkers sets the number of concurrent workers (<= 0 means NumCPU).
func WithWorkers(n int) BatchOption {
	return func(b *Batch) { b.workers = n }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) BatchOption {
	return func(b *Batch) { b.log = l }
}

// WithObserver sets the per-company observer.
func WithObserver(o Observer) BatchOption {
	return func(b *Batch) { b.observer = o }
}

// NewBatch creates a batch runner.
func NewBatch(agg *Aggregator, opts ...BatchOption) *Batch {
	b := &Batch{agg: agg, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(b)
	}
	if b.workers <= 0 {
		b.workers = runtime.NumCPU()
	}
	return b
}

type companyOutcome struct {
	res CompanyResult
	err error
}

// Run aggregates every company in src. Per-company failures are returned joined
// alongside the records produced by the other companies. Cancelling ctx stops
// dispatching new companies; the report then holds what completed.
func (b *Batch) Run(ctx context.Context, src model.BarReader, anchors model.AnchorSet) (Report, error) {
	if len(anchors) == 0 {
		return Report{}, model.ErrEmptyAnchors
	}
	ids, err := src.Companies(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list companies: %w", err)
	}

	b.log.Info().
		Int("companies", len(ids)).
		Int("workers", b.workers).
		Str("anchors", anchors.String()).
		Str("provider", b.agg.Provider().Name()).
		Str("variance", b.agg.Variance().Name()).
		Msg("batch starting")
	start := time.Now()

	jobs := make(chan string)
	outcomes := make(chan companyOutcome, b.workers)

	var wg sync.WaitGroup
	for w := 0; w < b.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				outcomes <- b.runCompany(ctx, src, id, anchors)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, id := range ids {
			select {
			case <-ctx.Done():
				return
			case jobs <- id:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var (
		report Report
		errs   []error
	)
	for o := range outcomes {
		st := &report.Stats
		st.Companies++
		if o.err != nil {
			st.CompaniesFailed++
			errs = append(errs, o.err)
			continue
		}
		st.Rows += o.res.Rows
		st.NullDates += o.res.NullDates
		st.Duplicates += o.res.Duplicates
		st.Occurrences += o.res.Occurrences
		st.SkippedOccurrences += o.res.Skipped
		st.Records += len(o.res.Records)
		if len(o.res.Records) == 0 {
			st.CompaniesEmpty++
		}
		report.Records = append(report.Records, o.res.Records...)
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}

	sort.Slice(report.Records, func(i, j int) bool {
		ri, rj := &report.Records[i], &report.Records[j]
		if ri.CompanyID != rj.CompanyID {
			return ri.CompanyID < rj.CompanyID
		}
		return ri.EndDate.Before(rj.EndDate)
	})

	b.log.Info().
		Int("companies", report.Stats.Companies).
		Int("records", report.Stats.Records).
		Int("skipped_occurrences", report.Stats.SkippedOccurrences).
		Int("failed", report.Stats.CompaniesFailed).
		Dur("elapsed", time.Since(start)).
		Msg("batch complete")

	return report, errors.Join(errs...)
}

func (b *Batch) runCompany(ctx context.Context, src model.BarReader, id string, anchors model.AnchorSet) companyOutcome {
	ctx = logger.WithCompany(ctx, id)
	log := logger.Ctx(ctx, b.log)
	start := time.Now()

	bars, err := src.ReadBars(ctx, id)
	if err != nil {
		err = fmt.Errorf("read bars for %s: %w", id, err)
		log.Error().Err(err).Msg("read failed")
		b.observe(CompanyResult{CompanyID: id}, start, err)
		return companyOutcome{res: CompanyResult{CompanyID: id}, err: err}
	}

	res, err := b.agg.Aggregate(id, bars, anchors)
	if err != nil {
		log.Error().Err(err).Msg("aggregate failed")
		b.observe(res, start, err)
		return companyOutcome{res: res, err: err}
	}

	if res.Duplicates > 0 {
		log.Warn().Int("duplicates", res.Duplicates).Msg("repeated dates; last row per date used")
	}
	log.Debug().
		Int("rows", res.Rows).
		Int("occurrences", res.Occurrences).
		Int("skipped", res.Skipped).
		Int("records", len(res.Records)).
		Msg("company aggregated")
	b.observe(res, start, nil)
	return companyOutcome{res: res}
}

func (b *Batch) observe(res CompanyResult, start time.Time, err error) {
	if b.observer != nil {
		b.observer.CompanyDone(res, time.Since(start), err)
	}
}
