// cmd/quarteragg computes quarter-window features for every company in a
// daily-bars table and writes them to the configured sinks.
//
// Usage:
//
//	go run ./cmd/quarteragg -config=config.yaml -bars=prices.csv -periods=periods.csv -out=out/features.csv
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"quarterfeat/config"
	"quarterfeat/internal/features"
	"quarterfeat/internal/indicator"
	"quarterfeat/internal/logger"
	"quarterfeat/internal/metrics"
	"quarterfeat/internal/model"
	"quarterfeat/internal/notification"
	"quarterfeat/internal/quarteragg"
	"quarterfeat/internal/store"
	"quarterfeat/internal/store/csvfile"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "quarteragg: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "", "Path to YAML config (optional)")
	barsPath := flag.String("bars", "", "Daily bars CSV (overrides input.bars_path)")
	periodsPath := flag.String("periods", "", "Period-end CSV (overrides input.periods_path)")
	anchorList := flag.String("anchors", "", "Comma-separated MM-DD anchors (overrides anchors.list)")
	outPath := flag.String("out", "", "Write records to this CSV (enables the csv sink)")
	dbPath := flag.String("db", "", "Read bars from this SQLite database instead of CSV")
	workers := flag.Int("workers", 0, "Worker goroutines (0 = config or NumCPU)")
	verify := flag.Bool("verify", false, "Read written records back from sqlite, redis and clickhouse")
	flag.Parse()

	flags := flagOverrides{
		bars: *barsPath, periods: *periodsPath, anchors: *anchorList,
		out: *outPath, db: *dbPath, workers: *workers, verify: *verify,
	}
	cfg, err := config.Load(*cfgPath, flags.apply)
	if err != nil {
		return err
	}

	log, err := logger.Init("quarteragg", cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	health := metrics.NewHealthStatus()

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Addr, reg, health, logger.Component(log, "metrics"))
		srv.Start()
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			if err := srv.Stop(stopCtx); err != nil {
				log.Warn().Err(err).Msg("metrics server shutdown")
			}
		}()
	}

	started := time.Now()
	summary, err := execute(ctx, cfg, log, m, health)
	summary.elapsed = time.Since(started)
	if err != nil {
		health.Fail(err)
	} else {
		health.SetPhase(metrics.PhaseDone)
	}
	m.RunFinished(time.Now())
	printSummary(summary)

	alert := notification.RunAlert(summary.stats, summary.written, summary.elapsed, err)
	notifyCtx, notifyCancel := context.WithTimeout(context.Background(), cfg.Notify.Timeout+time.Second)
	defer notifyCancel()
	if nerr := newNotifier(cfg, log).Send(notifyCtx, alert); nerr != nil {
		log.Warn().Err(nerr).Msg("run notification failed")
	}
	return err
}

func newNotifier(cfg *config.Config, log zerolog.Logger) notification.Notifier {
	n := notification.Fanout{notification.NewLogNotifier(logger.Component(log, "notify"))}
	if cfg.Notify.WebhookURL != "" {
		n = append(n, notification.NewWebhookNotifier(cfg.Notify.WebhookURL, logger.Component(log, "webhook"),
			notification.WithWebhookTimeout(cfg.Notify.Timeout),
			notification.WithBearerToken(cfg.Notify.Token),
		))
	}
	return n
}

type flagOverrides struct {
	bars, periods, anchors, out, db string
	workers                         int
	verify                          bool
}

func (f flagOverrides) apply(cfg *config.Config) {
	if f.bars != "" {
		cfg.Input.Source = "csv"
		cfg.Input.BarsPath = f.bars
	}
	if f.periods != "" {
		cfg.Input.PeriodsPath = f.periods
	}
	if f.db != "" {
		cfg.Input.Source = "sqlite"
		cfg.Input.SQLitePath = f.db
	}
	if list := splitAnchors(f.anchors); len(list) > 0 {
		cfg.Anchors.List = list
	}
	if f.out != "" {
		cfg.Sinks.CSV.Enabled = true
		cfg.Sinks.CSV.Path = f.out
	}
	if f.workers > 0 {
		cfg.Aggregator.Workers = f.workers
	}
	if f.verify {
		cfg.Sinks.Verify = true
	}
}

func splitAnchors(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type summary struct {
	stats    quarteragg.Stats
	anchors  model.AnchorSet
	features int
	sinks    []string
	written  int
	verified []verifyResult
	elapsed  time.Duration
}

func execute(ctx context.Context, cfg *config.Config, log zerolog.Logger, m *metrics.Metrics, health *metrics.HealthStatus) (summary, error) {
	var sum summary

	health.SetPhase(metrics.PhaseLoading)
	src, err := openSource(ctx, cfg, logger.Component(log, "input"))
	if err != nil {
		return sum, err
	}
	defer src.Close()

	anchors, err := buildAnchors(ctx, cfg, src)
	if err != nil {
		return sum, err
	}
	sum.anchors = anchors

	companies, err := src.bars.Companies(ctx)
	if err != nil {
		return sum, fmt.Errorf("list companies: %w", err)
	}
	health.SetCompaniesTotal(len(companies))

	provider, err := indicator.NewProvider(cfg.Indicators.Provider)
	if err != nil {
		return sum, err
	}
	variance, err := quarteragg.NewVariance(cfg.Aggregator.Variance)
	if err != nil {
		return sum, err
	}
	agg := quarteragg.New(provider, variance, quarteragg.WithPartialHistory(cfg.Aggregator.PartialHistory))

	batch := quarteragg.NewBatch(agg,
		quarteragg.WithWorkers(cfg.Aggregator.Workers),
		quarteragg.WithLogger(logger.Component(log, "aggregator")),
		quarteragg.WithObserver(quarteragg.Observers{
			m,
			quarteragg.ObserverFunc(func(quarteragg.CompanyResult, time.Duration, error) { health.CompanyDone() }),
		}),
	)

	health.SetPhase(metrics.PhaseAggregating)
	report, runErr := batch.Run(ctx, src.bars, anchors)
	sum.stats = report.Stats
	if runErr != nil && ctx.Err() != nil {
		return sum, runErr
	}

	if cfg.Features.PctChange {
		changes := features.Compute(report.Records, cfg.Features.Lags)
		if err := csvfile.WritePctChanges(cfg.Sinks.CSV.FeaturesPath, changes); err != nil {
			return sum, errors.Join(runErr, err)
		}
		sum.features = len(changes)
		log.Info().Int("rows", len(changes)).Str("path", cfg.Sinks.CSV.FeaturesPath).Msg("lag features written")
	}

	health.SetPhase(metrics.PhaseWriting)
	opened, err := openSinks(ctx, cfg, log)
	if err != nil {
		return sum, errors.Join(runErr, err)
	}
	if opened.redis != nil || opened.sqliteDB != nil {
		health.StartLivenessChecker(ctx, opened.redis, opened.sqliteDB, 10*time.Second)
	}
	multi := store.NewMulti(opened.sinks,
		store.WithWriteObserver(m.SinkWritten),
		store.WithLogger(logger.Component(log, "sinks")),
	)
	sum.sinks = multi.Names()

	writeErr := multi.WriteRecords(ctx, report.Records)
	if writeErr == nil {
		sum.written = len(report.Records)
		health.AddRecordsWritten(len(report.Records))
	}
	closeErr := multi.Close()
	if writeErr != nil || closeErr != nil || !cfg.Sinks.Verify {
		return sum, errors.Join(runErr, writeErr, closeErr)
	}

	health.SetPhase(metrics.PhaseVerifying)
	verified, verifyErr := verifyWritten(ctx, cfg, report.Records, logger.Component(log, "verify"))
	sum.verified = verified
	return sum, errors.Join(runErr, verifyErr)
}

func printSummary(s summary) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════╗")
	fmt.Println("║        QUARTER AGGREGATION COMPLETE      ║")
	fmt.Println("╠══════════════════════════════════════════╣")
	fmt.Printf("║  Companies:          %-19d ║\n", s.stats.Companies)
	fmt.Printf("║  Companies failed:   %-19d ║\n", s.stats.CompaniesFailed)
	fmt.Printf("║  Anchors:            %-19d ║\n", len(s.anchors))
	fmt.Printf("║  Occurrences:        %-19d ║\n", s.stats.Occurrences)
	fmt.Printf("║  Skipped (history):  %-19d ║\n", s.stats.SkippedOccurrences)
	fmt.Printf("║  Records:            %-19d ║\n", s.stats.Records)
	fmt.Printf("║  Records written:    %-19d ║\n", s.written)
	fmt.Printf("║  Lag features:       %-19d ║\n", s.features)
	fmt.Printf("║  Sinks:              %-19s ║\n", strings.Join(s.sinks, ","))
	for _, v := range s.verified {
		fmt.Printf("║  Verified %-10s %-19s ║\n", v.sink+":", fmt.Sprintf("%d/%d", v.checked-v.missing-v.mismatched, v.checked))
	}
	fmt.Printf("║  Elapsed:            %-19s ║\n", s.elapsed.Round(time.Millisecond))
	fmt.Println("╚══════════════════════════════════════════╝")
}
