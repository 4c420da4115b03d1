// cmd/barload loads daily-bar and period-end CSV files into the SQLite store
// so cmd/quarteragg can read them with -db.
//
// Usage:
//
//	go run ./cmd/barload -bars=prices.csv -periods=periods.csv -db=data/quarterfeat.db -fill
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"quarterfeat/config"
	"quarterfeat/internal/logger"
	"quarterfeat/internal/model"
	"quarterfeat/internal/quarteragg"
	"quarterfeat/internal/store/csvfile"
	sqlitestore "quarterfeat/internal/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "barload: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "", "Path to YAML config (optional)")
	barsPath := flag.String("bars", "", "Daily bars CSV (overrides input.bars_path)")
	periodsPath := flag.String("periods", "", "Period-end CSV (overrides input.periods_path)")
	dbPath := flag.String("db", "", "SQLite database (overrides input.sqlite_path)")
	fill := flag.Bool("fill", false, "Forward-fill calendar gaps before storing")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, func(c *config.Config) {
		// The target store is always SQLite; csv paths are the input here.
		c.Input.Source = "sqlite"
		if *barsPath != "" {
			c.Input.BarsPath = *barsPath
		}
		if *periodsPath != "" {
			c.Input.PeriodsPath = *periodsPath
		}
		if *dbPath != "" {
			c.Input.SQLitePath = *dbPath
		}
		if *fill {
			c.Input.FillGaps = true
		}
	})
	if err != nil {
		return err
	}
	if cfg.Input.BarsPath == "" && cfg.Input.PeriodsPath == "" {
		return fmt.Errorf("nothing to load: set -bars and/or -periods")
	}

	log, err := logger.Init("barload", cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	started := time.Now()
	res, err := load(ctx, cfg, log)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║          BAR LOAD COMPLETE           ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Rows read:         %-16d ║\n", res.read.Rows)
	fmt.Printf("║  Bad dates:         %-16d ║\n", res.read.BadDates)
	fmt.Printf("║  Bad numbers:       %-16d ║\n", res.read.BadNumbers)
	fmt.Printf("║  Bars stored:       %-16d ║\n", res.stored)
	fmt.Printf("║  Period ends:       %-16d ║\n", res.periodEnds)
	fmt.Printf("║  Elapsed:           %-16s ║\n", time.Since(started).Round(time.Millisecond))
	fmt.Println("╚══════════════════════════════════════╝")
	return nil
}

type loadResult struct {
	read       csvfile.ReadStats
	stored     int
	periodEnds int
}

func load(ctx context.Context, cfg *config.Config, log zerolog.Logger) (loadResult, error) {
	var res loadResult

	w, err := sqlitestore.New(sqlitestore.WriterConfig{
		DBPath: cfg.Input.SQLitePath,
		Logger: logger.Component(log, "sqlite"),
	})
	if err != nil {
		return res, err
	}
	defer w.Close()

	if cfg.Input.BarsPath != "" {
		bars, stats, err := csvfile.ReadBarsFile(cfg.Input.BarsPath)
		if err != nil {
			return res, err
		}
		res.read = stats
		if cfg.Input.FillGaps {
			bars = fillAll(ctx, bars)
		}

		barCh := make(chan model.DailyBar, 1000)
		go func() {
			defer close(barCh)
			for _, b := range bars {
				select {
				case barCh <- b:
				case <-ctx.Done():
					return
				}
			}
		}()
		res.stored, err = w.RunBars(ctx, barCh)
		if err != nil {
			return res, fmt.Errorf("store bars: %w", err)
		}
		log.Info().Int("bars", res.stored).Str("path", cfg.Input.BarsPath).Msg("bars stored")
	}

	if cfg.Input.PeriodsPath != "" {
		ends, err := csvfile.ReadPeriodEndsFile(cfg.Input.PeriodsPath)
		if err != nil {
			return res, err
		}
		if err := w.InsertPeriodEnds(ctx, ends); err != nil {
			return res, fmt.Errorf("store period ends: %w", err)
		}
		res.periodEnds = len(ends)
		log.Info().Int("period_ends", len(ends)).Str("path", cfg.Input.PeriodsPath).Msg("period ends stored")
	}
	return res, ctx.Err()
}

// fillAll gap-fills every company. Null-dated rows are dropped by FillGaps.
func fillAll(ctx context.Context, bars []model.DailyBar) []model.DailyBar {
	g := quarteragg.GroupByCompany(bars)
	filled := quarteragg.GapFilled{BarReader: g}
	ids, _ := g.Companies(ctx)
	out := make([]model.DailyBar, 0, len(bars))
	for _, id := range ids {
		b, _ := filled.ReadBars(ctx, id)
		out = append(out, b...)
	}
	return out
}
