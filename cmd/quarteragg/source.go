package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"quarterfeat/config"
	"quarterfeat/internal/model"
	"quarterfeat/internal/quarteragg"
	"quarterfeat/internal/store/csvfile"
	sqlitestore "quarterfeat/internal/store/sqlite"
)

// source bundles the bar reader with the period ends anchors may be derived from.
type source struct {
	bars       model.BarReader
	periodEnds func(ctx context.Context) ([]time.Time, error)
	close      func() error
}

func (s *source) Close() error {
	if s.close != nil {
		return s.close()
	}
	return nil
}

func openSource(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*source, error) {
	var src *source
	switch cfg.Input.Source {
	case "sqlite":
		reader, err := sqlitestore.NewReader(cfg.Input.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite open: %w", err)
		}
		src = &source{bars: reader, periodEnds: reader.ReadPeriodEnds, close: reader.Close}
		log.Info().Str("path", cfg.Input.SQLitePath).Msg("reading bars from sqlite")

	default:
		bars, stats, err := csvfile.ReadBarsFile(cfg.Input.BarsPath)
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("path", cfg.Input.BarsPath).
			Int("rows", stats.Rows).
			Int("bad_dates", stats.BadDates).
			Int("bad_numbers", stats.BadNumbers).
			Msg("bars loaded")
		src = &source{bars: quarteragg.GroupByCompany(bars), periodEnds: csvPeriodEnds(cfg.Input.PeriodsPath)}
	}

	if cfg.Input.FillGaps {
		src.bars = quarteragg.GapFilled{BarReader: src.bars}
	}
	return src, nil
}

func csvPeriodEnds(path string) func(context.Context) ([]time.Time, error) {
	return func(context.Context) ([]time.Time, error) {
		if path == "" {
			return nil, nil
		}
		ends, err := csvfile.ReadPeriodEndsFile(path)
		if err != nil {
			return nil, err
		}
		out := make([]time.Time, 0, len(ends))
		for _, e := range ends {
			out = append(out, e.Date)
		}
		return out, nil
	}
}

// buildAnchors prefers the explicit list and otherwise derives anchors from
// the period-end dates.
func buildAnchors(ctx context.Context, cfg *config.Config, src *source) (model.AnchorSet, error) {
	if len(cfg.Anchors.List) > 0 {
		return model.ParseAnchors(cfg.Anchors.List)
	}
	ends, err := src.periodEnds(ctx)
	if err != nil {
		return nil, fmt.Errorf("read period ends: %w", err)
	}
	return model.AnchorsFromPeriodEnds(ends)
}
