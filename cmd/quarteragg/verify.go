package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"quarterfeat/config"
	"quarterfeat/internal/model"
	chstore "quarterfeat/internal/store/clickhouse"
	redisstore "quarterfeat/internal/store/redis"
	sqlitestore "quarterfeat/internal/store/sqlite"
)

var errVerify = errors.New("read-back verification failed")

// storedClose maps an end date to the close price a sink holds for it.
type storedClose map[string]float64

// readBack loads what a sink stored for one company. written is the company's
// records from this run in end-date order.
type readBack struct {
	name  string
	read  func(ctx context.Context, companyID string, written []model.WindowRecord) (storedClose, error)
	close func() error
}

type verifyResult struct {
	sink       string
	checked    int
	missing    int
	mismatched int
}

func (v verifyResult) ok() bool { return v.missing == 0 && v.mismatched == 0 }

// verifyWritten reads every record back from the sinks that support it and
// checks that each (company, end date) is present with the same close price.
func verifyWritten(ctx context.Context, cfg *config.Config, records []model.WindowRecord, log zerolog.Logger) ([]verifyResult, error) {
	backs, err := openReadBacks(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, b := range backs {
			if err := b.close(); err != nil {
				log.Warn().Err(err).Str("sink", b.name).Msg("close read-back")
			}
		}
	}()
	if len(backs) == 0 {
		log.Warn().Msg("verify requested but no readable sink is enabled")
		return nil, nil
	}

	byCompany, companies := groupByCompany(records)
	var (
		results []verifyResult
		errs    []error
	)
	for _, b := range backs {
		res := verifyResult{sink: b.name}
		for _, id := range companies {
			written := byCompany[id]
			stored, err := b.read(ctx, id, written)
			if err != nil {
				return results, fmt.Errorf("verify %s: company %s: %w", b.name, id, err)
			}
			missing, mismatched := compareCloses(written, stored)
			res.checked += len(written)
			res.missing += missing
			res.mismatched += mismatched
		}
		results = append(results, res)

		ev := log.Info()
		if !res.ok() {
			ev = log.Error()
			errs = append(errs, fmt.Errorf("%w: %s missing=%d mismatched=%d of %d",
				errVerify, b.name, res.missing, res.mismatched, res.checked))
		}
		ev.Str("sink", b.name).
			Int("checked", res.checked).
			Int("missing", res.missing).
			Int("mismatched", res.mismatched).
			Msg("read-back verified")
	}
	return results, errors.Join(errs...)
}

func groupByCompany(records []model.WindowRecord) (map[string][]model.WindowRecord, []string) {
	by := make(map[string][]model.WindowRecord)
	for _, r := range records {
		by[r.CompanyID] = append(by[r.CompanyID], r)
	}
	ids := make([]string, 0, len(by))
	for id, recs := range by {
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].EndDate.Before(recs[j].EndDate) })
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return by, ids
}

// compareCloses counts written records absent from stored and those whose
// stored close differs. Two NaN closes compare equal.
func compareCloses(written []model.WindowRecord, stored storedClose) (missing, mismatched int) {
	for _, r := range written {
		got, ok := stored[r.EndDate.Format(model.DateLayout)]
		switch {
		case !ok:
			missing++
		case math.IsNaN(r.ClosePrice) && math.IsNaN(got):
		case got != r.ClosePrice:
			mismatched++
		}
	}
	return missing, mismatched
}

func closesOf(recs []model.WindowRecord) storedClose {
	out := make(storedClose, len(recs))
	for _, r := range recs {
		out[r.EndDate.Format(model.DateLayout)] = r.ClosePrice
	}
	return out
}

// openReadBacks opens a reader for every enabled sink that can be queried.
// CSV and Kafka are write-only here.
func openReadBacks(ctx context.Context, cfg *config.Config) ([]readBack, error) {
	var backs []readBack
	fail := func(name string, err error) ([]readBack, error) {
		for _, b := range backs {
			_ = b.close()
		}
		return nil, fmt.Errorf("open read-back %s: %w", name, err)
	}
	sc := cfg.Sinks

	if sc.SQLite.Enabled {
		r, err := sqlitestore.NewReader(sc.SQLite.Path)
		if err != nil {
			return fail("sqlite", err)
		}
		backs = append(backs, readBack{
			name: "sqlite",
			read: func(ctx context.Context, id string, _ []model.WindowRecord) (storedClose, error) {
				recs, err := r.ReadRecords(ctx, id)
				if err != nil {
					return nil, err
				}
				return closesOf(recs), nil
			},
			close: r.Close,
		})
	}

	if sc.Redis.Enabled {
		r, err := redisstore.NewReader(redisstore.ReaderConfig{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
		})
		if err != nil {
			return fail("redis", err)
		}
		backs = append(backs, readBack{
			name: "redis",
			read: func(ctx context.Context, id string, written []model.WindowRecord) (storedClose, error) {
				recs, err := r.History(ctx, id, int64(len(written)))
				if err != nil {
					return nil, err
				}
				stored := closesOf(recs)
				// The latest key must point at the newest record of the run.
				latest, ok, err := r.Latest(ctx, id)
				if err != nil {
					return nil, err
				}
				if newest := written[len(written)-1]; !ok || !latest.EndDate.Equal(newest.EndDate) {
					delete(stored, newest.EndDate.Format(model.DateLayout))
				}
				return stored, nil
			},
			close: r.Close,
		})
	}

	if sc.ClickHouse.Enabled {
		ch := sc.ClickHouse
		client, err := chstore.NewClient(ctx,
			chstore.WithHost(ch.Host, ch.Port),
			chstore.WithDatabase(ch.Database),
			chstore.WithCredentials(ch.User, ch.Password),
			chstore.WithTimeouts(ch.DialTimeout, ch.WriteTimeout),
			chstore.WithHTTP(ch.UseHTTP),
		)
		if err != nil {
			return fail("clickhouse", err)
		}
		if err := client.Health(ctx); err != nil {
			_ = client.Close()
			return fail("clickhouse", err)
		}
		fs := chstore.NewFeatureStore(client, ch.Table, zerolog.Nop())
		backs = append(backs, readBack{
			name: "clickhouse",
			read: func(ctx context.Context, id string, _ []model.WindowRecord) (storedClose, error) {
				points, err := fs.History(ctx, id, model.MetricClosePrice)
				if err != nil {
					return nil, err
				}
				out := make(storedClose, len(points))
				for _, p := range points {
					out[p.EndDate.Format(model.DateLayout)] = p.Value
				}
				return out, nil
			},
			close: fs.Close,
		})
	}
	return backs, nil
}
