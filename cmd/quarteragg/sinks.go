package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"quarterfeat/config"
	"quarterfeat/internal/logger"
	"quarterfeat/internal/store"
	chstore "quarterfeat/internal/store/clickhouse"
	"quarterfeat/internal/store/csvfile"
	kafkastore "quarterfeat/internal/store/kafka"
	redisstore "quarterfeat/internal/store/redis"
	sqlitestore "quarterfeat/internal/store/sqlite"
)

type openedSinks struct {
	sinks    []store.Sink
	redis    *goredis.Client
	sqliteDB *sql.DB
}

func (o *openedSinks) closeAll() error {
	var errs []error
	for _, s := range o.sinks {
		if err := s.Writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// openSinks opens every enabled sink. On failure the ones already opened are closed.
func openSinks(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*openedSinks, error) {
	o := &openedSinks{}
	fail := func(name string, err error) (*openedSinks, error) {
		return nil, errors.Join(fmt.Errorf("open sink %s: %w", name, err), o.closeAll())
	}
	sc := cfg.Sinks

	if sc.CSV.Enabled {
		w, err := csvfile.Create(sc.CSV.Path)
		if err != nil {
			return fail("csv", err)
		}
		o.sinks = append(o.sinks, store.Sink{Name: "csv", Writer: w})
	}

	if sc.SQLite.Enabled {
		w, err := sqlitestore.New(sqlitestore.WriterConfig{
			DBPath: sc.SQLite.Path,
			Logger: logger.Component(log, "sqlite"),
		})
		if err != nil {
			return fail("sqlite", err)
		}
		o.sqliteDB = w.DB()
		o.sinks = append(o.sinks, store.Sink{Name: "sqlite", Writer: w})
	}

	if sc.Redis.Enabled {
		w, err := redisstore.New(redisstore.WriterConfig{
			Addr:      sc.Redis.Addr,
			Password:  sc.Redis.Password,
			DB:        sc.Redis.DB,
			LatestTTL: sc.Redis.TTL,
			MaxLen:    sc.Redis.MaxLen,
			Publish:   sc.Redis.Publish,
			Logger:    logger.Component(log, "redis"),
		})
		if err != nil {
			return fail("redis", err)
		}
		o.redis = w.Client()
		o.sinks = append(o.sinks, store.Sink{Name: "redis", Writer: w})
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
		fs := chstore.NewFeatureStore(client, ch.Table, logger.Component(log, "clickhouse"))
		if err := fs.InitSchema(ctx); err != nil {
			_ = fs.Close()
			return fail("clickhouse", err)
		}
		o.sinks = append(o.sinks, store.Sink{Name: "clickhouse", Writer: fs})
	}

	if sc.Kafka.Enabled {
		k := sc.Kafka
		p, err := kafkastore.NewProducer(kafkastore.ProducerConfig{
			Brokers:      k.Brokers,
			Topic:        k.Topic,
			RequiredAcks: k.RequiredAcks,
			Compression:  k.Compression,
			BatchSize:    k.BatchSize,
			WriteTimeout: k.WriteTimeout,
			Logger:       log,
		})
		if err != nil {
			return fail("kafka", err)
		}
		o.sinks = append(o.sinks, store.Sink{Name: "kafka", Writer: p})
	}

	if len(o.sinks) == 0 {
		log.Warn().Msg("no sinks enabled, records are computed but not stored")
	}
	return o, nil
}
