package redis

import (
	"context"
	"fmt"
	"time"
	"unsafe"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"quarterfeat/internal/model"
)

const (
	// Streams keep a long tail of quarterly history per company.
	defaultStreamMaxLen = 10000
	defaultLatestTTL    = 90 * 24 * time.Hour
	pipelineChunk       = 500
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int

	LatestTTL time.Duration // TTL of feat:quarter:latest:{company}; 0 means default
	MaxLen    int64         // approximate stream length cap; 0 means default
	Publish   bool          // also PUBLISH each record for live subscribers
	Logger    zerolog.Logger
}

// Writer publishes window records to Redis: one stream per company, a latest
// snapshot key, and an optional pub/sub announcement.
type Writer struct {
	client  *goredis.Client
	ttl     time.Duration
	maxLen  int64
	publish bool
	log     zerolog.Logger
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	cfg.Logger.Info().Str("addr", cfg.Addr).Msg("redis connected")
	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, cfg WriterConfig) *Writer {
	w := &Writer{
		client:  client,
		ttl:     cfg.LatestTTL,
		maxLen:  cfg.MaxLen,
		publish: cfg.Publish,
		log:     cfg.Logger,
	}
	if w.ttl <= 0 {
		w.ttl = defaultLatestTTL
	}
	if w.maxLen <= 0 {
		w.maxLen = defaultStreamMaxLen
	}
	return w
}

// WriteRecords pipelines XADD + SET + PUBLISH for every record, chunked so a
// large batch does not build one huge pipeline. Records should be ordered by
// end date within a company so the latest key ends on the newest record.
func (w *Writer) WriteRecords(ctx context.Context, records []model.WindowRecord) error {
	for start := 0; start < len(records); start += pipelineChunk {
		end := min(start+pipelineChunk, len(records))
		if err := w.writeChunk(ctx, records[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeChunk(ctx context.Context, records []model.WindowRecord) error {
	pipe := w.client.Pipeline()
	for i := range records {
		rec := &records[i]
		jsonBytes := rec.JSON()
		// Zero-copy []byte→string (safe: jsonBytes is not mutated after this)
		jsonData := *(*string)(unsafe.Pointer(&jsonBytes))

		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: rec.StreamKey(),
			MaxLen: w.maxLen,
			Approx: true,
			Values: map[string]interface{}{
				"end_date": rec.EndDate.Format(model.DateLayout),
				"data":     jsonData,
			},
		})
		pipe.Set(ctx, rec.LatestKey(), jsonData, w.ttl)
		if w.publish {
			pipe.Publish(ctx, rec.PubSubChannel(), jsonData)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("records", len(records)).Msg("record pipeline failed")
		return fmt.Errorf("redis pipeline (%d records): %w", len(records), err)
	}
	return nil
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
