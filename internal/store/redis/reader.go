package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"quarterfeat/internal/model"
)

// ReaderConfig configures the Redis reader.
type ReaderConfig struct {
	Addr     string
	Password string
	DB       int
}

// Reader reads records back from the streams and latest keys the Writer maintains.
type Reader struct {
	client *goredis.Client
}

// NewReader creates a new Redis Reader and pings the server.
func NewReader(cfg ReaderConfig) (*Reader, error) {
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
	return &Reader{client: client}, nil
}

// Latest returns the newest record stored for a company. The second return is
// false when the key is missing or expired.
func (r *Reader) Latest(ctx context.Context, companyID string) (model.WindowRecord, bool, error) {
	key := (&model.WindowRecord{CompanyID: companyID}).LatestKey()
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return model.WindowRecord{}, false, nil
		}
		return model.WindowRecord{}, false, fmt.Errorf("redis GET %s: %w", key, err)
	}

	var rec model.WindowRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.WindowRecord{}, false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return rec, true, nil
}

// History returns up to count records from a company's stream, newest first.
func (r *Reader) History(ctx context.Context, companyID string, count int64) ([]model.WindowRecord, error) {
	stream := (&model.WindowRecord{CompanyID: companyID}).StreamKey()
	msgs, err := r.client.XRevRangeN(ctx, stream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("redis XREVRANGE %s: %w", stream, err)
	}
	return decodeMessages(msgs)
}

func decodeMessages(msgs []goredis.XMessage) ([]model.WindowRecord, error) {
	out := make([]model.WindowRecord, 0, len(msgs))
	for _, msg := range msgs {
		data, ok := msg.Values["data"].(string)
		if !ok {
			return nil, fmt.Errorf("stream entry %s: missing data field", msg.ID)
		}
		var rec model.WindowRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("stream entry %s: %w", msg.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.client.Close()
}
