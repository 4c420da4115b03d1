package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. Values come from struct
// defaults, then an optional YAML file, then QF_* environment variables.
type Config struct {
	Environment string `yaml:"environment" default:"development"`

	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	} `yaml:"log"`

	Input struct {
		// Source selects where daily bars are read from: csv files or the SQLite store.
		Source      string `yaml:"source" default:"csv" validate:"oneof=csv sqlite"`
		BarsPath    string `yaml:"bars_path"`
		PeriodsPath string `yaml:"periods_path"`
		SQLitePath  string `yaml:"sqlite_path" default:"data/quarterfeat.db"`
		FillGaps    bool   `yaml:"fill_gaps"`
	} `yaml:"input"`

	Anchors struct {
		// List holds explicit "MM-DD" anchors. When empty, anchors are derived
		// from the period-end table.
		List []string `yaml:"list"`
	} `yaml:"anchors"`

	Aggregator struct {
		Workers        int    `yaml:"workers" validate:"gte=0"`
		Variance       string `yaml:"variance" default:"prefix" validate:"oneof=prefix twopass"`
		PartialHistory bool   `yaml:"partial_history"`
	} `yaml:"aggregator"`

	Indicators struct {
		Provider string `yaml:"provider" default:"standard" validate:"oneof=standard talib"`
	} `yaml:"indicators"`

	Features struct {
		PctChange bool  `yaml:"pct_change"`
		Lags      []int `yaml:"lags" default:"[1,4]" validate:"dive,gt=0"`
	} `yaml:"features"`

	Sinks struct {
		CSV struct {
			Enabled      bool   `yaml:"enabled"`
			Path         string `yaml:"path" default:"out/quarter_features.csv" validate:"required_if=Enabled true"`
			FeaturesPath string `yaml:"features_path" default:"out/quarter_pct_change.csv"`
		} `yaml:"csv"`
		SQLite struct {
			Enabled bool   `yaml:"enabled"`
			Path    string `yaml:"path" default:"data/quarterfeat.db" validate:"required_if=Enabled true"`
		} `yaml:"sqlite"`
		Redis struct {
			Enabled  bool          `yaml:"enabled"`
			Addr     string        `yaml:"addr" default:"localhost:6379" validate:"required_if=Enabled true"`
			Password string        `yaml:"password"`
			DB       int           `yaml:"db" validate:"gte=0"`
			TTL      time.Duration `yaml:"ttl" default:"2160h"`
			Publish  bool          `yaml:"publish" default:"true"`
			MaxLen   int64         `yaml:"max_len" default:"10000" validate:"gte=0"`
		} `yaml:"redis"`
		ClickHouse struct {
			Enabled      bool          `yaml:"enabled"`
			Host         string        `yaml:"host" default:"localhost" validate:"required_if=Enabled true"`
			Port         int           `yaml:"port" default:"9000" validate:"gt=0,lte=65535"`
			Database     string        `yaml:"database" default:"default"`
			User         string        `yaml:"user" default:"default"`
			Password     string        `yaml:"password"`
			Table        string        `yaml:"table" default:"quarter_features"`
			UseHTTP      bool          `yaml:"use_http"`
			DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
		} `yaml:"clickhouse"`
		Kafka struct {
			Enabled      bool          `yaml:"enabled"`
			Brokers      []string      `yaml:"brokers" default:"[\"localhost:9092\"]" validate:"required_if=Enabled true"`
			Topic        string        `yaml:"topic" default:"quarter-features" validate:"required_if=Enabled true"`
			RequiredAcks int           `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
			Compression  string        `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
			BatchSize    int           `yaml:"batch_size" default:"100" validate:"gt=0"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		} `yaml:"kafka"`

		// Verify reads records back from every readable sink after the write.
		Verify bool `yaml:"verify"`
	} `yaml:"sinks"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr" default:":9090"`
	} `yaml:"metrics"`

	Notify struct {
		// WebhookURL receives a JSON alert when a run finishes. Empty disables it.
		WebhookURL string        `yaml:"webhook_url" validate:"omitempty,url"`
		Token      string        `yaml:"token"` // sent as a bearer token when set
		Timeout    time.Duration `yaml:"timeout" default:"10s"`
	} `yaml:"notify"`
}

var validate = validator.New()

// Default returns a Config with every default applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load builds the configuration. An empty path skips the YAML file. Overrides
// run after the environment and before validation, so command-line flags win.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	c := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(c)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	c.Environment = getEnv("QF_ENV", c.Environment)
	c.Log.Level = getEnv("QF_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("QF_LOG_FORMAT", c.Log.Format)

	c.Input.Source = getEnv("QF_INPUT_SOURCE", c.Input.Source)
	c.Input.BarsPath = getEnv("QF_BARS_PATH", c.Input.BarsPath)
	c.Input.PeriodsPath = getEnv("QF_PERIODS_PATH", c.Input.PeriodsPath)
	c.Input.SQLitePath = getEnv("QF_SQLITE_PATH", c.Input.SQLitePath)

	if v := os.Getenv("QF_ANCHORS"); v != "" {
		c.Anchors.List = splitList(v)
	}

	workers, err := getEnvInt("QF_WORKERS", c.Aggregator.Workers)
	if err != nil {
		return err
	}
	c.Aggregator.Workers = workers
	c.Aggregator.Variance = getEnv("QF_VARIANCE", c.Aggregator.Variance)
	c.Indicators.Provider = getEnv("QF_INDICATOR_PROVIDER", c.Indicators.Provider)

	c.Sinks.Redis.Addr = getEnv("QF_REDIS_ADDR", c.Sinks.Redis.Addr)
	c.Sinks.Redis.Password = getEnv("QF_REDIS_PASSWORD", c.Sinks.Redis.Password)
	c.Sinks.ClickHouse.Host = getEnv("QF_CLICKHOUSE_HOST", c.Sinks.ClickHouse.Host)
	c.Sinks.ClickHouse.Password = getEnv("QF_CLICKHOUSE_PASSWORD", c.Sinks.ClickHouse.Password)
	if v := os.Getenv("QF_KAFKA_BROKERS"); v != "" {
		c.Sinks.Kafka.Brokers = splitList(v)
	}
	c.Sinks.Kafka.Topic = getEnv("QF_KAFKA_TOPIC", c.Sinks.Kafka.Topic)
	c.Metrics.Addr = getEnv("QF_METRICS_ADDR", c.Metrics.Addr)
	c.Notify.WebhookURL = getEnv("QF_NOTIFY_WEBHOOK", c.Notify.WebhookURL)
	c.Notify.Token = getEnv("QF_NOTIFY_TOKEN", c.Notify.Token)
	return nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	if c.Input.Source == "csv" && c.Input.BarsPath == "" {
		return errors.New("input.bars_path is required for csv input")
	}
	if len(c.Anchors.List) == 0 && c.Input.Source == "csv" && c.Input.PeriodsPath == "" {
		return errors.New("anchors.list or input.periods_path is required")
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
