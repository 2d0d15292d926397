package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. SHOUTOUT_POSTGRES_DSN.
const EnvPrefix = "SHOUTOUT"

// Config top-level struct
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Postgres  PostgresConfig  `yaml:"postgres" envconfig:"POSTGRES"`
	Redis     RedisConfig     `yaml:"redis" envconfig:"REDIS"`
	Kafka     KafkaConfig     `yaml:"kafka" envconfig:"KAFKA"`
	RateLimit RateLimitConfig `yaml:"ratelimit" envconfig:"RATELIMIT"`
	Log       LogConfig       `yaml:"log" envconfig:"LOG"`
	Auth      AuthConfig      `yaml:"auth" envconfig:"AUTH"`
	Blob      BlobConfig      `yaml:"blob" envconfig:"BLOB"`
	Store     StoreConfig     `yaml:"store" envconfig:"STORE"`
	Lifecycle LifecycleConfig `yaml:"lifecycle" envconfig:"LIFECYCLE"`
	Stats     StatsConfig     `yaml:"stats" envconfig:"STATS"`
	Poller    PollerConfig    `yaml:"poller" envconfig:"POLLER"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn" envconfig:"DSN"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" envconfig:"ADDR"`
	Password string        `yaml:"password" envconfig:"PASSWORD"`
	DB       int           `yaml:"db" envconfig:"DB"`
	CacheTTL time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers" envconfig:"BROKERS"`
	Topic   string   `yaml:"topic" envconfig:"TOPIC"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps" envconfig:"RPS"`
	Burst int `yaml:"burst" envconfig:"BURST"`
}

type LogConfig struct {
	Level string `yaml:"level" envconfig:"LEVEL"`
}

type AuthConfig struct {
	Secret   string        `yaml:"secret" envconfig:"SECRET"`
	TokenTTL time.Duration `yaml:"token_ttl" envconfig:"TOKEN_TTL"`
}

// BlobConfig drives the filesystem blob store and its signed download handles.
type BlobConfig struct {
	Dir        string        `yaml:"dir" envconfig:"DIR"`
	BaseURL    string        `yaml:"base_url" envconfig:"BASE_URL"`
	Secret     string        `yaml:"secret" envconfig:"SECRET"`
	HandleTTL  time.Duration `yaml:"handle_ttl" envconfig:"HANDLE_TTL"`
	MaxUploadB int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES"`
}

type StoreConfig struct {
	OpTimeout time.Duration `yaml:"op_timeout" envconfig:"OP_TIMEOUT"`
}

type LifecycleConfig struct {
	MaxAttempts int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS"`
	Backoff     time.Duration `yaml:"backoff" envconfig:"BACKOFF"`
}

const (
	RevenuePerRequest = "per_request"
	RevenueLegacyFlat = "legacy_flat"
)

type StatsConfig struct {
	RevenueMode     string `yaml:"revenue_mode" envconfig:"REVENUE_MODE"`
	LegacyFlatPrice string `yaml:"legacy_flat_price" envconfig:"LEGACY_FLAT_PRICE"`
}

type PollerConfig struct {
	Interval  time.Duration `yaml:"interval" envconfig:"INTERVAL"`
	BatchSize int           `yaml:"batch_size" envconfig:"BATCH_SIZE"`
}

// Load reads yaml file, then applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	// override DSN password from env if present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		cfg.Postgres.DSN = cfg.Postgres.DSN + " password=" + pw
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default holds the values used for anything the file leaves out.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Port: 8080, ShutdownTimeout: 10 * time.Second},
		Redis:     RedisConfig{CacheTTL: 5 * time.Minute},
		RateLimit: RateLimitConfig{RPS: 20, Burst: 40},
		Log:       LogConfig{Level: "info"},
		Auth:      AuthConfig{TokenTTL: 24 * time.Hour},
		Blob: BlobConfig{
			Dir:        "data/blobs",
			BaseURL:    "http://localhost:8080",
			HandleTTL:  15 * time.Minute,
			MaxUploadB: 512 << 20,
		},
		Store:     StoreConfig{OpTimeout: 5 * time.Second},
		Lifecycle: LifecycleConfig{MaxAttempts: 3, Backoff: 50 * time.Millisecond},
		Stats:     StatsConfig{RevenueMode: RevenuePerRequest, LegacyFlatPrice: "500"},
		Poller:    PollerConfig{Interval: time.Second, BatchSize: 100},
	}
}

func (c *Config) Validate() error {
	switch c.Stats.RevenueMode {
	case RevenuePerRequest, RevenueLegacyFlat:
	default:
		return fmt.Errorf("stats.revenue_mode %q: want %s or %s", c.Stats.RevenueMode, RevenuePerRequest, RevenueLegacyFlat)
	}
	if c.Lifecycle.MaxAttempts < 1 {
		return fmt.Errorf("lifecycle.max_attempts must be >= 1")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required")
	}
	if c.Blob.Secret == "" {
		c.Blob.Secret = c.Auth.Secret
	}
	return nil
}
