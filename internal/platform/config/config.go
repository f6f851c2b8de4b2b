package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	strutil "consentwindow/pkg/platform/strings"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Server captures process level configuration.
type Server struct {
	Addr             string
	Environment      string
	LogLevel         string
	Backend          string
	TxTimeout        time.Duration
	BatchConcurrency int
	ShutdownTimeout  time.Duration

	Auth      AuthConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Outbox    OutboxConfig
	Tracer    TracerConfig
	RateLimit RateLimitConfig
}

type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LockTTL      time.Duration
}

// KafkaConfig enables the Kafka notification sink when Brokers is non-empty.
//
// On the postgres backend notifications go through the outbox by default and reach
// Kafka only after the grant commits. On the memory and redis backends the record is
// produced inside the consent transaction: a commit that fails afterwards (a redis
// WATCH conflict, for one) leaves a notification for a grant that was never stored,
// so consumers must treat those notifications as at-least-once and check validity.
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
	ProduceTimeout    time.Duration
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// RateLimitConfig budgets API traffic over a sliding window. Limits are shared
// through Redis when REDIS_URL is set.
type RateLimitConfig struct {
	Enabled    bool
	ReadLimit  int
	WriteLimit int
	Window     time.Duration
}

// OutboxConfig drives the Postgres outbox relay. Only used with the postgres backend
// and a configured Kafka sink, where it is on unless OUTBOX_ENABLED=false.
type OutboxConfig struct {
	Enabled      bool
	PollInterval time.Duration
	BatchSize    int
}

type TracerConfig struct {
	Enabled     bool
	Exporter    string
	SampleRatio float64
}

const defaultJWTSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	p := &envParser{}
	backend := strings.ToLower(p.str("CONSENT_STORE", BackendMemory))
	brokers := p.list("KAFKA_BROKERS")
	cfg := Server{
		Addr:             p.str("CONSENT_ADDR", ":8080"),
		Environment:      p.str("CONSENT_ENV", "development"),
		LogLevel:         p.str("LOG_LEVEL", "info"),
		Backend:          backend,
		TxTimeout:        p.duration("CONSENT_TX_TIMEOUT", 5*time.Second),
		BatchConcurrency: p.int("CONSENT_BATCH_CONCURRENCY", 16),
		ShutdownTimeout:  p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		Auth: AuthConfig{
			JWTSigningKey: p.str("JWT_SIGNING_KEY", defaultJWTSigningKey),
			Issuer:        p.str("JWT_ISSUER", "consentwindow"),
			Audience:      p.str("JWT_AUDIENCE", "consentwindow-api"),
			TokenTTL:      p.duration("JWT_TOKEN_TTL", time.Hour),
		},
		Database: DatabaseConfig{
			URL:             p.str("DATABASE_URL", ""),
			MaxOpenConns:    p.int("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    p.int("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: p.duration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          p.str("REDIS_URL", ""),
			PoolSize:     p.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			LockTTL:      p.duration("REDIS_LOCK_TTL", 10*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:           brokers,
			Topic:             p.str("KAFKA_CONSENT_TOPIC", "consent.given"),
			Partitions:        int32(p.int("KAFKA_PARTITIONS", 3)),
			ReplicationFactor: int16(p.int("KAFKA_REPLICATION_FACTOR", 1)),
			ProduceTimeout:    p.duration("KAFKA_PRODUCE_TIMEOUT", 5*time.Second),
		},
		Outbox: OutboxConfig{
			Enabled:      p.bool("OUTBOX_ENABLED", backend == BackendPostgres && len(brokers) > 0),
			PollInterval: p.duration("OUTBOX_POLL_INTERVAL", time.Second),
			BatchSize:    p.int("OUTBOX_BATCH_SIZE", 100),
		},
		Tracer: TracerConfig{
			Enabled:     p.bool("TRACING_ENABLED", false),
			Exporter:    p.str("TRACING_EXPORTER", "stdout"),
			SampleRatio: p.float("TRACING_SAMPLE_RATIO", 1.0),
		},
		RateLimit: RateLimitConfig{
			Enabled:    p.bool("RATELIMIT_ENABLED", true),
			ReadLimit:  p.int("RATELIMIT_READ_LIMIT", 100),
			WriteLimit: p.int("RATELIMIT_WRITE_LIMIT", 30),
			Window:     p.duration("RATELIMIT_WINDOW", time.Minute),
		},
	}
	if err := errors.Join(p.errs...); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate rejects inconsistent combinations.
func (c Server) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CONSENT_STORE %q", c.Backend))
	}
	if c.Outbox.Enabled {
		if c.Backend != BackendPostgres {
			errs = append(errs, errors.New("OUTBOX_ENABLED requires the postgres store"))
		}
		if !c.Kafka.Enabled() {
			errs = append(errs, errors.New("OUTBOX_ENABLED requires KAFKA_BROKERS"))
		}
		if c.Outbox.BatchSize <= 0 || c.Outbox.PollInterval <= 0 {
			errs = append(errs, errors.New("outbox batch size and poll interval must be positive"))
		}
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("KAFKA_CONSENT_TOPIC must not be empty"))
	}
	if c.TxTimeout <= 0 {
		errs = append(errs, errors.New("CONSENT_TX_TIMEOUT must be positive"))
	}
	if c.BatchConcurrency <= 0 {
		errs = append(errs, errors.New("CONSENT_BATCH_CONCURRENCY must be positive"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("JWT_TOKEN_TTL must be positive"))
	}
	if c.Environment == "production" && c.Auth.JWTSigningKey == defaultJWTSigningKey {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must be set in production"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.ReadLimit <= 0 || c.RateLimit.WriteLimit <= 0 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("rate limits and RATELIMIT_WINDOW must be positive"))
	}
	if c.Tracer.SampleRatio < 0 || c.Tracer.SampleRatio > 1 {
		errs = append(errs, errors.New("TRACING_SAMPLE_RATIO must be within [0, 1]"))
	}
	return errors.Join(errs...)
}

// envParser collects parse failures so FromEnv reports all of them at once.
type envParser struct {
	errs []error
}

func (p *envParser) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (p *envParser) list(key string) []string {
	return strutil.SplitList(p.str(key, ""), ",")
}

func (p *envParser) int(key string, def int) int {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, raw))
		return def
	}
	return v
}

func (p *envParser) float(key string, def float64) float64 {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid number %q", key, raw))
		return def
	}
	return v
}

func (p *envParser) bool(key string, def bool) bool {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid boolean %q", key, raw))
		return def
	}
	return v
}

func (p *envParser) duration(key string, def time.Duration) time.Duration {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return def
	}
	return v
}
