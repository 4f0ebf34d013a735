package config

import (
	"os"
	"runtime"
	"strconv"

	"github.com/hibiken/asynq"
)

type Config struct {
	Proxy     ProxyConfig
	Storage   StorageConfig
	Limits    LimitsConfig
	Cache     CacheConfig
	Signing   SigningConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	RateLimit RateLimitConfig
	Database  DatabaseConfig
	Telemetry TelemetryConfig
}

type ProxyConfig struct {
	Addr string
}

type StorageConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	OriginBucket string
	CacheBucket  string
}

type LimitsConfig struct {
	MaxWidth       int
	MaxHeight      int
	DefaultQuality int
}

type CacheConfig struct {
	MaxAgeSeconds int
	Immutable     bool
}

type SigningConfig struct {
	Secret string
}

type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency   int
	MaxActiveJobs int
	MetricsAddr   string
}

type RateLimitConfig struct {
	// RequestsPerMinute of zero disables rate limiting.
	RequestsPerMinute int
}

type DatabaseConfig struct {
	// DSN of "" selects the in-memory usage store.
	DSN string
}

type TelemetryConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

func Load() Config {
	return Config{
		Proxy: ProxyConfig{
			Addr: env("PIXELGATE_ADDR", ":8080"),
		},
		Storage: StorageConfig{
			Endpoint:     env("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:    env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:    env("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:       envBool("MINIO_USE_SSL", false),
			OriginBucket: env("ORIGIN_BUCKET", "pixelgate-origin"),
			CacheBucket:  env("CACHE_BUCKET", "pixelgate-cache"),
		},
		Limits: LimitsConfig{
			MaxWidth:       envInt("MAX_WIDTH", 4096),
			MaxHeight:      envInt("MAX_HEIGHT", 4096),
			DefaultQuality: envInt("DEFAULT_QUALITY", 80),
		},
		Cache: CacheConfig{
			MaxAgeSeconds: envInt("CACHE_MAX_AGE", 31536000),
			Immutable:     envBool("CACHE_IMMUTABLE", true),
		},
		Signing: SigningConfig{
			Secret: env("SIGNING_SECRET", ""),
		},
		Queue: QueueConfig{
			RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Name:          env("PREWARM_QUEUE", "prewarm"),
		},
		Worker: WorkerConfig{
			Concurrency:   envInt("WORKER_CONCURRENCY", max(2, runtime.NumCPU())),
			MaxActiveJobs: envInt("WORKER_MAX_ACTIVE_JOBS", max(1, runtime.NumCPU()/2)),
			MetricsAddr:   env("WORKER_METRICS_ADDR", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: envInt("RATE_LIMIT_RPM", 0),
		},
		Database: DatabaseConfig{
			DSN: env("POSTGRES_DSN", ""),
		},
		Telemetry: TelemetryConfig{
			Exporter:     env("TRACE_EXPORTER", "none"),
			OTLPEndpoint: env("OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("OTLP_INSECURE", false),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
