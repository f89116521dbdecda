package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config collects everything main needs to wire the process. Values come from
// environment variables so deployments stay twelve-factor; a local .env file
// is honored for development.
type Config struct {
	Addr          string
	JWTSigningKey string

	PostgresDSN string

	Redis RedisConfig
	Kafka KafkaConfig

	// PaymentTolerance is the absolute slack allowed when reconciling tenders
	// against a sale total, in currency units.
	PaymentTolerance string

	CommitTimeout time.Duration
}

// RedisConfig configures the cart snapshot store. An empty URL disables Redis
// and falls back to in-memory snapshots.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the sale-event outbox publisher. No brokers means
// events stay in the outbox table only.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		Addr:             envOr("PDV_ADDR", ":8080"),
		JWTSigningKey:    envOr("PDV_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresDSN:      os.Getenv("PDV_POSTGRES_DSN"),
		PaymentTolerance: envOr("PDV_PAYMENT_TOLERANCE", "0.01"),
		CommitTimeout:    envDurationOr("PDV_COMMIT_TIMEOUT", 10*time.Second),
		Redis: RedisConfig{
			URL:          os.Getenv("PDV_REDIS_URL"),
			PoolSize:     envIntOr("PDV_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("PDV_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDurationOr("PDV_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("PDV_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("PDV_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("PDV_KAFKA_BROKERS")),
			Topic:   envOr("PDV_KAFKA_SALES_TOPIC", "pdv.sales.completed"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
