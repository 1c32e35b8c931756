// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"identity-service/backend/internal/db"
	"identity-service/backend/internal/security"
)

// MinSecretKeyLen is the shortest SECRET_KEY accepted for HS256 signing.
const MinSecretKeyLen = 32

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// HTTPAddr is the address of the HTTP JSON surface; empty disables it.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is a postgres:// or postgresql:// DSN, or sqlite://<path>.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// AutoMigrate applies the embedded migrations at server start.
	AutoMigrate bool `mapstructure:"AUTO_MIGRATE"`
	// DBConnectRetries is how many times the startup ping is retried before giving up.
	DBConnectRetries uint64 `mapstructure:"DB_CONNECT_RETRIES"`

	// SecretKey signs tokens (HS256). At least MinSecretKeyLen bytes.
	SecretKey string `mapstructure:"SECRET_KEY"`
	// JWTExpiresDays is the token lifetime in days.
	JWTExpiresDays int `mapstructure:"JWT_EXPIRES_DAYS"`
	// PBKDF2Iterations is the iteration count for new password hashes; never below security.DefaultIterations.
	PBKDF2Iterations int `mapstructure:"PBKDF2_ITERATIONS"`
	// DefaultPhotoURL is stored for accounts created without a photo.
	DefaultPhotoURL string `mapstructure:"DEFAULT_PHOTO_URL"`

	// SocialProviders is a comma-separated provider allowlist for social sign-in; empty allows any.
	SocialProviders string `mapstructure:"SOCIAL_PROVIDERS"`
	// SocialPolicyFile is a rego module that replaces the default social admission policy.
	SocialPolicyFile string `mapstructure:"SOCIAL_POLICY_FILE"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
	LogDev   bool   `mapstructure:"LOG_DEV"`
	// Env is the application environment (e.g. "development", "production"). LOG_DEV is rejected in production.
	Env string `mapstructure:"APP_ENV"`

	// OTLP exporter settings. An empty endpoint gives no-op telemetry providers.
	OTelEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
	OTelInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses; empty disables the event producer.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// EventsKafkaTopic is the topic account events are written to and the worker reads from.
	EventsKafkaTopic string `mapstructure:"EVENTS_KAFKA_TOPIC"`

	// Worker-only: Loki URL the events worker pushes to (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group of the events worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Settings only the server needs are
// checked by ValidateServer.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("HTTP_ADDR", ":8000")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("AUTO_MIGRATE", true)
	v.SetDefault("DB_CONNECT_RETRIES", 5)
	v.SetDefault("SECRET_KEY", "")
	v.SetDefault("JWT_EXPIRES_DAYS", security.DefaultTokenTTLDays)
	v.SetDefault("PBKDF2_ITERATIONS", security.DefaultIterations)
	v.SetDefault("DEFAULT_PHOTO_URL", "https://juca.eu.org/img/icon_dafault.jpg")
	v.SetDefault("SOCIAL_PROVIDERS", "")
	v.SetDefault("SOCIAL_POLICY_FILE", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DEV", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_SERVICE_NAME", "identity-service")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("EVENTS_KAFKA_TOPIC", "identity-events")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "identity-events-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if cfg.LogDev && cfg.Env == "production" {
		return nil, errors.New("config: LOG_DEV must not be true when APP_ENV=production")
	}
	if cfg.JWTExpiresDays < 1 {
		return nil, errors.New("config: JWT_EXPIRES_DAYS must be at least 1")
	}
	if cfg.PBKDF2Iterations < security.DefaultIterations {
		return nil, fmt.Errorf("config: PBKDF2_ITERATIONS must be at least %d", security.DefaultIterations)
	}

	return &cfg, nil
}

// ValidateServer checks the settings the server cannot start without.
func (c *Config) ValidateServer() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("config: DATABASE_URL must be set")
	}
	if _, err := c.DatabaseDriver(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if len(c.SecretKey) < MinSecretKeyLen {
		return fmt.Errorf("config: SECRET_KEY must be at least %d bytes", MinSecretKeyLen)
	}
	return nil
}

// DatabaseDriver returns the backend selected by DATABASE_URL's scheme.
func (c *Config) DatabaseDriver() (db.Driver, error) {
	return db.DriverFor(c.DatabaseURL)
}

// TokenTTL is JWTExpiresDays as a duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpiresDays) * 24 * time.Hour
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list means the event producer is disabled.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// SocialProvidersList returns the lowercased social provider allowlist.
func (c *Config) SocialProvidersList() []string {
	if c == nil {
		return nil
	}
	out := splitList(c.SocialProviders)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
