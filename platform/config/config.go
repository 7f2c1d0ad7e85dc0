// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// KafkaConfig provides Kafka broker and topic settings.
type KafkaConfig interface {
	GetKafkaBrokers() []string
	GetKafkaGroupIDPrefix() string
	GetKafkaPollTimeout() time.Duration
}

// SchedulerConfig provides settings for the periodic jobs and asynq worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetLeaderLockKey() string
	GetLeaderLockTTL() time.Duration
	GetStatusJobInitialDelay() time.Duration
	GetStatusJobInterval() time.Duration
	GetDraftCleanupInitialDelay() time.Duration
	GetDraftCleanupInterval() time.Duration
	GetDraftMaxAge() time.Duration
}

// UpstreamConfig provides settings for upstream domain service clients.
type UpstreamConfig interface {
	GetParticipantRegistryURL() string
	GetUpstreamTimeout() time.Duration
	GetTokenEndpoint() string
	GetClientID() string
	GetClientSecret() string
}

// OpsConfig provides settings for the internal operations endpoint.
type OpsConfig interface {
	GetOpsAddr() string
}

// ConsumerConfig provides settings shared by the event consumers.
type ConsumerConfig interface {
	KafkaConfig
	// IsStrict reports whether referential inconsistencies are fatal.
	// Production deployments run strict; dev environments log and drop.
	IsStrict() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	DatabaseURL              string
	MigrateOnStart           bool
	KafkaBrokers             []string
	KafkaGroupIDPrefix       string
	KafkaPollTimeout         time.Duration
	RedisURL                 string
	AsynqQueueName           string
	AsynqConcurrency         int
	LeaderLockKey            string
	LeaderLockTTL            time.Duration
	StatusJobInitialDelay    time.Duration
	StatusJobInterval        time.Duration
	DraftCleanupInitialDelay time.Duration
	DraftCleanupInterval     time.Duration
	DraftMaxAge              time.Duration
	ParticipantRegistryURL   string
	UpstreamTimeout          time.Duration
	TokenEndpoint            string
	ClientID                 string
	ClientSecret             string
	OpsAddr                  string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// KafkaConfig implementation
func (c *Config) GetKafkaBrokers() []string          { return c.KafkaBrokers }
func (c *Config) GetKafkaGroupIDPrefix() string      { return c.KafkaGroupIDPrefix }
func (c *Config) GetKafkaPollTimeout() time.Duration { return c.KafkaPollTimeout }

// ConsumerConfig implementation
func (c *Config) IsStrict() bool { return strings.EqualFold(c.Env, "production") }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                       { return c.RedisURL }
func (c *Config) GetAsynqQueueName() string                 { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int                  { return c.AsynqConcurrency }
func (c *Config) GetLeaderLockKey() string                  { return c.LeaderLockKey }
func (c *Config) GetLeaderLockTTL() time.Duration           { return c.LeaderLockTTL }
func (c *Config) GetStatusJobInitialDelay() time.Duration   { return c.StatusJobInitialDelay }
func (c *Config) GetStatusJobInterval() time.Duration       { return c.StatusJobInterval }
func (c *Config) GetDraftCleanupInitialDelay() time.Duration { return c.DraftCleanupInitialDelay }
func (c *Config) GetDraftCleanupInterval() time.Duration    { return c.DraftCleanupInterval }
func (c *Config) GetDraftMaxAge() time.Duration             { return c.DraftMaxAge }

// UpstreamConfig implementation
func (c *Config) GetParticipantRegistryURL() string { return c.ParticipantRegistryURL }
func (c *Config) GetUpstreamTimeout() time.Duration { return c.UpstreamTimeout }
func (c *Config) GetTokenEndpoint() string          { return c.TokenEndpoint }
func (c *Config) GetClientID() string               { return c.ClientID }
func (c *Config) GetClientSecret() string           { return c.ClientSecret }

// OpsConfig implementation
func (c *Config) GetOpsAddr() string { return c.OpsAddr }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		MigrateOnStart:           strings.EqualFold(getEnv("DB_MIGRATE_ON_START", "true"), "true"),
		KafkaBrokers:             splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaGroupIDPrefix:       getEnv("KAFKA_GROUP_ID_PREFIX", "caseflow-backend"),
		KafkaPollTimeout:         mustDuration(getEnv("KAFKA_POLL_TIMEOUT", "1s")),
		RedisURL:                 getEnv("REDIS_URL", ""),
		AsynqQueueName:           getEnv("ASYNQ_QUEUE", "caseflow"),
		AsynqConcurrency:         int(mustInt64(getEnv("ASYNQ_CONCURRENCY", "10"))),
		LeaderLockKey:            getEnv("LEADER_LOCK_KEY", "caseflow:leader"),
		LeaderLockTTL:            mustDuration(getEnv("LEADER_LOCK_TTL", "30s")),
		StatusJobInitialDelay:    mustDuration(getEnv("STATUS_JOB_INITIAL_DELAY", "5m")),
		StatusJobInterval:        mustDuration(getEnv("STATUS_JOB_INTERVAL", "30m")),
		DraftCleanupInitialDelay: mustDuration(getEnv("DRAFT_CLEANUP_INITIAL_DELAY", "10m")),
		DraftCleanupInterval:     mustDuration(getEnv("DRAFT_CLEANUP_INTERVAL", "24h")),
		DraftMaxAge:              mustDuration(getEnv("DRAFT_MAX_AGE", "336h")),
		ParticipantRegistryURL:   getEnv("PARTICIPANT_REGISTRY_URL", ""),
		UpstreamTimeout:          mustDuration(getEnv("UPSTREAM_TIMEOUT", "10s")),
		TokenEndpoint:            getEnv("TOKEN_ENDPOINT", ""),
		ClientID:                 getEnv("CLIENT_ID", ""),
		ClientSecret:             getEnv("CLIENT_SECRET", ""),
		OpsAddr:                  getEnv("OPS_ADDR", "127.0.0.1:8585"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS is required")
	}
	if cfg.IsStrict() && cfg.ParticipantRegistryURL == "" {
		return nil, fmt.Errorf("PARTICIPANT_REGISTRY_URL is required in production")
	}
	if cfg.LeaderLockTTL < 5*time.Second {
		return nil, fmt.Errorf("LEADER_LOCK_TTL must be at least 5s")
	}
	if cfg.StatusJobInterval <= 0 {
		return nil, fmt.Errorf("STATUS_JOB_INTERVAL must be a positive duration")
	}
	if cfg.DraftCleanupInterval <= 0 {
		return nil, fmt.Errorf("DRAFT_CLEANUP_INTERVAL must be a positive duration")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}
