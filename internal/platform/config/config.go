package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the root configuration assembled from the environment.
type Config struct {
	Server       Server
	Database     DatabaseConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Verification VerificationConfig
	Wizard       WizardConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr      string
	LogLevel  string
	LogFormat string
	DevMode   bool
}

// DatabaseConfig selects the declaration store. An empty URL keeps the in-memory store.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the submit lock backend. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the declaration event publisher. No brokers disables it.
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	ClientID          string
	Partitions        int32
	ReplicationFactor int16
}

// VerificationConfig configures the external verification service client.
// An empty BaseURL selects the scripted in-process service (dev mode).
type VerificationConfig struct {
	BaseURL          string
	StageTimeout     time.Duration
	FailureThreshold int
	Cooldown         time.Duration
}

// WizardConfig bounds wizard sessions.
type WizardConfig struct {
	SessionTTL    time.Duration
	SweepInterval time.Duration
	LockTTL       time.Duration
}

const (
	DefaultStageTimeout = 30 * time.Second
	DefaultSessionTTL   = 2 * time.Hour
)

// FromEnv builds a Config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present; real
// environment variables win over its values.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		Server: Server{
			Addr:      envString("VERDANT_ADDR", ":8080"),
			LogLevel:  envString("LOG_LEVEL", "info"),
			LogFormat: envString("LOG_FORMAT", "json"),
			DevMode:   envBool("DEV_MODE", false),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:           envList("KAFKA_BROKERS"),
			Topic:             envString("KAFKA_TOPIC", "declaration-events"),
			ClientID:          envString("KAFKA_CLIENT_ID", "verdant"),
			Partitions:        int32(envInt("KAFKA_TOPIC_PARTITIONS", 3)),
			ReplicationFactor: int16(envInt("KAFKA_TOPIC_REPLICATION", 1)),
		},
		Verification: VerificationConfig{
			BaseURL:          os.Getenv("VERIFICATION_BASE_URL"),
			StageTimeout:     envDuration("VERIFICATION_STAGE_TIMEOUT", DefaultStageTimeout),
			FailureThreshold: envInt("VERIFICATION_FAILURE_THRESHOLD", 5),
			Cooldown:         envDuration("VERIFICATION_COOLDOWN", 30*time.Second),
		},
		Wizard: WizardConfig{
			SessionTTL:    envDuration("SESSION_TTL", DefaultSessionTTL),
			SweepInterval: envDuration("SESSION_SWEEP_INTERVAL", time.Minute),
			LockTTL:       envDuration("SUBMIT_LOCK_TTL", 30*time.Second),
		},
	}
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
