// Package config builds runtime configuration from environment variables so
// main stays lean. Every fraud threshold is tunable here rather than living as
// a constant next to the detection code.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates all runtime configuration for the attendance engine.
type Config struct {
	HTTP     HTTPConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Fraud    FraudConfig
	Realtime RealtimeConfig
}

// HTTPConfig captures HTTP server level configuration.
type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// PostgresConfig holds the database connection settings. An empty DSN selects
// the in-memory stores, which is the default for local development.
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds Redis connection settings. An empty URL disables Redis;
// offense counters and the realtime bridge then run in-process only.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds the audit-trail publisher settings. Empty brokers disable
// Kafka publishing; audit events are then only logged.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FraudConfig externalizes every anomaly-detection threshold.
type FraudConfig struct {
	// SpeedCeilingKmh is the implied travel speed above which two consecutive
	// samples are classified as teleportation.
	SpeedCeilingKmh float64
	// AccuracyFloorMeters excludes samples with worse reported accuracy from
	// speed computation to avoid radio-noise false positives.
	AccuracyFloorMeters float64
	// OutOfZoneEscalation is the offense count at which repeated out-of-zone
	// signals escalate to high severity and trigger an alert.
	OutOfZoneEscalation int
	// OffenseWindow bounds how long out-of-zone offenses accumulate.
	OffenseWindow time.Duration
	// GraceWindow is how late a check-in may be before the record is marked
	// late.
	GraceWindow time.Duration
}

// RealtimeConfig tunes the websocket fan-out layer.
type RealtimeConfig struct {
	// JWTSigningKey verifies handshake tokens; empty disables token auth and
	// the handshake falls back to explicit user_id.
	JWTSigningKey string
	// SendBuffer is the per-connection outbound queue; a full queue drops the
	// connection rather than blocking the hub.
	SendBuffer int
	// PingInterval drives server-side keepalive.
	PingInterval time.Duration
	// BridgeChannel is the Redis pub/sub channel shared by server instances.
	BridgeChannel string
}

// FromEnv builds a Config from environment variables with development
// defaults.
func FromEnv() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            envStr("SENTRA_ADDR", ":8080"),
			ShutdownTimeout: envDuration("SENTRA_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  envDuration("SENTRA_REQUEST_TIMEOUT", 30*time.Second),
		},
		Postgres: PostgresConfig{
			DSN:          os.Getenv("SENTRA_POSTGRES_DSN"),
			MaxOpenConns: envInt("SENTRA_POSTGRES_MAX_OPEN", 25),
			MaxIdleConns: envInt("SENTRA_POSTGRES_MAX_IDLE", 5),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("SENTRA_REDIS_URL"),
			PoolSize:     envInt("SENTRA_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("SENTRA_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("SENTRA_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("SENTRA_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("SENTRA_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("SENTRA_KAFKA_BROKERS"),
			Topic:   envStr("SENTRA_KAFKA_AUDIT_TOPIC", "sentra.audit"),
		},
		Fraud: FraudConfig{
			SpeedCeilingKmh:     envFloat("SENTRA_FRAUD_SPEED_CEILING_KMH", 500),
			AccuracyFloorMeters: envFloat("SENTRA_FRAUD_ACCURACY_FLOOR_M", 100),
			OutOfZoneEscalation: envInt("SENTRA_FRAUD_OUT_OF_ZONE_ESCALATION", 3),
			OffenseWindow:       envDuration("SENTRA_FRAUD_OFFENSE_WINDOW", time.Hour),
			GraceWindow:         envDuration("SENTRA_FRAUD_GRACE_WINDOW", 15*time.Minute),
		},
		Realtime: RealtimeConfig{
			JWTSigningKey: os.Getenv("SENTRA_REALTIME_JWT_KEY"),
			SendBuffer:    envInt("SENTRA_REALTIME_SEND_BUFFER", 64),
			PingInterval:  envDuration("SENTRA_REALTIME_PING_INTERVAL", 30*time.Second),
			BridgeChannel: envStr("SENTRA_REALTIME_BRIDGE_CHANNEL", "sentra.realtime"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
