package config

import (
	"time"
)

// Store backends selectable per concern.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendKafka    = "kafka"
)

// Config is the full runtime configuration, loaded from environment variables.
type Config struct {
	Server   Server
	Scanner  Scanner
	Stores   Stores
	Postgres Postgres
	Redis    RedisConfig
	Kafka    Kafka
	Auth     Auth
	Log      Log

	// SeedDemo loads the demo guest list on startup.
	SeedDemo bool
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	// AdminToken guards guest-list administration. Empty disables it.
	AdminToken string
	// FeedOrigins are extra host patterns allowed to open the outcome feed
	// cross-origin.
	FeedOrigins []string
}

// Scanner configures the tag readers offered to every staff device.
type Scanner struct {
	// DefaultMode is used when a start request names no mode.
	DefaultMode string
	// SimulatedDelay is how long the simulated reader waits before emitting.
	SimulatedDelay time.Duration
	// HardwareDevice is the reader device path. Empty means no hardware.
	HardwareDevice string
	// SubscriberBuffer is the per-subscriber outcome buffer.
	SubscriberBuffer int
}

// Stores selects the backend for each store.
type Stores struct {
	Registry string
	Entities string
	Audit    string
}

type Postgres struct {
	URL      string
	Schema   string
	MaxConns int32
	MinConns int32
}

// RedisConfig configures the shared go-redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyPrefix    string
}

type Kafka struct {
	Brokers  []string
	Topic    string
	ClientID string
	// AuditBuffer sizes the async audit publisher buffer.
	AuditBuffer int
}

type Auth struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
}

type Log struct {
	Level  string
	Format string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:              EnvString("CHECKIN_ADDR", ":8080"),
			ReadHeaderTimeout: EnvDuration("CHECKIN_READ_HEADER_TIMEOUT", 5*time.Second),
			ShutdownTimeout:   EnvDuration("CHECKIN_SHUTDOWN_TIMEOUT", 10*time.Second),
			AdminToken:        EnvString("CHECKIN_ADMIN_TOKEN", ""),
			FeedOrigins:       EnvList("CHECKIN_FEED_ORIGINS"),
		},
		Scanner: Scanner{
			DefaultMode:      EnvString("CHECKIN_SCANNER_MODE", "simulated"),
			SimulatedDelay:   EnvDuration("CHECKIN_SIMULATED_DELAY", 2*time.Second),
			HardwareDevice:   EnvString("CHECKIN_HARDWARE_DEVICE", ""),
			SubscriberBuffer: EnvInt("CHECKIN_SUBSCRIBER_BUFFER", 16),
		},
		Stores: Stores{
			Registry: EnvString("CHECKIN_REGISTRY_STORE", BackendMemory),
			Entities: EnvString("CHECKIN_ENTITY_STORE", BackendMemory),
			Audit:    EnvString("CHECKIN_AUDIT_STORE", BackendMemory),
		},
		Postgres: Postgres{
			URL:      EnvString("CHECKIN_DATABASE_URL", ""),
			Schema:   EnvString("CHECKIN_DATABASE_SCHEMA", "checkin"),
			MaxConns: EnvInt32("CHECKIN_DB_MAX_CONNS", 10),
			MinConns: EnvInt32("CHECKIN_DB_MIN_CONNS", 0),
		},
		Redis: RedisConfig{
			URL:          EnvString("CHECKIN_REDIS_URL", ""),
			PoolSize:     EnvInt("CHECKIN_REDIS_POOL_SIZE", 10),
			MinIdleConns: EnvInt("CHECKIN_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  EnvDuration("CHECKIN_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  EnvDuration("CHECKIN_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: EnvDuration("CHECKIN_REDIS_WRITE_TIMEOUT", 3*time.Second),
			KeyPrefix:    EnvString("CHECKIN_REDIS_KEY_PREFIX", "checkin"),
		},
		Kafka: Kafka{
			Brokers:     EnvList("CHECKIN_KAFKA_BROKERS"),
			Topic:       EnvString("CHECKIN_KAFKA_AUDIT_TOPIC", "checkin.audit"),
			ClientID:    EnvString("CHECKIN_KAFKA_CLIENT_ID", "checkin"),
			AuditBuffer: EnvInt("CHECKIN_AUDIT_BUFFER", 1024),
		},
		Auth: Auth{
			// Use a default for development - should be overridden in production
			JWTSigningKey: EnvString("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:        EnvString("CHECKIN_JWT_ISSUER", "checkin"),
			Audience:      EnvString("CHECKIN_JWT_AUDIENCE", "checkin-staff"),
		},
		Log: Log{
			Level:  EnvString("CHECKIN_LOG_LEVEL", "info"),
			Format: EnvString("CHECKIN_LOG_FORMAT", "json"),
		},
		SeedDemo: EnvBool("CHECKIN_SEED_DEMO", false),
	}
}
