package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Tickets      TicketConfig
	SLA          SLAConfig
	Realtime     RealtimeConfig
	Notification NotificationConfig
	Seed         SeedConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer token verification parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// TicketConfig tunes ticket mutation and archive behavior.
type TicketConfig struct {
	OptimisticLocking bool
	ArchivePurgeDays  int
}

// SLAConfig points at an optional YAML allotment table and the watcher cadence.
type SLAConfig struct {
	PolicyFile           string
	WatchIntervalSeconds int
}

// RealtimeConfig tunes subscriber fanout.
type RealtimeConfig struct {
	SubscriberBuffer  int
	HeartbeatSeconds  int
	RedisRelayEnabled bool
	RedisChannel      string
}

// NotificationConfig holds notification retention settings.
type NotificationConfig struct {
	TTLHours  int
	ListLimit int
}

// SeedConfig points at optional bootstrap data.
type SeedConfig struct {
	IdentityFile string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Tickets: TicketConfig{
			OptimisticLocking: getEnvAsBool("TICKETS_OPTIMISTIC_LOCKING", false),
			ArchivePurgeDays:  getEnvAsInt("ARCHIVE_PURGE_DAYS", 90),
		},
		SLA: SLAConfig{
			PolicyFile:           os.Getenv("SLA_POLICY_FILE"),
			WatchIntervalSeconds: getEnvAsInt("SLA_WATCH_INTERVAL_SECONDS", 60),
		},
		Realtime: RealtimeConfig{
			SubscriberBuffer:  getEnvAsInt("REALTIME_SUBSCRIBER_BUFFER", 32),
			HeartbeatSeconds:  getEnvAsInt("REALTIME_HEARTBEAT_SECONDS", 25),
			RedisRelayEnabled: getEnvAsBool("REALTIME_REDIS_RELAY", false),
			RedisChannel:      getEnv("REALTIME_REDIS_CHANNEL", "helpdesk:events"),
		},
		Notification: NotificationConfig{
			TTLHours:  getEnvAsInt("NOTIFY_TTL_HOURS", 7*24),
			ListLimit: getEnvAsInt("NOTIFY_LIST_LIMIT", 20),
		},
		Seed: SeedConfig{
			IdentityFile: os.Getenv("IDENTITY_SEED_FILE"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// WatchInterval returns the SLA watcher tick, zero disables it.
func (s SLAConfig) WatchInterval() time.Duration {
	if s.WatchIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(s.WatchIntervalSeconds) * time.Second
}

// Heartbeat returns the stream keep-alive period.
func (r RealtimeConfig) Heartbeat() time.Duration {
	if r.HeartbeatSeconds <= 0 {
		return 25 * time.Second
	}
	return time.Duration(r.HeartbeatSeconds) * time.Second
}

// TTL returns the notification retention hint.
func (n NotificationConfig) TTL() time.Duration {
	if n.TTLHours <= 0 {
		return 0
	}
	return time.Duration(n.TTLHours) * time.Hour
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
