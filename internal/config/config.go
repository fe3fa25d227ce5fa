package config

import (
	"errors"
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
	Notification NotificationConfig
	Escalation   EscalationConfig
	Assignment   AssignmentConfig
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
	// Format is "json" or "console".
	Format  string
	Service string
	Env     string
}

// AuthConfig defines token verification parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig controls the notification sink.
type NotificationConfig struct {
	Channel string
	Enabled bool
}

// EscalationConfig controls the periodic escalation scan.
type EscalationConfig struct {
	ScanEnabled         bool
	ScanIntervalSeconds int
	BumpPriority        bool
}

// AssignmentConfig tunes mapping lookups.
type AssignmentConfig struct {
	MappingCacheTTLSeconds int
}

// Load reads configuration from the environment, after an optional .env
// file. Malformed numeric or boolean values are reported together rather
// than silently replaced by defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := &envReader{}
	cfg := &Config{
		App: AppConfig{
			Name:                  env.stringVar("APP_NAME", "hostel-dispatch"),
			Env:                   env.stringVar("APP_ENV", "development"),
			Host:                  env.stringVar("APP_HOST", "0.0.0.0"),
			Port:                  env.stringVar("APP_PORT", "8080"),
			Version:               env.stringVar("APP_VERSION", "dev"),
			RequestTimeoutSeconds: env.intVar("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(env.intVar("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(env.intVar("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  env.boolVar("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  env.stringVar("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(env.intVar("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(env.intVar("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     env.stringVar("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       env.intVar("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret:             env.stringVar("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: env.intVar("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			Channel: env.stringVar("NOTIFY_CHANNEL", "hostel.notifications"),
			Enabled: env.boolVar("NOTIFY_ENABLED", true),
		},
		Escalation: EscalationConfig{
			ScanEnabled:         env.boolVar("ESCALATION_SCAN_ENABLED", true),
			ScanIntervalSeconds: env.intVar("ESCALATION_SCAN_INTERVAL_SECONDS", 300),
			BumpPriority:        env.boolVar("ESCALATION_BUMP_PRIORITY", true),
		},
		Assignment: AssignmentConfig{
			MappingCacheTTLSeconds: env.intVar("MAPPING_CACHE_TTL_SECONDS", 60),
		},
	}
	cfg.Logger = LoggerConfig{
		Level:   env.stringVar("LOG_LEVEL", "info"),
		Format:  env.stringVar("LOG_FORMAT", "json"),
		Service: cfg.App.Name,
		Env:     cfg.App.Env,
	}

	if err := errors.Join(append(env.errs, cfg.validate()...)...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error
	if c.Escalation.ScanIntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("ESCALATION_SCAN_INTERVAL_SECONDS must be positive, got %d", c.Escalation.ScanIntervalSeconds))
	}
	if c.Postgres.MinConns > c.Postgres.MaxConns {
		errs = append(errs, fmt.Errorf("POSTGRES_MIN_CONNS (%d) exceeds POSTGRES_MAX_CONNS (%d)", c.Postgres.MinConns, c.Postgres.MaxConns))
	}
	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logger.Format))
	}
	if c.App.Env == "production" && c.Auth.JWTSecret == "dev-secret" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET must be set in production"))
	}
	return errs
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

// ScanInterval returns the escalation ticker period.
func (e EscalationConfig) ScanInterval() time.Duration {
	return time.Duration(e.ScanIntervalSeconds) * time.Second
}

// MappingCacheTTL returns how long mapping lookups stay cached; zero disables caching.
func (a AssignmentConfig) MappingCacheTTL() time.Duration {
	if a.MappingCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(a.MappingCacheTTLSeconds) * time.Second
}

// envReader reads typed variables and remembers every parse failure.
type envReader struct {
	errs []error
}

func (r *envReader) stringVar(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func (r *envReader) intVar(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return parsed
}

func (r *envReader) boolVar(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return parsed
}
