package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
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
	SLA          SLAConfig
	Monitor      MonitorConfig
	Rules        RulesConfig
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
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer token validation and the role that may run
// operator actions.
type AuthConfig struct {
	JWTSecret string
	AdminRole string
}

// NotificationConfig holds outbound SLA notification targets. Empty values
// disable the target.
type NotificationConfig struct {
	WebhookURL            string
	WebhookTimeoutSeconds int
	NATSURL               string
	NATSSubjectPrefix     string
}

// SLAConfig controls due date computation and breach detection.
type SLAConfig struct {
	Timezone           string
	InactiveStatuses   []string
	ResolvedStatuses   []string
	WarningWindowHours float64
}

// MonitorConfig controls the scheduled scan.
type MonitorConfig struct {
	Enabled              bool
	IntervalSeconds      int
	MarkerRetentionHours int
	LockTTLSeconds       int
	DistributedLock      bool
}

// RulesConfig selects where rules are loaded from.
type RulesConfig struct {
	Source                 string
	Path                   string
	RefreshIntervalSeconds int
}

// Rule sources.
const (
	RulesSourcePostgres = "postgres"
	RulesSourceFile     = "file"
)

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	warningWindow, err := strconv.ParseFloat(getEnv("SLA_WARNING_WINDOW_HOURS", "2"), 64)
	if err != nil || warningWindow < 0 {
		return nil, fmt.Errorf("invalid SLA_WARNING_WINDOW_HOURS: %q", os.Getenv("SLA_WARNING_WINDOW_HOURS"))
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "sla-engine"),
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
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AdminRole: getEnv("AUTH_ADMIN_ROLE", "admin"),
		},
		Notification: NotificationConfig{
			WebhookURL:            getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookTimeoutSeconds: getEnvAsInt("NOTIFY_WEBHOOK_TIMEOUT_SECONDS", 5),
			NATSURL:               getEnv("NATS_URL", ""),
			NATSSubjectPrefix:     getEnv("NATS_SUBJECT_PREFIX", ""),
		},
		SLA: SLAConfig{
			Timezone:           getEnv("SLA_TIMEZONE", "UTC"),
			InactiveStatuses:   getEnvAsList("SLA_INACTIVE_STATUSES", []string{"resolved", "closed"}),
			ResolvedStatuses:   getEnvAsList("SLA_RESOLVED_STATUSES", []string{"resolved", "closed"}),
			WarningWindowHours: warningWindow,
		},
		Monitor: MonitorConfig{
			Enabled:              getEnvAsBool("SLA_MONITOR_ENABLED", true),
			IntervalSeconds:      getEnvAsInt("SLA_MONITOR_INTERVAL_SECONDS", 300),
			MarkerRetentionHours: getEnvAsInt("SLA_MONITOR_MARKER_RETENTION_HOURS", 0),
			LockTTLSeconds:       getEnvAsInt("SLA_MONITOR_LOCK_TTL_SECONDS", 120),
			DistributedLock:      getEnvAsBool("SLA_MONITOR_DISTRIBUTED_LOCK", true),
		},
		Rules: RulesConfig{
			Source:                 strings.ToLower(getEnv("RULES_SOURCE", RulesSourcePostgres)),
			Path:                   getEnv("RULES_PATH", "configs/rules.yaml"),
			RefreshIntervalSeconds: getEnvAsInt("RULES_REFRESH_INTERVAL_SECONDS", 60),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Rules.Source {
	case RulesSourcePostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("RULES_SOURCE=postgres requires POSTGRES_DSN")
		}
	case RulesSourceFile:
		if c.Rules.Path == "" {
			return fmt.Errorf("RULES_SOURCE=file requires RULES_PATH")
		}
	default:
		return fmt.Errorf("invalid RULES_SOURCE %q", c.Rules.Source)
	}
	if _, err := time.LoadLocation(c.SLA.Timezone); err != nil {
		return fmt.Errorf("invalid SLA_TIMEZONE: %w", err)
	}
	return nil
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

// Location resolves the business calendar timezone.
func (s SLAConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WarningWindow returns the approach window.
func (s SLAConfig) WarningWindow() time.Duration {
	return time.Duration(s.WarningWindowHours * float64(time.Hour))
}

// IsResolvedStatus reports whether moving into status resolves a ticket.
func (s SLAConfig) IsResolvedStatus(status string) bool {
	for _, resolved := range s.ResolvedStatuses {
		if resolved == status {
			return true
		}
	}
	return false
}

// Interval returns the scan interval.
func (m MonitorConfig) Interval() time.Duration {
	return time.Duration(m.IntervalSeconds) * time.Second
}

// MarkerRetention returns how long a notification marker outlives its
// deadline; zero keeps markers forever.
func (m MonitorConfig) MarkerRetention() time.Duration {
	if m.MarkerRetentionHours <= 0 {
		return 0
	}
	return time.Duration(m.MarkerRetentionHours) * time.Hour
}

// LockTTL returns the expiry of the distributed scan lock.
func (m MonitorConfig) LockTTL() time.Duration {
	return time.Duration(m.LockTTLSeconds) * time.Second
}

// RefreshInterval returns the rule reload interval; zero disables polling.
func (r RulesConfig) RefreshInterval() time.Duration {
	if r.RefreshIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(r.RefreshIntervalSeconds) * time.Second
}

// WebhookTimeout returns the webhook request timeout.
func (n NotificationConfig) WebhookTimeout() time.Duration {
	return time.Duration(n.WebhookTimeoutSeconds) * time.Second
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

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
