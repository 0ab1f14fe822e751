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
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Mail     MailConfig
	Webhook  WebhookConfig
	Worker   WorkerConfig
	Stream   StreamConfig
	Intake   IntakeConfig
	Storage  StorageConfig
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

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// MailConfig configures the outbound SMTP transport. When Host is empty the
// service falls back to a log-only transport.
type MailConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	// TrackingBaseURL is the public base URL used for read-receipt pixels.
	TrackingBaseURL string
}

// WebhookConfig configures fire-and-forget webhook delivery.
type WebhookConfig struct {
	URL            string
	TimeoutSeconds int
}

// WorkerConfig tunes the scheduled delivery worker.
type WorkerConfig struct {
	PollIntervalSeconds int
	SendSpacingMillis   int
}

// StreamConfig tunes the real-time event stream.
type StreamConfig struct {
	KeepAliveSeconds int
}

// IntakeConfig guards the inbound email endpoint.
type IntakeConfig struct {
	SharedSecret string
	// DedupTTLHours bounds the Redis fast-path dedup window.
	DedupTTLHours int
}

// StorageConfig locates the attachment blob store.
type StorageConfig struct {
	Dir string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "conversation-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
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
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 480),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Mail: MailConfig{
			Host:            os.Getenv("SMTP_HOST"),
			Port:            getEnvAsInt("SMTP_PORT", 587),
			Username:        os.Getenv("SMTP_USERNAME"),
			Password:        os.Getenv("SMTP_PASSWORD"),
			FromEmail:       getEnv("MAIL_FROM", "support@example.com"),
			FromName:        getEnv("MAIL_FROM_NAME", "Support"),
			TrackingBaseURL: getEnv("MAIL_TRACKING_BASE_URL", "http://localhost:8080"),
		},
		Webhook: WebhookConfig{
			URL:            os.Getenv("WEBHOOK_URL"),
			TimeoutSeconds: getEnvAsInt("WEBHOOK_TIMEOUT_SECONDS", 10),
		},
		Worker: WorkerConfig{
			PollIntervalSeconds: getEnvAsInt("SCHEDULER_POLL_INTERVAL_SECONDS", 60),
			SendSpacingMillis:   getEnvAsInt("SCHEDULER_SEND_SPACING_MILLIS", 500),
		},
		Stream: StreamConfig{
			KeepAliveSeconds: getEnvAsInt("STREAM_KEEPALIVE_SECONDS", 30),
		},
		Intake: IntakeConfig{
			SharedSecret:  os.Getenv("INTAKE_SHARED_SECRET"),
			DedupTTLHours: getEnvAsInt("INTAKE_DEDUP_TTL_HOURS", 48),
		},
		Storage: StorageConfig{
			Dir: getEnv("ATTACHMENT_DIR", "data/attachments"),
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

// PollInterval returns the worker wake interval.
func (w WorkerConfig) PollInterval() time.Duration {
	if w.PollIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(w.PollIntervalSeconds) * time.Second
}

// SendSpacing returns the pause between consecutive scheduled sends.
func (w WorkerConfig) SendSpacing() time.Duration {
	if w.SendSpacingMillis < 0 {
		return 0
	}
	return time.Duration(w.SendSpacingMillis) * time.Millisecond
}

// KeepAlive returns the stream keep-alive interval.
func (s StreamConfig) KeepAlive() time.Duration {
	if s.KeepAliveSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.KeepAliveSeconds) * time.Second
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
