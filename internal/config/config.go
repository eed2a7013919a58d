package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName         = "DeliveryHub"
	defaultAppEnv          = "development"
	defaultPort            = "7860"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultSessionTTL      = 7 * 24 * time.Hour
	defaultSessionCookie   = "delivery_session"
	defaultKafkaTopic      = "delivery.events"
	defaultLoginAttempts   = 5
	devPINSecret           = "development-pin-secret"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	sessionTTLEnvVar       = "SESSION_TTL"
	loginAttemptsEnvVar    = "LOGIN_ATTEMPTS_PER_MINUTE"
	dbMaxConnsEnvVar       = "DB_MAX_CONNS"
	dbMinConnsEnvVar       = "DB_MIN_CONNS"
	dbConnLifetimeEnvVar   = "DB_MAX_CONN_LIFETIME"
	redisPoolSizeEnvVar    = "REDIS_POOL_SIZE"
	connectTimeoutEnvVar   = "CONNECT_TIMEOUT"
	defaultConnectTimeout  = 5 * time.Second
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	Env            string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	SessionTTL     time.Duration
	SessionCookie  string
	PINSecret      string
	LoginAttempts  int
	KafkaBrokers   []string
	KafkaTopic     string
	CORSOrigins    string

	DBMaxConns        int32
	DBMinConns        int32
	DBMaxConnLifetime time.Duration
	RedisPoolSize     int
	ConnectTimeout    time.Duration
}

// Load reads configuration values from the environment and populates a Config
// instance. A .env file in the working directory is applied first when present;
// variables already set in the environment win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		Env:            strings.ToLower(getEnv("APP_ENV", defaultAppEnv)),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
		SessionTTL:     defaultSessionTTL,
		SessionCookie:  getEnv("SESSION_COOKIE", defaultSessionCookie),
		PINSecret:      os.Getenv("PIN_SECRET"),
		LoginAttempts:  defaultLoginAttempts,
		KafkaBrokers:   splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", defaultKafkaTopic),
		CORSOrigins:    os.Getenv("CORS_ORIGINS"),
		ConnectTimeout: defaultConnectTimeout,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationFromEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationFromEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if v := os.Getenv(sessionTTLEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", sessionTTLEnvVar, err)
		}
		cfg.SessionTTL = d
	}
	if v := os.Getenv(loginAttemptsEnvVar); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", loginAttemptsEnvVar, err)
		}
		cfg.LoginAttempts = n
	}

	if err := loadPoolSettings(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.IsDev() {
		if cfg.PINSecret == "" {
			cfg.PINSecret = devPINSecret
		}
		return cfg, nil
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}
	if cfg.PINSecret == "" {
		return Config{}, fmt.Errorf("PIN_SECRET must be set")
	}
	cfg.DatabaseURL, err = NormalizeDatabaseURL(cfg.DatabaseURL)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the service runs in a local development environment.
func (c Config) IsDev() bool {
	switch c.Env {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// NormalizeDatabaseURL rewrites the legacy postgres:// scheme and requests TLS
// unless the URL already chooses an sslmode.
func NormalizeDatabaseURL(raw string) (string, error) {
	if strings.HasPrefix(raw, "postgres://") {
		raw = "postgresql://" + strings.TrimPrefix(raw, "postgres://")
	}
	if !strings.HasPrefix(raw, "postgresql://") {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	q := u.Query()
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "require")
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func loadPoolSettings(cfg *Config) error {
	for _, v := range []struct {
		key string
		dst *int32
	}{{dbMaxConnsEnvVar, &cfg.DBMaxConns}, {dbMinConnsEnvVar, &cfg.DBMinConns}} {
		raw := os.Getenv(v.key)
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid %s: %q", v.key, raw)
		}
		*v.dst = int32(n)
	}
	if cfg.DBMinConns > 0 && cfg.DBMaxConns > 0 && cfg.DBMinConns > cfg.DBMaxConns {
		return fmt.Errorf("%s must not exceed %s", dbMinConnsEnvVar, dbMaxConnsEnvVar)
	}
	if raw := os.Getenv(redisPoolSizeEnvVar); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid %s: %q", redisPoolSizeEnvVar, raw)
		}
		cfg.RedisPoolSize = n
	}
	for _, v := range []struct {
		key string
		dst *time.Duration
	}{{dbConnLifetimeEnvVar, &cfg.DBMaxConnLifetime}, {connectTimeoutEnvVar, &cfg.ConnectTimeout}} {
		raw := os.Getenv(v.key)
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", v.key, err)
		}
		*v.dst = d
	}
	return nil
}

func durationFromEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
