package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName         = "VTUClient"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultAPITimeout      = 15 * time.Second
	defaultRetryMaxElapsed = 5 * time.Second
	defaultSessionStore    = StoreFile
	defaultSessionFile     = ".vtu/session.json"
	defaultSessionProfile  = "default"
	defaultLoginRateLimit  = 5
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	apiTimeoutSecondsEnv   = "API_TIMEOUT_SECONDS"
	apiTimeoutDurationEnv  = "API_TIMEOUT"
	retryMaxElapsedEnvVar  = "API_RETRY_MAX_ELAPSED"
)

// Session store backends selectable through SESSION_STORE.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName         string
	AppEnv          string
	Port            string
	LogLevel        string
	APIBaseURL      string
	APITimeout      time.Duration
	RetryMaxElapsed time.Duration
	SessionStore    string
	SessionFile     string
	SessionProfile  string
	LockOnResume    bool
	DiscardStale    bool
	LoginRateLimit  int
	DatabaseURL     string
	RedisURL        string
	ShutdownPeriod  time.Duration
	IdempotencyTTL  time.Duration
}

// Load reads configuration values from the environment (and an optional .env
// file) and populates a Config instance.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		APIBaseURL:     strings.TrimRight(os.Getenv("API_BASE_URL"), "/"),
		SessionStore:   strings.ToLower(getEnv("SESSION_STORE", defaultSessionStore)),
		SessionFile:    getEnv("SESSION_FILE", defaultSessionFile),
		SessionProfile: getEnv("SESSION_PROFILE", defaultSessionProfile),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.APITimeout, err = durationEnv(apiTimeoutSecondsEnv, apiTimeoutDurationEnv, defaultAPITimeout); err != nil {
		return Config{}, err
	}
	if cfg.RetryMaxElapsed, err = durationEnv("", retryMaxElapsedEnvVar, defaultRetryMaxElapsed); err != nil {
		return Config{}, err
	}
	if cfg.LockOnResume, err = boolEnv("SESSION_LOCK_ON_RESUME", true); err != nil {
		return Config{}, err
	}
	if cfg.DiscardStale, err = boolEnv("SESSION_DISCARD_STALE", false); err != nil {
		return Config{}, err
	}

	cfg.LoginRateLimit = defaultLoginRateLimit
	if v := os.Getenv("LOGIN_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOGIN_RATE_LIMIT: %w", err)
		}
		cfg.LoginRateLimit = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks cross-field requirements such as the backing services a
// chosen session store needs.
func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL must be set")
	}

	switch c.SessionStore {
	case StoreMemory:
	case StoreFile:
		if c.SessionFile == "" {
			return fmt.Errorf("SESSION_FILE must be set when SESSION_STORE=%s", StoreFile)
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set when SESSION_STORE=%s", StoreRedis)
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set when SESSION_STORE=%s", StorePostgres)
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.SessionStore)
	}

	return nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the application runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationEnv prefers an integer seconds variable over a Go duration string.
func durationEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if secondsKey != "" {
		if v := os.Getenv(secondsKey); v != "" {
			seconds, err := strconv.Atoi(v)
			if err != nil {
				return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
			}
			return time.Duration(seconds) * time.Second, nil
		}
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

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
