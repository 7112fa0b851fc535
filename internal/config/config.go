package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/Sunnyio/attendanceManager/internal/retry"
)

const (
	DefaultEnvFile             = ".env"
	DefaultHost                = "0.0.0.0"
	DefaultPort                = 8000
	DefaultLogLevel            = "info"
	DefaultMaintenanceSchedule = "@daily"
	DefaultInsightsPerMinute   = 30
)

// Config is the resolved service configuration.
type Config struct {
	DatabaseURL string
	Host        string
	Port        int
	Debug       bool

	LogLevel string
	LogFile  string

	CORSOrigins []string

	Retry retry.Policy

	InsightsPerMinute   float64
	MaintenanceSchedule string

	Timeouts TimeoutConfig
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate reports settings the service cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}
	if c.Retry.Attempts < 1 {
		errs = append(errs, errors.New("DB_RETRY_ATTEMPTS must be at least 1"))
	}
	if c.Retry.MinDelay > c.Retry.MaxDelay {
		errs = append(errs, errors.New("DB_RETRY_MIN_SECONDS must not exceed DB_RETRY_MAX_SECONDS"))
	}
	return errors.Join(errs...)
}

// LoadEnvFile loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads envFile (if present) and then the environment.
func Load(envFile string) (*Config, error) {
	if err := LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	return FromLoader(NewLoader(EnvSource{})), nil
}

// FromLoader resolves a Config from l, applying defaults.
func FromLoader(l *Loader) *Config {
	schedule := DefaultMaintenanceSchedule
	if val, ok := l.Raw("MAINTENANCE_SCHEDULE"); ok {
		schedule = val
	}

	logLevel := l.String("LOG_LEVEL", DefaultLogLevel)
	debug := l.Bool("DEBUG", false)
	if debug && logLevel == DefaultLogLevel {
		logLevel = "debug"
	}

	return &Config{
		DatabaseURL: l.String("DATABASE_URL", ""),
		Host:        l.String("HOST", DefaultHost),
		Port:        l.Int("PORT", DefaultPort),
		Debug:       debug,

		LogLevel: logLevel,
		LogFile:  l.String("LOG_FILE", ""),

		CORSOrigins: l.Strings("CORS_ORIGINS", []string{"*"}),

		Retry: retry.Policy{
			Attempts: l.Int("DB_RETRY_ATTEMPTS", retry.DefaultAttempts),
			MinDelay: l.DurationSeconds("DB_RETRY_MIN_SECONDS", retry.DefaultMinDelay.Seconds()),
			MaxDelay: l.DurationSeconds("DB_RETRY_MAX_SECONDS", retry.DefaultMaxDelay.Seconds()),
		},

		InsightsPerMinute:   l.Float64("INSIGHTS_RATE_PER_MINUTE", DefaultInsightsPerMinute),
		MaintenanceSchedule: schedule,

		Timeouts: loadTimeouts(l),
	}
}

// RetryWindow is the longest a single storage call can spend backing off.
func (c *Config) RetryWindow() time.Duration {
	var total time.Duration
	for attempt := 1; attempt < c.Retry.Attempts; attempt++ {
		total += c.Retry.Backoff(attempt)
	}
	return total
}
