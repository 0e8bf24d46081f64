package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"school-secretary/internal/tz"
)

// MinRefreshBuffer is the smallest allowed access-token refresh buffer.
const MinRefreshBuffer = 60 * time.Second

type Config struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	HTTPAddr string `yaml:"http_addr"`

	// User store
	StoreDriver string `yaml:"store_driver"` // "bolt" or "postgres"
	BoltPath    string `yaml:"bolt_path"`
	DatabaseURL string `yaml:"database_url"`

	// Google identity + calendar
	GoogleClientID         string `yaml:"google_client_id"`
	GoogleClientSecret     string `yaml:"google_client_secret"`
	GoogleTokenURL         string `yaml:"google_token_url"`
	GoogleCalendarEndpoint string `yaml:"google_calendar_endpoint"`

	// Canvas
	CanvasBaseURL string `yaml:"canvas_base_url"`
	CanvasToken   string `yaml:"canvas_token"`

	// Resend
	ResendAPIKey  string `yaml:"resend_api_key"`
	ResendBaseURL string `yaml:"resend_base_url"`
	DigestFrom    string `yaml:"digest_from"`
	WelcomeFrom   string `yaml:"welcome_from"`

	// PublicBaseURL is where unsubscribe links point.
	PublicBaseURL string `yaml:"public_base_url"`
	// AdminToken guards the sync and digest triggers; empty leaves them open.
	AdminToken string `yaml:"admin_token"`

	DigestSchedule    string `yaml:"digest_schedule"`
	DigestScheduleTZ  string `yaml:"digest_schedule_tz"`
	DigestConcurrency int    `yaml:"digest_concurrency"`

	TokenRefreshBuffer time.Duration `yaml:"token_refresh_buffer"`
	SyncDelay          time.Duration `yaml:"sync_delay"`
	HTTPTimeout        time.Duration `yaml:"http_timeout"`
	HTTPMaxAttempts    int           `yaml:"http_max_attempts"`
	DefaultTimezone    string        `yaml:"default_timezone"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Env:                "development",
		LogLevel:           "info",
		HTTPAddr:           ":8080",
		StoreDriver:        "bolt",
		BoltPath:           "data/school-secretary.db",
		GoogleTokenURL:     "https://oauth2.googleapis.com/token",
		ResendBaseURL:      "https://api.resend.com",
		DigestFrom:         "school-secretary <digest@example.com>",
		WelcomeFrom:        "school-secretary <onboarding@example.com>",
		PublicBaseURL:      "http://localhost:8080",
		DigestSchedule:     "0 8 * * *",
		DigestScheduleTZ:   "America/Los_Angeles",
		DigestConcurrency:  1,
		TokenRefreshBuffer: MinRefreshBuffer,
		SyncDelay:          100 * time.Millisecond,
		HTTPTimeout:        30 * time.Second,
		HTTPMaxAttempts:    3,
		DefaultTimezone:    "America/Los_Angeles",
	}
}

// Load reads defaults, then the YAML file named by CONFIG_FILE (if any),
// then environment overrides.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.applyEnv()
	cfg.Normalize()
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Env = getenv("APP_ENV", c.Env)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.HTTPAddr = getenv("HTTP_ADDR", c.HTTPAddr)

	c.StoreDriver = getenv("STORE_DRIVER", c.StoreDriver)
	c.BoltPath = getenv("BOLT_PATH", c.BoltPath)
	c.DatabaseURL = getenv("DATABASE_URL", c.DatabaseURL)

	c.GoogleClientID = getenv("GOOGLE_CLIENT_ID", c.GoogleClientID)
	c.GoogleClientSecret = getenv("GOOGLE_CLIENT_SECRET", c.GoogleClientSecret)
	c.GoogleTokenURL = getenv("GOOGLE_TOKEN_URL", c.GoogleTokenURL)
	c.GoogleCalendarEndpoint = getenv("GOOGLE_CALENDAR_ENDPOINT", c.GoogleCalendarEndpoint)

	c.CanvasBaseURL = getenv("CANVAS_BASE_URL", c.CanvasBaseURL)
	c.CanvasToken = getenv("CANVAS_TOKEN", c.CanvasToken)

	c.ResendAPIKey = getenv("RESEND_API_KEY", c.ResendAPIKey)
	c.ResendBaseURL = getenv("RESEND_BASE_URL", c.ResendBaseURL)
	c.DigestFrom = getenv("DIGEST_FROM", c.DigestFrom)
	c.WelcomeFrom = getenv("WELCOME_FROM", c.WelcomeFrom)
	c.PublicBaseURL = getenv("PUBLIC_BASE_URL", c.PublicBaseURL)
	c.AdminToken = getenv("ADMIN_TOKEN", c.AdminToken)

	c.DigestSchedule = getenv("DIGEST_SCHEDULE", c.DigestSchedule)
	c.DigestScheduleTZ = getenv("DIGEST_SCHEDULE_TZ", c.DigestScheduleTZ)
	c.DigestConcurrency = getenvInt("DIGEST_CONCURRENCY", c.DigestConcurrency)

	c.TokenRefreshBuffer = getenvDuration("TOKEN_REFRESH_BUFFER", c.TokenRefreshBuffer)
	c.SyncDelay = getenvDuration("SYNC_DELAY", c.SyncDelay)
	c.HTTPTimeout = getenvDuration("HTTP_TIMEOUT", c.HTTPTimeout)
	c.HTTPMaxAttempts = getenvInt("HTTP_MAX_ATTEMPTS", c.HTTPMaxAttempts)
	c.DefaultTimezone = getenv("DEFAULT_TIMEZONE", c.DefaultTimezone)
}

// Normalize clamps values that have a hard floor.
func (c *Config) Normalize() {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	if c.StoreDriver == "" {
		c.StoreDriver = "bolt"
	}
	if c.TokenRefreshBuffer < MinRefreshBuffer {
		c.TokenRefreshBuffer = MinRefreshBuffer
	}
	if c.DigestConcurrency <= 0 {
		c.DigestConcurrency = 1
	}
	if c.HTTPMaxAttempts <= 0 {
		c.HTTPMaxAttempts = 1
	}
	if c.SyncDelay < 0 {
		c.SyncDelay = 0
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
}

// Validate reports settings required by the digest and sync pipelines.
func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case "bolt":
		if c.BoltPath == "" {
			errs = append(errs, errors.New("BOLT_PATH is required for the bolt store"))
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET are required"))
	}
	if c.ResendAPIKey == "" {
		errs = append(errs, errors.New("RESEND_API_KEY is required"))
	}
	if _, err := tz.Load(c.DefaultTimezone); err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_TIMEZONE: %w", err))
	}
	return errors.Join(errs...)
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
