// Package config loads showinghive server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/evcraddock/showinghive/internal/auth"
)

// Config holds server configuration read from HIVE_* variables.
type Config struct {
	Port       int    `validate:"min=1,max=65535"`
	BaseURL    string `validate:"required,url"`
	AdminEmail string `validate:"omitempty,email"`
	DevMode    bool
	TimeZone   string `validate:"required"`

	SMTP SMTP

	// RedisAddr enables the shared booking lock when set.
	RedisAddr string `validate:"omitempty,hostname_port"`

	CleanupSpec  string `validate:"required"`
	ReminderSpec string `validate:"required"`
	ExpireSpec   string `validate:"required"`

	NotifyQueue int     `validate:"min=1"`
	NotifyRate  float64 `validate:"gt=0"`
}

// SMTP holds the mail relay used for login links.
type SMTP struct {
	Host string `validate:"required_with=From"`
	Port string `validate:"omitempty,numeric"`
	User string
	Pass string
	From string `validate:"omitempty,email"`
}

// Load reads envFile (if it exists) into the environment, then builds and
// validates a Config. Variables already set in the environment win.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from the environment without validating it.
func FromEnv() (*Config, error) {
	port, err := envInt("HIVE_PORT", 8080)
	if err != nil {
		return nil, err
	}
	queue, err := envInt("HIVE_NOTIFY_QUEUE", 100)
	if err != nil {
		return nil, err
	}
	rate, err := envFloat("HIVE_NOTIFY_RATE", 5)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:       port,
		BaseURL:    envOrDefault("HIVE_BASE_URL", fmt.Sprintf("http://localhost:%d", port)),
		AdminEmail: os.Getenv("HIVE_ADMIN_EMAIL"),
		DevMode:    os.Getenv("HIVE_DEV_MODE") == "true",
		TimeZone:   envOrDefault("HIVE_TIMEZONE", "UTC"),
		SMTP: SMTP{
			Host: os.Getenv("HIVE_SMTP_HOST"),
			Port: envOrDefault("HIVE_SMTP_PORT", "587"),
			User: os.Getenv("HIVE_SMTP_USER"),
			Pass: os.Getenv("HIVE_SMTP_PASS"),
			From: os.Getenv("HIVE_SMTP_FROM"),
		},
		RedisAddr:    os.Getenv("HIVE_REDIS_ADDR"),
		CleanupSpec:  envOrDefault("HIVE_CRON_CLEANUP", "@hourly"),
		ReminderSpec: envOrDefault("HIVE_CRON_REMINDERS", "*/5 * * * *"),
		ExpireSpec:   envOrDefault("HIVE_CRON_EXPIRE_CODES", "*/15 * * * *"),
		NotifyQueue:  queue,
		NotifyRate:   rate,
	}, nil
}

// Validate checks struct constraints and that the time zone exists.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid HIVE_TIMEZONE %q: %w", c.TimeZone, err)
	}
	return nil
}

// Location returns the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Auth returns the subset used by the auth package.
func (c *Config) Auth() auth.Config {
	return auth.Config{
		AdminEmail: c.AdminEmail,
		SMTPHost:   c.SMTP.Host,
		SMTPPort:   c.SMTP.Port,
		SMTPUser:   c.SMTP.User,
		SMTPPass:   c.SMTP.Pass,
		SMTPFrom:   c.SMTP.From,
		DevMode:    c.DevMode,
		BaseURL:    c.BaseURL,
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}
