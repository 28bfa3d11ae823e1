// Package config builds the guestpass runtime configuration from defaults,
// an optional YAML file and GUESTPASS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GUESTPASS_"

var (
	ErrUnknownBackend  = errors.New("unknown storage backend")
	ErrNoAdminPassword = errors.New("admin_password or admin_password_hash is required")
)

// Event is the text printed on badges.
type Event struct {
	Title  string   `yaml:"title"`
	Lines  []string `yaml:"lines"`
	Footer string   `yaml:"footer"`
}

// Config is passed explicitly to every component at startup.
type Config struct {
	Addr        string        `yaml:"addr"`
	DataDir     string        `yaml:"data_dir"`
	Backend     string        `yaml:"backend"`
	LockTimeout time.Duration `yaml:"lock_timeout"`

	AdminPassword     string        `yaml:"admin_password"`
	AdminPasswordHash string        `yaml:"admin_password_hash"`
	SessionSecret     string        `yaml:"session_secret"`
	SessionTTL        time.Duration `yaml:"session_ttl"`
	SessionCookie     string        `yaml:"session_cookie"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	FontPath     string `yaml:"font_path"`
	BoldFontPath string `yaml:"bold_font_path"`
	Event        Event  `yaml:"event"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:          ":8080",
		DataDir:       "./data",
		Backend:       BackendCSV,
		LockTimeout:   5 * time.Second,
		SessionTTL:    24 * time.Hour,
		SessionCookie: "guestpass_admin_session",
		LogLevel:      "info",
		LogFormat:     "text",
		Event: Event{
			Title:  "Welcome Evening",
			Lines:  []string{"Date to be announced", "Venue to be announced", "7:00 PM onwards"},
			Footer: "Present at Registration",
		},
	}
}

// Load reads path (if non-empty) over the defaults and applies environment
// overrides. The result is not validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getEnv(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(EnvPrefix + key); ok && value != "" {
		return value
	}
	return fallback
}

func getDuration(lookup func(string) (string, bool), key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(lookup, key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
	}
	return d, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	c.Addr = getEnv(lookup, "ADDR", c.Addr)
	c.DataDir = getEnv(lookup, "DATA_DIR", c.DataDir)
	c.Backend = getEnv(lookup, "BACKEND", c.Backend)
	c.AdminPassword = getEnv(lookup, "ADMIN_PASSWORD", c.AdminPassword)
	c.AdminPasswordHash = getEnv(lookup, "ADMIN_PASSWORD_HASH", c.AdminPasswordHash)
	c.SessionSecret = getEnv(lookup, "SESSION_SECRET", c.SessionSecret)
	c.SessionCookie = getEnv(lookup, "SESSION_COOKIE", c.SessionCookie)
	c.LogLevel = getEnv(lookup, "LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv(lookup, "LOG_FORMAT", c.LogFormat)
	c.FontPath = getEnv(lookup, "FONT_PATH", c.FontPath)
	c.BoldFontPath = getEnv(lookup, "BOLD_FONT_PATH", c.BoldFontPath)

	var err error
	if c.LockTimeout, err = getDuration(lookup, "LOCK_TIMEOUT", c.LockTimeout); err != nil {
		return err
	}
	if c.SessionTTL, err = getDuration(lookup, "SESSION_TTL", c.SessionTTL); err != nil {
		return err
	}
	return nil
}

// Validate checks the configuration is usable for serving.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendCSV, BackendSQLite:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("lock_timeout must be positive, got %s", c.LockTimeout)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive, got %s", c.SessionTTL)
	}
	if c.SessionCookie == "" {
		return errors.New("session_cookie is required")
	}
	if c.AdminPassword == "" && c.AdminPasswordHash == "" {
		return ErrNoAdminPassword
	}
	return nil
}
