// Package config loads the payroll console configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	API      APIConfig      `yaml:"api"`
	Auth     AuthConfig     `yaml:"auth"`
	Recovery RecoveryConfig `yaml:"recovery"`
	Storage  StorageConfig  `yaml:"storage"`
	UI       UIConfig       `yaml:"ui"`
	Log      LogConfig      `yaml:"log"`
	Mock     MockConfig     `yaml:"mock"`
}

// APIConfig describes the payroll REST API
type APIConfig struct {
	BaseURL     string `yaml:"base_url"`     // e.g. "http://localhost:8000"
	LoginPath   string `yaml:"login_path"`   // OAuth2 password-grant endpoint
	ProfilePath string `yaml:"profile_path"` // current-user endpoint
	Timeout     int    `yaml:"timeout"`      // Per-request timeout in seconds
}

// AuthConfig defines token handling
type AuthConfig struct {
	ExpiryLookahead  int  `yaml:"expiry_lookahead"`  // Seconds before exp at which a token counts as expired
	RememberPassword bool `yaml:"remember_password"` // Default for the login remember-me choice
}

// RecoveryConfig controls automatic re-authentication
type RecoveryConfig struct {
	Timeout     int     `yaml:"timeout"`      // Seconds allowed for one re-authentication attempt
	ReplayRate  float64 `yaml:"replay_rate"`  // Replayed requests per second after recovery
	ReplayBurst int     `yaml:"replay_burst"` // Replay burst size
}

// StorageConfig selects where client state is persisted
type StorageConfig struct {
	Driver string      `yaml:"driver"` // file, redis, memory
	Path   string      `yaml:"path"`   // State file for the file driver
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig defines the redis storage driver
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// UIConfig defines terminal presentation
type UIConfig struct {
	AppTitle string `yaml:"app_title"`
}

// LogConfig defines logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MockConfig defines the development stub API
type MockConfig struct {
	Listen     string `yaml:"listen"`
	SigningKey string `yaml:"signing_key"`
	TokenTTL   int    `yaml:"token_ttl"` // Issued token lifetime in seconds
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return finish(cfg)
}

// LoadOptional behaves like Load but falls back to defaults when the file
// does not exist. Any other read or parse failure is still an error.
func LoadOptional(path string) (*Config, error) {
	if path == "" {
		return finish(DefaultConfig())
	}
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("config file not found, using defaults", "path", path)
		return finish(DefaultConfig())
	}
	return cfg, err
}

func finish(cfg *Config) (*Config, error) {
	// Apply environment variable overrides
	cfg.applyEnvOverrides()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// DefaultPath returns the per-user configuration file location.
func DefaultPath() string {
	if v := os.Getenv("PAYROLL_CONFIG"); v != "" {
		return v
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "payrollctl.yaml"
	}
	return filepath.Join(dir, "payrollctl", "config.yaml")
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".payrollctl-state.yaml"
	}
	return filepath.Join(dir, "payrollctl", "state.yaml")
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:     "http://localhost:8000",
			LoginPath:   "/api/v1/auth/login",
			ProfilePath: "/api/v1/auth/me",
			Timeout:     15,
		},
		Auth: AuthConfig{
			ExpiryLookahead:  300, // 5 minutes
			RememberPassword: false,
		},
		Recovery: RecoveryConfig{
			Timeout:     15,
			ReplayRate:  20,
			ReplayBurst: 10,
		},
		Storage: StorageConfig{
			Driver: "file",
			Path:   defaultStatePath(),
			Redis: RedisConfig{
				Prefix: "payrollctl:",
			},
		},
		UI: UIConfig{
			AppTitle: "Payroll Management System",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Mock: MockConfig{
			Listen:     "127.0.0.1:8000",
			SigningKey: "payroll-mock-signing-key-dev-only",
			TokenTTL:   1800,
		},
	}
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	// API overrides
	if v := os.Getenv("PAYROLL_API_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}

	// Storage overrides
	if v := os.Getenv("PAYROLL_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("PAYROLL_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("PAYROLL_REDIS_ADDR"); v != "" {
		c.Storage.Redis.Addr = v
	}
	if v := os.Getenv("PAYROLL_REDIS_PASSWORD"); v != "" {
		c.Storage.Redis.Password = v
	}

	// Log overrides
	if v := os.Getenv("PAYROLL_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PAYROLL_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}

	// Mock overrides
	if v := os.Getenv("PAYROLL_MOCK_LISTEN"); v != "" {
		c.Mock.Listen = v
	}
	if v := os.Getenv("PAYROLL_MOCK_SIGNING_KEY"); v != "" {
		c.Mock.SigningKey = v
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Validate API config
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must be a valid HTTP(S) URL")
	}
	if !strings.HasPrefix(c.API.LoginPath, "/") {
		return fmt.Errorf("api.login_path must start with '/'")
	}
	if !strings.HasPrefix(c.API.ProfilePath, "/") {
		return fmt.Errorf("api.profile_path must start with '/'")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if c.API.Timeout > 300 {
		return fmt.Errorf("api.timeout should not exceed 300 seconds")
	}

	// Validate auth config
	if c.Auth.ExpiryLookahead < 0 {
		return fmt.Errorf("auth.expiry_lookahead must not be negative")
	}
	if c.Auth.ExpiryLookahead > 3600 {
		return fmt.Errorf("auth.expiry_lookahead should not exceed 3600 seconds (1 hour)")
	}

	// Validate recovery config
	if c.Recovery.Timeout <= 0 {
		return fmt.Errorf("recovery.timeout must be positive")
	}
	if c.Recovery.ReplayRate <= 0 {
		return fmt.Errorf("recovery.replay_rate must be positive")
	}
	if c.Recovery.ReplayBurst < 1 {
		return fmt.Errorf("recovery.replay_burst must be at least 1")
	}

	// Validate storage config
	switch c.Storage.Driver {
	case "file":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the file driver")
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is required for the redis driver")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.driver must be one of: file, redis, memory")
	}

	if c.UI.AppTitle == "" {
		return fmt.Errorf("ui.app_title is required")
	}

	// Validate log config
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: json, text")
	}

	// Validate mock config
	if c.Mock.TokenTTL <= 0 {
		return fmt.Errorf("mock.token_ttl must be positive")
	}
	if len(c.Mock.SigningKey) < 16 {
		return fmt.Errorf("mock.signing_key must be at least 16 characters")
	}

	return nil
}

// SetupLogging configures the global slog logger based on the LogConfig.
func SetupLogging(cfg *LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// Redact returns a copy of the config with secrets redacted for safe logging
func (c *Config) Redact() *Config {
	redacted := *c
	if redacted.Storage.Redis.Password != "" {
		redacted.Storage.Redis.Password = "[REDACTED]"
	}
	if redacted.Mock.SigningKey != "" {
		redacted.Mock.SigningKey = "[REDACTED]"
	}
	return &redacted
}
