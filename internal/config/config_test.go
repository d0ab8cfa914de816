package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 15, cfg.API.Timeout)
	assert.Equal(t, 300, cfg.Auth.ExpiryLookahead)
	assert.False(t, cfg.Auth.RememberPassword, "remember_password should default to false")
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.NoError(t, cfg.Validate(), "default config should validate")
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name        string
		configYAML  string
		wantErr     bool
		errContains string
	}{
		{
			name: "valid config",
			configYAML: `
api:
  base_url: "https://payroll.example.com"
  timeout: 20
auth:
  expiry_lookahead: 120
storage:
  driver: "memory"
log:
  level: "info"
  format: "json"
`,
			wantErr: false,
		},
		{
			name: "invalid base url",
			configYAML: `
api:
  base_url: "payroll.example.com"
`,
			wantErr:     true,
			errContains: "must be a valid HTTP(S) URL",
		},
		{
			name: "login path without slash",
			configYAML: `
api:
  login_path: "api/v1/auth/login"
`,
			wantErr:     true,
			errContains: "api.login_path must start with '/'",
		},
		{
			name: "redis without addr",
			configYAML: `
storage:
  driver: "redis"
`,
			wantErr:     true,
			errContains: "storage.redis.addr is required",
		},
		{
			name: "unknown storage driver",
			configYAML: `
storage:
  driver: "sqlite"
`,
			wantErr:     true,
			errContains: "storage.driver must be one of",
		},
		{
			name: "invalid log level",
			configYAML: `
log:
  level: "verbose"
`,
			wantErr:     true,
			errContains: "log.level must be one of",
		},
		{
			name: "invalid yaml",
			configYAML: `
this is not: valid: yaml:
  bad: [syntax
`,
			wantErr:     true,
			errContains: "failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.configYAML))

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, cfg)
		})
	}
}

func TestLoadOptional(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	cfg, err := LoadOptional(missing)
	require.NoError(t, err, "LoadOptional on a missing file")
	assert.Equal(t, "/api/v1/auth/login", cfg.API.LoginPath)

	_, err = LoadOptional(writeConfig(t, "log: [broken"))
	assert.Error(t, err, "an existing malformed file should fail to parse")
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PAYROLL_API_BASE_URL", "https://env.example.com")
	t.Setenv("PAYROLL_LOG_LEVEL", "debug")
	t.Setenv("PAYROLL_REDIS_PASSWORD", "env-secret")

	cfg, err := Load(writeConfig(t, `
api:
  base_url: "https://yaml.example.com"
log:
  level: "info"
`))
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.API.BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "env-secret", cfg.Storage.Redis.Password)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "lookahead too high",
			modify: func(c *Config) {
				c.Auth.ExpiryLookahead = 7200
			},
			wantErr: true,
			errMsg:  "should not exceed 3600",
		},
		{
			name: "api timeout zero",
			modify: func(c *Config) {
				c.API.Timeout = 0
			},
			wantErr: true,
			errMsg:  "must be positive",
		},
		{
			name: "replay burst zero",
			modify: func(c *Config) {
				c.Recovery.ReplayBurst = 0
			},
			wantErr: true,
			errMsg:  "recovery.replay_burst",
		},
		{
			name: "file driver without path",
			modify: func(c *Config) {
				c.Storage.Driver = "file"
				c.Storage.Path = ""
			},
			wantErr: true,
			errMsg:  "storage.path is required",
		},
		{
			name: "short mock signing key",
			modify: func(c *Config) {
				c.Mock.SigningKey = "short"
			},
			wantErr: true,
			errMsg:  "mock.signing_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Storage.Driver = "memory"

			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRedact(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Redis.Password = "super-secret"

	redacted := cfg.Redact()

	assert.Equal(t, "[REDACTED]", redacted.Storage.Redis.Password)
	assert.Equal(t, "[REDACTED]", redacted.Mock.SigningKey)

	// Original should be unchanged
	assert.Equal(t, "super-secret", cfg.Storage.Redis.Password)
}

func TestSetupLogging(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(old)
	})

	SetupLogging(&LogConfig{Level: "debug", Format: "json"})
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))

	SetupLogging(&LogConfig{Level: "error", Format: "text"})
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelError))
}
