package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("JWT_REFRESH_SECRET", "")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "dev-secret", cfg.JWT.Secret)
	assert.Equal(t, "dev-secret", cfg.JWT.RefreshSecret, "refresh secret falls back to the access secret")
	assert.Equal(t, "cadd-attendance", cfg.JWT.Issuer)
	assert.Equal(t, "cadd-attendance-users", cfg.JWT.Audience)

	assert.Equal(t, 5, cfg.Policy.MaxFailedAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Policy.LockoutDuration)
	assert.Equal(t, 10*time.Minute, cfg.Policy.OTPTTL)
	assert.Equal(t, 10*time.Minute, cfg.Policy.ResetLinkTTL)
	assert.Equal(t, 2*time.Hour, cfg.Policy.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Policy.RefreshTokenTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigFromFileAndEnv(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: "8080"
  mode: debug
  trusted_proxies: ["10.0.0.0/8", "192.0.2.10"]
database:
  driver: postgres
  host: db
  port: 5432
policy:
  lockout_duration: 30m
  max_failed_attempts: 3
`)
	t.Setenv("JWT_SECRET", "file-secret")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret")
	t.Setenv("NODE_ENV", "staging")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 30*time.Minute, cfg.Policy.LockoutDuration)
	assert.Equal(t, 3, cfg.Policy.MaxFailedAttempts)
	assert.Equal(t, "refresh-secret", cfg.JWT.RefreshSecret)
	assert.Equal(t, "staging", cfg.Server.Env)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, cfg.Server.TrustedProxies)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		yaml string
	}{
		{
			name: "missing secret",
			env:  map[string]string{"JWT_SECRET": ""},
		},
		{
			name: "short secret in production",
			env:  map[string]string{"JWT_SECRET": "short", "NODE_ENV": "production"},
		},
		{
			name: "unknown driver",
			env:  map[string]string{"JWT_SECRET": "secret"},
			yaml: "database:\n  driver: oracle\n",
		},
		{
			name: "bad trusted proxy",
			env:  map[string]string{"JWT_SECRET": "secret"},
			yaml: "server:\n  trusted_proxies: [\"not-an-ip\"]\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			dir := t.TempDir()
			if tt.yaml != "" {
				dir = writeConfig(t, tt.yaml)
			}
			_, err := LoadConfig(dir)
			assert.Error(t, err)
		})
	}
}
