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
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: secret
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.Equal(t, time.Hour, cfg.Auth.ResetTokenTTL)
	assert.Equal(t, 60*time.Second, cfg.OpenAI.RunTimeout)
	assert.Equal(t, 5*time.Minute, cfg.OpenAI.IndexTimeout)
	assert.Equal(t, time.Second, cfg.OpenAI.PollInterval)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, "uploads", cfg.Uploads.Dir)
}

func TestLoadConfig_ExpandsEnvAndDurations(t *testing.T) {
	t.Setenv("PDFQA_TEST_OPENAI_KEY", "sk-test")
	path := writeConfig(t, `
server:
  port: "8080"
  allowed_origins: ["https://app.example.com"]
database:
  driver: sqlite
  url: "file::memory:"
auth:
  jwt_secret: secret
  reset_token_ttl: 30m
openai:
  api_key: ${PDFQA_TEST_OPENAI_KEY}
  run_timeout: 90s
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Auth.ResetTokenTTL)
	assert.Equal(t, 90*time.Second, cfg.OpenAI.RunTimeout)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing secret", body: "server:\n  port: \"1\"\n"},
		{name: "bad driver", body: "auth:\n  jwt_secret: s\ndatabase:\n  driver: mysql\n"},
		{name: "telegram without token", body: "auth:\n  jwt_secret: s\ntelegram:\n  enabled: true\n"},
		{name: "negative poll interval", body: "auth:\n  jwt_secret: s\nopenai:\n  poll_interval: -1s\n"},
		{name: "negative run timeout", body: "auth:\n  jwt_secret: s\nopenai:\n  run_timeout: -5s\n"},
		{name: "negative index timeout", body: "auth:\n  jwt_secret: s\nopenai:\n  index_timeout: -1m\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}
