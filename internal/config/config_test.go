package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearSecretEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		EnvWebhookSecret, EnvIngestURL, EnvIngestServiceKey,
		"PAYGATE_WEBHOOK_SECRET", "PAYGATE_INGEST_URL", "PAYGATE_INGEST_SERVICE_KEY",
	} {
		t.Setenv(name, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearSecretEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8089, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, "/webhooks/stripe", cfg.Server.WebhookPath)
	assert.Equal(t, int64(1048576), cfg.Server.MaxBodyBytes)
	assert.True(t, cfg.Server.FailFast)

	assert.Equal(t, 5*time.Minute, cfg.Webhook.Tolerance)
	assert.Equal(t, "stripe", cfg.Webhook.Processor)
	assert.Empty(t, cfg.Webhook.Secret)

	assert.Equal(t, "/rest/v1/rpc/ingest_payment_event", cfg.Ingest.RPCPath)
	assert.Equal(t, 5*time.Second, cfg.Ingest.Timeout)

	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RateLimit.RedisURL)
	assert.False(t, cfg.DLQ.Enabled)
	assert.Equal(t, "file", cfg.DLQ.Backend)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FromFile(t *testing.T) {
	clearSecretEnv(t)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
  webhook_path: /hooks/payments
webhook:
  secret: whsec_file
  tolerance: 2m
ingest:
  url: https://db.example.test
  service_key: svc-key
  timeout: 3s
logging:
  level: debug
  format: text
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/hooks/payments", cfg.Server.WebhookPath)
	assert.Equal(t, "whsec_file", cfg.Webhook.Secret)
	assert.Equal(t, 2*time.Minute, cfg.Webhook.Tolerance)
	assert.Equal(t, "https://db.example.test", cfg.Ingest.URL)
	assert.Equal(t, 3*time.Second, cfg.Ingest.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	clearSecretEnv(t)
	t.Setenv("PAYGATE_SERVER_PORT", "7070")
	t.Setenv(EnvWebhookSecret, "whsec_env")
	t.Setenv(EnvIngestURL, "https://env.example.test/")
	t.Setenv(EnvIngestServiceKey, "env-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "whsec_env", cfg.Webhook.Secret)
	assert.Equal(t, "env-key", cfg.Ingest.ServiceKey)

	secrets, err := cfg.Secrets()
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.test", secrets.IngestURL, "trailing slash trimmed")
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [unclosed"), 0o600))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:  ServerConfig{Port: 8089, WebhookPath: "/webhooks/stripe", MaxBodyBytes: 1024},
			Webhook: WebhookConfig{Tolerance: time.Minute, Processor: "stripe"},
			Ingest:  IngestConfig{Timeout: time.Second},
			DLQ:     DLQConfig{Backend: "file"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "relative path", mutate: func(c *Config) { c.Server.WebhookPath = "hooks" }, wantErr: true},
		{name: "zero body limit", mutate: func(c *Config) { c.Server.MaxBodyBytes = 0 }, wantErr: true},
		{name: "zero tolerance", mutate: func(c *Config) { c.Webhook.Tolerance = 0 }, wantErr: true},
		{name: "blank processor", mutate: func(c *Config) { c.Webhook.Processor = " " }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.Ingest.Timeout = 0 }, wantErr: true},
		{name: "rate limit without budget", mutate: func(c *Config) { c.RateLimit.Enabled = true }, wantErr: true},
		{name: "unknown dlq backend", mutate: func(c *Config) { c.DLQ.Enabled = true; c.DLQ.Backend = "kafka" }, wantErr: true},
		{name: "disabled dlq ignores backend", mutate: func(c *Config) { c.DLQ.Backend = "kafka" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
