package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	DLQ       DLQConfig       `mapstructure:"dlq"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	WebhookPath  string        `mapstructure:"webhook_path"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	// FailFast refuses to start when a required secret is missing. When false the
	// server starts anyway and answers every webhook with 500 MISSING_SECRET:<name>.
	FailFast bool `mapstructure:"fail_fast"`
}

type WebhookConfig struct {
	Secret    string        `mapstructure:"secret"`
	Tolerance time.Duration `mapstructure:"tolerance"`
	Processor string        `mapstructure:"processor"`
}

type IngestConfig struct {
	URL        string        `mapstructure:"url"`
	ServiceKey string        `mapstructure:"service_key"`
	RPCPath    string        `mapstructure:"rpc_path"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	RedisURL string        `mapstructure:"redis_url"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type DLQConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Backend  string `mapstructure:"backend"`
	BasePath string `mapstructure:"base_path"`
	NatsURL  string `mapstructure:"nats_url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8089)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.webhook_path", "/webhooks/stripe")
	v.SetDefault("server.max_body_bytes", 1048576)
	v.SetDefault("server.fail_fast", true)
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.tolerance", "5m")
	v.SetDefault("webhook.processor", "stripe")
	v.SetDefault("ingest.url", "")
	v.SetDefault("ingest.service_key", "")
	v.SetDefault("ingest.rpc_path", "/rest/v1/rpc/ingest_payment_event")
	v.SetDefault("ingest.timeout", "5s")
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.redis_url", "redis://localhost:6379/0")
	v.SetDefault("ratelimit.requests", 600)
	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("dlq.enabled", false)
	v.SetDefault("dlq.backend", "file")
	v.SetDefault("dlq.base_path", "/var/lib/paygate/dlq")
	v.SetDefault("dlq.nats_url", "nats://localhost:4222")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/paygate")
	}

	// Environment variables override
	v.SetEnvPrefix("PAYGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets are also accepted under the names the processor and the
	// downstream store document.
	for key, envs := range map[string][]string{
		"webhook.secret":     {"PAYGATE_WEBHOOK_SECRET", EnvWebhookSecret},
		"ingest.url":         {"PAYGATE_INGEST_URL", EnvIngestURL},
		"ingest.service_key": {"PAYGATE_INGEST_SERVICE_KEY", EnvIngestServiceKey},
	} {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	// Read config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the non-secret settings. Secrets are checked separately by
// Secrets so that degraded mode can still start.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if !strings.HasPrefix(c.Server.WebhookPath, "/") {
		return fmt.Errorf("invalid server.webhook_path %q: must start with /", c.Server.WebhookPath)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid server.max_body_bytes: %d", c.Server.MaxBodyBytes)
	}
	if c.Webhook.Tolerance <= 0 {
		return fmt.Errorf("invalid webhook.tolerance: %s", c.Webhook.Tolerance)
	}
	if strings.TrimSpace(c.Webhook.Processor) == "" {
		return errors.New("invalid webhook.processor: must not be empty")
	}
	if c.Ingest.Timeout <= 0 {
		return fmt.Errorf("invalid ingest.timeout: %s", c.Ingest.Timeout)
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("invalid ratelimit: %d requests per %s", c.RateLimit.Requests, c.RateLimit.Window)
	}
	if c.DLQ.Enabled {
		switch c.DLQ.Backend {
		case "file", "jetstream":
		default:
			return fmt.Errorf("unknown dlq.backend: %s (supported: file, jetstream)", c.DLQ.Backend)
		}
	}
	return nil
}
