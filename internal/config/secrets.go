package config

import "strings"

// Canonical names reported in ConfigError. They match the environment variables
// operators set in the deployment.
const (
	EnvIngestURL        = "SUPABASE_URL"
	EnvIngestServiceKey = "SUPABASE_SERVICE_ROLE_KEY"
	EnvWebhookSecret    = "STRIPE_WEBHOOK_SECRET"
)

// Secrets is the validated, read-only credential set the gateway runs with.
type Secrets struct {
	WebhookSecret    string
	IngestURL        string
	IngestServiceKey string
}

// ConfigError reports a required secret that is empty or whitespace-only.
type ConfigError struct {
	Name string
}

func (e *ConfigError) Error() string {
	return "MISSING_SECRET:" + e.Name
}

// Secrets returns the credential set, or a *ConfigError naming the first
// missing value. There is no partial result.
func (c *Config) Secrets() (Secrets, error) {
	required := []struct {
		name  string
		value string
	}{
		{EnvIngestURL, c.Ingest.URL},
		{EnvIngestServiceKey, c.Ingest.ServiceKey},
		{EnvWebhookSecret, c.Webhook.Secret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return Secrets{}, &ConfigError{Name: r.name}
		}
	}

	return Secrets{
		WebhookSecret:    c.Webhook.Secret,
		IngestURL:        strings.TrimRight(c.Ingest.URL, "/"),
		IngestServiceKey: c.Ingest.ServiceKey,
	}, nil
}
