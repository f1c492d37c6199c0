// Package config loads service configuration from environment variables.
// Invalid values fall back to defaults rather than failing startup.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration holds all service configuration.
type Configuration struct {
	Service       ServiceConfig
	Webhook       WebhookConfig
	Database      DatabaseConfig
	Translation   TranslationConfig
	Pipeline      PipelineConfig
	Stream        StreamConfig
	Evidence      EvidenceConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds service identity and listen addresses.
type ServiceConfig struct {
	Principal         string
	HTTPPort          string
	ObservabilityPort string
}

// WebhookConfig holds inbound webhook verification settings. PublicKey is
// the provider's base64-encoded ed25519 public key.
type WebhookConfig struct {
	PublicKey  string
	Tolerance  time.Duration
	MaxBodyLen int64
}

// DatabaseConfig holds the postgres connection settings. An empty URL runs
// the service with in-memory stores (dev and test mode).
type DatabaseConfig struct {
	URL string
}

// TranslationConfig holds the translation provider settings. Timeout bounds
// every translate call on the webhook path; a slow provider must never delay
// the webhook acknowledgment past the telephony provider's window.
type TranslationConfig struct {
	Provider string // mock, openai
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// PipelineConfig holds live-pipeline behavior settings.
type PipelineConfig struct {
	AppendMaxAttempts int
}

// StreamConfig holds the live stream publisher settings.
type StreamConfig struct {
	PollInterval       time.Duration
	MaxSubscriptionAge time.Duration
}

// EvidenceConfig holds the durable transcription pipeline settings.
type EvidenceConfig struct {
	Provider      string // mock, http
	BaseURL       string
	APIKey        string
	CallbackURL   string
	CallbackToken string
	MaxAttempts   int
	RetryBackoff  time.Duration
	Timeout       time.Duration
}

// KafkaConfig holds outbound event bus settings.
type KafkaConfig struct {
	Enabled        bool
	Brokers        []string
	TopicSegments  string
	TopicLifecycle string
	Principal      string
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json, console
}

// Load reads configuration from the environment.
func Load() *Configuration {
	cfg := &Configuration{
		Service: ServiceConfig{
			Principal:         envOrDefault("SERVICE_PRINCIPAL", "svc-call-translation"),
			HTTPPort:          envOrDefault("HTTP_PORT", "8080"),
			ObservabilityPort: envOrDefault("OBSERVABILITY_PORT", "9090"),
		},
		Webhook: WebhookConfig{
			PublicKey:  envOrDefault("WEBHOOK_PUBLIC_KEY", ""),
			Tolerance:  envOrDefaultDuration("WEBHOOK_TOLERANCE", 5*time.Minute),
			MaxBodyLen: envOrDefaultInt64("WEBHOOK_MAX_BODY_BYTES", 64*1024),
		},
		Database: DatabaseConfig{
			URL: envOrDefault("DATABASE_URL", ""),
		},
		Translation: TranslationConfig{
			Provider: envOrDefault("TRANSLATION_PROVIDER", "mock"),
			APIKey:   envOrDefault("TRANSLATION_API_KEY", ""),
			Model:    envOrDefault("TRANSLATION_MODEL", "gpt-4o-mini"),
			Timeout:  envOrDefaultDuration("TRANSLATION_TIMEOUT", 2*time.Second),
		},
		Pipeline: PipelineConfig{
			AppendMaxAttempts: envOrDefaultInt("PIPELINE_APPEND_MAX_ATTEMPTS", 3),
		},
		Stream: StreamConfig{
			PollInterval:       envOrDefaultDuration("STREAM_POLL_INTERVAL", time.Second),
			MaxSubscriptionAge: envOrDefaultDuration("STREAM_MAX_SUBSCRIPTION_AGE", 30*time.Minute),
		},
		Evidence: EvidenceConfig{
			Provider:      envOrDefault("EVIDENCE_PROVIDER", "mock"),
			BaseURL:       envOrDefault("EVIDENCE_BASE_URL", ""),
			APIKey:        envOrDefault("EVIDENCE_API_KEY", ""),
			CallbackURL:   envOrDefault("EVIDENCE_CALLBACK_URL", ""),
			CallbackToken: envOrDefault("EVIDENCE_CALLBACK_TOKEN", ""),
			MaxAttempts:   envOrDefaultInt("EVIDENCE_MAX_ATTEMPTS", 3),
			RetryBackoff:  envOrDefaultDuration("EVIDENCE_RETRY_BACKOFF", 5*time.Second),
			Timeout:       envOrDefaultDuration("EVIDENCE_TIMEOUT", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled:        envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:        envOrDefaultList("KAFKA_BROKERS", nil),
			TopicSegments:  envOrDefault("KAFKA_TOPIC_SEGMENTS", "call.segment.translated"),
			TopicLifecycle: envOrDefault("KAFKA_TOPIC_LIFECYCLE", "call.lifecycle"),
			Principal:      envOrDefault("KAFKA_PRINCIPAL", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
	}

	// Kafka principal falls back to the service principal.
	if cfg.Kafka.Principal == "" {
		cfg.Kafka.Principal = cfg.Service.Principal
	}

	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
