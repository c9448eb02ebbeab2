package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process level configuration. FromEnv builds it from
// environment variables so main stays lean.
type Server struct {
	Addr       string
	AdminToken string

	// JWTSigningKey validates portal-issued bearer tokens on user routes.
	JWTSigningKey string

	// DatabaseURL enables the PostgreSQL stores when non-empty.
	DatabaseURL string

	// RedisAddr enables the Redis conversation store when non-empty.
	RedisAddr string

	// KafkaBrokers enables the Kafka audit sink when non-empty.
	KafkaBrokers    string
	KafkaAuditTopic string

	SlackWebhookURL string

	ResponderBaseURL string
	ResponderAPIKey  string
	ResponderModel   string
	ResponderTimeout time.Duration

	// Conversation window budgets applied before every responder call.
	WindowMaxMessages   int
	WindowMaxCharacters int

	SeedDemo bool
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:                envOr("PORTAL_ADDR", ":8080"),
		AdminToken:          envOr("PORTAL_ADMIN_TOKEN", "dev-admin-token-change-in-production"),
		JWTSigningKey:       envOr("PORTAL_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		KafkaBrokers:        os.Getenv("KAFKA_BROKERS"),
		KafkaAuditTopic:     envOr("KAFKA_AUDIT_TOPIC", "portal.audit.v1"),
		SlackWebhookURL:     os.Getenv("SLACK_WEBHOOK_URL"),
		ResponderBaseURL:    envOr("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		ResponderAPIKey:     os.Getenv("ANTHROPIC_API_KEY"),
		ResponderModel:      envOr("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		ResponderTimeout:    60 * time.Second,
		WindowMaxMessages:   envIntOr("WINDOW_MAX_MESSAGES", 24),
		WindowMaxCharacters: envIntOr("WINDOW_MAX_CHARACTERS", 48000),
		SeedDemo:            os.Getenv("SEED_DEMO") == "true",
	}

	if raw := os.Getenv("RESPONDER_TIMEOUT"); raw != "" {
		if duration, err := time.ParseDuration(raw); err == nil {
			cfg.ResponderTimeout = duration
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
