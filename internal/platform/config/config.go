// Package config builds runtime configuration from the environment so main
// stays lean. A .env file is honored for local development.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr          string
	JWTSigningKey string

	// PostgresDSN selects the relational store; when empty the server runs on
	// the in-memory store (local development and tests only).
	PostgresDSN string

	// RedisAddr enables the person directory cache when set.
	RedisAddr     string
	RedisPassword string

	PersonDirectoryURL string

	// VaultAddr enables the transit signer; empty means the dummy signer.
	VaultAddr    string
	VaultToken   string
	VaultKeyName string

	// KafkaBrokers enables audit event publishing when non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	SystemActorName string
	ExpiryInterval  time.Duration
}

// FromEnv loads .env if present and builds the config from environment
// variables, applying development defaults.
func FromEnv() Config {
	_ = godotenv.Load()

	cfg := Config{
		Addr:               envOr("GRIDCONSENT_ADDR", ":8080"),
		JWTSigningKey:      envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresDSN:        os.Getenv("POSTGRES_DSN"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		PersonDirectoryURL: envOr("PERSON_DIRECTORY_URL", "http://localhost:8081"),
		VaultAddr:          os.Getenv("VAULT_ADDR"),
		VaultToken:         os.Getenv("VAULT_TOKEN"),
		VaultKeyName:       envOr("VAULT_SIGNING_KEY", "consent-signing"),
		KafkaTopic:         envOr("KAFKA_AUDIT_TOPIC", "gridconsent.audit"),
		SystemActorName:    envOr("SYSTEM_ACTOR_NAME", "consent-management"),
		ExpiryInterval:     durationOr("REQUEST_EXPIRY_INTERVAL", time.Minute),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
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

func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
