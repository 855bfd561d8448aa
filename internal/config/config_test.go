package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("BOOKING_TX_TIMEOUT", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("EMAIL_PROVIDER", "")
	t.Setenv("BOOKING_VELOCITY_MAX", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.BookingTimeout != 5*time.Second {
		t.Fatalf("expected default booking timeout, got %s", cfg.BookingTimeout)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Fatalf("expected wildcard cors default, got %v", cfg.CORSOrigins)
	}
	if cfg.EmailProvider != "stub" {
		t.Fatalf("expected stub email provider, got %s", cfg.EmailProvider)
	}
	if cfg.BookingVelocityMax != 0 {
		t.Fatalf("expected booking velocity limit off by default, got %d", cfg.BookingVelocityMax)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("BOOKING_TX_TIMEOUT", "3s")
	t.Setenv("DB_MAX_CONNS", "40")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://agents.example.lk, ,https://admin.example.lk")
	t.Setenv("EMAIL_PROVIDER", " SES ")
	t.Setenv("USE_MEMORY_QUEUE", "true")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Fatalf("expected production env")
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.BookingTimeout != 3*time.Second {
		t.Fatalf("expected booking timeout override, got %s", cfg.BookingTimeout)
	}
	if cfg.DBMaxConns != 40 {
		t.Fatalf("expected max conns override, got %d", cfg.DBMaxConns)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rps override, got %v", cfg.RateLimitRPS)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://admin.example.lk" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSOrigins)
	}
	if cfg.EmailProvider != "ses" {
		t.Fatalf("expected ses provider, got %q", cfg.EmailProvider)
	}
	if !cfg.UseMemoryQueue {
		t.Fatalf("expected memory queue enabled")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{Env: "production", BookingTimeout: time.Second}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for empty production config")
	}

	cfg = &Config{
		Env:             "production",
		DatabaseURL:     "postgres://x",
		AgentJWTSecret:  "secret",
		NotificationURL: "https://sqs.example/queue",
		BookingTimeout:  time.Second,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg = &Config{Env: "development", DatabaseURL: "postgres://x", BookingTimeout: time.Second}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("development config without secrets should be valid, got %v", err)
	}
}
