package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port            string
	Env             string
	LogLevel        string
	DatabaseURL     string
	DBMaxConns      int
	DBMinConns      int
	BookingTimeout  time.Duration
	NotifyTimeout   time.Duration
	WorkerCount     int
	UseMemoryQueue  bool
	AgentJWTSecret  string
	CORSOrigins     []string
	RateLimitRPS    float64
	RateLimitBurst  int
	DoctorCacheTTL  time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisTLS        bool
	NotificationURL string

	// Per-phone booking limit; zero max disables it.
	BookingVelocityMax    int
	BookingVelocityWindow time.Duration

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Email delivery
	EmailProvider      string
	SendGridAPIKey     string
	EmailFromAddress   string
	EmailFromName      string
	NotificationBucket string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		DBMaxConns:      getEnvAsInt("DB_MAX_CONNS", 20),
		DBMinConns:      getEnvAsInt("DB_MIN_CONNS", 2),
		BookingTimeout:  getEnvAsDuration("BOOKING_TX_TIMEOUT", 5*time.Second),
		NotifyTimeout:   getEnvAsDuration("NOTIFY_TIMEOUT", 2*time.Second),
		WorkerCount:     getEnvAsInt("WORKER_COUNT", 2),
		UseMemoryQueue:  getEnvAsBool("USE_MEMORY_QUEUE", false),
		AgentJWTSecret:  getEnv("AGENT_JWT_SECRET", ""),
		CORSOrigins:     getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:    getEnvAsFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:  getEnvAsInt("RATE_LIMIT_BURST", 40),
		DoctorCacheTTL:  getEnvAsDuration("DOCTOR_CACHE_TTL", 10*time.Minute),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisTLS:        getEnvAsBool("REDIS_TLS", false),
		NotificationURL: getEnv("NOTIFICATION_QUEUE_URL", ""),

		BookingVelocityMax:    getEnvAsInt("BOOKING_VELOCITY_MAX", 0),
		BookingVelocityWindow: getEnvAsDuration("BOOKING_VELOCITY_WINDOW", 24*time.Hour),

		AWSRegion:           getEnv("AWS_REGION", "ap-south-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		EmailProvider:      strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:     getEnv("SENDGRID_API_KEY", ""),
		EmailFromAddress:   getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:      getEnv("EMAIL_FROM_NAME", "eChannelling"),
		NotificationBucket: getEnv("NOTIFICATION_ARCHIVE_BUCKET", ""),
	}
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate checks settings the API cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("config: DATABASE_URL is required"))
	}
	if c.IsProduction() && c.AgentJWTSecret == "" {
		errs = append(errs, errors.New("config: AGENT_JWT_SECRET is required in production"))
	}
	if !c.UseMemoryQueue && c.NotificationURL == "" && c.IsProduction() {
		errs = append(errs, errors.New("config: NOTIFICATION_QUEUE_URL is required unless USE_MEMORY_QUEUE is set"))
	}
	if c.BookingTimeout <= 0 {
		errs = append(errs, errors.New("config: BOOKING_TX_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
