package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	HTTPAddr    string
	DatabaseURL string
	AppURL      string
	EventName   string
	CORSOrigins []string
	Admin       AdminConfig
	Razorpay    RazorpayConfig
	Mail        MailConfig
	S3          S3Config
	Ticketing   TicketingConfig
	Worker      WorkerConfig
	RateLimit   RateLimitConfig
	Logging     LoggingConfig
}

type AdminConfig struct {
	Email         string
	Password      string
	PasswordHash  string
	SessionSecret string
	SessionTTL    time.Duration
}

type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
}

type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
}

type S3Config struct {
	Endpoint       string
	PublicEndpoint string
	Bucket         string
	AccessKey      string
	SecretKey      string
	Region         string
	UseSSL         bool
}

type TicketingConfig struct {
	SigningSecret string
	EventEndsAt   time.Time
}

type WorkerConfig struct {
	Interval time.Duration
}

type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

const sendgridSMTPHost = "smtp.sendgrid.net"

// Load reads configuration from the environment. A .env file in the working
// directory is applied first without overriding variables that are already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:         getenv("APP_ENV", "dev"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		AppURL:      strings.TrimRight(getenv("NEXT_PUBLIC_APP_URL", os.Getenv("APP_URL")), "/"),
		EventName:   getenv("EVENT_NAME", "Business Conclave"),
		CORSOrigins: parseList(os.Getenv("CORS_ORIGINS")),
		Admin: AdminConfig{
			Email:         strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
			Password:      os.Getenv("ADMIN_PASSWORD"),
			PasswordHash:  os.Getenv("ADMIN_PASSWORD_HASH"),
			SessionSecret: os.Getenv("ADMIN_SESSION_SECRET"),
			SessionTTL:    getenvDuration("ADMIN_SESSION_TTL", 12*time.Hour),
		},
		Razorpay: RazorpayConfig{
			KeyID:         os.Getenv("RAZORPAY_KEY_ID"),
			KeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
			WebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
			BaseURL:       getenv("RAZORPAY_BASE_URL", "https://api.razorpay.com/v1"),
		},
		Mail: MailConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getenvInt("SMTP_PORT", 587),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
			FromName: getenv("SMTP_FROM_NAME", "Conclave Tickets"),
		},
		S3: S3Config{
			Endpoint:       os.Getenv("S3_ENDPOINT"),
			PublicEndpoint: os.Getenv("S3_PUBLIC_ENDPOINT"),
			Bucket:         os.Getenv("S3_BUCKET"),
			AccessKey:      os.Getenv("S3_ACCESS_KEY"),
			SecretKey:      os.Getenv("S3_SECRET_KEY"),
			Region:         getenv("S3_REGION", "us-east-1"),
			UseSSL:         getenvBool("S3_USE_SSL", true),
		},
		Worker: WorkerConfig{
			Interval: getenvDuration("WORKER_INTERVAL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			PerMinute: getenvInt("RATE_LIMIT_PER_MINUTE", 30),
			Burst:     getenvInt("RATE_LIMIT_BURST", 10),
		},
		Logging: LoggingConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "text"),
			File:   os.Getenv("LOG_FILE"),
		},
	}

	// SendGrid is reached through its SMTP relay with the API key as password.
	if key := os.Getenv("SENDGRID_API_KEY"); key != "" && cfg.Mail.Host == "" {
		cfg.Mail.Host = sendgridSMTPHost
		cfg.Mail.User = "apikey"
		cfg.Mail.Password = key
	}

	cfg.Ticketing.SigningSecret = getenv("TICKET_SIGNING_SECRET", cfg.Razorpay.KeySecret)
	if raw := strings.TrimSpace(os.Getenv("EVENT_ENDS_AT")); raw != "" {
		endsAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("EVENT_ENDS_AT must be RFC3339: %w", err)
		}
		cfg.Ticketing.EventEndsAt = endsAt
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// ValidateAPI checks the settings the API process cannot run without.
func (c *Config) ValidateAPI() error {
	if c.Admin.Email == "" {
		return fmt.Errorf("ADMIN_EMAIL is required")
	}
	if c.Admin.Password == "" && c.Admin.PasswordHash == "" {
		return fmt.Errorf("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required")
	}
	if c.Razorpay.KeyID == "" || c.Razorpay.KeySecret == "" {
		return fmt.Errorf("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required")
	}
	if c.AppURL == "" {
		return fmt.Errorf("NEXT_PUBLIC_APP_URL is required")
	}
	return nil
}

// WebhookSecretOrKey returns the webhook secret, falling back to the key secret.
func (c RazorpayConfig) WebhookSecretOrKey() string {
	if c.WebhookSecret != "" {
		return c.WebhookSecret
	}
	return c.KeySecret
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseList(val string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
