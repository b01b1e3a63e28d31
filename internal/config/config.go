package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Mail drivers understood by the notify package.
const (
	MailDriverSMTP = "smtp"
	MailDriverSES  = "ses"
	MailDriverLog  = "log"
)

// Config holds the configuration for the application.
type Config struct {
	DatabasePath       string        `env:"DATABASE_PATH,default=data/fame.db"`
	ArchivePath        string        `env:"ARCHIVE_PATH,default=data/plans"`
	PromptTemplatePath string        `env:"PROMPT_TEMPLATE_PATH,default=prompt.txt"`
	Port               string        `env:"PORT,default=8080"`
	LogLevel           string        `env:"LOG_LEVEL,default=info"`
	LogFormat          string        `env:"LOG_FORMAT,default=console"`
	ProviderTimeout    time.Duration `env:"PROVIDER_TIMEOUT,default=30s"`

	// Operator-level fallback provider, tried after the user's own provider.
	FallbackProvider string `env:"FALLBACK_PROVIDER"`
	FallbackAPIKey   string `env:"FALLBACK_API_KEY"`

	// Mail
	MailDriver   string `env:"MAIL_DRIVER"`
	MailServer   string `env:"MAIL_SERVER"`
	MailPort     int    `env:"MAIL_PORT,default=25"`
	MailUseTLS   string `env:"MAIL_USE_TLS,default=false"`
	MailUsername string `env:"MAIL_USERNAME"`
	MailPassword string `env:"MAIL_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM"`
	AWSRegion    string `env:"AWS_REGION,default=eu-west-1"`

	// Telegram Config
	TelegramBotToken       string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramWebhookURL     string `env:"TELEGRAM_WEBHOOK_URL"`
	TelegramAllowedUsers   string `env:"TELEGRAM_ALLOWED_USER_IDS"`
	AdminTelegramID        int64  `env:"ADMIN_TELEGRAM_ID,default=0"`
	TelegramAllowedUserIDs []int64

	APIJWTSecret      string `env:"API_JWT_SECRET"`
	APIAllowedOrigins string `env:"API_ALLOWED_ORIGINS"`
}

// NewFromEnv creates a new Config object from environment variables.
// A .env file in the working directory is loaded first when present.
func NewFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	ids, err := parseUserIDs(cfg.TelegramAllowedUsers)
	if err != nil {
		return nil, err
	}
	cfg.TelegramAllowedUserIDs = ids

	if cfg.MailDriver == "" {
		cfg.MailDriver = MailDriverLog
		if cfg.MailServer != "" {
			cfg.MailDriver = MailDriverSMTP
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that envdecode cannot.
func (c *Config) Validate() error {
	switch c.MailDriver {
	case MailDriverSMTP:
		if c.MailServer == "" {
			return fmt.Errorf("MAIL_SERVER environment variable not set")
		}
	case MailDriverSES, MailDriverLog:
	default:
		return fmt.Errorf("unsupported MAIL_DRIVER %q", c.MailDriver)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	return nil
}

// RequireServer checks the settings only the HTTP server needs.
func (c *Config) RequireServer() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.APIJWTSecret == "" {
		return fmt.Errorf("API_JWT_SECRET environment variable not set")
	}
	return nil
}

// AllowedOrigins returns the parsed API_ALLOWED_ORIGINS list.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.APIAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// UseTLS reports whether MAIL_USE_TLS holds one of the accepted truthy values.
func (c *Config) UseTLS() bool {
	switch strings.ToLower(strings.TrimSpace(c.MailUseTLS)) {
	case "true", "1", "t":
		return true
	}
	return false
}

func parseUserIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
