package config

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	ServerAddr     string   `env:"SERVER_ADDR, default=:8000"`
	DatabaseDSN    string   `env:"DATABASE_DSN, default=host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"`
	SigningSecret  string   `env:"SIGNING_SECRET, required"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=http://localhost:3000"`
	RunMigrations  bool     `env:"RUN_MIGRATIONS, default=true"`

	SMTP SMTPConfig `env:", prefix=SMTP_"`

	// SigningKey is the decoded form of SigningSecret.
	SigningKey []byte
}

type SMTPConfig struct {
	Host     string `env:"HOST, default=localhost"`
	Port     int    `env:"PORT, default=587"`
	From     string `env:"FROM, default=support@filingline.io"`
	FromName string `env:"FROM_NAME, default=Filingline Support"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

// Load reads configuration from environment variables.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	signingKey, err := decodeSigningSecret(cfg.SigningSecret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	cfg.SigningKey = signingKey

	return &cfg, nil
}
