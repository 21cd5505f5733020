// Package config loads the server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL" envDefault:"localhost:6379"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`

	// Vision model used by the image-to-document endpoint. Disabled when the
	// key is empty.
	OpenAIKey   string `env:"OPENAI_API_KEY"`
	OpenAIBase  string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	VisionModel string `env:"VISION_MODEL" envDefault:"gpt-4o-mini"`

	// S3-compatible object storage for screenshots and export archives.
	// Optional: both features degrade to streaming-only without it.
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY" envDefault:"minioadmin"`
	S3SecretKey string `env:"S3_SECRET_KEY" envDefault:"minioadmin"`
	S3Bucket    string `env:"S3_BUCKET" envDefault:"uidraft-artifacts"`
	S3UseSSL    bool   `env:"S3_USE_SSL" envDefault:"false"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	return &cfg, nil
}
