package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds application configuration values loaded from environment
// variables.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	JWTSecret          string        `env:"JWT_SECRET,required"`
	TokenExpiration    time.Duration `env:"JWT_EXPIRATION" envDefault:"24h"`

	GeminiAPIKey      string        `env:"GEMINI_API_KEY,required"`
	GeminiModel       string        `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	GenerationTimeout time.Duration `env:"GENERATION_TIMEOUT" envDefault:"120s"`

	UploadDir         string        `env:"UPLOAD_DIR" envDefault:"./uploads"`
	MaxUploadMB       int64         `env:"MAX_UPLOAD_MB" envDefault:"10"`
	ExtractionTimeout time.Duration `env:"EXTRACTION_TIMEOUT" envDefault:"15s"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET" envDefault:"dev-secret"`
}

// LoadConfig loads configuration from a .env file if present, then from
// actual environment variables.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// Not fatal; production environments set real env vars.
		log.Debug().Msg("no .env file found, using environment variables only")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	log.Info().
		Str("port", cfg.HTTPPort).
		Str("gemini_model", cfg.GeminiModel).
		Dur("generation_timeout", cfg.GenerationTimeout).
		Dur("token_expiration", cfg.TokenExpiration).
		Msg("configuration loaded")

	return cfg, nil
}
