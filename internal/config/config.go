// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL) - credential store
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis) - token revocation set. Optional: when empty,
	// logout is a no-op and tokens stay valid until expiry.
	RedisURL string `env:"REDIS_URL" envDefault:""`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts. WriteTimeout covers the full provider chain,
	// so it is generous compared to ReadTimeout.
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Session tokens
	JWTSecret string        `env:"JWT_SECRET,required"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"168h"`

	// Groq (cloud provider, OpenAI-compatible chat completions)
	GroqAPIKey string `env:"GROQ_API_KEY" envDefault:""`
	GroqModel  string `env:"GROQ_MODEL" envDefault:"llama-3.1-8b-instant"`
	GroqURL    string `env:"GROQ_URL" envDefault:"https://api.groq.com/openai/v1/chat/completions"`

	// Gemini (cloud provider)
	GeminiAPIKey string `env:"GEMINI_API_KEY" envDefault:""`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	GeminiURL    string `env:"GEMINI_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`

	// Ollama (local provider, no API key)
	OllamaURL   string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaModel string `env:"OLLAMA_MODEL" envDefault:"llama3.2"`

	// Generic AI service fallback
	AIServiceURL string `env:"AI_SERVICE_URL" envDefault:"http://localhost:8000"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
