package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Generator backends
const (
	GeneratorNone       = "none"
	GeneratorOpenRouter = "openrouter"
	GeneratorOllama     = "ollama"
	GeneratorOpenAI     = "openai"
	GeneratorGemini     = "gemini"
)

// Config is the server configuration read from the environment
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	StoreBackend  string `env:"STORE_BACKEND" envDefault:"file"`
	SaveDir       string `env:"SAVE_DIR" envDefault:"saves"`
	DBPath        string `env:"DB_PATH" envDefault:"./adventure.db"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	Generator        string        `env:"GENERATOR" envDefault:"none"`
	OpenRouterAPIKey string        `env:"OPENROUTER_API_KEY"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	GeminiAPIKey     string        `env:"GEMINI_API_KEY"`
	GeneratorModel   string        `env:"GENERATOR_MODEL"`
	GeneratorBaseURL string        `env:"GENERATOR_BASE_URL"`
	GeneratorTimeout time.Duration `env:"GENERATOR_TIMEOUT" envDefault:"45s"`
	PromptsDir       string        `env:"PROMPTS_DIR"`

	DefaultMode         string  `env:"DEFAULT_MODE" envDefault:"preset"`
	MaxGeneratedSteps   int     `env:"MAX_GENERATED_STEPS" envDefault:"10"`
	SupplementaryChance float64 `env:"SUPPLEMENTARY_CHANCE" envDefault:"0.3"`

	JWTSecret string  `env:"JWT_SECRET"`
	RateLimit float64 `env:"RATE_LIMIT" envDefault:"5"`
}

// Load reads the optional .env files, then the environment. Variables
// already set in the environment win over .env values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated values and ranges
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreFile, StoreSQLite, StoreRedis:
	default:
		return fmt.Errorf("STORE_BACKEND must be file, sqlite or redis, got %q", c.StoreBackend)
	}

	switch c.Generator {
	case GeneratorNone, GeneratorOpenRouter, GeneratorOllama, GeneratorOpenAI, GeneratorGemini:
	default:
		return fmt.Errorf("unknown GENERATOR %q", c.Generator)
	}

	if c.DefaultMode != "preset" && c.DefaultMode != "generated" {
		return fmt.Errorf("DEFAULT_MODE must be preset or generated, got %q", c.DefaultMode)
	}
	if c.DefaultMode == "generated" && c.Generator == GeneratorNone {
		return fmt.Errorf("DEFAULT_MODE=generated needs a GENERATOR")
	}
	if c.MaxGeneratedSteps < 1 {
		return fmt.Errorf("MAX_GENERATED_STEPS must be positive")
	}
	if c.SupplementaryChance < 0 || c.SupplementaryChance > 1 {
		return fmt.Errorf("SUPPLEMENTARY_CHANCE must be between 0 and 1")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("RATE_LIMIT must be positive")
	}
	return nil
}
