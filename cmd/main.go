package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-redis/redis/v8"

	"github.com/1882952/llm-game-adventure/internal/agents"
	"github.com/1882952/llm-game-adventure/internal/api"
	"github.com/1882952/llm-game-adventure/internal/config"
	"github.com/1882952/llm-game-adventure/internal/game"
	"github.com/1882952/llm-game-adventure/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize save storage
	backend, err := openBackend(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize %s store: %v", cfg.StoreBackend, err)
	}
	saves := store.New(backend)
	defer saves.Close()

	// Scene generator is optional; without one only preset mode is available
	generator, closeGenerator, err := newGenerator(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize %s generator: %v", cfg.Generator, err)
	}
	defer closeGenerator()

	defaultMode, err := game.ParseMode(cfg.DefaultMode)
	if err != nil {
		log.Fatalf("Invalid default mode: %v", err)
	}

	factory := func(id string, mode game.Mode) (*game.Engine, error) {
		opts := []game.Option{
			game.WithMode(mode),
			game.WithMaxGeneratedSteps(cfg.MaxGeneratedSteps),
			game.WithSupplementaryChance(cfg.SupplementaryChance),
			game.WithGeneratorTimeout(cfg.GeneratorTimeout),
		}
		if generator != nil {
			opts = append(opts, game.WithGenerator(generator))
		}
		return game.NewEngine(id, opts...)
	}

	// Create API server
	server := api.NewServer(saves, factory, api.Options{
		DefaultMode: defaultMode,
		JWTSecret:   cfg.JWTSecret,
		RateLimit:   cfg.RateLimit,
	})

	// Start HTTP server
	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("Starting server on %s (store=%s, generator=%s, mode=%s)", addr, cfg.StoreBackend, cfg.Generator, defaultMode)

	if err := http.ListenAndServe(addr, server); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func openBackend(cfg *config.Config) (store.Backend, error) {
	switch cfg.StoreBackend {
	case config.StoreSQLite:
		return store.NewSQLiteBackend(cfg.DBPath)
	case config.StoreRedis:
		return store.NewRedisBackend(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, "")
	default:
		return store.NewFileBackend(cfg.SaveDir)
	}
}

// newGenerator builds the configured scene generator. The returned func
// releases it and is never nil.
func newGenerator(ctx context.Context, cfg *config.Config) (game.Generator, func(), error) {
	noop := func() {}

	var completer agents.Completer
	switch cfg.Generator {
	case config.GeneratorNone:
		return nil, noop, nil
	case config.GeneratorOpenRouter:
		completer = agents.NewOpenRouterClient(cfg.OpenRouterAPIKey, cfg.GeneratorBaseURL, cfg.GeneratorModel)
	case config.GeneratorOllama:
		baseURL := cfg.GeneratorBaseURL
		if baseURL == "" {
			baseURL = agents.OllamaBaseURL
		}
		completer = agents.NewOpenRouterClient("", baseURL, cfg.GeneratorModel)
	case config.GeneratorOpenAI:
		c, err := agents.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.GeneratorBaseURL, cfg.GeneratorModel)
		if err != nil {
			return nil, noop, err
		}
		completer = c
	case config.GeneratorGemini:
		c, err := agents.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeneratorModel)
		if err != nil {
			return nil, noop, err
		}
		writer, err := agents.NewSceneWriter(c, cfg.PromptsDir)
		if err != nil {
			c.Close()
			return nil, noop, err
		}
		return writer, func() { c.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown generator %q", cfg.Generator)
	}

	writer, err := agents.NewSceneWriter(completer, cfg.PromptsDir)
	if err != nil {
		return nil, noop, err
	}
	return writer, noop, nil
}
