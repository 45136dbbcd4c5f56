package game

import (
	"context"
	"math/rand"
	"testing"

	"github.com/1882952/llm-game-adventure/internal/agents"
)

// fakeGenerator returns canned replies in order, repeating the last one
type fakeGenerator struct {
	replies  []string
	err      error
	panicMsg string
	requests []agents.SceneRequest
}

func (g *fakeGenerator) GenerateScene(ctx context.Context, req agents.SceneRequest) (string, error) {
	g.requests = append(g.requests, req)
	if g.panicMsg != "" {
		panic(g.panicMsg)
	}
	if g.err != nil {
		return "", g.err
	}
	if len(g.replies) == 0 {
		return "", nil
	}
	i := len(g.requests) - 1
	if i >= len(g.replies) {
		i = len(g.replies) - 1
	}
	return g.replies[i], nil
}

// newTestEngine creates an engine with deterministic randomness and no bonus rolls
func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithRand(rand.New(rand.NewSource(1))),
		WithSupplementaryChance(0),
	}
	engine, err := NewEngine("test-game", append(base, opts...)...)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return engine
}

// step runs a turn and fails the test on error
func step(t *testing.T, e *Engine, action string) *TurnResult {
	t.Helper()
	res, err := e.Step(context.Background(), action)
	if err != nil {
		t.Fatalf("Step(%q) failed: %v", action, err)
	}
	return res
}
