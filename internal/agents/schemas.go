package agents

import (
	"context"
	"errors"
)

// SceneType tells the generator what kind of scene is wanted
type SceneType string

const (
	SceneOpening      SceneType = "opening"
	SceneContinuation SceneType = "continuation"
	SceneEnding       SceneType = "ending"
)

// SceneRequest is everything the generator is told about a turn
type SceneRequest struct {
	StoryContext string    `json:"story_context"`
	PlayerAction string    `json:"player_action"`
	SceneType    SceneType `json:"scene_type"`
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer turns a system and user prompt into free text
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

var (
	// ErrMissingAPIKey is returned by backends that require a key
	ErrMissingAPIKey = errors.New("generator API key not set")
	// ErrEmptyReply is returned when a backend answers with no text
	ErrEmptyReply = errors.New("generator returned no text")
)
