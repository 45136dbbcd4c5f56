package agents

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"text/template"
	"time"
)

//go:embed prompts/*.tmpl
var embeddedPrompts embed.FS

const (
	systemPromptFile = "scene_system.tmpl"
	userPromptFile   = "scene_user.tmpl"

	maxRetries = 3
	retryDelay = 1 * time.Second
)

// loadPrompt reads a template from dir, falling back to the embedded copy
func loadPrompt(dir, filename string) (string, error) {
	if dir != "" {
		content, err := os.ReadFile(filepath.Join(dir, filename))
		if err == nil {
			return string(content), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("read prompt %s: %w", filename, err)
		}
	}

	content, err := embeddedPrompts.ReadFile("prompts/" + filename)
	if err != nil {
		return "", fmt.Errorf("could not find prompt file: %s", filename)
	}
	return string(content), nil
}

// SceneWriter renders scene prompts and asks a Completer for the next scene
type SceneWriter struct {
	completer  Completer
	system     *template.Template
	user       *template.Template
	retryDelay time.Duration
}

// NewSceneWriter loads prompts from promptsDir (may be empty)
func NewSceneWriter(completer Completer, promptsDir string) (*SceneWriter, error) {
	systemContent, err := loadPrompt(promptsDir, systemPromptFile)
	if err != nil {
		return nil, err
	}
	userContent, err := loadPrompt(promptsDir, userPromptFile)
	if err != nil {
		return nil, err
	}

	system, err := template.New("system").Parse(systemContent)
	if err != nil {
		return nil, fmt.Errorf("parse system prompt: %w", err)
	}
	user, err := template.New("user").Parse(userContent)
	if err != nil {
		return nil, fmt.Errorf("parse user prompt: %w", err)
	}

	return &SceneWriter{
		completer:  completer,
		system:     system,
		user:       user,
		retryDelay: retryDelay,
	}, nil
}

// RenderPrompts returns the system and user prompts for a request
func (w *SceneWriter) RenderPrompts(req SceneRequest) (string, string, error) {
	if req.SceneType == "" {
		req.SceneType = SceneContinuation
	}

	var sys, usr bytes.Buffer
	if err := w.system.Execute(&sys, req); err != nil {
		return "", "", fmt.Errorf("render system prompt: %w", err)
	}
	if err := w.user.Execute(&usr, req); err != nil {
		return "", "", fmt.Errorf("render user prompt: %w", err)
	}
	return sys.String(), usr.String(), nil
}

// GenerateScene returns the raw generator reply, retrying transient failures
func (w *SceneWriter) GenerateScene(ctx context.Context, req SceneRequest) (string, error) {
	system, user, err := w.RenderPrompts(req)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(w.retryDelay * time.Duration(attempt)):
			}
		}

		text, err := w.completer.Complete(ctx, system, user)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if errors.Is(err, ErrMissingAPIKey) || ctx.Err() != nil {
			break
		}
		log.Printf("[agents] generate scene attempt %d failed: %v", attempt+1, err)
	}

	return "", fmt.Errorf("generate scene: %w", lastErr)
}
