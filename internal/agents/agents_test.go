package agents

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

// fakeCompleter fails a fixed number of times before answering
type fakeCompleter struct {
	failures int
	calls    int
	reply    string
	err      error
	system   string
	user     string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	f.calls++
	f.system, f.user = system, user
	if f.calls <= f.failures {
		if f.err != nil {
			return "", f.err
		}
		return "", errors.New("temporary failure")
	}
	return f.reply, nil
}

// TestOpenRouterClientComplete tests the HTTP client against a local server
func TestOpenRouterClientComplete(t *testing.T) {
	var got CompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Expected bearer auth, got %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","choices":[{"index":0,"message":{"role":"assistant","content":"  你来到了河边。 "}}]}`))
	}))
	defer srv.Close()

	client := NewOpenRouterClient("test-key", srv.URL, "test-model")
	text, err := client.Complete(context.Background(), "sys", "usr")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if text != "你来到了河边。" {
		t.Errorf("Expected trimmed reply, got %q", text)
	}
	if got.Model != "test-model" {
		t.Errorf("Expected model 'test-model', got '%s'", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "usr" {
		t.Errorf("Unexpected messages: %+v", got.Messages)
	}
}

// TestOpenRouterClientErrors tests non-200 and empty replies
func TestOpenRouterClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Authorization"), "empty") {
			w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":""}}]}`))
			return
		}
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewOpenRouterClient("k", srv.URL, "m").Complete(context.Background(), "s", "u"); err == nil {
		t.Error("Expected error for 502")
	}

	_, err := NewOpenRouterClient("empty", srv.URL, "m").Complete(context.Background(), "s", "u")
	if !errors.Is(err, ErrEmptyReply) {
		t.Errorf("Expected ErrEmptyReply, got %v", err)
	}
}

// TestOpenRouterClientRequiresKey tests that the hosted endpoint needs a key
func TestOpenRouterClientRequiresKey(t *testing.T) {
	client := NewOpenRouterClient("", "", "m")
	_, err := client.Complete(context.Background(), "s", "u")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Expected ErrMissingAPIKey, got %v", err)
	}
}

// TestSceneWriterPrompts tests prompt rendering from the embedded templates
func TestSceneWriterPrompts(t *testing.T) {
	fc := &fakeCompleter{reply: "ok"}
	writer, err := NewSceneWriter(fc, "")
	if err != nil {
		t.Fatalf("NewSceneWriter failed: %v", err)
	}

	_, err = writer.GenerateScene(context.Background(), SceneRequest{
		StoryContext: "当前情况: 黑暗的走廊",
		PlayerAction: "点燃火把",
		SceneType:    SceneEnding,
	})
	if err != nil {
		t.Fatalf("GenerateScene failed: %v", err)
	}

	if !strings.Contains(fc.user, "黑暗的走廊") || !strings.Contains(fc.user, "玩家操作：点燃火把") {
		t.Errorf("User prompt missing context or action: %q", fc.user)
	}
	if !strings.Contains(fc.system, "结局") {
		t.Errorf("Expected ending instruction in system prompt: %q", fc.system)
	}
}

// TestSceneWriterPromptOverride tests loading templates from a directory
func TestSceneWriterPromptOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(dir+"/"+userPromptFile, []byte("ACTION={{.PlayerAction}}"), 0o644); err != nil {
		t.Fatal(err)
	}

	fc := &fakeCompleter{reply: "ok"}
	writer, err := NewSceneWriter(fc, dir)
	if err != nil {
		t.Fatalf("NewSceneWriter failed: %v", err)
	}

	if _, err := writer.GenerateScene(context.Background(), SceneRequest{PlayerAction: "跳"}); err != nil {
		t.Fatalf("GenerateScene failed: %v", err)
	}
	if fc.user != "ACTION=跳" {
		t.Errorf("Expected overridden user prompt, got %q", fc.user)
	}
}

// TestSceneWriterRetries tests retrying transient failures
func TestSceneWriterRetries(t *testing.T) {
	fc := &fakeCompleter{failures: 2, reply: "终于成功"}
	writer, err := NewSceneWriter(fc, "")
	if err != nil {
		t.Fatalf("NewSceneWriter failed: %v", err)
	}
	writer.retryDelay = time.Millisecond

	text, err := writer.GenerateScene(context.Background(), SceneRequest{})
	if err != nil {
		t.Fatalf("GenerateScene failed: %v", err)
	}
	if text != "终于成功" || fc.calls != 3 {
		t.Errorf("Expected success on third call, got %q after %d calls", text, fc.calls)
	}
}

// TestSceneWriterNoRetryWithoutKey tests that a missing key fails fast
func TestSceneWriterNoRetryWithoutKey(t *testing.T) {
	fc := &fakeCompleter{failures: 5, err: ErrMissingAPIKey}
	writer, _ := NewSceneWriter(fc, "")
	writer.retryDelay = time.Millisecond

	_, err := writer.GenerateScene(context.Background(), SceneRequest{})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Expected ErrMissingAPIKey, got %v", err)
	}
	if fc.calls != 1 {
		t.Errorf("Expected 1 call, got %d", fc.calls)
	}
}

// TestLiveOpenRouter talks to the real service when a key is available
func TestLiveOpenRouter(t *testing.T) {
	key := os.Getenv("OPENROUTER_API_KEY")
	if key == "" {
		t.Skip("OPENROUTER_API_KEY not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	writer, err := NewSceneWriter(NewOpenRouterClient(key, "", "openai/gpt-4o-mini"), "")
	if err != nil {
		t.Fatalf("NewSceneWriter failed: %v", err)
	}

	text, err := writer.GenerateScene(ctx, SceneRequest{StoryContext: "当前情况: 你站在森林入口。", PlayerAction: "走进森林"})
	if err != nil {
		t.Fatalf("GenerateScene failed: %v", err)
	}
	t.Logf("Response: %s", text)
}
