package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func missingEnv(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

// TestLoadDefaults tests the default configuration
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(missingEnv(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.Port)
	}
	if cfg.StoreBackend != StoreFile || cfg.Generator != GeneratorNone {
		t.Errorf("Unexpected backends: %s/%s", cfg.StoreBackend, cfg.Generator)
	}
	if cfg.GeneratorTimeout != 45*time.Second {
		t.Errorf("Expected 45s timeout, got %v", cfg.GeneratorTimeout)
	}
	if cfg.MaxGeneratedSteps != 10 || cfg.SupplementaryChance != 0.3 {
		t.Errorf("Unexpected engine settings: %d/%v", cfg.MaxGeneratedSteps, cfg.SupplementaryChance)
	}
}

// TestLoadFromEnv tests environment overrides
func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("GENERATOR", "ollama")
	t.Setenv("DEFAULT_MODE", "generated")
	t.Setenv("GENERATOR_TIMEOUT", "2m")

	cfg, err := Load(missingEnv(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9000" || cfg.StoreBackend != StoreSQLite || cfg.Generator != GeneratorOllama {
		t.Errorf("Unexpected config: %+v", cfg)
	}
	if cfg.GeneratorTimeout != 2*time.Minute {
		t.Errorf("Expected 2m timeout, got %v", cfg.GeneratorTimeout)
	}
}

// TestLoadDotEnv tests reading a .env file
func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SAVE_DIR=/tmp/adventure-saves\nRATE_LIMIT=2.5\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	// godotenv sets real variables; register them for cleanup
	t.Setenv("SAVE_DIR", "")
	t.Setenv("RATE_LIMIT", "")
	os.Unsetenv("SAVE_DIR")
	os.Unsetenv("RATE_LIMIT")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SaveDir != "/tmp/adventure-saves" || cfg.RateLimit != 2.5 {
		t.Errorf("Expected values from .env, got %s/%v", cfg.SaveDir, cfg.RateLimit)
	}
}

// TestLoadRejectsBadValues tests validation errors
func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"STORE_BACKEND", "mongo", "STORE_BACKEND"},
		{"GENERATOR", "magic", "GENERATOR"},
		{"DEFAULT_MODE", "generated", "needs a GENERATOR"},
		{"SUPPLEMENTARY_CHANCE", "1.5", "SUPPLEMENTARY_CHANCE"},
		{"MAX_GENERATED_STEPS", "abc", "parse env"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load(missingEnv(t))
			if err == nil {
				t.Fatalf("Expected error for %s=%s", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
