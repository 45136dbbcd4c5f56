package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(Subject(r.Context())))
	})
}

// TestRateLimiterPerSession tests that sessions have separate budgets
func TestRateLimiterPerSession(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)

	r := chi.NewRouter()
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Use(rl.Middleware)
		r.Get("/", okHandler().ServeHTTP)
	})

	get := func(path string) int {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec.Code
	}

	if code := get("/sessions/a/"); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if code := get("/sessions/a/"); code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 on second request, got %d", code)
	}
	if code := get("/sessions/b/"); code != http.StatusOK {
		t.Errorf("Expected other session to be allowed, got %d", code)
	}

	rl.Forget("a")
	if code := get("/sessions/a/"); code != http.StatusOK {
		t.Errorf("Expected fresh budget after Forget, got %d", code)
	}
}

// TestRateLimiterByIP tests the IP fallback
func TestRateLimiterByIP(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	h := rl.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", rec.Code)
	}
}

// TestAuthDisabled tests that an empty secret lets everything through
func TestAuthDisabled(t *testing.T) {
	h := Auth("")(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

// TestAuthBearer tests token validation
func TestAuthBearer(t *testing.T) {
	const secret = "test-secret"
	h := Auth(secret)(okHandler())

	valid, err := IssueToken(secret, "player-1", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	expired, _ := IssueToken(secret, "player-1", -time.Hour)
	forged, _ := IssueToken("other-secret", "player-1", time.Hour)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + valid, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "Bearer " + forged, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.want, rec.Code)
		}
		if tt.want == http.StatusOK && rec.Body.String() != "player-1" {
			t.Errorf("%s: expected subject in context, got %q", tt.name, rec.Body.String())
		}
	}
}
