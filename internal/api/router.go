package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/1882952/llm-game-adventure/internal/game"
	mw "github.com/1882952/llm-game-adventure/internal/middleware"
	"github.com/1882952/llm-game-adventure/internal/store"
	"github.com/1882952/llm-game-adventure/internal/validation"
)

const maxBodyBytes = 64 * 1024

// EngineFactory builds an engine for a new session
type EngineFactory func(id string, mode game.Mode) (*game.Engine, error)

// Options configures a Server
type Options struct {
	DefaultMode game.Mode
	JWTSecret   string  // empty disables auth
	RateLimit   float64 // requests per second per session
}

// Server handles HTTP requests
type Server struct {
	router      chi.Router
	store       *store.Store
	newEngine   EngineFactory
	sessions    map[string]*game.Engine
	sessionsMu  sync.RWMutex
	rateLimiter *mw.RateLimiter
	opts        Options
}

// NewServer creates a new API server
func NewServer(st *store.Store, factory EngineFactory, opts Options) *Server {
	if opts.DefaultMode == "" {
		opts.DefaultMode = game.ModePreset
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5
	}

	s := &Server{
		router:      chi.NewRouter(),
		store:       st,
		newEngine:   factory,
		sessions:    make(map[string]*game.Engine),
		rateLimiter: mw.NewRateLimiter(opts.RateLimit, int(opts.RateLimit)+1),
		opts:        opts,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.SetHeader("Content-Type", "application/json"))

	s.router.Get("/healthz", s.health)

	s.router.Group(func(r chi.Router) {
		r.Use(mw.Auth(s.opts.JWTSecret))

		r.Post("/api/sessions", s.createSession)

		r.Route("/api/sessions/{id}", func(r chi.Router) {
			r.Use(s.rateLimiter.Middleware)
			r.Get("/", s.getSession)
			r.Delete("/", s.endSession)
			r.Post("/actions", s.takeAction)
			r.Post("/back", s.goBack)
			r.Post("/mode", s.setMode)
			r.Post("/save", s.saveSession)
			r.Post("/load", s.loadSession)
		})

		r.Get("/api/saves", s.listSaves)
		r.Get("/api/saves/{slot}", s.inspectSave)
		r.Delete("/api/saves/{slot}", s.deleteSave)
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response wraps API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SessionData is returned by session endpoints
type SessionData struct {
	SessionID    string    `json:"session_id"`
	View         game.View `json:"view"`
	OptionEvents []string  `json:"option_events"`
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response (sanitized)
func writeError(w http.ResponseWriter, status int, message string) {
	if status >= 500 {
		message = "Internal server error"
	}
	writeJSON(w, status, Response{
		Success: false,
		Error:   message,
	})
}

// statusFor maps engine and store errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrEmptyAction),
		errors.Is(err, game.ErrNoGenerator),
		errors.Is(err, store.ErrInvalidSlot):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrSlotNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrStoryEnded),
		errors.Is(err, game.ErrNoHistory),
		errors.Is(err, game.ErrNoGame):
		return http.StatusConflict
	case errors.Is(err, store.ErrCorruptSlot):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		log.Printf("[api] %v", err)
	}
	writeError(w, status, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// session looks up the engine for the {id} route parameter
func (s *Server) session(w http.ResponseWriter, r *http.Request) (string, *game.Engine, bool) {
	id := chi.URLParam(r, "id")
	if err := validation.ValidateSessionID(id); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session ID")
		return "", nil, false
	}

	s.sessionsMu.RLock()
	engine, ok := s.sessions[id]
	s.sessionsMu.RUnlock()

	if !ok {
		writeError(w, http.StatusNotFound, "Session not found")
		return "", nil, false
	}
	return id, engine, true
}

func sessionData(id string, engine *game.Engine) (SessionData, error) {
	view, err := engine.View()
	if err != nil {
		return SessionData{}, err
	}
	return SessionData{SessionID: id, View: view, OptionEvents: engine.OptionEvents()}, nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: "ok"})
}

// createSession starts a new game
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerName string `json:"player_name"`
		Mode       string `json:"mode"`
	}
	if !decode(w, r, &req) {
		return
	}

	if err := validation.ValidatePlayerName(req.PlayerName); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mode := s.opts.DefaultMode
	if req.Mode != "" {
		m, err := game.ParseMode(req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode = m
	}

	id := uuid.New().String()
	engine, err := s.newEngine(id, mode)
	if err != nil {
		writeErr(w, err)
		return
	}
	engine.NewGame(req.PlayerName)

	s.sessionsMu.Lock()
	s.sessions[id] = engine
	s.sessionsMu.Unlock()

	data, err := sessionData(id, engine)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, Response{Success: true, Data: data})
}

// getSession returns the current scene
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := s.session(w, r)
	if !ok {
		return
	}

	data, err := sessionData(id, engine)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

// endSession forgets a session
func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	id, _, ok := s.session(w, r)
	if !ok {
		return
	}

	s.sessionsMu.Lock()
	delete(s.sessions, id)
	s.sessionsMu.Unlock()
	s.rateLimiter.Forget(id)

	writeJSON(w, http.StatusOK, Response{Success: true, Data: "Session ended"})
}

// takeAction resolves one turn
func (s *Server) takeAction(w http.ResponseWriter, r *http.Request) {
	_, engine, ok := s.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Action string `json:"action"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := validation.ValidateAction(req.Action); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := engine.Step(r.Context(), req.Action)
	if err != nil {
		writeErr(w, err)
		return
	}
	engine.Notices() // the result carries them

	writeJSON(w, http.StatusOK, Response{Success: true, Data: result})
}

// goBack returns to the previous scene
func (s *Server) goBack(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := s.session(w, r)
	if !ok {
		return
	}

	if _, err := engine.GoBack(); err != nil {
		writeErr(w, err)
		return
	}

	data, err := sessionData(id, engine)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

// setMode switches between preset and generated mode
func (s *Server) setMode(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := s.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Mode string `json:"mode"`
	}
	if !decode(w, r, &req) {
		return
	}
	mode, err := game.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := engine.SetMode(mode); err != nil {
		writeErr(w, err)
		return
	}

	data, err := sessionData(id, engine)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

type slotRequest struct {
	Slot string `json:"slot"`
}

// saveSession writes the session to a save slot
func (s *Server) saveSession(w http.ResponseWriter, r *http.Request) {
	_, engine, ok := s.session(w, r)
	if !ok {
		return
	}

	var req slotRequest
	if !decode(w, r, &req) {
		return
	}

	if err := s.store.SaveEngine(r.Context(), req.Slot, engine); err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: map[string]string{"slot": req.Slot}})
}

// loadSession replaces the session with a save slot
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := s.session(w, r)
	if !ok {
		return
	}

	var req slotRequest
	if !decode(w, r, &req) {
		return
	}

	if err := s.store.LoadInto(r.Context(), req.Slot, engine); err != nil {
		writeErr(w, err)
		return
	}

	data, err := sessionData(id, engine)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

// listSaves lists save slots, newest first
func (s *Server) listSaves(w http.ResponseWriter, r *http.Request) {
	slots, err := s.store.List(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: slots})
}

// inspectSave summarizes one slot
func (s *Server) inspectSave(w http.ResponseWriter, r *http.Request) {
	summary, err := s.store.Inspect(r.Context(), chi.URLParam(r, "slot"))
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: summary})
}

// deleteSave removes one slot
func (s *Server) deleteSave(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "slot")); err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: "Save deleted"})
}
