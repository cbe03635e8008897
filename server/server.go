// Package server exposes the chat core over HTTP with Server-Sent
// Events streaming.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/pkg/agent"
	"github.com/xhad/askdocs/pkg/store"
)

// Sessions is the session surface the handlers need.
type Sessions interface {
	Create(ctx context.Context, title, model, systemPrompt string) (*models.Session, error)
	Get(ctx context.Context, id string) (*models.Session, error)
	Healthy(ctx context.Context) error
}

// Streamer runs one streaming turn against a session.
type Streamer interface {
	SendMessage(ctx context.Context, sessionID, text string, emit agent.EmitFunc) error
}

type Config struct {
	Addr      string
	RateLimit float64
	RateBurst int
}

// Server wires the HTTP surface: session create/get, the streaming
// message endpoint, and health.
type Server struct {
	config   Config
	sessions Sessions
	streamer Streamer
	logger   *slog.Logger

	// One turn per session at a time; concurrent turns on the same
	// session are rejected, not serialized.
	mu       sync.Mutex
	inflight map[string]bool
}

func New(config Config, sessions Sessions, streamer Streamer, logger *slog.Logger) *Server {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5.0
	}
	if config.RateBurst == 0 {
		config.RateBurst = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:   config,
		sessions: sessions,
		streamer: streamer,
		logger:   logger,
		inflight: make(map[string]bool),
	}
}

// Handler builds the route table with rate limiting and request
// logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /api/sessions/{id}/messages/stream", s.handleStreamMessage)
	mux.HandleFunc("GET /health", s.handleHealth)

	limiters := newClientLimiters(s.config.RateLimit, s.config.RateBurst)
	return logRequests(s.logger, rateLimit(limiters, mux))
}

// ListenAndServe serves until the listener fails.
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting server", "addr", s.config.Addr)
	return http.ListenAndServe(s.config.Addr, s.Handler())
}

type createSessionRequest struct {
	Title        string `json:"title"`
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		req.Title = "New chat"
	}

	session, err := s.sessions.Create(r.Context(), req.Title, req.Model, req.SystemPrompt)
	if err != nil {
		s.logger.Error("failed to create session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	writeJSON(w, http.StatusOK, session)
}

type streamMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleStreamMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req streamMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	if !s.acquire(sessionID) {
		writeError(w, http.StatusConflict, "a turn is already running on this session")
		return
	}
	defer s.release(sessionID)

	sse, err := NewSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	err = s.streamer.SendMessage(r.Context(), sessionID, req.Content, sse.Encode)
	if errors.Is(err, store.ErrSessionNotFound) {
		// Headers are not committed until the first event, so the
		// missing-session case can still answer with a status code.
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil && r.Context().Err() == nil {
		s.logger.Error("streaming turn failed", "session_id", sessionID, "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "database": "ok"}
	code := http.StatusOK
	if err := s.sessions.Healthy(r.Context()); err != nil {
		// The error can carry connection details; keep those in the
		// log and off the wire.
		s.logger.Error("health check failed", "error", err)
		status["status"] = "degraded"
		status["database"] = "unreachable"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) acquire(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[sessionID] {
		return false
	}
	s.inflight[sessionID] = true
	return true
}

func (s *Server) release(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, sessionID)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
