package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/MikeSquared-Agency/labguard/internal/segment"
	"github.com/MikeSquared-Agency/labguard/internal/store"
)

// ChatLogService is the chat log pipeline as seen by the HTTP handlers.
type ChatLogService interface {
	RecordExchange(ctx context.Context, sessionID, userID, manualID, question, answer string) error
	SessionClosed(ctx context.Context, sessionID string) (int, error)
	Flush(ctx context.Context) (int, error)
	Pending(ctx context.Context) (int64, error)
	Threshold() int
}

// HistoryStore reads persisted chat logs.
type HistoryStore interface {
	ChatLogsBySession(ctx context.Context, sessionID string) ([]store.ChatLog, error)
	RecentChatLogs(ctx context.Context, sessionID string, limit int) ([]store.ChatLog, error)
}

type Segmenter interface {
	AssignExperimentIDs(ctx context.Context, chunks []segment.Chunk, manualID string) ([]segment.Chunk, []string)
}

// Deps wires the server to the rest of the service.
type Deps struct {
	ChatLogs      ChatLogService
	History       HistoryStore
	Segmenter     Segmenter
	APIToken      string
	FlushInterval time.Duration
	Logger        *slog.Logger
}

type Server struct {
	router   *chi.Mux
	port     int
	deps     Deps
	validate *validator.Validate
	http     *http.Server
	logger   *slog.Logger
}

func NewServer(port int, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		deps:     deps,
		validate: validator.New(),
		logger:   deps.Logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/labguard/status", s.status)

	router.Route("/api/v1/chat", func(r chi.Router) {
		r.Post("/exchanges", s.recordExchange)
		r.Post("/sessions/{session_id}/close", s.closeSession)
		r.Get("/sessions/{session_id}/logs", s.sessionLogs)
		r.Get("/sessions/{session_id}/logs/recent", s.recentLogs)
	})

	router.Post("/api/v1/manuals/{manual_id}/segment", s.segmentManual)

	router.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(deps.APIToken))
		r.Post("/chatlogs/flush", s.flushChatLogs)
	})

	return s
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	pending, err := s.deps.ChatLogs.Pending(r.Context())
	if err != nil {
		s.logger.Warn("status: buffer length unavailable", "error", err)
		status = "degraded"
		pending = -1
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"agent":           "labguard",
		"status":          status,
		"buffer_length":   pending,
		"flush_threshold": s.deps.ChatLogs.Threshold(),
		"flush_interval":  s.deps.FlushInterval.String(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
