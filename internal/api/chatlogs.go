package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/MikeSquared-Agency/labguard/internal/chatlog"
	"github.com/MikeSquared-Agency/labguard/internal/store"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 100
)

// ExchangeRequest records one answered question.
type ExchangeRequest struct {
	SessionID string `json:"session_id" validate:"required,max=100"`
	UserID    string `json:"user_id" validate:"max=100"`
	ManualID  string `json:"manual_id" validate:"max=64"`
	Question  string `json:"question" validate:"required"`
	Answer    string `json:"answer" validate:"required"`
}

type SessionLogsResponse struct {
	SessionID string          `json:"session_id"`
	Count     int             `json:"count"`
	Logs      []store.ChatLog `json:"logs"`
}

// recordExchange handles POST /api/v1/chat/exchanges
func (s *Server) recordExchange(w http.ResponseWriter, r *http.Request) {
	var req ExchangeRequest
	if err := decodeAndValidate(r, s.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := s.deps.ChatLogs.RecordExchange(r.Context(), req.SessionID, req.UserID, req.ManualID, req.Question, req.Answer)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "buffered"})
	case errors.Is(err, chatlog.ErrBufferUnavailable):
		s.logger.Error("exchange answered but not logged", "session_id", req.SessionID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "chat log buffer unavailable")
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

// closeSession handles POST /api/v1/chat/sessions/{session_id}/close
func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	n, err := s.deps.ChatLogs.SessionClosed(r.Context(), sessionID)
	if err != nil {
		writeFlushError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "flushed": n})
}

// sessionLogs handles GET /api/v1/chat/sessions/{session_id}/logs
func (s *Server) sessionLogs(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	logs, err := s.deps.History.ChatLogsBySession(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("failed to read chat logs", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read chat logs")
		return
	}
	writeJSON(w, http.StatusOK, SessionLogsResponse{SessionID: sessionID, Count: len(logs), Logs: nonNil(logs)})
}

// recentLogs handles GET /api/v1/chat/sessions/{session_id}/logs/recent
func (s *Server) recentLogs(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	limit := defaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxRecentLimit {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxRecentLimit))
			return
		}
		limit = n
	}

	logs, err := s.deps.History.RecentChatLogs(r.Context(), sessionID, limit)
	if err != nil {
		s.logger.Error("failed to read recent chat logs", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read chat logs")
		return
	}
	writeJSON(w, http.StatusOK, SessionLogsResponse{SessionID: sessionID, Count: len(logs), Logs: nonNil(logs)})
}

// flushChatLogs handles POST /api/v1/admin/chatlogs/flush
func (s *Server) flushChatLogs(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.ChatLogs.Flush(r.Context())
	if err != nil {
		writeFlushError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"flushed": n})
}

func writeFlushError(w http.ResponseWriter, err error) {
	var ferr *chatlog.FlushError
	if errors.As(err, &ferr) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "flush failed",
			"lost":  len(ferr.Records),
		})
		return
	}
	writeError(w, http.StatusServiceUnavailable, "chat log buffer unavailable")
}

func nonNil(logs []store.ChatLog) []store.ChatLog {
	if logs == nil {
		return []store.ChatLog{}
	}
	return logs
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return "invalid request: " + strings.Join(msgs, "; ")
}
