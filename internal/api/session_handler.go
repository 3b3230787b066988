package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"spai/internal/domain/session"
	applog "spai/internal/platform/log"
)

// SessionHandler 会话与摘要管理接口
type SessionHandler struct {
	svc SessionService
}

// NewSessionHandler 创建处理器
func NewSessionHandler(svc SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// RegisterRoutes 注册路由
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sessions/{user_id}", h.GetSession)
		r.Delete("/sessions/{user_id}", h.ResetSession)
		r.Get("/summaries/{user_id}", h.GetSummary)
	})
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	sess, ok, err := h.svc.Inspect(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "failed to get session")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	removed, err := h.svc.Reset(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "failed to reset session")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	if p, err := PrincipalFrom(r.Context()); err == nil {
		applog.Info("[API/Session] Session reset by operator", "user_id", userID, "subject", p.Subject)
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": userID, "status": "reset"})
}

func (h *SessionHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	rec, err := h.svc.Summary(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "failed to load summary")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "summary not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *SessionHandler) writeServiceError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, session.ErrUserIDRequired) {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	applog.Error("[API/Session] ❌ "+message, "error", err)
	writeError(w, http.StatusInternalServerError, message)
}
