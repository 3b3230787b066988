package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"spai/internal/domain/memory"
	"spai/internal/domain/session"
	applog "spai/internal/platform/log"
)

// ChatHandler 对话入口
type ChatHandler struct {
	svc          SessionService
	maxBodyBytes int64
}

// NewChatHandler 创建处理器，maxBodyBytes <= 0 表示不限制请求体
func NewChatHandler(svc SessionService, maxBodyBytes int64) *ChatHandler {
	return &ChatHandler{svc: svc, maxBodyBytes: maxBodyBytes}
}

// RegisterRoutes 注册路由
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.Chat)
}

type chatRequest struct {
	UserID  string `json:"user_id"`
	Text    string `json:"text"`
	History string `json:"history,omitempty"`
}

// chatResponse 裸对象，与前端约定一致；空串表示本轮已归档
type chatResponse struct {
	Response string `json:"response"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	reply, err := h.svc.HandleMessage(r.Context(), session.Message{
		UserID:      req.UserID,
		Text:        req.Text,
		HistoryHint: req.History,
	})
	if err != nil {
		switch {
		case errors.Is(err, session.ErrUserIDRequired):
			writeError(w, http.StatusBadRequest, "user_id is required")
		case errors.Is(err, memory.ErrModelUnavailable):
			writeError(w, http.StatusServiceUnavailable, "language model unavailable")
		default:
			applog.Error("[API/Chat] ❌ Message handling failed", "user_id", req.UserID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to handle message")
		}
		return
	}

	writeBody(w, http.StatusOK, &chatResponse{Response: reply})
}
