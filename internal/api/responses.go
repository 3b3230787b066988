package api

import (
	"encoding/json"
	"net/http"

	applog "spai/internal/platform/log"
)

// envelope 管理类接口的统一响应；/chat 使用裸对象
type envelope struct {
	Code    int    `json:"code"`
	Error   string `json:"error,omitempty"` // 机器可读错误码，成功时省略
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// writeBody 原样编码 body
func writeBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		applog.Warn("[API] ⚠️ Failed to encode response", "status", status, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	writeBody(w, status, &envelope{Code: status, Message: "ok", Data: data})
}

// writeError 错误码由 HTTP 状态推导
func writeError(w http.ResponseWriter, status int, message string) {
	writeErrorCode(w, status, errorCodeFor(status), message)
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeBody(w, status, &envelope{Code: status, Error: code, Message: message})
}

func errorCodeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusServiceUnavailable:
		return "model_unavailable"
	default:
		return "internal_error"
	}
}
