package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"spai/internal/domain/memory"
	"spai/internal/domain/session"
)

type fakeService struct {
	mu        sync.Mutex
	messages  []session.Message
	reply     string
	err       error
	sessions  map[string]session.Session
	summaries map[string]string
}

func newFakeService() *fakeService {
	return &fakeService{
		reply:     "hello!",
		sessions:  make(map[string]session.Session),
		summaries: make(map[string]string),
	}
}

func (f *fakeService) HandleMessage(ctx context.Context, msg session.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := session.NormalizeUserID(msg.UserID); err != nil {
		return "", err
	}
	f.messages = append(f.messages, msg)
	return f.reply, f.err
}

func (f *fakeService) Reset(ctx context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[userID]; !ok {
		return false, nil
	}
	delete(f.sessions, userID)
	return true, nil
}

func (f *fakeService) Inspect(ctx context.Context, userID string) (session.Session, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[userID]
	return s, ok, nil
}

func (f *fakeService) Summary(ctx context.Context, userID string) (*memory.SummaryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.summaries[userID]
	if !ok {
		return nil, nil
	}
	return &memory.SummaryRecord{UserID: userID, Content: content}, nil
}

func postChat(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestChatReturnsBareResponse(t *testing.T) {
	svc := newFakeService()
	handler := NewServer(DefaultServerConfig(), svc).Handler()

	rr := postChat(t, handler, `{"user_id":"Alice","text":"hi","history":"met at the park"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["response"] != "hello!" || len(resp) != 1 {
		t.Fatalf("response body = %v, want only {response}", resp)
	}

	got := svc.messages[0]
	if got.UserID != "Alice" || got.Text != "hi" || got.HistoryHint != "met at the park" {
		t.Fatalf("forwarded message = %+v", got)
	}
}

func TestChatFlushTurnReturnsEmptyString(t *testing.T) {
	svc := newFakeService()
	svc.reply = ""
	handler := NewServer(DefaultServerConfig(), svc).Handler()

	rr := postChat(t, handler, `{"user_id":"alice","text":"bye"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"response":""}` {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestChatErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{name: "bad json", body: `{"user_id":`, want: http.StatusBadRequest},
		{name: "missing user id", body: `{"text":"hi"}`, want: http.StatusBadRequest},
		{name: "blank user id", body: `{"user_id":"   ","text":"hi"}`, want: http.StatusBadRequest},
		{
			name: "model unavailable",
			body: `{"user_id":"alice","text":"hi"}`,
			err:  fmt.Errorf("%w: timeout", memory.ErrModelUnavailable),
			want: http.StatusServiceUnavailable,
		},
		{
			name: "unexpected error",
			body: `{"user_id":"alice","text":"hi"}`,
			err:  errors.New("boom"),
			want: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService()
			svc.err = tt.err
			handler := NewServer(DefaultServerConfig(), svc).Handler()

			rr := postChat(t, handler, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestChatRejectsOversizedBody(t *testing.T) {
	svc := newFakeService()
	cfg := DefaultServerConfig()
	cfg.MaxBodyBytes = 64
	handler := NewServer(cfg, svc).Handler()

	body := fmt.Sprintf(`{"user_id":"alice","text":%q}`, strings.Repeat("x", 256))
	rr := postChat(t, handler, body)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413 (%s)", rr.Code, rr.Body.String())
	}
	if len(svc.messages) != 0 {
		t.Fatalf("oversized request reached the service: %+v", svc.messages)
	}

	rr = postChat(t, handler, `{"user_id":"alice","text":"hi"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("small body status = %d", rr.Code)
	}
}

func TestErrorEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		message  string
		wantCode string
	}{
		{name: "not found", status: http.StatusNotFound, message: "session not found", wantCode: "not_found"},
		{name: "model down", status: http.StatusServiceUnavailable, message: "language model unavailable", wantCode: "model_unavailable"},
		{name: "quotes are escaped", status: http.StatusBadRequest, message: `bad "user_id"`, wantCode: "bad_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, tt.status, tt.message)

			var resp envelope
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode %q: %v", rr.Body.String(), err)
			}
			if rr.Code != tt.status || resp.Code != tt.status || resp.Error != tt.wantCode || resp.Message != tt.message {
				t.Fatalf("envelope = %+v (status %d)", resp, rr.Code)
			}
		})
	}
}

func TestSessionRoutes(t *testing.T) {
	svc := newFakeService()
	svc.sessions["alice"] = session.Session{UserID: "alice", PendingHistory: []string{"hi"}}
	handler := NewServer(DefaultServerConfig(), svc).Handler()

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{name: "get existing session", method: http.MethodGet, path: "/api/v1/sessions/alice", want: http.StatusOK},
		{name: "get missing session", method: http.MethodGet, path: "/api/v1/sessions/bob", want: http.StatusNotFound},
		{name: "missing summary", method: http.MethodGet, path: "/api/v1/summaries/alice", want: http.StatusNotFound},
		{name: "reset session", method: http.MethodDelete, path: "/api/v1/sessions/alice", want: http.StatusOK},
		{name: "reset again", method: http.MethodDelete, path: "/api/v1/sessions/alice", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestGetSessionUsesEnvelope(t *testing.T) {
	svc := newFakeService()
	svc.sessions["alice"] = session.Session{UserID: "alice", PendingHistory: []string{"hi", "there"}}
	handler := NewServer(DefaultServerConfig(), svc).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/alice", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var resp struct {
		Code int             `json:"code"`
		Data session.Session `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != http.StatusOK || len(resp.Data.PendingHistory) != 2 {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
}
