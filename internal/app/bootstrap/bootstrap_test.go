package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"spai/internal/domain/session"
	"spai/internal/platform/config"
	"spai/internal/provider"
)

func TestRegisterLLMProviders(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		baseURL string
		wantErr bool
	}{
		{name: "openai without key", baseURL: "https://api.openai.com/v1", wantErr: true},
		{name: "openai with key", apiKey: "sk-test", baseURL: "https://api.openai.com/v1"},
		{name: "local ollama without key", baseURL: "http://localhost:11434/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.LLM.Provider = "ollama"
			cfg.OpenAI.APIKey = tt.apiKey
			cfg.OpenAI.BaseURL = tt.baseURL

			reg := provider.NewRegistry()
			err := RegisterLLMProviders(reg, cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("RegisterLLMProviders() error = %v", err)
			}
			if _, err := reg.Get("ollama"); err != nil {
				t.Fatalf("provider not registered under configured name: %v", err)
			}
		})
	}
}

func TestBuildStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		cfg := config.Default()
		store, cleanup, err := BuildStore(ctx, cfg)
		if err != nil {
			t.Fatalf("BuildStore() error = %v", err)
		}
		defer cleanup()
		if err := store.UpsertSummary(ctx, "alice", "x"); err != nil {
			t.Fatalf("UpsertSummary() error = %v", err)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := config.Default()
		cfg.Store.Backend = config.StoreSQLite
		cfg.SQLite.Path = filepath.Join(t.TempDir(), "spai.db")

		store, cleanup, err := BuildStore(ctx, cfg)
		if err != nil {
			t.Fatalf("BuildStore() error = %v", err)
		}
		defer cleanup()
		if err := store.UpsertSummary(ctx, "alice", "x"); err != nil {
			t.Fatalf("UpsertSummary() error = %v", err)
		}
		rec, err := store.LoadSummary(ctx, "alice")
		if err != nil || rec == nil || rec.Content != "x" {
			t.Fatalf("LoadSummary() = %+v, %v", rec, err)
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := config.Default()
		cfg.Store.Backend = "mongo"
		if _, _, err := BuildStore(ctx, cfg); err == nil {
			t.Fatal("expected error for unknown backend")
		}
	})
}

func TestBuildEngineDirectReply(t *testing.T) {
	models := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		models <- body.Model

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.2","choices":[{"message":{"role":"assistant","content":" Nice light today! "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.LLM.Provider = "ollama"
	cfg.LLM.ChatModel = "llama3.2"
	cfg.OpenAI.BaseURL = srv.URL + "/v1"

	reg := provider.NewRegistry()
	if err := RegisterLLMProviders(reg, cfg); err != nil {
		t.Fatalf("RegisterLLMProviders() error = %v", err)
	}
	store, cleanup, err := BuildStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("BuildStore() error = %v", err)
	}
	defer cleanup()

	engine := BuildEngine(cfg, reg, store)
	reply, err := engine.HandleMessage(context.Background(), session.Message{UserID: "Alice", Text: "hello"})
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if reply != "Nice light today!" {
		t.Fatalf("reply = %q", reply)
	}
	if got := <-models; got != "llama3.2" {
		t.Fatalf("model = %q", got)
	}

	greeting, err := engine.HandleMessage(context.Background(), session.Message{UserID: "alice"})
	if err != nil || greeting != cfg.Prompts.Greeting {
		t.Fatalf("empty text reply = %q, %v", greeting, err)
	}
}
