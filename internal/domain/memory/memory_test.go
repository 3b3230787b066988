package memory

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"spai/internal/provider"
)

type fakeProvider struct {
	name    string
	lastReq *provider.CompletionRequest
	reply   string
	err     error
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	p.lastReq = req
	if p.err != nil {
		return nil, p.err
	}
	return &provider.CompletionResponse{Content: p.reply}, nil
}

type recordingModel struct {
	system string
	user   string
	reply  string
	err    error
}

func (m *recordingModel) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.system = systemPrompt
	m.user = userPrompt
	return m.reply, m.err
}

func TestProviderModelGenerate(t *testing.T) {
	fp := &fakeProvider{name: "fake", reply: "  hello there \n"}
	reg := provider.NewRegistry()
	reg.Register(fp)

	model := NewProviderModel(ProviderModelConfig{Registry: reg, Provider: "fake", Model: "m-1"})
	out, err := model.Generate(context.Background(), "be nice", "hi")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != "hello there" {
		t.Fatalf("Generate() = %q, want trimmed reply", out)
	}
	if fp.lastReq.Model != "m-1" {
		t.Fatalf("model = %q, want m-1", fp.lastReq.Model)
	}
	if len(fp.lastReq.Messages) != 2 || fp.lastReq.Messages[0].Role != "system" || fp.lastReq.Messages[1].Content != "hi" {
		t.Fatalf("unexpected messages: %+v", fp.lastReq.Messages)
	}
}

func TestProviderModelOmitsEmptySystemPrompt(t *testing.T) {
	fp := &fakeProvider{name: "fake", reply: "ok"}
	reg := provider.NewRegistry()
	reg.Register(fp)

	model := NewProviderModel(ProviderModelConfig{Registry: reg, Provider: "fake"})
	if _, err := model.Generate(context.Background(), "", "hi"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(fp.lastReq.Messages) != 1 || fp.lastReq.Messages[0].Role != "user" {
		t.Fatalf("unexpected messages: %+v", fp.lastReq.Messages)
	}
}

func TestProviderModelWrapsFailures(t *testing.T) {
	tests := []struct {
		name     string
		register bool
		err      error
	}{
		{name: "provider error", register: true, err: errors.New("boom")},
		{name: "unknown provider", register: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := provider.NewRegistry()
			if tt.register {
				reg.Register(&fakeProvider{name: "fake", err: tt.err})
			}
			model := NewProviderModel(ProviderModelConfig{Registry: reg, Provider: "fake"})

			_, err := model.Generate(context.Background(), "", "hi")
			if !errors.Is(err, ErrModelUnavailable) {
				t.Fatalf("expected ErrModelUnavailable, got %v", err)
			}
		})
	}
}

func TestSummarizerRendersTemplate(t *testing.T) {
	m := &recordingModel{reply: "summary"}
	s := NewSummarizer(m, "sys", "Past: {PAST_QUESTIONS}\nLogs:\n{CURRENT_LOGS}")

	out, err := s.Summarize(context.Background(), "1. a\n2. b\n", "")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if out != "summary" {
		t.Fatalf("Summarize() = %q", out)
	}
	if m.system != "sys" {
		t.Fatalf("system prompt = %q", m.system)
	}
	want := "Past: \nLogs:\n1. a\n2. b\n"
	if m.user != want {
		t.Fatalf("user prompt = %q, want %q", m.user, want)
	}
}

func TestSummarizerPropagatesModelError(t *testing.T) {
	m := &recordingModel{err: ErrModelUnavailable}
	s := NewSummarizer(m, "", "{CURRENT_LOGS}")

	if _, err := s.Summarize(context.Background(), "1. a\n", ""); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestSummarizerRejectsUnknownSlot(t *testing.T) {
	m := &recordingModel{reply: "x"}
	s := NewSummarizer(m, "", "{CURRENT_LOGS} {MYSTERY}")

	if _, err := s.Summarize(context.Background(), "1. a\n", ""); err == nil {
		t.Fatal("expected error for unbound slot")
	}
	if m.user != "" {
		t.Fatal("model should not be called when template fails to render")
	}
}

func TestInMemorySummaryStoreUpsert(t *testing.T) {
	store := NewInMemorySummaryStore()
	ctx := context.Background()

	rec, err := store.LoadSummary(ctx, "alice")
	if err != nil || rec != nil {
		t.Fatalf("LoadSummary() on empty store = %+v, %v", rec, err)
	}

	if err := store.UpsertSummary(ctx, "alice", "first"); err != nil {
		t.Fatalf("UpsertSummary() error = %v", err)
	}
	if err := store.UpsertSummary(ctx, "alice", "second"); err != nil {
		t.Fatalf("UpsertSummary() error = %v", err)
	}

	rec, err = store.LoadSummary(ctx, "alice")
	if err != nil {
		t.Fatalf("LoadSummary() error = %v", err)
	}
	if rec.Content != "second" {
		t.Fatalf("content = %q, want second", rec.Content)
	}
}

func TestSQLiteSummaryStoreUpsert(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "summaries.db")

	store, err := NewSQLiteSummaryStore(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteSummaryStore() error = %v", err)
	}
	defer store.Close()

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	rec, err := store.LoadSummary(ctx, "bob")
	if err != nil || rec != nil {
		t.Fatalf("LoadSummary() on empty table = %+v, %v", rec, err)
	}

	for _, content := range []string{"v1", "v2", "v3"} {
		if err := store.UpsertSummary(ctx, "bob", content); err != nil {
			t.Fatalf("UpsertSummary(%q) error = %v", content, err)
		}
	}

	rec, err = store.LoadSummary(ctx, "bob")
	if err != nil {
		t.Fatalf("LoadSummary() error = %v", err)
	}
	if rec.Content != "v3" {
		t.Fatalf("content = %q, want v3", rec.Content)
	}
	if !rec.UpdatedAt.Equal(fixed) {
		t.Fatalf("updated_at = %v, want %v", rec.UpdatedAt, fixed)
	}

	var rows int
	if err := store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_summaries`).Scan(&rows); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("rows = %d, want exactly one row per user", rows)
	}
}

func TestSQLiteSummaryStoreClosedReturnsStoreWrite(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteSummaryStore(ctx, filepath.Join(t.TempDir(), "s.db"))
	if err != nil {
		t.Fatalf("NewSQLiteSummaryStore() error = %v", err)
	}
	store.Close()

	err = store.UpsertSummary(ctx, "carol", "x")
	if !errors.Is(err, ErrStoreWrite) {
		t.Fatalf("expected ErrStoreWrite, got %v", err)
	}
	if !strings.Contains(err.Error(), "sqlite") {
		t.Fatalf("error should name the backend: %v", err)
	}
}

func TestContextValues(t *testing.T) {
	ctx := WithEpisodeID(context.Background(), "ep-1")
	if got := EpisodeIDFromContext(ctx); got != "ep-1" {
		t.Fatalf("EpisodeIDFromContext() = %q", got)
	}
	if got := EpisodeIDFromContext(context.Background()); got != "" {
		t.Fatalf("EpisodeIDFromContext() on empty ctx = %q", got)
	}
}
