package memory

import (
	"context"
	"time"
)

// LanguageModel 文本进、文本出的 LLM 调用
type LanguageModel interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// SummaryStore 用户记忆摘要的持久化（按 user_id upsert）
type SummaryStore interface {
	// UpsertSummary 不存在则插入，存在则覆盖
	UpsertSummary(ctx context.Context, userID, summary string) error

	// LoadSummary 读取最新摘要，不存在时返回 nil, nil
	LoadSummary(ctx context.Context, userID string) (*SummaryRecord, error)
}

// SummaryRecord 用户最新摘要
type SummaryRecord struct {
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}
