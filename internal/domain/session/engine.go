package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"spai/internal/domain/memory"
	"spai/internal/domain/prompt"
	applog "spai/internal/platform/log"
)

// Summarizer 把编号对话记录压缩成一段记忆
type Summarizer interface {
	Summarize(ctx context.Context, transcript, pastQuestions string) (string, error)
}

// EngineConfig 会话引擎参数
type EngineConfig struct {
	IdleTimeout         time.Duration // 空闲超过该值（严格大于）触发 flush
	MinFlushMessages    int           // flush 所需最少缓冲消息数，至少 2
	ModelTimeout        time.Duration // 直接回复的 LLM 超时
	FlushTimeout        time.Duration // 摘要 + 写库的总超时
	MaxPendingMessages  int           // 缓冲上限，超出时丢弃最旧的消息；0 表示不限
	ChatSystemPrompt    string
	Greeting            string
	RecallStoredSummary bool // 无 HistoryHint 时用已存储的摘要填充 {PAST_QUESTIONS}
}

// DefaultEngineConfig 默认参数
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		IdleTimeout:        30 * time.Second,
		MinFlushMessages:   2,
		ModelTimeout:       60 * time.Second,
		FlushTimeout:       90 * time.Second,
		MaxPendingMessages: 200,
		ChatSystemPrompt:   prompt.DefaultChatSystem,
		Greeting:           prompt.DefaultGreeting,
	}
}

// Engine 每条消息的决策与副作用编排
type Engine struct {
	cfg        EngineConfig
	table      *Table
	chat       memory.LanguageModel
	summarizer Summarizer
	store      memory.SummaryStore
	log        *slog.Logger
}

// NewEngine 创建会话引擎
func NewEngine(cfg EngineConfig, table *Table, chat memory.LanguageModel, summarizer Summarizer, store memory.SummaryStore) *Engine {
	def := DefaultEngineConfig()
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.MinFlushMessages < 2 {
		cfg.MinFlushMessages = def.MinFlushMessages
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = def.ModelTimeout
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = def.FlushTimeout
	}
	if cfg.Greeting == "" {
		cfg.Greeting = def.Greeting
	}
	if cfg.MaxPendingMessages < 0 {
		cfg.MaxPendingMessages = 0
	}
	if cfg.MaxPendingMessages > 0 && cfg.MaxPendingMessages < cfg.MinFlushMessages {
		cfg.MaxPendingMessages = cfg.MinFlushMessages
	}

	log := applog.Component("session")
	log.Info("[Session/Engine] Initialized",
		"idle_timeout", cfg.IdleTimeout,
		"min_flush_messages", cfg.MinFlushMessages,
		"recall_stored_summary", cfg.RecallStoredSummary,
	)
	return &Engine{
		cfg:        cfg,
		table:      table,
		chat:       chat,
		summarizer: summarizer,
		store:      store,
		log:        log,
	}
}

// HandleMessage 处理一条用户消息
// 返回空串表示本轮触发了 flush，没有对话回复。
func (e *Engine) HandleMessage(ctx context.Context, msg Message) (string, error) {
	userID, err := NormalizeUserID(msg.UserID)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(msg.Text)

	flushed := false
	err = e.table.WithSession(ctx, userID, func(s *Session) error {
		now := e.table.now()
		elapsed := now.Sub(s.LastActivityAt)
		if now.After(s.LastActivityAt) {
			s.LastActivityAt = now
		}
		s.PendingHistory = append(s.PendingHistory, text)
		e.enforceBufferLimit(s)

		e.log.Debug("[Session/Engine] Message buffered",
			"user_id", userID,
			"new_session", s.New,
			"elapsed", elapsed,
			"pending", len(s.PendingHistory),
		)

		if !e.shouldFlush(elapsed, len(s.PendingHistory)) {
			return nil
		}
		flushed = true
		e.flush(ctx, s, msg.HistoryHint)
		return nil
	})
	if err != nil {
		return "", err
	}
	if flushed {
		return "", nil
	}
	return e.reply(ctx, userID, text)
}

// enforceBufferLimit 超出上限时丢弃最旧的消息
func (e *Engine) enforceBufferLimit(s *Session) {
	limit := e.cfg.MaxPendingMessages
	if limit <= 0 || len(s.PendingHistory) <= limit {
		return
	}
	excess := len(s.PendingHistory) - limit
	kept := make([]string, limit)
	copy(kept, s.PendingHistory[excess:])
	s.PendingHistory = kept
	e.log.Warn("[Session/Engine] ⚠️ Pending history over limit, dropped oldest messages",
		"user_id", s.UserID,
		"dropped", excess,
		"limit", limit,
	)
}

func (e *Engine) shouldFlush(elapsed time.Duration, pending int) bool {
	return elapsed > e.cfg.IdleTimeout && pending >= e.cfg.MinFlushMessages
}

// flush 在该用户的独占区内执行：摘要 -> upsert -> 清空历史
// 模型失败时保留历史，等待下一次空闲触发重试。
func (e *Engine) flush(ctx context.Context, s *Session, hint string) {
	episodeID := uuid.New().String()
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.FlushTimeout)
	defer cancel()
	fctx = memory.WithEpisodeID(fctx, episodeID)

	log := e.log.With("user_id", s.UserID, "episode_id", episodeID)
	log.Info("[Session/Flush] 🔄 Idle threshold crossed, summarizing",
		"messages", len(s.PendingHistory),
	)

	past := hint
	if past == "" && e.cfg.RecallStoredSummary {
		rec, err := e.store.LoadSummary(fctx, s.UserID)
		if err != nil {
			log.Warn("[Session/Flush] ⚠️ Failed to load stored summary, continuing without it", "error", err)
		} else if rec != nil {
			past = rec.Content
		}
	}

	summary, err := e.summarizer.Summarize(fctx, RenderTranscript(s.PendingHistory), past)
	if err != nil {
		log.Warn("[Session/Flush] ⚠️ Summary failed, keeping history for next attempt", "error", err)
		return
	}

	if err := e.store.UpsertSummary(fctx, s.UserID, summary); err != nil {
		log.Error("[Session/Flush] ❌ Summary store write failed, summary dropped", "error", err)
	} else {
		log.Info("[Session/Flush] ✅ Summary persisted", "summary_length", len(summary))
	}
	s.PendingHistory = nil
}

func (e *Engine) reply(ctx context.Context, userID, text string) (string, error) {
	if text == "" {
		return e.cfg.Greeting, nil
	}

	rctx, cancel := context.WithTimeout(ctx, e.cfg.ModelTimeout)
	defer cancel()

	out, err := e.chat.Generate(rctx, e.cfg.ChatSystemPrompt, text)
	if err != nil {
		e.log.Error("[Session/Engine] ❌ Chat reply failed", "user_id", userID, "error", err)
		if !errors.Is(err, memory.ErrModelUnavailable) {
			err = fmt.Errorf("%w: %v", memory.ErrModelUnavailable, err)
		}
		return "", err
	}
	return out, nil
}

// Reset 丢弃该用户的缓冲会话（不影响其他用户）
func (e *Engine) Reset(ctx context.Context, userID string) (bool, error) {
	id, err := NormalizeUserID(userID)
	if err != nil {
		return false, err
	}
	removed, err := e.table.Remove(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		e.log.Info("[Session/Engine] Session reset", "user_id", id)
	}
	return removed, nil
}

// Inspect 返回该用户会话的快照
func (e *Engine) Inspect(ctx context.Context, userID string) (Session, bool, error) {
	id, err := NormalizeUserID(userID)
	if err != nil {
		return Session{}, false, err
	}
	return e.table.Snapshot(ctx, id)
}

// Summary 读取该用户已持久化的摘要
func (e *Engine) Summary(ctx context.Context, userID string) (*memory.SummaryRecord, error) {
	id, err := NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	return e.store.LoadSummary(ctx, id)
}

// StartJanitor 周期性回收空闲且无待摘要消息的会话，ctx 取消后退出
func (e *Engine) StartJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	if interval <= 0 || maxIdle <= 0 {
		e.log.Info("[Session/Janitor] Disabled")
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.log.Info("[Session/Janitor] Stopped")
				return
			case <-ticker.C:
				if n := e.table.PruneIdle(maxIdle); n > 0 {
					e.log.Info("[Session/Janitor] 🧹 Pruned idle sessions",
						"pruned", n,
						"remaining", e.table.Len(),
					)
				}
			}
		}
	}()
}
