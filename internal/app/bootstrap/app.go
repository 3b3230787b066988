package bootstrap

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"spai/internal/db/postgres"
	redisdb "spai/internal/db/redis"
	"spai/internal/db/sqlite"
	"spai/internal/domain/memory"
	"spai/internal/domain/session"
	"spai/internal/platform/config"
	applog "spai/internal/platform/log"
	"spai/internal/provider"
)

const connectTimeout = 10 * time.Second

// BuildStore 按 STORE_BACKEND 创建摘要存储，返回的 cleanup 关闭底层连接
func BuildStore(ctx context.Context, cfg *config.AppConfig) (memory.SummaryStore, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.Store.Backend {
	case config.StoreMemory:
		applog.Info("✅ Using in-memory summary store")
		return memory.NewInMemorySummaryStore(), func() {}, nil

	case config.StoreSQLite:
		store, err := sqlite.NewSummaryStore(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	case config.StoreRedis:
		client, err := redisdb.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		applog.Info("✅ Connected to Redis for summary store")
		store := redisdb.NewSummaryStore(redisdb.SummaryStoreConfig{Client: client})
		return store, func() { client.Close() }, nil

	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		applog.Info("✅ Connected to PostgreSQL")

		var cache *goredis.Client
		if cfg.Redis.URL != "" {
			cache, err = redisdb.Connect(ctx, cfg.Redis.URL)
			if err != nil {
				applog.Warnf("⚠️  Redis unavailable, summary cache disabled: %v", err)
				cache = nil
			} else {
				applog.Info("✅ Connected to Redis for summary cache")
			}
		}

		store := postgres.NewSummaryStore(postgres.SummaryStoreConfig{
			DB:       db,
			Redis:    cache,
			CacheTTL: time.Duration(cfg.Store.CacheTTLSeconds) * time.Second,
		})
		if err := store.EnsureTable(ctx); err != nil {
			db.Close()
			if cache != nil {
				cache.Close()
			}
			return nil, nil, fmt.Errorf("ensure user_summaries table: %w", err)
		}
		return store, func() {
			db.Close()
			if cache != nil {
				cache.Close()
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Store.Backend)
}

// BuildEngine 组装模型、摘要器与会话引擎
func BuildEngine(cfg *config.AppConfig, reg *provider.Registry, store memory.SummaryStore) *session.Engine {
	chat := memory.NewProviderModel(memory.ProviderModelConfig{
		Registry: reg,
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.ChatModel,
	})
	summaryModelName := cfg.LLM.SummaryModel
	if summaryModelName == "" {
		summaryModelName = cfg.LLM.ChatModel
	}
	summaryModel := memory.NewProviderModel(memory.ProviderModelConfig{
		Registry: reg,
		Provider: cfg.LLM.Provider,
		Model:    summaryModelName,
	})
	summarizer := memory.NewSummarizer(summaryModel, cfg.Prompts.SummarySystem, cfg.Prompts.SummaryUser)

	return session.NewEngine(session.EngineConfig{
		IdleTimeout:         cfg.Session.IdleTimeout(),
		MinFlushMessages:    cfg.Session.MinFlushMessages,
		ModelTimeout:        cfg.Session.ModelTimeout(),
		FlushTimeout:        cfg.Session.FlushTimeout(),
		MaxPendingMessages:  cfg.Session.MaxPendingMessages,
		ChatSystemPrompt:    cfg.Prompts.ChatSystem,
		Greeting:            cfg.Prompts.Greeting,
		RecallStoredSummary: cfg.Session.RecallStoredSummary,
	}, session.NewTable(time.Now), chat, summarizer, store)
}
