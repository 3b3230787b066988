package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	applog "spai/internal/platform/log"
)

// PgSummaryStore PostgreSQL + Redis 缓存实现的摘要存储
type PgSummaryStore struct {
	db       *sql.DB
	rds      *redis.Client // 可为 nil（无缓存模式）
	cacheTTL time.Duration
	now      func() time.Time
}

// PgSummaryStoreConfig PgSummaryStore 配置
type PgSummaryStoreConfig struct {
	DB       *sql.DB
	Redis    *redis.Client // 可选，nil 则不缓存
	CacheTTL time.Duration // Redis 缓存 TTL，默认 30 分钟
}

// NewPgSummaryStore 创建 PostgreSQL 摘要存储
func NewPgSummaryStore(cfg PgSummaryStoreConfig) *PgSummaryStore {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 30 * time.Minute
	}
	applog.Info("[Store/PG] Initialized",
		"has_redis_cache", cfg.Redis != nil,
		"cache_ttl", ttl,
	)
	return &PgSummaryStore{
		db:       cfg.DB,
		rds:      cfg.Redis,
		cacheTTL: ttl,
		now:      time.Now,
	}
}

// EnsureTable 确保 user_summaries 表存在
func (m *PgSummaryStore) EnsureTable(ctx context.Context) error {
	applog.Info("[Store/PG] Ensuring user_summaries table exists...")
	ddl := `
	CREATE TABLE IF NOT EXISTS user_summaries (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id    VARCHAR(255) NOT NULL UNIQUE,
		summary    TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);
	`
	_, err := m.db.ExecContext(ctx, ddl)
	if err != nil {
		applog.Error("[Store/PG] ❌ Failed to create table", "error", err)
	} else {
		applog.Info("[Store/PG] ✅ Table ready")
	}
	return err
}

// LoadSummary 先查 Redis 缓存，miss 则查 PG 并回填缓存
// 回填用 SETNX：读到旧行时不会覆盖 UpsertSummary 已写入的新值。
func (m *PgSummaryStore) LoadSummary(ctx context.Context, userID string) (*SummaryRecord, error) {
	if m.rds != nil {
		cacheKey := summaryCacheKey(userID)
		cached, err := m.rds.Get(ctx, cacheKey).Result()
		if err == nil && cached != "" {
			var rec SummaryRecord
			if json.Unmarshal([]byte(cached), &rec) == nil {
				applog.Debug("[Store/PG] 🎯 Cache HIT", "user_id", userID, "cache_key", cacheKey)
				return &rec, nil
			}
			applog.Warn("[Store/PG] Cache data corrupted, falling through to PG", "user_id", userID)
		} else if err != nil && !errors.Is(err, redis.Nil) {
			applog.Warn("[Store/PG] ⚠️ Cache read failed", "user_id", userID, "error", err)
		}
	}

	rec := SummaryRecord{UserID: userID}
	err := m.db.QueryRowContext(ctx,
		`SELECT summary, updated_at FROM user_summaries WHERE user_id = $1`,
		userID,
	).Scan(&rec.Content, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		applog.Error("[Store/PG] ❌ PG query failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: pg load summary: %v", ErrStoreRead, err)
	}

	if m.rds != nil {
		m.fillCache(ctx, &rec)
	}
	return &rec, nil
}

// UpsertSummary 写 PG，再写穿 Redis 缓存
func (m *PgSummaryStore) UpsertSummary(ctx context.Context, userID, summary string) error {
	updatedAt := m.now()

	applog.Info("[Store/PG] 💾 Upserting summary",
		"user_id", userID,
		"episode_id", EpisodeIDFromContext(ctx),
		"summary_length", len(summary),
	)

	_, err := m.db.ExecContext(ctx,
		`INSERT INTO user_summaries (user_id, summary, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE
		 SET summary = EXCLUDED.summary,
		     updated_at = EXCLUDED.updated_at`,
		userID, summary, updatedAt,
	)
	if err != nil {
		applog.Error("[Store/PG] ❌ PG upsert failed", "user_id", userID, "error", err)
		return fmt.Errorf("%w: pg upsert summary: %v", ErrStoreWrite, err)
	}

	// 写穿缓存；写失败时退回删除，避免留下旧值
	if m.rds != nil {
		rec := &SummaryRecord{UserID: userID, Content: summary, UpdatedAt: updatedAt}
		if err := m.writeCache(ctx, rec); err != nil {
			cacheKey := summaryCacheKey(userID)
			applog.Warn("[Store/PG] ⚠️ Failed to refresh cache, invalidating",
				"user_id", userID,
				"cache_key", cacheKey,
				"error", err,
			)
			if delErr := m.rds.Del(ctx, cacheKey).Err(); delErr != nil {
				applog.Warn("[Store/PG] ⚠️ Failed to invalidate cache",
					"user_id", userID,
					"cache_key", cacheKey,
					"error", delErr,
				)
			}
		}
	}
	return nil
}

func (m *PgSummaryStore) writeCache(ctx context.Context, rec *SummaryRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return m.rds.Set(ctx, summaryCacheKey(rec.UserID), data, m.cacheTTL).Err()
}

func (m *PgSummaryStore) fillCache(ctx context.Context, rec *SummaryRecord) {
	cacheKey := summaryCacheKey(rec.UserID)
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if setErr := m.rds.SetNX(ctx, cacheKey, data, m.cacheTTL).Err(); setErr != nil {
		applog.Warn("[Store/PG] ⚠️ Failed to set cache",
			"user_id", rec.UserID,
			"cache_key", cacheKey,
			"error", setErr,
		)
	}
}

func summaryCacheKey(userID string) string {
	return "summary:cache:v1:" + userID
}

var _ SummaryStore = (*PgSummaryStore)(nil)
