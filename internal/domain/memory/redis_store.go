package memory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	applog "spai/internal/platform/log"
)

// RedisSummaryStore Redis Hash 实现的摘要存储（每个用户一个 hash）
type RedisSummaryStore struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
}

// RedisSummaryStoreConfig Redis 摘要存储配置
type RedisSummaryStoreConfig struct {
	Client    *redis.Client
	KeyPrefix string // 默认 "summary:v1:"
}

// NewRedisSummaryStore 创建 Redis 摘要存储
func NewRedisSummaryStore(cfg RedisSummaryStoreConfig) *RedisSummaryStore {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "summary:v1:"
	}
	return &RedisSummaryStore{
		client:    cfg.Client,
		keyPrefix: cfg.KeyPrefix,
		now:       time.Now,
	}
}

func (s *RedisSummaryStore) key(userID string) string {
	return s.keyPrefix + userID
}

// UpsertSummary HSET 覆盖 content 与 updated_at
func (s *RedisSummaryStore) UpsertSummary(ctx context.Context, userID, summary string) error {
	key := s.key(userID)
	err := s.client.HSet(ctx, key, map[string]interface{}{
		"content":    summary,
		"updated_at": strconv.FormatInt(s.now().UnixMilli(), 10),
	}).Err()
	if err != nil {
		applog.Error("[Store/Redis] HSET failed", "user_id", userID, "error", err)
		return fmt.Errorf("%w: redis HSET: %v", ErrStoreWrite, err)
	}
	applog.Debug("[Store/Redis] Summary upserted",
		"user_id", userID,
		"key", key,
		"episode_id", EpisodeIDFromContext(ctx),
	)
	return nil
}

// LoadSummary HGETALL，空 hash 视为不存在
func (s *RedisSummaryStore) LoadSummary(ctx context.Context, userID string) (*SummaryRecord, error) {
	vals, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis HGETALL: %v", ErrStoreRead, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}

	rec := &SummaryRecord{UserID: userID, Content: vals["content"]}
	if raw, ok := vals["updated_at"]; ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			rec.UpdatedAt = time.UnixMilli(ms)
		}
	}
	return rec, nil
}

var _ SummaryStore = (*RedisSummaryStore)(nil)
