package redisdb

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	memorypkg "spai/internal/domain/memory"
)

// SummaryStore aliases the Redis-hash summary store.
type SummaryStore = memorypkg.RedisSummaryStore

type SummaryStoreConfig = memorypkg.RedisSummaryStoreConfig

func NewSummaryStore(cfg SummaryStoreConfig) *SummaryStore {
	return memorypkg.NewRedisSummaryStore(cfg)
}

// Connect 解析 REDIS_URL 并 ping
func Connect(ctx context.Context, url string) (*goredis.Client, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := goredis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
