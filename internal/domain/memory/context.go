package memory

import "context"

type contextKey int

const episodeIDKey contextKey = 0

// WithEpisodeID 将 flush 的 episode_id 注入 context，供存储层日志关联
func WithEpisodeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, episodeIDKey, id)
}

// EpisodeIDFromContext 从 context 获取 episode_id
func EpisodeIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(episodeIDKey).(string)
	return id
}
