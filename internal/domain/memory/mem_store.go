package memory

import (
	"context"
	"sync"
	"time"
)

// InMemorySummaryStore 进程内摘要存储，用于开发和测试
type InMemorySummaryStore struct {
	mu      sync.RWMutex
	records map[string]SummaryRecord
	now     func() time.Time
}

// NewInMemorySummaryStore 创建进程内存储
func NewInMemorySummaryStore() *InMemorySummaryStore {
	return &InMemorySummaryStore{
		records: make(map[string]SummaryRecord),
		now:     time.Now,
	}
}

func (s *InMemorySummaryStore) UpsertSummary(ctx context.Context, userID, summary string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[userID] = SummaryRecord{UserID: userID, Content: summary, UpdatedAt: s.now()}
	return nil
}

func (s *InMemorySummaryStore) LoadSummary(ctx context.Context, userID string) (*SummaryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

var _ SummaryStore = (*InMemorySummaryStore)(nil)
