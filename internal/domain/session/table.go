package session

import (
	"context"
	"sync"
	"time"
)

// entry 表中的一个会话槽位
// lock 是容量为 1 的 channel：写入即加锁，读出即解锁，可配合 ctx 等待。
// removed 与 sess 只能在持有 lock 时访问。
type entry struct {
	lock    chan struct{}
	removed bool
	sess    Session
}

func (e *entry) acquire(ctx context.Context) error {
	select {
	case e.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *entry) tryAcquire() bool {
	select {
	case e.lock <- struct{}{}:
		return true
	default:
		return false
	}
}

func (e *entry) release() { <-e.lock }

// Table user_id -> Session 的并发安全映射
// 同一用户的访问串行化，不同用户互不阻塞；表级 mu 只保护 map 本身。
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// NewTable 创建会话表，clock 为 nil 时使用 time.Now
func NewTable(clock func() time.Time) *Table {
	if clock == nil {
		clock = time.Now
	}
	return &Table{
		entries: make(map[string]*entry),
		now:     clock,
	}
}

// Handle 指向某个用户会话的句柄
type Handle struct {
	table  *Table
	userID string
}

// UserID 会话键
func (h *Handle) UserID() string { return h.userID }

// Do 在该用户的独占区内执行 fn
func (h *Handle) Do(ctx context.Context, fn func(*Session) error) error {
	return h.table.WithSession(ctx, h.userID, fn)
}

// GetOrCreate 返回已存在的会话，不存在则原子地创建并插入
func (t *Table) GetOrCreate(userID string) *Handle {
	t.lookup(userID)
	return &Handle{table: t, userID: userID}
}

func (t *Table) lookup(userID string) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[userID]
	if !ok {
		e = &entry{
			lock: make(chan struct{}, 1),
			sess: Session{
				UserID:         userID,
				LastActivityAt: t.now(),
				New:            true,
			},
		}
		t.entries[userID] = e
	}
	return e
}

// WithSession 在 userID 的独占区内对会话做读-改-写
// fn 返回后锁一定会释放（包括 panic）。fn 内不得再调用本表的 Remove/Snapshot
// 访问同一用户，否则会自锁。
func (t *Table) WithSession(ctx context.Context, userID string, fn func(*Session) error) error {
	for {
		e := t.lookup(userID)
		if err := e.acquire(ctx); err != nil {
			return err
		}
		if e.removed {
			// 排队期间条目被移除，换新条目重试
			e.release()
			continue
		}
		return t.run(e, fn)
	}
}

func (t *Table) run(e *entry, fn func(*Session) error) error {
	defer e.release()
	defer func() { e.sess.New = false }()
	return fn(&e.sess)
}

// Remove 删除该用户的会话；正在排队的调用会落到新建的会话上
func (t *Table) Remove(ctx context.Context, userID string) (bool, error) {
	t.mu.Lock()
	e, ok := t.entries[userID]
	t.mu.Unlock()
	if !ok {
		return false, nil
	}

	if err := e.acquire(ctx); err != nil {
		return false, err
	}
	defer e.release()

	if e.removed {
		return false, nil
	}
	t.detach(userID, e)
	return true, nil
}

// detach 调用方须持有 e.lock
func (t *Table) detach(userID string, e *entry) {
	t.mu.Lock()
	if t.entries[userID] == e {
		delete(t.entries, userID)
	}
	t.mu.Unlock()
	e.removed = true
}

// Snapshot 返回会话的深拷贝；flush 进行中时会等待其结束
func (t *Table) Snapshot(ctx context.Context, userID string) (Session, bool, error) {
	t.mu.Lock()
	e, ok := t.entries[userID]
	t.mu.Unlock()
	if !ok {
		return Session{}, false, nil
	}

	if err := e.acquire(ctx); err != nil {
		return Session{}, false, err
	}
	defer e.release()

	if e.removed {
		return Session{}, false, nil
	}
	return e.sess.clone(), true, nil
}

// Len 当前会话数
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// PruneIdle 移除历史为空且空闲超过 olderThan 的会话，返回移除数量
// 正被占用或仍有待摘要消息的会话不会被移除。
func (t *Table) PruneIdle(olderThan time.Duration) int {
	t.mu.Lock()
	candidates := make(map[string]*entry, len(t.entries))
	for k, e := range t.entries {
		candidates[k] = e
	}
	t.mu.Unlock()

	now := t.now()
	pruned := 0
	for userID, e := range candidates {
		if !e.tryAcquire() {
			continue
		}
		if !e.removed && len(e.sess.PendingHistory) == 0 && now.Sub(e.sess.LastActivityAt) > olderThan {
			t.detach(userID, e)
			pruned++
		}
		e.release()
	}
	return pruned
}
