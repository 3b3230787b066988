package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	applog "spai/internal/platform/log"
)

// SQLiteSummaryStore 单机 SQLite 摘要存储
type SQLiteSummaryStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteSummaryStore 打开（或创建）SQLite 文件并建表
// path 为 ":memory:" 时使用内存库。
func NewSQLiteSummaryStore(ctx context.Context, path string) (*SQLiteSummaryStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// 单连接：写入串行化，同时让 :memory: 库在连接间共享
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteSummaryStore{db: db, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	applog.Info("[Store/SQLite] ✅ Ready", "path", path)
	return s, nil
}

func (s *SQLiteSummaryStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS user_summaries (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL UNIQUE,
		summary    TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`)
	return err
}

// UpsertSummary 按 user_id upsert
func (s *SQLiteSummaryStore) UpsertSummary(ctx context.Context, userID, summary string) error {
	now := s.now().UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_summaries (id, user_id, summary, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE
		 SET summary = excluded.summary,
		     updated_at = excluded.updated_at`,
		uuid.New().String(), userID, summary, now, now,
	)
	if err != nil {
		applog.Error("[Store/SQLite] ❌ Upsert failed", "user_id", userID, "error", err)
		return fmt.Errorf("%w: sqlite upsert summary: %v", ErrStoreWrite, err)
	}
	applog.Debug("[Store/SQLite] Summary upserted",
		"user_id", userID,
		"episode_id", EpisodeIDFromContext(ctx),
	)
	return nil
}

// LoadSummary 读取最新摘要
func (s *SQLiteSummaryStore) LoadSummary(ctx context.Context, userID string) (*SummaryRecord, error) {
	var (
		content   string
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT summary, updated_at FROM user_summaries WHERE user_id = ?`,
		userID,
	).Scan(&content, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: sqlite load summary: %v", ErrStoreRead, err)
	}
	return &SummaryRecord{
		UserID:    userID,
		Content:   content,
		UpdatedAt: time.UnixMilli(updatedAt),
	}, nil
}

// Close 关闭数据库
func (s *SQLiteSummaryStore) Close() error {
	return s.db.Close()
}

var _ SummaryStore = (*SQLiteSummaryStore)(nil)
