package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	memorypkg "spai/internal/domain/memory"
	"spai/internal/platform/config"
)

// SummaryStore aliases the PostgreSQL-backed summary store.
type SummaryStore = memorypkg.PgSummaryStore

type SummaryStoreConfig = memorypkg.PgSummaryStoreConfig

func NewSummaryStore(cfg SummaryStoreConfig) *SummaryStore {
	return memorypkg.NewPgSummaryStore(cfg)
}

// Open 打开连接池并 ping
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeSeconds) * time.Second)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}
