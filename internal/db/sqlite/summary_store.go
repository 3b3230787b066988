package sqlite

import (
	"context"

	memorypkg "spai/internal/domain/memory"
)

// SummaryStore aliases the SQLite-backed summary store.
type SummaryStore = memorypkg.SQLiteSummaryStore

func NewSummaryStore(ctx context.Context, path string) (*SummaryStore, error) {
	return memorypkg.NewSQLiteSummaryStore(ctx, path)
}
