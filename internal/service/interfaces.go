package service

import (
	"context"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
)

// ConnectionStore resolves configured connections.
type ConnectionStore interface {
	// GetConnection returns a NotFound error when id is unknown.
	GetConnection(ctx context.Context, id int64) (*core.Connection, error)
	ListConnections(ctx context.Context) ([]core.Connection, error)
	ActiveConnections(ctx context.Context) ([]core.Connection, error)
	SaveConnection(ctx context.Context, conn *core.Connection) error
	// SetActive and DeleteConnection return a NotFound error when id is unknown.
	SetActive(ctx context.Context, id int64, active bool) error
	DeleteConnection(ctx context.Context, id int64) error
}

// HistoryStore persists executed queries.
type HistoryStore interface {
	RecordQuery(ctx context.Context, h *core.QueryHistory) error
	ListHistory(ctx context.Context, limit int) ([]core.QueryHistory, error)
	ToggleFavorite(ctx context.Context, id int64) (bool, error)
	ClearHistory(ctx context.Context, keepFavorites bool) (int64, error)
}

// Advisor produces optimization advice for an explained query.
type Advisor interface {
	Advise(ctx context.Context, sql string, plan *core.ExecutionPlan) (advice string, optimizedSQL string, err error)
}
