// Package adapter defines the contract every database backend implements.
//
// The set of backends is closed: one adapter per core.BackendKind, each in its
// own package under pkg/adapters/. Adapters register themselves with the
// registry in an init() function, so callers import them with a blank
// identifier:
//
//	import _ "github.com/JonnyJiang123/smart-sql/pkg/adapters/sqlite"
package adapter

import (
	"context"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
)

// Adapter executes queries against one backend and normalizes the results.
// The query text passed to Execute has already been checked and row-limited
// by the caller.
type Adapter interface {
	// Kind returns the backend kind this adapter serves.
	Kind() core.BackendKind

	// Connect opens a session pool for conn and verifies it with a ping.
	Connect(ctx context.Context, conn *core.Connection) error

	// Close releases the session pool.
	Close() error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// ServerVersion reports the backend's version string.
	ServerVersion(ctx context.Context) (string, error)

	// Execute runs query and returns the normalized result.
	Execute(ctx context.Context, query string) (*core.QueryResult, error)

	// Explain returns the flattened execution plan for query.
	Explain(ctx context.Context, query string) (*core.ExecutionPlan, error)

	// ListTables lists tables, views or collections.
	ListTables(ctx context.Context) ([]core.TableInfo, error)

	// GetTableSchema describes the columns and foreign keys of table.
	GetTableSchema(ctx context.Context, table string) (*core.TableSchema, error)

	// GetIndexes lists the indexes defined on table.
	GetIndexes(ctx context.Context, table string) ([]core.IndexInfo, error)
}
