// Package mysql provides the MySQL and MariaDB adapter.
//
// Cells are decoded with adapter.DecodeFallback, which follows the Go type
// the driver produced instead of the declared column type. The driver
// already yields int64 and float64 for numeric columns, while DECIMAL,
// temporal, JSON and BIT columns arrive as []byte and are kept as strings
// so no precision is lost.
package mysql

import (
	"context"

	"github.com/JonnyJiang123/smart-sql/pkg/adapter"
	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
	"github.com/rs/zerolog"

	// Registers the "mysql" database/sql driver.
	_ "github.com/go-sql-driver/mysql"
)

// Adapter implements the adapter.Adapter interface for MySQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new MySQL adapter instance.
func New(logger zerolog.Logger) *Adapter {
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{
			Logger: logger,
			Decode: adapter.DecodeFallback,
		},
	}
}

// Kind returns core.BackendMySQL.
func (a *Adapter) Kind() core.BackendKind {
	return core.BackendMySQL
}

// Connect establishes a connection to MySQL.
func (a *Adapter) Connect(ctx context.Context, conn *core.Connection) error {
	connStr, err := conn.BuildConnectionString()
	if err != nil {
		return err
	}
	dsn, err := BuildDSN(connStr, conn.Params)
	if err != nil {
		return err
	}

	a.Logger.Debug().
		Str("host", conn.Host).
		Str("database", conn.Database).
		Msg("connecting to mysql")

	return a.Open(ctx, "mysql", dsn, conn)
}

// ServerVersion returns the server's VERSION().
func (a *Adapter) ServerVersion(ctx context.Context) (string, error) {
	return a.QueryRowString(ctx, "SELECT VERSION()")
}

// Explain runs EXPLAIN and maps each output row to one plan node.
func (a *Adapter) Explain(ctx context.Context, query string) (*core.ExecutionPlan, error) {
	recs, err := a.QueryRecords(ctx, qerr.CodeExplainFailed, "EXPLAIN "+query)
	if err != nil {
		return nil, err
	}
	return core.NewExecutionPlan(planNodes(recs)), nil
}

func planNodes(recs []adapter.Record) []core.PlanNode {
	nodes := make([]core.PlanNode, 0, len(recs))
	for _, r := range recs {
		node := core.PlanNode{
			Detail:    r.Detail(),
			Operation: r.Get("select_type"),
			Table:     r.Get("table"),
			Index:     r.Get("key"),
			JoinType:  r.Get("type"),
			Filter:    r.Get("extra"),
		}
		if n, ok := r.Int("rows"); ok {
			node.Rows = &n
		}
		nodes = append(nodes, node)
	}
	return nodes
}

var _ adapter.Adapter = (*Adapter)(nil)
