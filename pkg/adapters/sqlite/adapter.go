// Package sqlite provides the embedded SQLite adapter backed by modernc.org/sqlite.
package sqlite

import (
	"context"
	"strconv"
	"strings"

	"github.com/JonnyJiang123/smart-sql/pkg/adapter"
	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"

	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

// Adapter implements the adapter.Adapter interface for SQLite files.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
func New(logger zerolog.Logger) *Adapter {
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{
			Logger: logger,
			Decode: adapter.DecodeTyped,
		},
	}
}

// Kind returns core.BackendSQLite.
func (a *Adapter) Kind() core.BackendKind {
	return core.BackendSQLite
}

// Connect opens the database file, creating it when missing.
func (a *Adapter) Connect(ctx context.Context, conn *core.Connection) error {
	connStr, err := conn.BuildConnectionString()
	if err != nil {
		return err
	}
	dsn, err := BuildDSN(connStr, conn.Params)
	if err != nil {
		return err
	}

	a.Logger.Debug().Str("path", conn.FilePath).Msg("opening sqlite database")

	if err := a.Open(ctx, "sqlite", dsn, conn); err != nil {
		return err
	}
	// A single writer avoids SQLITE_BUSY between pooled connections.
	a.DB.SetMaxOpenConns(1)
	return nil
}

// Options are the connection params understood by the SQLite adapter.
type Options struct {
	BusyTimeoutMs int  `mapstructure:"busy_timeout_ms"`
	ReadOnly      bool `mapstructure:"read_only"`
}

// BuildDSN converts a sqlite:// URL into a file: URI. Anything else is
// passed through as a path or URI the driver understands. Params become
// URI query settings.
func BuildDSN(connStr string, params map[string]any) (string, error) {
	dsn := connStr
	switch {
	case strings.HasPrefix(connStr, "sqlite://"):
		dsn = "file:" + strings.TrimPrefix(connStr, "sqlite://")
	case strings.HasPrefix(connStr, "sqlite:"):
		dsn = "file:" + strings.TrimPrefix(connStr, "sqlite:")
	}
	if len(params) == 0 {
		return dsn, nil
	}

	var opts Options
	if err := mapstructure.WeakDecode(params, &opts); err != nil {
		return "", qerr.Wrapf(err, qerr.CodeInvalidConnectionConfig, "invalid sqlite params: %v", err)
	}

	var extra []string
	if opts.ReadOnly {
		dsn = strings.Replace(dsn, "mode=rwc", "mode=ro", 1)
		if !strings.Contains(dsn, "mode=ro") {
			extra = append(extra, "mode=ro")
		}
	}
	if opts.BusyTimeoutMs > 0 {
		extra = append(extra, "_pragma=busy_timeout("+strconv.Itoa(opts.BusyTimeoutMs)+")")
	}
	for _, e := range extra {
		if strings.Contains(dsn, "?") {
			dsn += "&" + e
		} else {
			dsn += "?" + e
		}
	}
	return dsn, nil
}

// ServerVersion returns sqlite_version().
func (a *Adapter) ServerVersion(ctx context.Context) (string, error) {
	return a.QueryRowString(ctx, "SELECT sqlite_version()")
}

// Explain runs EXPLAIN QUERY PLAN and maps each row's detail to one node.
func (a *Adapter) Explain(ctx context.Context, query string) (*core.ExecutionPlan, error) {
	recs, err := a.QueryRecords(ctx, qerr.CodeExplainFailed, "EXPLAIN QUERY PLAN "+query)
	if err != nil {
		return nil, err
	}

	nodes := make([]core.PlanNode, 0, len(recs))
	for _, r := range recs {
		nodes = append(nodes, parseDetail(r.Get("detail")))
	}
	return core.NewExecutionPlan(nodes), nil
}

// parseDetail reads lines such as "SEARCH users USING INDEX idx_email (email=?)".
func parseDetail(detail string) core.PlanNode {
	node := core.PlanNode{Detail: detail}
	fields := strings.Fields(detail)
	if len(fields) == 0 {
		return node
	}

	node.Operation = fields[0]
	switch node.Operation {
	case "SCAN", "SEARCH":
		if len(fields) > 1 {
			table := fields[1]
			if table == "TABLE" && len(fields) > 2 {
				table = fields[2]
			}
			node.Table = table
		}
	}

	for i := 0; i+1 < len(fields); i++ {
		if fields[i] == "INDEX" && (i == 0 || fields[i-1] != "AUTOMATIC") {
			node.Index = fields[i+1]
			break
		}
	}
	if i := strings.Index(detail, "("); i >= 0 && strings.HasSuffix(detail, ")") {
		node.Filter = detail[i+1 : len(detail)-1]
	}
	return node
}

var _ adapter.Adapter = (*Adapter)(nil)
