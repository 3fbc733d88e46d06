package adapter

import (
	"context"
	"database/sql"
	"time"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrNotConnected is returned when an adapter is used before Connect.
var ErrNotConnected = qerr.New(qerr.CodeConnectionFailed, "database connection not established")

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Ping and Execute implementations.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Conn   *core.Connection
	Logger zerolog.Logger

	// Decode converts one scanned cell into a generic value.
	Decode Decoder
}

// Open opens a pool with driverName and verifies it with a ping.
func (b *BaseSQLAdapter) Open(ctx context.Context, driverName, dsn string, conn *core.Connection) error {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return qerr.Wrapf(err, qerr.CodeConnectionFailed, "failed to open %s connection: %v", conn.Kind, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return qerr.Wrapf(err, qerr.CodeConnectionFailed, "failed to connect to %s: %v", conn.Kind, err)
	}

	b.DB = db
	b.Conn = conn
	return nil
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		b.Logger.Debug().Msg("closing database connection")
		err := b.DB.Close()
		b.DB = nil
		return err
	}
	return nil
}

// Ping verifies the connection is alive.
func (b *BaseSQLAdapter) Ping(ctx context.Context) error {
	if b.DB == nil {
		return ErrNotConnected
	}
	if err := b.DB.PingContext(ctx); err != nil {
		return qerr.Wrapf(err, qerr.CodeConnectionFailed, "ping failed: %v", err)
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// Execute runs query and normalizes every row with b.Decode.
// Execution time covers the call and full materialization of the rows.
func (b *BaseSQLAdapter) Execute(ctx context.Context, query string) (*core.QueryResult, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}

	start := time.Now()
	rows, err := b.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, executionError(ctx, err)
	}
	defer func() { _ = rows.Close() }()

	decode := b.Decode
	if decode == nil {
		decode = DecodeTyped
	}

	columns, data, err := ScanRows(rows, decode)
	if err != nil {
		return nil, executionError(ctx, err)
	}

	elapsed := time.Since(start)
	b.Logger.Debug().
		Int("rows", len(data)).
		Dur("elapsed", elapsed).
		Msg("query executed")

	return &core.QueryResult{
		Columns:         columns,
		Rows:            data,
		RowCount:        len(data),
		ExecutionTimeMs: elapsed.Milliseconds(),
	}, nil
}

// QueryRowString runs a single-value query such as a version lookup.
func (b *BaseSQLAdapter) QueryRowString(ctx context.Context, query string, args ...any) (string, error) {
	if b.DB == nil {
		return "", ErrNotConnected
	}
	var out sql.NullString
	if err := b.DB.QueryRowContext(ctx, query, args...).Scan(&out); err != nil {
		return "", qerr.Wrapf(err, qerr.CodeQueryExecutionFailed, "query failed: %v", err)
	}
	return out.String, nil
}

// QueryStrings runs query and collects the first column of every row.
func (b *BaseSQLAdapter) QueryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, qerr.Wrapf(err, qerr.CodeQueryExecutionFailed, "query failed: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var s sql.NullString
		if err := rows.Scan(&s); err != nil {
			return nil, qerr.Wrapf(err, qerr.CodeQueryExecutionFailed, "scan failed: %v", err)
		}
		out = append(out, s.String)
	}
	if err := rows.Err(); err != nil {
		return nil, qerr.Wrapf(err, qerr.CodeQueryExecutionFailed, "query failed: %v", err)
	}
	return out, nil
}

// executionError maps a driver failure onto the error taxonomy. Context
// errors keep their own codes so the caller can tell a timeout from a
// rejected statement.
func executionError(ctx context.Context, err error) error {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return qerr.Wrap(err, qerr.CodeDeadlineExceeded, "query timed out")
	case context.Canceled:
		return qerr.Wrap(err, qerr.CodeCanceled, "query canceled")
	}
	return qerr.Wrapf(err, qerr.CodeQueryExecutionFailed, "query execution failed: %v", err)
}

// ExecutionError is executionError for adapters that do not embed BaseSQLAdapter.
func ExecutionError(ctx context.Context, err error) error {
	return executionError(ctx, err)
}
