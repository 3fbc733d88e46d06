package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
)

const connectionColumns = `id, name, db_type, host, port, database_name, username, password,
	file_path, connection_string, environment, is_active, params`

// GetConnection retrieves a connection by id.
func (s *SQLiteStore) GetConnection(ctx context.Context, id int64) (*core.Connection, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = ?`, id)
	conn, err := scanConnection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, qerr.Newf(qerr.CodeNotFound, "connection %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return conn, nil
}

// ListConnections returns every connection ordered by id.
func (s *SQLiteStore) ListConnections(ctx context.Context) ([]core.Connection, error) {
	return s.queryConnections(ctx, `SELECT `+connectionColumns+` FROM connections ORDER BY id`)
}

// ActiveConnections returns the active connections ordered by id.
func (s *SQLiteStore) ActiveConnections(ctx context.Context) ([]core.Connection, error) {
	return s.queryConnections(ctx, `SELECT `+connectionColumns+` FROM connections WHERE is_active = 1 ORDER BY id`)
}

// SaveConnection inserts conn, or replaces the row with the same id.
// A zero id is assigned by the database and written back to conn.
func (s *SQLiteStore) SaveConnection(ctx context.Context, conn *core.Connection) error {
	if err := s.ready(); err != nil {
		return err
	}

	params, err := encodeParams(conn.Params)
	if err != nil {
		return err
	}
	now := time.Now().Unix()

	var id any
	if conn.ID != 0 {
		id = conn.ID
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO connections (id, name, db_type, host, port, database_name, username, password,
			file_path, connection_string, environment, is_active, params, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			db_type = excluded.db_type,
			host = excluded.host,
			port = excluded.port,
			database_name = excluded.database_name,
			username = excluded.username,
			password = excluded.password,
			file_path = excluded.file_path,
			connection_string = excluded.connection_string,
			environment = excluded.environment,
			is_active = excluded.is_active,
			params = excluded.params,
			updated_at = excluded.updated_at`,
		id, conn.Name, string(conn.Kind), conn.Host, conn.Port, conn.Database, conn.Username, conn.Password,
		conn.FilePath, conn.ConnectionString, conn.Environment, conn.Active, params, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save connection: %w", err)
	}

	if conn.ID == 0 {
		newID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read connection id: %w", err)
		}
		conn.ID = newID
	}
	return nil
}

// SetActive marks a connection active or inactive.
func (s *SQLiteStore) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.ready(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE connections SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update connection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return qerr.Newf(qerr.CodeNotFound, "connection %d not found", id)
	}
	return nil
}

// DeleteConnection removes a connection. History rows keep a null connection id.
func (s *SQLiteStore) DeleteConnection(ctx context.Context, id int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return qerr.Newf(qerr.CodeNotFound, "connection %d not found", id)
	}
	return nil
}

// SeedConnections saves each connection, replacing rows with the same id.
func (s *SQLiteStore) SeedConnections(ctx context.Context, conns []core.Connection) error {
	for i := range conns {
		if err := s.SaveConnection(ctx, &conns[i]); err != nil {
			return fmt.Errorf("failed to seed connection %q: %w", conns[i].Name, err)
		}
	}
	s.logger.Debug().Int("count", len(conns)).Msg("seeded connections")
	return nil
}

func (s *SQLiteStore) queryConnections(ctx context.Context, query string, args ...any) ([]core.Connection, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	out := []core.Connection{}
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		out = append(out, *conn)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConnection(row scanner) (*core.Connection, error) {
	var (
		conn                                     core.Connection
		kind                                     string
		host, database, username, password, file sql.NullString
		connStr, environment, params             sql.NullString
		port                                     sql.NullInt64
	)
	if err := row.Scan(&conn.ID, &conn.Name, &kind, &host, &port, &database, &username, &password,
		&file, &connStr, &environment, &conn.Active, &params); err != nil {
		return nil, err
	}

	conn.Kind = core.BackendKind(kind)
	conn.Host = host.String
	conn.Port = int(port.Int64)
	conn.Database = database.String
	conn.Username = username.String
	conn.Password = password.String
	conn.FilePath = file.String
	conn.ConnectionString = connStr.String
	conn.Environment = environment.String

	if params.Valid && params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &conn.Params); err != nil {
			return nil, fmt.Errorf("invalid params for connection %d: %w", conn.ID, err)
		}
	}
	return &conn, nil
}

func encodeParams(params map[string]any) (any, error) {
	if len(params) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}
	return string(b), nil
}
