package service

import (
	"context"
	"time"

	"github.com/JonnyJiang123/smart-sql/pkg/adapter"
	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
)

// Connections lists configured connections with secrets redacted.
func (s *Service) Connections(ctx context.Context) ([]core.Connection, error) {
	conns, err := s.store.ListConnections(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Connection, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.Redacted())
	}
	return out, nil
}

// SaveConnection validates and stores conn. A pooled adapter for the same
// id is dropped so the next query reconnects.
func (s *Service) SaveConnection(ctx context.Context, conn *core.Connection) error {
	if conn == nil {
		return qerr.New(qerr.CodeInvalidRequest, "connection is required")
	}
	kind, err := core.ParseBackendKind(string(conn.Kind))
	if err != nil {
		return err
	}
	conn.Kind = kind
	if _, err := conn.BuildConnectionString(); err != nil {
		return err
	}
	if err := s.store.SaveConnection(ctx, conn); err != nil {
		return err
	}
	s.pool.Evict(conn.ID)
	return nil
}

// Connection returns one connection with secrets redacted.
func (s *Service) Connection(ctx context.Context, id int64) (*core.Connection, error) {
	conn, err := s.store.GetConnection(ctx, id)
	if err != nil {
		return nil, err
	}
	redacted := conn.Redacted()
	return &redacted, nil
}

// UpdateConnection replaces the stored connection id with conn. A password
// left empty or redacted keeps the stored one.
func (s *Service) UpdateConnection(ctx context.Context, id int64, conn *core.Connection) error {
	if conn == nil {
		return qerr.New(qerr.CodeInvalidRequest, "connection is required")
	}
	existing, err := s.store.GetConnection(ctx, id)
	if err != nil {
		return err
	}
	if conn.Password == "" || conn.Password == core.RedactedSecret {
		conn.Password = existing.Password
	}
	conn.ID = id
	return s.SaveConnection(ctx, conn)
}

// DeleteConnection removes a connection and closes its pooled adapter.
func (s *Service) DeleteConnection(ctx context.Context, id int64) error {
	if err := s.store.DeleteConnection(ctx, id); err != nil {
		return err
	}
	s.pool.Evict(id)
	return nil
}

// ToggleConnection flips whether a connection is active and returns it.
func (s *Service) ToggleConnection(ctx context.Context, id int64) (*core.Connection, error) {
	conn, err := s.store.GetConnection(ctx, id)
	if err != nil {
		return nil, err
	}
	conn.Active = !conn.Active
	if err := s.store.SetActive(ctx, id, conn.Active); err != nil {
		return nil, err
	}
	s.pool.Evict(id)
	redacted := conn.Redacted()
	return &redacted, nil
}

// TestConnection connects with a throwaway adapter and reports the result.
// Failures are reported in the result, not as an error.
func (s *Service) TestConnection(ctx context.Context, conn *core.Connection) *core.ConnectionTestResult {
	start := time.Now()
	fail := func(err error) *core.ConnectionTestResult {
		return &core.ConnectionTestResult{
			Success:        false,
			Message:        qerr.GetMessage(err),
			ResponseTimeMs: elapsedMs(start),
		}
	}

	if conn == nil {
		return fail(qerr.New(qerr.CodeInvalidRequest, "connection is required"))
	}
	if _, err := conn.BuildConnectionString(); err != nil {
		return fail(err)
	}

	a, err := adapter.NewAdapter(conn, s.logger)
	if err != nil {
		return fail(err)
	}

	tctx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.DefaultTimeoutSecs)*time.Second)
	defer cancel()

	if err := a.Connect(tctx, conn); err != nil {
		return fail(err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close test connection")
		}
	}()

	version, err := a.ServerVersion(tctx)
	if err != nil {
		return fail(err)
	}

	return &core.ConnectionTestResult{
		Success:        true,
		Message:        "connection successful",
		ServerVersion:  version,
		ResponseTimeMs: elapsedMs(start),
	}
}

func (s *Service) adapterFor(ctx context.Context, connID int64) (adapter.Adapter, error) {
	conn, err := s.store.GetConnection(ctx, connID)
	if err != nil {
		return nil, err
	}
	return s.pool.Get(ctx, conn)
}

// ListTables lists the tables or collections of a connection.
func (s *Service) ListTables(ctx context.Context, connID int64) ([]core.TableInfo, error) {
	a, err := s.adapterFor(ctx, connID)
	if err != nil {
		return nil, err
	}
	return a.ListTables(ctx)
}

// TableSchema describes one table.
func (s *Service) TableSchema(ctx context.Context, connID int64, table string) (*core.TableSchema, error) {
	if table == "" {
		return nil, qerr.New(qerr.CodeInvalidRequest, "table name is required")
	}
	a, err := s.adapterFor(ctx, connID)
	if err != nil {
		return nil, err
	}
	return a.GetTableSchema(ctx, table)
}

// Indexes lists the indexes of one table.
func (s *Service) Indexes(ctx context.Context, connID int64, table string) ([]core.IndexInfo, error) {
	if table == "" {
		return nil, qerr.New(qerr.CodeInvalidRequest, "table name is required")
	}
	a, err := s.adapterFor(ctx, connID)
	if err != nil {
		return nil, err
	}
	return a.GetIndexes(ctx, table)
}
