package server

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubService answers every call with NotImplemented unless overridden.
type stubService struct {
	cancel  func(string) error
	execute func(context.Context, core.QueryRequest) (*core.QueryResult, error)
}

var errStub = qerr.New(qerr.CodeNotImplemented, "stub")

func (s *stubService) NewQueryID() string { return "stub-id" }

func (s *stubService) Execute(ctx context.Context, req core.QueryRequest) (*core.QueryResult, error) {
	if s.execute != nil {
		return s.execute(ctx, req)
	}
	return nil, errStub
}

func (s *stubService) Explain(context.Context, core.ExplainRequest) (*core.ExecutionPlan, error) {
	return nil, errStub
}

func (s *stubService) ExecuteBatch(context.Context, []core.QueryRequest) ([]core.QueryResult, error) {
	return nil, errStub
}

func (s *stubService) Cancel(id string) error {
	if s.cancel != nil {
		return s.cancel(id)
	}
	return errStub
}

func (s *stubService) Connections(context.Context) ([]core.Connection, error) { return nil, errStub }

func (s *stubService) SaveConnection(context.Context, *core.Connection) error { return errStub }

func (s *stubService) Connection(context.Context, int64) (*core.Connection, error) {
	return nil, errStub
}

func (s *stubService) UpdateConnection(context.Context, int64, *core.Connection) error {
	return errStub
}

func (s *stubService) DeleteConnection(context.Context, int64) error { return errStub }

func (s *stubService) ToggleConnection(context.Context, int64) (*core.Connection, error) {
	return nil, errStub
}

func (s *stubService) TestConnection(context.Context, *core.Connection) *core.ConnectionTestResult {
	return &core.ConnectionTestResult{}
}

func (s *stubService) ListTables(context.Context, int64) ([]core.TableInfo, error) {
	return nil, errStub
}

func (s *stubService) TableSchema(context.Context, int64, string) (*core.TableSchema, error) {
	return nil, errStub
}

func (s *stubService) Indexes(context.Context, int64, string) ([]core.IndexInfo, error) {
	return nil, errStub
}

func (s *stubService) History(context.Context, int) ([]core.QueryHistory, error) { return nil, errStub }

func (s *stubService) ToggleFavorite(context.Context, int64) (bool, error) { return false, errStub }

func (s *stubService) ClearHistory(context.Context, bool) (int64, error) { return 0, errStub }

func TestCancel_Success(t *testing.T) {
	var got string
	srv := New(Config{Service: &stubService{cancel: func(id string) error { got = id; return nil }}, Logger: zerolog.Nop()})
	f := &fixture{handler: srv.Routes()}

	rec := f.do(t, http.MethodPost, "/api/query/abc-123/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc-123", got)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["success"])
}

func TestExecute_HeaderSetOnError(t *testing.T) {
	srv := New(Config{Service: &stubService{
		execute: func(context.Context, core.QueryRequest) (*core.QueryResult, error) {
			return nil, qerr.New(qerr.CodeDeadlineExceeded, "query timed out")
		},
	}, Logger: zerolog.Nop()})
	f := &fixture{handler: srv.Routes()}

	rec := f.do(t, http.MethodPost, "/api/query/execute", map[string]any{"sql": "SELECT 1"})
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "stub-id", rec.Header().Get(QueryIDHeader))
}

func TestWriteError_HidesUnclassifiedErrors(t *testing.T) {
	srv := New(Config{Service: &stubService{
		execute: func(context.Context, core.QueryRequest) (*core.QueryResult, error) {
			return nil, errors.New("dial tcp 10.0.0.1: secret internals")
		},
	}, Logger: zerolog.Nop()})
	f := &fixture{handler: srv.Routes()}

	rec := f.do(t, http.MethodPost, "/api/query/execute", map[string]any{"sql": "SELECT 1"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, qerr.CodeInternal, body.Code)
	assert.NotContains(t, body.Message, "secret")
}

func TestMetricsRouteDisabledWithoutCollector(t *testing.T) {
	srv := New(Config{Service: &stubService{}, Logger: zerolog.Nop()})
	f := &fixture{handler: srv.Routes()}

	rec := f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
