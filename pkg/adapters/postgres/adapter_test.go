package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/JonnyJiang123/smart-sql/pkg/adapter"
	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	a := New(zerolog.Nop())
	a.DB = db
	return a, mock
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name     string
		connStr  string
		params   map[string]any
		expected string
	}{
		{
			name:     "canonical url gets sslmode",
			connStr:  "postgresql://postgres:pw@localhost:5432/app",
			expected: "postgresql://postgres:pw@localhost:5432/app?sslmode=disable",
		},
		{
			name:     "explicit sslmode kept",
			connStr:  "postgres://u:p@db:5432/app?sslmode=require",
			expected: "postgres://u:p@db:5432/app?sslmode=require",
		},
		{
			name:     "params appended",
			connStr:  "postgresql://u:p@db:5432/app",
			params:   map[string]any{"sslmode": "verify-full", "connect_timeout": "5", "application_name": "smart sql"},
			expected: "postgresql://u:p@db:5432/app?application_name=smart+sql&connect_timeout=5&sslmode=verify-full",
		},
		{
			name:     "keyword form",
			connStr:  "host=db port=5432 dbname=app user=u",
			expected: "host=db port=5432 dbname=app user=u sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn, err := BuildDSN(tt.connStr, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, dsn)
		})
	}
}

func TestBuildDSN_Invalid(t *testing.T) {
	_, err := BuildDSN("postgresql://u:p@db:notaport/app", nil)
	require.Error(t, err)
	assert.Equal(t, qerr.CodeInvalidConnectionConfig, qerr.GetCode(err))
}

func TestNew(t *testing.T) {
	adp := New(zerolog.Nop())

	assert.Nil(t, adp.DB, "DB should be nil before Connect")
	assert.False(t, adp.IsConnected(), "should not be connected initially")
	assert.Equal(t, core.BackendPostgres, adp.Kind())
	assert.True(t, adapter.IsRegistered(core.BackendPostgres))
}

func TestAdapter_NotConnected(t *testing.T) {
	adp := New(zerolog.Nop())
	ctx := context.Background()

	_, err := adp.Execute(ctx, "SELECT 1")
	assert.ErrorIs(t, err, adapter.ErrNotConnected)

	_, err = adp.ListTables(ctx)
	assert.ErrorIs(t, err, adapter.ErrNotConnected)

	_, err = adp.GetIndexes(ctx, "users")
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
}

func TestParsePlanLine(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		check func(t *testing.T, n core.PlanNode)
	}{
		{
			name: "seq scan",
			line: "Seq Scan on users  (cost=0.00..35.50 rows=2550 width=36)",
			check: func(t *testing.T, n core.PlanNode) {
				assert.Equal(t, "Seq Scan", n.Operation)
				assert.Equal(t, "users", n.Table)
				require.NotNil(t, n.Cost)
				assert.InDelta(t, 35.5, *n.Cost, 0.0001)
				require.NotNil(t, n.Rows)
				assert.Equal(t, int64(2550), *n.Rows)
				require.NotNil(t, n.Width)
				assert.Equal(t, int64(36), *n.Width)
			},
		},
		{
			name: "index scan",
			line: "  ->  Index Scan using users_pkey on users u  (cost=0.15..8.17 rows=1 width=40)",
			check: func(t *testing.T, n core.PlanNode) {
				assert.Equal(t, "Index Scan", n.Operation)
				assert.Equal(t, "users_pkey", n.Index)
				assert.Equal(t, "users", n.Table)
			},
		},
		{
			name: "join",
			line: "Hash Join  (cost=1.09..2.21 rows=4 width=68)",
			check: func(t *testing.T, n core.PlanNode) {
				assert.Equal(t, "Hash Join", n.JoinType)
				assert.Empty(t, n.Table)
			},
		},
		{
			name: "filter line",
			line: "        Filter: (age > 18)",
			check: func(t *testing.T, n core.PlanNode) {
				assert.Equal(t, "Filter", n.Operation)
				assert.Equal(t, "(age > 18)", n.Filter)
				assert.Nil(t, n.Cost)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, parsePlanLine(tt.line))
		})
	}
}

func TestAdapter_Explain(t *testing.T) {
	a, mock := newMockAdapter(t)

	mock.ExpectQuery(`EXPLAIN SELECT \* FROM users WHERE age > 18`).
		WillReturnRows(sqlmock.NewRows([]string{"QUERY PLAN"}).
			AddRow("Seq Scan on users  (cost=0.00..41.88 rows=850 width=36)").
			AddRow("  Filter: (age > 18)"))

	plan, err := a.Explain(context.Background(), "SELECT * FROM users WHERE age > 18")
	require.NoError(t, err)
	require.Len(t, plan.Plan, 2)
	assert.Nil(t, plan.Plan[0].Parent)
	require.NotNil(t, plan.Plan[1].Parent)
	assert.Equal(t, 0, *plan.Plan[1].Parent)
	assert.Equal(t, "Seq Scan on users  (cost=0.00..41.88 rows=850 width=36)\nFilter: (age > 18)", plan.QueryPlan)
}

func TestAdapter_ExplainError(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery("EXPLAIN").WillReturnError(assert.AnError)

	_, err := a.Explain(context.Background(), "SELECT broken")
	require.Error(t, err)
	assert.Equal(t, qerr.CodeExplainFailed, qerr.GetCode(err))
}

func TestAdapter_GetIndexes(t *testing.T) {
	a, mock := newMockAdapter(t)

	mock.ExpectQuery("FROM pg_class t").
		WithArgs("sales", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"index_name", "columns", "is_unique", "is_primary"}).
			AddRow("orders_pkey", "id", true, true).
			AddRow("orders_user_idx", "user_id,created_at", false, false))

	idx, err := a.GetIndexes(context.Background(), "sales.orders")
	require.NoError(t, err)
	require.Len(t, idx, 2)
	assert.True(t, idx[0].IsPrimary)
	assert.Equal(t, "orders", idx[0].Table)
	assert.Equal(t, []string{"user_id", "created_at"}, idx[1].Columns)
	assert.False(t, idx[1].IsUnique)
}

func TestAdapter_GetTableSchema(t *testing.T) {
	a, mock := newMockAdapter(t)

	mock.ExpectQuery("FROM information_schema.columns c").
		WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "column_default", "is_primary_key"}).
			AddRow("id", "integer", "NO", "nextval('users_id_seq'::regclass)", true).
			AddRow("email", "text", "YES", nil, false))
	mock.ExpectQuery("FOREIGN KEY").
		WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows([]string{"constraint_name", "column_name", "referenced_table", "referenced_column"}))

	schema, err := a.GetTableSchema(context.Background(), "users")
	require.NoError(t, err)
	assert.Equal(t, "public", schema.Table.Schema)
	require.Len(t, schema.Columns, 2)
	assert.True(t, schema.Columns[0].IsPrimaryKey)
	assert.Equal(t, "nextval('users_id_seq'::regclass)", schema.Columns[0].DefaultValue)
	assert.Empty(t, schema.Columns[1].DefaultValue)
	assert.Empty(t, schema.ForeignKeys)
}
