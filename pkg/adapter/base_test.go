package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseSQLAdapter_Close(t *testing.T) {
	tests := []struct {
		name    string
		setupDB bool
	}{
		{name: "close with nil DB", setupDB: false},
		{name: "close with open DB", setupDB: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLAdapter{Logger: zerolog.Nop()}

			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				mock.ExpectClose()
				base.DB = db
			}

			assert.NoError(t, base.Close())
			assert.False(t, base.IsConnected())
		})
	}
}

func TestBaseSQLAdapter_NotConnected(t *testing.T) {
	base := &BaseSQLAdapter{Logger: zerolog.Nop()}
	ctx := context.Background()

	_, err := base.Execute(ctx, "SELECT 1")
	assert.ErrorIs(t, err, qerr.ErrConnectionFailed)

	assert.ErrorIs(t, base.Ping(ctx), qerr.ErrConnectionFailed)

	_, err = base.QueryStrings(ctx, "SELECT 1")
	assert.ErrorIs(t, err, qerr.ErrConnectionFailed)
}

func TestBaseSQLAdapter_Execute(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT id, name, score FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "score"}).
			AddRow(int64(1), "alice", 9.5).
			AddRow(int64(2), nil, 7.25))

	base := &BaseSQLAdapter{DB: db, Logger: zerolog.Nop()}
	res, err := base.Execute(context.Background(), "SELECT id, name, score FROM users LIMIT 200")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "score"}, res.Columns)
	assert.Equal(t, 2, res.RowCount)
	assert.Equal(t, [][]core.Value{
		{core.IntValue(1), core.StringValue("alice"), core.FloatValue(9.5)},
		{core.IntValue(2), core.Null(), core.FloatValue(7.25)},
	}, res.Rows)
	for _, row := range res.Rows {
		assert.Len(t, row, len(res.Columns))
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLAdapter_ExecuteError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT nope").WillReturnError(assert.AnError)

	base := &BaseSQLAdapter{DB: db, Logger: zerolog.Nop()}
	_, err = base.Execute(context.Background(), "SELECT nope")
	require.Error(t, err)
	assert.Equal(t, qerr.CodeQueryExecutionFailed, qerr.GetCode(err))
	assert.Contains(t, qerr.GetMessage(err), assert.AnError.Error())
}

func TestBaseSQLAdapter_ExecuteNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT id FROM empty").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	base := &BaseSQLAdapter{DB: db, Logger: zerolog.Nop()}
	res, err := base.Execute(context.Background(), "SELECT id FROM empty")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, res.Columns)
	assert.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)
}

func TestBaseSQLAdapter_QueryStrings(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SHOW TABLES").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("orders").AddRow("users"))

	base := &BaseSQLAdapter{DB: db, Logger: zerolog.Nop()}
	names, err := base.QueryStrings(context.Background(), "SHOW TABLES")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, names)
}

func TestDecodeTyped(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		raw    any
		dbType string
		want   core.Value
	}{
		{"null", nil, "INT4", core.Null()},
		{"int from bytes", []byte("42"), "BIGINT", core.IntValue(42)},
		{"int", int64(7), "INT8", core.IntValue(7)},
		{"numeric string", "12.50", "NUMERIC", core.FloatValue(12.5)},
		{"bool", true, "BOOL", core.BoolValue(true)},
		{"text", "hi", "TEXT", core.StringValue("hi")},
		{"unknown type as string", int64(5), "INTERVAL", core.StringValue("5")},
		{"timestamp", ts, "TIMESTAMPTZ", core.StringValue("2024-05-01T12:00:00Z")},
		{"bad int falls back to string", []byte("abc"), "INTEGER", core.StringValue("abc")},
		{"untyped keeps go type", float64(1.5), "", core.FloatValue(1.5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeTyped(tt.raw, tt.dbType))
		})
	}
}

func TestDecodeFallback(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want core.Value
	}{
		{"bytes", []byte("10"), core.StringValue("10")},
		{"string", "x", core.StringValue("x")},
		{"int64", int64(3), core.IntValue(3)},
		{"uint8", uint8(3), core.IntValue(3)},
		{"float", 2.5, core.FloatValue(2.5)},
		{"nil", nil, core.Null()},
		{"unsupported", struct{}{}, core.Null()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeFallback(tt.raw, "INT"))
		})
	}
}

func TestBaseSQLAdapter_QueryRecords(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("EXPLAIN SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "table", "key", "Extra"}).
			AddRow(int64(1), "users", nil, "Using where"))

	base := &BaseSQLAdapter{DB: db, Logger: zerolog.Nop()}
	recs, err := base.QueryRecords(context.Background(), qerr.CodeExplainFailed, "EXPLAIN SELECT * FROM users")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	assert.Equal(t, "users", recs[0].Get("TABLE"))
	assert.Equal(t, "", recs[0].Get("key"))
	assert.Equal(t, "Using where", recs[0].Get("extra"))
	id, ok := recs[0].Int("id")
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, "id=1 table=users Extra=Using where", recs[0].Detail())
}

func TestParseQualifiedName(t *testing.T) {
	schema, name := ParseQualifiedName("sales.orders", "public")
	assert.Equal(t, "sales", schema)
	assert.Equal(t, "orders", name)

	schema, name = ParseQualifiedName("orders", "public")
	assert.Equal(t, "public", schema)
	assert.Equal(t, "orders", name)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList("a, b,"))
	assert.Equal(t, []string{}, SplitList(""))
}
