package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/JonnyJiang123/smart-sql/pkg/adapter"
	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
	"github.com/JonnyJiang123/smart-sql/pkg/shell"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestAdapter_Registered(t *testing.T) {
	assert.True(t, adapter.IsRegistered(core.BackendMongoDB))
	assert.Equal(t, core.BackendMongoDB, New(zerolog.Nop()).Kind())
}

func TestAdapter_NotConnected(t *testing.T) {
	a := New(zerolog.Nop())
	ctx := context.Background()

	_, err := a.Execute(ctx, "db.users.find({})")
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
	_, err = a.Explain(ctx, "db.users.find({})")
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
	assert.ErrorIs(t, a.Ping(ctx), adapter.ErrNotConnected)
	assert.NoError(t, a.Close())
}

func TestDatabaseName(t *testing.T) {
	name, err := DatabaseName("mongodb://h:27017/shop", "")
	require.NoError(t, err)
	assert.Equal(t, "shop", name)

	name, err = DatabaseName("mongodb://h:27017/shop", "override")
	require.NoError(t, err)
	assert.Equal(t, "override", name)

	_, err = DatabaseName("mongodb://h:27017", "")
	require.Error(t, err)
	assert.Equal(t, qerr.CodeInvalidConnectionConfig, qerr.GetCode(err))

	_, err = DatabaseName("not-a-uri", "")
	require.Error(t, err)
	assert.Equal(t, qerr.CodeInvalidConnectionConfig, qerr.GetCode(err))
}

func TestClientOptions(t *testing.T) {
	opts, err := ClientOptions("mongodb://h:27017/shop", map[string]any{
		"app_name":                 "smart-sql",
		"server_selection_timeout": "3s",
	})
	require.NoError(t, err)
	require.NotNil(t, opts.AppName)
	assert.Equal(t, "smart-sql", *opts.AppName)
	require.NotNil(t, opts.ServerSelectionTimeout)
	assert.Equal(t, 3*time.Second, *opts.ServerSelectionTimeout)

	_, err = ClientOptions("mongodb://h:27017/shop", map[string]any{"server_selection_timeout": "later"})
	require.Error(t, err)
	assert.Equal(t, qerr.CodeInvalidConnectionConfig, qerr.GetCode(err))
}

func TestNormalize(t *testing.T) {
	oid := primitive.NewObjectID()
	docs := []bson.M{
		{"_id": oid, "name": "alice", "age": int32(30)},
		{"_id": "x2", "email": "b@example.com", "tags": bson.A{"a", "b"}},
		{},
	}

	columns, rows := Normalize(docs)

	assert.Equal(t, []string{"_id", "age", "email", "name", "tags"}, columns)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Len(t, row, len(columns))
	}
	assert.Equal(t, []core.Value{
		core.StringValue(oid.Hex()), core.IntValue(30), core.Null(), core.StringValue("alice"), core.Null(),
	}, rows[0])
	assert.Equal(t, core.StringValue(`["a","b"]`), rows[1][4])
	for _, v := range rows[2] {
		assert.True(t, v.IsNull())
	}
}

func TestNormalize_Empty(t *testing.T) {
	columns, rows := Normalize(nil)
	assert.Equal(t, []string{}, columns)
	assert.Equal(t, [][]core.Value{}, rows)
}

func TestToValue(t *testing.T) {
	when := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	dec, err := primitive.ParseDecimal128("12.50")
	require.NoError(t, err)

	tests := []struct {
		name string
		in   any
		want core.Value
	}{
		{"nil", nil, core.Null()},
		{"bool", true, core.BoolValue(true)},
		{"int32", int32(4), core.IntValue(4)},
		{"int64", int64(5), core.IntValue(5)},
		{"double", 2.5, core.FloatValue(2.5)},
		{"string", "s", core.StringValue("s")},
		{"datetime", primitive.NewDateTimeFromTime(when), core.StringValue("2024-01-02T03:04:05Z")},
		{"decimal", dec, core.StringValue("12.50")},
		{"nested", bson.M{"city": "Oslo"}, core.StringValue(`{"city":"Oslo"}`)},
		{"nested D", bson.D{{Key: "n", Value: int32(1)}}, core.StringValue(`{"n":1}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToValue(tt.in))
		})
	}
}

func TestExplainCommand(t *testing.T) {
	cmd, err := shell.Extract(`db.users.find({"$where": "1", "age": {"$gt": 18}}, { name: 1 }).limit(5000)`)
	require.NoError(t, err)

	got := ExplainCommand(cmd)

	require.Len(t, got, 2)
	assert.Equal(t, "executionStats", got[1].Value)
	inner, ok := got[0].Value.(bson.D)
	require.True(t, ok)
	assert.Equal(t, bson.D{
		{Key: "find", Value: "users"},
		{Key: "filter", Value: bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: int32(18)}}}}},
		{Key: "projection", Value: bson.D{{Key: "name", Value: int32(1)}}},
		{Key: "limit", Value: int64(1500)},
	}, inner)
}

func TestExplainCommand_Aggregate(t *testing.T) {
	cmd, err := shell.Extract(`db.orders.aggregate([{"$match": {"paid": true}}])`)
	require.NoError(t, err)

	inner := ExplainCommand(cmd)[0].Value.(bson.D)
	assert.Equal(t, "aggregate", inner[0].Key)
	pipeline, ok := inner[1].Value.([]bson.D)
	require.True(t, ok)
	require.Len(t, pipeline, 2)
	assert.Equal(t, bson.D{{Key: "$limit", Value: int64(200)}}, pipeline[1])
}

func TestPlanNodes(t *testing.T) {
	result := bson.M{
		"queryPlanner": bson.M{
			"winningPlan": bson.M{
				"stage": "LIMIT",
				"inputStage": bson.M{
					"stage": "FETCH",
					"inputStage": bson.M{
						"stage":     "IXSCAN",
						"indexName": "age_1",
					},
				},
			},
		},
		"executionStats": bson.M{
			"executionStages": bson.M{
				"stage":     "LIMIT",
				"nReturned": int32(3),
				"inputStage": bson.M{
					"stage":        "FETCH",
					"nReturned":    int32(3),
					"docsExamined": int32(3),
					"filter":       bson.M{"status": bson.M{"$eq": "A"}},
					"inputStage": bson.M{
						"stage":     "IXSCAN",
						"indexName": "age_1",
						"nReturned": int32(4),
					},
				},
			},
		},
	}

	nodes := core.NewExecutionPlan(PlanNodes(result, "users")).Plan

	require.Len(t, nodes, 3)
	assert.Equal(t, "LIMIT", nodes[0].Operation)
	assert.Nil(t, nodes[0].Parent)
	assert.Equal(t, "FETCH", nodes[1].Operation)
	assert.Equal(t, `{"status":{"$eq":"A"}}`, nodes[1].Filter)
	assert.Equal(t, "IXSCAN", nodes[2].Operation)
	assert.Equal(t, "age_1", nodes[2].Index)
	require.NotNil(t, nodes[2].Parent)
	assert.Equal(t, 1, *nodes[2].Parent)
	require.NotNil(t, nodes[2].Rows)
	assert.Equal(t, int64(4), *nodes[2].Rows)
	assert.Equal(t, "users", nodes[2].Table)
}

func TestPlanNodes_WinningPlanOnly(t *testing.T) {
	result := bson.M{
		"queryPlanner": bson.M{
			"winningPlan": bson.M{
				"queryPlan": bson.M{"stage": "COLLSCAN"},
			},
		},
	}

	nodes := PlanNodes(result, "events")
	require.Len(t, nodes, 1)
	assert.Equal(t, "COLLSCAN", nodes[0].Operation)
}

func TestPlanNodes_Unrecognized(t *testing.T) {
	nodes := PlanNodes(bson.M{"ok": 1.0}, "events")
	require.Len(t, nodes, 1)
	assert.Equal(t, "EXPLAIN", nodes[0].Operation)
	assert.Contains(t, nodes[0].Detail, `"ok":1`)
}

func TestInferColumns(t *testing.T) {
	docs := []bson.M{
		{"_id": primitive.NewObjectID(), "name": "a", "age": int32(3)},
		{"_id": primitive.NewObjectID(), "name": nil},
	}

	cols := InferColumns(docs)

	require.Len(t, cols, 3)
	assert.Equal(t, "_id", cols[0].Name)
	assert.True(t, cols[0].IsPrimaryKey)
	assert.Equal(t, "objectID", cols[0].DataType)
	assert.False(t, cols[0].IsNullable)
	assert.Equal(t, "age", cols[1].Name)
	assert.True(t, cols[1].IsNullable)
	assert.Equal(t, "name", cols[2].Name)
	assert.Equal(t, "string", cols[2].DataType)
	assert.True(t, cols[2].IsNullable)
}

func TestAdapter_ExecuteMock(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("find strips denied operators and limits", func(mt *mtest.T) {
		a := NewWithClient(mt.Client, "shop", zerolog.Nop())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "shop.users", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: int32(1)}, {Key: "name", Value: "alice"}},
			bson.D{{Key: "_id", Value: int32(2)}, {Key: "age", Value: int32(40)}},
		))

		res, err := a.Execute(context.Background(), `db.users.find({"$where": "sleep(1)", "active": true})`)
		require.NoError(mt, err)

		assert.Equal(mt, []string{"_id", "age", "name"}, res.Columns)
		assert.Equal(mt, 2, res.RowCount)
		assert.Equal(mt, []core.Value{core.IntValue(1), core.Null(), core.StringValue("alice")}, res.Rows[0])

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		filter := started.Command.Lookup("filter").Document()
		_, err = filter.LookupErr("$where")
		assert.Error(mt, err, "$where must not reach the server")
		assert.Equal(mt, int64(200), started.Command.Lookup("limit").Int64())
	})

	mt.Run("aggregate appends limit", func(mt *mtest.T) {
		a := NewWithClient(mt.Client, "shop", zerolog.Nop())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "shop.orders", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "c1"}, {Key: "total", Value: 12.5}},
		))

		res, err := a.Execute(context.Background(), `db.orders.aggregate([{"$group": {"_id": "$customer", "total": {"$sum": "$amount"}}}])`)
		require.NoError(mt, err)
		assert.Equal(mt, []core.Value{core.StringValue("c1"), core.FloatValue(12.5)}, res.Rows[0])

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		stages, err := started.Command.Lookup("pipeline").Array().Values()
		require.NoError(mt, err)
		require.Len(mt, stages, 2)
		_, err = stages[1].Document().LookupErr("$limit")
		assert.NoError(mt, err)
	})

	mt.Run("server error", func(mt *mtest.T) {
		a := NewWithClient(mt.Client, "shop", zerolog.Nop())
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Message: "unknown operator: $bogus",
			Name:    "BadValue",
		}))

		_, err := a.Execute(context.Background(), `db.users.find({"a": {"$bogus": 1}})`)
		require.Error(mt, err)
		assert.Equal(mt, qerr.CodeQueryExecutionFailed, qerr.GetCode(err))
		assert.Contains(mt, qerr.GetMessage(err), "unknown operator")
	})

	mt.Run("bad command text", func(mt *mtest.T) {
		a := NewWithClient(mt.Client, "shop", zerolog.Nop())

		_, err := a.Execute(context.Background(), `SELECT * FROM users`)
		require.Error(mt, err)
		assert.Equal(mt, qerr.CodeInvalidRequest, qerr.GetCode(err))
	})
}
