package docfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestFilter_RemovesDeniedKeys(t *testing.T) {
	in := bson.D{
		{Key: "$where", Value: "this.a > 1"},
		{Key: "age", Value: bson.D{{Key: "$gt", Value: int32(18)}}},
	}

	got := Filter(in)

	assert.Equal(t, bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: int32(18)}}}}, got)
	assert.Len(t, in, 2, "input must not be mutated")
}

func TestFilter_Nested(t *testing.T) {
	in := bson.D{
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "$where", Value: "sleep(1000)"}, {Key: "name", Value: "a"}},
			bson.M{"$function": "x", "status": "ok"},
		}},
	}

	got := Filter(in)

	require.Len(t, got, 1)
	arr, ok := got[0].Value.(bson.A)
	require.True(t, ok)
	assert.Equal(t, bson.D{{Key: "name", Value: "a"}}, arr[0])
	assert.Equal(t, bson.M{"status": "ok"}, arr[1])
	assert.False(t, ContainsDangerous(got))
}

func TestFilter_Nil(t *testing.T) {
	assert.Nil(t, Filter(nil))
}

func TestContainsDangerous(t *testing.T) {
	tests := []struct {
		name string
		doc  bson.D
		want bool
	}{
		{"clean", bson.D{{Key: "a", Value: 1}}, false},
		{"top level", bson.D{{Key: "$eval", Value: "x"}}, true},
		{"nested doc", bson.D{{Key: "a", Value: bson.D{{Key: "$out", Value: "c"}}}}, true},
		{"in array", bson.D{{Key: "a", Value: bson.A{bson.M{"$merge": "c"}}}}, true},
		{"plain slice", bson.D{{Key: "a", Value: []any{bson.D{{Key: "$mapReduce", Value: 1}}}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsDangerous(tt.doc))
		})
	}
}

func TestFilterPipeline_AppendsDefaultLimit(t *testing.T) {
	stages := []bson.D{
		{{Key: "$match", Value: bson.D{{Key: "status", Value: "paid"}}}},
	}

	got := FilterPipeline(stages)

	require.Len(t, got, 2)
	assert.Equal(t, bson.D{{Key: "$limit", Value: int64(200)}}, got[1])
}

func TestFilterPipeline_ClampsLimit(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  int64
	}{
		{"int32 over", int32(5000), 1500},
		{"int64 over", int64(5000), 1500},
		{"double over", float64(5000), 1500},
		{"within bound", int32(100), 100},
		{"non numeric", "ten", 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterPipeline([]bson.D{{{Key: "$limit", Value: tt.value}}})
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0][0].Value)
		})
	}
}

func TestFilterPipeline_DropsDeniedStages(t *testing.T) {
	stages := []bson.D{
		{{Key: "$match", Value: bson.D{{Key: "$where", Value: "1"}}}},
		{{Key: "$out", Value: "stolen"}},
		{{Key: "$limit", Value: int32(10)}},
	}

	got := FilterPipeline(stages)

	require.Len(t, got, 2)
	assert.Equal(t, bson.D{{Key: "$match", Value: bson.D{}}}, got[0])
	assert.Equal(t, bson.D{{Key: "$limit", Value: int64(10)}}, got[1])
}
