package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_MarshalJSON(t *testing.T) {
	row := []Value{Null(), BoolValue(true), IntValue(42), FloatValue(1.5), StringValue("x")}

	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `[null, true, 42, 1.5, "x"]`, string(data))
}

func TestValue_UnmarshalJSON(t *testing.T) {
	var row []Value
	require.NoError(t, json.Unmarshal([]byte(`[null, false, 7, 2.25, "abc"]`), &row))
	require.Len(t, row, 5)

	assert.True(t, row[0].IsNull())
	b, ok := row[1].Bool()
	assert.True(t, ok)
	assert.False(t, b)
	i, ok := row[2].Int()
	assert.True(t, ok)
	assert.Equal(t, int64(7), i)
	f, ok := row[3].Float()
	assert.True(t, ok)
	assert.InDelta(t, 2.25, f, 1e-9)
	s, ok := row[4].Str()
	assert.True(t, ok)
	assert.Equal(t, "abc", s)

	var v Value
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &v))
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "NULL", Null().String())
	assert.Equal(t, "12", IntValue(12).String())
	assert.Equal(t, "0.5", FloatValue(0.5).String())
	assert.Equal(t, "true", BoolValue(true).String())
	assert.Equal(t, "int", IntValue(1).Kind().String())
	assert.Nil(t, Value{}.Interface())
}
