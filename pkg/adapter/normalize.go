package adapter

import (
	"database/sql"
	"strings"
	"time"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
	"github.com/spf13/cast"
)

// Decoder converts one scanned cell into a generic value. dbType is the
// driver's declared column type name, upper-cased, and may be empty.
type Decoder func(raw any, dbType string) core.Value

// ScanRows drains rows into column names and generic values.
// Every returned row holds exactly len(columns) values.
func ScanRows(rows *sql.Rows, decode Decoder) ([]string, [][]core.Value, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	types := make([]string, len(columns))
	if colTypes, err := rows.ColumnTypes(); err == nil {
		for i, ct := range colTypes {
			types[i] = strings.ToUpper(ct.DatabaseTypeName())
		}
	}

	data := make([][]core.Value, 0)
	cells := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range cells {
		ptrs[i] = &cells[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make([]core.Value, len(columns))
		for i, raw := range cells {
			row[i] = decode(raw, types[i])
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	if columns == nil {
		columns = []string{}
	}
	return columns, data, nil
}

// DecodeTyped picks the conversion from the declared column type and falls
// back to string decoding for unrecognized types.
func DecodeTyped(raw any, dbType string) core.Value {
	if raw == nil {
		return core.Null()
	}

	switch typeClass(dbType) {
	case classBool:
		if b, err := cast.ToBoolE(unwrapBytes(raw)); err == nil {
			return core.BoolValue(b)
		}
	case classInt:
		if i, err := cast.ToInt64E(unwrapBytes(raw)); err == nil {
			return core.IntValue(i)
		}
	case classFloat:
		if f, err := cast.ToFloat64E(unwrapBytes(raw)); err == nil {
			return core.FloatValue(f)
		}
	}

	// Undeclared types (SQLite expressions, for instance) keep the driver's Go type.
	if dbType == "" {
		return decodeByGoType(raw)
	}
	return decodeString(raw)
}

// DecodeFallback tries string, then 64-bit integer, then double, then null,
// taking the first conversion that succeeds. It ignores the declared type.
func DecodeFallback(raw any, _ string) core.Value {
	switch v := raw.(type) {
	case nil:
		return core.Null()
	case []byte:
		return core.StringValue(string(v))
	case string:
		return core.StringValue(v)
	case time.Time:
		return core.StringValue(v.Format(time.RFC3339))
	case float32, float64:
		return core.FloatValue(cast.ToFloat64(v))
	}
	if i, err := cast.ToInt64E(raw); err == nil {
		return core.IntValue(i)
	}
	if f, err := cast.ToFloat64E(raw); err == nil {
		return core.FloatValue(f)
	}
	return core.Null()
}

type valueClass int

const (
	classString valueClass = iota
	classBool
	classInt
	classFloat
)

func typeClass(dbType string) valueClass {
	switch dbType {
	case "BOOL", "BOOLEAN":
		return classBool
	case "INT", "INT2", "INT4", "INT8", "INTEGER", "SMALLINT", "BIGINT", "TINYINT",
		"MEDIUMINT", "SERIAL", "BIGSERIAL", "SMALLSERIAL":
		return classInt
	case "FLOAT", "FLOAT4", "FLOAT8", "REAL", "DOUBLE", "DOUBLE PRECISION",
		"NUMERIC", "DECIMAL":
		return classFloat
	}
	return classString
}

func decodeByGoType(raw any) core.Value {
	switch v := raw.(type) {
	case bool:
		return core.BoolValue(v)
	case int64:
		return core.IntValue(v)
	case int32:
		return core.IntValue(int64(v))
	case int:
		return core.IntValue(int64(v))
	case float64:
		return core.FloatValue(v)
	case float32:
		return core.FloatValue(float64(v))
	}
	return decodeString(raw)
}

func decodeString(raw any) core.Value {
	switch v := raw.(type) {
	case []byte:
		return core.StringValue(string(v))
	case time.Time:
		return core.StringValue(v.Format(time.RFC3339))
	}
	return core.StringValue(cast.ToString(raw))
}

func unwrapBytes(raw any) any {
	if b, ok := raw.([]byte); ok {
		return string(b)
	}
	return raw
}
