package mongodb

import (
	"encoding/base64"
	"encoding/json"
	"sort"
	"time"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Normalize flattens documents into a table. The columns are the sorted
// union of every top-level field seen; a field a document lacks is null.
func Normalize(docs []bson.M) ([]string, [][]core.Value) {
	seen := make(map[string]struct{})
	for _, doc := range docs {
		for k := range doc {
			seen[k] = struct{}{}
		}
	}

	columns := make([]string, 0, len(seen))
	for k := range seen {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	rows := make([][]core.Value, 0, len(docs))
	for _, doc := range docs {
		row := make([]core.Value, len(columns))
		for i, c := range columns {
			v, ok := doc[c]
			if !ok {
				row[i] = core.Null()
				continue
			}
			row[i] = ToValue(v)
		}
		rows = append(rows, row)
	}
	return columns, rows
}

// ToValue converts a decoded BSON value into a generic value. Documents and
// arrays become their JSON text.
func ToValue(v any) core.Value {
	switch x := v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return core.Null()
	case bool:
		return core.BoolValue(x)
	case int32:
		return core.IntValue(int64(x))
	case int64:
		return core.IntValue(x)
	case int:
		return core.IntValue(int64(x))
	case float64:
		return core.FloatValue(x)
	case string:
		return core.StringValue(x)
	case primitive.ObjectID:
		return core.StringValue(x.Hex())
	case primitive.DateTime:
		return core.StringValue(x.Time().UTC().Format(time.RFC3339))
	case primitive.Decimal128:
		return core.StringValue(x.String())
	case primitive.Timestamp:
		return core.IntValue(int64(x.T))
	}

	b, err := json.Marshal(plain(v))
	if err != nil {
		return core.Null()
	}
	return core.StringValue(string(b))
}

// plain rewrites BSON containers and scalars into JSON-friendly values.
func plain(v any) any {
	switch x := v.(type) {
	case bson.M:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = plain(val)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = plain(val)
		}
		return out
	case primitive.ObjectID:
		return x.Hex()
	case primitive.DateTime:
		return x.Time().UTC().Format(time.RFC3339)
	case primitive.Decimal128:
		return x.String()
	case primitive.Binary:
		return base64.StdEncoding.EncodeToString(x.Data)
	case primitive.Regex:
		return "/" + x.Pattern + "/" + x.Options
	case primitive.Null, primitive.Undefined:
		return nil
	}
	return v
}
