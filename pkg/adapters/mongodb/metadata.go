package mongodb

import (
	"context"
	"sort"

	"github.com/JonnyJiang123/smart-sql/pkg/adapter"
	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// schemaSampleSize is how many documents GetTableSchema inspects.
const schemaSampleSize = 100

// ListTables lists collections and views.
func (a *Adapter) ListTables(ctx context.Context) ([]core.TableInfo, error) {
	if a.database == nil {
		return nil, adapter.ErrNotConnected
	}
	specs, err := a.database.ListCollectionSpecifications(ctx, bson.D{})
	if err != nil {
		return nil, qerr.Wrapf(err, qerr.CodeQueryExecutionFailed, "listCollections failed: %v", err)
	}

	tables := make([]core.TableInfo, 0, len(specs))
	for _, s := range specs {
		tables = append(tables, core.TableInfo{Name: s.Name, Type: s.Type})
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables, nil
}

// GetTableSchema infers a schema from a sample of the collection.
func (a *Adapter) GetTableSchema(ctx context.Context, table string) (*core.TableSchema, error) {
	if a.database == nil {
		return nil, adapter.ErrNotConnected
	}

	cursor, err := a.database.Collection(table).Find(ctx, bson.D{}, options.Find().SetLimit(schemaSampleSize))
	if err != nil {
		return nil, qerr.Wrapf(err, qerr.CodeQueryExecutionFailed, "sampling %s failed: %v", table, err)
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, qerr.Wrapf(err, qerr.CodeQueryExecutionFailed, "sampling %s failed: %v", table, err)
	}
	if len(docs) == 0 {
		return nil, qerr.Newf(qerr.CodeNotFound, "collection %s not found or empty", table)
	}

	return &core.TableSchema{
		Table:       core.TableInfo{Name: table, Type: "collection"},
		Columns:     InferColumns(docs),
		ForeignKeys: []core.ForeignKeyInfo{},
	}, nil
}

// InferColumns derives one column per field seen. A field is nullable when
// some sampled document lacks it or holds null.
func InferColumns(docs []bson.M) []core.ColumnInfo {
	seen := make(map[string]string)
	present := make(map[string]int)
	nulls := make(map[string]bool)

	for _, doc := range docs {
		for k, v := range doc {
			present[k]++
			if v == nil {
				nulls[k] = true
				continue
			}
			if _, ok := seen[k]; !ok || seen[k] == "null" {
				seen[k] = typeName(v)
			}
		}
	}
	columns := make([]string, 0, len(present))
	for k := range present {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	out := make([]core.ColumnInfo, 0, len(columns))
	for _, c := range columns {
		dataType := seen[c]
		if dataType == "" {
			dataType = "null"
		}
		out = append(out, core.ColumnInfo{
			Name:         c,
			DataType:     dataType,
			IsNullable:   nulls[c] || present[c] < len(docs),
			IsPrimaryKey: c == "_id",
		})
	}
	return out
}

func typeName(v any) string {
	raw, err := bson.Marshal(bson.D{{Key: "v", Value: v}})
	if err != nil {
		return "unknown"
	}
	return bson.Raw(raw).Lookup("v").Type.String()
}

type indexSpec struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique bool   `bson:"unique"`
}

// GetIndexes lists the collection's indexes in key order.
func (a *Adapter) GetIndexes(ctx context.Context, table string) ([]core.IndexInfo, error) {
	if a.database == nil {
		return nil, adapter.ErrNotConnected
	}

	cursor, err := a.database.Collection(table).Indexes().List(ctx)
	if err != nil {
		return nil, qerr.Wrapf(err, qerr.CodeQueryExecutionFailed, "listIndexes failed: %v", err)
	}
	var specs []indexSpec
	if err := cursor.All(ctx, &specs); err != nil {
		return nil, qerr.Wrapf(err, qerr.CodeQueryExecutionFailed, "listIndexes failed: %v", err)
	}

	out := make([]core.IndexInfo, 0, len(specs))
	for _, s := range specs {
		cols := make([]string, 0, len(s.Key))
		for _, k := range s.Key {
			cols = append(cols, k.Key)
		}
		primary := s.Name == "_id_"
		out = append(out, core.IndexInfo{
			Name:      s.Name,
			Table:     table,
			Columns:   cols,
			IsUnique:  s.Unique || primary,
			IsPrimary: primary,
		})
	}
	return out, nil
}
