package mysql

import (
	"context"
	"sort"

	"github.com/JonnyJiang123/smart-sql/pkg/adapter"
	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
)

const (
	listTablesSQL = `SELECT table_name, table_type
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		ORDER BY table_name`

	columnsSQL = `SELECT column_name, column_type, is_nullable, column_default, column_key
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`

	foreignKeysSQL = `SELECT constraint_name, column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND table_name = ? AND referenced_table_name IS NOT NULL
		ORDER BY constraint_name, ordinal_position`

	indexesSQL = `SELECT index_name, non_unique, GROUP_CONCAT(column_name ORDER BY seq_in_index) AS columns
		FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND table_name = ?
		GROUP BY index_name, non_unique`
)

// ListTables lists base tables and views in the current database.
func (a *Adapter) ListTables(ctx context.Context) ([]core.TableInfo, error) {
	recs, err := a.QueryRecords(ctx, qerr.CodeQueryExecutionFailed, listTablesSQL)
	if err != nil {
		return nil, err
	}
	tables := make([]core.TableInfo, 0, len(recs))
	for _, r := range recs {
		tables = append(tables, core.TableInfo{Name: r.Get("table_name"), Type: r.Get("table_type")})
	}
	return tables, nil
}

// GetTableSchema describes the columns and foreign keys of table.
func (a *Adapter) GetTableSchema(ctx context.Context, table string) (*core.TableSchema, error) {
	cols, err := a.QueryRecords(ctx, qerr.CodeQueryExecutionFailed, columnsSQL, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, qerr.Newf(qerr.CodeNotFound, "table %s not found", table)
	}

	schema := &core.TableSchema{
		Table:       core.TableInfo{Name: table, Type: "BASE TABLE"},
		Columns:     make([]core.ColumnInfo, 0, len(cols)),
		ForeignKeys: []core.ForeignKeyInfo{},
	}
	for _, r := range cols {
		schema.Columns = append(schema.Columns, core.ColumnInfo{
			Name:         r.Get("column_name"),
			DataType:     r.Get("column_type"),
			IsNullable:   r.Get("is_nullable") == "YES",
			DefaultValue: r.Get("column_default"),
			IsPrimaryKey: r.Get("column_key") == "PRI",
		})
	}

	fks, err := a.QueryRecords(ctx, qerr.CodeQueryExecutionFailed, foreignKeysSQL, table)
	if err != nil {
		return nil, err
	}
	for _, r := range fks {
		schema.ForeignKeys = append(schema.ForeignKeys, core.ForeignKeyInfo{
			ConstraintName:   r.Get("constraint_name"),
			ColumnName:       r.Get("column_name"),
			ReferencedTable:  r.Get("referenced_table_name"),
			ReferencedColumn: r.Get("referenced_column_name"),
		})
	}
	return schema, nil
}

// GetIndexes lists the indexes defined on table.
func (a *Adapter) GetIndexes(ctx context.Context, table string) ([]core.IndexInfo, error) {
	recs, err := a.QueryRecords(ctx, qerr.CodeQueryExecutionFailed, indexesSQL, table)
	if err != nil {
		return nil, err
	}
	out := make([]core.IndexInfo, 0, len(recs))
	for _, r := range recs {
		name := r.Get("index_name")
		out = append(out, core.IndexInfo{
			Name:      name,
			Table:     table,
			Columns:   adapter.SplitList(r.Get("columns")),
			IsUnique:  r.Get("non_unique") == "0",
			IsPrimary: name == "PRIMARY",
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
