package postgres

import (
	"context"

	"github.com/JonnyJiang123/smart-sql/pkg/adapter"
	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
)

const defaultSchema = "public"

const (
	listTablesSQL = `SELECT table_schema, table_name, table_type
		FROM information_schema.tables
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name`

	columnsSQL = `SELECT c.column_name, c.data_type, c.is_nullable, c.column_default,
			EXISTS (
				SELECT 1
				FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage k
					ON k.constraint_name = tc.constraint_name AND k.table_schema = tc.table_schema
				WHERE tc.constraint_type = 'PRIMARY KEY'
					AND tc.table_schema = c.table_schema
					AND tc.table_name = c.table_name
					AND k.column_name = c.column_name
			) AS is_primary_key
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`

	foreignKeysSQL = `SELECT tc.constraint_name, kcu.column_name,
			ccu.table_name AS referenced_table, ccu.column_name AS referenced_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1 AND tc.table_name = $2
		ORDER BY tc.constraint_name`

	indexesSQL = `SELECT i.relname AS index_name,
			string_agg(a.attname, ',' ORDER BY array_position(ix.indkey, a.attnum)) AS columns,
			ix.indisunique AS is_unique,
			ix.indisprimary AS is_primary
		FROM pg_class t
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE n.nspname = $1 AND t.relname = $2
		GROUP BY i.relname, ix.indisunique, ix.indisprimary
		ORDER BY i.relname`
)

// ListTables lists tables and views outside the system schemas.
func (a *Adapter) ListTables(ctx context.Context) ([]core.TableInfo, error) {
	recs, err := a.QueryRecords(ctx, qerr.CodeQueryExecutionFailed, listTablesSQL)
	if err != nil {
		return nil, err
	}
	tables := make([]core.TableInfo, 0, len(recs))
	for _, r := range recs {
		tables = append(tables, core.TableInfo{
			Name:   r.Get("table_name"),
			Schema: r.Get("table_schema"),
			Type:   r.Get("table_type"),
		})
	}
	return tables, nil
}

// GetTableSchema describes table, which may be schema-qualified.
func (a *Adapter) GetTableSchema(ctx context.Context, table string) (*core.TableSchema, error) {
	schemaName, name := adapter.ParseQualifiedName(table, defaultSchema)

	cols, err := a.QueryRecords(ctx, qerr.CodeQueryExecutionFailed, columnsSQL, schemaName, name)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, qerr.Newf(qerr.CodeNotFound, "table %s not found", table)
	}

	schema := &core.TableSchema{
		Table:       core.TableInfo{Name: name, Schema: schemaName, Type: "BASE TABLE"},
		Columns:     make([]core.ColumnInfo, 0, len(cols)),
		ForeignKeys: []core.ForeignKeyInfo{},
	}
	for _, r := range cols {
		schema.Columns = append(schema.Columns, core.ColumnInfo{
			Name:         r.Get("column_name"),
			DataType:     r.Get("data_type"),
			IsNullable:   r.Get("is_nullable") == "YES",
			DefaultValue: r.Get("column_default"),
			IsPrimaryKey: r.Get("is_primary_key") == "true",
		})
	}

	fks, err := a.QueryRecords(ctx, qerr.CodeQueryExecutionFailed, foreignKeysSQL, schemaName, name)
	if err != nil {
		return nil, err
	}
	for _, r := range fks {
		schema.ForeignKeys = append(schema.ForeignKeys, core.ForeignKeyInfo{
			ConstraintName:   r.Get("constraint_name"),
			ColumnName:       r.Get("column_name"),
			ReferencedTable:  r.Get("referenced_table"),
			ReferencedColumn: r.Get("referenced_column"),
		})
	}
	return schema, nil
}

// GetIndexes lists the indexes defined on table.
func (a *Adapter) GetIndexes(ctx context.Context, table string) ([]core.IndexInfo, error) {
	schemaName, name := adapter.ParseQualifiedName(table, defaultSchema)

	recs, err := a.QueryRecords(ctx, qerr.CodeQueryExecutionFailed, indexesSQL, schemaName, name)
	if err != nil {
		return nil, err
	}
	out := make([]core.IndexInfo, 0, len(recs))
	for _, r := range recs {
		out = append(out, core.IndexInfo{
			Name:      r.Get("index_name"),
			Table:     name,
			Columns:   adapter.SplitList(r.Get("columns")),
			IsUnique:  r.Get("is_unique") == "true",
			IsPrimary: r.Get("is_primary") == "true",
		})
	}
	return out, nil
}
