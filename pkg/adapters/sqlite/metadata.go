package sqlite

import (
	"context"
	"fmt"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
)

const (
	listTablesSQL = `SELECT name, type FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

	columnsSQL = `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?)`

	foreignKeysSQL = `SELECT "table", "from", "to" FROM pragma_foreign_key_list(?)`

	indexListSQL = `SELECT name, "unique", origin FROM pragma_index_list(?) ORDER BY name`

	indexInfoSQL = `SELECT name FROM pragma_index_info(?) ORDER BY seqno`
)

// ListTables lists tables and views, skipping SQLite's internal tables.
func (a *Adapter) ListTables(ctx context.Context) ([]core.TableInfo, error) {
	recs, err := a.QueryRecords(ctx, qerr.CodeQueryExecutionFailed, listTablesSQL)
	if err != nil {
		return nil, err
	}
	tables := make([]core.TableInfo, 0, len(recs))
	for _, r := range recs {
		tables = append(tables, core.TableInfo{Name: r.Get("name"), Type: r.Get("type")})
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
		Table:       core.TableInfo{Name: table, Type: "table"},
		Columns:     make([]core.ColumnInfo, 0, len(cols)),
		ForeignKeys: []core.ForeignKeyInfo{},
	}
	for _, r := range cols {
		notNull, _ := r.Int("notnull")
		pk, _ := r.Int("pk")
		schema.Columns = append(schema.Columns, core.ColumnInfo{
			Name:         r.Get("name"),
			DataType:     r.Get("type"),
			IsNullable:   notNull == 0,
			DefaultValue: r.Get("dflt_value"),
			IsPrimaryKey: pk > 0,
		})
	}

	fks, err := a.QueryRecords(ctx, qerr.CodeQueryExecutionFailed, foreignKeysSQL, table)
	if err != nil {
		return nil, err
	}
	for _, r := range fks {
		from, ref := r.Get("from"), r.Get("table")
		schema.ForeignKeys = append(schema.ForeignKeys, core.ForeignKeyInfo{
			ConstraintName:   fmt.Sprintf("fk_%s_%s_%s", table, from, ref),
			ColumnName:       from,
			ReferencedTable:  ref,
			ReferencedColumn: r.Get("to"),
		})
	}
	return schema, nil
}

// GetIndexes lists the indexes defined on table with their columns.
func (a *Adapter) GetIndexes(ctx context.Context, table string) ([]core.IndexInfo, error) {
	list, err := a.QueryRecords(ctx, qerr.CodeQueryExecutionFailed, indexListSQL, table)
	if err != nil {
		return nil, err
	}

	out := make([]core.IndexInfo, 0, len(list))
	for _, r := range list {
		name := r.Get("name")
		columns, err := a.QueryStrings(ctx, indexInfoSQL, name)
		if err != nil {
			return nil, err
		}
		if columns == nil {
			columns = []string{}
		}
		unique, _ := r.Int("unique")
		out = append(out, core.IndexInfo{
			Name:      name,
			Table:     table,
			Columns:   columns,
			IsUnique:  unique == 1,
			IsPrimary: r.Get("origin") == "pk",
		})
	}
	return out, nil
}
