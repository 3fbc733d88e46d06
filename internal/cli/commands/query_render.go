package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Output formats.
const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "md"
)

// renderTabular writes header and rows in the requested format. JSON
// output encodes raw instead of the rows.
func renderTabular(w io.Writer, format string, header table.Row, rows []table.Row, raw any) error {
	if format == FormatJSON {
		return renderJSON(w, raw)
	}

	if format != FormatCSV && len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	t.AppendRows(rows)

	switch format {
	case FormatCSV:
		t.RenderCSV()
	case FormatMarkdown, "markdown":
		t.RenderMarkdown()
	default:
		t.Render()
	}
	return nil
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderResult writes a query result followed, for the table format, by
// a row count, the page position and any performance warnings.
func renderResult(w io.Writer, res *core.QueryResult, format string) error {
	header := make(table.Row, len(res.Columns))
	for i, col := range res.Columns {
		header[i] = col
	}
	rows := make([]table.Row, len(res.Rows))
	for i, r := range res.Rows {
		row := make(table.Row, len(r))
		for j, v := range r {
			row[j] = v.String()
		}
		rows[i] = row
	}

	if err := renderTabular(w, format, header, rows, res); err != nil {
		return err
	}
	if format != FormatTable {
		return nil
	}

	if len(rows) > 0 {
		_, _ = fmt.Fprintf(w, "(%d rows, %dms)\n", res.RowCount, res.ExecutionTimeMs)
	}
	if res.Page != nil && res.TotalRows != nil && res.PageSize != nil {
		more := ""
		if res.HasMore {
			more = ", more available"
		}
		_, _ = fmt.Fprintf(w, "page %d (size %d) of %d rows%s\n", *res.Page, *res.PageSize, *res.TotalRows, more)
	}
	if res.Performance != nil {
		for _, warning := range res.Performance.Warnings {
			_, _ = fmt.Fprintf(w, "warning: %s\n", warning)
		}
	}
	return nil
}

func renderPlan(w io.Writer, plan *core.ExecutionPlan, format string) error {
	rows := make([]table.Row, len(plan.Plan))
	for i, n := range plan.Plan {
		rows[i] = table.Row{n.ID, n.Operation, n.Table, n.Index, optFloat(n.Cost), optInt(n.Rows), n.Detail}
	}
	if err := renderTabular(w, format, table.Row{"ID", "Operation", "Table", "Index", "Cost", "Rows", "Detail"}, rows, plan); err != nil {
		return err
	}
	if format != FormatTable {
		return nil
	}
	if plan.AIOptimizationAdvice != "" {
		_, _ = fmt.Fprintf(w, "\nAdvice: %s\n", plan.AIOptimizationAdvice)
	}
	if plan.AIOptimizedSQL != "" {
		_, _ = fmt.Fprintf(w, "Suggested SQL: %s\n", plan.AIOptimizedSQL)
	}
	return nil
}

func renderTables(w io.Writer, tables []core.TableInfo, format string) error {
	rows := make([]table.Row, len(tables))
	for i, t := range tables {
		rows[i] = table.Row{t.Name, t.Schema, t.Type}
	}
	return renderTabular(w, format, table.Row{"Name", "Schema", "Type"}, rows, tables)
}

func renderSchema(w io.Writer, schema *core.TableSchema, format string) error {
	if format == FormatJSON {
		return renderJSON(w, schema)
	}

	_, _ = fmt.Fprintf(w, "Table: %s\n", schema.Table.Name)
	rows := make([]table.Row, len(schema.Columns))
	for i, c := range schema.Columns {
		nullable := "NO"
		if c.IsNullable {
			nullable = "YES"
		}
		def := c.DefaultValue
		if c.IsPrimaryKey {
			if def != "" {
				def += " "
			}
			def += "(primary key)"
		}
		rows[i] = table.Row{c.Name, c.DataType, nullable, def}
	}
	if err := renderTabular(w, format, table.Row{"Column", "Type", "Nullable", "Default"}, rows, schema); err != nil {
		return err
	}

	if len(schema.ForeignKeys) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "Foreign keys:")
		for _, fk := range schema.ForeignKeys {
			_, _ = fmt.Fprintf(w, "  %s -> %s.%s\n", fk.ColumnName, fk.ReferencedTable, fk.ReferencedColumn)
		}
	}
	return nil
}

func renderIndexes(w io.Writer, indexes []core.IndexInfo, format string) error {
	rows := make([]table.Row, len(indexes))
	for i, idx := range indexes {
		rows[i] = table.Row{idx.Name, idx.Table, fmt.Sprint(idx.Columns), idx.IsUnique, idx.IsPrimary}
	}
	return renderTabular(w, format, table.Row{"Name", "Table", "Columns", "Unique", "Primary"}, rows, indexes)
}

func renderConnections(w io.Writer, conns []core.Connection, format string) error {
	rows := make([]table.Row, len(conns))
	for i, c := range conns {
		target := c.FilePath
		if target == "" {
			target = c.Host
			if c.Port != 0 {
				target += ":" + strconv.Itoa(c.Port)
			}
			if c.Database != "" {
				target += "/" + c.Database
			}
		}
		active := ""
		if c.Active {
			active = "*"
		}
		rows[i] = table.Row{c.ID, c.Name, c.Kind, target, c.Environment, active}
	}
	return renderTabular(w, format, table.Row{"ID", "Name", "Type", "Target", "Environment", "Active"}, rows, conns)
}

func renderHistory(w io.Writer, entries []core.QueryHistory, format string) error {
	rows := make([]table.Row, len(entries))
	for i, h := range entries {
		conn := ""
		if h.ConnectionID != nil {
			conn = strconv.FormatInt(*h.ConnectionID, 10)
		}
		status := "ok"
		if !h.Success {
			status = h.ErrorMessage
		}
		rows[i] = table.Row{
			h.ID,
			time.Unix(h.ExecutedAt, 0).Format(time.DateTime),
			conn,
			h.ExecutionTimeMs,
			h.RowCount,
			status,
			h.SQLText,
		}
	}
	return renderTabular(w, format, table.Row{"ID", "Executed", "Conn", "ms", "Rows", "Status", "SQL"}, rows, entries)
}

func optFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', 2, 64)
}

func optInt(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}
