package adapter

import (
	"context"
	"strings"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
	"github.com/spf13/cast"
)

// Record is one metadata or plan row keyed by lower-cased column name.
type Record struct {
	Columns []string
	Values  map[string]core.Value
}

// Get returns the named cell rendered as text, or "" for null or missing.
func (r Record) Get(name string) string {
	v, ok := r.Values[strings.ToLower(name)]
	if !ok || v.IsNull() {
		return ""
	}
	return v.String()
}

// Int returns the named cell as an integer, parsing text cells.
func (r Record) Int(name string) (int64, bool) {
	v, ok := r.Values[strings.ToLower(name)]
	if !ok {
		return 0, false
	}
	if v.IsNull() {
		return 0, false
	}
	i, err := cast.ToInt64E(v.Interface())
	if err != nil {
		return 0, false
	}
	return i, true
}

// Detail renders the non-empty cells as "col=value" pairs in column order.
func (r Record) Detail() string {
	parts := make([]string, 0, len(r.Columns))
	for _, c := range r.Columns {
		if s := r.Get(c); s != "" {
			parts = append(parts, c+"="+s)
		}
	}
	return strings.Join(parts, " ")
}

// QueryRecords runs a metadata query and returns its rows as records.
// code selects the error code reported on failure.
func (b *BaseSQLAdapter) QueryRecords(ctx context.Context, code, query string, args ...any) ([]Record, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}

	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, qerr.Wrapf(err, code, "metadata query failed: %v", err)
	}
	defer func() { _ = rows.Close() }()

	decode := b.Decode
	if decode == nil {
		decode = DecodeTyped
	}
	columns, data, err := ScanRows(rows, decode)
	if err != nil {
		return nil, qerr.Wrapf(err, code, "metadata query failed: %v", err)
	}

	records := make([]Record, 0, len(data))
	for _, row := range data {
		rec := Record{Columns: columns, Values: make(map[string]core.Value, len(columns))}
		for i, c := range columns {
			rec.Values[strings.ToLower(c)] = row[i]
		}
		records = append(records, rec)
	}
	return records, nil
}

// ParseQualifiedName splits a table reference into schema and name.
// Uses defaultSchema if not specified.
func ParseQualifiedName(table, defaultSchema string) (schema, name string) {
	if parts := strings.Split(table, "."); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return defaultSchema, table
}

// SplitList splits a comma-separated column list, dropping empty entries.
func SplitList(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
