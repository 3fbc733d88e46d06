package limit

import (
	"errors"
	"strings"
	"testing"

	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_SelectWithoutLimit(t *testing.T) {
	tests := []string{
		"SELECT * FROM users",
		"select id, name from products where category = 'books'",
		"SELECT a FROM t1 UNION SELECT a FROM t2",
		"SELECT category, COUNT(*) FROM orders GROUP BY category ORDER BY category",
		"SELECT * FROM users;",
	}

	for _, sql := range tests {
		t.Run(sql, func(t *testing.T) {
			res := Rewrite(sql)
			assert.False(t, res.Fallback)
			assert.Contains(t, strings.ToUpper(res.SQL), "LIMIT 200")
		})
	}
}

func TestApply_SelectWithLimit(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{"SELECT * FROM users LIMIT 10", "LIMIT 10"},
		{"SELECT * FROM users LIMIT 1500", "LIMIT 1500"},
		{"SELECT * FROM users LIMIT 1501", "LIMIT 1500"},
		{"SELECT * FROM users LIMIT 5000", "LIMIT 1500"},
		{"SELECT * FROM users LIMIT 20, 99999", "LIMIT 20, 1500"},
		{"SELECT * FROM users LIMIT 99999999999999999999999", "LIMIT 1500"},
		{"SELECT a FROM t1 UNION SELECT a FROM t2 LIMIT 3000", "LIMIT 1500"},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			res := Rewrite(tt.sql)
			assert.False(t, res.Fallback)
			assert.Contains(t, strings.ToUpper(res.SQL), tt.want)
		})
	}
}

func TestApply_LimitWithinBoundIsUntouched(t *testing.T) {
	sql := "SELECT id FROM users WHERE active = 1 LIMIT 25"
	assert.Equal(t, sql, Apply(sql))
}

func TestApply_NonSelectUnchanged(t *testing.T) {
	tests := []string{
		"INSERT INTO users (id, name) VALUES (1, 'a')",
		"UPDATE users SET name = 'b' WHERE id = 1",
		"DELETE FROM users WHERE id = 1",
		"CREATE TABLE t (id INT)",
		"SHOW TABLES",
	}

	for _, sql := range tests {
		t.Run(sql, func(t *testing.T) {
			assert.Equal(t, sql, Apply(sql))
		})
	}
}

func TestRewrite_Fallback(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "no limit appends default",
			sql:  "SELECT id::text FROM users",
			want: "SELECT id::text FROM users LIMIT 200",
		},
		{
			name: "trailing semicolon dropped before append",
			sql:  "SELECT id::text FROM users;",
			want: "SELECT id::text FROM users LIMIT 200",
		},
		{
			name: "limit clamped in place",
			sql:  "SELECT id::text FROM users limit 9000",
			want: "SELECT id::text FROM users limit 1500",
		},
		{
			name: "small limit kept",
			sql:  "SELECT id::text FROM users LIMIT   12 OFFSET 4",
			want: "SELECT id::text FROM users LIMIT   12 OFFSET 4",
		},
		{
			name: "limit all becomes default",
			sql:  "SELECT id::text FROM users LIMIT ALL",
			want: "SELECT id::text FROM users LIMIT 200",
		},
		{
			name: "limit all with offset",
			sql:  "SELECT id::text FROM users LIMIT all OFFSET 10",
			want: "SELECT id::text FROM users LIMIT 200 OFFSET 10",
		},
		{
			name: "bind parameter left alone",
			sql:  "SELECT id::text FROM users LIMIT $1",
			want: "SELECT id::text FROM users LIMIT $1",
		},
		{
			name: "word starting with all is not a keyword",
			sql:  "SELECT id::text FROM users LIMIT allowance",
			want: "SELECT id::text FROM users LIMIT allowance",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Rewrite(tt.sql)
			require.True(t, res.Fallback)
			assert.True(t, errors.Is(res.ParseErr, qerr.ErrStatementParseFailed))
			assert.Equal(t, tt.want, res.SQL)
		})
	}
}

func TestRewrite_MultipleStatementsUseFallback(t *testing.T) {
	res := Rewrite("SELECT 1; SELECT 2")
	assert.True(t, res.Fallback)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, int64(200), Clamp(0))
	assert.Equal(t, int64(200), Clamp(-4))
	assert.Equal(t, int64(100), Clamp(100))
	assert.Equal(t, int64(1500), Clamp(5000))
}

func TestRewrite_PreservesOriginalText(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{`SELECT 1`, `SELECT 1 LIMIT 200`},
		{`SELECT "name" FROM users`, `SELECT "name" FROM users LIMIT 200`},
		{"SELECT `order` FROM sales\n", "SELECT `order` FROM sales LIMIT 200"},
		{`SELECT id FROM t WHERE id IN (SELECT id FROM u LIMIT 5)`, `SELECT id FROM t WHERE id IN (SELECT id FROM u LIMIT 5) LIMIT 200`},
		{`SELECT id FROM t WHERE id IN (SELECT id FROM u LIMIT 5) limit 9000`, `SELECT id FROM t WHERE id IN (SELECT id FROM u LIMIT 5) limit 1500`},
		{`SELECT id FROM t LIMIT 4000 OFFSET 10`, `SELECT id FROM t LIMIT 1500 OFFSET 10`},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			res := Rewrite(tt.sql)
			assert.False(t, res.Fallback)
			assert.Equal(t, tt.want, res.SQL)
		})
	}
}
