// Package limit bounds the number of rows a read query may return.
//
// A statement is parsed with a generic SQL grammar. SELECT and UNION
// statements get their LIMIT clamped to core.MaxLimit, or a LIMIT of
// core.DefaultLimit appended when none is present. Other statements are
// returned untouched. When the text cannot be parsed as exactly one
// statement a textual fallback is used instead.
package limit

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
	"github.com/xwb1989/sqlparser"
)

// Result describes how a statement was rewritten.
type Result struct {
	SQL string
	// Fallback is true when the textual scan was used because parsing failed.
	Fallback bool
	// ParseErr is the StatementParseFailed error that triggered the fallback.
	ParseErr error
}

// Apply returns sql with its row limit enforced.
func Apply(sql string) string {
	return Rewrite(sql).SQL
}

// Rewrite enforces the row limit and reports which path was taken.
func Rewrite(sql string) Result {
	out, err := rewriteAST(sql)
	if err != nil {
		return Result{SQL: rewriteText(sql), Fallback: true, ParseErr: err}
	}
	return Result{SQL: out}
}

// Clamp returns min(n, core.MaxLimit), treating non-positive n as core.DefaultLimit.
func Clamp(n int64) int64 {
	if n <= 0 {
		return core.DefaultLimit
	}
	return min(n, core.MaxLimit)
}

func rewriteAST(sql string) (string, error) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return "", qerr.Wrap(err, qerr.CodeStatementParseFailed, "statement could not be parsed")
	}

	var l *sqlparser.Limit
	switch s := stmt.(type) {
	case *sqlparser.Select:
		l = s.Limit
	case *sqlparser.Union:
		l = s.Limit
	default:
		return sql, nil
	}

	// The parsed tree only decides what to change. The caller's text is
	// edited in place because the grammar re-serializes dialect syntax.
	if l == nil {
		return appendLimit(sql), nil
	}
	if !exceedsCap(l.Rowcount) {
		return sql, nil
	}
	return replaceRowcount(sql), nil
}

// exceedsCap reports whether a literal row count is above the cap.
// Non-literal row counts are left alone.
func exceedsCap(expr sqlparser.Expr) bool {
	val, ok := expr.(*sqlparser.SQLVal)
	if !ok || val.Type != sqlparser.IntVal {
		return false
	}
	n, err := strconv.ParseInt(string(val.Val), 10, 64)
	// Out-of-range literals can only be larger than the cap.
	return err != nil || n > core.MaxLimit
}

func appendLimit(sql string) string {
	return strings.TrimRight(sql, " \t\r\n;") + " LIMIT " + strconv.Itoa(core.DefaultLimit)
}

// trailingLimitRe matches LIMIT n, LIMIT off, n and LIMIT n OFFSET m.
var trailingLimitRe = regexp.MustCompile(`(?i)\blimit\s+(\d+)(?:\s*,\s*(\d+))?`)

// replaceRowcount rewrites the row count of the last LIMIT clause, which is
// the statement's own clause since LIMIT closes a SELECT.
func replaceRowcount(sql string) string {
	all := trailingLimitRe.FindAllStringSubmatchIndex(sql, -1)
	if len(all) == 0 {
		return sql
	}
	m := all[len(all)-1]
	start, end := m[2], m[3]
	if m[4] >= 0 {
		start, end = m[4], m[5]
	}
	return sql[:start] + strconv.Itoa(core.MaxLimit) + sql[end:]
}

// rewriteText is the best-effort path for text the parser rejects.
func rewriteText(sql string) string {
	const token = " limit "

	pos := strings.Index(strings.ToLower(sql), token)
	if pos < 0 {
		return appendLimit(sql)
	}

	start := pos + len(token)
	for start < len(sql) && isSpace(sql[start]) {
		start++
	}
	end := start
	for end < len(sql) && sql[end] >= '0' && sql[end] <= '9' {
		end++
	}

	if end == start {
		// LIMIT ALL is unbounded. Any other operand (a bind parameter or an
		// expression) is left alone rather than spliced into.
		if word := sql[start:]; len(word) >= 3 && strings.EqualFold(word[:3], "all") &&
			(len(word) == 3 || !isWordChar(word[3])) {
			return sql[:start] + strconv.Itoa(core.DefaultLimit) + sql[start+3:]
		}
		return sql
	}

	n, err := strconv.ParseInt(sql[start:end], 10, 64)
	if err != nil {
		n = core.DefaultLimit
	}
	n = min(n, core.MaxLimit)

	return sql[:start] + strconv.FormatInt(n, 10) + sql[end:]
}

func isWordChar(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
