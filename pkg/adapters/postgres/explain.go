package postgres

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
)

var (
	costRe      = regexp.MustCompile(`\(cost=([\d.]+)\.\.([\d.]+) rows=(\d+) width=(\d+)\)`)
	onTableRe   = regexp.MustCompile(`\bon (\S+)`)
	usingIdxRe  = regexp.MustCompile(`\busing (\S+)`)
	conditionRe = regexp.MustCompile(`^(Filter|Index Cond|Hash Cond|Merge Cond|Join Filter|Recheck Cond|Sort Key|Group Key):\s*(.*)$`)
)

// Explain runs EXPLAIN and maps every line of the text plan to one node.
func (a *Adapter) Explain(ctx context.Context, query string) (*core.ExecutionPlan, error) {
	lines, err := a.QueryStrings(ctx, "EXPLAIN "+query)
	if err != nil {
		return nil, qerr.Wrapf(err, qerr.CodeExplainFailed, "explain failed: %v", qerr.GetMessage(err))
	}

	nodes := make([]core.PlanNode, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		nodes = append(nodes, parsePlanLine(line))
	}
	return core.NewExecutionPlan(nodes), nil
}

func parsePlanLine(line string) core.PlanNode {
	text := strings.TrimSpace(line)
	text = strings.TrimSpace(strings.TrimPrefix(text, "->"))
	node := core.PlanNode{Detail: text}

	if m := conditionRe.FindStringSubmatch(text); m != nil {
		node.Operation = m[1]
		node.Filter = m[2]
		return node
	}

	head := text
	if m := costRe.FindStringSubmatchIndex(text); m != nil {
		head = strings.TrimSpace(text[:m[0]])
		sub := costRe.FindStringSubmatch(text)
		if cost, err := strconv.ParseFloat(sub[2], 64); err == nil {
			node.Cost = &cost
		}
		if rows, err := strconv.ParseInt(sub[3], 10, 64); err == nil {
			node.Rows = &rows
		}
		if width, err := strconv.ParseInt(sub[4], 10, 64); err == nil {
			node.Width = &width
		}
	}

	op := head
	if i := strings.Index(op, " using "); i >= 0 {
		op = op[:i]
	}
	if i := strings.Index(op, " on "); i >= 0 {
		op = op[:i]
	}
	node.Operation = op

	if m := onTableRe.FindStringSubmatch(head); m != nil {
		node.Table = m[1]
	}
	if m := usingIdxRe.FindStringSubmatch(head); m != nil {
		node.Index = m[1]
	}
	if strings.Contains(op, "Join") || op == "Nested Loop" {
		node.JoinType = op
	}
	return node
}
