package mongodb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JonnyJiang123/smart-sql/pkg/adapter"
	"github.com/JonnyJiang123/smart-sql/pkg/core"
	"github.com/JonnyJiang123/smart-sql/pkg/docfilter"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
	"github.com/JonnyJiang123/smart-sql/pkg/shell"
	"go.mongodb.org/mongo-driver/bson"
)

// Explain runs the explain command with executionStats verbosity and walks
// the winning plan's inputStage chain from the root down.
func (a *Adapter) Explain(ctx context.Context, query string) (*core.ExecutionPlan, error) {
	if a.database == nil {
		return nil, adapter.ErrNotConnected
	}

	cmd, err := shell.Extract(query)
	if err != nil {
		return nil, err
	}

	var result bson.M
	if err := a.database.RunCommand(ctx, ExplainCommand(cmd)).Decode(&result); err != nil {
		return nil, qerr.Wrapf(err, qerr.CodeExplainFailed, "explain failed: %v", err)
	}
	return core.NewExecutionPlan(PlanNodes(result, cmd.Collection)), nil
}

// ExplainCommand builds the explain document for cmd. The same operator
// filtering and limits used for execution apply.
func ExplainCommand(cmd *shell.Command) bson.D {
	var inner bson.D
	switch cmd.Operation {
	case shell.OpAggregate:
		inner = bson.D{
			{Key: "aggregate", Value: cmd.Collection},
			{Key: "pipeline", Value: docfilter.FilterPipeline(cmd.Pipeline)},
			{Key: "cursor", Value: bson.D{}},
		}
	default:
		inner = bson.D{
			{Key: "find", Value: cmd.Collection},
			{Key: "filter", Value: findFilter(cmd)},
		}
		if proj := docfilter.Filter(cmd.Projection); len(proj) > 0 {
			inner = append(inner, bson.E{Key: "projection", Value: proj})
		}
		inner = append(inner, bson.E{Key: "limit", Value: cmd.Limit})
	}
	return bson.D{
		{Key: "explain", Value: inner},
		{Key: "verbosity", Value: "executionStats"},
	}
}

// PlanNodes flattens an explain result. A result without a recognizable
// plan yields a single EXPLAIN node carrying the raw response.
func PlanNodes(result bson.M, collection string) []core.PlanNode {
	stage := rootStage(result)
	if stage == nil {
		raw, _ := json.Marshal(plain(result))
		return []core.PlanNode{{Detail: "EXPLAIN " + string(raw), Operation: "EXPLAIN", Table: collection}}
	}

	var nodes []core.PlanNode
	for stage != nil {
		nodes = append(nodes, stageNode(stage, collection))
		stage = asDoc(stage["inputStage"])
	}
	return nodes
}

func rootStage(result bson.M) bson.M {
	// Aggregations wrap the planner output in their first stage.
	if stages, ok := result["stages"].(bson.A); ok && len(stages) > 0 {
		if first := asDoc(stages[0]); first != nil {
			if cursor := asDoc(first["$cursor"]); cursor != nil {
				result = cursor
			}
		}
	}

	if stats := asDoc(result["executionStats"]); stats != nil {
		if s := asDoc(stats["executionStages"]); s != nil {
			return s
		}
	}
	planner := asDoc(result["queryPlanner"])
	if planner == nil {
		return nil
	}
	wp := asDoc(planner["winningPlan"])
	if wp == nil {
		return nil
	}
	if qp := asDoc(wp["queryPlan"]); qp != nil {
		return qp
	}
	return wp
}

func stageNode(stage bson.M, collection string) core.PlanNode {
	node := core.PlanNode{
		Operation: str(stage["stage"]),
		Table:     collection,
		Index:     str(stage["indexName"]),
	}

	if f, ok := stage["filter"]; ok {
		if b, err := json.Marshal(plain(f)); err == nil {
			node.Filter = string(b)
		}
	}
	if n, ok := number(stage["nReturned"]); ok {
		rows := int64(n)
		node.Rows = &rows
	}

	parts := []string{node.Operation}
	if node.Index != "" {
		parts = append(parts, "index="+node.Index)
	}
	if node.Rows != nil {
		parts = append(parts, fmt.Sprintf("returned=%d", *node.Rows))
	}
	if docs, ok := number(stage["docsExamined"]); ok {
		parts = append(parts, fmt.Sprintf("docs_examined=%d", int64(docs)))
	}
	if node.Filter != "" {
		parts = append(parts, "filter="+node.Filter)
	}
	node.Detail = strings.Join(parts, " ")
	return node
}

func asDoc(v any) bson.M {
	switch x := v.(type) {
	case bson.M:
		return x
	case bson.D:
		return x.Map()
	}
	return nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
