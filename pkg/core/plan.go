package core

import "strings"

// PlanNode is one step of a flattened execution plan.
// Nodes form a linear chain: Parent points at the previous node.
type PlanNode struct {
	ID        int      `json:"id"`
	Parent    *int     `json:"parent,omitempty"`
	Detail    string   `json:"detail"`
	Operation string   `json:"operation,omitempty"`
	Table     string   `json:"table,omitempty"`
	Index     string   `json:"index,omitempty"`
	Cost      *float64 `json:"cost,omitempty"`
	Rows      *int64   `json:"rows,omitempty"`
	Width     *int64   `json:"width,omitempty"`
	Filter    string   `json:"filter,omitempty"`
	JoinType  string   `json:"join_type,omitempty"`
}

// ExecutionPlan is the explain response.
type ExecutionPlan struct {
	Plan                 []PlanNode `json:"plan"`
	QueryPlan            string     `json:"query_plan,omitempty"`
	AIOptimizationAdvice string     `json:"ai_optimization_advice,omitempty"`
	AIOptimizedSQL       string     `json:"ai_optimized_sql,omitempty"`
}

// ChainPlan assigns sequential ids and links every node to its predecessor.
func ChainPlan(nodes []PlanNode) []PlanNode {
	for i := range nodes {
		nodes[i].ID = i
		nodes[i].Parent = nil
		if i > 0 {
			parent := i - 1
			nodes[i].Parent = &parent
		}
	}
	return nodes
}

// NewExecutionPlan chains nodes and builds the text summary.
func NewExecutionPlan(nodes []PlanNode) *ExecutionPlan {
	nodes = ChainPlan(nodes)
	lines := make([]string, 0, len(nodes))
	for _, n := range nodes {
		lines = append(lines, n.Detail)
	}
	if nodes == nil {
		nodes = []PlanNode{}
	}
	return &ExecutionPlan{
		Plan:      nodes,
		QueryPlan: strings.Join(lines, "\n"),
	}
}
