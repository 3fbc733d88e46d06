package core

// Row limits applied to every read query.
const (
	MaxLimit     = 1500
	DefaultLimit = 200
)

// Request defaults.
const (
	DefaultTimeoutSecs = 30
	DefaultPageSize    = 100
	MaxSQLLength       = 10000
)

// QueryRequest is an ad hoc query submitted by a caller.
type QueryRequest struct {
	SQL          string `json:"sql"`
	ConnectionID *int64 `json:"connection_id,omitempty"`
	Parameters   []any  `json:"parameters,omitempty"`
	TimeoutSecs  int    `json:"timeout_secs,omitempty"`
	Page         *int   `json:"page,omitempty"`
	PageSize     int    `json:"page_size,omitempty"`
	QueryID      string `json:"query_id,omitempty"`
}

// QueryResult is the normalized tabular result of a query.
// Every row holds exactly len(Columns) values.
type QueryResult struct {
	Columns         []string          `json:"columns"`
	Rows            [][]Value         `json:"rows"`
	RowCount        int               `json:"row_count"`
	ExecutionTimeMs int64             `json:"execution_time_ms"`
	TotalRows       *int              `json:"total_rows,omitempty"`
	Page            *int              `json:"page,omitempty"`
	PageSize        *int              `json:"page_size,omitempty"`
	HasMore         bool              `json:"has_more"`
	Performance     *QueryPerformance `json:"performance,omitempty"`
}

// QueryPerformance carries timing and volume figures for one execution.
type QueryPerformance struct {
	QueryTimeMs  int64    `json:"query_time_ms"`
	FetchTimeMs  int64    `json:"fetch_time_ms"`
	TotalTimeMs  int64    `json:"total_time_ms"`
	RowsRead     int      `json:"rows_read"`
	RowsReturned int      `json:"rows_returned"`
	IsSlowQuery  bool     `json:"is_slow_query"`
	Warnings     []string `json:"warnings"`
}

// ExplainRequest asks for the execution plan of a query.
type ExplainRequest struct {
	SQL          string `json:"sql"`
	ConnectionID *int64 `json:"connection_id,omitempty"`
}

// QueryHistory records one execution attempt.
type QueryHistory struct {
	ID              int64  `json:"id"`
	ConnectionID    *int64 `json:"connection_id,omitempty"`
	SQLText         string `json:"sql_text"`
	ExecutedAt      int64  `json:"executed_at"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
	RowCount        int64  `json:"row_count"`
	Success         bool   `json:"is_success"`
	ErrorMessage    string `json:"error_message,omitempty"`
	Favorite        bool   `json:"is_favorite"`
}
