// Package metrics records query and HTTP metrics.
package metrics

import "time"

// Collector records named metrics. Labels are passed as alternating
// name/value pairs: "db_type", "mysql", "status", "ok".
type Collector interface {
	IncrementCounter(name string, labels ...string)
	RecordHistogram(name string, value float64, labels ...string)
	RecordGauge(name string, value float64, labels ...string)
	StartTimer(name string) Timer
}

// Timer represents a timing measurement.
type Timer interface {
	// Stop returns the elapsed time in seconds.
	Stop() float64
}

// Metric names shared by the service and the HTTP server.
const (
	QueriesTotal         = "smartsql_queries_total"
	QueryDurationSeconds = "smartsql_query_duration_seconds"
	QueryRowsReturned    = "smartsql_query_rows_returned"
	RejectedTotal        = "smartsql_queries_rejected_total"
	InflightQueries      = "smartsql_inflight_queries"
	OpenConnections      = "smartsql_open_connections"
	HTTPRequestsTotal    = "smartsql_http_requests_total"
	HTTPDurationSeconds  = "smartsql_http_request_duration_seconds"
)

// NoopCollector discards every measurement.
type NoopCollector struct{}

// NewNoopCollector returns a collector that records nothing.
func NewNoopCollector() Collector { return NoopCollector{} }

func (NoopCollector) IncrementCounter(string, ...string) {}
func (NoopCollector) RecordHistogram(string, float64, ...string) {}
func (NoopCollector) RecordGauge(string, float64, ...string) {}

func (NoopCollector) StartTimer(string) Timer {
	return &timer{start: time.Now()}
}

type timer struct {
	start time.Time
}

func (t *timer) Stop() float64 {
	return time.Since(t.start).Seconds()
}
