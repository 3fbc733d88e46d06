package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/JonnyJiang123/smart-sql/internal/metrics"
	"github.com/JonnyJiang123/smart-sql/pkg/adapter"
	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
	"github.com/JonnyJiang123/smart-sql/pkg/limit"
)

var selectStarRe = regexp.MustCompile(`(?i)\bselect\s+(distinct\s+)?\*`)

// Execute runs req and returns the normalized result. When req.QueryID is
// empty a new id is generated; the id is registered for cancellation
// while the backend call is in flight.
func (s *Service) Execute(ctx context.Context, req core.QueryRequest) (*core.QueryResult, error) {
	start := time.Now()

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	conn, err := s.resolveConnection(ctx, req.ConnectionID)
	if err != nil {
		return nil, err
	}

	if req.QueryID == "" {
		req.QueryID = s.newQueryID()
	}
	logger := s.logger.With().
		Str("query_id", req.QueryID).
		Int64("connection_id", conn.ID).
		Str("db_type", string(conn.Kind)).
		Logger()

	result, err := s.execute(ctx, conn, req)
	s.metrics.RecordGauge(metrics.InflightQueries, float64(s.cancels.Len()))
	s.observe(conn, result, err, start)
	s.record(ctx, conn, req.SQL, result, err, start)

	if err != nil {
		logger.Debug().Err(err).Msg("query failed")
		return nil, err
	}

	logger.Debug().
		Int("rows", result.RowCount).
		Int64("duration_ms", result.ExecutionTimeMs).
		Msg("query executed")
	return result, nil
}

func (s *Service) validateRequest(req core.QueryRequest) error {
	if err := s.validateText(req.SQL); err != nil {
		return err
	}
	if req.PageSize > core.MaxLimit {
		return qerr.Newf(qerr.CodeTooManyRowsRequested, "page_size %d exceeds the maximum of %d", req.PageSize, core.MaxLimit)
	}
	if req.PageSize < 0 {
		return qerr.New(qerr.CodeInvalidRequest, "page_size must not be negative")
	}
	if req.Page != nil && *req.Page < 1 {
		return qerr.New(qerr.CodeInvalidRequest, "page must be at least 1")
	}
	if req.TimeoutSecs < 0 {
		return qerr.New(qerr.CodeInvalidRequest, "timeout_secs must not be negative")
	}
	return nil
}

func (s *Service) execute(ctx context.Context, conn *core.Connection, req core.QueryRequest) (*core.QueryResult, error) {
	start := time.Now()

	text := req.SQL
	if conn.Kind.IsSQL() {
		if err := s.checkGuard(conn.Kind, text); err != nil {
			return nil, err
		}
		rw := limit.Rewrite(text)
		if rw.Fallback {
			s.logger.Debug().Err(rw.ParseErr).Msg("statement not parsed, using textual limit")
		}
		text = rw.SQL
	}
	if _, err := conn.BuildConnectionString(); err != nil {
		return nil, err
	}

	timeout := req.TimeoutSecs
	if timeout == 0 {
		timeout = s.cfg.DefaultTimeoutSecs
	}

	// The deadline and the cancel registration cover connecting as well.
	qctx, release, err := s.cancels.Register(ctx, req.QueryID)
	if err != nil {
		return nil, err
	}
	defer release()

	qctx, cancel := context.WithTimeout(qctx, time.Duration(timeout)*time.Second)
	defer cancel()

	s.metrics.RecordGauge(metrics.InflightQueries, float64(s.cancels.Len()))
	a, err := race(qctx, func(ctx context.Context) (adapter.Adapter, error) {
		return s.pool.Get(ctx, conn)
	})
	if err != nil {
		return nil, err
	}

	result, err := race(qctx, func(ctx context.Context) (*core.QueryResult, error) {
		return a.Execute(ctx, text)
	})
	if err != nil {
		return nil, err
	}

	rowsRead := len(result.Rows)
	if req.Page != nil {
		paginate(result, *req.Page, s.pageSize(req.PageSize))
	}
	result.RowCount = len(result.Rows)
	result.Performance = s.performance(req.SQL, result, rowsRead, elapsedMs(start))
	return result, nil
}

func (s *Service) pageSize(requested int) int {
	if requested > 0 {
		return requested
	}
	return s.cfg.DefaultPageSize
}

// paginate slices result to the requested page of the already clamped rows.
func paginate(result *core.QueryResult, page, size int) {
	total := len(result.Rows)
	start := min((page-1)*size, total)
	end := min(start+size, total)

	result.Rows = result.Rows[start:end]
	result.TotalRows = &total
	result.Page = &page
	result.PageSize = &size
	result.HasMore = end < total
}

func (s *Service) performance(sql string, result *core.QueryResult, rowsRead int, totalMs int64) *core.QueryPerformance {
	perf := &core.QueryPerformance{
		QueryTimeMs:  result.ExecutionTimeMs,
		FetchTimeMs:  max(totalMs-result.ExecutionTimeMs, 0),
		TotalTimeMs:  totalMs,
		RowsRead:     rowsRead,
		RowsReturned: len(result.Rows),
		IsSlowQuery:  result.ExecutionTimeMs > s.cfg.SlowQueryMs,
		Warnings:     []string{},
	}

	if perf.IsSlowQuery {
		perf.Warnings = append(perf.Warnings,
			fmt.Sprintf("query took %dms, above the %dms slow-query threshold", result.ExecutionTimeMs, s.cfg.SlowQueryMs))
	}
	if rowsRead == core.DefaultLimit || rowsRead == core.MaxLimit {
		perf.Warnings = append(perf.Warnings,
			fmt.Sprintf("result may be truncated at %d rows; add a LIMIT or a narrower filter", rowsRead))
	}
	if selectStarRe.MatchString(sql) {
		perf.Warnings = append(perf.Warnings, "SELECT * reads every column; list only the columns you need")
	}
	return perf
}

func (s *Service) observe(conn *core.Connection, result *core.QueryResult, err error, start time.Time) {
	status := "ok"
	if err != nil {
		status = qerr.GetCode(err)
	}
	kind := string(conn.Kind)
	s.metrics.IncrementCounter(metrics.QueriesTotal, "db_type", kind, "status", status)
	s.metrics.RecordHistogram(metrics.QueryDurationSeconds, time.Since(start).Seconds(), "db_type", kind)
	if result != nil {
		s.metrics.RecordHistogram(metrics.QueryRowsReturned, float64(result.RowCount), "db_type", kind)
	}
}

// record stores a history entry. Failures are logged, never returned.
func (s *Service) record(ctx context.Context, conn *core.Connection, sql string, result *core.QueryResult, execErr error, start time.Time) {
	if s.history == nil {
		return
	}

	id := conn.ID
	h := &core.QueryHistory{
		ConnectionID:    &id,
		SQLText:         sql,
		ExecutedAt:      start.Unix(),
		ExecutionTimeMs: elapsedMs(start),
		Success:         execErr == nil,
	}
	if result != nil {
		h.ExecutionTimeMs = result.ExecutionTimeMs
		h.RowCount = int64(result.RowCount)
	}
	if execErr != nil {
		h.ErrorMessage = qerr.GetMessage(execErr)
	}

	// The request context may already be done when the query was canceled.
	if err := s.history.RecordQuery(context.WithoutCancel(ctx), h); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record query history")
	}
}

// History returns the most recent history entries.
func (s *Service) History(ctx context.Context, n int) ([]core.QueryHistory, error) {
	if s.history == nil {
		return []core.QueryHistory{}, nil
	}
	if n <= 0 {
		n = 100
	}
	return s.history.ListHistory(ctx, n)
}

// ToggleFavorite flips the favorite flag of a history entry.
func (s *Service) ToggleFavorite(ctx context.Context, id int64) (bool, error) {
	if s.history == nil {
		return false, qerr.Newf(qerr.CodeNotFound, "history entry %d not found", id)
	}
	return s.history.ToggleFavorite(ctx, id)
}

// ClearHistory deletes history entries and returns how many were removed.
func (s *Service) ClearHistory(ctx context.Context, keepFavorites bool) (int64, error) {
	if s.history == nil {
		return 0, nil
	}
	return s.history.ClearHistory(ctx, keepFavorites)
}
