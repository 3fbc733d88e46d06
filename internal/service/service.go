// Package service runs ad hoc queries against configured connections.
//
// It resolves the connection, applies the safety pipeline for the
// backend kind, races the backend call against cancellation and adds
// pagination, performance figures, metrics and history to the result.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/JonnyJiang123/smart-sql/internal/metrics"
	"github.com/JonnyJiang123/smart-sql/pkg/adapter"
	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
	"github.com/JonnyJiang123/smart-sql/pkg/guard"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config holds request defaults and thresholds.
type Config struct {
	DefaultTimeoutSecs int
	DefaultPageSize    int
	SlowQueryMs        int64
	MaxSQLLength       int
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeoutSecs: core.DefaultTimeoutSecs,
		DefaultPageSize:    core.DefaultPageSize,
		SlowQueryMs:        1000,
		MaxSQLLength:       core.MaxSQLLength,
	}
}

// Service executes and explains queries.
type Service struct {
	cfg        Config
	store      ConnectionStore
	history    HistoryStore
	advisor    Advisor
	guard      *guard.Guard
	pool       *Pool
	cancels    *CancelRegistry
	metrics    metrics.Collector
	logger     zerolog.Logger
	newQueryID func() string
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics sets the metrics collector.
func WithMetrics(m metrics.Collector) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAdvisor sets the optimization advisor used by Explain.
func WithAdvisor(a Advisor) Option {
	return func(s *Service) { s.advisor = a }
}

// WithGuard replaces the default injection guard.
func WithGuard(g *guard.Guard) Option {
	return func(s *Service) { s.guard = g }
}

// WithHistory sets the history store.
func WithHistory(h HistoryStore) Option {
	return func(s *Service) { s.history = h }
}

// New creates a Service. Zero fields in cfg take their defaults.
func New(cfg Config, store ConnectionStore, logger zerolog.Logger, opts ...Option) *Service {
	def := DefaultConfig()
	if cfg.DefaultTimeoutSecs <= 0 {
		cfg.DefaultTimeoutSecs = def.DefaultTimeoutSecs
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = def.DefaultPageSize
	}
	if cfg.SlowQueryMs <= 0 {
		cfg.SlowQueryMs = def.SlowQueryMs
	}
	if cfg.MaxSQLLength <= 0 {
		cfg.MaxSQLLength = def.MaxSQLLength
	}

	s := &Service{
		cfg:        cfg,
		store:      store,
		guard:      guard.Default(),
		cancels:    NewCancelRegistry(),
		metrics:    metrics.NewNoopCollector(),
		logger:     logger.With().Str("component", "service").Logger(),
		newQueryID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pool = NewPool(logger, s.metrics)
	return s
}

// Close releases every pooled backend connection.
func (s *Service) Close() error {
	return s.pool.Close()
}

// NewQueryID returns a fresh query identifier.
func (s *Service) NewQueryID() string {
	return s.newQueryID()
}

// Cancel cancels an in-flight query.
func (s *Service) Cancel(queryID string) error {
	if err := s.cancels.Cancel(queryID); err != nil {
		return err
	}
	s.logger.Info().Str("query_id", queryID).Msg("query canceled")
	return nil
}

// ExecuteBatch is not supported.
func (s *Service) ExecuteBatch(context.Context, []core.QueryRequest) ([]core.QueryResult, error) {
	return nil, qerr.New(qerr.CodeNotImplemented, "batch execution is not implemented")
}

// resolveConnection returns the connection named by id, or the first
// active connection when id is nil.
func (s *Service) resolveConnection(ctx context.Context, id *int64) (*core.Connection, error) {
	if id != nil {
		return s.store.GetConnection(ctx, *id)
	}

	conns, err := s.store.ActiveConnections(ctx)
	if err != nil {
		return nil, qerr.Wrap(err, qerr.CodeInternal, "failed to load active connections")
	}
	if len(conns) == 0 {
		return nil, qerr.New(qerr.CodeInvalidRequest, "no active database connection")
	}
	conn := conns[0]
	return &conn, nil
}

func (s *Service) validateText(sql string) error {
	if strings.TrimSpace(sql) == "" {
		return qerr.New(qerr.CodeInvalidRequest, "SQL must not be empty")
	}
	if len(sql) > s.cfg.MaxSQLLength {
		return qerr.Newf(qerr.CodeInvalidRequest, "SQL exceeds the maximum length of %d characters", s.cfg.MaxSQLLength).
			WithDetail("length", len(sql))
	}
	return nil
}

// checkGuard runs the injection guard for SQL backends.
func (s *Service) checkGuard(kind core.BackendKind, sql string) error {
	if !kind.IsSQL() {
		return nil
	}
	v := s.guard.Inspect(sql)
	if v == nil {
		return nil
	}
	s.metrics.IncrementCounter(metrics.RejectedTotal, "db_type", string(kind), "rule", v.Rule)
	s.logger.Warn().Str("rule", v.Rule).Str("match", v.Match).Msg("query rejected by injection guard")
	return s.guard.Check(sql)
}

// race runs fn in a goroutine and waits for it or for ctx to end.
// The context is checked once more after fn returns.
func race[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome{v, err}
	}()

	var zero T
	select {
	case <-ctx.Done():
		return zero, contextError(ctx)
	case o := <-done:
		if ctx.Err() != nil {
			return zero, contextError(ctx)
		}
		return o.val, o.err
	}
}

func contextError(ctx context.Context) error {
	if errors.Is(context.Cause(ctx), errCanceledByCaller) {
		return qerr.Wrap(ctx.Err(), qerr.CodeCanceled, "query canceled")
	}
	return adapter.ExecutionError(ctx, ctx.Err())
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
