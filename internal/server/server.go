// Package server exposes the query service over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/JonnyJiang123/smart-sql/internal/metrics"
	"github.com/JonnyJiang123/smart-sql/pkg/core"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// QueryService is the behaviour the API needs from the service layer.
type QueryService interface {
	NewQueryID() string
	Execute(ctx context.Context, req core.QueryRequest) (*core.QueryResult, error)
	Explain(ctx context.Context, req core.ExplainRequest) (*core.ExecutionPlan, error)
	ExecuteBatch(ctx context.Context, reqs []core.QueryRequest) ([]core.QueryResult, error)
	Cancel(queryID string) error
	Connections(ctx context.Context) ([]core.Connection, error)
	SaveConnection(ctx context.Context, conn *core.Connection) error
	Connection(ctx context.Context, id int64) (*core.Connection, error)
	UpdateConnection(ctx context.Context, id int64, conn *core.Connection) error
	DeleteConnection(ctx context.Context, id int64) error
	ToggleConnection(ctx context.Context, id int64) (*core.Connection, error)
	TestConnection(ctx context.Context, conn *core.Connection) *core.ConnectionTestResult
	ListTables(ctx context.Context, connID int64) ([]core.TableInfo, error)
	TableSchema(ctx context.Context, connID int64, table string) (*core.TableSchema, error)
	Indexes(ctx context.Context, connID int64, table string) ([]core.IndexInfo, error)
	History(ctx context.Context, n int) ([]core.QueryHistory, error)
	ToggleFavorite(ctx context.Context, id int64) (bool, error)
	ClearHistory(ctx context.Context, keepFavorites bool) (int64, error)
}

// Config holds configuration for the API server.
type Config struct {
	Service           QueryService
	Addr              string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	Logger            zerolog.Logger
	// Metrics is optional. When nil /metrics is not served.
	Metrics *metrics.PrometheusCollector
}

// Server is the HTTP API server.
type Server struct {
	svc               QueryService
	addr              string
	readHeaderTimeout time.Duration
	shutdownTimeout   time.Duration
	logger            zerolog.Logger
	metrics           *metrics.PrometheusCollector
	collector         metrics.Collector
}

// New creates a new API server instance.
func New(cfg Config) *Server {
	s := &Server{
		svc:               cfg.Service,
		addr:              cfg.Addr,
		readHeaderTimeout: cfg.ReadHeaderTimeout,
		shutdownTimeout:   cfg.ShutdownTimeout,
		logger:            cfg.Logger.With().Str("component", "server").Logger(),
		metrics:           cfg.Metrics,
		collector:         metrics.NewNoopCollector(),
	}
	if s.addr == "" {
		s.addr = ":8080"
	}
	if s.readHeaderTimeout <= 0 {
		s.readHeaderTimeout = 10 * time.Second
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = 5 * time.Second
	}
	if cfg.Metrics != nil {
		s.collector = cfg.Metrics
	}
	return s
}

// Serve starts the server and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on an existing listener until ctx is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("starting API server")

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: s.readHeaderTimeout,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		s.logger.Debug().Msg("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
