package commands

import (
	"fmt"
	"os"

	"github.com/JonnyJiang123/smart-sql/internal/cli/config"
	"github.com/JonnyJiang123/smart-sql/internal/metrics"
	"github.com/JonnyJiang123/smart-sql/internal/service"
	"github.com/JonnyJiang123/smart-sql/internal/state"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	// Backend adapters register themselves with the adapter registry.
	_ "github.com/JonnyJiang123/smart-sql/pkg/adapters/mongodb"
	_ "github.com/JonnyJiang123/smart-sql/pkg/adapters/mysql"
	_ "github.com/JonnyJiang123/smart-sql/pkg/adapters/postgres"
	_ "github.com/JonnyJiang123/smart-sql/pkg/adapters/sqlite"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg     *config.Config
	Logger  zerolog.Logger
	Service *service.Service
	Store   *state.SQLiteStore
}

// NewCommandContext opens the state store, seeds configured connections
// and builds the query service. The cleanup function must be called
// (typically via defer).
func NewCommandContext(cmd *cobra.Command, m metrics.Collector) (*CommandContext, func(), error) {
	cfg := config.FromContext(cmd.Context())
	logger := config.GetLogger(cmd.Context())

	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to migrate state database: %w", err)
	}
	if err := store.SeedConnections(cmd.Context(), cfg.Connections); err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	if m == nil {
		m = metrics.NewNoopCollector()
	}
	svc := service.New(service.Config{
		DefaultTimeoutSecs: cfg.Query.DefaultTimeoutSecs,
		DefaultPageSize:    cfg.Query.DefaultPageSize,
		SlowQueryMs:        cfg.Query.SlowQueryMs,
		MaxSQLLength:       cfg.Query.MaxSQLLength,
	}, store, logger, service.WithHistory(store), service.WithMetrics(m))

	cleanup := func() {
		if err := svc.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close backend connections")
		}
		_ = store.Close()
	}

	return &CommandContext{
		Cfg:     cfg,
		Logger:  logger,
		Service: svc,
		Store:   store,
	}, cleanup, nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
