package state

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate brings the connections and query_history tables up to date.
func (s *SQLiteStore) Migrate() error {
	if err := s.ready(); err != nil {
		return err
	}
	return migrate(s.db, s.logger)
}

// MigrationVersion returns the applied schema version.
func (s *SQLiteStore) MigrationVersion() (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if err := configureGoose(s.logger); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(s.db)
}

func migrate(db *sql.DB, logger zerolog.Logger) error {
	if err := configureGoose(logger); err != nil {
		return err
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func configureGoose(logger zerolog.Logger) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{logger: logger})
	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return nil
}

// gooseLogger routes goose output through zerolog at debug level.
type gooseLogger struct {
	logger zerolog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Debug().Msgf(format, v...)
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Fatal().Msgf(format, v...)
}
