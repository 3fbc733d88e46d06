package postgres

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/JonnyJiang123/smart-sql/pkg/adapter"
	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
	"github.com/go-viper/mapstructure/v2"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
func New(logger zerolog.Logger) *Adapter {
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{
			Logger: logger,
			Decode: adapter.DecodeTyped,
		},
	}
}

// Kind returns core.BackendPostgres.
func (a *Adapter) Kind() core.BackendKind {
	return core.BackendPostgres
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, conn *core.Connection) error {
	connStr, err := conn.BuildConnectionString()
	if err != nil {
		return err
	}
	dsn, err := BuildDSN(connStr, conn.Params)
	if err != nil {
		return err
	}

	a.Logger.Debug().
		Str("host", conn.Host).
		Str("database", conn.Database).
		Msg("connecting to postgres")

	return a.Open(ctx, "pgx", dsn, conn)
}

// ServerVersion returns the server_version setting.
func (a *Adapter) ServerVersion(ctx context.Context) (string, error) {
	return a.QueryRowString(ctx, "SHOW server_version")
}

// Options are the connection params understood by the PostgreSQL adapter.
type Options struct {
	SSLMode         string `mapstructure:"sslmode"`
	ConnectTimeout  int    `mapstructure:"connect_timeout"`
	ApplicationName string `mapstructure:"application_name"`
	SearchPath      string `mapstructure:"search_path"`
}

// BuildDSN validates connStr with pgx and appends params as URL query
// settings. sslmode defaults to disable when neither source sets it.
func BuildDSN(connStr string, params map[string]any) (string, error) {
	var opts Options
	if len(params) > 0 {
		if err := mapstructure.WeakDecode(params, &opts); err != nil {
			return "", qerr.Wrapf(err, qerr.CodeInvalidConnectionConfig, "invalid postgres params: %v", err)
		}
	}

	isURL := strings.Contains(connStr, "://")
	settings := []setting{
		{"application_name", opts.ApplicationName},
		{"search_path", opts.SearchPath},
	}
	if opts.ConnectTimeout > 0 {
		settings = append(settings, setting{"connect_timeout", strconv.Itoa(opts.ConnectTimeout)})
	}
	sslmode := opts.SSLMode
	if sslmode == "" && !strings.Contains(connStr, "sslmode") {
		sslmode = "disable"
	}
	settings = append(settings, setting{"sslmode", sslmode})

	dsn := connStr
	for _, s := range settings {
		if s.value == "" {
			continue
		}
		switch {
		case !isURL:
			dsn += " " + s.key + "=" + s.value
		case strings.Contains(dsn, "?"):
			dsn += "&" + s.key + "=" + url.QueryEscape(s.value)
		default:
			dsn += "?" + s.key + "=" + url.QueryEscape(s.value)
		}
	}

	if _, err := pgx.ParseConfig(dsn); err != nil {
		return "", qerr.Wrapf(err, qerr.CodeInvalidConnectionConfig, "invalid postgres connection string: %v", err)
	}
	return dsn, nil
}

type setting struct{ key, value string }

var _ adapter.Adapter = (*Adapter)(nil)
