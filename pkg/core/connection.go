package core

import (
	"fmt"
	"net/url"
	"strings"

	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
)

// BackendKind identifies which query engine a connection talks to.
type BackendKind string

// Supported backend kinds. The set is closed.
const (
	BackendMySQL    BackendKind = "mysql"
	BackendPostgres BackendKind = "postgresql"
	BackendSQLite   BackendKind = "sqlite"
	BackendMongoDB  BackendKind = "mongodb"
)

// BackendKinds lists every supported kind in a stable order.
var BackendKinds = []BackendKind{BackendMySQL, BackendPostgres, BackendSQLite, BackendMongoDB}

// ParseBackendKind normalizes a user-supplied kind name.
func ParseBackendKind(s string) (BackendKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mysql", "mariadb":
		return BackendMySQL, nil
	case "postgresql", "postgres", "pg":
		return BackendPostgres, nil
	case "sqlite", "sqlite3":
		return BackendSQLite, nil
	case "mongodb", "mongo":
		return BackendMongoDB, nil
	}
	return "", qerr.Newf(qerr.CodeInvalidConnectionConfig, "unsupported database type %q", s)
}

// IsSQL reports whether the backend speaks SQL.
func (k BackendKind) IsSQL() bool {
	return k == BackendMySQL || k == BackendPostgres || k == BackendSQLite
}

// DefaultPort returns the conventional port for network backends, or 0.
func (k BackendKind) DefaultPort() int {
	switch k {
	case BackendMySQL:
		return 3306
	case BackendPostgres:
		return 5432
	case BackendMongoDB:
		return 27017
	}
	return 0
}

// Connection describes one configured database.
type Connection struct {
	ID               int64          `json:"id" koanf:"id"`
	Name             string         `json:"name" koanf:"name"`
	Kind             BackendKind    `json:"db_type" koanf:"db_type"`
	Host             string         `json:"host,omitempty" koanf:"host"`
	Port             int            `json:"port,omitempty" koanf:"port"`
	Database         string         `json:"database_name,omitempty" koanf:"database_name"`
	Username         string         `json:"username,omitempty" koanf:"username"`
	Password         string         `json:"password,omitempty" koanf:"password"`
	FilePath         string         `json:"file_path,omitempty" koanf:"file_path"`
	ConnectionString string         `json:"connection_string,omitempty" koanf:"connection_string"`
	Environment      string         `json:"environment,omitempty" koanf:"environment"`
	Active           bool           `json:"is_active" koanf:"is_active"`
	Params           map[string]any `json:"params,omitempty" koanf:"params"`
}

// BuildConnectionString builds the canonical URL for the connection.
// A raw connection string always wins and is returned verbatim.
func (c *Connection) BuildConnectionString() (string, error) {
	if c.ConnectionString != "" {
		return c.ConnectionString, nil
	}

	switch c.Kind {
	case BackendSQLite:
		if c.FilePath == "" {
			return "", missingField(c.Kind, "file_path")
		}
		return fmt.Sprintf("sqlite://%s?mode=rwc", c.FilePath), nil

	case BackendMySQL, BackendPostgres:
		if err := c.requireNetwork(); err != nil {
			return "", err
		}
		user := c.Username
		if user == "" {
			user = "root"
			if c.Kind == BackendPostgres {
				user = "postgres"
			}
		}
		u := url.URL{
			Scheme: string(c.Kind),
			User:   url.UserPassword(user, c.Password),
			Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
			Path:   "/" + c.Database,
		}
		return u.String(), nil

	case BackendMongoDB:
		if err := c.requireNetwork(); err != nil {
			return "", err
		}
		u := url.URL{
			Scheme: "mongodb",
			Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
			Path:   "/" + c.Database,
		}
		if c.Username != "" && c.Password != "" {
			u.User = url.UserPassword(c.Username, c.Password)
			u.RawQuery = "authSource=admin"
		}
		return u.String(), nil
	}

	return "", qerr.Newf(qerr.CodeInvalidConnectionConfig, "unsupported database type %q", c.Kind)
}

func (c *Connection) requireNetwork() error {
	if c.Host == "" {
		return missingField(c.Kind, "host")
	}
	if c.Port == 0 {
		return missingField(c.Kind, "port")
	}
	if c.Database == "" {
		return missingField(c.Kind, "database_name")
	}
	return nil
}

func missingField(kind BackendKind, field string) error {
	return qerr.Newf(qerr.CodeInvalidConnectionConfig, "%s connection requires %s", kind, field).
		WithDetail("field", field)
}

// RedactedSecret replaces passwords in connections shown to callers.
const RedactedSecret = "******"

// Redacted returns a copy safe to show to callers.
func (c Connection) Redacted() Connection {
	if c.Password != "" {
		c.Password = RedactedSecret
	}
	if c.ConnectionString != "" {
		if u, err := url.Parse(c.ConnectionString); err == nil && u.User != nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.UserPassword(u.User.Username(), RedactedSecret)
				c.ConnectionString = u.String()
			}
		}
	}
	return c
}
