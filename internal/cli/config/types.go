// Package config provides configuration management for the smartsql CLI.
//
// Configuration is layered with koanf: built-in defaults, then an optional
// smartsql.yaml, then SMARTSQL_* environment variables, then command-line
// flags. Connections declared in the file are seeded into the state store
// when the server starts.
package config

import (
	"time"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
)

// Config holds all CLI configuration options.
type Config struct {
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
	Output    string `koanf:"output"`
	Verbose   bool   `koanf:"verbose"`
	StatePath string `koanf:"state_path"`

	Server ServerConfig `koanf:"server"`
	Query  QueryConfig  `koanf:"query"`

	Connections []core.Connection `koanf:"connections"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// QueryConfig holds the execution defaults applied to every request.
type QueryConfig struct {
	DefaultTimeoutSecs int   `koanf:"default_timeout_secs"`
	DefaultPageSize    int   `koanf:"default_page_size"`
	SlowQueryMs        int64 `koanf:"slow_query_ms"`
	MaxSQLLength       int   `koanf:"max_sql_length"`
}

// Default configuration values.
const (
	DefaultStateFile         = ".smartsql/state.db"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultOutput            = "table"
	DefaultAddr              = ":8080"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 5 * time.Second
	DefaultSlowQueryMs       = 1000
)

// OutputFormats lists the accepted values of the output key.
var OutputFormats = []string{"table", "json", "csv", "md"}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
		Output:    DefaultOutput,
		StatePath: DefaultStateFile,
		Server: ServerConfig{
			Addr:              DefaultAddr,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			ShutdownTimeout:   DefaultShutdownTimeout,
		},
		Query: QueryConfig{
			DefaultTimeoutSecs: core.DefaultTimeoutSecs,
			DefaultPageSize:    core.DefaultPageSize,
			SlowQueryMs:        DefaultSlowQueryMs,
			MaxSQLLength:       core.MaxSQLLength,
		},
	}
}

// ActiveConnection returns the first active connection, or nil.
func (c *Config) ActiveConnection() *core.Connection {
	for i := range c.Connections {
		if c.Connections[i].Active {
			return &c.Connections[i]
		}
	}
	return nil
}
