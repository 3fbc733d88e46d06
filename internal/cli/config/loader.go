package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variables read by LoadConfig.
// A double underscore separates nesting levels: SMARTSQL_SERVER__ADDR.
const EnvPrefix = "SMARTSQL_"

// loggerKey and configKey store values in a command context.
type (
	loggerKey struct{}
	configKey struct{}
)

// flagKeys maps flag names onto config keys where the two differ.
var flagKeys = map[string]string{
	"state":   "state_path",
	"addr":    "server.addr",
	"timeout": "query.default_timeout_secs",
}

var configFileUsed string

// findConfigFile returns the config file to use.
// Priority: explicit path > smartsql.yaml > smartsql.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"smartsql.yaml", "smartsql.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// LoadConfig loads configuration from defaults, file, environment and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	configFileUsed = ""

	d := Default()
	if err := k.Load(confmap.Provider(map[string]any{
		"log_level":                  d.LogLevel,
		"log_format":                 d.LogFormat,
		"output":                     d.Output,
		"verbose":                    d.Verbose,
		"state_path":                 d.StatePath,
		"server.addr":                d.Server.Addr,
		"server.read_header_timeout": d.Server.ReadHeaderTimeout.String(),
		"server.shutdown_timeout":    d.Server.ShutdownTimeout.String(),
		"query.default_timeout_secs": d.Query.DefaultTimeoutSecs,
		"query.default_page_size":    d.Query.DefaultPageSize,
		"query.slow_query_ms":        d.Query.SlowQueryMs,
		"query.max_sql_length":       d.Query.MaxSQLLength,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(cfgFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		configFileUsed = path
	}

	// SMARTSQL_QUERY__SLOW_QUERY_MS -> query.slow_query_ms
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return flagKey(f.Name), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.normalizeConnections(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func flagKey(name string) string {
	if key, ok := flagKeys[name]; ok {
		return key
	}
	return strings.ReplaceAll(name, "-", "_")
}

// normalizeConnections expands credentials, canonicalizes kinds, assigns
// missing ids and makes sure one connection is active.
func (c *Config) normalizeConnections() error {
	var next int64
	for _, conn := range c.Connections {
		next = max(next, conn.ID)
	}

	for i := range c.Connections {
		conn := &c.Connections[i]
		kind, err := core.ParseBackendKind(string(conn.Kind))
		if err != nil {
			return fmt.Errorf("connection %q: %w", conn.Name, err)
		}
		conn.Kind = kind
		expandConnectionEnvVars(conn)

		if conn.ID == 0 {
			next++
			conn.ID = next
		}
		if conn.Name == "" {
			conn.Name = fmt.Sprintf("%s-%d", conn.Kind, conn.ID)
		}
	}

	if len(c.Connections) > 0 && c.ActiveConnection() == nil {
		c.Connections[0].Active = true
	}
	return nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// WithConfig stores cfg in ctx.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from the command context, falling back
// to the built-in defaults.
func FromContext(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok && c != nil {
		return c
	}
	return Default()
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return l
	}
	return zerolog.Nop()
}

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns with environment variable values.
// Unset variables are left as written.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

// expandConnectionEnvVars expands environment variables in credential fields.
func expandConnectionEnvVars(c *core.Connection) {
	c.Host = expandEnvVars(c.Host)
	c.Username = expandEnvVars(c.Username)
	c.Password = expandEnvVars(c.Password)
	c.Database = expandEnvVars(c.Database)
	c.FilePath = expandEnvVars(c.FilePath)
	c.ConnectionString = expandEnvVars(c.ConnectionString)
}
