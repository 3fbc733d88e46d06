package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/JonnyJiang123/smart-sql/internal/logging"
	"github.com/JonnyJiang123/smart-sql/pkg/core"
)

// Validate checks if the configuration is valid. Every problem is reported.
func (c *Config) Validate() error {
	var errs []error

	if c.LogFormat != logging.FormatJSON && c.LogFormat != logging.FormatText {
		errs = append(errs, fmt.Errorf("log_format must be %q or %q, got %q", logging.FormatJSON, logging.FormatText, c.LogFormat))
	}
	if !slices.Contains(OutputFormats, c.Output) {
		errs = append(errs, fmt.Errorf("output must be one of %v, got %q", OutputFormats, c.Output))
	}

	q := c.Query
	if q.DefaultPageSize < 1 || q.DefaultPageSize > core.MaxLimit {
		errs = append(errs, fmt.Errorf("query.default_page_size must be between 1 and %d, got %d", core.MaxLimit, q.DefaultPageSize))
	}
	if q.DefaultTimeoutSecs < 1 {
		errs = append(errs, fmt.Errorf("query.default_timeout_secs must be positive, got %d", q.DefaultTimeoutSecs))
	}
	if q.MaxSQLLength < 1 {
		errs = append(errs, fmt.Errorf("query.max_sql_length must be positive, got %d", q.MaxSQLLength))
	}
	if q.SlowQueryMs < 0 {
		errs = append(errs, fmt.Errorf("query.slow_query_ms must not be negative, got %d", q.SlowQueryMs))
	}

	seen := make(map[int64]string, len(c.Connections))
	for _, conn := range c.Connections {
		if _, err := core.ParseBackendKind(string(conn.Kind)); err != nil {
			errs = append(errs, fmt.Errorf("connection %q: %w", conn.Name, err))
		}
		if conn.Port < 0 || conn.Port > 65535 {
			errs = append(errs, fmt.Errorf("connection %q: port %d out of range", conn.Name, conn.Port))
		}
		if prev, ok := seen[conn.ID]; ok {
			errs = append(errs, fmt.Errorf("connection %q: id %d already used by %q", conn.Name, conn.ID, prev))
		}
		seen[conn.ID] = conn.Name
	}

	return errors.Join(errs...)
}
