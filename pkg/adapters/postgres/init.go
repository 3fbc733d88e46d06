// Package postgres provides the PostgreSQL adapter.
//
// This file registers the PostgreSQL adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/JonnyJiang123/smart-sql/pkg/adapters/postgres"
package postgres

import (
	"github.com/JonnyJiang123/smart-sql/pkg/adapter"
	"github.com/JonnyJiang123/smart-sql/pkg/core"
	"github.com/rs/zerolog"
)

func init() {
	adapter.Register(core.BackendPostgres, func(logger zerolog.Logger) adapter.Adapter { return New(logger) })
}
