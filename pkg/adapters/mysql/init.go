package mysql

import (
	"github.com/JonnyJiang123/smart-sql/pkg/adapter"
	"github.com/JonnyJiang123/smart-sql/pkg/core"
	"github.com/rs/zerolog"
)

func init() {
	adapter.Register(core.BackendMySQL, func(logger zerolog.Logger) adapter.Adapter { return New(logger) })
}
