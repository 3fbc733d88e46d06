package mongodb

import (
	"github.com/JonnyJiang123/smart-sql/pkg/adapter"
	"github.com/JonnyJiang123/smart-sql/pkg/core"
	"github.com/rs/zerolog"
)

func init() {
	adapter.Register(core.BackendMongoDB, func(logger zerolog.Logger) adapter.Adapter { return New(logger) })
}
