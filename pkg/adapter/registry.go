package adapter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
	"github.com/rs/zerolog"
)

// Factory builds an unconnected adapter.
type Factory func(logger zerolog.Logger) Adapter

var (
	registryMu sync.RWMutex
	registry   = make(map[core.BackendKind]Factory)
)

// Register adds an adapter factory to the registry.
// Called by adapter implementations in their init() functions.
func Register(kind core.BackendKind, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = factory
}

// Get retrieves an adapter factory by kind.
func Get(kind core.BackendKind) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[kind]
	return f, ok
}

// NewAdapter creates an unconnected adapter for conn's backend kind.
func NewAdapter(conn *core.Connection, logger zerolog.Logger) (Adapter, error) {
	if conn == nil || conn.Kind == "" {
		return nil, fmt.Errorf("adapter type not specified")
	}

	factory, ok := Get(conn.Kind)
	if !ok {
		return nil, &UnknownAdapterError{
			Kind:      conn.Kind,
			Available: ListAdapters(),
		}
	}
	return factory(logger.With().Str("db_type", string(conn.Kind)).Logger()), nil
}

// ListAdapters returns all registered adapter kinds (sorted).
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for kind := range registry {
		names = append(names, string(kind))
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if an adapter kind is registered.
func IsRegistered(kind core.BackendKind) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[kind]
	return ok
}

// UnknownAdapterError is returned when no adapter is registered for a kind.
type UnknownAdapterError struct {
	Kind      core.BackendKind
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown database type %q\nAvailable adapters: %v\nHint: Check db_type in the connection config", e.Kind, e.Available)
}
