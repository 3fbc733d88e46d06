package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/JonnyJiang123/smart-sql/internal/metrics"
	"github.com/JonnyJiang123/smart-sql/pkg/adapter"
	"github.com/JonnyJiang123/smart-sql/pkg/core"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Pool keeps one connected adapter per connection id. An entry is
// replaced when the connection's configuration changes.
type Pool struct {
	mu      sync.Mutex
	entries map[int64]*poolEntry
	group   singleflight.Group
	logger  zerolog.Logger
	metrics metrics.Collector

	// newAdapter is swapped in tests.
	newAdapter func(*core.Connection, zerolog.Logger) (adapter.Adapter, error)
}

type poolEntry struct {
	adapter     adapter.Adapter
	fingerprint string
}

// NewPool creates an empty pool.
func NewPool(logger zerolog.Logger, m metrics.Collector) *Pool {
	if m == nil {
		m = metrics.NewNoopCollector()
	}
	return &Pool{
		entries:    make(map[int64]*poolEntry),
		logger:     logger,
		metrics:    m,
		newAdapter: adapter.NewAdapter,
	}
}

// Get returns a connected adapter for conn, connecting on first use.
// Configuration errors are reported before any network I/O.
func (p *Pool) Get(ctx context.Context, conn *core.Connection) (adapter.Adapter, error) {
	connStr, err := conn.BuildConnectionString()
	if err != nil {
		return nil, err
	}
	fp := fingerprint(conn, connStr)

	p.mu.Lock()
	if e, ok := p.entries[conn.ID]; ok && e.fingerprint == fp {
		p.mu.Unlock()
		return e.adapter, nil
	}
	p.mu.Unlock()

	v, err, _ := p.group.Do(strconv.FormatInt(conn.ID, 10)+"|"+fp, func() (any, error) {
		a, err := p.newAdapter(conn, p.logger)
		if err != nil {
			return nil, err
		}
		if err := a.Connect(ctx, conn); err != nil {
			return nil, err
		}

		p.mu.Lock()
		old := p.entries[conn.ID]
		p.entries[conn.ID] = &poolEntry{adapter: a, fingerprint: fp}
		size := len(p.entries)
		p.mu.Unlock()

		if old != nil {
			p.closeAdapter(conn.ID, old.adapter)
		}
		p.metrics.RecordGauge(metrics.OpenConnections, float64(size))
		p.logger.Debug().Int64("connection_id", conn.ID).Str("db_type", string(conn.Kind)).Msg("adapter connected")
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(adapter.Adapter), nil
}

// Evict closes and forgets the adapter for id, if any.
func (p *Pool) Evict(id int64) {
	p.mu.Lock()
	e, ok := p.entries[id]
	delete(p.entries, id)
	size := len(p.entries)
	p.mu.Unlock()

	if ok {
		p.closeAdapter(id, e.adapter)
		p.metrics.RecordGauge(metrics.OpenConnections, float64(size))
	}
}

// Len returns the number of pooled adapters.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Close closes every pooled adapter.
func (p *Pool) Close() error {
	p.mu.Lock()
	entries := p.entries
	p.entries = make(map[int64]*poolEntry)
	p.mu.Unlock()

	for id, e := range entries {
		p.closeAdapter(id, e.adapter)
	}
	p.metrics.RecordGauge(metrics.OpenConnections, 0)
	return nil
}

func (p *Pool) closeAdapter(id int64, a adapter.Adapter) {
	if err := a.Close(); err != nil {
		p.logger.Warn().Err(err).Int64("connection_id", id).Msg("failed to close adapter")
	}
}

func fingerprint(conn *core.Connection, connStr string) string {
	return fmt.Sprintf("%s|%s|%v", conn.Kind, connStr, conn.Params)
}
