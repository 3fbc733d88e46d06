package service

import (
	"context"
	"sort"
	"sync"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
)

type memStore struct {
	mu      sync.Mutex
	conns   map[int64]core.Connection
	history []core.QueryHistory
}

func newMemStore(conns ...*core.Connection) *memStore {
	s := &memStore{conns: make(map[int64]core.Connection)}
	for _, c := range conns {
		s.conns[c.ID] = *c
	}
	return s
}

func (s *memStore) GetConnection(_ context.Context, id int64) (*core.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[id]
	if !ok {
		return nil, qerr.Newf(qerr.CodeNotFound, "connection %d not found", id)
	}
	return &c, nil
}

func (s *memStore) ListConnections(context.Context) ([]core.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Connection, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) ActiveConnections(ctx context.Context) ([]core.Connection, error) {
	all, _ := s.ListConnections(ctx)
	var out []core.Connection
	for _, c := range all {
		if c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memStore) SaveConnection(_ context.Context, conn *core.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn.ID] = *conn
	return nil
}

func (s *memStore) SetActive(_ context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[id]
	if !ok {
		return qerr.Newf(qerr.CodeNotFound, "connection %d not found", id)
	}
	c.Active = active
	s.conns[id] = c
	return nil
}

func (s *memStore) DeleteConnection(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[id]; !ok {
		return qerr.Newf(qerr.CodeNotFound, "connection %d not found", id)
	}
	delete(s.conns, id)
	return nil
}

func (s *memStore) RecordQuery(_ context.Context, h *core.QueryHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h.ID = int64(len(s.history) + 1)
	s.history = append(s.history, *h)
	return nil
}

func (s *memStore) ListHistory(_ context.Context, limit int) ([]core.QueryHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.QueryHistory, 0, limit)
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.history[i])
	}
	return out, nil
}

func (s *memStore) ToggleFavorite(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.history {
		if s.history[i].ID == id {
			s.history[i].Favorite = !s.history[i].Favorite
			return s.history[i].Favorite, nil
		}
	}
	return false, qerr.Newf(qerr.CodeNotFound, "history entry %d not found", id)
}

func (s *memStore) ClearHistory(_ context.Context, keepFavorites bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []core.QueryHistory
	for _, h := range s.history {
		if keepFavorites && h.Favorite {
			kept = append(kept, h)
		}
	}
	removed := int64(len(s.history) - len(kept))
	s.history = kept
	return removed, nil
}

// blockingAdapter ignores its context and blocks until release is closed.
type blockingAdapter struct {
	release  chan struct{}
	closed   bool
	received []string
	mu       sync.Mutex

	// connectGate, when set, holds Connect until it is closed.
	connectGate chan struct{}
	connects    int
}

func newBlockingAdapter() *blockingAdapter {
	return &blockingAdapter{release: make(chan struct{})}
}

func (b *blockingAdapter) Kind() core.BackendKind { return core.BackendMySQL }

func (b *blockingAdapter) Connect(context.Context, *core.Connection) error {
	b.mu.Lock()
	b.connects++
	gate := b.connectGate
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return nil
}
func (b *blockingAdapter) Ping(context.Context) error { return nil }

func (b *blockingAdapter) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *blockingAdapter) ServerVersion(context.Context) (string, error) { return "8.0.36", nil }

func (b *blockingAdapter) Execute(_ context.Context, query string) (*core.QueryResult, error) {
	b.mu.Lock()
	b.received = append(b.received, query)
	b.mu.Unlock()
	<-b.release
	return &core.QueryResult{Columns: []string{"n"}, Rows: [][]core.Value{{core.IntValue(1)}}}, nil
}

func (b *blockingAdapter) Explain(context.Context, string) (*core.ExecutionPlan, error) {
	<-b.release
	return core.NewExecutionPlan(nil), nil
}

func (b *blockingAdapter) ListTables(context.Context) ([]core.TableInfo, error) { return nil, nil }

func (b *blockingAdapter) GetTableSchema(context.Context, string) (*core.TableSchema, error) {
	return nil, nil
}

func (b *blockingAdapter) GetIndexes(context.Context, string) ([]core.IndexInfo, error) {
	return nil, nil
}

func (b *blockingAdapter) connectCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connects
}

func (b *blockingAdapter) queries() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.received...)
}

type fakeAdvisor struct {
	sql string
	err error
}

func (f *fakeAdvisor) Advise(_ context.Context, sql string, plan *core.ExecutionPlan) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	f.sql = sql
	return "add an index on email", sql + " /* indexed */", nil
}
