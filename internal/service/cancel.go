package service

import (
	"context"
	"errors"
	"sync"

	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
)

// errCanceledByCaller is the cause attached to contexts cancelled through
// the registry, so callers can tell it apart from a timeout.
var errCanceledByCaller = errors.New("canceled by caller")

// CancelRegistry maps in-flight query ids to their cancel functions.
type CancelRegistry struct {
	mu      sync.Mutex
	entries map[string]*cancelEntry
}

// cancelEntry is compared by pointer so a release only removes the
// registration it created.
type cancelEntry struct {
	cancel context.CancelCauseFunc
}

// NewCancelRegistry creates an empty registry.
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{entries: make(map[string]*cancelEntry)}
}

// Register derives a cancellable context for queryID. The returned release
// func must be called when the query finishes; it is safe to call twice.
func (r *CancelRegistry) Register(parent context.Context, queryID string) (context.Context, func(), error) {
	ctx, cancel := context.WithCancelCause(parent)

	r.mu.Lock()
	if _, exists := r.entries[queryID]; exists {
		r.mu.Unlock()
		cancel(nil)
		return nil, nil, qerr.Newf(qerr.CodeInvalidRequest, "query %s is already running", queryID)
	}
	entry := &cancelEntry{cancel: cancel}
	r.entries[queryID] = entry
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		if r.entries[queryID] == entry {
			delete(r.entries, queryID)
		}
		r.mu.Unlock()
		cancel(nil)
	}
	return ctx, release, nil
}

// Cancel signals the query and removes it from the registry.
func (r *CancelRegistry) Cancel(queryID string) error {
	r.mu.Lock()
	entry, ok := r.entries[queryID]
	delete(r.entries, queryID)
	r.mu.Unlock()

	if !ok {
		return qerr.Newf(qerr.CodeNotFound, "query %s not found", queryID)
	}
	entry.cancel(errCanceledByCaller)
	return nil
}

// Len returns the number of in-flight queries.
func (r *CancelRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
