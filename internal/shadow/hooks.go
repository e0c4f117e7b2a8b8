package shadow

import (
	"context"
	"sync"

	"github.com/canonica-labs/geometa/internal/metastore"
)

// MutationFilter rewrites an added or updated mutation before its value is
// converted.
type MutationFilter func(ctx context.Context, m Mutation, t metastore.ObjectType) Mutation

// PurgeFilter rewrites the source row ids whose shadow rows are deleted.
type PurgeFilter func(ctx context.Context, ids []int64, t metastore.ObjectType, objectID int64, key string, value any) []int64

// PostBackfillHook runs after the backfill job has scanned every table.
type PostBackfillHook func(ctx context.Context) error

// Hooks are the extension points of the synchronizer and the backfill job.
// Filters run in registration order.
type Hooks struct {
	mu           sync.RWMutex
	mutation     []MutationFilter
	purge        []PurgeFilter
	postBackfill []PostBackfillHook
}

// NewHooks creates an empty hook set.
func NewHooks() *Hooks {
	return &Hooks{}
}

// AddMutationFilter registers a mutation filter.
func (h *Hooks) AddMutationFilter(f MutationFilter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mutation = append(h.mutation, f)
}

// AddPurgeFilter registers a purge filter.
func (h *Hooks) AddPurgeFilter(f PurgeFilter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.purge = append(h.purge, f)
}

// AddPostBackfillHook registers a post-backfill hook.
func (h *Hooks) AddPostBackfillHook(f PostBackfillHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.postBackfill = append(h.postBackfill, f)
}

// RewriteMutation runs every mutation filter.
func (h *Hooks) RewriteMutation(ctx context.Context, m Mutation) Mutation {
	h.mu.RLock()
	filters := h.mutation
	h.mu.RUnlock()
	for _, f := range filters {
		m = f(ctx, m, m.ObjectType)
	}
	return m
}

// RewritePurgeSet runs every purge filter.
func (h *Hooks) RewritePurgeSet(ctx context.Context, ids []int64, m Mutation) []int64 {
	h.mu.RLock()
	filters := h.purge
	h.mu.RUnlock()
	for _, f := range filters {
		ids = f(ctx, ids, m.ObjectType, m.ObjectID, m.Key, m.Value)
	}
	return ids
}

// RunPostBackfill runs every post-backfill hook and returns the first error.
// A failing hook does not stop the others.
func (h *Hooks) RunPostBackfill(ctx context.Context) error {
	h.mu.RLock()
	hooks := h.postBackfill
	h.mu.RUnlock()

	var firstErr error
	for _, f := range hooks {
		if err := f(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
