package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgallion1/bookmarkd/internal/store"
	"golang.org/x/sync/singleflight"
)

// Registry holds the loaded documents. Records are persisted to the store;
// a document missing from memory is rebuilt from its record on first use.
type Registry struct {
	mu    sync.RWMutex
	docs  map[string]*Document
	store store.Store
	log   *slog.Logger
	stats *ResolveStats

	// Concurrent misses for one ID share a single rebuild.
	rebuild singleflight.Group
}

func NewRegistry(st store.Store, log *slog.Logger, stats *ResolveStats) *Registry {
	return &Registry{
		docs:  make(map[string]*Document),
		store: st,
		log:   log,
		stats: stats,
	}
}

// Load persists the record and replaces any loaded document with the same
// ID. Handlers that already hold the previous document keep using it.
func (r *Registry) Load(ctx context.Context, rec *store.Record) (*Document, error) {
	if err := r.store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist document %s: %w", rec.ID, err)
	}
	doc := Load(rec, r.log, r.stats)

	r.mu.Lock()
	r.docs[rec.ID] = doc
	r.mu.Unlock()
	return doc, nil
}

// Get returns the loaded document, rebuilding it from the store if needed.
func (r *Registry) Get(ctx context.Context, id string) (*Document, error) {
	r.mu.RLock()
	doc, ok := r.docs[id]
	r.mu.RUnlock()
	if ok {
		return doc, nil
	}

	v, err, _ := r.rebuild.Do(id, func() (any, error) {
		rec, err := r.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if doc, ok := r.docs[id]; ok {
			return doc, nil
		}
		doc := Load(rec, r.log, r.stats)
		r.docs[id] = doc
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Document), nil
}

// Remove tears the document down: the index is discarded and the record
// deleted.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	_, cached := r.docs[id]
	delete(r.docs, id)
	r.mu.Unlock()

	err := r.store.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) && cached {
		return nil
	}
	return err
}

// List summarizes every stored document.
func (r *Registry) List(ctx context.Context) ([]Summary, error) {
	recs, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(recs))
	for _, rec := range recs {
		r.mu.RLock()
		doc, ok := r.docs[rec.ID]
		r.mu.RUnlock()
		if ok {
			out = append(out, doc.Summary())
			continue
		}
		s := Summary{
			ID:          rec.ID,
			Filename:    rec.Filename,
			Annotations: len(rec.Annotations),
			CreatedAt:   rec.CreatedAt,
		}
		if rec.Outline != nil {
			s.Title = rec.Outline.Title
			s.PageCount = rec.Outline.PageCount
			s.Bookmarks = rec.Outline.Count()
		}
		out = append(out, s)
	}
	return out, nil
}

// Prune drops loaded documents whose records have expired from the store.
func (r *Registry) Prune(ctx context.Context) int {
	r.mu.RLock()
	ids := make([]string, 0, len(r.docs))
	for id := range r.docs {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	pruned := 0
	for _, id := range ids {
		if _, err := r.store.Get(ctx, id); errors.Is(err, store.ErrNotFound) {
			r.mu.Lock()
			delete(r.docs, id)
			r.mu.Unlock()
			pruned++
		}
	}
	if pruned > 0 {
		r.log.Info("pruned expired documents", "count", pruned)
	}
	return pruned
}

// Stats returns the resolver latency tracker shared by all documents.
func (r *Registry) Stats() *ResolveStats {
	return r.stats
}
