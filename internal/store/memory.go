package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a thread-safe in-memory record registry with TTL eviction.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]*Record
	ttl  time.Duration
}

// NewMemoryStore creates a store whose records expire ttl after their last
// update. A ttl of zero keeps records forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*Record),
		ttl:  ttl,
	}
}

func (s *MemoryStore) Put(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.docs[rec.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.docs[id]
	if !ok || s.expired(rec, time.Now()) {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

// List returns live records ordered by creation time.
func (s *MemoryStore) List(ctx context.Context) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	out := make([]*Record, 0, len(s.docs))
	for _, rec := range s.docs {
		if s.expired(rec, now) {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Cleanup removes expired records.
func (s *MemoryStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, rec := range s.docs {
		if s.expired(rec, now) {
			delete(s.docs, id)
		}
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) expired(rec *Record, now time.Time) bool {
	return s.ttl > 0 && now.Sub(rec.UpdatedAt) > s.ttl
}
