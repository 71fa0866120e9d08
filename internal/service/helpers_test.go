package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shortlink/internal/types"

	"github.com/redis/go-redis/v9"
)

// memStore is an in-memory MappingStore with the same contract as the
// Postgres store: duplicate codes rejected at insert, atomic increments.
type memStore struct {
	mu      sync.Mutex
	seq     int64
	byCode  map[string]*types.Mapping
	lookups int
}

func newMemStore() *memStore {
	return &memStore{byCode: make(map[string]*types.Mapping)}
}

func (s *memStore) InsertMapping(_ context.Context, m *types.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byCode[m.ShortCode]; ok {
		return types.ErrDuplicateCode
	}
	s.seq++
	m.ID = s.seq
	cp := *m
	s.byCode[m.ShortCode] = &cp
	return nil
}

func (s *memStore) MappingByCode(_ context.Context, shortCode string) (*types.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	m, ok := s.byCode[shortCode]
	if !ok {
		return nil, types.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) MappingsByOwner(_ context.Context, ownerRef int64) ([]types.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Mapping
	for _, m := range s.byCode {
		if m.OwnerRef == ownerRef {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *memStore) IncrementClickCount(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.byCode {
		if m.ID == id {
			m.ClickCount++
			return nil
		}
	}
	return types.ErrNotFound
}

func (s *memStore) clickCount(shortCode string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.byCode[shortCode]; ok {
		return m.ClickCount
	}
	return -1
}

func (s *memStore) lookupCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

// alwaysDuplicateStore simulates a store whose keyspace is fully taken.
type alwaysDuplicateStore struct {
	memStore
	inserts int
}

func (s *alwaysDuplicateStore) InsertMapping(_ context.Context, _ *types.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	return types.ErrDuplicateCode
}

// memCache is an in-memory MappingCache; misses surface as redis.Nil like
// the real thing.
type memCache struct {
	mu sync.Mutex
	m  map[string]types.MappingCache
}

func newMemCache() *memCache {
	return &memCache{m: make(map[string]types.MappingCache)}
}

func (c *memCache) Get(_ context.Context, shortCode string) (*types.MappingCache, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mc, ok := c.m[shortCode]
	if !ok {
		return nil, redis.Nil
	}
	cp := mc
	return &cp, nil
}

func (c *memCache) Set(_ context.Context, shortCode string, mc *types.MappingCache, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[shortCode] = *mc
	return nil
}

// stubGen returns scripted codes, then falls back to sequential ones.
type stubGen struct {
	mu    sync.Mutex
	codes []string
	calls int
}

func (g *stubGen) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.calls <= len(g.codes) {
		return g.codes[g.calls-1], nil
	}
	return fmt.Sprintf("gen%04d", g.calls), nil
}

func (g *stubGen) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// captureRecorder collects clicks synchronously for assertions.
type captureRecorder struct {
	mu     sync.Mutex
	clicks []types.Click
}

func (r *captureRecorder) Record(c types.Click) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clicks = append(r.clicks, c)
}

func (r *captureRecorder) recorded() []types.Click {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Click, len(r.clicks))
	copy(out, r.clicks)
	return out
}
