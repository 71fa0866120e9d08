package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"shortlink/internal/metrics"
	"shortlink/internal/types"

	"github.com/redis/go-redis/v9"
)

// Resolver serves the redirect hot path: cache first, store on miss, and a
// fire-and-forget click enqueue on every hit. The lookup is the only
// correctness-critical part; recording never delays or fails a redirect.
type Resolver struct {
	store    MappingStore
	cache    MappingCache
	recorder ClickRecorder
	cacheTTL time.Duration
}

func NewResolver(store MappingStore, cache MappingCache, recorder ClickRecorder, cacheTTL time.Duration) *Resolver {
	return &Resolver{
		store:    store,
		cache:    cache,
		recorder: recorder,
		cacheTTL: cacheTTL,
	}
}

// Resolve returns the redirect target for a short code, or
// types.ErrNotFound. A miss is an expected outcome, not an error condition
// worth logging.
func (r *Resolver) Resolve(ctx context.Context, shortCode, ip string) (string, error) {
	mc, err := r.cache.Get(ctx, shortCode)
	if err == nil {
		metrics.CacheHits.Inc()
		r.track(mc.ID, shortCode, ip)
		return mc.TargetURL, nil
	}
	if !errors.Is(err, redis.Nil) {
		slog.Warn("cache lookup failed", "code", shortCode, "error", err)
	}
	metrics.CacheMisses.Inc()

	m, err := r.store.MappingByCode(ctx, shortCode)
	if err != nil {
		return "", err
	}

	if err := r.cache.Set(ctx, shortCode, &types.MappingCache{ID: m.ID, TargetURL: m.TargetURL}, r.cacheTTL); err != nil {
		slog.Warn("failed to warm up cache", "code", shortCode, "error", err)
	}

	r.track(m.ID, shortCode, ip)
	return m.TargetURL, nil
}

// track hands the click to the recorder. Record is bounded and never blocks
// past the overflow ceiling, so it is safe to call inline.
func (r *Resolver) track(mappingID int64, shortCode, ip string) {
	r.recorder.Record(types.Click{
		MappingID:  mappingID,
		ShortCode:  shortCode,
		IP:         ip,
		OccurredAt: time.Now().UTC(),
	})
}
