package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"shortlink/internal/types"
)

var ErrInvalidURL = errors.New("invalid target url")

// MappingStore is the durable short-code → URL store.
type MappingStore interface {
	InsertMapping(ctx context.Context, m *types.Mapping) error
	MappingByCode(ctx context.Context, shortCode string) (*types.Mapping, error)
	MappingsByOwner(ctx context.Context, ownerRef int64) ([]types.Mapping, error)
}

// MappingCache is the hot-path cache in front of the store. Get reports a
// miss as redis.Nil.
type MappingCache interface {
	Get(ctx context.Context, shortCode string) (*types.MappingCache, error)
	Set(ctx context.Context, shortCode string, mc *types.MappingCache, expiration time.Duration) error
}

// CodeGenerator produces candidate short codes.
type CodeGenerator interface {
	Generate() (string, error)
}

// ClickRecorder accepts fire-and-forget click events.
type ClickRecorder interface {
	Record(c types.Click)
}

// Shortener creates mappings. Uniqueness is settled at insert time: a
// duplicate code from the generator shows up as the store's unique-constraint
// violation and triggers a regenerate, bounded by maxAttempts.
type Shortener struct {
	store       MappingStore
	cache       MappingCache
	gen         CodeGenerator
	maxAttempts int
	cacheTTL    time.Duration
}

func NewShortener(store MappingStore, cache MappingCache, gen CodeGenerator, maxAttempts int, cacheTTL time.Duration) *Shortener {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Shortener{
		store:       store,
		cache:       cache,
		gen:         gen,
		maxAttempts: maxAttempts,
		cacheTTL:    cacheTTL,
	}
}

// Shorten validates the target, allocates a code and persists the mapping.
// ownerRef arrives pre-validated from the caller's auth layer.
func (s *Shortener) Shorten(ctx context.Context, targetURL string, ownerRef int64) (*types.Mapping, error) {
	if err := validateTargetURL(targetURL); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		code, err := s.gen.Generate()
		if err != nil {
			return nil, err
		}

		m := &types.Mapping{
			ShortCode: code,
			TargetURL: targetURL,
			OwnerRef:  ownerRef,
			CreatedAt: time.Now().UTC(),
		}

		err = s.store.InsertMapping(ctx, m)
		if errors.Is(err, types.ErrDuplicateCode) {
			slog.Debug("short code collision, regenerating",
				"code", code, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}

		if err := s.cache.Set(ctx, code, &types.MappingCache{ID: m.ID, TargetURL: m.TargetURL}, s.cacheTTL); err != nil {
			slog.Warn("failed to warm up cache", "code", code, "error", err)
		}
		return m, nil
	}

	return nil, types.ErrExhaustedKeyspace
}

func validateTargetURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}
