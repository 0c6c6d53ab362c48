package redis

import (
	"context"
	"errors"
	"time"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/badge"
	"github.com/TEJ42000/ALLMS-sub004/pkg/circuitbreaker"
	"github.com/TEJ42000/ALLMS-sub004/pkg/logger"
)

// KV is the subset of Cache the catalog cache needs.
type KV interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHED BADGE REPOSITORY
// Keeps the catalog read on every activity out of the database. User badge
// operations always go to the underlying store. Cache failures degrade to
// store reads and never fail the caller.
// ══════════════════════════════════════════════════════════════════════════════

// CachedBadgeRepository decorates a badge.Repository.
type CachedBadgeRepository struct {
	badge.Repository

	kv      KV
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

// NewCachedBadgeRepository wraps next. A nil breaker disables tripping.
func NewCachedBadgeRepository(next badge.Repository, kv KV, ttl time.Duration, breaker *circuitbreaker.CircuitBreaker, log *logger.Logger) *CachedBadgeRepository {
	if ttl <= 0 {
		ttl = TTLBadgeCatalog
	}
	if log == nil {
		log = logger.Nop()
	}
	if breaker == nil {
		breaker = circuitbreaker.New("badge-cache", circuitbreaker.WithFailureThreshold(1<<30))
	}
	return &CachedBadgeRepository{
		Repository: next,
		kv:         kv,
		ttl:        ttl,
		breaker:    breaker,
		log:        log.With(logger.Component("badge_cache")),
	}
}

// ListDefinitions serves the catalog from cache when possible.
func (r *CachedBadgeRepository) ListDefinitions(ctx context.Context, includeInactive bool) ([]badge.Definition, error) {
	key := BadgeCatalogKey(includeInactive)

	var cached []badge.Definition
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		err := r.kv.Get(ctx, key, &cached)
		if errors.Is(err, ErrCacheMiss) {
			// A miss is a healthy answer.
			return nil
		}
		return err
	})
	switch {
	case err == nil && cached != nil:
		return cached, nil
	case err != nil && !circuitbreaker.IsRejected(err):
		r.log.Warn("badge catalog cache read failed", logger.Err(err))
	}

	defs, err := r.Repository.ListDefinitions(ctx, includeInactive)
	if err != nil {
		return nil, err
	}

	if err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.kv.Set(ctx, key, defs, r.ttl)
	}); err != nil && !circuitbreaker.IsRejected(err) {
		r.log.Warn("badge catalog cache write failed", logger.Err(err))
	}
	return defs, nil
}

// UpsertDefinition writes through and invalidates both catalog views.
func (r *CachedBadgeRepository) UpsertDefinition(ctx context.Context, d badge.Definition) error {
	if err := r.Repository.UpsertDefinition(ctx, d); err != nil {
		return err
	}
	r.Invalidate(ctx)
	return nil
}

// Invalidate drops the cached catalog.
func (r *CachedBadgeRepository) Invalidate(ctx context.Context) {
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.kv.Delete(ctx, BadgeCatalogKey(false), BadgeCatalogKey(true))
	})
	if err != nil {
		// Entries expire after ttl regardless.
		r.log.Warn("badge catalog invalidation failed", logger.Err(err))
	}
}
