package sqlstore

import (
	"context"
	"fmt"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/philippzhuravlev/DTUEvent/core"
)

// ActivePagesCacheKey is the cache entry holding the active page listing.
const ActivePagesCacheKey = "dtuevent::pages::active::v1"

// CachedPageDirectory serves ListActivePages from cache and drops the entry on every write.
type CachedPageDirectory struct {
	base  core.PageDirectory
	cache repositorycache.CacheService
}

func NewCachedPageDirectory(
	base core.PageDirectory,
	cacheService repositorycache.CacheService,
) (*CachedPageDirectory, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base page directory is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: page cache service is required")
	}
	return &CachedPageDirectory{base: base, cache: cacheService}, nil
}

// NewPageCacheService builds an in-process cache with the given ttl.
func NewPageCacheService(ttl time.Duration) (repositorycache.CacheService, error) {
	config := repositorycache.DefaultConfig()
	if ttl > 0 {
		config.TTL = ttl
	}
	return repositorycache.NewCacheService(config)
}

func (s *CachedPageDirectory) ListActivePages(ctx context.Context) ([]core.Page, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached page directory is not configured")
	}
	pages, err := repositorycache.GetOrFetch(ctx, s.cache, ActivePagesCacheKey, func(ctx context.Context) ([]core.Page, error) {
		return s.base.ListActivePages(ctx)
	})
	if err != nil {
		return nil, err
	}
	return append([]core.Page(nil), pages...), nil
}

func (s *CachedPageDirectory) UpsertLinkedPage(ctx context.Context, link core.PageLink) error {
	if s == nil || s.base == nil {
		return fmt.Errorf("sqlstore: cached page directory is not configured")
	}
	if err := s.base.UpsertLinkedPage(ctx, link); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

func (s *CachedPageDirectory) RecordRefreshSuccess(ctx context.Context, pageID string, refreshedAt time.Time, expiresAt time.Time) error {
	if s == nil || s.base == nil {
		return fmt.Errorf("sqlstore: cached page directory is not configured")
	}
	if err := s.base.RecordRefreshSuccess(ctx, pageID, refreshedAt, expiresAt); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

func (s *CachedPageDirectory) RecordRefreshFailure(ctx context.Context, pageID string, message string, attemptedAt time.Time) error {
	if s == nil || s.base == nil {
		return fmt.Errorf("sqlstore: cached page directory is not configured")
	}
	if err := s.base.RecordRefreshFailure(ctx, pageID, message, attemptedAt); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

func (s *CachedPageDirectory) invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, ActivePagesCacheKey)
}
