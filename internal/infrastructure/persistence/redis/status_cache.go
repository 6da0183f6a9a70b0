package redis

import (
	"context"
	"errors"
	"log/slog"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/encadrement"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENCADREMENT STATUS CACHE
// ══════════════════════════════════════════════════════════════════════════════

// EncadrementStatusCache is a read-through cache in front of the status
// authorization checks made by the session, messaging, progress and resource
// paths. Lifecycle commands invalidate the entry eagerly; the short TTL only
// bounds staleness when an invalidation is lost.
//
// Redis being down degrades to reading through to the source: the cache is
// never a correctness dependency.
type EncadrementStatusCache struct {
	cache  *Cache
	source encadrement.StatusReader
	logger *slog.Logger
}

// NewEncadrementStatusCache creates a new EncadrementStatusCache.
func NewEncadrementStatusCache(cache *Cache, source encadrement.StatusReader, logger *slog.Logger) *EncadrementStatusCache {
	return &EncadrementStatusCache{
		cache:  cache,
		source: source,
		logger: logger.With("component", "status_cache"),
	}
}

// GetStatus implements encadrement.StatusReader.
func (c *EncadrementStatusCache) GetStatus(ctx context.Context, id shared.EncadrementID) (encadrement.Status, error) {
	key := StatusKey(id.String())

	cached, err := c.cache.GetString(ctx, key)
	if err == nil {
		status := encadrement.Status(cached)
		if status.IsValid() {
			return status, nil
		}
		// A corrupt entry falls through to the source and gets overwritten.
	} else if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("status cache read failed, falling back to source",
			"encadrement_id", id.String(),
			"error", err,
		)
	}

	status, err := c.source.GetStatus(ctx, id)
	if err != nil {
		return "", err
	}

	if err := c.cache.SetString(ctx, key, status.String(), TTLStatus); err != nil {
		c.logger.Warn("status cache write failed",
			"encadrement_id", id.String(),
			"error", err,
		)
	}

	return status, nil
}

// Invalidate drops the cached status after a lifecycle mutation.
func (c *EncadrementStatusCache) Invalidate(ctx context.Context, id shared.EncadrementID) error {
	if err := c.cache.Delete(ctx, StatusKey(id.String())); err != nil {
		c.logger.Warn("status cache invalidation failed",
			"encadrement_id", id.String(),
			"error", err,
		)
		return err
	}
	return nil
}
