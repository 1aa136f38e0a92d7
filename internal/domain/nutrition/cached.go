package nutrition

import (
	"context"

	"nutrilens-server-go/internal/domain/food"
	"nutrilens-server-go/internal/domain/nutrition/cache"
	"nutrilens-server-go/internal/platform/logging"
)

// CachedLookup serves repeated names from a cache.Store. Only found records are
// cached, and cache failures fall through to the wrapped Lookup.
type CachedLookup struct {
	next   Lookup
	store  cache.Store
	logger *logging.Logger
}

func NewCachedLookup(next Lookup, store cache.Store, logger *logging.Logger) *CachedLookup {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &CachedLookup{next: next, store: store, logger: logger}
}

func (c *CachedLookup) Lookup(ctx context.Context, name string) (food.NutrientRecord, error) {
	key := NormalizeName(name)
	if key == "" {
		return food.NutrientRecord{}, ErrNotFound
	}

	rec, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		c.logger.WarnTag("CACHE", "get %q failed, bypassing cache: %v", key, err)
	case ok:
		c.logger.DebugTag("CACHE", "hit %q", key)
		return rec, nil
	}

	rec, err = c.next.Lookup(ctx, name)
	if err != nil {
		return rec, err
	}
	if err := c.store.Put(ctx, key, rec); err != nil {
		c.logger.WarnTag("CACHE", "put %q failed: %v", key, err)
	}
	return rec, nil
}

// Stats reports the underlying store statistics.
func (c *CachedLookup) Stats(ctx context.Context) (map[string]any, error) {
	return c.store.Stats(ctx)
}
