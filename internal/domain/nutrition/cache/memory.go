package cache

import (
	"context"

	"github.com/jellydator/ttlcache/v3"

	"nutrilens-server-go/internal/domain/food"
)

type memoryStore struct {
	cache *ttlcache.Cache[string, food.NutrientRecord]
}

// NewMemory builds an in-process cache. Entries expire after cfg.TTL.
func NewMemory(cfg Config) Store {
	c := ttlcache.New[string, food.NutrientRecord](
		ttlcache.WithTTL[string, food.NutrientRecord](cfg.TTL),
		ttlcache.WithDisableTouchOnHit[string, food.NutrientRecord](),
	)
	go c.Start()
	return &memoryStore{cache: c}
}

func (s *memoryStore) Get(_ context.Context, key string) (food.NutrientRecord, bool, error) {
	item := s.cache.Get(key)
	if item == nil || item.IsExpired() {
		return food.NutrientRecord{}, false, nil
	}
	return item.Value(), true, nil
}

func (s *memoryStore) Put(_ context.Context, key string, rec food.NutrientRecord) error {
	s.cache.Set(key, rec, ttlcache.DefaultTTL)
	return nil
}

func (s *memoryStore) Stats(context.Context) (map[string]any, error) {
	m := s.cache.Metrics()
	return map[string]any{
		"driver":     DriverMemory,
		"entries":    s.cache.Len(),
		"hits":       m.Hits,
		"misses":     m.Misses,
		"insertions": m.Insertions,
		"evictions":  m.Evictions,
	}, nil
}

func (s *memoryStore) Close(context.Context) error {
	s.cache.Stop()
	return nil
}
