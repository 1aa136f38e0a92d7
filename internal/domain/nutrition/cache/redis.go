package cache

import (
	"context"
	"errors"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"nutrilens-server-go/internal/domain/food"
	platformerrors "nutrilens-server-go/internal/platform/errors"
)

type redisStore struct {
	client *redis.Client
	cfg    Config
	prefix string
}

// NewRedis connects to cfg.Redis.Addr and fails fast when it cannot be pinged.
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil || cfg.Redis.Addr == "" {
		return nil, platformerrors.New(platformerrors.KindConfig, "cache.redis", "redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, platformerrors.Wrap(platformerrors.KindConfig, "cache.redis", "redis ping failed", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &redisStore{client: client, cfg: cfg, prefix: prefix}, nil
}

func (s *redisStore) key(k string) string {
	return s.prefix + k
}

func (s *redisStore) Get(ctx context.Context, key string) (food.NutrientRecord, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return food.NutrientRecord{}, false, nil
	}
	if err != nil {
		return food.NutrientRecord{}, false, platformerrors.Wrap(platformerrors.KindStorage, "cache.redis.get", "redis get", err)
	}
	var rec food.NutrientRecord
	if err := sonic.Unmarshal(data, &rec); err != nil {
		return food.NutrientRecord{}, false, platformerrors.Wrap(platformerrors.KindStorage, "cache.redis.get", "decode cache entry", err)
	}
	return rec, true, nil
}

func (s *redisStore) Put(ctx context.Context, key string, rec food.NutrientRecord) error {
	data, err := sonic.Marshal(rec)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "cache.redis.put", "encode cache entry", err)
	}
	if err := s.client.Set(ctx, s.key(key), data, s.cfg.TTL).Err(); err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "cache.redis.put", "redis set", err)
	}
	return nil
}

func (s *redisStore) Stats(ctx context.Context) (map[string]any, error) {
	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindStorage, "cache.redis.stats", "redis scan", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return map[string]any{
		"driver":  DriverRedis,
		"entries": count,
		"prefix":  s.prefix,
	}, nil
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}
