// Package cache stores nutrition lookups by normalised food name.
package cache

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"nutrilens-server-go/internal/domain/food"
	platformerrors "nutrilens-server-go/internal/platform/errors"
)

// Driver identifiers.
const (
	DriverNone   = "none"
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// DefaultRedisPrefix namespaces cache keys in a shared redis.
const DefaultRedisPrefix = "nutrition:lookup:"

// Store is a TTL cache of found nutrient records. Implementations are safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (food.NutrientRecord, bool, error)
	Put(ctx context.Context, key string, rec food.NutrientRecord) error
	Stats(ctx context.Context) (map[string]any, error)
	Close(ctx context.Context) error
}

type Config struct {
	Driver string
	TTL    time.Duration
	SQLite *SQLiteConfig
	Redis  *RedisConfig
}

type SQLiteConfig struct {
	DSN string
}

type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

// Dependencies carries handles owned by the caller.
type Dependencies struct {
	SQLiteDB *gorm.DB
}

// New creates the store selected by cfg.Driver. An empty driver means memory.
func New(cfg Config, deps Dependencies) (Store, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}

	switch driver := strings.ToLower(cfg.Driver); driver {
	case "", DriverMemory:
		return NewMemory(cfg), nil
	case DriverNone:
		return Noop{}, nil
	case DriverSQLite:
		return NewSQLite(deps.SQLiteDB, cfg)
	case DriverRedis:
		return NewRedis(cfg)
	default:
		return nil, platformerrors.New(platformerrors.KindConfig, "cache.new", "unsupported cache driver: "+cfg.Driver)
	}
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) (food.NutrientRecord, bool, error) {
	return food.NutrientRecord{}, false, nil
}

func (Noop) Put(context.Context, string, food.NutrientRecord) error { return nil }

func (Noop) Stats(context.Context) (map[string]any, error) {
	return map[string]any{"driver": DriverNone}, nil
}

func (Noop) Close(context.Context) error { return nil }
