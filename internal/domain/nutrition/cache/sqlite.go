package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nutrilens-server-go/internal/domain/food"
	platformerrors "nutrilens-server-go/internal/platform/errors"
	"nutrilens-server-go/internal/platform/storage"
)

type sqliteStore struct {
	db    *gorm.DB
	ttl   time.Duration
	owned bool
}

// NewSQLite stores entries in lookup_cache_entries. When db is nil the store opens
// cfg.SQLite.DSN itself and closes it on Close.
func NewSQLite(db *gorm.DB, cfg Config) (Store, error) {
	owned := false
	if db == nil {
		if cfg.SQLite == nil || cfg.SQLite.DSN == "" {
			return nil, platformerrors.New(platformerrors.KindConfig, "cache.sqlite", "sqlite driver requires a database handle or dsn")
		}
		opened, err := storage.Open(cfg.SQLite.DSN)
		if err != nil {
			return nil, err
		}
		db, owned = opened, true
	}
	return &sqliteStore{db: db, ttl: cfg.TTL, owned: owned}, nil
}

func (s *sqliteStore) Get(ctx context.Context, key string) (food.NutrientRecord, bool, error) {
	var entry storage.LookupCacheEntry
	err := s.db.WithContext(ctx).
		Where("cache_key = ? AND expires_at > ?", key, time.Now()).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return food.NutrientRecord{}, false, nil
	}
	if err != nil {
		return food.NutrientRecord{}, false, platformerrors.Wrap(platformerrors.KindStorage, "cache.sqlite.get", "query cache entry", err)
	}

	var rec food.NutrientRecord
	if err := sonic.Unmarshal(entry.Record, &rec); err != nil {
		return food.NutrientRecord{}, false, platformerrors.Wrap(platformerrors.KindStorage, "cache.sqlite.get", "decode cache entry", err)
	}
	return rec, true, nil
}

func (s *sqliteStore) Put(ctx context.Context, key string, rec food.NutrientRecord) error {
	data, err := sonic.Marshal(rec)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "cache.sqlite.put", "encode cache entry", err)
	}
	now := time.Now()
	entry := storage.LookupCacheEntry{
		Key:       key,
		Record:    data,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&entry).Error
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "cache.sqlite.put", "upsert cache entry", err)
	}
	return nil
}

// Stats also purges expired rows.
func (s *sqliteStore) Stats(ctx context.Context) (map[string]any, error) {
	db := s.db.WithContext(ctx)
	purged := db.Where("expires_at <= ?", time.Now()).Delete(&storage.LookupCacheEntry{})
	if purged.Error != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "cache.sqlite.stats", "purge expired entries", purged.Error)
	}

	var count int64
	if err := db.Model(&storage.LookupCacheEntry{}).Count(&count).Error; err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "cache.sqlite.stats", "count entries", err)
	}
	return map[string]any{
		"driver":  DriverSQLite,
		"entries": count,
		"purged":  purged.RowsAffected,
	}, nil
}

func (s *sqliteStore) Close(context.Context) error {
	if !s.owned {
		return nil
	}
	return storage.Close(s.db)
}
