package storage

import (
	"time"

	"gorm.io/datatypes"
)

// LookupCacheEntry is one cached nutrition lookup, keyed by normalised food name.
type LookupCacheEntry struct {
	Key       string         `gorm:"column:cache_key;primaryKey;type:varchar(255)"`
	Record    datatypes.JSON `gorm:"column:record;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;not null"`
	ExpiresAt time.Time      `gorm:"column:expires_at;not null;index"`
}

func (LookupCacheEntry) TableName() string {
	return "lookup_cache_entries"
}
