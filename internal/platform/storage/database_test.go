package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func TestOpenAppliesMigrations(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "cache.db")
	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer Close(db)

	if !db.Migrator().HasTable("lookup_cache_entries") {
		t.Fatal("expected lookup_cache_entries table")
	}

	entry := LookupCacheEntry{
		Key:       "apple",
		Record:    []byte(`{"calories":{"value":52,"unit":"kcal"}}`),
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("insert entry: %v", err)
	}

	var applied int64
	if err := db.Model(&MigrationRecord{}).Count(&applied).Error; err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied != 1 {
		t.Fatalf("applied migrations = %d, want 1", applied)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "reopen.db")
	for i := 0; i < 2; i++ {
		db, err := Open(dsn)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		var applied int64
		db.Model(&MigrationRecord{}).Count(&applied)
		if applied != 1 {
			t.Fatalf("open #%d: applied migrations = %d, want 1", i+1, applied)
		}
		Close(db)
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}
