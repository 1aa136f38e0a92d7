package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"nutrilens-server-go/internal/domain/food"
	platformerrors "nutrilens-server-go/internal/platform/errors"
	"nutrilens-server-go/internal/platform/storage"
)

func sampleRecord() food.NutrientRecord {
	var rec food.NutrientRecord
	rec.Set(food.Calories, food.Measured(52, "kcal"))
	rec.Set(food.Fat, food.Measured(0.2, "g"))
	return rec
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "apple"); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}
	if err := s.Put(ctx, "apple", sampleRecord()); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := s.Get(ctx, "apple")
	if err != nil || !ok {
		t.Fatalf("get after put: ok=%v err=%v", ok, err)
	}
	if got != sampleRecord() {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if err := s.Put(ctx, "apple", food.NutrientRecord{Protein: food.Measured(1, "g")}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _, _ = s.Get(ctx, "apple")
	if got.Protein.Value != 1 || got.Calories.Available() {
		t.Fatalf("overwrite not applied: %+v", got)
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats["driver"] == nil {
		t.Fatalf("stats missing driver: %v", stats)
	}
}

func TestMemoryStore(t *testing.T) {
	s, err := New(Config{Driver: DriverMemory, TTL: time.Minute}, Dependencies{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close(context.Background())
	exerciseStore(t, s)
}

func TestMemoryStoreExpires(t *testing.T) {
	s := NewMemory(Config{TTL: 20 * time.Millisecond})
	defer s.Close(context.Background())

	_ = s.Put(context.Background(), "bread", sampleRecord())
	time.Sleep(60 * time.Millisecond)
	if _, ok, _ := s.Get(context.Background(), "bread"); ok {
		t.Fatal("entry should have expired")
	}
}

func TestSQLiteStore(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer storage.Close(db)

	s, err := New(Config{Driver: DriverSQLite, TTL: time.Minute}, Dependencies{SQLiteDB: db})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	exerciseStore(t, s)

	stats, _ := s.Stats(context.Background())
	if stats["entries"] != int64(1) {
		t.Fatalf("expected one entry, got %v", stats)
	}
}

func TestSQLiteStoreOwnsDSN(t *testing.T) {
	s, err := NewSQLite(nil, Config{TTL: -time.Second, SQLite: &SQLiteConfig{DSN: filepath.Join(t.TempDir(), "own.db")}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close(context.Background())

	if err := s.Put(context.Background(), "stale", sampleRecord()); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok, _ := s.Get(context.Background(), "stale"); ok {
		t.Fatal("already-expired entry must not be served")
	}
	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats["purged"] != int64(1) {
		t.Fatalf("expected expired row to be purged, got %v", stats)
	}
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	s, err := New(Config{Driver: DriverRedis, TTL: time.Minute, Redis: &RedisConfig{Addr: mr.Addr()}}, Dependencies{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	exerciseStore(t, s)

	if !mr.Exists(DefaultRedisPrefix + "apple") {
		t.Fatal("expected prefixed key in redis")
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := s.Get(context.Background(), "apple"); ok {
		t.Fatal("entry should expire with the ttl")
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	if _, err := New(Config{Driver: "memcached"}, Dependencies{}); !platformerrors.IsKind(err, platformerrors.KindConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
	if _, err := New(Config{Driver: DriverRedis}, Dependencies{}); err == nil {
		t.Fatal("redis without address must fail")
	}
	s, err := New(Config{Driver: DriverNone}, Dependencies{})
	if err != nil {
		t.Fatalf("none driver: %v", err)
	}
	_ = s.Put(context.Background(), "x", sampleRecord())
	if _, ok, _ := s.Get(context.Background(), "x"); ok {
		t.Fatal("none driver must not store")
	}
}
