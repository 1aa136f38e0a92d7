package nutrition

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"nutrilens-server-go/internal/domain/food"
	"nutrilens-server-go/internal/domain/nutrition/cache"
	"nutrilens-server-go/internal/platform/config"
	platformerrors "nutrilens-server-go/internal/platform/errors"
	testhelpers "nutrilens-server-go/internal/platform/testing"
)

const appleResponse = `{"totalHits":1,"foods":[{"fdcId":1,"description":"Apples, raw","foodNutrients":[
{"nutrientName":"Energy","unitName":"kJ","value":218},
{"nutrientName":"Energy","unitName":"KCAL","value":52},
{"nutrientName":"Protein","unitName":"G","value":0.26},
{"nutrientName":"Total lipid (fat)","unitName":"G","value":0.17},
{"nutrientName":"Fiber, total dietary","unitName":"G","value":2.4}
]}]}`

func newUSDA(t *testing.T, handler http.HandlerFunc) (*USDAClient, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	client := NewUSDAClient(config.NutritionConfig{BaseURL: srv.URL, APIKey: "k", PageSize: 1}, srv.Client(), testhelpers.SetupTestLogger(t))
	return client, &calls
}

func TestUSDAClientLookup(t *testing.T) {
	client, _ := newUSDA(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/foods/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("query") != "Apple" || q.Get("pageSize") != "1" || q.Get("api_key") != "k" {
			t.Errorf("unexpected query %v", q)
		}
		io.WriteString(w, appleResponse)
	})

	rec, err := client.Lookup(context.Background(), "Apple")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec.Calories != food.Measured(52, "KCAL") {
		t.Errorf("expected kcal energy to win, got %+v", rec.Calories)
	}
	if rec.Protein.Value != 0.26 || rec.Fat.Value != 0.17 {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Carbohydrates.Available() {
		t.Errorf("absent nutrient must be unavailable, got %+v", rec.Carbohydrates)
	}
}

func TestUSDAClientKJOnly(t *testing.T) {
	client, _ := newUSDA(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"foods":[{"foodNutrients":[{"nutrientName":"Energy","unitName":"kJ","value":418.4}]}]}`)
	})
	rec, err := client.Lookup(context.Background(), "Toast")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec.Calories != food.Measured(418.4, "kJ") {
		t.Fatalf("kJ energy should be kept when no kcal entry exists, got %+v", rec.Calories)
	}
}

func TestUSDAClientFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(error) bool
	}{
		{
			name:    "no foods",
			handler: func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, `{"totalHits":0,"foods":[]}`) },
			check:   func(err error) bool { return errors.Is(err, ErrNotFound) },
		},
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusForbidden) },
			check: func(err error) bool {
				return errors.Is(err, ErrUnavailable) && platformerrors.IsKind(err, platformerrors.KindUpstream)
			},
		},
		{
			name:    "non json",
			handler: func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "<html>") },
			check:   func(err error) bool { return errors.Is(err, ErrUnavailable) },
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(time.Second):
				}
			},
			check: func(err error) bool { return errors.Is(err, ErrUnavailable) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newUSDA(t, tt.handler)
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			if _, err := client.Lookup(ctx, "Unobtainium"); !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCachedLookupAvoidsSecondQuery(t *testing.T) {
	client, calls := newUSDA(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, appleResponse)
	})
	store := cache.NewMemory(cache.Config{TTL: time.Minute})
	defer store.Close(context.Background())

	cached := NewCachedLookup(client, store, testhelpers.SetupTestLogger(t))
	first, err := cached.Lookup(context.Background(), "Apple")
	if err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	second, err := cached.Lookup(context.Background(), "  apple ")
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if first != second {
		t.Fatalf("cached record differs: %+v vs %+v", first, second)
	}
	if got := atomic.LoadInt32(calls); got != 1 {
		t.Fatalf("expected one upstream query, got %d", got)
	}
}

func TestCachedLookupDoesNotCacheMisses(t *testing.T) {
	client, calls := newUSDA(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"foods":[]}`)
	})
	cached := NewCachedLookup(client, cache.Noop{}, nil)
	for i := 0; i < 2; i++ {
		if _, err := cached.Lookup(context.Background(), "Ghost Pepper Jam"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if got := atomic.LoadInt32(calls); got != 2 {
		t.Fatalf("misses must not be cached, got %d queries", got)
	}
}

func TestNormalizeName(t *testing.T) {
	if got := NormalizeName("  Peanut   BUTTER "); got != "peanut butter" {
		t.Fatalf("NormalizeName = %q", got)
	}
}
