package cache

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/questlog/achievements/internal/testutil"
)

type searchEntry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func setupTestCache(t *testing.T) *CacheDB {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	env := testutil.NewTestEnv(t)
	dbPath := filepath.Join(env.RootDir(), "test_cache.db")

	cache, err := NewCacheDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create cache database: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	for _, schema := range AllCacheSchemas {
		if err := cache.CreateTable(schema); err != nil {
			t.Fatalf("Failed to create cache table: %v", err)
		}
	}

	viper.Set("cache.ttl", "1h")
	return cache
}

func withGlobalCache(t *testing.T, cache *CacheDB) {
	t.Helper()

	oldCache := globalCache
	globalCache = cache
	globalCacheOnce = sync.Once{}
	globalCacheOnce.Do(func() {})

	t.Cleanup(func() {
		globalCache = oldCache
		globalCacheOnce = sync.Once{}
	})
}

func setCachedAt(t *testing.T, cache *CacheDB, tableName, key string, at time.Time) {
	t.Helper()

	if _, err := cache.db.Exec("UPDATE "+tableName+" SET cached_at = ? WHERE cache_key = ?", at.UTC(), key); err != nil {
		t.Fatalf("Failed to update cached_at: %v", err)
	}
}

func TestSetAndGet(t *testing.T) {
	cache := setupTestCache(t)

	if err := cache.Set("exophase_search_cache", "hades", `[{"name":"Hades"}]`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	data, hit, err := cache.Get("exophase_search_cache", "hades", time.Hour)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Fatal("expected cache hit")
	}
	if data != `[{"name":"Hades"}]` {
		t.Errorf("unexpected data: %s", data)
	}
}

func TestGetMiss(t *testing.T) {
	cache := setupTestCache(t)

	_, hit, err := cache.Get("exophase_search_cache", "nothing", time.Hour)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Fatal("expected cache miss")
	}
}

func TestGetExpired(t *testing.T) {
	cache := setupTestCache(t)

	if err := cache.Set("title_id_cache", "hades", "1145360"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	setCachedAt(t, cache, "title_id_cache", "hades", time.Now().Add(-2*time.Hour))

	_, hit, err := cache.Get("title_id_cache", "hades", time.Hour)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Fatal("expected expired entry to miss")
	}
}

func TestInvalidTableName(t *testing.T) {
	cache := setupTestCache(t)

	if err := cache.Set("users; DROP TABLE", "k", "v"); err == nil {
		t.Fatal("expected error for invalid table name")
	}
	if _, _, err := cache.Get("users", "k", time.Hour); err == nil {
		t.Fatal("expected error for invalid table name")
	}
}

func TestGetOrFetchCachesResult(t *testing.T) {
	cache := setupTestCache(t)
	withGlobalCache(t, cache)

	calls := 0
	fetch := func() ([]searchEntry, error) {
		calls++
		return []searchEntry{{Name: "Hades", URL: "http://x/hades"}}, nil
	}

	got, fromCache, err := GetOrFetch("exophase_search_cache", "hades", fetch)
	if err != nil {
		t.Fatalf("GetOrFetch failed: %v", err)
	}
	if fromCache {
		t.Fatal("first call should not be from cache")
	}
	if len(got) != 1 || got[0].Name != "Hades" {
		t.Fatalf("unexpected result: %+v", got)
	}

	got, fromCache, err = GetOrFetch("exophase_search_cache", "hades", fetch)
	if err != nil {
		t.Fatalf("GetOrFetch failed: %v", err)
	}
	if !fromCache {
		t.Fatal("second call should hit cache")
	}
	if calls != 1 {
		t.Fatalf("fetch called %d times, want 1", calls)
	}
	if len(got) != 1 || got[0].URL != "http://x/hades" {
		t.Fatalf("unexpected cached result: %+v", got)
	}
}

func TestGetOrFetchPropagatesFetchError(t *testing.T) {
	cache := setupTestCache(t)
	withGlobalCache(t, cache)

	want := errors.New("search endpoint down")
	_, _, err := GetOrFetch("exophase_search_cache", "broken", func() ([]searchEntry, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
}

func TestGetOrFetchWithPolicySkipsEmptyResults(t *testing.T) {
	cache := setupTestCache(t)
	withGlobalCache(t, cache)

	calls := 0
	fetch := func() ([]searchEntry, error) {
		calls++
		return nil, nil
	}
	notEmpty := func(rs []searchEntry) bool { return len(rs) > 0 }

	for i := 0; i < 2; i++ {
		_, fromCache, err := GetOrFetchWithPolicy("exophase_search_cache", "ghost", fetch, notEmpty)
		if err != nil {
			t.Fatalf("GetOrFetchWithPolicy failed: %v", err)
		}
		if fromCache {
			t.Fatal("empty result must never come from cache")
		}
	}
	if calls != 2 {
		t.Fatalf("fetch called %d times, want 2 (empty results not cached)", calls)
	}
}

func TestClearAll(t *testing.T) {
	cache := setupTestCache(t)

	if err := cache.Set("trueach_search_cache", "hades", "data"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := cache.ClearAll("trueach_search_cache"); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}

	_, hit, _ := cache.Get("trueach_search_cache", "hades", time.Hour)
	if hit {
		t.Fatal("expected cleared cache to miss")
	}
}

func TestCacheExists(t *testing.T) {
	cache := setupTestCache(t)

	if cache.CacheExists("title_id_cache", "hades") {
		t.Fatal("entry should not exist yet")
	}
	if err := cache.Set("title_id_cache", "hades", "1145360"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !cache.CacheExists("title_id_cache", "hades") {
		t.Fatal("entry should exist")
	}
}
