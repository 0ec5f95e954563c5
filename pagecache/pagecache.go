// Package pagecache persists parsed achievement pages on disk so a
// provider can skip re-scraping a page it has seen recently. One JSON file
// per page URL, grouped under a per-provider directory.
package pagecache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/questlog/achievements/internal/errs"
	"github.com/questlog/achievements/models"
)

// maxKeyLen is the longest sanitized URL we use as a filename directly.
// Anything longer collapses to an md5 digest to stay under filesystem
// name limits.
const maxKeyLen = 100

var keySanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Cache is a file-per-URL achievement page cache. Entries are valid while
// their file modification time is at most ttl old.
type Cache struct {
	dir string
	ttl time.Duration
}

// New returns a cache rooted at dir. The directory is created lazily on
// the first Put.
func New(dir string, ttl time.Duration) *Cache {
	return &Cache{dir: dir, ttl: ttl}
}

// Key converts a page URL into a safe filename: every character outside
// [a-zA-Z0-9_-] becomes an underscore, and URLs whose sanitized form is
// longer than 100 characters use the md5 hex digest of the raw URL instead.
func Key(url string) string {
	k := keySanitizer.ReplaceAllString(url, "_")
	if len(k) > maxKeyLen {
		sum := md5.Sum([]byte(url))
		return hex.EncodeToString(sum[:])
	}
	return k
}

// Get returns the cached achievements for url, or ok=false when the entry
// is absent, older than the TTL, or unreadable. A corrupt file is treated
// as a miss so the caller falls through to a live fetch.
func (c *Cache) Get(provider, url string) ([]models.Achievement, bool) {
	path := c.path(provider, url)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > c.ttl {
		return nil, false
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	items, err := decode(raw)
	if err != nil {
		slog.Warn("Discarding corrupt page cache entry",
			"error", errs.NewCacheCorruption(path, err))
		return nil, false
	}
	return items, true
}

// Put writes the achievements for url, overwriting any existing entry
// regardless of its age.
func (c *Cache) Put(provider, url string, items []models.Achievement) error {
	byName := make(map[string]models.Achievement, len(items))
	for _, a := range items {
		if a.Name == "" {
			continue
		}
		byName[a.Name] = a
	}
	raw, err := json.Marshal(byName)
	if err != nil {
		return err
	}

	dir := filepath.Join(c.dir, provider)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.path(provider, url), raw, 0o644)
}

// Remove deletes the entry for url if present.
func (c *Cache) Remove(provider, url string) {
	_ = os.Remove(c.path(provider, url))
}

// Clear deletes every cached page for the provider.
func (c *Cache) Clear(provider string) error {
	return os.RemoveAll(filepath.Join(c.dir, provider))
}

func (c *Cache) path(provider, url string) string {
	return filepath.Join(c.dir, provider, Key(url)+".json")
}

// decode reads the canonical name-keyed achievement map, falling back to
// the old flat name-to-image-URL format written by earlier releases.
// Either way the result is sorted by name so cache hits are deterministic.
func decode(raw []byte) ([]models.Achievement, error) {
	var byName map[string]models.Achievement
	if err := json.Unmarshal(raw, &byName); err == nil {
		return sortedByName(byName), nil
	}

	var legacy map[string]string
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, err
	}
	byName = make(map[string]models.Achievement, len(legacy))
	for name, url := range legacy {
		byName[name] = models.Achievement{
			Name:        name,
			URLUnlocked: url,
			URLLocked:   url,
		}
	}
	return sortedByName(byName), nil
}

func sortedByName(byName map[string]models.Achievement) []models.Achievement {
	items := make([]models.Achievement, 0, len(byName))
	for name, a := range byName {
		if a.Name == "" {
			a.Name = name
		}
		items = append(items, a)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}
