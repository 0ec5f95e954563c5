// Package config centralizes the library's tunable parameters. The match
// thresholds and cache windows are empirically chosen values carried over
// from production tuning, exposed through viper so hosts can adjust them.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Defaults for every tunable the library reads.
const (
	DefaultMatchThreshold    = 75
	DefaultWordOverlap       = 0.5
	DefaultPageCacheTTL      = 168 * time.Hour // 7 days
	DefaultFetchTimeout      = 30 * time.Second
	DefaultBackgroundWorkers = 2
	DefaultSearchRateLimit   = 1 // requests per second against scrape endpoints
)

// Init registers defaults. Hosts call it once before constructing providers;
// calling it again is harmless.
func Init() {
	viper.SetDefault("match.threshold", DefaultMatchThreshold)
	viper.SetDefault("match.wordoverlap", DefaultWordOverlap)
	viper.SetDefault("pagecache.ttl", DefaultPageCacheTTL.String())
	viper.SetDefault("pagecache.dir", "./pagecache")
	viper.SetDefault("fetch.timeout", DefaultFetchTimeout.String())
	viper.SetDefault("bgfetch.workers", DefaultBackgroundWorkers)
	viper.SetDefault("search.ratelimit", DefaultSearchRateLimit)
	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", "720h")
	viper.SetDefault("icons.dir", "")
}

// MatchThreshold is the minimum token-set score for accepting a fuzzy match.
func MatchThreshold() int {
	if v := viper.GetInt("match.threshold"); v > 0 {
		return v
	}
	return DefaultMatchThreshold
}

// WordOverlap is the fraction of an achievement's tokens that must appear in
// a candidate key for the overlap stage to accept.
func WordOverlap() float64 {
	if v := viper.GetFloat64("match.wordoverlap"); v > 0 {
		return v
	}
	return DefaultWordOverlap
}

// PageCacheTTL is the validity window for scraped achievement pages on disk.
func PageCacheTTL() time.Duration {
	return durationOr("pagecache.ttl", DefaultPageCacheTTL)
}

// PageCacheDir is the root directory for per-provider page caches.
func PageCacheDir() string {
	return viper.GetString("pagecache.dir")
}

// FetchTimeout bounds a single live provider fetch.
func FetchTimeout() time.Duration {
	return durationOr("fetch.timeout", DefaultFetchTimeout)
}

// BackgroundWorkers caps concurrent background page refreshes system-wide.
func BackgroundWorkers() int {
	if v := viper.GetInt("bgfetch.workers"); v > 0 {
		return v
	}
	return DefaultBackgroundWorkers
}

// SearchRateLimit is the per-second request budget for scrape search APIs.
func SearchRateLimit() int {
	if v := viper.GetInt("search.ratelimit"); v > 0 {
		return v
	}
	return DefaultSearchRateLimit
}

// IconDir is the local directory for downloaded achievement icons; empty
// disables icon localization.
func IconDir() string {
	return viper.GetString("icons.dir")
}

func durationOr(key string, fallback time.Duration) time.Duration {
	s := viper.GetString(key)
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
