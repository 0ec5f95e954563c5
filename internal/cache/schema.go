package cache

// SQL schemas for cache tables
// All cache tables use "cache_key" as the primary key column for consistency

// ExophaseSearchCacheSchema caches Exophase search API responses keyed by
// the searched game name (with optional platform scope suffix)
const ExophaseSearchCacheSchema = `
CREATE TABLE IF NOT EXISTS exophase_search_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_exophase_search_cached_at ON exophase_search_cache(cached_at);
`

// TrueAchSearchCacheSchema caches TrueAchievements/TrueSteamAchievements
// search result pages keyed by game name and origin
const TrueAchSearchCacheSchema = `
CREATE TABLE IF NOT EXISTS trueach_search_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_trueach_search_cached_at ON trueach_search_cache(cached_at);
`

// TitleIDCacheSchema caches resolved game page identities (the Exophase
// page URL for a game) keyed by game name and platform hint
const TitleIDCacheSchema = `
CREATE TABLE IF NOT EXISTS title_id_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_title_id_cached_at ON title_id_cache(cached_at);
`

// AllCacheSchemas contains all cache table schemas for easy initialization
var AllCacheSchemas = []string{
	ExophaseSearchCacheSchema,
	TrueAchSearchCacheSchema,
	TitleIDCacheSchema,
}

// ValidCacheTableNames is the whitelist of allowed cache table names
// Used to prevent SQL injection when interpolating table names
var ValidCacheTableNames = map[string]bool{
	"exophase_search_cache": true,
	"trueach_search_cache":  true,
	"title_id_cache":        true,
}
