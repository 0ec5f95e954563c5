package testutil

import (
	"testing"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ResetConfig resets viper before the test and again when it completes, so
// config keys set by one test never leak into another.
func ResetConfig(t *testing.T) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)
}

// SetViperValue sets a viper configuration value and schedules cleanup.
func SetViperValue(t *testing.T, key string, value any) {
	t.Helper()

	oldValue := viper.Get(key)
	hadValue := viper.IsSet(key)

	viper.Set(key, value)

	t.Cleanup(func() {
		if hadValue {
			viper.Set(key, oldValue)
		}
		// viper has no Unset, the unset state cannot be restored.
	})
}

// WriteConfigYAML writes values as a config.yaml inside the test
// environment, loads it into viper, and returns its path.
func WriteConfigYAML(t *testing.T, env *TestEnv, values map[string]any) string {
	t.Helper()

	raw, err := yaml.Marshal(values)
	if err != nil {
		t.Fatalf("failed to marshal config fixture: %v", err)
	}

	env.WriteFile("config.yaml", raw)
	path := env.Path("config.yaml")

	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("failed to load config fixture: %v", err)
	}
	return path
}

// SetupTestCache points the SQLite search cache at a file inside the test
// environment and returns the cache directory.
func SetupTestCache(t *testing.T, env *TestEnv) string {
	t.Helper()

	cacheDir := env.Path("cache")
	env.MkdirAll("cache")

	viper.Set("cache.dbfile", env.Path("cache", "test-cache.db"))
	viper.Set("cache.ttl", "24h")

	return cacheDir
}

// SetupPageCache points the scraped-page cache at a directory inside the
// test environment and returns it.
func SetupPageCache(t *testing.T, env *TestEnv) string {
	t.Helper()

	dir := env.Path("pages")
	env.MkdirAll("pages")

	viper.Set("pagecache.dir", dir)
	viper.Set("pagecache.ttl", "168h")

	return dir
}
