package config_test

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	"github.com/questlog/achievements/internal/config"
	"github.com/questlog/achievements/internal/testutil"
)

func TestDefaults(t *testing.T) {
	testutil.ResetConfig(t)
	config.Init()

	assert.Equal(t, 75, config.MatchThreshold())
	assert.InDelta(t, 0.5, config.WordOverlap(), 0.001)
	assert.Equal(t, 7*24*time.Hour, config.PageCacheTTL())
	assert.Equal(t, 30*time.Second, config.FetchTimeout())
	assert.Equal(t, 2, config.BackgroundWorkers())
	assert.Equal(t, 1, config.SearchRateLimit())
}

func TestConfigFileOverrides(t *testing.T) {
	testutil.ResetConfig(t)
	env := testutil.NewTestEnv(t)
	config.Init()

	testutil.WriteConfigYAML(t, env, map[string]any{
		"match": map[string]any{
			"threshold":   85,
			"wordoverlap": 0.7,
		},
		"pagecache": map[string]any{
			"ttl": "48h",
		},
	})

	assert.Equal(t, 85, config.MatchThreshold())
	assert.InDelta(t, 0.7, config.WordOverlap(), 0.001)
	assert.Equal(t, 48*time.Hour, config.PageCacheTTL())
}

func TestBadDurationFallsBack(t *testing.T) {
	testutil.ResetConfig(t)
	viper.Set("fetch.timeout", "not a duration")

	assert.Equal(t, 30*time.Second, config.FetchTimeout())
}
