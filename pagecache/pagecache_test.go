package pagecache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questlog/achievements/models"
)

const week = 7 * 24 * time.Hour

func TestKeySanitizes(t *testing.T) {
	assert.Equal(t,
		"https___www_exophase_com_game_hades_achievements_",
		Key("https://www.exophase.com/game/hades/achievements/"))
}

func TestKeyLongURLUsesDigest(t *testing.T) {
	url := "https://example.com/" + strings.Repeat("a-very-long-segment/", 10)
	k := Key(url)

	assert.Len(t, k, 32)
	assert.Regexp(t, "^[0-9a-f]{32}$", k)
}

func TestPutGetRoundTrip(t *testing.T) {
	c := New(t.TempDir(), week)
	items := []models.Achievement{
		{Name: "First Blood", URLUnlocked: "http://img/fb.png", Percent: 12.5},
		{Name: "Explorer", Description: "See it all"},
	}
	require.NoError(t, c.Put("exophase", "http://x/page", items))

	got, ok := c.Get("exophase", "http://x/page")
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "Explorer", got[0].Name)
	assert.Equal(t, "First Blood", got[1].Name)
	assert.Equal(t, "http://img/fb.png", got[1].URLUnlocked)
}

func TestGetMissEntryAbsent(t *testing.T) {
	c := New(t.TempDir(), week)
	_, ok := c.Get("exophase", "http://x/none")
	assert.False(t, ok)
}

func TestGetRespectsTTL(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, week)
	require.NoError(t, c.Put("exophase", "http://x/page", []models.Achievement{{Name: "A"}}))
	path := filepath.Join(dir, "exophase", Key("http://x/page")+".json")

	// six days old, still fresh
	require.NoError(t, os.Chtimes(path, time.Now(), time.Now().Add(-6*24*time.Hour)))
	_, ok := c.Get("exophase", "http://x/page")
	assert.True(t, ok)

	// eight days old, expired
	require.NoError(t, os.Chtimes(path, time.Now(), time.Now().Add(-8*24*time.Hour)))
	_, ok = c.Get("exophase", "http://x/page")
	assert.False(t, ok)
}

func TestPutOverwritesExpiredEntry(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, week)
	require.NoError(t, c.Put("exophase", "http://x/page", []models.Achievement{{Name: "Old"}}))
	path := filepath.Join(dir, "exophase", Key("http://x/page")+".json")
	require.NoError(t, os.Chtimes(path, time.Now(), time.Now().Add(-30*24*time.Hour)))

	require.NoError(t, c.Put("exophase", "http://x/page", []models.Achievement{{Name: "New"}}))
	got, ok := c.Get("exophase", "http://x/page")
	require.True(t, ok)
	assert.Equal(t, "New", got[0].Name)
}

func TestGetLegacyFlatFormat(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, week)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "exophase"), 0o755))
	legacy := `{"First Blood":"http://img/fb.png","Explorer":"http://img/e.png"}`
	path := filepath.Join(dir, "exophase", Key("http://x/page")+".json")
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	got, ok := c.Get("exophase", "http://x/page")
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "Explorer", got[0].Name)
	assert.Equal(t, "http://img/e.png", got[0].URLUnlocked)
	assert.Equal(t, "http://img/e.png", got[0].URLLocked)
}

func TestGetCorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, week)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "exophase"), 0o755))
	path := filepath.Join(dir, "exophase", Key("http://x/page")+".json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, ok := c.Get("exophase", "http://x/page")
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	c := New(t.TempDir(), week)
	require.NoError(t, c.Put("exophase", "http://x/page", []models.Achievement{{Name: "A"}}))
	require.NoError(t, c.Clear("exophase"))

	_, ok := c.Get("exophase", "http://x/page")
	assert.False(t, ok)
}
