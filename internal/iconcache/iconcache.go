// Package iconcache localizes achievement icons. Remote icon URLs go stale
// when providers reorganize their CDNs, so hosts can mirror them to disk
// once and render from the local copy.
package iconcache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
)

const defaultIconSize = 64

// Cache downloads and thumbnails achievement icons under a root directory,
// one subdirectory per game key.
type Cache struct {
	dir      string
	iconSize int
	client   *http.Client
}

// New returns an icon cache rooted at dir. Icons are resized to the
// standard 64px achievement tile.
func New(dir string) *Cache {
	return &Cache{
		dir:      dir,
		iconSize: defaultIconSize,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// LocalPath returns where the icon for iconURL lives under the game's
// directory, whether or not it has been downloaded yet.
func (c *Cache) LocalPath(gameKey, iconURL string) string {
	sum := md5.Sum([]byte(iconURL))
	return filepath.Join(c.dir, sanitizeKey(gameKey), hex.EncodeToString(sum[:])+".png")
}

// Fetch downloads the icon, resizes it, and stores it locally. An icon
// already on disk is not downloaded again. Returns the local path.
func (c *Cache) Fetch(ctx context.Context, gameKey, iconURL string) (string, error) {
	if iconURL == "" {
		return "", fmt.Errorf("empty icon URL")
	}

	path := c.LocalPath(gameKey, iconURL)
	if _, err := os.Stat(path); err == nil {
		slog.Debug("Icon already cached, skipping download", "path", path)
		return path, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, iconURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download icon: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d downloading icon from %s", resp.StatusCode, iconURL)
	}

	img, err := imaging.Decode(resp.Body, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode icon: %w", err)
	}

	if img.Bounds().Dx() > c.iconSize || img.Bounds().Dy() > c.iconSize {
		img = imaging.Fit(img, c.iconSize, c.iconSize, imaging.Lanczos)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := imaging.Save(img, path); err != nil {
		return "", fmt.Errorf("failed to save icon: %w", err)
	}

	slog.Debug("Downloaded achievement icon", "url", iconURL, "path", path)
	return path, nil
}

// Clear removes every cached icon for the game.
func (c *Cache) Clear(gameKey string) error {
	return os.RemoveAll(filepath.Join(c.dir, sanitizeKey(gameKey)))
}

// ClearAll removes the cached icons of every game.
func (c *Cache) ClearAll() error {
	return os.RemoveAll(c.dir)
}

func sanitizeKey(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
