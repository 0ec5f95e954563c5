// Package resolver holds the process-wide image resolver cache: one
// name→imageURL map per game, registered by whichever provider scraped it
// first so later providers skip the redundant lookup.
package resolver

import (
	"sync"

	"github.com/questlog/achievements/models"
)

// ImageResolver is a concurrency-safe store of per-game image maps. Writes
// replace the whole map for a game; partial maps are never merged, so readers
// always observe one provider's complete view. Construct with New and share
// the instance between providers; there is no package-level singleton.
type ImageResolver struct {
	mu     sync.RWMutex
	images map[string]*models.ImageMap
}

// New returns an empty resolver.
func New() *ImageResolver {
	return &ImageResolver{images: map[string]*models.ImageMap{}}
}

// TryGet returns the registered image map for the game, if any. The returned
// map must be treated as read-only.
func (r *ImageResolver) TryGet(game models.Game) (*models.ImageMap, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	im, ok := r.images[game.Key()]
	return im, ok
}

// Has reports whether an image map is registered for the game.
func (r *ImageResolver) Has(game models.Game) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.images[game.Key()]
	return ok
}

// Register stores the image map for the game, replacing any previous map
// wholesale. Empty maps are ignored. The map is cloned so later mutation by
// the caller cannot be observed by readers.
func (r *ImageResolver) Register(game models.Game, images *models.ImageMap) {
	if images.Len() == 0 {
		return
	}
	clone := images.Clone()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images[game.Key()] = clone
}

// Clear resets the resolver. Intended for test isolation.
func (r *ImageResolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images = map[string]*models.ImageMap{}
}
