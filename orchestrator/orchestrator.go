// Package orchestrator walks an ordered chain of secondary achievement
// sources when a storefront provider comes back empty or fails. Secondary
// failures never escape to the caller; an exhausted chain yields an empty
// aggregate, which is a normal outcome.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/questlog/achievements/enrich"
	"github.com/questlog/achievements/fuzzymatch"
	"github.com/questlog/achievements/models"
	"github.com/questlog/achievements/provider"
	"github.com/questlog/achievements/resolver"
	"github.com/questlog/achievements/scrape/trueach"
)

// Secondary is a scrape-based fallback source: search by name, then fetch
// and parse the selected candidate's achievement page.
type Secondary interface {
	Name() string
	SearchGame(ctx context.Context, name, platformHint string) ([]models.SearchResult, error)
	GetAchievements(ctx context.Context, game models.Game, pageURL string) (*models.GameAchievements, error)
}

// ImageSource supplies a name→imageURL map for a game, consulted when an
// achievement set arrives without icons.
type ImageSource interface {
	Name() string
	FindImages(ctx context.Context, game models.Game) (*models.ImageMap, error)
}

// Chain runs secondaries in order and stops at the first that yields a
// non-empty achievement set. The order is a domain policy set at
// construction, typically Exophase first, then the community databases.
type Chain struct {
	secondaries  []Secondary
	imageSources []ImageSource
	images       *resolver.ImageResolver
}

// New builds a chain over the given secondaries. images may be nil to skip
// the resolver cache during image enrichment.
func New(images *resolver.ImageResolver, secondaries ...Secondary) *Chain {
	return &Chain{images: images, secondaries: secondaries}
}

// AddImageSource appends an image-only source consulted by EnrichImages
// after the resolver cache.
func (c *Chain) AddImageSource(src ImageSource) {
	c.imageSources = append(c.imageSources, src)
}

// Run walks the chain for the game. Search is scoped to the platform hint
// first and retried unscoped when the scoped search finds nothing. A
// provider that errors, finds no candidate, or parses zero achievements is
// logged and skipped. Run never fails: when every secondary comes up empty
// the returned aggregate simply has no items.
func (c *Chain) Run(ctx context.Context, game models.Game, platformHint string) *models.GameAchievements {
	for _, s := range c.secondaries {
		if ctx.Err() != nil {
			break
		}

		ga, err := c.attempt(ctx, s, game, platformHint)
		if err != nil {
			slog.Warn("Fallback provider failed", "provider", s.Name(), "game", game.Name, "error", err)
			continue
		}
		if ga == nil || !ga.HasAchievements() {
			slog.Warn("Fallback provider found nothing", "provider", s.Name(), "game", game.Name)
			continue
		}

		if ga.SourceLink == nil {
			ga.SourceLink = &models.SourceLink{GameName: game.Name, Name: s.Name()}
		}
		slog.Debug("Fallback succeeded", "provider", s.Name(), "game", game.Name, "achievements", len(ga.Items))
		return ga
	}
	return models.NewGameAchievements(game)
}

func (c *Chain) attempt(ctx context.Context, s Secondary, game models.Game, platformHint string) (ga *models.GameAchievements, err error) {
	// a misbehaving scraper must not take the whole chain down
	defer func() {
		if r := recover(); r != nil {
			ga, err = nil, fmt.Errorf("provider panicked: %v", r)
		}
	}()

	results, err := s.SearchGame(ctx, game.Name, platformHint)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 && platformHint != "" {
		results, err = s.SearchGame(ctx, game.Name, "")
		if err != nil {
			return nil, err
		}
	}

	best := fuzzymatch.PickBest(results, game.Name, platformHint)
	if best == nil {
		return nil, nil
	}

	return s.GetAchievements(ctx, game, best.URL)
}

// Aggregate asks the primary storefront provider first and falls back to
// the chain when it errors or returns no data. The result always goes
// through image enrichment before being handed back.
func (c *Chain) Aggregate(ctx context.Context, primary provider.AchievementProvider, game models.Game) *models.GameAchievements {
	ga, err := primary.GetAchievements(ctx, game)
	if err != nil {
		slog.Warn("Primary provider failed, falling back", "provider", primary.Name(), "game", game.Name, "error", err)
	}

	if ga == nil || !ga.HasData() {
		hint := ""
		if h, ok := primary.(interface{ PlatformHint() string }); ok {
			hint = h.PlatformHint()
		}
		if fallback := c.Run(ctx, game, hint); fallback.HasAchievements() {
			ga = fallback
		} else if ga == nil {
			ga = models.NewGameAchievements(game)
		}
	}

	c.EnrichImages(ctx, ga)
	return ga
}

// EnrichImages fills missing achievement icons. The resolver cache is
// consulted first; image sources are only contacted when some achievement
// still lacks an unlocked-image URL. The first source whose map matches at
// least one achievement wins and is registered with the resolver.
func (c *Chain) EnrichImages(ctx context.Context, ga *models.GameAchievements) {
	if ga == nil || !ga.MissingImages() {
		return
	}

	if c.images != nil {
		if m, ok := c.images.TryGet(ga.Game); ok {
			if n := enrich.ApplyImages(ga.Items, m); n > 0 {
				slog.Debug("Applied cached images", "game", ga.Game.Name, "applied", n)
				return
			}
		}
	}

	for _, src := range c.imageSources {
		if ctx.Err() != nil {
			return
		}
		m, err := src.FindImages(ctx, ga.Game)
		if err != nil {
			slog.Warn("Image source failed", "provider", src.Name(), "game", ga.Game.Name, "error", err)
			continue
		}
		if m == nil || m.Len() == 0 {
			continue
		}
		if n := enrich.ApplyImages(ga.Items, m); n > 0 {
			slog.Debug("Applied scraped images", "provider", src.Name(), "game", ga.Game.Name, "applied", n)
			if c.images != nil {
				c.images.Register(ga.Game, m)
			}
			return
		}
	}
}

// TrueAchSecondary adapts a trueach.Client to the chain. The site is
// origin-scoped already, so the platform hint only influences candidate
// selection, not the search itself.
type TrueAchSecondary struct {
	client *trueach.Client
}

// NewTrueAchSecondary wraps the client for use as a chain step and an
// image source.
func NewTrueAchSecondary(client *trueach.Client) *TrueAchSecondary {
	return &TrueAchSecondary{client: client}
}

func (t *TrueAchSecondary) Name() string { return t.client.Name() }

func (t *TrueAchSecondary) SearchGame(ctx context.Context, name, platformHint string) ([]models.SearchResult, error) {
	return t.client.SearchGame(ctx, models.Game{Name: name})
}

func (t *TrueAchSecondary) GetAchievements(ctx context.Context, game models.Game, pageURL string) (*models.GameAchievements, error) {
	return t.client.GetAchievements(ctx, game, pageURL)
}

// FindImages searches for the game and scrapes the best candidate's page
// for achievement icons.
func (t *TrueAchSecondary) FindImages(ctx context.Context, game models.Game) (*models.ImageMap, error) {
	results, err := t.client.SearchGame(ctx, game)
	if err != nil {
		return nil, err
	}
	best := fuzzymatch.PickBest(results, game.Name, "")
	if best == nil {
		return nil, nil
	}
	return t.client.DataImages(ctx, best.URL)
}
