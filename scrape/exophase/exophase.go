// Package exophase scrapes achievement data from exophase.com, the
// broadest secondary source: it covers every storefront platform and
// carries community unlock percentages the storefront APIs omit.
package exophase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/questlog/achievements/enrich"
	"github.com/questlog/achievements/internal/cache"
	"github.com/questlog/achievements/internal/config"
	"github.com/questlog/achievements/internal/errs"
	"github.com/questlog/achievements/internal/ratelimit"
	"github.com/questlog/achievements/models"
	"github.com/questlog/achievements/pagecache"
	"github.com/questlog/achievements/resolver"
	"github.com/questlog/achievements/webfetch"
)

const (
	apiBase  = "https://api.exophase.com"
	siteBase = "https://www.exophase.com"

	searchURLFmt         = apiBase + "/public/archive/games?q=%s&sort=added"
	searchPlatformFmt    = apiBase + "/public/archive/platform/%s?q=%s&sort=added"
	accountURL           = siteBase + "/account"
	achievementsSelector = "ul.achievement, ul.trophy, ul.challenge"

	// ProviderName labels source links and cache directories.
	ProviderName = "Exophase"
)

// Platforms lists the platform scopes the Exophase search API understands.
var Platforms = []string{
	"Apple", "Blizzard", "Electronic Arts", "Epic", "GOG", "Google Play",
	"Nintendo", "PSN", "Retro", "Stadia", "Steam", "Ubisoft", "Xbox",
}

// Scheduler accepts background page refresh tasks. Satisfied by
// bgfetch.Pool.
type Scheduler interface {
	Submit(key string, task func(ctx context.Context)) bool
}

// Client scrapes Exophase. Construct with NewClient; the zero value is not
// usable.
type Client struct {
	fetcher   webfetch.Fetcher
	pages     *pagecache.Cache
	images    *resolver.ImageResolver
	scheduler Scheduler
	limiter   *ratelimit.Limiter
	http      *http.Client

	// Localized requests a second fetch with the session's language
	// cookies so names and descriptions come back localized. Needs a
	// logged-in session.
	Localized bool

	connMu    sync.Mutex
	connected *bool
}

// NewClient builds an Exophase client. images and scheduler may be nil
// when the host does not use image resolution or background refresh.
func NewClient(fetcher webfetch.Fetcher, pages *pagecache.Cache, images *resolver.ImageResolver, scheduler Scheduler) *Client {
	return &Client{
		fetcher:   fetcher,
		pages:     pages,
		images:    images,
		scheduler: scheduler,
		limiter:   ratelimit.New("exophase", float64(config.SearchRateLimit())),
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// Name identifies the provider in source links and logs.
func (c *Client) Name() string { return ProviderName }

// search API response shape
type searchResponse struct {
	Games struct {
		List []struct {
			Title          string `json:"title"`
			EndpointAwards string `json:"endpoint_awards"`
			TotalAwards    int    `json:"total_awards"`
			Images         struct {
				O string `json:"o"`
				L string `json:"l"`
				M string `json:"m"`
			} `json:"images"`
			Platforms []struct {
				Name string `json:"name"`
			} `json:"platforms"`
		} `json:"list"`
	} `json:"games"`
}

// SearchGame queries the Exophase archive for name. A non-empty platform
// narrows the search to that platform's archive. Results are cached;
// empty result sets are not, since they are usually transient.
func (c *Client) SearchGame(ctx context.Context, name, platform string) ([]models.SearchResult, error) {
	cacheKey := name
	if platform != "" {
		cacheKey = name + "|" + platform
	}

	results, _, err := cache.GetOrFetchWithPolicy("exophase_search_cache", cacheKey,
		func() ([]models.SearchResult, error) {
			return c.searchLive(ctx, name, platform)
		},
		func(rs []models.SearchResult) bool { return len(rs) > 0 })
	return results, err
}

func (c *Client) searchLive(ctx context.Context, name, platform string) ([]models.SearchResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var searchURL string
	if platform == "" {
		searchURL = fmt.Sprintf(searchURLFmt, url.QueryEscape(name))
	} else {
		searchURL = fmt.Sprintf(searchPlatformFmt, url.PathEscape(platform), url.QueryEscape(name))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.NewProviderUnavailable(ProviderName, searchURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.NewProviderUnavailable(ProviderName, searchURL,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.NewProviderUnavailable(ProviderName, searchURL, err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		slog.Warn("No Exophase result", "name", name, "error", err)
		return nil, errs.NewParseError(searchURL, "search response is not valid JSON")
	}

	results := make([]models.SearchResult, 0, len(parsed.Games.List))
	for _, g := range parsed.Games.List {
		img := g.Images.O
		if img == "" {
			img = g.Images.L
		}
		if img == "" {
			img = g.Images.M
		}
		platforms := make([]string, 0, len(g.Platforms))
		for _, p := range g.Platforms {
			platforms = append(platforms, p.Name)
		}
		results = append(results, models.SearchResult{
			Name:             g.Title,
			URL:              g.EndpointAwards,
			ImageURL:         img,
			Platforms:        platforms,
			AchievementCount: g.TotalAwards,
		})
	}
	return results, nil
}

// PageURL converts a search result URL into the canonical achievements
// page URL: relative paths are anchored to exophase.com and the
// achievements segment is appended when missing.
func PageURL(raw string) string {
	u := raw
	if strings.HasPrefix(u, "/") {
		u = strings.TrimRight(siteBase, "/") + u
	}
	if !strings.Contains(strings.ToLower(u), "/achievements") {
		u = strings.TrimRight(u, "/") + "/achievements/"
	}
	return u
}

// GetAchievements returns the achievements listed on the game's Exophase
// page. A fresh page cache entry short-circuits the fetch. When the live
// page comes back without achievement lists (usually a bot interstitial)
// the slow browser fetch is scheduled in the background and an empty
// result is returned; a later call picks up the cached page.
func (c *Client) GetAchievements(ctx context.Context, game models.Game, pageURL string) (*models.GameAchievements, error) {
	ga := models.NewGameAchievements(game)
	fetchURL := PageURL(pageURL)

	if c.pages != nil {
		if cached, ok := c.pages.Get(ProviderName, fetchURL); ok && len(cached) > 0 {
			ga.Items = cached
			c.registerImages(game, cached)
			c.setSourceLink(ga, pageURL)
			return ga, nil
		}
	}

	html, err := c.fetcher.Fetch(ctx, fetchURL, achievementsSelector)
	if err != nil {
		slog.Debug("Exophase fetch failed, scheduling background fetch", "url", fetchURL, "error", err)
		c.scheduleBackground(game, fetchURL)
		return ga, err
	}

	items, parseErr := parseAchievements(html)
	if parseErr != nil || len(items) == 0 {
		slog.Debug("No achievement lists found, scheduling background fetch", "url", fetchURL)
		c.scheduleBackground(game, fetchURL)
		return ga, nil
	}

	if c.Localized {
		c.overlayLocalized(ctx, fetchURL, items)
	}

	items = enrich.Dedupe(items)
	c.store(game, fetchURL, items)

	ga.Items = items
	c.setSourceLink(ga, pageURL)
	return ga, nil
}

// overlayLocalized fetches the page again over plain HTTP, where the
// session cookies select the account language, and overlays the localized
// names and descriptions. The canonical English name moves to APIName so
// downstream matching still works.
func (c *Client) overlayLocalized(ctx context.Context, fetchURL string, items []models.Achievement) {
	if !c.IsConnected(ctx) {
		slog.Warn("Exophase is disconnected, localized names unavailable")
		return
	}

	httpFetcher := webfetch.NewHTTPFetcher(config.FetchTimeout())
	html, err := httpFetcher.Fetch(ctx, fetchURL, "")
	if err != nil {
		slog.Debug("Exophase localized fetch failed", "url", fetchURL, "error", err)
		return
	}
	// interstitial instead of content, keep canonical strings
	if strings.Contains(html, "Notice Message App") {
		return
	}

	localized, err := parseAchievements(html)
	if err != nil || len(localized) != len(items) {
		return
	}
	for i := range items {
		items[i].APIName = items[i].Name
		items[i].Name = localized[i].Name
		items[i].Description = localized[i].Description
	}
}

func (c *Client) scheduleBackground(game models.Game, fetchURL string) {
	if c.scheduler == nil {
		return
	}
	c.scheduler.Submit(fetchURL, func(ctx context.Context) {
		html, err := c.fetcher.Fetch(ctx, fetchURL, achievementsSelector)
		if err != nil {
			slog.Warn("Exophase background fetch failed", "url", fetchURL, "error", err)
			return
		}
		items, err := parseAchievements(html)
		if err != nil || len(items) == 0 {
			slog.Warn("Exophase background fetch returned no data", "url", fetchURL)
			return
		}
		c.store(game, fetchURL, enrich.Dedupe(items))
		slog.Debug("Exophase background fetch completed", "url", fetchURL, "achievements", len(items))
	})
}

// store caches the parsed page and registers its images with the resolver.
func (c *Client) store(game models.Game, fetchURL string, items []models.Achievement) {
	if len(items) == 0 {
		return
	}
	if c.pages != nil {
		if err := c.pages.Put(ProviderName, fetchURL, items); err != nil {
			slog.Warn("Failed to cache Exophase page", "url", fetchURL, "error", err)
		}
	}
	c.registerImages(game, items)
}

func (c *Client) registerImages(game models.Game, items []models.Achievement) {
	if c.images == nil {
		return
	}
	m := models.NewImageMap()
	for _, a := range items {
		m.Set(a.Name, a.URLUnlocked)
	}
	c.images.Register(game, m)
}

func (c *Client) setSourceLink(ga *models.GameAchievements, pageURL string) {
	if !ga.HasAchievements() {
		return
	}
	ga.SourceLink = &models.SourceLink{
		GameName: ga.Game.Name,
		Name:     ProviderName,
		URL:      pageURL,
	}
}

// SetRarity overlays Exophase unlock percentages onto achievements fetched
// from a storefront. The page URL comes from an existing Exophase source
// link when present, otherwise from a fresh search scoped to the platform.
func (c *Client) SetRarity(ctx context.Context, ga *models.GameAchievements, platformHint string) error {
	pageURL := c.rarityPageURL(ctx, ga, platformHint)
	if pageURL == "" {
		slog.Warn("No Exophase rarity page found", "game", ga.Game.Name)
		return nil
	}

	source, err := c.GetAchievements(ctx, ga.Game, pageURL)
	if err != nil {
		return err
	}
	missing := enrich.ApplyRarity(ga.Items, source.Items)
	if len(missing) > 0 {
		sample := missing
		if len(sample) > 10 {
			sample = sample[:10]
		}
		slog.Warn("Exophase rarity had unmatched achievements",
			"game", ga.Game.Name, "missing", len(missing), "examples", strings.Join(sample, ", "))
	}
	return nil
}

func (c *Client) rarityPageURL(ctx context.Context, ga *models.GameAchievements, platformHint string) string {
	if ga.SourceLink != nil && ga.SourceLink.Name == ProviderName {
		return ga.SourceLink.URL
	}

	cacheKey := ga.Game.Name + "|" + platformHint
	pageURL, _, err := cache.GetOrFetchWithPolicy("title_id_cache", cacheKey,
		func() (string, error) {
			return c.resolvePageURL(ctx, ga.Game.Name, platformHint)
		},
		func(u string) bool { return u != "" })
	if err != nil {
		return ""
	}
	return pageURL
}

// resolvePageURL finds the game's Exophase page by unscoped search, then
// prefers a candidate listing the hinted platform.
func (c *Client) resolvePageURL(ctx context.Context, name, platformHint string) (string, error) {
	results, err := c.SearchGame(ctx, name, "")
	if err != nil {
		return "", err
	}
	for _, r := range results {
		if platformHint != "" && !r.HasPlatform(platformHint) {
			continue
		}
		return r.URL, nil
	}
	return "", nil
}

// IsConnected probes the account page for a logged-in session. The result
// is cached for the client's lifetime.
func (c *Client) IsConnected(ctx context.Context) bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.connected != nil {
		return *c.connected
	}

	html, err := c.fetcher.Fetch(ctx, accountURL, "")
	connected := err == nil && strings.Contains(strings.ToLower(html), "column-username")
	c.connected = &connected
	return connected
}

// ResetConnection drops the cached login probe so the next IsConnected
// call re-checks.
func (c *Client) ResetConnection() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.connected = nil
}

// ValidateConfiguration reports whether the client can run. Authentication
// only gates localized names, so an unauthenticated client is still valid.
func (c *Client) ValidateConfiguration(ctx context.Context) bool {
	return true
}
