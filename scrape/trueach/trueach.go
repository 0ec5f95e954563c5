// Package trueach scrapes TrueAchievements (Xbox) and
// TrueSteamAchievements (Steam). Both sites run the same engine, so one
// client serves either origin. Beyond achievement lists they contribute
// achievement images and estimated completion times.
package trueach

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/questlog/achievements/enrich"
	"github.com/questlog/achievements/internal/cache"
	"github.com/questlog/achievements/internal/config"
	"github.com/questlog/achievements/internal/ratelimit"
	"github.com/questlog/achievements/models"
	"github.com/questlog/achievements/normalize"
	"github.com/questlog/achievements/pagecache"
	"github.com/questlog/achievements/webfetch"
)

// Origin selects which of the two sites a client talks to.
type Origin string

const (
	OriginXbox  Origin = "Xbox"
	OriginSteam Origin = "Steam"
)

const (
	xboxBase  = "https://www.trueachievements.com"
	steamBase = "https://truesteamachievements.com"

	searchPath = "/searchresults.aspx?search=%s"

	// noResultsMarker appears verbatim on an empty search page.
	noResultsMarker = "There are no matching search results, please change your search terms"

	maxImagesPerPage   = 500
	maxImageNameLength = 120
)

// Client scrapes one of the two TrueAchievements sites.
type Client struct {
	origin  Origin
	base    string
	fetcher webfetch.Fetcher
	pages   *pagecache.Cache
	limiter *ratelimit.Limiter
}

// NewClient builds a client for the given origin. pages may be nil to
// disable page caching.
func NewClient(origin Origin, fetcher webfetch.Fetcher, pages *pagecache.Cache) *Client {
	base := xboxBase
	name := "trueachievements"
	if origin == OriginSteam {
		base = steamBase
		name = "truesteamachievements"
	}
	return &Client{
		origin:  origin,
		base:    base,
		fetcher: fetcher,
		pages:   pages,
		limiter: ratelimit.New(name, float64(config.SearchRateLimit())),
	}
}

// Name identifies the provider in source links and logs.
func (c *Client) Name() string {
	if c.origin == OriginSteam {
		return "TrueSteamAchievements"
	}
	return "TrueAchievements"
}

// SearchGame looks the game up by normalized name. A search that lands
// directly on a game page (single match) yields one result built from the
// page's canonical link. Results are cached; empty sets are not.
func (c *Client) SearchGame(ctx context.Context, game models.Game) ([]models.SearchResult, error) {
	cacheKey := string(c.origin) + "|" + game.Name

	results, _, err := cache.GetOrFetchWithPolicy("trueach_search_cache", cacheKey,
		func() ([]models.SearchResult, error) {
			return c.searchLive(ctx, game)
		},
		func(rs []models.SearchResult) bool { return len(rs) > 0 })
	return results, err
}

func (c *Client) searchLive(ctx context.Context, game models.Game) ([]models.SearchResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := normalize.GameName(game.Name)
	searchURL := c.base + fmt.Sprintf(searchPath, url.QueryEscape(query))

	html, err := c.fetcher.Fetch(ctx, searchURL, "")
	if err != nil {
		return nil, err
	}
	if strings.Contains(html, noResultsMarker) {
		return nil, nil
	}

	return parseSearchResults(html, c.base, game.Name)
}

// GetAchievements returns the achievements listed on a game page, along
// with the page's completion estimate when it carries one. A fresh page
// cache entry short-circuits the fetch.
func (c *Client) GetAchievements(ctx context.Context, game models.Game, pageURL string) (*models.GameAchievements, error) {
	ga := models.NewGameAchievements(game)
	if pageURL == "" {
		return ga, nil
	}

	if c.pages != nil {
		if cached, ok := c.pages.Get(c.Name(), pageURL); ok && len(cached) > 0 {
			ga.Items = cached
			c.setSourceLink(ga, pageURL)
			return ga, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return ga, err
	}
	html, err := c.fetcher.Fetch(ctx, pageURL, "")
	if err != nil {
		return ga, err
	}

	items, err := parseAchievements(html, pageURL)
	if err != nil {
		return ga, err
	}
	if len(items) == 0 {
		slog.Debug("No achievement panels on page", "provider", c.Name(), "url", pageURL)
		return ga, nil
	}

	items = enrich.Dedupe(items)
	if c.pages != nil {
		if err := c.pages.Put(c.Name(), pageURL, items); err != nil {
			slog.Warn("Failed to cache page", "provider", c.Name(), "url", pageURL, "error", err)
		}
	}

	ga.Items = items
	c.setSourceLink(ga, pageURL)

	// The page header carries the completion estimate; no extra request.
	est := &models.EstimateTime{}
	parseEstimate(html, est)
	if est.DataCount > 0 || est.Display != "" {
		ga.EstimateTime = est
	}
	return ga, nil
}

func (c *Client) setSourceLink(ga *models.GameAchievements, pageURL string) {
	if !ga.HasAchievements() {
		return
	}
	ga.SourceLink = &models.SourceLink{
		GameName: ga.Game.Name,
		Name:     c.Name(),
		URL:      pageURL,
	}
}

// EstimateTime scrapes the estimated time to unlock all achievements from
// a game page. Returns a zero-valued estimate when the page carries none.
func (c *Client) EstimateTime(ctx context.Context, gameURL string) (*models.EstimateTime, error) {
	est := &models.EstimateTime{}
	if gameURL == "" {
		return est, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	html, err := c.fetcher.Fetch(ctx, gameURL, "")
	if err != nil {
		return nil, err
	}

	parseEstimate(html, est)
	if est.MinHours == 0 {
		slog.Debug("No completion estimate on page", "provider", c.Name(), "url", gameURL)
	}
	return est, nil
}

var nonDigits = regexp.MustCompile(`[^0-9]`)

func parseDigits(s string) int {
	v, err := strconv.Atoi(nonDigits.ReplaceAllString(s, ""))
	if err != nil {
		return 0
	}
	return v
}

// parseEstimateRange splits an estimate like "20-25h" or "200h+" into its
// min and max hour bounds.
func parseEstimateRange(estimate string) (min, max int) {
	cleaned := strings.ReplaceAll(estimate, "h", "")
	for i, part := range strings.Split(cleaned, "-") {
		if i == 0 {
			min, _ = strconv.Atoi(strings.TrimSpace(strings.ReplaceAll(part, "+", "")))
		} else {
			max, _ = strconv.Atoi(strings.TrimSpace(part))
		}
	}
	return min, max
}
