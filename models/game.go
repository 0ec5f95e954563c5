package models

import (
	"strings"
	"time"
)

// Game identifies a game in the host's library. The library never mutates it.
type Game struct {
	// ID is the store-assigned identifier (Steam app ID, GOG product ID, ...).
	// May be empty for manually added games.
	ID   string
	Name string
	// Platforms are the host's platform names for the game, used as matching
	// hints against secondary sources.
	Platforms []string
}

// Key returns the stable cache key for the game: the store ID when present,
// else the lowercased trimmed name as a degraded key.
func (g Game) Key() string {
	if g.ID != "" {
		return g.ID
	}
	return strings.ToLower(strings.TrimSpace(g.Name))
}

// SourceLink records which source actually contributed the achievement data.
type SourceLink struct {
	GameName string `json:"gameName"`
	Name     string `json:"name"`
	URL      string `json:"url"`
}

// GameStat is a single named statistic reported by a storefront.
type GameStat struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// EstimateTime is the scraped estimate for completing all achievements.
type EstimateTime struct {
	DataCount int    `json:"dataCount"`
	Display   string `json:"display"`
	MinHours  int    `json:"minHours"`
	MaxHours  int    `json:"maxHours"`
}

// GameAchievements is the aggregate returned to the caller for one game.
// It is created fresh per request and never shared between in-flight
// requests; persistence is the host's concern.
type GameAchievements struct {
	Game       Game          `json:"game"`
	Items      []Achievement `json:"items"`
	ItemsStats []GameStat    `json:"itemsStats,omitempty"`

	// SourceLink identifies the provider that actually supplied Items, which
	// after a fallback is not necessarily the provider that was asked.
	SourceLink *SourceLink `json:"sourceLink,omitempty"`

	EstimateTime *EstimateTime `json:"estimateTime,omitempty"`

	DateLastRefresh time.Time `json:"dateLastRefresh"`
	IsManual        bool      `json:"isManual,omitempty"`
}

// NewGameAchievements returns an empty aggregate for the game.
func NewGameAchievements(game Game) *GameAchievements {
	return &GameAchievements{
		Game:            game,
		Items:           []Achievement{},
		DateLastRefresh: time.Now().UTC(),
	}
}

// HasAchievements reports whether any achievement items are present.
func (g *GameAchievements) HasAchievements() bool {
	return len(g.Items) > 0
}

// HasData reports whether the aggregate carries achievements or stats.
func (g *GameAchievements) HasData() bool {
	return len(g.Items) > 0 || len(g.ItemsStats) > 0
}

// Unlocked counts achievements with a real unlock date.
func (g *GameAchievements) Unlocked() int {
	n := 0
	for i := range g.Items {
		if g.Items[i].IsUnlocked() {
			n++
		}
	}
	return n
}

// MissingImages reports whether any achievement lacks an unlocked-image URL.
// Image enrichment runs only when this is true.
func (g *GameAchievements) MissingImages() bool {
	for i := range g.Items {
		if g.Items[i].URLUnlocked == "" {
			return true
		}
	}
	return false
}

// SearchResult is a candidate match from a secondary provider. Ephemeral,
// never persisted.
type SearchResult struct {
	Name             string
	URL              string
	Platforms        []string
	ImageURL         string
	AchievementCount int
}

// HasPlatform reports whether the candidate lists the platform,
// case-insensitively.
func (s SearchResult) HasPlatform(name string) bool {
	for _, p := range s.Platforms {
		if strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}
