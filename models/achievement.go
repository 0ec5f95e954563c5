// Package models defines the canonical shapes all achievement providers map
// their output into.
package models

import (
	"time"
)

// Rarity buckets derived from the population unlock percentage.
const (
	RarityUltraRare = "UltraRare"
	RarityRare      = "Rare"
	RarityUncommon  = "Uncommon"
	RarityCommon    = "Common"
)

// Achievement is the canonical achievement record. Every provider's raw
// output is mapped into this shape before it leaves the library.
type Achievement struct {
	// APIName is the provider-internal identifier (Steam API name, Exophase
	// canonical title, ...). Falls back to Name when a source has no
	// separate identifier.
	APIName     string `json:"apiName"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	URLUnlocked string `json:"urlUnlocked,omitempty"`
	URLLocked   string `json:"urlLocked,omitempty"`

	// DateUnlocked is nil for a locked achievement. Providers that report a
	// sentinel "zero" date for locked achievements must pass their timestamps
	// through NormalizeUnlockDate.
	DateUnlocked *time.Time `json:"dateUnlocked,omitempty"`

	// Percent is the population-wide unlock rate (0-100).
	Percent    float64 `json:"percent"`
	GamerScore float64 `json:"gamerScore"`

	IsHidden bool   `json:"isHidden,omitempty"`
	Category string `json:"category,omitempty"`
}

// IsUnlocked reports whether the achievement carries a real unlock timestamp.
func (a *Achievement) IsUnlocked() bool {
	return a.DateUnlocked != nil
}

// Rarity buckets the achievement by its population unlock rate. A zero
// percent means "unknown" and is reported as common rather than ultra rare.
func (a *Achievement) Rarity() string {
	switch {
	case a.Percent <= 0:
		return RarityCommon
	case a.Percent <= 2:
		return RarityUltraRare
	case a.Percent <= 10:
		return RarityRare
	case a.Percent <= 30:
		return RarityUncommon
	default:
		return RarityCommon
	}
}

// NormalizeUnlockDate converts provider timestamps into the canonical
// optional form. The zero time and year-one dates are sentinels some
// storefronts use for "never unlocked"; both normalize to nil.
func NormalizeUnlockDate(t time.Time) *time.Time {
	if t.IsZero() || t.Year() <= 1 {
		return nil
	}
	return &t
}

// CalcGamerScore derives a gamerscore from the unlock percentage when a
// source does not supply one. Rarer achievements score higher.
func CalcGamerScore(percent float64) float64 {
	switch {
	case percent <= 0:
		return 0
	case percent <= 2:
		return 180
	case percent <= 10:
		return 90
	case percent <= 30:
		return 30
	default:
		return 15
	}
}
