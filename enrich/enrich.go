// Package enrich reconciles achievement records from one source with
// supplementary data from another: image URLs matched by a layered name
// heuristic, and rarity/gamerscore backfill matched by identifier.
package enrich

import (
	"log/slog"
	"math"
	"strings"

	"github.com/questlog/achievements/internal/config"
	"github.com/questlog/achievements/models"
	"github.com/questlog/achievements/normalize"
)

// minContainmentLen gates the substring and prefix/suffix stages: shorter
// normalized names ("go") would false-positive against unrelated keys.
const minContainmentLen = 4

// ApplyImages fills missing unlocked/locked image URLs on items from the
// supplementary name→URL map. Each achievement runs the match stages in
// order and stops at the first hit:
//
//  1. exact match on normalized achievement name
//  2. exact match on normalized API name
//  3. substring containment either direction (names >= 4 normalized chars)
//  4. prefix/suffix containment either direction (same length gate)
//  5. token overlap: >= half the achievement's tokens, rounded up
//
// Achievements that already carry an unlocked-image URL are never touched.
// Candidate iteration follows the image map's insertion order, so matching
// is deterministic. Returns the number of achievements that got an image.
func ApplyImages(items []models.Achievement, images *models.ImageMap) int {
	if len(items) == 0 || images.Len() == 0 {
		return 0
	}

	keys, byNorm := normalizeKeys(images)
	tokenSets := make(map[string]map[string]bool, len(keys))
	for _, k := range keys {
		set := map[string]bool{}
		for _, w := range normalize.Tokens(k) {
			set[w] = true
		}
		tokenSets[k] = set
	}

	overlapThreshold := config.WordOverlap()

	matched := 0
	for i := range items {
		ach := &items[i]
		if ach.URLUnlocked != "" {
			continue
		}

		url, key := matchImage(ach, keys, byNorm, tokenSets, overlapThreshold)
		if url == "" {
			continue
		}
		ach.URLUnlocked = url
		if ach.URLLocked == "" {
			ach.URLLocked = url
		}
		matched++
		slog.Debug("Matched achievement image", "achievement", ach.Name, "key", key)
	}
	return matched
}

func matchImage(ach *models.Achievement, keys []string, byNorm map[string]string, tokenSets map[string]map[string]bool, overlapThreshold float64) (url, key string) {
	achNorm := normalize.Name(ach.Name)

	// 1: exact name
	if u, ok := byNorm[achNorm]; ok {
		return u, achNorm
	}

	// 2: exact API name
	if apiNorm := normalize.Name(ach.APIName); apiNorm != "" {
		if u, ok := byNorm[apiNorm]; ok {
			return u, apiNorm
		}
	}

	// 3: containment either direction, length-gated
	if len(achNorm) >= minContainmentLen {
		for _, k := range keys {
			if strings.Contains(k, achNorm) || strings.Contains(achNorm, k) {
				return byNorm[k], k
			}
		}
	}

	// 4: prefix/suffix either direction, same gate
	if len(achNorm) >= minContainmentLen {
		for _, k := range keys {
			if strings.HasPrefix(achNorm, k) || strings.HasPrefix(k, achNorm) ||
				strings.HasSuffix(achNorm, k) || strings.HasSuffix(k, achNorm) {
				return byNorm[k], k
			}
		}
	}

	// 5: token overlap
	achTokens := normalize.Tokens(ach.Name)
	if len(achTokens) > 0 {
		need := int(math.Ceil(float64(len(achTokens)) * overlapThreshold))
		for _, k := range keys {
			set := tokenSets[k]
			overlap := 0
			for _, w := range achTokens {
				if set[w] {
					overlap++
				}
			}
			if overlap >= need {
				return byNorm[k], k
			}
		}
	}

	return "", ""
}

// normalizeKeys maps the image map's keys to canonical form, first key wins
// on normalization collisions, preserving insertion order.
func normalizeKeys(images *models.ImageMap) ([]string, map[string]string) {
	var keys []string
	byNorm := map[string]string{}
	images.Range(func(k, url string) bool {
		norm := normalize.Name(k)
		if norm == "" {
			return true
		}
		if _, ok := byNorm[norm]; !ok {
			keys = append(keys, norm)
			byNorm[norm] = url
		}
		return true
	})
	return keys, byNorm
}

// ApplyRarity copies percent and gamerscore from source records onto items,
// matching by API name, then display name, then display name against the
// source's API name. Returns the names of source achievements that matched
// nothing, for a single summary log at the call site.
func ApplyRarity(items []models.Achievement, source []models.Achievement) (missing []string) {
	for si := range source {
		src := &source[si]
		found := findByIdentity(items, src)
		if found == nil {
			if src.Name != "" {
				missing = append(missing, src.Name)
			}
			continue
		}
		if src.APIName != "" {
			found.APIName = src.APIName
		}
		found.Percent = src.Percent
		if src.GamerScore > 0 {
			found.GamerScore = src.GamerScore
		} else {
			found.GamerScore = models.CalcGamerScore(src.Percent)
		}
	}
	return missing
}

func findByIdentity(items []models.Achievement, src *models.Achievement) *models.Achievement {
	for i := range items {
		if src.APIName != "" && strings.EqualFold(items[i].APIName, src.APIName) {
			return &items[i]
		}
	}
	for i := range items {
		if src.Name != "" && strings.EqualFold(items[i].Name, src.Name) {
			return &items[i]
		}
	}
	for i := range items {
		if src.APIName != "" && strings.EqualFold(items[i].Name, src.APIName) {
			return &items[i]
		}
	}
	return nil
}

// Dedupe removes achievements with duplicate names, keeping the first
// occurrence, and drops unnamed records.
func Dedupe(items []models.Achievement) []models.Achievement {
	seen := map[string]bool{}
	out := items[:0]
	for _, a := range items {
		if a.Name == "" {
			continue
		}
		if seen[a.Name] {
			continue
		}
		seen[a.Name] = true
		out = append(out, a)
	}
	return out
}
