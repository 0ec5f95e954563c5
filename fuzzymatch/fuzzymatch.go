// Package fuzzymatch scores secondary-provider search results against a
// target game name and selects the best candidate. Scoring uses a token-set
// similarity so word reordering and partial subtitles ("Assassin's Creed" vs
// "Assassin's Creed: Director's Cut") still score high.
package fuzzymatch

import (
	"log/slog"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/questlog/achievements/internal/config"
	"github.com/questlog/achievements/models"
	"github.com/questlog/achievements/normalize"
)

// platformDenylist marks candidates that are almost certainly a different
// platform family when no explicit hint matched. Best effort only: the
// filter never eliminates the last remaining candidate.
var platformDenylist = []string{"nintendo", "switch"}

// Score returns a token-set similarity in [0,100] between the two names,
// compared in canonical game-name form.
func Score(a, b string) int {
	return fuzzy.TokenSetRatio(normalize.GameName(a), normalize.GameName(b))
}

// PickBest selects the candidate to fetch for target. With an empty candidate
// list it returns nil; with exactly one candidate it always returns it. Ties
// are broken by input order, first occurrence wins.
func PickBest(candidates []models.SearchResult, target string, platformHint string) *models.SearchResult {
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		return &candidates[0]
	}

	pool, hinted := filterPlatform(candidates, platformHint)
	if !hinted {
		pool = filterDenylist(pool)
	}

	targetNorm := normalize.GameName(target)

	best := 0
	bestScore := -1
	for i := range pool {
		s := fuzzy.TokenSetRatio(targetNorm, normalize.GameName(pool[i].Name))
		if s > bestScore {
			best, bestScore = i, s
		}
	}

	if bestScore >= config.MatchThreshold() {
		return &pool[best]
	}

	// Below threshold: an exact canonical-name match anywhere in the original
	// set beats a mediocre fuzzy winner.
	for i := range candidates {
		if normalize.GameName(candidates[i].Name) == targetNorm {
			return &candidates[i]
		}
	}

	slog.Debug("No candidate reached match threshold, using best available",
		"target", target, "candidate", pool[best].Name, "score", bestScore)
	return &pool[best]
}

// filterPlatform keeps candidates listing the hinted platform. Falls back to
// the full set when the filter would empty it. The second return reports
// whether the hint matched anything; a matched hint is authoritative and the
// denylist heuristic must not second-guess it.
func filterPlatform(candidates []models.SearchResult, hint string) ([]models.SearchResult, bool) {
	if hint == "" {
		return candidates, false
	}
	var kept []models.SearchResult
	for _, c := range candidates {
		if c.HasPlatform(hint) {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return candidates, false
	}
	return kept, true
}

// filterDenylist drops candidates whose name or platforms mention a denylisted
// platform family, keeping at least one candidate no matter what.
func filterDenylist(candidates []models.SearchResult) []models.SearchResult {
	var kept []models.SearchResult
	for _, c := range candidates {
		if !denied(c) {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return candidates
	}
	return kept
}

func denied(c models.SearchResult) bool {
	for _, word := range platformDenylist {
		if strings.Contains(strings.ToLower(c.Name), word) {
			return true
		}
		for _, p := range c.Platforms {
			if strings.Contains(strings.ToLower(p), word) {
				return true
			}
		}
	}
	return false
}
