// Package normalize canonicalizes game and achievement names so that
// comparisons are meaningful across sources with different punctuation and
// capitalization conventions.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlnum   = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespace = regexp.MustCompile(`\s+`)

	// Trailing edition/subtitle suffixes stripped from game titles only.
	// Achievement titles keep their punctuation-derived words, so these
	// patterns never run in Name.
	editionSuffix = regexp.MustCompile(`\s*[:\-]?\s*(deluxe|definitive|enhanced|complete|standard|ultimate|gold|premium|legendary|anniversary|collectors?|game of the year|goty|directors? cut|remastered|redux)(\s+(edition|cut|version|bundle))?$`)

	diacriticsRemover = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Name canonicalizes a name for comparison: removes diacritics, lowercases,
// strips everything outside [a-z0-9\s], collapses whitespace and trims.
// Total and idempotent; empty in, empty out.
func Name(s string) string {
	if s == "" {
		return ""
	}
	out, _, err := transform.String(diacriticsRemover, s)
	if err != nil {
		out = s
	}
	out = strings.ToLower(out)
	out = nonAlnum.ReplaceAllString(out, "")
	out = whitespace.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// GameName canonicalizes a game title for matching a library entry against a
// storefront listing: Name plus trailing edition-suffix trimming. Kept
// separate from Name because achievement titles must keep their full text.
func GameName(s string) string {
	out := Name(s)
	for {
		trimmed := strings.TrimSpace(editionSuffix.ReplaceAllString(out, ""))
		if trimmed == out || trimmed == "" {
			return out
		}
		out = trimmed
	}
}

// Tokens splits a canonical name into matching tokens, dropping short words
// ("of", "a", "to") that add noise to overlap counting.
func Tokens(s string) []string {
	fields := strings.Fields(Name(s))
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) > 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
