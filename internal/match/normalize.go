package match

import (
	"regexp"
	"strings"
	"unicode"
)

// parenthetical matches bracketed qualifiers like "(Remastered)" or
// "[Deluxe Edition]" anywhere in a title.
var parenthetical = regexp.MustCompile(`\s*[(\[][^)\]]*[)\]]`)

// epSuffix matches a trailing EP marker: "Something EP", "Something - EP".
var epSuffix = regexp.MustCompile(`(?i)\s*-?\s*\bEP\s*$`)

// multiSpace collapses runs of whitespace.
var multiSpace = regexp.MustCompile(`\s+`)

// CleanTitle strips enclosing parenthetical qualifiers and trailing EP
// suffixes from an album or artist name. Regional and edition markers
// ("(Deluxe)", "(Remastered 2009)", "- EP") are noise for both query text
// and title comparison.
func CleanTitle(name string) string {
	s := parenthetical.ReplaceAllString(name, "")
	s = epSuffix.ReplaceAllString(s, "")
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimFunc(s, unicode.IsSpace)
}

// normalizeTitle lowercases a cleaned title for comparison.
func normalizeTitle(name string) string {
	return strings.ToLower(CleanTitle(name))
}

// tokenize splits a normalized title into comparison tokens.
func tokenize(name string) []string {
	return strings.Fields(normalizeTitle(name))
}

// partialWeight is the credit a containment match earns relative to an
// exact token match.
const partialWeight = 0.5

// minContainRatio is the minimum length ratio (shorter/longer) for a
// containment match between two tokens to count at all.
const minContainRatio = 0.2

// overlapScore computes the weighted fraction of tokens in a that also
// appear in b. Exact token matches count 1, containment matches count
// partialWeight when the shorter token is at least minContainRatio the
// length of the longer.
func overlapScore(a, b []string) float64 {
	if len(a) == 0 {
		return 0
	}
	var matched float64
	for _, ta := range a {
		best := 0.0
		for _, tb := range b {
			if ta == tb {
				best = 1
				break
			}
			if tokensContain(ta, tb) && partialWeight > best {
				best = partialWeight
			}
		}
		matched += best
	}
	return matched / float64(len(a))
}

// tokensContain reports whether one token contains the other and their
// lengths are close enough for the containment to be meaningful.
func tokensContain(a, b string) bool {
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(longer) == 0 {
		return false
	}
	if float64(len(shorter))/float64(len(longer)) < minContainRatio {
		return false
	}
	return strings.Contains(longer, shorter)
}

// isVariousArtists reports whether any artist name marks a compilation.
func isVariousArtists(names []string) bool {
	for _, n := range names {
		ln := strings.ToLower(strings.TrimSpace(n))
		if ln == "various" || ln == "various artists" || ln == "verschiedene interpreten" {
			return true
		}
	}
	return false
}
