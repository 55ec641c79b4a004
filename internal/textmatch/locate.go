package textmatch

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Span marks a half-open byte range [Start, End) in the original, unfolded
// text. Start and End always fall on rune boundaries.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Matches reports whether query occurs inside target once both are folded.
// An empty query, or one that folds to nothing, matches nothing.
func Matches(query, target string) bool {
	folded := Normalize(query)
	if folded == "" {
		return false
	}
	return strings.Contains(Normalize(target), folded)
}

// FindSpans locates every folded occurrence of query inside target and
// returns spans into the original text, ordered by start and non-overlapping.
// It never fails; no occurrence yields an empty result.
//
// The scan grows a window rune by rune from each candidate start and folds it
// on every step, which is quadratic in the field length. Catalog fields are
// single titles and lyric lines, short enough that this does not matter.
func FindSpans(query, target string) []Span {
	folded := Normalize(query)
	if folded == "" || target == "" {
		return nil
	}
	// A window whose folded form grows past this without matching can only
	// keep growing, so the start is hopeless.
	limit := 2 * len(folded)

	var spans []Span
	for start := 0; start < len(target); {
		r, size := utf8.DecodeRuneInString(target[start:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			// Runes that fold away cannot begin an occurrence.
			start += size
			continue
		}

		end, accepted := start, false
		for end < len(target) {
			_, step := utf8.DecodeRuneInString(target[end:])
			end += step
			window := Normalize(target[start:end])
			if window == folded {
				accepted = true
				break
			}
			if len(window) > limit {
				break
			}
		}

		if !accepted {
			start += size
			continue
		}
		// Resuming past the accepted end keeps spans ordered and disjoint.
		if n := len(spans); n == 0 || start >= spans[n-1].End {
			spans = append(spans, Span{Start: start, End: end})
		}
		start = end
	}
	return spans
}
