// Package textmatch implements accent- and case-insensitive matching for
// catalog text: song titles, author names and lyric lines. Matching works on
// a folded form of the text while reported spans always index the original
// bytes, so callers can highlight what the user actually typed.
package textmatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldChain decomposes, drops combining marks and every rune that is not a
// letter, digit or whitespace, then recomposes what is left.
var foldChain = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Remove(runes.Predicate(isNoise)),
	norm.NFC,
)

func isNoise(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
}

// Normalize folds s for comparison: lowercase, diacritics stripped
// ("Salvação" -> "salvacao"), punctuation and symbols removed, surrounding
// whitespace trimmed. Interior whitespace is kept as-is. The result of
// normalizing a normalized string is the string itself, and any input is
// accepted, including invalid UTF-8.
func Normalize(s string) string {
	s = strings.ToValidUTF8(s, "")
	folded, _, _ := transform.String(foldChain, strings.ToLower(s))
	return strings.TrimSpace(folded)
}
