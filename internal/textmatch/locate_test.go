package textmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		target string
		want   bool
	}{
		{"accent insensitive", "gloria", "Glória a Deus", true},
		{"case insensitive", "GLÓRIA", "gloria", true},
		{"substring", "amor", "Teu amor me alcançou", true},
		{"no occurrence", "amor", "amizade", false},
		{"empty query", "", "anything", false},
		{"query folds to nothing", "?!.", "anything", false},
		{"empty target", "x", "", false},
		{"interior spaces not collapsed", "ab", "a          b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.query, tt.target))
		})
	}
}

func TestFindSpans(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		target string
		want   []Span
	}{
		{"two occurrences", "amor", "O amor é amor", []Span{{2, 6}, {10, 14}}},
		{"whole accented word", "salvacao", "Salvação", []Span{{0, 10}}},
		{"accented tail", "deus", "Glória a Deus", []Span{{10, 14}}},
		{"leading punctuation excluded", "amor", "¡Amor!", []Span{{2, 6}}},
		{"adjacent repeats", "aa", "aaaa", []Span{{0, 2}, {2, 4}}},
		{"no match", "paz", "O amor é amor", nil},
		{"window abandoned", "ab", "a          b", nil},
		{"empty query", "", "whatever", nil},
		{"invalid utf8 prefix", "amor", "\xff\xfeamor", []Span{{2, 6}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindSpans(tt.query, tt.target))
		})
	}
}

// Spans point into the original bytes, so slicing the target with them must
// hand back text that folds to the query.
func TestFindSpansIndexOriginal(t *testing.T) {
	target := "Coração que canta: coração que vive"
	spans := FindSpans("coracao", target)
	assert.Len(t, spans, 2)
	prevEnd := 0
	for _, sp := range spans {
		assert.GreaterOrEqual(t, sp.Start, prevEnd, "spans must not overlap")
		assert.Equal(t, "coracao", Normalize(target[sp.Start:sp.End]))
		prevEnd = sp.End
	}
}
