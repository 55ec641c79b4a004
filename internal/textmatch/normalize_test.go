package textmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"strips diacritics", "Salvação", "salvacao"},
		{"lowercases", "Glória a Deus", "gloria a deus"},
		{"trims ends only", "  Santo,   Santo!  ", "santo   santo"},
		{"keeps interior runs", "Ação & Fé", "acao  fe"},
		{"drops punctuation", "don't stop", "dont stop"},
		{"drops symbols", "🎸 Louvor", "louvor"},
		{"keeps digits", "Salmo 23", "salmo 23"},
		{"keeps han letters", "早晨", "早晨"},
		{"empty", "", ""},
		{"punctuation only", "!!!", ""},
		{"whitespace only", " \t\n ", ""},
		{"invalid utf8 dropped", "b\xc3\x28d", "bd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Salvação",
		"  Glória — a * Deus!  ",
		"já era 😀 tempo",
		"ÀÉÎÕÜ ç Ñ",
		"plain ascii",
		"123-456",
		"\xff\xfebroken",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}
