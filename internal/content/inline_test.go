package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStandaloneTrackTag(t *testing.T) {
	msg := Parse("[EMBED_TRACK:audio/x.mp3:My Track]")

	assert.Empty(t, msg.TextSegments)
	assert.Equal(t, []Media{TrackRef{Path: "audio/x.mp3", Name: "My Track"}}, msg.Media)
}

func TestParseScoreTagGetsPageList(t *testing.T) {
	msg := Parse("[EMBED_SCORE:https://cdn/h5.pdf:Hino 5]")

	assert.Equal(t, []Media{
		ScoreRef{URL: "https://cdn/h5.pdf", Name: "Hino 5", Pages: []string{"https://cdn/h5.pdf"}},
	}, msg.Media)
}

func TestParseTagsInterleaveWithText(t *testing.T) {
	msg := Parse("Before [EMBED_SCORE:u:A] mid [EMBED_TRACK:p:B] after")

	assert.Equal(t, []string{"Before ", " mid ", " after"}, msg.TextSegments)
	assert.Equal(t, []Media{
		ScoreRef{URL: "u", Name: "A", Pages: []string{"u"}},
		TrackRef{Path: "p", Name: "B"},
	}, msg.Media)
}

func TestParseTagNameMayContainColons(t *testing.T) {
	msg := Parse("[EMBED_TRACK:p.mp3:Ao Vivo: Acústico]")

	assert.Equal(t, []Media{TrackRef{Path: "p.mp3", Name: "Ao Vivo: Acústico"}}, msg.Media)
}

func TestParseTagNameDefaults(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Media
	}{
		{"track", "[EMBED_TRACK:p.mp3:]", TrackRef{Path: "p.mp3", Name: "Track"}},
		{"score", "[EMBED_SCORE:u.pdf: ]", ScoreRef{URL: "u.pdf", Name: "Score", Pages: []string{"u.pdf"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Parse(tt.content)
			assert.Equal(t, []Media{tt.want}, msg.Media)
		})
	}
}

func TestParseMalformedTagsStayLiteral(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"blank first field", "[EMBED_TRACK: :name]"},
		{"missing name field", "[EMBED_TRACK:x.mp3]"},
		{"unknown tag", "[EMBED_VIDEO:x.mp4:clip]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Parse(tt.content)
			assert.Empty(t, msg.Media)
			assert.Equal(t, []string{tt.content}, msg.TextSegments)
		})
	}
}
