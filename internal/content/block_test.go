package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseScoresList(t *testing.T) {
	content := "Here are the options:\n" +
		"```json\n" +
		`{"scores": [{"url": "https://cdn/am.pdf", "name": "Amazing Grace"}, {"pages": ["p1.png", "p2.png"]}]}` + "\n" +
		"```\n" +
		"Pick one."

	msg := Parse(content)

	assert.Equal(t, []string{"Here are the options:\n", "Pick one."}, msg.TextSegments)
	assert.Equal(t, []Media{
		ScoreRef{URL: "https://cdn/am.pdf", Name: "Amazing Grace", Pages: []string{"https://cdn/am.pdf"}},
		ScoreRef{Name: "Score", Pages: []string{"p1.png", "p2.png"}},
	}, msg.Media)
}

func TestParseMiningOrder(t *testing.T) {
	// Key order in the payload must not matter, output order is fixed.
	content := "```json\n" +
		`{"resources": [{"url": "https://r", "name": "Site"}], "tracks": [{"path": "a.mp3"}], "scores": [{"url": "https://s"}]}` + "\n" +
		"```"

	msg := Parse(content)

	assert.Empty(t, msg.TextSegments)
	assert.Equal(t, []Media{
		ScoreRef{URL: "https://s", Name: "Score", Pages: []string{"https://s"}},
		TrackRef{Path: "a.mp3", Name: "Track"},
		ResourceRef{URL: "https://r", Name: "Site", ResourceKind: "link"},
	}, msg.Media)
}

func TestParseSingleObjectForms(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []Media
	}{
		{
			name:    "url with score type",
			payload: `{"url": "https://x.pdf", "type": "score"}`,
			want:    []Media{ScoreRef{URL: "https://x.pdf", Name: "Score", Pages: []string{"https://x.pdf"}}},
		},
		{
			name:    "url and name without type",
			payload: `{"url": "https://x.pdf", "name": "Hino 10"}`,
			want:    []Media{ScoreRef{URL: "https://x.pdf", Name: "Hino 10", Pages: []string{"https://x.pdf"}}},
		},
		{
			name:    "path with track type",
			payload: `{"path": "t.ogg", "type": "track", "name": "Intro"}`,
			want:    []Media{TrackRef{Path: "t.ogg", Name: "Intro"}},
		},
		{
			name:    "url with resource type",
			payload: `{"url": "https://site", "type": "resource", "description": "chords"}`,
			want:    []Media{ResourceRef{URL: "https://site", Name: "Resource", ResourceKind: "link", Description: "chords"}},
		},
		{
			name:    "url alone is not enough",
			payload: `{"url": "https://x.pdf"}`,
			want:    nil,
		},
		{
			name:    "unknown type blocks the no-type form",
			payload: `{"url": "https://x.pdf", "name": "X", "type": "other"}`,
			want:    nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := "```json\n" + tt.payload + "\n```"
			msg := Parse(content)
			assert.Equal(t, tt.want, msg.Media)
			if tt.want == nil {
				// Nothing extracted anywhere, so the reply stays one
				// literal segment, fences and all.
				assert.Equal(t, []string{content}, msg.TextSegments)
			} else {
				assert.Empty(t, msg.TextSegments)
			}
		})
	}
}

func TestParseListAndSingleFromSameBlock(t *testing.T) {
	content := "```json\n" +
		`{"url": "https://s.pdf", "type": "score", "tracks": [{"path": "t.mp3", "name": "Demo"}]}` + "\n" +
		"```"

	msg := Parse(content)

	assert.Equal(t, []Media{
		TrackRef{Path: "t.mp3", Name: "Demo"},
		ScoreRef{URL: "https://s.pdf", Name: "Score", Pages: []string{"https://s.pdf"}},
	}, msg.Media)
}

func TestParseMalformedBlockDemoted(t *testing.T) {
	content := "Intro\n```json\nnot json at all\n```\nOutro"

	msg := Parse(content)

	assert.Empty(t, msg.Media)
	assert.Equal(t, []string{
		"Intro\n",
		"```json\nnot json at all\n```\n",
		"Outro",
	}, msg.TextSegments)
}

func TestParseNonMappingPayloadDemoted(t *testing.T) {
	content := "```json\n[1, 2, 3]\n```"

	msg := Parse(content)

	assert.Empty(t, msg.Media)
	assert.Equal(t, []string{content}, msg.TextSegments)
}

func TestParseYAMLBlock(t *testing.T) {
	content := "```yaml\nscores:\n  - url: https://y.pdf\n    name: Salmo 23\n```"

	msg := Parse(content)

	assert.Empty(t, msg.TextSegments)
	assert.Equal(t, []Media{
		ScoreRef{URL: "https://y.pdf", Name: "Salmo 23", Pages: []string{"https://y.pdf"}},
	}, msg.Media)
}

func TestParseUnterminatedFenceStaysLiteral(t *testing.T) {
	content := "```json\n{\"url\": \"u\", \"type\": \"score\"}"

	msg, stats := NewParser().ParseWithStats(content)

	assert.Equal(t, []string{content}, msg.TextSegments)
	assert.Empty(t, msg.Media)
	assert.Zero(t, stats.Blocks)
}

func TestParseSegmentsReconstructContent(t *testing.T) {
	block := "```json\n{\"tracks\": [{\"path\": \"x.mp3\"}]}\n```\n"
	content := "A\n" + block + "B"

	msg := Parse(content)

	assert.Equal(t, strings.Replace(content, block, "", 1), strings.Join(msg.TextSegments, ""))
	assert.Equal(t, []Media{TrackRef{Path: "x.mp3", Name: "Track"}}, msg.Media)
}

func TestParseBlankBetweenBlocksDropped(t *testing.T) {
	content := "```json\n{\"tracks\": [{\"path\": \"a.mp3\"}]}\n```\n\n" +
		"```json\n{\"tracks\": [{\"path\": \"b.mp3\"}]}\n```"

	msg := Parse(content)

	assert.Empty(t, msg.TextSegments)
	assert.Equal(t, []Media{
		TrackRef{Path: "a.mp3", Name: "Track"},
		TrackRef{Path: "b.mp3", Name: "Track"},
	}, msg.Media)
}

func TestParseDemotedBlockSuppressesInlineTags(t *testing.T) {
	// A fenced block was present, so the legacy tag pass must not run even
	// though the block itself was demoted.
	content := "```json\n{{{{\n```\n[EMBED_TRACK:x.mp3:X]"

	msg := Parse(content)

	assert.Empty(t, msg.Media)
	assert.Equal(t, []string{
		"```json\n{{{{\n```\n",
		"[EMBED_TRACK:x.mp3:X]",
	}, msg.TextSegments)
}
