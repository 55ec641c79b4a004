package content

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlainText(t *testing.T) {
	msg := Parse("Olá, tudo bem?")

	assert.Equal(t, []string{"Olá, tudo bem?"}, msg.TextSegments)
	assert.Empty(t, msg.Media)
}

func TestParseEmptyContent(t *testing.T) {
	msg := Parse("")

	assert.Empty(t, msg.TextSegments)
	assert.Empty(t, msg.Media)
}

func TestParseWhitespaceContentKept(t *testing.T) {
	msg := Parse("  \n ")

	assert.Equal(t, []string{"  \n "}, msg.TextSegments)
}

func TestParseWithStatsCounters(t *testing.T) {
	content := "```json\n" +
		`{"scores": [{"name": "no url"}, {"url": "https://ok.pdf"}]}` + "\n" +
		"```\n" +
		"text\n" +
		"```json\n{{{{\n```"

	msg, stats := NewParser().ParseWithStats(content)

	assert.Equal(t, 2, stats.Blocks)
	assert.Equal(t, 1, stats.DemotedBlocks)
	assert.Equal(t, 1, stats.SkippedEntries)
	assert.Zero(t, stats.InlineTags)
	assert.Equal(t, []Media{ScoreRef{URL: "https://ok.pdf", Name: "Score", Pages: []string{"https://ok.pdf"}}}, msg.Media)
	assert.Equal(t, []string{"text\n", "```json\n{{{{\n```"}, msg.TextSegments)
}

func TestParseWithStatsInlineTags(t *testing.T) {
	_, stats := NewParser().ParseWithStats("[EMBED_TRACK:a.mp3:A] e [EMBED_SCORE:u:B]")

	assert.Equal(t, 2, stats.InlineTags)
	assert.Zero(t, stats.Blocks)
}

func TestParsedMessageJSONCarriesKinds(t *testing.T) {
	msg := Parse("```json\n" +
		`{"scores": [{"url": "u"}], "tracks": [{"path": "p"}], "resources": [{"url": "r"}]}` + "\n" +
		"```")
	require.Len(t, msg.Media, 3)

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded struct {
		Media []map[string]any `json:"media"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	kinds := make([]string, 0, len(decoded.Media))
	for _, m := range decoded.Media {
		kind, _ := m["kind"].(string)
		kinds = append(kinds, kind)
	}
	assert.Equal(t, []string{"score", "track", "resource"}, kinds)
}

func TestParsedMessageJSONRoundTrip(t *testing.T) {
	msg := Parse("Veja:\n```json\n" +
		`{"scores": [{"url": "u.pdf", "name": "Hino"}], "tracks": [{"path": "p.mp3"}]}` + "\n" +
		"```")
	require.Len(t, msg.Media, 2)

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var restored ParsedMessage
	require.NoError(t, json.Unmarshal(raw, &restored))

	assert.Equal(t, msg.TextSegments, restored.TextSegments)
	require.Len(t, restored.Media, 2)
	assert.Equal(t, ScoreRef{URL: "u.pdf", Name: "Hino", Pages: []string{"u.pdf"}}, restored.Media[0])
	assert.Equal(t, TrackRef{Path: "p.mp3", Name: "Track"}, restored.Media[1])
}

func TestParsedMessageUnmarshalRejectsUnknownKind(t *testing.T) {
	raw := `{"text_segments": [], "media": [{"kind": "video", "url": "u"}]}`

	var msg ParsedMessage
	err := json.Unmarshal([]byte(raw), &msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown media kind")
}

func TestCustomBlockSyntax(t *testing.T) {
	p := NewParserWithSyntax(BlockSyntax{Open: []string{"<<<media"}, Close: ">>>"})
	content := "<<<media\n{\"tracks\": [{\"path\": \"x.mp3\"}]}\n>>>"

	msg := p.Parse(content)

	assert.Equal(t, []Media{TrackRef{Path: "x.mp3", Name: "Track"}}, msg.Media)
	// Default fences mean nothing to this parser.
	assert.Equal(t, []string{"```json\nhi\n```"}, p.Parse("```json\nhi\n```").TextSegments)
}
