package content

import (
	"regexp"
	"sort"
	"strings"
)

// Older prompt templates embedded media as bracketed tags instead of fenced
// blocks. The first field may not contain ':' or ']'; the display name runs
// greedily to the closing bracket so it may itself contain colons.
var (
	scoreTagPattern = regexp.MustCompile(`\[EMBED_SCORE:([^\]:]+):([^\]]*)\]`)
	trackTagPattern = regexp.MustCompile(`\[EMBED_TRACK:([^\]:]+):([^\]]*)\]`)
)

type tagMatch struct {
	start, end int
	media      Media
}

// extractInlineTags scans content for legacy bracketed media tags and walks
// the matches left to right, interleaving the literal text between them with
// the media they carry. Content without a single well-formed tag yields an
// empty result so the caller can fall back to plain text.
func extractInlineTags(content string) extractResult {
	var matches []tagMatch
	for _, loc := range scoreTagPattern.FindAllStringSubmatchIndex(content, -1) {
		url := strings.TrimSpace(content[loc[2]:loc[3]])
		if url == "" {
			continue
		}
		name := strings.TrimSpace(content[loc[4]:loc[5]])
		if name == "" {
			name = "Score"
		}
		matches = append(matches, tagMatch{
			start: loc[0],
			end:   loc[1],
			media: ScoreRef{URL: url, Name: name, Pages: []string{url}},
		})
	}
	for _, loc := range trackTagPattern.FindAllStringSubmatchIndex(content, -1) {
		path := strings.TrimSpace(content[loc[2]:loc[3]])
		if path == "" {
			continue
		}
		name := strings.TrimSpace(content[loc[4]:loc[5]])
		if name == "" {
			name = "Track"
		}
		matches = append(matches, tagMatch{
			start: loc[0],
			end:   loc[1],
			media: TrackRef{Path: path, Name: name},
		})
	}

	var res extractResult
	if len(matches) == 0 {
		return res
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].start < matches[j].start })

	pos := 0
	for _, m := range matches {
		if m.start < pos {
			// Overlapping match, already consumed.
			continue
		}
		if text := content[pos:m.start]; text != "" {
			res.segments = append(res.segments, text)
		}
		res.media = append(res.media, m.media)
		res.inlineTags++
		pos = m.end
	}
	if tail := content[pos:]; tail != "" {
		res.segments = append(res.segments, tail)
	}
	return res
}
