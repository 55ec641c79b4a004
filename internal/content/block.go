package content

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// BlockSyntax pins the fence tokens shared with the assistant prompt
// template. Tokens compare against whole lines after trailing spaces, tabs
// and a carriage return are dropped; they must match exactly.
type BlockSyntax struct {
	Open  []string
	Close string
}

// DefaultBlockSyntax matches the fences the built-in prompt asks the model
// to emit.
func DefaultBlockSyntax() BlockSyntax {
	return BlockSyntax{
		Open:  []string{"```json", "```yaml"},
		Close: "```",
	}
}

// extractResult accumulates one extraction pass. segments and media keep
// document order; the counters feed caller-side logging and metrics.
type extractResult struct {
	segments []string
	media    []Media

	blocks     int
	demoted    int
	skipped    int
	inlineTags int
}

// empty reports whether the pass produced nothing at all. The parser uses
// this to decide whether the legacy inline-tag pass should run.
func (r extractResult) empty() bool {
	return len(r.segments) == 0 && len(r.media) == 0
}

func (r *extractResult) literal(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	r.segments = append(r.segments, text)
}

// extractBlocks scans content line by line for fenced structured blocks and
// mines every block payload for media references. Literal text around blocks
// is kept verbatim, whitespace-only stretches are dropped. A block whose
// payload does not decode to a mapping is demoted: its full raw text,
// delimiters included, comes back as a text segment instead.
func (p *Parser) extractBlocks(content string) extractResult {
	var res extractResult
	segStart := 0
	for off := 0; off < len(content); {
		lineEnd, next := lineBounds(content, off)
		if !p.isOpen(trimLine(content[off:lineEnd])) {
			off = next
			continue
		}
		closeStart, closeNext, ok := p.findClose(content, next)
		if !ok {
			// Unterminated fence, the rest stays literal.
			off = next
			continue
		}

		res.blocks++
		res.literal(content[segStart:off])
		if doc, ok := decodePayload(content[next:closeStart]); ok {
			res.media = append(res.media, mineMappings(doc, &res.skipped)...)
		} else {
			res.demoted++
			res.segments = append(res.segments, content[off:closeNext])
		}
		segStart = closeNext
		off = closeNext
	}
	res.literal(content[segStart:])
	return res
}

func (p *Parser) isOpen(line string) bool {
	for _, tok := range p.syntax.Open {
		if line == tok {
			return true
		}
	}
	return false
}

// findClose returns the byte range of the first closing delimiter line at or
// after from. The returned next offset includes the line's newline, so the
// block substring swallows it.
func (p *Parser) findClose(content string, from int) (start, next int, ok bool) {
	for off := from; off < len(content); {
		lineEnd, lineNext := lineBounds(content, off)
		if trimLine(content[off:lineEnd]) == p.syntax.Close {
			return off, lineNext, true
		}
		off = lineNext
	}
	return 0, 0, false
}

// lineBounds returns the end of the line starting at off (excluding the
// newline) and the offset of the following line.
func lineBounds(s string, off int) (end, next int) {
	if i := strings.IndexByte(s[off:], '\n'); i >= 0 {
		return off + i, off + i + 1
	}
	return len(s), len(s)
}

func trimLine(line string) string {
	return strings.TrimRight(line, " \t\r")
}

// decodePayload decodes a block payload as JSON first and YAML second. Only
// a mapping counts as decoded; lists, scalars and empty documents do not.
func decodePayload(payload string) (map[string]any, bool) {
	raw := strings.TrimSpace(payload)
	if raw == "" {
		return nil, false
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err == nil {
		return doc, true
	}
	doc = nil
	if err := yaml.Unmarshal([]byte(raw), &doc); err == nil && doc != nil {
		return doc, true
	}
	return nil, false
}

// mineMappings pulls media references out of one decoded payload. The list
// keys are mined in a fixed order (scores, tracks, resources), then the
// single top-level object forms; both may contribute from the same payload.
// Entries missing their required fields are skipped and counted.
func mineMappings(doc map[string]any, skipped *int) []Media {
	var media []Media

	for _, entry := range mappingList(doc, "scores", skipped) {
		url := stringField(entry, "url")
		pages := stringList(entry, "pages")
		if url == "" && len(pages) == 0 {
			*skipped++
			continue
		}
		if len(pages) == 0 {
			pages = []string{url}
		}
		media = append(media, ScoreRef{
			URL:   url,
			Name:  fieldOr(entry, "name", "Score"),
			Pages: pages,
		})
	}

	for _, entry := range mappingList(doc, "tracks", skipped) {
		path := stringField(entry, "path")
		if path == "" {
			*skipped++
			continue
		}
		media = append(media, TrackRef{
			Path: path,
			Name: fieldOr(entry, "name", "Track"),
		})
	}

	for _, entry := range mappingList(doc, "resources", skipped) {
		url := stringField(entry, "url")
		if url == "" {
			*skipped++
			continue
		}
		media = append(media, ResourceRef{
			URL:          url,
			Name:         fieldOr(entry, "name", "Resource"),
			ResourceKind: "link",
			Description:  stringField(entry, "description"),
		})
	}

	return append(media, mineSingle(doc)...)
}

// mineSingle handles payloads that are themselves one media object rather
// than lists of them. At most one form applies per payload.
func mineSingle(doc map[string]any) []Media {
	url := stringField(doc, "url")
	path := stringField(doc, "path")
	_, hasType := doc["type"]

	switch {
	case url != "" && stringField(doc, "type") == "score",
		url != "" && stringField(doc, "name") != "" && !hasType:
		return []Media{ScoreRef{
			URL:   url,
			Name:  fieldOr(doc, "name", "Score"),
			Pages: []string{url},
		}}
	case path != "" && stringField(doc, "type") == "track":
		return []Media{TrackRef{
			Path: path,
			Name: fieldOr(doc, "name", "Track"),
		}}
	case url != "" && stringField(doc, "type") == "resource":
		return []Media{ResourceRef{
			URL:          url,
			Name:         fieldOr(doc, "name", "Resource"),
			ResourceKind: "link",
			Description:  stringField(doc, "description"),
		}}
	}
	return nil
}

// mappingList returns the mapping entries of the list under key. A value
// that is not a list yields nothing; list items that are not mappings are
// skipped and counted.
func mappingList(doc map[string]any, key string, skipped *int) []map[string]any {
	items, ok := doc[key].([]any)
	if !ok {
		return nil
	}
	entries := make([]map[string]any, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			*skipped++
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// stringField returns the string under key, or "" when the key is absent or
// holds a non-string. Typing is strict: numbers and booleans do not count.
func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func fieldOr(m map[string]any, key, fallback string) string {
	if s := stringField(m, key); s != "" {
		return s
	}
	return fallback
}

// stringList returns the non-empty string entries of the list under key.
func stringList(m map[string]any, key string) []string {
	items, ok := m[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
