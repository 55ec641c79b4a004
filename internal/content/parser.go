package content

// Parser breaks assistant replies into text segments and media references.
// The zero value is not usable; construct with NewParser, or with
// NewParserWithSyntax when the prompt template uses different fences.
type Parser struct {
	syntax BlockSyntax
}

// NewParser returns a parser for the default fence contract.
func NewParser() *Parser {
	return NewParserWithSyntax(DefaultBlockSyntax())
}

// NewParserWithSyntax returns a parser bound to a custom fence contract.
func NewParserWithSyntax(syntax BlockSyntax) *Parser {
	return &Parser{syntax: syntax}
}

// Stats describes what one parse saw and salvaged. Blocks counts fenced
// blocks found, DemotedBlocks those whose payload failed to decode and came
// back as literal text, SkippedEntries payload entries dropped for missing
// required fields, and InlineTags legacy tags recognized by the fallback.
type Stats struct {
	Blocks         int `json:"blocks"`
	DemotedBlocks  int `json:"demoted_blocks"`
	SkippedEntries int `json:"skipped_entries"`
	InlineTags     int `json:"inline_tags"`
}

// Parse extracts the renderable parts of content. It never fails: malformed
// blocks come back as literal text, and content without any recognizable
// structure becomes a single text segment.
func (p *Parser) Parse(content string) ParsedMessage {
	msg, _ := p.ParseWithStats(content)
	return msg
}

// ParseWithStats is Parse plus counters for logging and metrics.
//
// The pipeline has three stages. The block pass runs first. The inline-tag
// pass runs only when the block pass produced nothing at all, neither
// segments nor media; a reply that contains any fenced block, even a demoted
// one, never reaches it. When both passes come up empty the whole reply is
// one literal segment, so for non-empty content the result always carries at
// least one segment or one media reference.
func (p *Parser) ParseWithStats(content string) (ParsedMessage, Stats) {
	if content == "" {
		return ParsedMessage{}, Stats{}
	}

	res := p.extractBlocks(content)
	stats := Stats{
		Blocks:         res.blocks,
		DemotedBlocks:  res.demoted,
		SkippedEntries: res.skipped,
	}
	if res.empty() {
		res = extractInlineTags(content)
		stats.InlineTags = res.inlineTags
	}
	if res.empty() {
		res.segments = []string{content}
	}
	return ParsedMessage{TextSegments: res.segments, Media: res.media}, stats
}

// Parse runs a default parser over content. Callers that parse many replies
// should hold their own Parser.
func Parse(content string) ParsedMessage {
	return NewParser().Parse(content)
}
