// internal/models/song.go
package models

import (
	"time"

	"github.com/Corphon/CantusMCP/internal/textmatch"
)

// Song is one catalog entry. Lyrics hold the full text with line breaks;
// the asset fields are optional pointers into the media library.
type Song struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author,omitempty"`
	Lyrics      string    `json:"lyrics"`
	Tags        []string  `json:"tags,omitempty"`
	ScoreURL    string    `json:"score_url,omitempty"`
	TrackPath   string    `json:"track_path,omitempty"`
	ResourceURL string    `json:"resource_url,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	LastUpdated time.Time `json:"last_updated,omitempty"`
}

// SongSummary is the list form of a song, without the lyrics body.
type SongSummary struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Author string   `json:"author,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// Summary strips a song down to its listing fields.
func (s *Song) Summary() SongSummary {
	return SongSummary{
		ID:     s.ID,
		Title:  s.Title,
		Author: s.Author,
		Tags:   s.Tags,
	}
}

// SearchHit is one matching field of one song. Line is the zero-based lyric
// line for lyrics hits and -1 for title and author hits. Spans index into
// Text so clients can highlight the original characters.
type SearchHit struct {
	SongID string           `json:"song_id"`
	Title  string           `json:"title"`
	Field  string           `json:"field"`
	Line   int              `json:"line"`
	Text   string           `json:"text"`
	Spans  []textmatch.Span `json:"spans"`
}

// Search hit fields.
const (
	SearchFieldTitle  = "title"
	SearchFieldAuthor = "author"
	SearchFieldLyrics = "lyrics"
)
