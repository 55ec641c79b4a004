// Package content turns raw assistant replies into renderable parts: literal
// text segments interleaved with typed media references (sheet-music scores,
// audio tracks, external resources). Replies carry media either in fenced
// structured blocks or, from older prompt templates, as bracketed inline
// tags. Parsing is total: malformed input degrades to literal text, never to
// an error.
package content

import (
	"encoding/json"
	"fmt"
)

// MediaKind discriminates the media reference types in serialized output.
type MediaKind string

const (
	MediaScore    MediaKind = "score"
	MediaTrack    MediaKind = "track"
	MediaResource MediaKind = "resource"
)

// Media is one renderable media reference extracted from a reply.
type Media interface {
	Kind() MediaKind
}

// ScoreRef points at sheet music, as a source URL, a list of page images, or
// both.
type ScoreRef struct {
	URL   string   `json:"url,omitempty"`
	Name  string   `json:"name"`
	Pages []string `json:"pages,omitempty"`
}

// Kind implements Media.
func (ScoreRef) Kind() MediaKind { return MediaScore }

// MarshalJSON adds the kind discriminator so renderers can dispatch without
// Go type information.
func (s ScoreRef) MarshalJSON() ([]byte, error) {
	type bare ScoreRef
	return json.Marshal(struct {
		Kind MediaKind `json:"kind"`
		bare
	}{MediaScore, bare(s)})
}

// TrackRef points at a playable audio file.
type TrackRef struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// Kind implements Media.
func (TrackRef) Kind() MediaKind { return MediaTrack }

func (t TrackRef) MarshalJSON() ([]byte, error) {
	type bare TrackRef
	return json.Marshal(struct {
		Kind MediaKind `json:"kind"`
		bare
	}{MediaTrack, bare(t)})
}

// ResourceRef points at an external link shown alongside the reply text.
type ResourceRef struct {
	URL          string `json:"url"`
	Name         string `json:"name"`
	ResourceKind string `json:"resource_kind"`
	Description  string `json:"description,omitempty"`
}

// Kind implements Media.
func (ResourceRef) Kind() MediaKind { return MediaResource }

func (r ResourceRef) MarshalJSON() ([]byte, error) {
	type bare ResourceRef
	return json.Marshal(struct {
		Kind MediaKind `json:"kind"`
		bare
	}{MediaResource, bare(r)})
}

// ParsedMessage is the renderable form of one assistant reply. TextSegments
// holds the literal text in reading order with all recognized block and tag
// substrings removed; Media holds the references those substrings carried.
type ParsedMessage struct {
	TextSegments []string `json:"text_segments"`
	Media        []Media  `json:"media"`
}

// UnmarshalJSON restores the concrete media types behind the Media interface
// by dispatching on the kind discriminator. Stored conversations round-trip
// through this.
func (m *ParsedMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		TextSegments []string          `json:"text_segments"`
		Media        []json.RawMessage `json:"media"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.TextSegments = raw.TextSegments
	m.Media = nil

	for _, item := range raw.Media {
		var head struct {
			Kind MediaKind `json:"kind"`
		}
		if err := json.Unmarshal(item, &head); err != nil {
			return err
		}

		switch head.Kind {
		case MediaScore:
			var ref ScoreRef
			if err := json.Unmarshal(item, &ref); err != nil {
				return err
			}
			m.Media = append(m.Media, ref)
		case MediaTrack:
			var ref TrackRef
			if err := json.Unmarshal(item, &ref); err != nil {
				return err
			}
			m.Media = append(m.Media, ref)
		case MediaResource:
			var ref ResourceRef
			if err := json.Unmarshal(item, &ref); err != nil {
				return err
			}
			m.Media = append(m.Media, ref)
		default:
			return fmt.Errorf("unknown media kind %q", head.Kind)
		}
	}

	return nil
}
