// internal/services/catalog_service_test.go
package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/CantusMCP/internal/errors"
	"github.com/Corphon/CantusMCP/internal/models"
	"github.com/Corphon/CantusMCP/internal/storage"
	"github.com/Corphon/CantusMCP/internal/textmatch"
)

func testSongs() []*models.Song {
	return []*models.Song{
		{
			ID:       "gloria-a-deus",
			Title:    "Glória a Deus",
			Author:   "Ana Souza",
			Lyrics:   "Glória a Deus nas alturas\n\nO amor é amor\nSanto é o Senhor",
			ScoreURL: "https://scores.example.com/gloria.pdf",
		},
		{
			ID:        "amor-eterno",
			Title:     "Amor Eterno",
			Lyrics:    "Teu amor não falha\nCoração que canta",
			TrackPath: "tracks/amor-eterno.mp3",
		},
	}
}

func newTestCatalog(t *testing.T, songs []*models.Song) (*CatalogService, *storage.FileStorage) {
	t.Helper()

	fs, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	if songs != nil {
		require.NoError(t, fs.SaveJSONFile("", "songs.json", songs))
	}

	svc, err := NewCatalogService(fs, filepath.Join(fs.BaseDir, "songs.json"))
	require.NoError(t, err)

	return svc, fs
}

func TestCatalogLoadAndGet(t *testing.T) {
	svc, _ := newTestCatalog(t, testSongs())

	assert.Equal(t, 2, svc.Count())

	song, err := svc.GetSong("amor-eterno")
	require.NoError(t, err)
	assert.Equal(t, "Amor Eterno", song.Title)

	_, err = svc.GetSong("missing")
	assert.True(t, apperrors.IsNotFoundError(err))

	_, err = svc.GetSong("")
	assert.True(t, apperrors.IsValidationError(err))
}

func TestCatalogMissingFileStartsEmpty(t *testing.T) {
	svc, _ := newTestCatalog(t, nil)

	assert.Equal(t, 0, svc.Count())
	assert.Empty(t, svc.ListSongs())

	hits, err := svc.Search(context.Background(), "amor")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestCatalogRejectsDuplicateIDs(t *testing.T) {
	fs, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	songs := []*models.Song{
		{ID: "dup", Title: "One", Lyrics: "a"},
		{ID: "dup", Title: "Two", Lyrics: "b"},
	}
	require.NoError(t, fs.SaveJSONFile("", "songs.json", songs))

	_, err = NewCatalogService(fs, filepath.Join(fs.BaseDir, "songs.json"))
	assert.True(t, apperrors.IsConflictError(err))
}

func TestCatalogListSongs(t *testing.T) {
	svc, _ := newTestCatalog(t, testSongs())

	summaries := svc.ListSongs()
	require.Len(t, summaries, 2)
	assert.Equal(t, "gloria-a-deus", summaries[0].ID)
	assert.Equal(t, "amor-eterno", summaries[1].ID)
}

func TestSearchFoldsAccentsAndCase(t *testing.T) {
	svc, _ := newTestCatalog(t, testSongs())

	hits, err := svc.Search(context.Background(), "gloria")
	require.NoError(t, err)
	require.Len(t, hits, 2)

	// Title hit first, then the first lyrics line.
	assert.Equal(t, models.SearchFieldTitle, hits[0].Field)
	assert.Equal(t, -1, hits[0].Line)
	require.Len(t, hits[0].Spans, 1)
	span := hits[0].Spans[0]
	assert.Equal(t, "gloria", textmatch.Normalize(hits[0].Text[span.Start:span.End]))

	assert.Equal(t, models.SearchFieldLyrics, hits[1].Field)
	assert.Equal(t, 0, hits[1].Line)
	assert.Equal(t, "Glória a Deus nas alturas", hits[1].Text)
}

func TestSearchReportsLyricLineNumbers(t *testing.T) {
	svc, _ := newTestCatalog(t, testSongs())

	hits, err := svc.Search(context.Background(), "santo")
	require.NoError(t, err)
	require.Len(t, hits, 1)

	// The blank line in the lyrics still counts for numbering.
	assert.Equal(t, "gloria-a-deus", hits[0].SongID)
	assert.Equal(t, 3, hits[0].Line)
	assert.Equal(t, "Santo é o Senhor", hits[0].Text)
}

func TestSearchKeepsCatalogOrder(t *testing.T) {
	svc, _ := newTestCatalog(t, testSongs())

	hits, err := svc.Search(context.Background(), "amor")
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	// All hits for the first catalog song come before any for the second.
	lastFirstSong := -1
	firstSecondSong := len(hits)
	for i, hit := range hits {
		switch hit.SongID {
		case "gloria-a-deus":
			lastFirstSong = i
		case "amor-eterno":
			if i < firstSecondSong {
				firstSecondSong = i
			}
		}
	}
	assert.Less(t, lastFirstSong, firstSecondSong)

	// "O amor é amor" carries two non-overlapping spans.
	for _, hit := range hits {
		if hit.Text == "O amor é amor" {
			require.Len(t, hit.Spans, 2)
			assert.Equal(t, textmatch.Span{Start: 2, End: 6}, hit.Spans[0])
			assert.True(t, hit.Spans[0].End <= hit.Spans[1].Start)
		}
	}
}

func TestSearchAuthorField(t *testing.T) {
	svc, _ := newTestCatalog(t, testSongs())

	hits, err := svc.Search(context.Background(), "ana souza")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, models.SearchFieldAuthor, hits[0].Field)
	assert.Equal(t, -1, hits[0].Line)
}

func TestSearchRejectsNoiseOnlyQuery(t *testing.T) {
	svc, _ := newTestCatalog(t, testSongs())

	_, err := svc.Search(context.Background(), "!!! ???")
	assert.True(t, apperrors.IsValidationError(err))

	_, err = svc.Search(context.Background(), "   ")
	assert.True(t, apperrors.IsValidationError(err))
}

func TestCatalogReloadPicksUpChanges(t *testing.T) {
	svc, fs := newTestCatalog(t, testSongs())

	songs := append(testSongs(), &models.Song{ID: "novo", Title: "Novo Canto", Lyrics: "novo"})
	require.NoError(t, fs.SaveJSONFile("", "songs.json", songs))

	require.NoError(t, svc.Reload())
	assert.Equal(t, 3, svc.Count())

	song, err := svc.GetSong("novo")
	require.NoError(t, err)
	assert.Equal(t, "Novo Canto", song.Title)
}
