// internal/services/catalog_service.go
package services

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/Corphon/CantusMCP/internal/errors"
	"github.com/Corphon/CantusMCP/internal/logger"
	"github.com/Corphon/CantusMCP/internal/metrics"
	"github.com/Corphon/CantusMCP/internal/models"
	"github.com/Corphon/CantusMCP/internal/storage"
	"github.com/Corphon/CantusMCP/internal/textmatch"
)

// CatalogService serves the song catalog: a single JSON file loaded into
// memory, searched with the fold-and-match core.
type CatalogService struct {
	storage  *storage.FileStorage
	dirPath  string
	filename string

	mu    sync.RWMutex
	songs []*models.Song
	byID  map[string]*models.Song

	appMetrics *metrics.AppMetrics
}

// NewCatalogService loads the catalog file and keeps it in memory. A missing
// file is not an error, the catalog starts empty; a malformed file is.
func NewCatalogService(fs *storage.FileStorage, catalogPath string) (*CatalogService, error) {
	dirPath, filename := splitStoragePath(fs.BaseDir, catalogPath)

	s := &CatalogService{
		storage:    fs,
		dirPath:    dirPath,
		filename:   filename,
		byID:       make(map[string]*models.Song),
		appMetrics: metrics.NewAppMetrics(),
	}

	if err := s.Reload(); err != nil {
		return nil, err
	}

	return s, nil
}

// splitStoragePath turns a configured path into the (dir, file) pair the
// storage layer expects, relative to its base directory. Paths outside the
// base directory fall back to the bare filename at the base root.
func splitStoragePath(baseDir, path string) (string, string) {
	rel, err := filepath.Rel(baseDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", filepath.Base(path)
	}
	return filepath.Split(rel)
}

// Reload re-reads the catalog file from disk and swaps the in-memory view.
func (s *CatalogService) Reload() error {
	if !s.storage.FileExists(s.dirPath, s.filename) {
		logger.Get().Warn("Catalog file not found, starting with an empty catalog", map[string]interface{}{
			"path": filepath.Join(s.dirPath, s.filename),
		})
		s.mu.Lock()
		s.songs = nil
		s.byID = make(map[string]*models.Song)
		s.mu.Unlock()
		return nil
	}

	var songs []*models.Song
	if err := s.storage.LoadJSONFile(s.dirPath, s.filename, &songs); err != nil {
		return apperrors.NewStorageError("failed to load song catalog", err)
	}

	byID := make(map[string]*models.Song, len(songs))
	for i, song := range songs {
		if song == nil {
			return apperrors.NewValidationError(fmt.Sprintf("catalog entry %d is null", i), nil)
		}
		if song.ID == "" {
			return apperrors.NewValidationError(fmt.Sprintf("catalog entry %d has no id", i), nil)
		}
		if _, dup := byID[song.ID]; dup {
			return apperrors.NewConflictError(fmt.Sprintf("duplicate song id %q in catalog", song.ID), nil)
		}
		byID[song.ID] = song
	}

	s.mu.Lock()
	s.songs = songs
	s.byID = byID
	s.mu.Unlock()

	logger.Get().Info("Catalog loaded", map[string]interface{}{
		"songs": len(songs),
	})
	metrics.GetCollector().SetGauge("catalog_songs", int64(len(songs)))

	return nil
}

// Count returns the number of songs in the catalog.
func (s *CatalogService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.songs)
}

// GetSong returns one song by ID.
func (s *CatalogService) GetSong(id string) (*models.Song, error) {
	if id == "" {
		return nil, apperrors.NewValidationError("song id is required", nil)
	}

	s.mu.RLock()
	song, ok := s.byID[id]
	s.mu.RUnlock()

	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("song not found: %s", id), nil)
	}
	return song, nil
}

// Songs returns the catalog in file order. Callers must treat the slice and
// the songs as read-only.
func (s *CatalogService) Songs() []*models.Song {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.songs
}

// ListSongs returns the catalog in file order, without lyrics bodies.
func (s *CatalogService) ListSongs() []models.SongSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]models.SongSummary, 0, len(s.songs))
	for _, song := range s.songs {
		summaries = append(summaries, song.Summary())
	}
	return summaries
}

// Search scans every song for the query, folding both sides, and returns
// hits in catalog order with highlight spans into the original text. Titles
// and authors are matched whole, lyrics line by line.
func (s *CatalogService) Search(ctx context.Context, query string) ([]models.SearchHit, error) {
	if textmatch.Normalize(query) == "" {
		return nil, apperrors.NewValidationError("search query is empty after folding", nil)
	}

	s.mu.RLock()
	songs := s.songs
	s.mu.RUnlock()

	start := time.Now()

	// One task per song, results slotted by catalog position so the output
	// order is stable without a sort.
	perSong := make([][]models.SearchHit, len(songs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, song := range songs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perSong[i] = scanSong(query, song)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var hits []models.SearchHit
	for _, songHits := range perSong {
		hits = append(hits, songHits...)
	}

	s.appMetrics.RecordSearch(len(hits), time.Since(start))

	return hits, nil
}

// scanSong collects the hits for one song: title, author, then each
// non-blank lyric line.
func scanSong(query string, song *models.Song) []models.SearchHit {
	var hits []models.SearchHit

	addHit := func(field string, line int, text string) {
		if !textmatch.Matches(query, text) {
			return
		}
		spans := textmatch.FindSpans(query, text)
		if len(spans) == 0 {
			return
		}
		hits = append(hits, models.SearchHit{
			SongID: song.ID,
			Title:  song.Title,
			Field:  field,
			Line:   line,
			Text:   text,
			Spans:  spans,
		})
	}

	addHit(models.SearchFieldTitle, -1, song.Title)
	if song.Author != "" {
		addHit(models.SearchFieldAuthor, -1, song.Author)
	}

	for i, line := range strings.Split(song.Lyrics, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		addHit(models.SearchFieldLyrics, i, line)
	}

	return hits
}
