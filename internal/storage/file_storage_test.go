package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadJSON(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	type doc struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, fs.SaveJSONFile("conversations", "a.json", doc{Name: "x", Count: 3}))

	var got doc
	require.NoError(t, fs.LoadJSONFile("conversations", "a.json", &got))
	assert.Equal(t, doc{Name: "x", Count: 3}, got)

	// No temp file left behind.
	_, err = os.Stat(filepath.Join(fs.BaseDir, "conversations", "a.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestSaveInvalidatesCache(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fs.SaveTextFile("", "note.txt", []byte("one")))

	got, err := fs.LoadTextFile("", "note.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got)

	// The second write must not serve the cached first body.
	require.NoError(t, fs.SaveTextFile("", "note.txt", []byte("two")))

	got, err = fs.LoadTextFile("", "note.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)
}

func TestListFiles(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fs.SaveTextFile("conversations", "b.json", []byte("{}")))
	require.NoError(t, fs.SaveTextFile("conversations", "a.json", []byte("{}")))
	require.NoError(t, fs.SaveTextFile("conversations", "skip.txt", []byte("")))

	names, err := fs.ListFiles("conversations", ".json")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json", "b.json"}, names)

	names, err = fs.ListFiles("missing-dir", ".json")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestDeleteFile(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fs.SaveTextFile("", "gone.json", []byte("{}")))
	require.NoError(t, fs.DeleteFile("", "gone.json"))
	assert.False(t, fs.FileExists("", "gone.json"))

	assert.Error(t, fs.DeleteFile("", "gone.json"))
}
