package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Corphon/CantusMCP/internal/models"
)

// writeTestCatalog creates a small catalog file and returns its path.
func writeTestCatalog(t *testing.T) string {
	t.Helper()

	songs := []*models.Song{
		{
			ID:       "amazing-grace",
			Title:    "Amazing Grace",
			Author:   "John Newton",
			Lyrics:   "Amazing grace, how sweet the sound\nThat saved a wretch like me",
			Tags:     []string{"hymn"},
			ScoreURL: "https://scores.example.com/amazing-grace.pdf",
		},
		{
			ID:        "greensleeves",
			Title:     "Greensleeves",
			Lyrics:    "Alas, my love, you do me wrong",
			TrackPath: "tracks/greensleeves.mp3",
		},
	}

	data, err := json.Marshal(songs)
	if err != nil {
		t.Fatalf("marshal test catalog: %v", err)
	}

	path := filepath.Join(t.TempDir(), "songs.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write test catalog: %v", err)
	}
	return path
}

func TestRootCmd_Help(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"--help"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("root --help failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "cantusctl") {
		t.Errorf("expected help output to contain 'cantusctl', got:\n%s", out)
	}
	for _, name := range []string{"songs", "search", "parse", "version"} {
		if !strings.Contains(out, name) {
			t.Errorf("expected help output to list %q command, got:\n%s", name, out)
		}
	}
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"nonexistent-command"})

	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error for unknown command, got nil")
	}
}

func TestVersionCmd_Short(t *testing.T) {
	SetVersion("0.0.0-test")

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"version", "--short"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("version --short failed: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "0.0.0-test" {
		t.Errorf("expected version '0.0.0-test', got %q", got)
	}
}

func TestSongsCmd_JSON(t *testing.T) {
	catalog := writeTestCatalog(t)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"songs", "--json", "--catalog", catalog})

	// songs --json writes to os.Stdout directly; verify no error
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("songs --json failed: %v", err)
	}
}

func TestSearchCmd_JSON(t *testing.T) {
	catalog := writeTestCatalog(t)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"search", "amazing grace", "--json", "--catalog", catalog})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("search --json failed: %v", err)
	}
}

func TestSearchCmd_MissingQuery(t *testing.T) {
	catalog := writeTestCatalog(t)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"search", "--catalog", catalog})

	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error when query argument is missing, got nil")
	}
}

func TestParseCmd_File(t *testing.T) {
	input := "Here is the score.\n```json\n{\"scores\": [{\"url\": \"https://scores.example.com/a.pdf\", \"name\": \"A\"}]}\n```\n"
	path := filepath.Join(t.TempDir(), "reply.txt")
	if err := os.WriteFile(path, []byte(input), 0644); err != nil {
		t.Fatalf("write parse input: %v", err)
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"parse", path, "--json"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("parse --json failed: %v", err)
	}
}
