package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Corphon/CantusMCP/internal/models"
	"github.com/Corphon/CantusMCP/internal/output"
)

var songsCmd = &cobra.Command{
	Use:     "songs",
	Aliases: []string{"ls"},
	Short:   "List the songs in the catalog",
	Long: `List every catalog entry with its media availability.

Examples:
  cantusctl songs              # Table of the catalog
  cantusctl songs --json       # Summaries as JSON`,
	RunE: runSongs,
}

func init() {
	rootCmd.AddCommand(songsCmd)

	songsCmd.Flags().Bool("json", false, "output as JSON")
}

func runSongs(cmd *cobra.Command, args []string) error {
	catalog, err := openCatalog()
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(catalog.ListSongs())
	}

	printer := output.NewPrinter(useColors())
	printer.Header(fmt.Sprintf("Catalog (%d songs)", catalog.Count()))

	table := output.NewTable([]string{"ID", "TITLE", "AUTHOR", "TAGS", "MEDIA"})
	for _, song := range catalog.Songs() {
		table.AddRow([]string{
			song.ID,
			printer.Bold(song.Title),
			song.Author,
			strings.Join(song.Tags, ", "),
			mediaBadges(song),
		})
	}
	table.Render()
	fmt.Println()

	return nil
}

// mediaBadges summarizes which assets a song carries.
func mediaBadges(song *models.Song) string {
	var badges []string
	if song.ScoreURL != "" {
		badges = append(badges, "score")
	}
	if song.TrackPath != "" {
		badges = append(badges, "track")
	}
	if song.ResourceURL != "" {
		badges = append(badges, "resource")
	}
	return strings.Join(badges, "+")
}
