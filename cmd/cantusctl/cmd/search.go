package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Corphon/CantusMCP/internal/output"
	"github.com/Corphon/CantusMCP/internal/textmatch"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search titles, authors and lyrics",
	Long: `Search runs the server's accent and case insensitive matcher over the
catalog and prints every hit with the matched characters highlighted.

Examples:
  cantusctl search amor
  cantusctl search "Coração" --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Bool("json", false, "output as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	catalog, err := openCatalog()
	if err != nil {
		return err
	}

	hits, err := catalog.Search(context.Background(), query)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"query": query,
			"hits":  hits,
			"count": len(hits),
		})
	}

	printer := output.NewPrinter(useColors())

	if len(hits) == 0 {
		printer.Warning("No matches for %q", query)
		return nil
	}

	printer.Header(fmt.Sprintf("%d hits for %q", len(hits), query))

	table := output.NewTable([]string{"SONG", "FIELD", "LINE", "TEXT"})
	for _, hit := range hits {
		line := "-"
		if hit.Line >= 0 {
			line = strconv.Itoa(hit.Line + 1)
		}

		table.AddRow([]string{
			hit.SongID,
			hit.Field,
			line,
			highlightSpans(printer, hit.Text, hit.Spans),
		})
	}
	table.Render()
	fmt.Println()

	return nil
}

// highlightSpans rebuilds the text with each matched span marked.
func highlightSpans(printer *output.Printer, text string, spans []textmatch.Span) string {
	var b strings.Builder
	prev := 0
	for _, span := range spans {
		b.WriteString(text[prev:span.Start])
		b.WriteString(printer.Highlight(text[span.Start:span.End]))
		prev = span.End
	}
	b.WriteString(text[prev:])
	return b.String()
}
