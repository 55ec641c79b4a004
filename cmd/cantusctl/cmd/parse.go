package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Corphon/CantusMCP/internal/content"
	"github.com/Corphon/CantusMCP/internal/output"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse an assistant reply into segments and media",
	Long: `Parse splits reply text into renderable segments and media references,
exactly as the server does before persisting a chat turn.

Reads the file argument, or stdin when the argument is missing or "-".

Examples:
  cantusctl parse reply.txt
  cat reply.txt | cantusctl parse --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().Bool("json", false, "output as JSON")
}

func runParse(cmd *cobra.Command, args []string) error {
	data, err := readParseInput(args)
	if err != nil {
		return err
	}

	parsed, stats := content.NewParser().ParseWithStats(string(data))

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"parsed": parsed,
			"stats":  stats,
		})
	}

	printer := output.NewPrinter(useColors())

	printer.Header(fmt.Sprintf("Text segments (%d)", len(parsed.TextSegments)))
	for i, segment := range parsed.TextSegments {
		printer.Info("segment %d:", i+1)
		printer.Print("%s", segment)
	}

	if len(parsed.Media) > 0 {
		printer.Header(fmt.Sprintf("Media references (%d)", len(parsed.Media)))

		table := output.NewTable([]string{"KIND", "NAME", "LOCATION", "DETAIL"})
		for _, media := range parsed.Media {
			switch ref := media.(type) {
			case content.ScoreRef:
				table.AddRow([]string{"score", ref.Name, ref.URL, strconv.Itoa(len(ref.Pages)) + " page(s)"})
			case content.TrackRef:
				table.AddRow([]string{"track", ref.Name, ref.Path, ""})
			case content.ResourceRef:
				table.AddRow([]string{"resource", ref.Name, ref.URL, ref.ResourceKind})
			}
		}
		table.Render()
		fmt.Println()
	}

	printer.Print("%s", printer.Dim(fmt.Sprintf(
		"blocks=%d demoted=%d skipped=%d inline_tags=%d",
		stats.Blocks, stats.DemotedBlocks, stats.SkippedEntries, stats.InlineTags)))

	if stats.DemotedBlocks > 0 || stats.SkippedEntries > 0 {
		printer.Warning("some media payloads could not be decoded (%d demoted blocks, %d skipped entries)",
			stats.DemotedBlocks, stats.SkippedEntries)
	}

	return nil
}

// readParseInput reads the named file, or stdin for "-" or no argument.
func readParseInput(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(args[0])
}
