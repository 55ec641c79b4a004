// Package cmd contains all CLI commands for cantusctl.
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Corphon/CantusMCP/internal/logger"
	"github.com/Corphon/CantusMCP/internal/services"
	"github.com/Corphon/CantusMCP/internal/storage"
)

var (
	catalogPath string
	verbose     bool
	noColor     bool
	version     = "dev"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cantusctl",
	Short: "CantusMCP catalog and reply tools",
	Long: `cantusctl works with a CantusMCP song catalog from the command line.

It searches the catalog with the same accent and case folding the server
uses, lists songs, and parses assistant replies into text segments and
media references.

Example usage:
  cantusctl songs                      # List the catalog
  cantusctl search "amor"              # Search titles, authors and lyrics
  cantusctl parse reply.txt            # Parse a stored assistant reply
  cat reply.txt | cantusctl parse -    # Parse from stdin`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initCLI()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string for the CLI.
func SetVersion(v string) {
	version = v
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "catalog file (default data/songs.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	// Bind flags to viper, with the server's environment variables as fallback
	_ = viper.BindPFlag("catalog", rootCmd.PersistentFlags().Lookup("catalog"))
	_ = viper.BindEnv("catalog", "CANTUS_CATALOG", "CATALOG_PATH")
	viper.SetDefault("catalog", filepath.Join("data", "songs.json"))
}

// initCLI applies the global flags before any command runs.
func initCLI() error {
	if noColor {
		color.NoColor = true
	}

	// Service log lines would interleave with command output
	if verbose {
		logger.Get().SetLevel(logger.DEBUG)
	} else {
		logger.Get().SetLevel(logger.ERROR)
	}

	return nil
}

// useColors reports whether output should be colored.
func useColors() bool {
	return !noColor
}

// openCatalog loads the catalog the flags point at.
func openCatalog() (*services.CatalogService, error) {
	path := viper.GetString("catalog")

	fs, err := storage.NewFileStorage(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("opening catalog directory: %w", err)
	}

	catalog, err := services.NewCatalogService(fs, path)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	return catalog, nil
}
