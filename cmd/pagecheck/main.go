// pagecheck validates exported design documents page by page: it runs
// an AI analyzer over page rasters under bounded concurrency, caches
// results by content, and reports per-document scores.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes reported to the caller.
const (
	exitOK          = 0 // every unit succeeded (or was served from cache)
	exitPartial     = 1 // batch completed but at least one unit failed
	exitConfigError = 2 // fatal configuration error, nothing dispatched
)

var (
	version = "0.3.0"

	// configPath is shared by all subcommands.
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "pagecheck",
	Short: "Batch validation for exported design documents",
	Long: `pagecheck expands exported documents into per-page work units,
analyzes each page against brand rules, and aggregates the outcomes
into per-document scores and a batch report.

Repeated pages are served from a content-addressed cache; bump the
validator version in the config to invalidate previous analyses.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pagecheck version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pagecheck %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to pagecheck.yaml (optional)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitConfigError)
	}
}
